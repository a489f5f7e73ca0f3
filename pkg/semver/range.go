// SPDX-License-Identifier: MPL-2.0

package semver

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidRange is the sentinel error wrapped by InvalidRangeError.
var ErrInvalidRange = errors.New("invalid range format")

// termPattern matches one range term: an optional operator followed by a
// full or partial version. Wildcard segments are x, X or *.
var termPattern = regexp.MustCompile(
	`^(>=|<=|>|<|=|\^|~)?v?(\d+|[xX*])(?:\.(\d+|[xX*]))?(?:\.(\d+|[xX*]))?` +
		`(?:-([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?(?:\+([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`,
)

type (
	// Range is a predicate over versions: a union of intervals.
	// The zero value matches nothing; use Any for an unconstrained range.
	Range struct {
		text string
		sets []interval
	}

	// InvalidRangeError is returned when a range expression is malformed.
	InvalidRangeError struct {
		Value  string
		Reason string
	}

	bound struct {
		v         Version
		inclusive bool
		unbounded bool
	}

	interval struct {
		lo bound
		hi bound
	}

	// partial is a version with possibly missing (wildcard) trailing segments.
	partial struct {
		major, minor, patch uint64
		// segments is the number of concrete numeric segments (0..3).
		segments int
		pre      string
	}
)

// Error implements the error interface.
func (e *InvalidRangeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid range format %q: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid range format %q", e.Value)
}

// Unwrap returns ErrInvalidRange so callers can use errors.Is for programmatic detection.
func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// Any returns a range satisfied by every version.
func Any() Range {
	return Range{text: "*", sets: []interval{{lo: bound{unbounded: true}, hi: bound{unbounded: true}}}}
}

// Exact returns a range satisfied only by v.
func Exact(v Version) Range {
	b := bound{v: v, inclusive: true}
	return Range{text: v.String(), sets: []interval{{lo: b, hi: b}}}
}

// ParseRange parses a range expression.
func ParseRange(text string) (Range, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Range{}, &InvalidRangeError{Value: text, Reason: "empty expression"}
	}

	r := Range{text: trimmed}
	for alt := range strings.SplitSeq(trimmed, "||") {
		iv, err := parseConjunction(strings.TrimSpace(alt))
		if err != nil {
			return Range{}, &InvalidRangeError{Value: text, Reason: err.Error()}
		}
		r.sets = append(r.sets, iv)
	}
	return r, nil
}

// MustParseRange is like ParseRange but panics on error.
func MustParseRange(text string) Range {
	r, err := ParseRange(text)
	if err != nil {
		panic(err)
	}
	return r
}

// IsValidRange reports whether text is a valid range expression.
func IsValidRange(text string) bool {
	_, err := ParseRange(text)
	return err == nil
}

// String returns the expression the range was parsed from.
func (r Range) String() string { return r.text }

// Satisfies reports whether v lies inside the range.
func (r Range) Satisfies(v Version) bool {
	for _, iv := range r.sets {
		if iv.contains(v) {
			return true
		}
	}
	return false
}

// Satisfies is the package-level form of Range.Satisfies.
func Satisfies(r Range, v Version) bool { return r.Satisfies(v) }

// Intersects reports whether some version could satisfy both ranges.
func (r Range) Intersects(other Range) bool {
	for _, a := range r.sets {
		for _, b := range other.sets {
			if !a.intersect(b).empty() {
				return true
			}
		}
	}
	return false
}

// IsExactMatch reports whether the range pins exactly one version.
func (r Range) IsExactMatch() bool {
	_, ok := r.ExactVersion()
	return ok
}

// ExactVersion returns the pinned version when the range is an exact match.
func (r Range) ExactVersion() (Version, bool) {
	if len(r.sets) != 1 {
		return Version{}, false
	}
	iv := r.sets[0]
	if iv.lo.unbounded || iv.hi.unbounded || !iv.lo.inclusive || !iv.hi.inclusive {
		return Version{}, false
	}
	if iv.lo.v.Compare(iv.hi.v) != 0 {
		return Version{}, false
	}
	return iv.lo.v, true
}

// Best returns the highest candidate satisfying r.
func Best(r Range, candidates []Version) (Version, bool) {
	var best Version
	found := false
	for _, c := range candidates {
		if !r.Satisfies(c) {
			continue
		}
		if !found || c.Compare(best) > 0 {
			best = c
			found = true
		}
	}
	return best, found
}

func parseConjunction(expr string) (interval, error) {
	if expr == "" {
		return interval{}, errors.New("empty alternative")
	}
	tokens := tokenize(expr)

	// Hyphen range: "A - B" is inclusive on both ends (B may be partial).
	if len(tokens) == 3 && tokens[1] == "-" {
		lo, err := parsePartial(tokens[0])
		if err != nil {
			return interval{}, err
		}
		hi, err := parsePartial(tokens[2])
		if err != nil {
			return interval{}, err
		}
		return interval{lo: lo.floor(true), hi: hi.ceilingInclusive()}, nil
	}

	acc := interval{lo: bound{unbounded: true}, hi: bound{unbounded: true}}
	for _, tok := range tokens {
		iv, err := parseTerm(tok)
		if err != nil {
			return interval{}, err
		}
		acc = acc.intersect(iv)
	}
	return acc, nil
}

// tokenize splits on whitespace and glues a lone operator onto the version
// that follows it, so ">= 1.0.0" reads like ">=1.0.0".
func tokenize(expr string) []string {
	fields := strings.Fields(expr)
	var tokens []string
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if isOperator(f) && i+1 < len(fields) {
			tokens = append(tokens, f+fields[i+1])
			i++
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func isOperator(s string) bool {
	switch s {
	case ">=", "<=", ">", "<", "=", "^", "~":
		return true
	}
	return false
}

func parseTerm(tok string) (interval, error) {
	m := termPattern.FindStringSubmatch(tok)
	if m == nil {
		return interval{}, fmt.Errorf("unrecognized term %q", tok)
	}
	p, err := partialFromMatch(m[2], m[3], m[4], m[5])
	if err != nil {
		return interval{}, fmt.Errorf("term %q: %w", tok, err)
	}

	open := bound{unbounded: true}
	switch m[1] {
	case "", "=":
		if p.segments == 3 {
			b := bound{v: p.version(), inclusive: true}
			return interval{lo: b, hi: b}, nil
		}
		return interval{lo: p.floor(true), hi: p.ceilingExclusive()}, nil
	case ">=":
		return interval{lo: p.floor(true), hi: open}, nil
	case ">":
		if p.segments == 3 {
			return interval{lo: bound{v: p.version()}, hi: open}, nil
		}
		return interval{lo: p.ceilingExclusive().asLowerInclusive(), hi: open}, nil
	case "<":
		return interval{lo: open, hi: p.floor(false)}, nil
	case "<=":
		return interval{lo: open, hi: p.ceilingInclusive()}, nil
	case "~":
		return interval{lo: p.floor(true), hi: p.tildeCeiling()}, nil
	case "^":
		return interval{lo: p.floor(true), hi: p.caretCeiling()}, nil
	}
	return interval{}, fmt.Errorf("unsupported operator %q", m[1])
}

func parsePartial(tok string) (partial, error) {
	m := termPattern.FindStringSubmatch(tok)
	if m == nil || m[1] != "" {
		return partial{}, fmt.Errorf("unrecognized version %q", tok)
	}
	return partialFromMatch(m[2], m[3], m[4], m[5])
}

func partialFromMatch(major, minor, patch, pre string) (partial, error) {
	var p partial
	segs := []string{major, minor, patch}
	targets := []*uint64{&p.major, &p.minor, &p.patch}
	wild := false
	for i, s := range segs {
		if s == "" || s == "x" || s == "X" || s == "*" {
			wild = true
			continue
		}
		if wild {
			return partial{}, errors.New("numeric segment after wildcard")
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return partial{}, err
		}
		*targets[i] = n
		p.segments = i + 1
	}
	if pre != "" {
		if p.segments != 3 {
			return partial{}, errors.New("pre-release tag requires a full version")
		}
		p.pre = pre
	}
	return p, nil
}

func (p partial) version() Version {
	return Version{Major: p.major, Minor: p.minor, Patch: p.patch, Prerelease: p.pre}
}

// floor is the lowest version the partial denotes.
func (p partial) floor(inclusive bool) bound {
	if p.segments == 0 {
		if inclusive {
			return bound{unbounded: true}
		}
		return bound{v: Version{Prerelease: "0"}}
	}
	return bound{v: p.version(), inclusive: inclusive}
}

// ceilingExclusive is the exclusive upper bound just past every version the
// partial denotes. A "-0" pre-release keeps pre-releases of the next release out.
func (p partial) ceilingExclusive() bound {
	switch p.segments {
	case 0:
		return bound{unbounded: true}
	case 3:
		v := p.version()
		v.Patch++
		v.Prerelease = "0"
		return bound{v: v}
	}
	return p.bump(p.segments)
}

// ceilingInclusive is "<=" semantics: a full version is inclusive, a
// partial covers its whole wildcard span.
func (p partial) ceilingInclusive() bound {
	if p.segments == 3 {
		return bound{v: p.version(), inclusive: true}
	}
	return p.ceilingExclusive()
}

// bump increments the segment at position n (1=major, 2=minor, 3=patch)
// and returns it as an exclusive "-0" bound.
func (p partial) bump(n int) bound {
	v := Version{Prerelease: "0"}
	switch n {
	case 1:
		v.Major = p.major + 1
	case 2:
		v.Major, v.Minor = p.major, p.minor+1
	default:
		v.Major, v.Minor, v.Patch = p.major, p.minor, p.patch+1
	}
	return bound{v: v}
}

func (p partial) tildeCeiling() bound {
	switch p.segments {
	case 0:
		return bound{unbounded: true}
	case 1:
		return p.bump(1)
	}
	return p.bump(2)
}

func (p partial) caretCeiling() bound {
	switch {
	case p.segments == 0:
		return bound{unbounded: true}
	case p.major != 0 || p.segments == 1:
		return p.bump(1)
	case p.minor != 0 || p.segments == 2:
		return p.bump(2)
	}
	return p.bump(3)
}

func (b bound) asLowerInclusive() bound {
	if b.unbounded {
		// Nothing lies above an unbounded ceiling.
		return bound{v: Version{Major: ^uint64(0), Minor: ^uint64(0), Patch: ^uint64(0)}}
	}
	b.inclusive = true
	return b
}

func (iv interval) contains(v Version) bool {
	if !iv.lo.unbounded {
		c := v.Compare(iv.lo.v)
		if c < 0 || (c == 0 && !iv.lo.inclusive) {
			return false
		}
	}
	if !iv.hi.unbounded {
		c := v.Compare(iv.hi.v)
		if c > 0 || (c == 0 && !iv.hi.inclusive) {
			return false
		}
	}
	return true
}

func (iv interval) intersect(other interval) interval {
	return interval{lo: maxLower(iv.lo, other.lo), hi: minUpper(iv.hi, other.hi)}
}

func (iv interval) empty() bool {
	if iv.lo.unbounded || iv.hi.unbounded {
		return false
	}
	c := iv.lo.v.Compare(iv.hi.v)
	if c > 0 {
		return true
	}
	if c == 0 {
		return !iv.lo.inclusive || !iv.hi.inclusive
	}
	return false
}

func maxLower(a, b bound) bound {
	switch {
	case a.unbounded:
		return b
	case b.unbounded:
		return a
	}
	c := a.v.Compare(b.v)
	switch {
	case c > 0:
		return a
	case c < 0:
		return b
	}
	if !a.inclusive {
		return a
	}
	return b
}

func minUpper(a, b bound) bound {
	switch {
	case a.unbounded:
		return b
	case b.unbounded:
		return a
	}
	c := a.v.Compare(b.v)
	switch {
	case c < 0:
		return a
	case c > 0:
		return b
	}
	if !a.inclusive {
		return a
	}
	return b
}
