// SPDX-License-Identifier: MPL-2.0

// Package diag provides the accumulating diagnostic chain shared by the
// descriptor parsers and the resolver. Diagnostics are returned to callers
// rather than printed so the CLI owns rendering policy.
package diag

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

const (
	// SeverityInfo is an informational diagnostic.
	SeverityInfo Severity = iota
	// SeverityWarning indicates a recoverable problem.
	SeverityWarning
	// SeverityError indicates a non-fatal error: processing continued but the
	// result is incomplete.
	SeverityError
)

// Diagnostic codes.
const (
	CodeMalformedDescriptor   Code = "malformed_descriptor"
	CodeInvalidVersion        Code = "invalid_version"
	CodeInvalidRange          Code = "invalid_range"
	CodeMissingRequiredField  Code = "missing_required_field"
	CodeUnrecognizedAttribute Code = "unrecognized_attribute"
	CodeInvalidName           Code = "invalid_name"
	CodeUnexpectedArguments   Code = "unexpected_arguments"
	CodeTypeMismatch          Code = "type_mismatch"
	CodeInvalidLicense        Code = "invalid_license"
	CodeUnsupportedAttribute  Code = "unsupported_attribute"
	CodeCircularDependency    Code = "circular_dependency"
	CodeVersionMismatch       Code = "version_mismatch"
	CodeUnresolvedDependency  Code = "unresolved_dependency"
	CodeFetchFailed           Code = "fetch_failed"
	CodeInstallFailed         Code = "install_failed"
)

type (
	// Severity orders diagnostics from informational to error.
	Severity int

	// Code is a machine-readable diagnostic identifier.
	Code string

	// Position attributes a diagnostic to a span of a source file.
	// Line is 1-based; Offset is a 0-based byte offset. A zero Line means unknown.
	Position struct {
		File   string
		Line   int
		Offset int
		Length int
	}

	// Diagnostic is one recorded problem.
	Diagnostic struct {
		Severity Severity
		Code     Code
		Message  string
		// Pos is nil when the diagnostic has no source attribution.
		Pos *Position
		// Cause is the underlying error (optional, for programmatic inspection).
		Cause error
	}

	// Chain accumulates diagnostics in report order. It is safe for
	// concurrent use. The zero value is ready to use.
	Chain struct {
		mu    sync.Mutex
		items []Diagnostic
	}
)

// String returns the lower-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity parses "info", "warning" (or "warn") and "error", case-insensitively.
func ParseSeverity(text string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	}
	return 0, fmt.Errorf("unknown severity %q", text)
}

// String renders the position as "file:line" when known.
func (p *Position) String() string {
	if p == nil {
		return ""
	}
	switch {
	case p.File != "" && p.Line > 0:
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	case p.Line > 0:
		return fmt.Sprintf("line %d", p.Line)
	}
	return p.File
}

// String renders "severity: [file:line] message".
func (d Diagnostic) String() string {
	var sb strings.Builder
	sb.WriteString(d.Severity.String())
	sb.WriteString(": ")
	if loc := d.Pos.String(); loc != "" {
		sb.WriteString(loc)
		sb.WriteString(": ")
	}
	sb.WriteString(d.Message)
	return sb.String()
}

// Add appends a diagnostic.
func (c *Chain) Add(d Diagnostic) {
	c.mu.Lock()
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// Addf appends a diagnostic with a formatted message.
func (c *Chain) Addf(sev Severity, code Code, pos *Position, format string, args ...any) {
	c.Add(Diagnostic{Severity: sev, Code: code, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Merge appends every diagnostic of other, in order.
func (c *Chain) Merge(other *Chain) {
	if other == nil || other == c {
		return
	}
	items := other.Diagnostics()
	c.mu.Lock()
	c.items = append(c.items, items...)
	c.mu.Unlock()
}

// Diagnostics returns a copy of the recorded diagnostics in report order.
func (c *Chain) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Len returns the number of recorded diagnostics.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// HasErrors reports whether any diagnostic has SeverityError.
func (c *Chain) HasErrors() bool {
	return c.Count(SeverityError) > 0
}

// Count returns the number of diagnostics at exactly sev.
func (c *Chain) Count(sev Severity) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.items {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// Filter returns the diagnostics carrying code.
func (c *Chain) Filter(code Code) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Diagnostic
	for _, d := range c.items {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// AtLeast returns the diagnostics with severity >= sev.
func (c *Chain) AtLeast(sev Severity) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Diagnostic
	for _, d := range c.items {
		if d.Severity >= sev {
			out = append(out, d)
		}
	}
	return out
}
