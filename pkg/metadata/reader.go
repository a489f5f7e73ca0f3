// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/github/go-spdx/v2/spdxexp"

	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/semver"
)

// ErrMalformedDescriptor is the sentinel error wrapped by MalformedDescriptorError.
var ErrMalformedDescriptor = errors.New("malformed descriptor")

type (
	// Reader populates a Builder from one textual descriptor form.
	Reader interface {
		// Read parses data, reporting recoverable problems to chain. It fails
		// only when data is not a well-formed document.
		Read(data []byte, file string, b *Builder, chain *diag.Chain) error
	}

	// MalformedDescriptorError reports a document that could not be parsed at all.
	MalformedDescriptorError struct {
		File string
		Line int
		Err  error
	}
)

// Error implements the error interface.
func (e *MalformedDescriptorError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed descriptor %s: %v", loc, e.Err)
	}
	return "malformed descriptor " + loc
}

// Unwrap returns ErrMalformedDescriptor so callers can use errors.Is for programmatic detection.
func (e *MalformedDescriptorError) Unwrap() error { return ErrMalformedDescriptor }

// parse runs r and applies the checks shared by both forms.
func parse(r Reader, data []byte, file string, chain *diag.Chain) (*Metadata, error) {
	if chain == nil {
		chain = &diag.Chain{}
	}
	b := NewBuilder()
	b.SetFile(file)
	if err := r.Read(data, file, b, chain); err != nil {
		chain.Add(diag.Diagnostic{
			Severity: diag.SeverityError,
			Code:     diag.CodeMalformedDescriptor,
			Message:  err.Error(),
			Pos:      &diag.Position{File: file},
			Cause:    err,
		})
		return nil, err
	}
	missing := missingFields(b)
	m := b.Build()
	for _, k := range missing {
		chain.Add(diag.Diagnostic{
			Severity: diag.SeverityError,
			Code:     diag.CodeMissingRequiredField,
			Message:  "missing required field: " + string(k),
			Pos:      &diag.Position{File: file},
		})
	}
	return m, nil
}

// missingFields lists the required keys the descriptor never declared. A
// declared but invalid value is reported where it is read, not here.
func missingFields(b *Builder) []Key {
	var missing []Key
	if b.Current().Name.IsZero() && !b.Seen(KeyName) {
		missing = append(missing, KeyName)
	}
	if b.Current().Version == nil && !b.Seen(KeyVersion) {
		missing = append(missing, KeyVersion)
	}
	return missing
}

// readName parses a module name strictly, retrying leniently. A lenient
// success is a WARNING; a name neither mode accepts is an ERROR.
func readName(text string, pos *diag.Position, chain *diag.Chain) (ModuleName, bool) {
	n, err := ParseModuleName(text, true)
	if err == nil {
		return n, true
	}
	n, lenientErr := ParseModuleName(text, false)
	if lenientErr == nil {
		chain.Add(diag.Diagnostic{
			Severity: diag.SeverityWarning,
			Code:     diag.CodeInvalidName,
			Message:  fmt.Sprintf("module name %q does not follow naming rules, read as %q", text, n.String()),
			Pos:      pos,
			Cause:    err,
		})
		return n, true
	}
	chain.Add(diag.Diagnostic{
		Severity: diag.SeverityError,
		Code:     diag.CodeInvalidName,
		Message:  fmt.Sprintf("module name %q cannot be parsed", text),
		Pos:      pos,
		Cause:    lenientErr,
	})
	return ModuleName{}, false
}

// readVersion parses the release version, reporting an ERROR on failure.
func readVersion(text string, pos *diag.Position, b *Builder, chain *diag.Chain) {
	v, err := semver.Parse(text)
	if err != nil {
		chain.Add(diag.Diagnostic{
			Severity: diag.SeverityError,
			Code:     diag.CodeInvalidVersion,
			Message:  fmt.Sprintf("invalid version %q", text),
			Pos:      pos,
			Cause:    err,
		})
		return
	}
	b.SetVersion(v)
}

// readRange parses a declared range. An empty text means "any version"; an
// invalid one is reported and also read as any version.
func readRange(owner, text string, pos *diag.Position, chain *diag.Chain) semver.Range {
	if strings.TrimSpace(text) == "" {
		return semver.Any()
	}
	r, err := semver.ParseRange(text)
	if err != nil {
		chain.Add(diag.Diagnostic{
			Severity: diag.SeverityError,
			Code:     diag.CodeInvalidRange,
			Message:  fmt.Sprintf("invalid version range %q for %s", text, owner),
			Pos:      pos,
			Cause:    err,
		})
		return semver.Any()
	}
	return r
}

// checkLicense warns when license is not a valid SPDX expression.
func checkLicense(license string, pos *diag.Position, chain *diag.Chain) {
	if license == "" {
		return
	}
	if ok, _ := spdxexp.ValidateLicenses([]string{license}); !ok {
		chain.Addf(diag.SeverityWarning, diag.CodeInvalidLicense, pos,
			"license %q is not a valid SPDX license expression", license)
	}
}

// setSingle applies one single-string key.
func setSingle(k Key, value string, pos *diag.Position, b *Builder, chain *diag.Chain) {
	switch k {
	case KeyName:
		if n, ok := readName(value, pos, chain); ok {
			b.SetName(n)
		}
	case KeyVersion:
		readVersion(value, pos, b, chain)
	case KeyLicense:
		checkLicense(value, pos, chain)
		b.SetString(k, value)
	default:
		b.SetString(k, value)
	}
}
