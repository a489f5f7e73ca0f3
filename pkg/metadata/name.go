// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ErrInvalidModuleName is the sentinel error wrapped by InvalidModuleNameError.
var ErrInvalidModuleName = errors.New("invalid module name")

var (
	// strictOwnerPattern and strictNamePattern are the published-module rules:
	// an alphanumeric owner and a lower-case name starting with a letter.
	strictOwnerPattern = regexp.MustCompile(`^[a-z0-9]+$`)
	strictNamePattern  = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

type (
	// ModuleName identifies a module by owner and short name. Values are
	// normalized to lower case and compare equal with ==.
	ModuleName struct {
		owner string
		name  string
	}

	// InvalidModuleNameError is returned when text cannot be read as a module name.
	InvalidModuleNameError struct {
		Value  string
		Strict bool
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidModuleNameError) Error() string {
	mode := "lenient"
	if e.Strict {
		mode = "strict"
	}
	return fmt.Sprintf("invalid module name %q (%s): %s", e.Value, mode, e.Reason)
}

// Unwrap returns ErrInvalidModuleName so callers can use errors.Is for programmatic detection.
func (e *InvalidModuleNameError) Unwrap() error { return ErrInvalidModuleName }

// ParseModuleName reads "owner-name" or "owner/name". In strict mode the text
// must already be lower case and each part must follow the published naming
// rules. Lenient mode lower-cases the input and requires two non-empty parts
// without whitespace that are usable as single path segments.
func ParseModuleName(text string, strict bool) (ModuleName, error) {
	invalid := func(reason string) (ModuleName, error) {
		return ModuleName{}, &InvalidModuleNameError{Value: text, Strict: strict, Reason: reason}
	}

	trimmed := strings.TrimSpace(text)
	sep := strings.IndexByte(trimmed, '/')
	if sep < 0 {
		sep = strings.IndexByte(trimmed, '-')
	}
	if sep <= 0 || sep == len(trimmed)-1 {
		return invalid(`expected "owner-name" or "owner/name"`)
	}
	owner, name := trimmed[:sep], trimmed[sep+1:]

	if strict {
		if trimmed != text {
			return invalid("surrounding whitespace")
		}
		if !strictOwnerPattern.MatchString(owner) {
			return invalid("owner must be lower-case letters and digits")
		}
		if !strictNamePattern.MatchString(name) {
			return invalid("name must start with a lower-case letter followed by letters, digits or underscores")
		}
		return ModuleName{owner: owner, name: name}, nil
	}

	if strings.ContainsFunc(trimmed, unicode.IsSpace) {
		return invalid("contains whitespace")
	}
	for _, part := range []string{owner, name} {
		if strings.ContainsAny(part, `/\`) {
			return invalid("parts must not contain path separators")
		}
		if part == "." || part == ".." {
			return invalid("parts must not be relative path elements")
		}
	}
	return ModuleName{owner: strings.ToLower(owner), name: strings.ToLower(name)}, nil
}

// MustParseModuleName is ParseModuleName in strict mode that panics on error.
func MustParseModuleName(text string) ModuleName {
	n, err := ParseModuleName(text, true)
	if err != nil {
		panic(err)
	}
	return n
}

// Owner returns the owner part.
func (n ModuleName) Owner() string { return n.owner }

// Name returns the short name, used as the install directory.
func (n ModuleName) Name() string { return n.name }

// IsZero reports whether n is the zero ModuleName.
func (n ModuleName) IsZero() bool { return n.owner == "" && n.name == "" }

// String returns the hyphenated form "owner-name".
func (n ModuleName) String() string {
	if n.IsZero() {
		return ""
	}
	return n.owner + "-" + n.name
}

// Slash returns "owner/name".
func (n ModuleName) Slash() string {
	if n.IsZero() {
		return ""
	}
	return n.owner + "/" + n.name
}

// Compare orders names by owner then short name.
func (n ModuleName) Compare(other ModuleName) int {
	if c := strings.Compare(n.owner, other.owner); c != 0 {
		return c
	}
	return strings.Compare(n.name, other.name)
}
