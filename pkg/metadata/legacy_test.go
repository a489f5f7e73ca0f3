// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/semver"
)

const fullModulefile = `# Widget release
name 'acme-widget'
version '1.2.0'
author "Acme"
license 'Apache-2.0'
summary 'Widgets'
project_page 'https://example.com/widget'
dependency 'acme/stdlib', '>= 4.0.0'
dependency 'acme/concat' , '1.x'
dependency 'acme/apt', '2.x', 'https://forge.example.com'
tags 'widget', 'acme'
operatingsystem_support 'Debian', '11', '12'
requirements 'runtime', '>= 7.0.0'
`

func TestParseModulefileFull(t *testing.T) {
	t.Parallel()

	var chain diag.Chain
	m, err := ParseModulefile([]byte(fullModulefile), LegacyFile, &chain)
	if err != nil {
		t.Fatalf("ParseModulefile() error = %v", err)
	}
	if chain.HasErrors() {
		t.Fatalf("unexpected errors: %v", chain.Diagnostics())
	}
	if m.Name.String() != "acme-widget" || m.Version.String() != "1.2.0" {
		t.Errorf("identity = %s %v", m.Name, m.Version)
	}
	if m.Author != "Acme" || m.ProjectPage != "https://example.com/widget" {
		t.Errorf("strings = %q %q", m.Author, m.ProjectPage)
	}

	var names, ranges []string
	for _, d := range m.Dependencies {
		names = append(names, d.Name.Slash())
		ranges = append(ranges, d.RangeText)
	}
	if !slices.Equal(names, []string{"acme/stdlib", "acme/concat", "acme/apt"}) {
		t.Errorf("dependency names = %v", names)
	}
	if !slices.Equal(ranges, []string{">= 4.0.0", "1.x", "2.x"}) {
		t.Errorf("dependency ranges = %v", ranges)
	}
	if m.Dependencies[0].Pos == nil || m.Dependencies[0].Pos.Line != 8 {
		t.Errorf("dependency[0] position = %v, want line 8", m.Dependencies[0].Pos)
	}

	if !slices.Equal(m.Tags, []string{"widget", "acme"}) {
		t.Errorf("Tags = %v", m.Tags)
	}
	wantOS := []PlatformSupport{{Name: "Debian", Releases: []string{"11", "12"}}}
	if !reflect.DeepEqual(m.OperatingSystemSupport, wantOS) {
		t.Errorf("OperatingSystemSupport = %+v", m.OperatingSystemSupport)
	}
	if len(m.Requirements) != 1 || m.Requirements[0].RangeText != ">= 7.0.0" {
		t.Errorf("Requirements = %+v", m.Requirements)
	}

	warnings := chain.Filter(diag.CodeUnexpectedArguments)
	if len(warnings) != 1 {
		t.Fatalf("unexpected-argument diagnostics = %v, want one", chain.Diagnostics())
	}
	w := warnings[0]
	if w.Severity != diag.SeverityWarning || w.Pos.Line != 10 || !strings.Contains(w.Message, "line 10") {
		t.Errorf("third argument diagnostic = %v", w)
	}
}

func TestParseModulefileArgumentCounts(t *testing.T) {
	t.Parallel()

	doc := "name 'acme-widget'\nversion '1.2.0', '1.3.0'\ntags\nrequirements 'a', '1.x', 'extra'\ndependency\ndependency 'acme/stdlib'\n"
	var chain diag.Chain
	m, err := ParseModulefile([]byte(doc), LegacyFile, &chain)
	if err != nil {
		t.Fatalf("ParseModulefile() error = %v", err)
	}
	got := chain.Filter(diag.CodeUnexpectedArguments)
	wantLines := []int{2, 3, 4, 5}
	if len(got) != len(wantLines) {
		t.Fatalf("diagnostics = %v, want %d", got, len(wantLines))
	}
	for i, d := range got {
		if d.Severity != diag.SeverityError {
			t.Errorf("diagnostic %d severity = %s, want error", i, d.Severity)
		}
		if d.Pos.Line != wantLines[i] {
			t.Errorf("diagnostic %d line = %d, want %d", i, d.Pos.Line, wantLines[i])
		}
	}
	if !strings.Contains(got[0].Message, `"version"`) {
		t.Errorf("message %q should name the call", got[0].Message)
	}

	if m.Version != nil {
		t.Errorf("Version = %v, want unset", m.Version)
	}
	if missing := chain.Filter(diag.CodeMissingRequiredField); len(missing) != 0 {
		t.Errorf("a version call with bad arguments should not also be missing: %v", missing)
	}

	// A bare dependency name accepts any version.
	if len(m.Dependencies) != 1 || m.Dependencies[0].Name.String() != "acme-stdlib" {
		t.Fatalf("Dependencies = %+v", m.Dependencies)
	}
	if d := m.Dependencies[0]; d.RangeText != "" || !d.Range.Satisfies(semver.MustParse("0.0.1")) {
		t.Errorf("bare dependency range = %q, want any version", d.RangeText)
	}
}

func TestParseModulefileRecoverable(t *testing.T) {
	t.Parallel()

	doc := "name 'Acme-Widget'\nversion '1.0.0'\nmaintainer 'ops'\nhomepages 'a', 'b'\ntypes 'x'\n"
	var chain diag.Chain
	m, err := ParseModulefile([]byte(doc), LegacyFile, &chain)
	if err != nil {
		t.Fatalf("ParseModulefile() error = %v", err)
	}
	if chain.HasErrors() {
		t.Fatalf("unexpected errors: %v", chain.Diagnostics())
	}
	if m.Name.String() != "acme-widget" {
		t.Errorf("Name = %s, want lenient acme-widget", m.Name)
	}
	if n := len(chain.Filter(diag.CodeInvalidName)); n != 1 {
		t.Errorf("invalid name warnings = %d, want 1", n)
	}
	if n := len(chain.Filter(diag.CodeUnrecognizedAttribute)); n != 2 {
		t.Errorf("unrecognized call warnings = %d, want 2", n)
	}
	if n := len(chain.Filter(diag.CodeUnsupportedAttribute)); n != 1 {
		t.Errorf("unsupported call warnings = %d, want 1", n)
	}
	if m.Dynamic["maintainer"] != "ops" {
		t.Errorf("Dynamic[maintainer] = %v", m.Dynamic["maintainer"])
	}
	if !reflect.DeepEqual(m.Dynamic["homepages"], []any{"a", "b"}) {
		t.Errorf("Dynamic[homepages] = %v", m.Dynamic["homepages"])
	}
}

func TestParseModulefileMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		doc      string
		wantLine int
	}{
		{"unterminated quote", "name 'acme-widget'\nversion '1.0.0\n", 2},
		{"assignment", "name 'acme-widget'\nversion=1\n", 2},
		{"control flow", "if true; then name 'a'; fi\n", 1},
		{"command substitution", "name 'acme-widget'\nauthor $(whoami)\n", 2},
		{"expansion in string", "author \"$USER\"\n", 1},
		{"missing comma", "dependency 'acme/stdlib' '1.x'\n", 1},
		{"redirect", "name 'acme-widget' > out\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var chain diag.Chain
			_, err := ParseModulefile([]byte(tt.doc), LegacyFile, &chain)
			if !errors.Is(err, ErrMalformedDescriptor) {
				t.Fatalf("ParseModulefile() error = %v, want ErrMalformedDescriptor", err)
			}
			var mde *MalformedDescriptorError
			if !errors.As(err, &mde) {
				t.Fatalf("error %T is not *MalformedDescriptorError", err)
			}
			if tt.wantLine > 0 && mde.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", mde.Line, tt.wantLine)
			}
			if !chain.HasErrors() {
				t.Error("chain should record the malformed descriptor")
			}
		})
	}
}
