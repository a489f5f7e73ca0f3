// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"encoding/json"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/semver"
)

const fullJSON = `{
  "name": "acme-widget",
  "version": "1.2.0",
  "author": "Acme",
  "license": "Apache-2.0",
  "summary": "Widgets",
  "source": "https://example.com/widget.git",
  "tags": ["widget", "acme"],
  "dependencies": [
    {"name": "acme/stdlib", "version_requirement": ">= 4.0.0 < 6.0.0"},
    {"name": "acme-concat", "version_range": "1.x"}
  ],
  "requirements": [{"name": "runtime", "version_requirement": ">= 7.0.0"}],
  "operatingsystem_support": [{"operatingsystem": "Debian", "operatingsystemrelease": ["11", "12"]}],
  "types": [{"name": "widget", "doc": "A widget.", "parameters": [{"name": "size", "doc": "Size."}]}],
  "checksums": {"manifests/init.pp": "not-validated"},
  "x_custom": {"nested": [1, true, null]}
}
`

func TestParseJSONFull(t *testing.T) {
	t.Parallel()

	var chain diag.Chain
	m, err := ParseJSON([]byte(fullJSON), JSONFile, &chain)
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if chain.HasErrors() {
		t.Fatalf("unexpected errors: %v", chain.Diagnostics())
	}
	if !m.IsValid() {
		t.Fatal("metadata should be valid")
	}
	if m.Name != MustParseModuleName("acme-widget") || m.Version.String() != "1.2.0" {
		t.Errorf("identity = %s %v", m.Name, m.Version)
	}
	if m.Author != "Acme" || m.License != "Apache-2.0" || m.Summary != "Widgets" {
		t.Errorf("strings = %q %q %q", m.Author, m.License, m.Summary)
	}
	if !slices.Equal(m.Tags, []string{"widget", "acme"}) {
		t.Errorf("Tags = %v", m.Tags)
	}

	if len(m.Dependencies) != 2 {
		t.Fatalf("len(Dependencies) = %d, want 2", len(m.Dependencies))
	}
	stdlib := m.Dependencies[0]
	if stdlib.Name.Slash() != "acme/stdlib" || stdlib.RangeText != ">= 4.0.0 < 6.0.0" {
		t.Errorf("dependency[0] = %s %q", stdlib.Name, stdlib.RangeText)
	}
	if !stdlib.Range.Satisfies(semver.MustParse("5.1.0")) || stdlib.Range.Satisfies(semver.MustParse("6.0.0")) {
		t.Error("dependency[0] range evaluated incorrectly")
	}
	if stdlib.Pos == nil || stdlib.Pos.Line != 10 {
		t.Errorf("dependency[0] position = %v, want line 10", stdlib.Pos)
	}
	if m.Dependencies[1].RangeText != "1.x" {
		t.Errorf("version_range spelling not accepted: %q", m.Dependencies[1].RangeText)
	}

	if len(m.Requirements) != 1 || m.Requirements[0].Name != "runtime" {
		t.Errorf("Requirements = %+v", m.Requirements)
	}
	wantOS := []PlatformSupport{{Name: "Debian", Releases: []string{"11", "12"}}}
	if !reflect.DeepEqual(m.OperatingSystemSupport, wantOS) {
		t.Errorf("OperatingSystemSupport = %+v", m.OperatingSystemSupport)
	}
	wantTypes := []TypeDecl{{Name: "widget", Doc: "A widget.", Parameters: []NamedItem{{Name: "size", Doc: "Size."}}}}
	if !reflect.DeepEqual(m.Types, wantTypes) {
		t.Errorf("Types = %+v", m.Types)
	}
	if m.Checksums["manifests/init.pp"] != "not-validated" {
		t.Errorf("Checksums = %v", m.Checksums)
	}

	wantDyn := map[string]any{"nested": []any{json.Number("1"), true, nil}}
	if !reflect.DeepEqual(m.Dynamic["x_custom"], wantDyn) {
		t.Errorf("Dynamic[x_custom] = %#v, want %#v", m.Dynamic["x_custom"], wantDyn)
	}
	if got := chain.Filter(diag.CodeUnrecognizedAttribute); len(got) != 1 || got[0].Severity != diag.SeverityWarning {
		t.Errorf("unrecognized attribute diagnostics = %v", got)
	}
}

func TestParseJSONMissingFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		missing []string
	}{
		{"missing version", `{"name": "acme-widget"}`, []string{"version"}},
		{"missing name", `{"version": "1.0.0"}`, []string{"name"}},
		{"missing both", `{}`, []string{"name", "version"}},
		{"invalid version", `{"name": "acme-widget", "version": "one"}`, nil},
		{"version of wrong type", `{"name": "acme-widget", "version": 1}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var chain diag.Chain
			m, err := ParseJSON([]byte(tt.doc), JSONFile, &chain)
			if err != nil {
				t.Fatalf("ParseJSON() error = %v, want partial result", err)
			}
			if m == nil {
				t.Fatal("ParseJSON() returned nil metadata")
			}
			missing := chain.Filter(diag.CodeMissingRequiredField)
			if len(missing) != len(tt.missing) {
				t.Fatalf("missing-field diagnostics = %v, want %d", missing, len(tt.missing))
			}
			for i, field := range tt.missing {
				if missing[i].Severity != diag.SeverityError || !strings.Contains(missing[i].Message, field) {
					t.Errorf("diagnostic %d = %v, want ERROR mentioning %q", i, missing[i], field)
				}
			}
		})
	}

	m, _ := ParseJSON([]byte(`{"name": "acme-widget"}`), JSONFile, nil)
	if m.Name.String() != "acme-widget" {
		t.Errorf("partial metadata lost the name: %v", m.Name)
	}
}

func TestParseJSONInvalidVersionReportedOnce(t *testing.T) {
	t.Parallel()

	var chain diag.Chain
	m, err := ParseJSON([]byte(`{"name": "acme-widget", "version": "one"}`), JSONFile, &chain)
	if err != nil {
		t.Fatal(err)
	}
	if m.Version != nil {
		t.Errorf("Version = %v, want unset", m.Version)
	}
	if got := chain.AtLeast(diag.SeverityError); len(got) != 1 || got[0].Code != diag.CodeInvalidVersion {
		t.Errorf("errors = %v, want a single invalid version", got)
	}
}

func TestParseJSONSingularDependencyKey(t *testing.T) {
	t.Parallel()

	doc := `{"name": "acme-widget", "version": "1.0.0",
		"dependency": [{"name": "acme/stdlib", "version_requirement": ">=1.0.0"}]}`
	var chain diag.Chain
	m, err := ParseJSON([]byte(doc), JSONFile, &chain)
	if err != nil {
		t.Fatal(err)
	}
	if n := chain.Len(); n != 0 {
		t.Errorf("diagnostics = %v, want none", chain.Diagnostics())
	}
	if len(m.Dependencies) != 1 || m.Dependencies[0].Name.String() != "acme-stdlib" {
		t.Fatalf("Dependencies = %+v", m.Dependencies)
	}
	if m.Dependencies[0].Range.Satisfies(semver.MustParse("0.9.0")) {
		t.Error("range >=1.0.0 should reject 0.9.0")
	}
	if _, ok := m.Dynamic["dependency"]; ok {
		t.Error("dependency should not be kept as a dynamic attribute")
	}

	var out strings.Builder
	if err := Write(&out, m); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"dependencies"`) || strings.Contains(out.String(), `"dependency"`) {
		t.Errorf("written descriptor should use the plural key:\n%s", out.String())
	}
}

func TestParseJSONRecoverable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		doc      string
		code     diag.Code
		severity diag.Severity
		check    func(t *testing.T, m *Metadata)
	}{
		{
			name:     "lenient name",
			doc:      `{"name": "Acme-Widget", "version": "1.0.0"}`,
			code:     diag.CodeInvalidName,
			severity: diag.SeverityWarning,
			check: func(t *testing.T, m *Metadata) {
				if m.Name.String() != "acme-widget" {
					t.Errorf("Name = %s, want acme-widget", m.Name)
				}
			},
		},
		{
			name:     "unparsable name",
			doc:      `{"name": "widget", "version": "1.0.0"}`,
			code:     diag.CodeInvalidName,
			severity: diag.SeverityError,
			check: func(t *testing.T, m *Metadata) {
				if !m.Name.IsZero() {
					t.Errorf("Name = %s, want zero", m.Name)
				}
			},
		},
		{
			name: "invalid range keeps siblings",
			doc: `{"name": "acme-widget", "version": "1.0.0", "dependencies": [
				{"name": "acme-a", "version_requirement": ">=> 1"},
				{"name": "acme-b", "version_requirement": "2.x"}]}`,
			code:     diag.CodeInvalidRange,
			severity: diag.SeverityError,
			check: func(t *testing.T, m *Metadata) {
				if len(m.Dependencies) != 2 {
					t.Fatalf("len(Dependencies) = %d, want 2", len(m.Dependencies))
				}
				if !m.Dependencies[0].Range.Satisfies(semver.MustParse("9.9.9")) {
					t.Error("invalid range should read as any version")
				}
			},
		},
		{
			name:     "dependency without name",
			doc:      `{"name": "acme-widget", "version": "1.0.0", "dependencies": [{"version_requirement": "1.x"}]}`,
			code:     diag.CodeMissingRequiredField,
			severity: diag.SeverityError,
			check: func(t *testing.T, m *Metadata) {
				if len(m.Dependencies) != 0 {
					t.Errorf("Dependencies = %v, want none", m.Dependencies)
				}
			},
		},
		{
			name:     "type mismatch",
			doc:      `{"name": "acme-widget", "version": "1.0.0", "author": 5}`,
			code:     diag.CodeTypeMismatch,
			severity: diag.SeverityError,
			check: func(t *testing.T, m *Metadata) {
				if m.Author != "" {
					t.Errorf("Author = %q, want empty", m.Author)
				}
			},
		},
		{
			name:     "tags not an array",
			doc:      `{"name": "acme-widget", "version": "1.0.0", "tags": "a"}`,
			code:     diag.CodeTypeMismatch,
			severity: diag.SeverityError,
			check:    func(*testing.T, *Metadata) {},
		},
		{
			name:     "non-spdx license",
			doc:      `{"name": "acme-widget", "version": "1.0.0", "license": "Do What You Like"}`,
			code:     diag.CodeInvalidLicense,
			severity: diag.SeverityWarning,
			check: func(t *testing.T, m *Metadata) {
				if m.License != "Do What You Like" {
					t.Errorf("License = %q, want value kept", m.License)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var chain diag.Chain
			m, err := ParseJSON([]byte(tt.doc), JSONFile, &chain)
			if err != nil {
				t.Fatalf("ParseJSON() error = %v", err)
			}
			got := chain.Filter(tt.code)
			if len(got) != 1 {
				t.Fatalf("%s diagnostics = %v, want exactly one", tt.code, chain.Diagnostics())
			}
			if got[0].Severity != tt.severity {
				t.Errorf("severity = %s, want %s", got[0].Severity, tt.severity)
			}
			if got[0].Pos == nil || got[0].Pos.File != JSONFile {
				t.Errorf("position = %v, want file %s", got[0].Pos, JSONFile)
			}
			tt.check(t, m)
		})
	}
}

func TestParseJSONPositions(t *testing.T) {
	t.Parallel()

	doc := "{\n  \"name\": \"acme-widget\",\n  \"version\": \"1.0.0\",\n  \"bogus\": 1\n}\n"
	var chain diag.Chain
	if _, err := ParseJSON([]byte(doc), "a/metadata.json", &chain); err != nil {
		t.Fatal(err)
	}
	got := chain.Filter(diag.CodeUnrecognizedAttribute)
	if len(got) != 1 {
		t.Fatalf("diagnostics = %v", chain.Diagnostics())
	}
	pos := got[0].Pos
	if pos.File != "a/metadata.json" || pos.Line != 4 {
		t.Errorf("position = %s, want a/metadata.json:4", pos)
	}
	if want := strings.Index(doc, `"bogus"`); pos.Offset != want {
		t.Errorf("offset = %d, want %d", pos.Offset, want)
	}
	if pos.Length != len(`"bogus"`) {
		t.Errorf("length = %d, want %d", pos.Length, len(`"bogus"`))
	}
}

func TestParseJSONMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"truncated", `{"name": `},
		{"not json", `name = "acme-widget"`},
		{"array", `[1, 2]`},
		{"string", `"acme-widget"`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var chain diag.Chain
			m, err := ParseJSON([]byte(tt.doc), JSONFile, &chain)
			if err == nil {
				t.Fatalf("ParseJSON() = %+v, want error", m)
			}
			if !errors.Is(err, ErrMalformedDescriptor) {
				t.Errorf("error %v does not wrap ErrMalformedDescriptor", err)
			}
			var mde *MalformedDescriptorError
			if !errors.As(err, &mde) || mde.File != JSONFile {
				t.Errorf("error = %#v, want *MalformedDescriptorError for %s", err, JSONFile)
			}
			if len(chain.Filter(diag.CodeMalformedDescriptor)) != 1 {
				t.Errorf("diagnostics = %v, want one malformed_descriptor", chain.Diagnostics())
			}
		})
	}
}

func TestMetadataIdentity(t *testing.T) {
	t.Parallel()

	m, err := ParseJSON([]byte(fullJSON), JSONFile, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := m.PURL(), "pkg:puppet/acme/widget@1.2.0"; got != want {
		t.Errorf("PURL() = %q, want %q", got, want)
	}
	if got, want := m.ReleaseName(), "acme-widget-1.2.0"; got != want {
		t.Errorf("ReleaseName() = %q, want %q", got, want)
	}
	if got, want := PURL(m.Name, nil), "pkg:puppet/acme/widget"; got != want {
		t.Errorf("PURL(nil) = %q, want %q", got, want)
	}
	if _, ok := m.Dependency(MustParseModuleName("acme/concat")); !ok {
		t.Error("Dependency(acme/concat) not found")
	}

	c := m.Clone()
	c.Tags[0] = "changed"
	c.OperatingSystemSupport[0].Releases[0] = "10"
	c.Checksums["manifests/init.pp"] = "changed"
	if m.Tags[0] != "widget" || m.OperatingSystemSupport[0].Releases[0] != "11" || m.Checksums["manifests/init.pp"] != "not-validated" {
		t.Error("Clone() shares state with the original")
	}
}
