// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

var allIds = []Id{
	DescriptorNotFoundId,
	DescriptorParseErrorId,
	ConfigLoadFailedId,
	ModuleNotFoundId,
	RegistryUnavailableId,
	DependencyCycleId,
	VersionMismatchId,
	StrictResolutionFailedId,
	ArchiveCorruptId,
	PermissionDeniedId,
}

// stubRender replaces glamour for the duration of a test.
func stubRender(t *testing.T) {
	t.Helper()
	original := render
	t.Cleanup(func() { render = original })
	render = func(in string, _ string) (string, error) { return in, nil }
}

func TestId_Constants(t *testing.T) {
	t.Parallel()

	seen := make(map[Id]bool)
	for _, id := range allIds {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}
	if DescriptorNotFoundId != 1 {
		t.Errorf("DescriptorNotFoundId = %d, want 1", DescriptorNotFoundId)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id       Id
		contains string
	}{
		{DescriptorNotFoundId, "No module descriptor found"},
		{DescriptorParseErrorId, "Failed to parse"},
		{ConfigLoadFailedId, "Failed to load configuration"},
		{ModuleNotFoundId, "Module not found"},
		{RegistryUnavailableId, "registry is unavailable"},
		{DependencyCycleId, "Circular dependency"},
		{VersionMismatchId, "does not satisfy"},
		{StrictResolutionFailedId, "strict mode"},
		{ArchiveCorruptId, "archive is corrupt"},
		{PermissionDeniedId, "Permission denied"},
	}
	for _, tt := range tests {
		issue := Get(tt.id)
		if issue == nil {
			t.Errorf("Get(%d) = nil", tt.id)
			continue
		}
		if issue.Id() != tt.id {
			t.Errorf("Get(%d).Id() = %d", tt.id, issue.Id())
		}
		if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
			t.Errorf("Get(%d).MarkdownMsg() does not contain %q", tt.id, tt.contains)
		}
	}

	if Get(Id(999)) != nil {
		t.Error("Get(999) should return nil")
	}
}

func TestIssue_LinksAreCloned(t *testing.T) {
	t.Parallel()

	issue := &Issue{id: 42, mdMsg: "# x", docLinks: []HttpLink{"https://example.com/docs"}}
	links := issue.DocLinks()
	links[0] = "modified"
	if issue.DocLinks()[0] != "https://example.com/docs" {
		t.Error("DocLinks() should return a clone")
	}
	if len(issue.ExtLinks()) != 0 {
		t.Errorf("ExtLinks() = %v, want empty", issue.ExtLinks())
	}
}

func TestIssue_Render_WithLinks(t *testing.T) {
	stubRender(t)

	issue := &Issue{
		id:       42,
		mdMsg:    "# Test Issue",
		docLinks: []HttpLink{"https://example.com/docs"},
		extLinks: []HttpLink{"https://example.com/external"},
	}
	rendered, err := issue.Render("")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"# Test Issue", "See also", "https://example.com/docs", "https://example.com/external"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("Render() output does not contain %q", want)
		}
	}
}

func TestIssue_Render_NoLinks(t *testing.T) {
	stubRender(t)

	rendered, err := (&Issue{id: 42, mdMsg: "# Test Issue"}).Render("")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(rendered, "See also") {
		t.Error("Render() should not add a links section without links")
	}
}

func TestValues(t *testing.T) {
	stubRender(t)

	values := Values()
	if len(values) != len(allIds) {
		t.Fatalf("Values() returned %d issues, want %d", len(values), len(allIds))
	}
	for i, issue := range values {
		if issue.Id() != allIds[i] {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, issue.Id(), allIds[i])
		}
		if issue.MarkdownMsg() == "" {
			t.Errorf("issue %d has an empty message", issue.Id())
		}
		if out, err := issue.Render(""); err != nil || out == "" {
			t.Errorf("issue %d failed to render: %q, %v", issue.Id(), out, err)
		}
	}
}
