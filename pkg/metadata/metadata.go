// SPDX-License-Identifier: MPL-2.0

// Package metadata models a module release descriptor and reads it from the
// strict JSON form (metadata.json) or the legacy call form (Modulefile).
//
// Both readers populate a Builder and report problems to a diag.Chain rather
// than failing: only a document that cannot be parsed at all is an error.
package metadata

import (
	"maps"
	"slices"

	packageurl "github.com/package-url/packageurl-go"

	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/semver"
)

// PURLType is the package-url type used for module releases.
const PURLType = "puppet"

type (
	// Dependency is a resolvable reference to another module.
	Dependency struct {
		Name ModuleName
		// Range is semver.Any() when no range was declared or the declared one was invalid.
		Range semver.Range
		// RangeText is the range as written; empty when none was declared.
		RangeText string
		// Pos is set when the dependency was read from text.
		Pos *diag.Position
	}

	// Requirement is a compatibility declaration (for example a runtime
	// version) recorded but never resolved against a registry.
	Requirement struct {
		Name      string
		Range     semver.Range
		RangeText string
		Pos       *diag.Position
	}

	// PlatformSupport declares an operating system and, optionally, releases of it.
	PlatformSupport struct {
		Name     string
		Releases []string
	}

	// NamedItem is a documented member of a type declaration.
	NamedItem struct {
		Name string
		Doc  string
	}

	// TypeDecl declares a resource type shipped by the module.
	TypeDecl struct {
		Name       string
		Doc        string
		Parameters []NamedItem
		Properties []NamedItem
		Providers  []NamedItem
	}

	// Metadata is one module release descriptor.
	Metadata struct {
		Name ModuleName
		// Version is nil when the descriptor did not declare a valid version.
		Version     *semver.Version
		Author      string
		License     string
		Summary     string
		Description string
		Source      string
		ProjectPage string
		IssuesURL   string
		Tags        []string

		Dependencies           []Dependency
		Requirements           []Requirement
		OperatingSystemSupport []PlatformSupport
		Types                  []TypeDecl

		// Checksums maps relative paths to digests. It is derived data and is
		// never validated on read.
		Checksums map[string]string

		// Dynamic holds unrecognized attributes. Values are JSON-shaped:
		// string, json.Number, bool, nil, []any or map[string]any.
		Dynamic map[string]any

		// File is the descriptor the metadata was read from, if any.
		File string
	}
)

// IsValid reports whether both name and version are present.
func (m *Metadata) IsValid() bool {
	return !m.Name.IsZero() && m.Version != nil
}

// ReleaseName returns "owner-name-version", the base name of release archives.
func (m *Metadata) ReleaseName() string {
	if m.Version == nil {
		return m.Name.String()
	}
	return m.Name.String() + "-" + m.Version.String()
}

// PURL returns the package-url identity of the release.
func (m *Metadata) PURL() string {
	return PURL(m.Name, m.Version)
}

// PURL formats a package-url for name at version. A nil version omits it.
func PURL(name ModuleName, version *semver.Version) string {
	v := ""
	if version != nil {
		v = version.String()
	}
	p := packageurl.NewPackageURL(PURLType, name.Owner(), name.Name(), v, nil, "")
	return p.ToString()
}

// Dependency returns the declared dependency on name.
func (m *Metadata) Dependency(name ModuleName) (Dependency, bool) {
	for _, d := range m.Dependencies {
		if d.Name == name {
			return d, true
		}
	}
	return Dependency{}, false
}

// Clone returns a deep copy of m.
func (m *Metadata) Clone() *Metadata {
	out := *m
	if m.Version != nil {
		v := *m.Version
		out.Version = &v
	}
	out.Tags = slices.Clone(m.Tags)
	out.Dependencies = slices.Clone(m.Dependencies)
	out.Requirements = slices.Clone(m.Requirements)
	out.OperatingSystemSupport = make([]PlatformSupport, len(m.OperatingSystemSupport))
	for i, p := range m.OperatingSystemSupport {
		out.OperatingSystemSupport[i] = PlatformSupport{Name: p.Name, Releases: slices.Clone(p.Releases)}
	}
	out.Types = make([]TypeDecl, len(m.Types))
	for i, t := range m.Types {
		out.Types[i] = TypeDecl{
			Name:       t.Name,
			Doc:        t.Doc,
			Parameters: slices.Clone(t.Parameters),
			Properties: slices.Clone(t.Properties),
			Providers:  slices.Clone(t.Providers),
		}
	}
	out.Checksums = maps.Clone(m.Checksums)
	out.Dynamic = maps.Clone(m.Dynamic)
	return &out
}
