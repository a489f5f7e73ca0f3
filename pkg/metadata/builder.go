// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"github.com/modforge/modforge/pkg/semver"
)

// Builder accumulates a Metadata while a descriptor is read. Build freezes
// the result; the builder is then cleared for reuse.
type Builder struct {
	m    *Metadata
	seen map[Key]bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.Clear()
	return b
}

// Clear discards everything set so far.
func (b *Builder) Clear() {
	b.m = &Metadata{}
	b.seen = map[Key]bool{}
}

// MarkSeen records that the descriptor declared k, whether or not its value
// was usable.
func (b *Builder) MarkSeen(k Key) { b.seen[k] = true }

// Seen reports whether MarkSeen was called for k since the last Clear.
func (b *Builder) Seen(k Key) bool { return b.seen[k] }

// SetFile records the descriptor path.
func (b *Builder) SetFile(file string) { b.m.File = file }

// SetName sets the module name.
func (b *Builder) SetName(n ModuleName) { b.m.Name = n }

// SetVersion sets the release version.
func (b *Builder) SetVersion(v semver.Version) { b.m.Version = &v }

// SetString sets one of the single-string attributes. It reports false for
// keys that are not plain strings.
func (b *Builder) SetString(k Key, value string) bool {
	switch k {
	case KeyAuthor:
		b.m.Author = value
	case KeyLicense:
		b.m.License = value
	case KeySummary:
		b.m.Summary = value
	case KeyDescription:
		b.m.Description = value
	case KeySource:
		b.m.Source = value
	case KeyProjectPage:
		b.m.ProjectPage = value
	case KeyIssuesURL:
		b.m.IssuesURL = value
	default:
		return false
	}
	return true
}

// AddTag appends a tag.
func (b *Builder) AddTag(tag string) { b.m.Tags = append(b.m.Tags, tag) }

// AddDependency appends a dependency.
func (b *Builder) AddDependency(d Dependency) { b.m.Dependencies = append(b.m.Dependencies, d) }

// AddRequirement appends a requirement.
func (b *Builder) AddRequirement(r Requirement) { b.m.Requirements = append(b.m.Requirements, r) }

// AddPlatform appends a supported platform.
func (b *Builder) AddPlatform(p PlatformSupport) {
	b.m.OperatingSystemSupport = append(b.m.OperatingSystemSupport, p)
}

// AddType appends a type declaration.
func (b *Builder) AddType(t TypeDecl) { b.m.Types = append(b.m.Types, t) }

// SetChecksum records a path digest.
func (b *Builder) SetChecksum(path, digest string) {
	if b.m.Checksums == nil {
		b.m.Checksums = map[string]string{}
	}
	b.m.Checksums[path] = digest
}

// SetDynamic preserves an unrecognized attribute.
func (b *Builder) SetDynamic(key string, value any) {
	if b.m.Dynamic == nil {
		b.m.Dynamic = map[string]any{}
	}
	b.m.Dynamic[key] = value
}

// Current exposes the metadata under construction for inspection.
func (b *Builder) Current() *Metadata { return b.m }

// Build returns the accumulated Metadata and clears the builder.
func (b *Builder) Build() *Metadata {
	m := b.m
	b.Clear()
	return m
}
