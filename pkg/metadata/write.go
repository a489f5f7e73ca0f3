// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
)

type (
	jsonDependency struct {
		Name               string `json:"name"`
		VersionRequirement string `json:"version_requirement,omitempty"`
	}

	jsonPlatform struct {
		OperatingSystem        string   `json:"operatingsystem"`
		OperatingSystemRelease []string `json:"operatingsystemrelease,omitempty"`
	}

	jsonNamedItem struct {
		Name string `json:"name"`
		Doc  string `json:"doc,omitempty"`
	}

	jsonType struct {
		Name       string          `json:"name"`
		Doc        string          `json:"doc,omitempty"`
		Parameters []jsonNamedItem `json:"parameters,omitempty"`
		Properties []jsonNamedItem `json:"properties,omitempty"`
		Providers  []jsonNamedItem `json:"providers,omitempty"`
	}

	// member is one top-level key and its encoded value.
	member struct {
		key   string
		value any
	}
)

// Write serializes m as a strict descriptor. Recognized keys come first in
// canonical order, followed by dynamic attributes sorted by key. Empty
// optional attributes are omitted.
func Write(w io.Writer, m *Metadata) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Marshal returns the strict descriptor form of m.
func Marshal(m *Metadata) ([]byte, error) {
	members := make([]member, 0, len(keyOrder)+len(m.Dynamic))
	for _, k := range keyOrder {
		if v, ok := m.value(k); ok {
			members = append(members, member{key: string(k), value: v})
		}
	}
	for _, k := range slices.Sorted(maps.Keys(m.Dynamic)) {
		members = append(members, member{key: k, value: m.Dynamic[k]})
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, mem := range members {
		key, err := json.Marshal(mem.key)
		if err != nil {
			return nil, err
		}
		val, err := json.MarshalIndent(mem.value, "  ", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", mem.key, err)
		}
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
		if i < len(members)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// value returns the encodable value of k and whether it is set.
func (m *Metadata) value(k Key) (any, bool) {
	str := func(s string) (any, bool) { return s, s != "" }
	switch k {
	case KeyName:
		return str(m.Name.String())
	case KeyVersion:
		if m.Version == nil {
			return nil, false
		}
		return m.Version.String(), true
	case KeyAuthor:
		return str(m.Author)
	case KeyLicense:
		return str(m.License)
	case KeySummary:
		return str(m.Summary)
	case KeyDescription:
		return str(m.Description)
	case KeySource:
		return str(m.Source)
	case KeyProjectPage:
		return str(m.ProjectPage)
	case KeyIssuesURL:
		return str(m.IssuesURL)
	case KeyTags:
		return m.Tags, len(m.Tags) > 0
	case KeyDependencies:
		out := make([]jsonDependency, len(m.Dependencies))
		for i, d := range m.Dependencies {
			out[i] = jsonDependency{Name: d.Name.Slash(), VersionRequirement: d.RangeText}
		}
		return out, len(out) > 0
	case KeyRequirements:
		out := make([]jsonDependency, len(m.Requirements))
		for i, r := range m.Requirements {
			out[i] = jsonDependency{Name: r.Name, VersionRequirement: r.RangeText}
		}
		return out, len(out) > 0
	case KeyOperatingSystemSupport:
		out := make([]jsonPlatform, len(m.OperatingSystemSupport))
		for i, p := range m.OperatingSystemSupport {
			out[i] = jsonPlatform{OperatingSystem: p.Name, OperatingSystemRelease: p.Releases}
		}
		return out, len(out) > 0
	case KeyTypes:
		out := make([]jsonType, len(m.Types))
		for i, t := range m.Types {
			out[i] = jsonType{
				Name:       t.Name,
				Doc:        t.Doc,
				Parameters: namedItems(t.Parameters),
				Properties: namedItems(t.Properties),
				Providers:  namedItems(t.Providers),
			}
		}
		return out, len(out) > 0
	case KeyChecksums:
		// encoding/json sorts map keys.
		return m.Checksums, len(m.Checksums) > 0
	}
	return nil, false
}

func namedItems(items []NamedItem) []jsonNamedItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]jsonNamedItem, len(items))
	for i, it := range items {
		out[i] = jsonNamedItem(it)
	}
	return out
}
