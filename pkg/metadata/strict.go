// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"fmt"

	cuejson "cuelang.org/go/encoding/json"

	"github.com/modforge/modforge/pkg/cueutil"
	"github.com/modforge/modforge/pkg/diag"
)

// JSONFile is the conventional name of a strict descriptor.
const JSONFile = "metadata.json"

// StrictReader reads the canonical JSON descriptor form.
type StrictReader struct{}

// ParseJSON reads a strict descriptor. Recoverable problems go to chain
// (which may be nil); a non-nil error means data is not a JSON object.
func ParseJSON(data []byte, file string, chain *diag.Chain) (*Metadata, error) {
	return parse(StrictReader{}, data, file, chain)
}

// Read implements Reader.
func (StrictReader) Read(data []byte, file string, b *Builder, chain *diag.Chain) error {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, file); err != nil {
		return &MalformedDescriptorError{File: file, Err: err}
	}
	expr, err := cuejson.Extract(file, data)
	if err != nil {
		line := 0
		if pos, ok := cueutil.FirstPosition(err); ok {
			line = pos.Line()
		}
		return &MalformedDescriptorError{File: file, Line: line, Err: err}
	}
	root, err := toNode(expr, file)
	if err != nil {
		return &MalformedDescriptorError{File: file, Err: err}
	}
	if root.kind != kindObject {
		return &MalformedDescriptorError{File: file, Line: root.pos.Line, Err: fmt.Errorf("top level is a %s, expected an object", root.kind)}
	}

	r := &strictRun{b: b, chain: chain}
	for _, f := range root.fields {
		r.field(f)
	}
	return nil
}

type strictRun struct {
	b     *Builder
	chain *diag.Chain
}

func (r *strictRun) field(f field) {
	pos := f.pos
	k, known := LookupKey(f.key)
	if !known {
		r.chain.Add(diag.Diagnostic{
			Severity: diag.SeverityWarning,
			Code:     diag.CodeUnrecognizedAttribute,
			Message:  fmt.Sprintf("unrecognized attribute %q", f.key),
			Pos:      &pos,
		})
		r.b.SetDynamic(f.key, f.value.plain())
		return
	}
	r.b.MarkSeen(k)

	if k.isSingleValue() {
		s, ok := f.value.str()
		if !ok {
			r.mismatch(f, "a string")
			return
		}
		valuePos := f.value.pos
		setSingle(k, s, &valuePos, r.b, r.chain)
		return
	}

	switch k {
	case KeyTags:
		r.tags(f)
	case KeyDependency, KeyDependencies:
		r.eachObject(f, r.dependency)
	case KeyRequirements:
		r.eachObject(f, r.requirement)
	case KeyOperatingSystemSupport:
		r.eachObject(f, r.platform)
	case KeyTypes:
		r.eachObject(f, r.typeDecl)
	case KeyChecksums:
		r.checksums(f)
	}
}

func (r *strictRun) mismatch(f field, want string) {
	pos := f.value.pos
	r.chain.Addf(diag.SeverityError, diag.CodeTypeMismatch, &pos,
		"attribute %q must be %s, got %s", f.key, want, f.value.kind)
}

func (r *strictRun) tags(f field) {
	if f.value.kind != kindArray {
		r.mismatch(f, "an array of strings")
		return
	}
	for _, e := range f.value.elems {
		s, ok := e.str()
		if !ok {
			pos := e.pos
			r.chain.Addf(diag.SeverityError, diag.CodeTypeMismatch, &pos, "tag must be a string")
			continue
		}
		r.b.AddTag(s)
	}
}

// eachObject applies fn to every object element of an array attribute.
func (r *strictRun) eachObject(f field, fn func(*node)) {
	if f.value.kind != kindArray {
		r.mismatch(f, "an array of objects")
		return
	}
	for _, e := range f.value.elems {
		if e.kind != kindObject {
			pos := e.pos
			r.chain.Addf(diag.SeverityError, diag.CodeTypeMismatch, &pos,
				"entries of %q must be objects, got %s", f.key, e.kind)
			continue
		}
		fn(e)
	}
}

// stringField returns an optional string member, reporting a non-string value.
func (r *strictRun) stringField(obj *node, key string) (string, bool) {
	v, ok := obj.lookup(key)
	if !ok {
		return "", false
	}
	s, isStr := v.str()
	if !isStr {
		pos := v.pos
		r.chain.Addf(diag.SeverityError, diag.CodeTypeMismatch, &pos, "%q must be a string, got %s", key, v.kind)
		return "", false
	}
	return s, true
}

// rangeText reads version_requirement, accepting version_range as an older spelling.
func (r *strictRun) rangeText(obj *node) string {
	if s, ok := r.stringField(obj, fieldVersionRequirement); ok {
		return s
	}
	s, _ := r.stringField(obj, fieldVersionRange)
	return s
}

func (r *strictRun) dependency(obj *node) {
	pos := obj.pos
	nameText, ok := r.stringField(obj, fieldName)
	if !ok {
		r.chain.Addf(diag.SeverityError, diag.CodeMissingRequiredField, &pos, "dependency is missing %q", fieldName)
		return
	}
	name, ok := readName(nameText, &pos, r.chain)
	if !ok {
		return
	}
	text := r.rangeText(obj)
	r.b.AddDependency(Dependency{
		Name:      name,
		Range:     readRange(name.String(), text, &pos, r.chain),
		RangeText: text,
		Pos:       &pos,
	})
}

func (r *strictRun) requirement(obj *node) {
	pos := obj.pos
	name, ok := r.stringField(obj, fieldName)
	if !ok {
		r.chain.Addf(diag.SeverityError, diag.CodeMissingRequiredField, &pos, "requirement is missing %q", fieldName)
		return
	}
	text := r.rangeText(obj)
	r.b.AddRequirement(Requirement{
		Name:      name,
		Range:     readRange(name, text, &pos, r.chain),
		RangeText: text,
		Pos:       &pos,
	})
}

func (r *strictRun) platform(obj *node) {
	pos := obj.pos
	name, ok := r.stringField(obj, fieldOperatingSystem)
	if !ok {
		r.chain.Addf(diag.SeverityError, diag.CodeMissingRequiredField, &pos, "platform is missing %q", fieldOperatingSystem)
		return
	}
	p := PlatformSupport{Name: name}
	if rel, ok := obj.lookup(fieldOSRelease); ok {
		p.Releases = r.stringList(rel, fieldOSRelease)
	}
	r.b.AddPlatform(p)
}

func (r *strictRun) typeDecl(obj *node) {
	pos := obj.pos
	name, ok := r.stringField(obj, fieldName)
	if !ok {
		r.chain.Addf(diag.SeverityError, diag.CodeMissingRequiredField, &pos, "type is missing %q", fieldName)
		return
	}
	t := TypeDecl{Name: name}
	t.Doc, _ = r.stringField(obj, fieldDoc)
	t.Parameters = r.namedItems(obj, fieldParameters)
	t.Properties = r.namedItems(obj, fieldProperties)
	t.Providers = r.namedItems(obj, fieldProviders)
	r.b.AddType(t)
}

func (r *strictRun) namedItems(obj *node, key string) []NamedItem {
	v, ok := obj.lookup(key)
	if !ok {
		return nil
	}
	var items []NamedItem
	r.eachObject(field{key: key, pos: v.pos, value: v}, func(e *node) {
		name, ok := r.stringField(e, fieldName)
		if !ok {
			return
		}
		doc, _ := r.stringField(e, fieldDoc)
		items = append(items, NamedItem{Name: name, Doc: doc})
	})
	return items
}

func (r *strictRun) stringList(v *node, key string) []string {
	if v.kind != kindArray {
		pos := v.pos
		r.chain.Addf(diag.SeverityError, diag.CodeTypeMismatch, &pos, "%q must be an array of strings", key)
		return nil
	}
	var out []string
	for _, e := range v.elems {
		if s, ok := e.str(); ok {
			out = append(out, s)
		}
	}
	return out
}

// checksums are loaded as-is: non-string digests are dropped silently.
func (r *strictRun) checksums(f field) {
	if f.value.kind != kindObject {
		r.mismatch(f, "an object")
		return
	}
	for _, c := range f.value.fields {
		if s, ok := c.value.str(); ok {
			r.b.SetChecksum(c.key, s)
		}
	}
}
