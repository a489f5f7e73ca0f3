// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/literal"
	"cuelang.org/go/cue/token"

	"github.com/modforge/modforge/pkg/diag"
)

const (
	kindPrimitive nodeKind = iota
	kindArray
	kindObject
)

type (
	nodeKind int

	// node is a JSON element: a primitive, an array or an object.
	node struct {
		kind nodeKind
		// value holds a primitive: string, json.Number, bool or nil.
		value  any
		elems  []*node
		fields []field
		pos    diag.Position
	}

	field struct {
		key   string
		pos   diag.Position
		value *node
	}
)

func (k nodeKind) String() string {
	switch k {
	case kindArray:
		return "array"
	case kindObject:
		return "object"
	}
	return "primitive"
}

// toNode converts the position-carrying expression produced by the CUE JSON
// extractor.
func toNode(expr ast.Expr, file string) (*node, error) {
	n := &node{pos: position(expr, file)}
	switch x := expr.(type) {
	case *ast.StructLit:
		n.kind = kindObject
		for _, decl := range x.Elts {
			f, ok := decl.(*ast.Field)
			if !ok {
				return nil, fmt.Errorf("unexpected %T in object", decl)
			}
			key, err := labelName(f.Label)
			if err != nil {
				return nil, err
			}
			v, err := toNode(f.Value, file)
			if err != nil {
				return nil, err
			}
			n.fields = append(n.fields, field{key: key, pos: labelPosition(f.Label, file), value: v})
		}
	case *ast.ListLit:
		n.kind = kindArray
		for _, e := range x.Elts {
			v, err := toNode(e, file)
			if err != nil {
				return nil, err
			}
			n.elems = append(n.elems, v)
		}
	case *ast.BasicLit:
		v, err := basicValue(x)
		if err != nil {
			return nil, err
		}
		n.value = v
	case *ast.UnaryExpr:
		lit, ok := x.X.(*ast.BasicLit)
		if !ok || x.Op != token.SUB {
			return nil, fmt.Errorf("unexpected expression at %s", x.Pos())
		}
		n.value = json.Number("-" + lit.Value)
	case *ast.Ident:
		// Keywords may surface as identifiers.
		switch x.Name {
		case "true":
			n.value = true
		case "false":
			n.value = false
		case "null":
			n.value = nil
		default:
			return nil, fmt.Errorf("unexpected identifier %q", x.Name)
		}
	default:
		return nil, fmt.Errorf("unexpected %T", expr)
	}
	return n, nil
}

func basicValue(lit *ast.BasicLit) (any, error) {
	switch lit.Kind {
	case token.STRING:
		return literal.Unquote(lit.Value)
	case token.INT, token.FLOAT:
		return json.Number(lit.Value), nil
	case token.TRUE:
		return true, nil
	case token.FALSE:
		return false, nil
	case token.NULL:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected literal %s", lit.Value)
}

func labelName(l ast.Label) (string, error) {
	if lit, ok := l.(*ast.BasicLit); ok && lit.Kind == token.STRING {
		return literal.Unquote(lit.Value)
	}
	name, _, err := ast.LabelName(l)
	return name, err
}

func position(n ast.Node, file string) diag.Position {
	start, end := n.Pos(), n.End()
	p := diag.Position{File: file}
	if start.IsValid() {
		p.Line = start.Line()
		p.Offset = start.Offset()
		if end.IsValid() && end.Offset() > start.Offset() {
			p.Length = end.Offset() - start.Offset()
		}
	}
	return p
}

// labelPosition spans the quoted key. The extractor rewrites plain keys as
// identifiers, which drops the quotes from the span.
func labelPosition(l ast.Label, file string) diag.Position {
	p := position(l, file)
	if id, ok := l.(*ast.Ident); ok && p.Line > 0 {
		p.Length = len(id.Name) + 2
	}
	return p
}

// str returns the string value of a primitive node.
func (n *node) str() (string, bool) {
	if n.kind != kindPrimitive {
		return "", false
	}
	s, ok := n.value.(string)
	return s, ok
}

// lookup returns the named field of an object node.
func (n *node) lookup(key string) (*node, bool) {
	for _, f := range n.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return nil, false
}

// plain converts n to a JSON-shaped Go value.
func (n *node) plain() any {
	switch n.kind {
	case kindArray:
		out := make([]any, len(n.elems))
		for i, e := range n.elems {
			out[i] = e.plain()
		}
		return out
	case kindObject:
		out := make(map[string]any, len(n.fields))
		for _, f := range n.fields {
			out[f.key] = f.value.plain()
		}
		return out
	}
	return n.value
}
