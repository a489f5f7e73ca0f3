// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/modforge/modforge/pkg/diag"
)

// LegacyFile is the conventional name of a legacy descriptor.
const LegacyFile = "Modulefile"

type (
	// LegacyReader reads the legacy call form, one declarative call per line:
	//
	//	name    'acme-widget'
	//	version '1.2.0'
	//	dependency 'acme/stdlib', '>= 4.0.0'
	LegacyReader struct{}

	// call is one statement: a symbol and its comma-separated arguments.
	call struct {
		symbol string
		args   []string
		pos    diag.Position
	}
)

// ParseModulefile reads a legacy descriptor. Recoverable problems go to
// chain (which may be nil); a non-nil error means data does not tokenize.
func ParseModulefile(data []byte, file string, chain *diag.Chain) (*Metadata, error) {
	return parse(LegacyReader{}, data, file, chain)
}

// Read implements Reader.
func (LegacyReader) Read(data []byte, file string, b *Builder, chain *diag.Chain) error {
	calls, err := tokenizeCalls(data, file)
	if err != nil {
		return err
	}
	for _, c := range calls {
		applyCall(c, b, chain)
	}
	return nil
}

// tokenizeCalls splits the descriptor into calls. The call grammar is a
// subset of POSIX shell words: quoted strings, bare words and commas.
func tokenizeCalls(data []byte, file string) ([]call, error) {
	f, err := syntax.NewParser(syntax.Variant(syntax.LangPOSIX)).Parse(bytes.NewReader(data), file)
	if err != nil {
		line := 0
		var perr syntax.ParseError
		var lerr syntax.LangError
		switch {
		case errors.As(err, &perr):
			line = int(perr.Pos.Line())
		case errors.As(err, &lerr):
			line = int(lerr.Pos.Line())
		}
		return nil, &MalformedDescriptorError{File: file, Line: line, Err: err}
	}

	var calls []call
	for _, stmt := range f.Stmts {
		ce, ok := stmt.Cmd.(*syntax.CallExpr)
		if !ok || len(ce.Args) == 0 || len(ce.Assigns) > 0 || len(stmt.Redirs) > 0 {
			return nil, &MalformedDescriptorError{
				File: file,
				Line: int(stmt.Pos().Line()),
				Err:  fmt.Errorf("expected a call statement"),
			}
		}
		symbol, err := literalWord(ce.Args[0])
		if err != nil {
			return nil, &MalformedDescriptorError{File: file, Line: int(stmt.Pos().Line()), Err: err}
		}
		args, err := callArgs(ce.Args[1:])
		if err != nil {
			return nil, &MalformedDescriptorError{File: file, Line: int(stmt.Pos().Line()), Err: err}
		}
		start, end := stmt.Pos(), stmt.End()
		calls = append(calls, call{
			symbol: symbol,
			args:   args,
			pos: diag.Position{
				File:   file,
				Line:   int(start.Line()),
				Offset: int(start.Offset()),
				Length: int(end.Offset() - start.Offset()),
			},
		})
	}
	return calls, nil
}

// callArgs joins the words after the symbol and splits them on unquoted commas.
func callArgs(words []*syntax.Word) ([]string, error) {
	var args []string
	var cur strings.Builder
	pending := false
	flush := func() {
		args = append(args, cur.String())
		cur.Reset()
		pending = false
	}

	for _, w := range words {
		if pending && !startsWithComma(w) {
			return nil, fmt.Errorf("missing comma before %q", wordText(w))
		}
		for _, part := range w.Parts {
			switch p := part.(type) {
			case *syntax.Lit:
				segs := strings.Split(p.Value, ",")
				for j, seg := range segs {
					if j > 0 {
						flush()
					}
					if seg != "" {
						cur.WriteString(seg)
						pending = true
					}
				}
			case *syntax.SglQuoted:
				cur.WriteString(p.Value)
				pending = true
			case *syntax.DblQuoted:
				for _, inner := range p.Parts {
					lit, ok := inner.(*syntax.Lit)
					if !ok {
						return nil, fmt.Errorf("expansions are not allowed in descriptor strings")
					}
					cur.WriteString(lit.Value)
				}
				pending = true
			default:
				return nil, fmt.Errorf("unsupported expression in call arguments")
			}
		}
	}
	if pending {
		flush()
	}
	return args, nil
}

func startsWithComma(w *syntax.Word) bool {
	lit, ok := w.Parts[0].(*syntax.Lit)
	return ok && strings.HasPrefix(lit.Value, ",")
}

func literalWord(w *syntax.Word) (string, error) {
	if s := w.Lit(); s != "" {
		return s, nil
	}
	return "", fmt.Errorf("expected a call symbol, got %q", wordText(w))
}

func wordText(w *syntax.Word) string {
	var sb strings.Builder
	if err := syntax.NewPrinter().Print(&sb, w); err != nil {
		return "?"
	}
	return sb.String()
}

func applyCall(c call, b *Builder, chain *diag.Chain) {
	pos := c.pos
	k, known := LookupKey(c.symbol)
	if !known {
		chain.Addf(diag.SeverityWarning, diag.CodeUnrecognizedAttribute, &pos, "unrecognized call %q", c.symbol)
		if len(c.args) == 1 {
			b.SetDynamic(c.symbol, c.args[0])
		} else {
			vals := make([]any, len(c.args))
			for i, a := range c.args {
				vals[i] = a
			}
			b.SetDynamic(c.symbol, vals)
		}
		return
	}
	b.MarkSeen(k)

	argCount := func(lo, hi int) bool {
		n := len(c.args)
		if n >= lo && (hi < 0 || n <= hi) {
			return true
		}
		want := fmt.Sprintf("%d", lo)
		switch {
		case hi < 0:
			want = fmt.Sprintf("at least %d", lo)
		case hi != lo:
			want = fmt.Sprintf("%d to %d", lo, hi)
		}
		chain.Addf(diag.SeverityError, diag.CodeUnexpectedArguments, &pos,
			"call %q on line %d expects %s argument(s), got %d", c.symbol, pos.Line, want, n)
		return false
	}

	if k.isSingleValue() {
		if argCount(1, 1) {
			setSingle(k, c.args[0], &pos, b, chain)
		}
		return
	}

	switch k {
	case KeyDependency, KeyDependencies:
		if !argCount(1, 3) {
			return
		}
		name, ok := readName(c.args[0], &pos, chain)
		if !ok {
			return
		}
		text := ""
		if len(c.args) > 1 {
			text = c.args[1]
		}
		if len(c.args) == 3 {
			chain.Addf(diag.SeverityWarning, diag.CodeUnexpectedArguments, &pos,
				"call %q on line %d: third argument %q is ignored", c.symbol, pos.Line, c.args[2])
		}
		b.AddDependency(Dependency{
			Name:      name,
			Range:     readRange(name.String(), text, &pos, chain),
			RangeText: text,
			Pos:       &pos,
		})
	case KeyRequirements:
		if !argCount(1, 2) {
			return
		}
		text := ""
		if len(c.args) == 2 {
			text = c.args[1]
		}
		b.AddRequirement(Requirement{
			Name:      c.args[0],
			Range:     readRange(c.args[0], text, &pos, chain),
			RangeText: text,
			Pos:       &pos,
		})
	case KeyTags:
		if argCount(1, -1) {
			for _, t := range c.args {
				b.AddTag(t)
			}
		}
	case KeyOperatingSystemSupport:
		if argCount(1, -1) {
			b.AddPlatform(PlatformSupport{Name: c.args[0], Releases: c.args[1:]})
		}
	case KeyTypes, KeyChecksums:
		chain.Addf(diag.SeverityWarning, diag.CodeUnsupportedAttribute, &pos,
			"call %q is not supported in %s and was ignored", c.symbol, LegacyFile)
	}
}
