// Package otext parses and renders text format templates such as
// "{text}{after}", which describe how the slots of a corpus spell out its
// plain text.
package otext

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/JuniperTF/core/errors"
	"github.com/FocuswithJustin/JuniperTF/core/graph"
)

// DefaultFormat is the format name used when none is given.
const DefaultFormat = "text-orig-full"

//nolint:govet // participle grammar tags are not standard struct tags
type templateGrammar struct {
	Parts []*partGrammar `parser:"@@*"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type partGrammar struct {
	Field   *string `parser:"  @Field"`
	Literal *string `parser:"| @Literal"`
}

var templateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Field", Pattern: `\{[A-Za-z_][A-Za-z0-9_\-]*\}`},
	{Name: "Literal", Pattern: `[^{}]+`},
})

var templateParser = participle.MustBuild[templateGrammar](
	participle.Lexer(templateLexer),
)

// Part is either a literal or a feature reference.
type Part struct {
	Literal string
	Field   string // Feature name; empty for literals
}

// Template is a parsed text format.
type Template struct {
	Source string
	Parts  []Part
}

// Parse parses a template. Braces must enclose a feature name.
func Parse(src string) (*Template, error) {
	t := &Template{Source: src}
	if src == "" {
		return t, nil
	}

	parsed, err := templateParser.ParseString("", src)
	if err != nil {
		pe := errors.NewParse("template", "", err.Error())
		pe.Err = err
		return nil, pe
	}

	for _, p := range parsed.Parts {
		switch {
		case p.Field != nil:
			t.Parts = append(t.Parts, Part{Field: strings.Trim(*p.Field, "{}")})
		case p.Literal != nil:
			t.Parts = append(t.Parts, Part{Literal: *p.Literal})
		}
	}
	return t, nil
}

// Fields returns the feature names referenced by the template, in order,
// without duplicates.
func (t *Template) Fields() []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range t.Parts {
		if p.Field != "" && !seen[p.Field] {
			seen[p.Field] = true
			out = append(out, p.Field)
		}
	}
	return out
}

// Reader is the read side of a graph needed for rendering.
type Reader interface {
	Get(n graph.NodeID, name string) (graph.Value, bool)
	Slots(n graph.NodeID) []graph.NodeID
}

// Render spells out one slot. Missing features render as empty strings.
func (t *Template) Render(g Reader, slot graph.NodeID) string {
	var sb strings.Builder
	t.render(&sb, g, slot)
	return sb.String()
}

// RenderNode spells out all slots of a node in corpus order.
func (t *Template) RenderNode(g Reader, n graph.NodeID) string {
	var sb strings.Builder
	for _, s := range g.Slots(n) {
		t.render(&sb, g, s)
	}
	return sb.String()
}

func (t *Template) render(sb *strings.Builder, g Reader, slot graph.NodeID) {
	for _, p := range t.Parts {
		if p.Field == "" {
			sb.WriteString(p.Literal)
			continue
		}
		if v, ok := g.Get(slot, p.Field); ok {
			sb.WriteString(v.String())
		}
	}
}
