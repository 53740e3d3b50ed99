package otext

import (
	"reflect"
	"testing"

	"github.com/FocuswithJustin/JuniperTF/core/errors"
	"github.com/FocuswithJustin/JuniperTF/core/graph"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		want   []Part
		fields []string
	}{
		{
			name:   "fields only",
			src:    "{text}{after}",
			want:   []Part{{Field: "text"}, {Field: "after"}},
			fields: []string{"text", "after"},
		},
		{
			name:   "literal separator",
			src:    "{lemma} / {gloss}",
			want:   []Part{{Field: "lemma"}, {Literal: " / "}, {Field: "gloss"}},
			fields: []string{"lemma", "gloss"},
		},
		{
			name:   "repeated field",
			src:    "{text}-{text}",
			want:   []Part{{Field: "text"}, {Literal: "-"}, {Field: "text"}},
			fields: []string{"text"},
		},
		{
			name: "empty",
			src:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.src, err)
			}
			if !reflect.DeepEqual(tpl.Parts, tt.want) {
				t.Errorf("Parts = %+v, want %+v", tpl.Parts, tt.want)
			}
			if !reflect.DeepEqual(tpl.Fields(), tt.fields) {
				t.Errorf("Fields() = %v, want %v", tpl.Fields(), tt.fields)
			}
		})
	}
}

func TestParseRejectsUnbalancedBraces(t *testing.T) {
	for _, src := range []string{"{text", "text}", "{}"} {
		_, err := Parse(src)
		if err == nil {
			t.Errorf("Parse(%q) should fail", src)
			continue
		}
		var pe *errors.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q) error %T, want *ParseError", src, err)
		}
	}
}

func TestRender(t *testing.T) {
	g := graph.New("w")
	verse := g.Node("verse")
	words := []struct{ text, after string }{{"Βίβλος", " "}, {"γενέσεως", ""}}
	for i, w := range words {
		s := g.Slot(string(rune('a' + i)))
		fs := graph.NewFeatures(graph.Feature{Name: "text", Value: graph.Str(w.text)})
		if w.after != "" {
			fs.Set("after", graph.Str(w.after))
		}
		g.Feature(s, fs)
	}
	g.Terminate(verse)

	tpl, err := Parse("{text}{after}")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := tpl.RenderNode(g, verse); got != "Βίβλος γενέσεως" {
		t.Errorf("RenderNode() = %q", got)
	}
	if got := tpl.Render(g, g.SlotList()[1]); got != "γενέσεως" {
		t.Errorf("Render() = %q", got)
	}
}
