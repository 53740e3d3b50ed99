package convert

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/JuniperTF/core/errors"
	"github.com/FocuswithJustin/JuniperTF/core/graph"
)

func TestBuiltinProfilesValidate(t *testing.T) {
	for _, name := range BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			p, err := Builtin(name)
			if err != nil {
				t.Fatalf("Builtin(%q) error = %v", name, err)
			}
			if err := p.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}

	if _, err := Builtin("nestle1904"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Builtin(unknown) error = %v, want not found", err)
	}
}

func TestBuiltinReturnsCopies(t *testing.T) {
	a, _ := Builtin("macula")
	a.Features["gloss"] = FeatureSpec{Description: "changed"}
	a.Renames[0].To = "changed"

	b, _ := Builtin("macula")
	if b.Features["gloss"].Description == "changed" || b.Renames[0].To == "changed" {
		t.Error("Builtin shares state between calls")
	}
}

func TestProfileValidateProblems(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Profile)
		want   string
	}{
		{"missing slot type", func(p *Profile) { p.SlotType = "" }, "slot_type"},
		{"missing ordinal", func(p *Profile) { p.Ordinals.Word = "" }, "ordinals.word"},
		{"empty rename", func(p *Profile) { p.Renames = []RenameRule{{From: "class"}} }, "renames.0.to"},
		{
			"conflicting renames",
			func(p *Profile) {
				p.Renames = []RenameRule{{Tag: "w", From: "class", To: "a"}, {Tag: "w", From: "class", To: "b"}}
			},
			`"w@class" renamed to both`,
		},
		{"undeclared book code", func(p *Profile) { delete(p.Features, "book_short") }, "book_short"},
		{"bad format", func(p *Profile) { p.Text.Formats["broken"] = "{text" }, "format broken"},
		{
			"section mismatch",
			func(p *Profile) { p.Text.SectionFeatures = p.Text.SectionFeatures[:2] },
			"3 section types but 2 section features",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := Builtin("lowfat")
			tt.modify(p)

			err := p.Validate()
			if !errors.Is(err, errors.ErrConfig) {
				t.Fatalf("Validate() error = %v, want config error", err)
			}
			var ce *errors.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error is %T, want *ConfigError", err)
			}
			if !strings.Contains(strings.Join(ce.Problems, "\n"), tt.want) {
				t.Errorf("problems %q do not mention %q", ce.Problems, tt.want)
			}
		})
	}
}

func TestProfileValueType(t *testing.T) {
	p, _ := Builtin("macula")
	tests := map[string]graph.ValueType{
		"chapter":    graph.TypeInt,
		"book_num":   graph.TypeInt,
		"lemma":      graph.TypeStr,
		"undeclared": graph.TypeStr,
	}
	for name, want := range tests {
		if got := p.ValueType(name); got != want {
			t.Errorf("ValueType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "sblgnt.yaml")
	yamlDoc := `
base: macula
name: sblgnt
demo_suppress: [gloss, normalized]
features:
  sdbh:
    description: semantic domain
int_features: [chapter, verse, book_num]
`
	if err := os.WriteFile(yamlPath, []byte(yamlDoc), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(yamlPath)
	if err != nil {
		t.Fatalf("LoadProfile(yaml) error = %v", err)
	}
	if p.Name != "sblgnt" {
		t.Errorf("Name = %q, want sblgnt", p.Name)
	}
	if p.Ordinals.Word != "word_in_verse" {
		t.Errorf("base not applied: word ordinal = %q", p.Ordinals.Word)
	}
	if len(p.DemoSuppress) != 2 {
		t.Errorf("DemoSuppress = %v", p.DemoSuppress)
	}
	if _, ok := p.Features["sdbh"]; !ok {
		t.Error("declared feature from file missing")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("loaded profile invalid: %v", err)
	}

	jsonPath := filepath.Join(dir, "plain.json")
	if err := os.WriteFile(jsonPath, []byte(`{"name":"plain","separators":" :."}`), 0644); err != nil {
		t.Fatal(err)
	}
	p, err = LoadProfile(jsonPath)
	if err != nil {
		t.Fatalf("LoadProfile(json) error = %v", err)
	}
	if p.Separators != " :." || p.SlotType != "w" {
		t.Errorf("json overlay = %q/%q", p.Separators, p.SlotType)
	}
}

func TestLoadProfileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadProfile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("name: [unterminated"), 0644)
	var pe *errors.ParseError
	if _, err := LoadProfile(bad); !errors.As(err, &pe) {
		t.Errorf("LoadProfile(bad) error = %v, want parse error", err)
	}

	unknown := filepath.Join(dir, "unknown.yaml")
	os.WriteFile(unknown, []byte("base: tischendorf\n"), 0644)
	if _, err := LoadProfile(unknown); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("LoadProfile(unknown base) error = %v, want not found", err)
	}
}
