package convert

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/JuniperTF/core/errors"
	"github.com/FocuswithJustin/JuniperTF/core/graph"
	"github.com/FocuswithJustin/JuniperTF/core/graph/otext"
)

// FeatureSpec declares one feature of the output.
type FeatureSpec struct {
	Description string          `yaml:"description" json:"description"`
	ValueType   graph.ValueType `yaml:"value_type,omitempty" json:"value_type,omitempty"`
}

// RenameRule maps a raw attribute name to its canonical feature name.
// A rule with a Tag only applies to elements with that tag and takes
// precedence over an untagged rule for the same attribute.
type RenameRule struct {
	Tag  string `yaml:"tag,omitempty" json:"tag,omitempty"`
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Validate implements validation.Validatable.
func (r RenameRule) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.Required),
	)
}

// Ordinals names the features synthesized by the walker.
type Ordinals struct {
	BookNum  string `yaml:"book_num" json:"book_num"`
	BookCode string `yaml:"book_code" json:"book_code"`
	BookID   string `yaml:"book_id" json:"book_id"`
	Sentence string `yaml:"sentence" json:"sentence"`
	Word     string `yaml:"word" json:"word"`
}

// Validate implements validation.Validatable.
func (o Ordinals) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.BookNum, validation.Required),
		validation.Field(&o.BookCode, validation.Required),
		validation.Field(&o.BookID, validation.Required),
		validation.Field(&o.Sentence, validation.Required),
		validation.Field(&o.Word, validation.Required),
	)
}

// TextConfig carries the text formats and section structure of the output.
type TextConfig struct {
	Formats         map[string]string `yaml:"formats" json:"formats"`
	SectionTypes    []string          `yaml:"section_types" json:"section_types"`
	SectionFeatures []string          `yaml:"section_features" json:"section_features"`
}

// Profile is the static configuration of a conversion. The two source
// corpora differ only in their profile, not in code.
type Profile struct {
	Name         string                 `yaml:"name" json:"name"`
	SlotType     string                 `yaml:"slot_type" json:"slot_type"`
	PassThrough  []string               `yaml:"pass_through" json:"pass_through"`
	BookTag      string                 `yaml:"book_tag" json:"book_tag"`
	SentenceTag  string                 `yaml:"sentence_tag" json:"sentence_tag"`
	RefAttr      string                 `yaml:"ref_attr" json:"ref_attr"`
	Separators   string                 `yaml:"separators" json:"separators"`
	Renames      []RenameRule           `yaml:"renames" json:"renames"`
	BoolFlags    []string               `yaml:"bool_flags" json:"bool_flags"`
	IntFeatures  []string               `yaml:"int_features" json:"int_features"`
	Features     map[string]FeatureSpec `yaml:"features" json:"features"`
	Ordinals     Ordinals               `yaml:"ordinals" json:"ordinals"`
	DemoSuppress []string               `yaml:"demo_suppress" json:"demo_suppress"`
	Text         TextConfig             `yaml:"text" json:"text"`
	Generic      map[string]string      `yaml:"generic" json:"generic"`
}

// Validate checks the profile before any document is walked and returns a
// *errors.ConfigError listing every problem found.
func (p *Profile) Validate() error {
	err := validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.SlotType, validation.Required),
		validation.Field(&p.BookTag, validation.Required),
		validation.Field(&p.SentenceTag, validation.Required),
		validation.Field(&p.RefAttr, validation.Required),
		validation.Field(&p.Separators, validation.Required),
		validation.Field(&p.Renames, validation.By(checkRenameConflicts)),
		validation.Field(&p.Ordinals),
		validation.Field(&p.Features, validation.Required, validation.By(p.checkRequiredFeatures)),
		validation.Field(&p.Text, validation.By(checkFormats)),
	)
	if err == nil {
		return nil
	}

	var problems []string
	if verrs, ok := err.(validation.Errors); ok {
		problems = flattenErrors("", verrs)
	} else {
		problems = []string{err.Error()}
	}
	return &errors.ConfigError{Profile: p.Name, Problems: problems}
}

func flattenErrors(prefix string, verrs validation.Errors) []string {
	keys := make([]string, 0, len(verrs))
	for k := range verrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		if nested, ok := verrs[k].(validation.Errors); ok {
			out = append(out, flattenErrors(name, nested)...)
			continue
		}
		out = append(out, fmt.Sprintf("%s: %v", name, verrs[k]))
	}
	return out
}

func checkRenameConflicts(value interface{}) error {
	rules, _ := value.([]RenameRule)
	seen := make(map[string]string)
	for _, r := range rules {
		scope := r.Tag + "\x00" + r.From
		if prev, ok := seen[scope]; ok && prev != r.To {
			return fmt.Errorf("%q renamed to both %q and %q", scopeLabel(r), prev, r.To)
		}
		seen[scope] = r.To
	}
	return nil
}

func scopeLabel(r RenameRule) string {
	if r.Tag == "" {
		return r.From
	}
	return r.Tag + "@" + r.From
}

// checkRequiredFeatures requires the features the graph structure depends
// on to be declared: book ordinal and code, and every section feature.
func (p *Profile) checkRequiredFeatures(value interface{}) error {
	required := []string{p.Ordinals.BookNum, p.Ordinals.BookCode}
	required = append(required, p.Text.SectionFeatures...)

	var missing []string
	for _, name := range required {
		if name == "" {
			continue
		}
		if _, ok := p.Features[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required features not declared: %s", strings.Join(missing, ", "))
	}
	return nil
}

func checkFormats(value interface{}) error {
	tc, _ := value.(TextConfig)
	names := make([]string, 0, len(tc.Formats))
	for name := range tc.Formats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := otext.Parse(tc.Formats[name]); err != nil {
			return fmt.Errorf("format %s: %w", name, err)
		}
	}
	if len(tc.SectionTypes) != len(tc.SectionFeatures) {
		return fmt.Errorf("%d section types but %d section features", len(tc.SectionTypes), len(tc.SectionFeatures))
	}
	return nil
}

// ValueType returns the declared type of a feature. Undeclared features
// are strings.
func (p *Profile) ValueType(name string) graph.ValueType {
	for _, f := range p.IntFeatures {
		if f == name {
			return graph.TypeInt
		}
	}
	if spec, ok := p.Features[name]; ok && spec.ValueType != "" {
		return spec.ValueType
	}
	return graph.TypeStr
}

// FeatureNames returns the declared feature names, sorted.
func (p *Profile) FeatureNames() []string {
	names := make([]string, 0, len(p.Features))
	for name := range p.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// profileHeader is decoded first to find the base profile of a file.
type profileHeader struct {
	Base string `yaml:"base" json:"base"`
}

// LoadProfile reads a profile file (YAML, or JSON by extension) and overlays
// it on its base profile, "lowfat" unless the file names another.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}

	format := "YAML"
	unmarshal := yaml.Unmarshal
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		format = "JSON"
		unmarshal = json.Unmarshal
	}

	var hdr profileHeader
	if err := unmarshal(data, &hdr); err != nil {
		pe := errors.NewParse(format, path, err.Error())
		pe.Err = err
		return nil, pe
	}
	if hdr.Base == "" {
		hdr.Base = "lowfat"
	}

	base, err := Builtin(hdr.Base)
	if err != nil {
		return nil, err
	}
	if err := unmarshal(data, base); err != nil {
		pe := errors.NewParse(format, path, err.Error())
		pe.Err = err
		return nil, pe
	}
	return base, nil
}
