package convert

import (
	"sort"

	"github.com/FocuswithJustin/JuniperTF/core/errors"
	"github.com/FocuswithJustin/JuniperTF/core/graph"
)

// commonFeatures are declared by both built-in profiles.
var commonFeatures = map[string]string{
	"book_num":            "NT book number (Matthew=1, Mark=2, ..., Revelation=27)",
	"book_short":          "Book name (abbreviated)",
	"sentence_number":     "Sentence number (counted per chapter)",
	"Rule":                "Clause rule",
	"appositioncontainer": "Apposition container",
	"articular":           "Articular",
	"class_wg":            "Syntactical class",
	"clauseType":          "Type of clause",
	"cltype":              "Type of clause",
	"junction":            "Type of junction",
	"nodeId":              "Node ID (as in the XML source data)",
	"role_wg":             "Role",
	"rule":                "Syntactical rule",
	"type_wg":             "Syntactical type",
	"text":                "the text of a word",
	"after":               "After the end of the word",
	"book":                "Book name (abbreviated)",
	"case":                "Type of case",
	"chapter":             "Number of the chapter",
	"class_w":             "Morphological class",
	"degree":              "Degree",
	"discontinuous":       "Discontinuous",
	"domain":              "domain",
	"frame":               "frame",
	"gender":              "gender",
	"gloss":               "gloss",
	"id":                  "xml iD",
	"lemma":               "lemma",
	"ln":                  "ln",
	"mood":                "verbal mood",
	"morph":               "morph",
	"normalized":          "lemma normalized",
	"number":              "number",
	"person":              "person",
	"ref":                 "biblical reference with word counting",
	"referent":            "number of referent",
	"role_w":              "role",
	"strong":              "strong number",
	"subjref":             "number",
	"tense":               "Verbal tense",
	"type_w":              "Morphological type",
	"unicode":             "lemma in unicode characters",
	"verse":               "verse",
	"voice":               "Verbal voice",
	"word_in_verse":       "number of word",
	"empty":               "whether a slot has been inserted in an empty element",
}

var commonIntFeatures = []string{
	"chapter",
	"verse",
	"book_num",
	"sentence_number",
	"nodeId",
	"strong",
	"word_in_verse",
	"empty",
}

func baseProfile(name string) *Profile {
	features := make(map[string]FeatureSpec, len(commonFeatures))
	for k, v := range commonFeatures {
		features[k] = FeatureSpec{Description: v}
	}
	for _, k := range commonIntFeatures {
		spec := features[k]
		spec.ValueType = graph.TypeInt
		features[k] = spec
	}

	return &Profile{
		Name:        name,
		SlotType:    "w",
		PassThrough: []string{"xml", "p", "milestone"},
		BookTag:     "book",
		SentenceTag: "sentence",
		RefAttr:     "ref",
		Separators:  " :!",
		IntFeatures: append([]string(nil), commonIntFeatures...),
		Features:    features,
		Ordinals: Ordinals{
			BookNum:  "book_num",
			BookCode: "book_short",
			BookID:   "id",
			Sentence: "sent_num",
			Word:     "word_num",
		},
		Text: TextConfig{
			Formats:         map[string]string{"text-orig-full": "{text}{after}"},
			SectionTypes:    []string{"book", "chapter", "verse"},
			SectionFeatures: []string{"book_short", "chapter", "verse"},
		},
		Generic: map[string]string{"sourceFormat": "XML"},
	}
}

// lowfatProfile converts the lowfat trees as they are: attribute names
// pass through unchanged and no flags are coerced.
func lowfatProfile() *Profile {
	return baseProfile("lowfat")
}

// maculaProfile disambiguates attributes shared by words and word groups
// and turns boolean flags into integers.
func maculaProfile() *Profile {
	p := baseProfile("macula")
	p.Renames = []RenameRule{
		{Tag: "wg", From: "class", To: "class_wg"},
		{Tag: "wg", From: "role", To: "role_wg"},
		{Tag: "wg", From: "type", To: "type_wg"},
		{Tag: "w", From: "class", To: "class_w"},
		{Tag: "w", From: "role", To: "role_w"},
		{Tag: "w", From: "type", To: "type_w"},
	}
	p.BoolFlags = []string{"appositioncontainer", "articular", "discontinuous", "empty"}
	p.Ordinals.Sentence = "sentence_number"
	p.Ordinals.Word = "word_in_verse"
	p.DemoSuppress = []string{"gloss"}
	return p
}

var builtins = map[string]func() *Profile{
	"lowfat": lowfatProfile,
	"macula": maculaProfile,
}

// Builtin returns a fresh copy of a built-in profile.
func Builtin(name string) (*Profile, error) {
	mk, ok := builtins[name]
	if !ok {
		return nil, errors.NewNotFound("profile", name)
	}
	return mk(), nil
}

// BuiltinNames lists the built-in profiles.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
