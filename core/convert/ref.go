package convert

import (
	"strings"

	"github.com/FocuswithJustin/JuniperTF/core/errors"
)

// Reference holds the coordinates encoded in a word reference such as
// "Mat 1:1!3".
type Reference struct {
	Book    string
	Chapter string
	Verse   string
	Word    string
}

// RefParser splits reference strings on a fixed set of separator characters.
type RefParser struct {
	seps string
}

// NewRefParser returns a parser that splits on any rune in seps.
func NewRefParser(seps string) *RefParser {
	return &RefParser{seps: seps}
}

// Parse splits s into exactly four coordinates. Every separator starts a
// new field, so adjacent separators produce an empty field and the
// reference is rejected.
func (p *RefParser) Parse(s string) (Reference, error) {
	fields := p.split(s)
	if len(fields) != 4 {
		return Reference{}, errors.NewReference(s, len(fields))
	}
	return Reference{
		Book:    fields[0],
		Chapter: fields[1],
		Verse:   fields[2],
		Word:    fields[3],
	}, nil
}

func (p *RefParser) split(s string) []string {
	var fields []string
	start := 0
	for i, r := range s {
		if strings.ContainsRune(p.seps, r) {
			fields = append(fields, s[start:i])
			start = i + len(string(r))
		}
	}
	return append(fields, s[start:])
}
