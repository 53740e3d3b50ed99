// Package encoding provides the text escaping used by the feature file
// writers.
package encoding

import (
	"strings"
)

var tfEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"\t", "\\t",
	"\n", "\\n",
)

// EscapeTF escapes a feature value for a data line: backslash, tab and
// newline become \\, \t and \n.
func EscapeTF(s string) string {
	return tfEscaper.Replace(s)
}

// EscapeMeta makes a value safe for a single @key=value header line.
// Line breaks become spaces.
func EscapeMeta(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}
