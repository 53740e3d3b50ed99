package convert

import (
	"strings"

	"github.com/FocuswithJustin/JuniperTF/core/graph"
	"github.com/FocuswithJustin/JuniperTF/core/xml"
)

// trueLiteral is the only flag value that is coerced.
const trueLiteral = "true"

// Normalizer maps raw attributes to canonical features.
type Normalizer struct {
	global map[string]string
	scoped map[string]map[string]string
	flags  map[string]bool
}

// NewNormalizer builds a Normalizer from rename rules and the names of
// boolean flag features (canonical names).
func NewNormalizer(renames []RenameRule, flags []string) *Normalizer {
	n := &Normalizer{
		global: make(map[string]string),
		scoped: make(map[string]map[string]string),
		flags:  make(map[string]bool, len(flags)),
	}
	for _, r := range renames {
		if r.Tag == "" {
			n.global[r.From] = r.To
			continue
		}
		m, ok := n.scoped[r.Tag]
		if !ok {
			m = make(map[string]string)
			n.scoped[r.Tag] = m
		}
		m[r.From] = r.To
	}
	for _, f := range flags {
		n.flags[f] = true
	}
	return n
}

// Normalize strips namespaces, applies renames and coerces "true" flags to 1.
// A "false" flag, or any other value, is kept as the original string.
func (n *Normalizer) Normalize(tag string, attrs []xml.Attr) graph.Features {
	var out graph.Features
	for _, a := range attrs {
		name := n.rename(tag, localName(a.Name))
		if n.flags[name] && a.Value == trueLiteral {
			out.Set(name, graph.Int(1))
			continue
		}
		out.Set(name, graph.Str(a.Value))
	}
	return out
}

func (n *Normalizer) rename(tag, name string) string {
	if to, ok := n.scoped[tag][name]; ok {
		return to
	}
	if to, ok := n.global[name]; ok {
		return to
	}
	return name
}

// localName drops "{uri}" and "prefix:" qualification.
func localName(name string) string {
	if strings.HasPrefix(name, "{") {
		if i := strings.IndexByte(name, '}'); i >= 0 {
			name = name[i+1:]
		}
	}
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
