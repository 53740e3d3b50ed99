package graph

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/FocuswithJustin/JuniperTF/core/cas"
)

// Dump writes a canonical text rendering of the graph: nodes in creation
// order with their slot keys, then features by name, then metadata by name.
// Two conversions of the same input produce identical dumps.
func (g *Graph) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)

	for i, n := range g.nodes {
		id := NodeID(i + 1)
		if n.slot {
			fmt.Fprintf(bw, "S %d %s %q\n", id, n.otype, n.key)
			continue
		}
		fmt.Fprintf(bw, "N %d %s", id, n.otype)
		for _, s := range n.slots {
			fmt.Fprintf(bw, " %d", s)
		}
		bw.WriteByte('\n')
	}

	for _, name := range g.FeatureNames() {
		vals := g.features[name]
		ids := make([]NodeID, 0, len(vals))
		for id := range vals {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			v := vals[id]
			kind := "s"
			if v.IsInt() {
				kind = "i"
			}
			fmt.Fprintf(bw, "F %s %d %s %q\n", name, id, kind, v.String())
		}
	}

	names := make([]string, 0, len(g.meta))
	for name := range g.meta {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := g.meta[name]
		fmt.Fprintf(bw, "M %s %s %q\n", name, m.ValueType, m.Description)
	}

	return bw.Flush()
}

// Fingerprint returns the digests of the canonical dump.
func (g *Graph) Fingerprint() cas.HashResult {
	h := cas.NewHasher()
	// Writes to a Hasher never fail.
	_ = g.Dump(h)
	return h.Sum()
}
