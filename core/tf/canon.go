package tf

import (
	"sort"

	"github.com/FocuswithJustin/JuniperTF/core/graph"
)

// TypeRange is the contiguous block of output numbers held by one node type.
type TypeRange struct {
	Type  string
	First int
	Last  int
}

// Numbering maps build-time node IDs to output node numbers.
type Numbering struct {
	// Order lists build IDs by output number; Order[0] is node 1.
	Order []graph.NodeID
	// Ranges lists the type blocks, slots first.
	Ranges []TypeRange
	// Dropped lists non-slot nodes that span no slots and cannot be written.
	Dropped []graph.NodeID

	index map[graph.NodeID]int
}

// Number returns the output number of build ID n, or 0 if n is not written.
func (nb *Numbering) Number(n graph.NodeID) int {
	return nb.index[n]
}

// MaxSlot returns the number of the last slot.
func (nb *Numbering) MaxSlot() int {
	if len(nb.Ranges) == 0 {
		return 0
	}
	return nb.Ranges[0].Last
}

// Canonical numbers the graph: slots first in creation order, then one
// block per node type. Types with the larger average span come first; within
// a type nodes are ordered by first slot, longer span first, then creation.
func Canonical(g *graph.Graph) *Numbering {
	nb := &Numbering{index: make(map[graph.NodeID]int)}

	slots := g.SlotList()
	for _, s := range slots {
		nb.Order = append(nb.Order, s)
		nb.index[s] = len(nb.Order)
	}
	if len(slots) > 0 {
		nb.Ranges = append(nb.Ranges, TypeRange{Type: g.SlotType(), First: 1, Last: len(slots)})
	}

	type member struct {
		id    graph.NodeID
		first int
		span  int
	}
	byType := make(map[string][]member)
	avg := make(map[string]float64)

	for _, otype := range g.Types() {
		if otype == g.SlotType() {
			continue
		}
		total := 0
		for _, n := range g.NodesOfType(otype) {
			if g.IsSlot(n) {
				continue
			}
			ss := g.Slots(n)
			if len(ss) == 0 {
				nb.Dropped = append(nb.Dropped, n)
				continue
			}
			byType[otype] = append(byType[otype], member{id: n, first: nb.index[ss[0]], span: len(ss)})
			total += len(ss)
		}
		if m := byType[otype]; len(m) > 0 {
			avg[otype] = float64(total) / float64(len(m))
		}
	}

	types := make([]string, 0, len(byType))
	for otype := range byType {
		types = append(types, otype)
	}
	sort.Slice(types, func(i, j int) bool {
		if avg[types[i]] != avg[types[j]] {
			return avg[types[i]] > avg[types[j]]
		}
		return types[i] < types[j]
	})

	for _, otype := range types {
		members := byType[otype]
		sort.SliceStable(members, func(i, j int) bool {
			a, b := members[i], members[j]
			if a.first != b.first {
				return a.first < b.first
			}
			if a.span != b.span {
				return a.span > b.span
			}
			return a.id < b.id
		})
		r := TypeRange{Type: otype, First: len(nb.Order) + 1}
		for _, m := range members {
			nb.Order = append(nb.Order, m.id)
			nb.index[m.id] = len(nb.Order)
		}
		r.Last = len(nb.Order)
		nb.Ranges = append(nb.Ranges, r)
	}

	sort.Slice(nb.Dropped, func(i, j int) bool { return nb.Dropped[i] < nb.Dropped[j] })
	return nb
}
