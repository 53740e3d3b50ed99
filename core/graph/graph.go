// Package graph holds the node-and-slot graph produced by a conversion.
//
// The converter talks to storage only through the Builder interface: it
// opens nodes, attaches features, terminates nodes and creates slots. Graph
// is the in-memory Builder; every slot created while a node is open becomes
// part of that node, which is what lets chapter and verse nodes span runs of
// words independently of markup nesting.
package graph

import (
	"fmt"
	"sort"
)

// NodeID identifies a node or slot. IDs are assigned in creation order,
// starting at 1.
type NodeID int

// NoNode is the zero NodeID, used for "no node open".
const NoNode NodeID = 0

// FeatureMeta describes a feature in the output metadata.
type FeatureMeta struct {
	Description string
	ValueType   ValueType
}

// Builder is the set of graph-construction actions the converter issues.
type Builder interface {
	// Node opens a node of the given type.
	Node(otype string) NodeID
	// Slot creates the next slot. Keys must be unique.
	Slot(key string) NodeID
	// Feature attaches features to a node or slot.
	Feature(n NodeID, fs Features)
	// Terminate closes a node. Closing NoNode or a closed node is a no-op.
	Terminate(n NodeID)
	// Get returns the value of a feature on a node.
	Get(n NodeID, name string) (Value, bool)
	// Occurs reports whether any node carries the feature.
	Occurs(name string) bool
	// FeatureNames returns the names of all features produced so far.
	FeatureNames() []string
	// Meta registers metadata for a feature.
	Meta(name string, m FeatureMeta)
}

type node struct {
	otype  string
	key    string
	slot   bool
	closed bool
	slots  []NodeID
}

// Graph is an in-memory Builder.
type Graph struct {
	slotType string
	nodes    []node
	slots    []NodeID
	open     []NodeID
	keys     map[string]NodeID
	features map[string]map[NodeID]Value
	meta     map[string]FeatureMeta
	err      error
}

// New returns an empty graph whose slots have the given type.
func New(slotType string) *Graph {
	return &Graph{
		slotType: slotType,
		keys:     make(map[string]NodeID),
		features: make(map[string]map[NodeID]Value),
		meta:     make(map[string]FeatureMeta),
	}
}

// Node implements Builder.
func (g *Graph) Node(otype string) NodeID {
	g.nodes = append(g.nodes, node{otype: otype})
	id := NodeID(len(g.nodes))
	g.open = append(g.open, id)
	return id
}

// Slot implements Builder. The new slot joins every open node.
func (g *Graph) Slot(key string) NodeID {
	if prev, dup := g.keys[key]; dup {
		if g.err == nil {
			g.err = fmt.Errorf("duplicate slot key %q (first used by node %d)", key, prev)
		}
		return NoNode
	}
	g.nodes = append(g.nodes, node{otype: g.slotType, key: key, slot: true, closed: true})
	id := NodeID(len(g.nodes))
	g.keys[key] = id
	g.slots = append(g.slots, id)
	for _, o := range g.open {
		g.nodes[o-1].slots = append(g.nodes[o-1].slots, id)
	}
	return id
}

// Feature implements Builder.
func (g *Graph) Feature(n NodeID, fs Features) {
	if !g.valid(n) {
		return
	}
	for _, f := range fs.items {
		m, ok := g.features[f.Name]
		if !ok {
			m = make(map[NodeID]Value)
			g.features[f.Name] = m
		}
		m[n] = f.Value
	}
}

// Terminate implements Builder.
func (g *Graph) Terminate(n NodeID) {
	if !g.valid(n) || g.nodes[n-1].closed {
		return
	}
	g.nodes[n-1].closed = true
	for i, o := range g.open {
		if o == n {
			g.open = append(g.open[:i], g.open[i+1:]...)
			break
		}
	}
}

// Get implements Builder.
func (g *Graph) Get(n NodeID, name string) (Value, bool) {
	if !g.valid(n) {
		return Value{}, false
	}
	v, ok := g.features[name][n]
	return v, ok
}

// Occurs implements Builder.
func (g *Graph) Occurs(name string) bool {
	return len(g.features[name]) > 0
}

// FeatureNames implements Builder. Names are sorted.
func (g *Graph) FeatureNames() []string {
	names := make([]string, 0, len(g.features))
	for name, m := range g.features {
		if len(m) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Meta implements Builder.
func (g *Graph) Meta(name string, m FeatureMeta) {
	if m.ValueType == "" {
		m.ValueType = TypeStr
	}
	g.meta[name] = m
}

// Err returns the first construction error, such as a duplicate slot key.
func (g *Graph) Err() error { return g.err }

func (g *Graph) valid(n NodeID) bool {
	return n > NoNode && int(n) <= len(g.nodes)
}

// SlotType returns the type of slots.
func (g *Graph) SlotType() string { return g.slotType }

// SlotCount returns the number of slots.
func (g *Graph) SlotCount() int { return len(g.slots) }

// NodeCount returns the number of nodes, slots included.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// SlotList returns the slots in corpus order.
func (g *Graph) SlotList() []NodeID {
	out := make([]NodeID, len(g.slots))
	copy(out, g.slots)
	return out
}

// Type returns the type of a node.
func (g *Graph) Type(n NodeID) string {
	if !g.valid(n) {
		return ""
	}
	return g.nodes[n-1].otype
}

// IsSlot reports whether n is a slot.
func (g *Graph) IsSlot(n NodeID) bool {
	return g.valid(n) && g.nodes[n-1].slot
}

// SlotKey returns the key a slot was created with.
func (g *Graph) SlotKey(n NodeID) string {
	if !g.valid(n) {
		return ""
	}
	return g.nodes[n-1].key
}

// Slots returns the slots contained in a node. A slot contains itself.
func (g *Graph) Slots(n NodeID) []NodeID {
	if !g.valid(n) {
		return nil
	}
	if g.nodes[n-1].slot {
		return []NodeID{n}
	}
	out := make([]NodeID, len(g.nodes[n-1].slots))
	copy(out, g.nodes[n-1].slots)
	return out
}

// Closed reports whether a node has been terminated.
func (g *Graph) Closed(n NodeID) bool {
	return g.valid(n) && g.nodes[n-1].closed
}

// OpenNodes returns the nodes that have not been terminated, oldest first.
func (g *Graph) OpenNodes() []NodeID {
	out := make([]NodeID, len(g.open))
	copy(out, g.open)
	return out
}

// NodesOfType returns all nodes of the given type in creation order.
func (g *Graph) NodesOfType(otype string) []NodeID {
	var out []NodeID
	for i, n := range g.nodes {
		if n.otype == otype {
			out = append(out, NodeID(i+1))
		}
	}
	return out
}

// Types returns the distinct node types, sorted.
func (g *Graph) Types() []string {
	seen := make(map[string]bool)
	for _, n := range g.nodes {
		seen[n.otype] = true
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Values returns all node values of a feature.
func (g *Graph) Values(name string) map[NodeID]Value {
	src := g.features[name]
	out := make(map[NodeID]Value, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Metadata returns a copy of the feature metadata table.
func (g *Graph) Metadata() map[string]FeatureMeta {
	out := make(map[string]FeatureMeta, len(g.meta))
	for k, v := range g.meta {
		out[k] = v
	}
	return out
}
