package convert

import (
	"github.com/FocuswithJustin/JuniperTF/core/graph"
)

// BoundaryTracker opens and closes chapter and verse nodes as word
// coordinates change. Their spans follow runs of equal coordinates, not
// markup nesting, so the tracker is consulted once per slot.
type BoundaryTracker struct {
	b       graph.Builder
	chapter graph.NodeID
	verse   graph.NodeID
}

// Node types and features maintained by the tracker.
const (
	ChapterType = "chapter"
	VerseType   = "verse"
)

// NewBoundaryTracker returns a tracker with no chapter or verse open.
func NewBoundaryTracker(b graph.Builder) *BoundaryTracker {
	return &BoundaryTracker{b: b}
}

// Advance moves the tracker to the coordinates of the next slot.
// A changed chapter closes verse and chapter and opens both anew; a changed
// verse within the same chapter replaces only the verse.
func (t *BoundaryTracker) Advance(chapter, verse string) {
	if !t.current(t.chapter, ChapterType, chapter) {
		t.b.Terminate(t.verse)
		t.b.Terminate(t.chapter)
		t.chapter = t.open(ChapterType, chapter)
		t.verse = t.open(VerseType, verse)
		return
	}
	if !t.current(t.verse, VerseType, verse) {
		t.b.Terminate(t.verse)
		t.verse = t.open(VerseType, verse)
	}
}

// CloseAll closes the verse and then the chapter and forgets both.
func (t *BoundaryTracker) CloseAll() {
	t.b.Terminate(t.verse)
	t.b.Terminate(t.chapter)
	t.verse = graph.NoNode
	t.chapter = graph.NoNode
}

// Chapter returns the open chapter node, or NoNode.
func (t *BoundaryTracker) Chapter() graph.NodeID { return t.chapter }

// Verse returns the open verse node, or NoNode.
func (t *BoundaryTracker) Verse() graph.NodeID { return t.verse }

// current reports whether node n is open and carries value v. With no node
// open there is no prior value and the answer is false.
func (t *BoundaryTracker) current(n graph.NodeID, feature, v string) bool {
	if n == graph.NoNode {
		return false
	}
	got, ok := t.b.Get(n, feature)
	return ok && got.Equal(graph.Str(v))
}

func (t *BoundaryTracker) open(otype, v string) graph.NodeID {
	n := t.b.Node(otype)
	t.b.Feature(n, graph.NewFeatures(graph.Feature{Name: otype, Value: graph.Str(v)}))
	return n
}
