package convert

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/JuniperTF/core/errors"
	"github.com/FocuswithJustin/JuniperTF/core/graph"
	"github.com/FocuswithJustin/JuniperTF/core/xml"
	"github.com/FocuswithJustin/JuniperTF/internal/metrics"
)

// Slot features set by the walker besides the word's own attributes.
const (
	TextFeature  = "text"
	BookFeature  = "book"
	AfterFeature = "after"
)

// TailHook runs after an element, its children and its end tag have been
// handled. lastSlot is the most recently created slot, or NoNode.
type TailHook func(b graph.Builder, e *xml.Element, lastSlot graph.NodeID)

// TailAfter returns a hook that stores the space-collapsed tail text of
// slot elements as the given feature of the slot, unless the slot already
// carries that feature from its own attributes.
func TailAfter(slotType, feature string) TailHook {
	return func(b graph.Builder, e *xml.Element, lastSlot graph.NodeID) {
		if e.Tag != slotType || lastSlot == graph.NoNode || e.Tail == "" {
			return
		}
		if _, ok := b.Get(lastSlot, feature); ok {
			return
		}
		b.Feature(lastSlot, graph.NewFeatures(graph.Feature{Name: feature, Value: graph.Str(collapseSpace(e.Tail))}))
	}
}

// collapseSpace replaces every run of white space with a single blank.
func collapseSpace(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteRune(r)
	}
	if space {
		sb.WriteByte(' ')
	}
	return sb.String()
}

// walkState is the traversal context of one document. The book counter is
// shared by all documents of a run.
type walkState struct {
	doc      string
	nest     []string
	elems    []graph.NodeID
	tracker  *BoundaryTracker
	bookNum  *int
	sentNum  int
	lastSlot graph.NodeID
	slots    int
}

func newWalkState(doc string, b graph.Builder, bookNum *int) *walkState {
	return &walkState{
		doc:     doc,
		tracker: NewBoundaryTracker(b),
		bookNum: bookNum,
	}
}

// path returns the tag path of the element being handled.
func (cur *walkState) path() string {
	return strings.Join(cur.nest, "/")
}

type walker struct {
	p           *Profile
	b           graph.Builder
	norm        *Normalizer
	refs        *RefParser
	passThrough map[string]bool
	suppress    map[string]bool
	afterTag    TailHook
	metrics     *metrics.Conversion
	logger      *slog.Logger
}

func (w *walker) walkNode(cur *walkState, e *xml.Element) error {
	tag := localName(e.Tag)
	cur.nest = append(cur.nest, tag)

	if err := w.beforeChildren(cur, e, tag); err != nil {
		return err
	}

	// Slot elements are leaves: only their own text is modelled.
	if tag != w.p.SlotType || w.passThrough[tag] {
		for _, child := range e.Children {
			if err := w.walkNode(cur, child); err != nil {
				return err
			}
		}
	}

	w.afterChildren(cur, tag)
	cur.nest = cur.nest[:len(cur.nest)-1]

	if w.afterTag != nil {
		w.afterTag(w.b, e, cur.lastSlot)
	}
	return nil
}

func (w *walker) beforeChildren(cur *walkState, e *xml.Element, tag string) error {
	if w.passThrough[tag] {
		return nil
	}

	atts := w.norm.Normalize(tag, e.Attrs)
	ord := w.p.Ordinals

	switch tag {
	case w.p.SlotType:
		return w.slot(cur, e, atts)

	case w.p.BookTag:
		*cur.bookNum++
		atts.Set(ord.BookNum, graph.Int(*cur.bookNum))
		if id, ok := atts.Get(ord.BookID); ok {
			atts.Set(ord.BookCode, id)
			atts.Delete(ord.BookID)
		} else {
			w.logger.Warn("book without identifier", "document", cur.doc, "book_num", *cur.bookNum)
		}

	case w.p.SentenceTag:
		cur.sentNum++
		atts.Set(ord.Sentence, graph.Int(cur.sentNum))
	}

	n := w.b.Node(tag)
	cur.elems = append(cur.elems, n)
	w.metrics.Node(tag)

	w.dropSuppressed(&atts)
	if atts.Len() > 0 {
		w.b.Feature(n, atts)
	}
	return nil
}

func (w *walker) slot(cur *walkState, e *xml.Element, atts graph.Features) error {
	raw, ok := atts.Get(w.p.RefAttr)
	if !ok {
		return errors.NewValidation(w.p.RefAttr, "word element has no reference")
	}
	ref, err := w.refs.Parse(raw.String())
	if err != nil {
		return err
	}

	if e.HasText {
		atts.Set(TextFeature, graph.Str(e.Text))
	}
	atts.Set(BookFeature, graph.Str(ref.Book))
	atts.Set(ChapterType, graph.Str(ref.Chapter))
	atts.Set(VerseType, graph.Str(ref.Verse))
	atts.Set(w.p.Ordinals.Word, graph.Str(ref.Word))

	cur.tracker.Advance(ref.Chapter, ref.Verse)

	key := SlotKey(*cur.bookNum, ref)
	s := w.b.Slot(key)
	if s == graph.NoNode {
		return errors.NewValidation(w.p.RefAttr, fmt.Sprintf("word position %s occurs twice", key))
	}
	cur.lastSlot = s
	cur.slots++
	w.metrics.Slot()

	w.dropSuppressed(&atts)
	w.b.Feature(s, atts)
	return nil
}

func (w *walker) afterChildren(cur *walkState, tag string) {
	if w.passThrough[tag] {
		return
	}
	if tag == w.p.BookTag {
		cur.tracker.CloseAll()
	}
	if tag != w.p.SlotType {
		n := cur.elems[len(cur.elems)-1]
		cur.elems = cur.elems[:len(cur.elems)-1]
		w.b.Terminate(n)
	}
}

func (w *walker) dropSuppressed(atts *graph.Features) {
	for name := range w.suppress {
		atts.Delete(name)
	}
}

// SlotKey builds the stable key of a word: book ordinal, chapter, verse
// and word index, zero padded to 3, 3, 3 and 4 places.
func SlotKey(bookNum int, ref Reference) string {
	return fmt.Sprintf("B%s-C%s-V%s-W%s",
		zeroPad(strconv.Itoa(bookNum), 3),
		zeroPad(ref.Chapter, 3),
		zeroPad(ref.Verse, 3),
		zeroPad(ref.Word, 4),
	)
}

func zeroPad(s string, width int) string {
	if n := width - len([]rune(s)); n > 0 {
		return strings.Repeat("0", n) + s
	}
	return s
}
