package tf

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/FocuswithJustin/JuniperTF/core/errors"
	"github.com/FocuswithJustin/JuniperTF/core/graph"
)

func str(name, v string) graph.Features {
	return graph.NewFeatures(graph.Feature{Name: name, Value: graph.Str(v)})
}

// sampleGraph builds one book of two sentences over three words, plus an
// empty word group that cannot be written.
func sampleGraph() *graph.Graph {
	g := graph.New("w")

	b := g.Node("book")
	g.Feature(b, str("book_short", "Mat"))

	s1 := g.Node("sentence")
	w1 := g.Slot("k1")
	w2 := g.Slot("k2")
	g.Terminate(s1)

	s2 := g.Node("sentence")
	w3 := g.Slot("k3")
	g.Terminate(s2)
	g.Terminate(b)

	wg := g.Node("wg")
	g.Terminate(wg)

	for i, w := range []graph.NodeID{w1, w2, w3} {
		g.Feature(w, str("text", []string{"a", "b\tc", "d"}[i]))
		g.Feature(w, str("chapter", []string{"1", "1", "2"}[i]))
	}
	g.Feature(w2, str("bad", "x"))

	g.Meta("text", graph.FeatureMeta{Description: "the text", ValueType: graph.TypeStr})
	g.Meta("chapter", graph.FeatureMeta{Description: "Number of the chapter", ValueType: graph.TypeInt})
	g.Meta("bad", graph.FeatureMeta{Description: "not a number", ValueType: graph.TypeInt})
	g.Meta("book_short", graph.FeatureMeta{Description: "Book name (abbreviated)"})
	return g
}

func sampleOptions() Options {
	return Options{
		Formats:         map[string]string{"text-orig-full": "{text}{after}"},
		SectionTypes:    []string{"book", "chapter", "verse"},
		SectionFeatures: []string{"book_short", "chapter", "verse"},
		Generic:         map[string]string{"sourceFormat": "XML"},
		WrittenBy:       "test",
	}
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	res, err := Write(dir, sampleGraph(), sampleOptions())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	wantFiles := []string{"bad.tf", "book_short.tf", "chapter.tf", "oslots.tf", "otext.tf", "otype.tf", "text.tf"}
	if !reflect.DeepEqual(res.Files, wantFiles) {
		t.Errorf("Files = %v, want %v", res.Files, wantFiles)
	}
	if res.Slots != 3 || res.Nodes != 6 || res.Dropped != 1 || res.Features != 4 {
		t.Errorf("result = %+v", res)
	}
	if !reflect.DeepEqual(res.Demoted, []string{"bad"}) {
		t.Errorf("Demoted = %v, want [bad]", res.Demoted)
	}

	tests := []struct {
		file string
		want string
	}{
		{"otype.tf", "@node\n@sourceFormat=XML\n@valueType=str\n@writtenBy=test\n\n1-3\tw\n4\tbook\n5-6\tsentence\n"},
		{"oslots.tf", "@edge\n@sourceFormat=XML\n@valueType=str\n@writtenBy=test\n\n4\t1-3\n1-2\n3\n"},
		{"otext.tf", "@config\n@fmt:text-orig-full={text}{after}\n@sectionFeatures=book_short,chapter,verse\n@sectionTypes=book,chapter,verse\n@sourceFormat=XML\n@writtenBy=test\n"},
		{"text.tf", "@node\n@description=the text\n@sourceFormat=XML\n@valueType=str\n@writtenBy=test\n\na\nb\\tc\nd\n"},
		{"chapter.tf", "@node\n@description=Number of the chapter\n@sourceFormat=XML\n@valueType=int\n@writtenBy=test\n\n1\n1\n2\n"},
		{"bad.tf", "@node\n@description=not a number\n@sourceFormat=XML\n@valueType=str\n@writtenBy=test\n\n2\tx\n"},
		{"book_short.tf", "@node\n@description=Book name (abbreviated)\n@sourceFormat=XML\n@valueType=str\n@writtenBy=test\n\n4\tMat\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			if got := readFile(t, dir, tt.file); got != tt.want {
				t.Errorf("%s =\n%q\nwant\n%q", tt.file, got, tt.want)
			}
		})
	}
}

func TestWriteDeterministic(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	resA, err := Write(a, sampleGraph(), sampleOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Write(b, sampleGraph(), sampleOptions()); err != nil {
		t.Fatal(err)
	}
	for _, f := range resA.Files {
		if readFile(t, a, f) != readFile(t, b, f) {
			t.Errorf("%s differs between runs", f)
		}
	}
}

func TestWriteErrors(t *testing.T) {
	if _, err := Write(t.TempDir(), graph.New("w"), Options{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("empty graph error = %v, want validation error", err)
	}

	g := graph.New("w")
	s := g.Slot("k1")
	g.Feature(s, str(OType, "x"))
	if _, err := Write(t.TempDir(), g, Options{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("reserved feature error = %v, want validation error", err)
	}

	dup := graph.New("w")
	dup.Slot("k1")
	dup.Slot("k1")
	if _, err := Write(t.TempDir(), dup, Options{}); err == nil {
		t.Error("graph with construction error was written")
	}

	ok := graph.New("w")
	ok.Slot("k1")
	bad := Options{Formats: map[string]string{"broken": "{text"}}
	if _, err := Write(t.TempDir(), ok, bad); err == nil {
		t.Error("broken format accepted")
	}
}

func TestCanonical(t *testing.T) {
	g := graph.New("w")

	// Created out of canonical order: the short phrase before the clause
	// that contains it.
	p := g.Node("phrase")
	w1 := g.Slot("k1")
	g.Terminate(p)
	c := g.Node("clause")
	w2 := g.Slot("k2")
	w3 := g.Slot("k3")
	g.Terminate(c)
	c0 := g.Node("clause")
	g.Terminate(c0)

	nb := Canonical(g)
	wantOrder := []graph.NodeID{w1, w2, w3, c, p}
	if !reflect.DeepEqual(nb.Order, wantOrder) {
		t.Errorf("Order = %v, want %v", nb.Order, wantOrder)
	}
	wantRanges := []TypeRange{{"w", 1, 3}, {"clause", 4, 4}, {"phrase", 5, 5}}
	if !reflect.DeepEqual(nb.Ranges, wantRanges) {
		t.Errorf("Ranges = %v, want %v", nb.Ranges, wantRanges)
	}
	if !reflect.DeepEqual(nb.Dropped, []graph.NodeID{c0}) {
		t.Errorf("Dropped = %v, want [%d]", nb.Dropped, c0)
	}
	if nb.Number(c0) != 0 || nb.Number(p) != 5 || nb.MaxSlot() != 3 {
		t.Error("Number mismatch")
	}
}

func TestCanonicalWithinType(t *testing.T) {
	g := graph.New("w")
	outer := g.Node("wg")
	inner := g.Node("wg")
	g.Slot("k1")
	g.Terminate(inner)
	g.Slot("k2")
	g.Terminate(outer)
	later := g.Node("wg")
	g.Slot("k3")
	g.Terminate(later)

	// Same first slot: the longer node first. inner is created after
	// outer, so creation order alone would not decide.
	want := []graph.NodeID{outer, inner, later}
	if got := Canonical(g).Order[3:]; !reflect.DeepEqual(got, want) {
		t.Errorf("wg order = %v, want %v", got, want)
	}
}

func TestRanges(t *testing.T) {
	tests := []struct {
		in   []int
		want string
	}{
		{nil, ""},
		{[]int{7}, "7"},
		{[]int{1, 2, 3}, "1-3"},
		{[]int{1, 2, 3, 5}, "1-3,5"},
		{[]int{1, 3, 4, 9, 10, 11}, "1,3-4,9-11"},
	}
	for _, tt := range tests {
		if got := Ranges(tt.in); got != tt.want {
			t.Errorf("Ranges(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteRejectsUnsafeFeatureName(t *testing.T) {
	g := graph.New("w")
	s := g.Slot("k1")
	g.Feature(s, str("../escape", "x"))

	dir := t.TempDir()
	if _, err := Write(dir, g, Options{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Write() error = %v, want validation error", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.tf")); !os.IsNotExist(err) {
		t.Error("file written outside the output directory")
	}
}
