// Package tf writes a graph as a directory of Text-Fabric feature files.
//
// Every file starts with a header of @key=value lines and, for node and
// edge features, a blank line followed by one data line per node. A data
// line carries the node number only when it is not the successor of the
// previous line's node.
package tf

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/JuniperTF/core/encoding"
	"github.com/FocuswithJustin/JuniperTF/core/errors"
	"github.com/FocuswithJustin/JuniperTF/core/graph"
	"github.com/FocuswithJustin/JuniperTF/core/graph/otext"
	"github.com/FocuswithJustin/JuniperTF/internal/logging"
	"github.com/FocuswithJustin/JuniperTF/internal/validation"
)

// Structural feature names.
const (
	OType  = "otype"
	OSlots = "oslots"
	OText  = "otext"
)

// Ext is the extension of every feature file.
const Ext = ".tf"

// Options configures Write.
type Options struct {
	Formats         map[string]string
	SectionTypes    []string
	SectionFeatures []string
	// Generic is copied into the header of every file.
	Generic     map[string]string
	WrittenBy   string
	DateWritten string
}

// Result summarizes a written directory.
type Result struct {
	Dir      string
	Files    []string
	Slots    int
	Nodes    int
	Dropped  int
	Demoted  []string
	Features int
}

// Write renders g into dir. The output depends only on g and opts, so
// repeated writes of the same graph are byte-identical.
func Write(dir string, g *graph.Graph, opts Options) (*Result, error) {
	if err := g.Err(); err != nil {
		return nil, errors.Wrap(err, "graph is incomplete")
	}

	nb := Canonical(g)
	if nb.MaxSlot() == 0 {
		return nil, errors.NewValidation("graph", "no slots to write")
	}
	if len(nb.Dropped) > 0 {
		logging.Warn("nodes without slots are not written", "count", len(nb.Dropped))
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewIO("create directory", dir, err)
	}

	w := &writer{dir: dir, g: g, nb: nb, opts: opts}
	res := &Result{
		Dir:     dir,
		Slots:   nb.MaxSlot(),
		Nodes:   len(nb.Order),
		Dropped: len(nb.Dropped),
	}

	if err := w.writeOType(); err != nil {
		return nil, err
	}
	if err := w.writeOSlots(); err != nil {
		return nil, err
	}
	if err := w.writeOText(); err != nil {
		return nil, err
	}

	meta := g.Metadata()
	for _, name := range g.FeatureNames() {
		if name == OType || name == OSlots || name == OText {
			return nil, errors.NewValidation("feature", fmt.Sprintf("%s is a reserved feature name", name))
		}
		if err := validation.ValidateFilename(name + Ext); err != nil {
			v := errors.NewValidation("feature", fmt.Sprintf("%q cannot be a file name", name))
			v.Err = err
			return nil, v
		}
		demoted, err := w.writeFeature(name, meta[name])
		if err != nil {
			return nil, err
		}
		if demoted {
			res.Demoted = append(res.Demoted, name)
		}
		res.Features++
	}

	res.Files = w.files
	sort.Strings(res.Files)
	return res, nil
}

type writer struct {
	dir   string
	g     *graph.Graph
	nb    *Numbering
	opts  Options
	files []string
}

// header builds the @-lines of a file: the kind line, then key=value pairs
// sorted by key.
func (w *writer) header(kind string, meta map[string]string) []string {
	all := make(map[string]string, len(meta)+len(w.opts.Generic)+2)
	for k, v := range w.opts.Generic {
		all[k] = v
	}
	if w.opts.WrittenBy != "" {
		all["writtenBy"] = w.opts.WrittenBy
	}
	if w.opts.DateWritten != "" {
		all["dateWritten"] = w.opts.DateWritten
	}
	for k, v := range meta {
		all[k] = v
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := []string{"@" + kind}
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("@%s=%s", k, encoding.EscapeMeta(all[k])))
	}
	return lines
}

// create writes one file from its header and data lines. Config files have
// no data section.
func (w *writer) create(name string, header []string, data func(*bufio.Writer)) error {
	path := filepath.Join(w.dir, name+Ext)
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIO("create", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	for _, line := range header {
		bw.WriteString(line)
		bw.WriteByte('\n')
	}
	if data != nil {
		bw.WriteByte('\n')
		data(bw)
	}
	if err := bw.Flush(); err != nil {
		return errors.NewIO("write", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.NewIO("close", path, err)
	}
	w.files = append(w.files, name+Ext)
	return nil
}

func (w *writer) writeOType() error {
	hdr := w.header("node", map[string]string{"valueType": string(graph.TypeStr)})
	return w.create(OType, hdr, func(bw *bufio.Writer) {
		for _, r := range w.nb.Ranges {
			if r.First == r.Last {
				fmt.Fprintf(bw, "%d\t%s\n", r.First, r.Type)
				continue
			}
			fmt.Fprintf(bw, "%d-%d\t%s\n", r.First, r.Last, r.Type)
		}
	})
}

func (w *writer) writeOSlots() error {
	hdr := w.header("edge", map[string]string{"valueType": string(graph.TypeStr)})
	return w.create(OSlots, hdr, func(bw *bufio.Writer) {
		first := w.nb.MaxSlot() + 1
		for i := first; i <= len(w.nb.Order); i++ {
			slots := w.g.Slots(w.nb.Order[i-1])
			nums := make([]int, len(slots))
			for j, s := range slots {
				nums[j] = w.nb.Number(s)
			}
			if i == first {
				fmt.Fprintf(bw, "%d\t", i)
			}
			bw.WriteString(Ranges(nums))
			bw.WriteByte('\n')
		}
	})
}

func (w *writer) writeOText() error {
	meta := make(map[string]string)
	names := make([]string, 0, len(w.opts.Formats))
	for name := range w.opts.Formats {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tpl := w.opts.Formats[name]
		t, err := otext.Parse(tpl)
		if err != nil {
			return errors.Wrapf(err, "format %s", name)
		}
		for _, f := range t.Fields() {
			if !w.g.Occurs(f) {
				logging.Warn("text format refers to a feature without data", "format", name, "feature", f)
			}
		}
		meta["fmt:"+name] = tpl
	}
	if len(w.opts.SectionTypes) > 0 {
		meta["sectionTypes"] = strings.Join(w.opts.SectionTypes, ",")
		meta["sectionFeatures"] = strings.Join(w.opts.SectionFeatures, ",")
	}
	return w.create(OText, w.header("config", meta), nil)
}

type entry struct {
	num int
	val graph.Value
}

// writeFeature writes one node feature. An int feature with a value that
// does not parse as an integer is written as str and reported as demoted.
func (w *writer) writeFeature(name string, m graph.FeatureMeta) (bool, error) {
	vals := w.g.Values(name)
	entries := make([]entry, 0, len(vals))
	for id, v := range vals {
		if num := w.nb.Number(id); num > 0 {
			entries = append(entries, entry{num: num, val: v})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].num < entries[j].num })

	vt := m.ValueType
	if vt == "" {
		vt = graph.TypeStr
	}
	demoted := false
	if vt == graph.TypeInt {
		for _, e := range entries {
			if _, ok := e.val.AsInt(); !ok {
				logging.Warn("int feature has non-integer values, writing as str",
					"feature", name, "value", e.val.String())
				vt = graph.TypeStr
				demoted = true
				break
			}
		}
	}

	hdr := w.header("node", map[string]string{
		"description": m.Description,
		"valueType":   string(vt),
	})
	return demoted, w.create(name, hdr, func(bw *bufio.Writer) {
		prev := 0
		for _, e := range entries {
			var s string
			if vt == graph.TypeInt {
				i, _ := e.val.AsInt()
				s = strconv.Itoa(i)
			} else {
				s = encoding.EscapeTF(e.val.String())
			}
			if e.num != prev+1 || s == "" {
				fmt.Fprintf(bw, "%d\t", e.num)
			}
			bw.WriteString(s)
			bw.WriteByte('\n')
			prev = e.num
		}
	})
}

// Ranges renders sorted node numbers compactly, for example "1-3,5".
func Ranges(nums []int) string {
	var sb strings.Builder
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(nums[i]))
		if j > i {
			sb.WriteByte('-')
			sb.WriteString(strconv.Itoa(nums[j]))
		}
		i = j + 1
	}
	return sb.String()
}
