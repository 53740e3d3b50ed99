// Package convert turns lowfat markup trees into a node-and-slot graph.
//
// A Director walks every document of a Source in order. Each element either
// disappears (pass-through tags), becomes a slot (word elements) or becomes a
// node that spans the slots created while it is open. Chapter and verse nodes
// are not marked up; a BoundaryTracker derives them from the reference of
// each word. After the walk the Director reconciles the declared feature
// table with the features actually produced.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FocuswithJustin/JuniperTF/core/errors"
	"github.com/FocuswithJustin/JuniperTF/core/graph"
	"github.com/FocuswithJustin/JuniperTF/core/source"
	"github.com/FocuswithJustin/JuniperTF/core/xml"
	"github.com/FocuswithJustin/JuniperTF/internal/logging"
	"github.com/FocuswithJustin/JuniperTF/internal/metrics"
)

// Transform rewrites the raw text of a document before it is parsed.
type Transform func(text string) string

// Director sequences a conversion. Its configuration is fixed at
// construction and read-only during Run.
type Director struct {
	profile   *Profile
	logger    *slog.Logger
	metrics   *metrics.Conversion
	suppress  []string
	demo      bool
	transform Transform
	afterTag  TailHook
	initErr   error
}

// Option configures a Director.
type Option func(*Director)

// WithLogger sets the logger. By default the run logger of the context is used.
func WithLogger(l *slog.Logger) Option {
	return func(d *Director) { d.logger = l }
}

// WithMetrics records counters into m.
func WithMetrics(m *metrics.Conversion) Option {
	return func(d *Director) { d.metrics = m }
}

// WithSuppress drops the named features from every node and slot.
func WithSuppress(names ...string) Option {
	return func(d *Director) { d.suppress = append(d.suppress, names...) }
}

// WithDemoMode additionally drops the profile's demo_suppress features.
func WithDemoMode(on bool) Option {
	return func(d *Director) { d.demo = on }
}

// WithTransform applies t to each document's text before parsing.
func WithTransform(t Transform) Option {
	return func(d *Director) { d.transform = t }
}

// WithTailHook runs h after every element.
func WithTailHook(h TailHook) Option {
	return func(d *Director) { d.afterTag = h }
}

// NewDirector validates the profile and returns a Director. A Director with
// an invalid profile refuses to run; see Err.
func NewDirector(p *Profile, opts ...Option) *Director {
	d := &Director{profile: p}
	for _, opt := range opts {
		opt(d)
	}
	if p == nil {
		d.initErr = errors.NewValidation("profile", "no profile given")
	} else if err := p.Validate(); err != nil {
		d.initErr = err
	}
	return d
}

// Err returns the setup error, if any.
func (d *Director) Err() error { return d.initErr }

// Profile returns the profile the Director was built with.
func (d *Director) Profile() *Profile { return d.profile }

// Report summarizes a finished run.
type Report struct {
	Documents  int
	Books      int
	Slots      int
	Undeclared []string // produced but not declared
	Unproduced []string // declared but never produced
	Duration   time.Duration
}

// Run converts all documents of src into b. Any error aborts the whole run:
// ordinal and boundary state are cumulative and cannot be resumed.
func (d *Director) Run(ctx context.Context, src source.Source, b graph.Builder) (*Report, error) {
	if d.initErr != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrNotInitialized, d.initErr)
	}

	logger := d.logger
	if logger == nil {
		logger = logging.LoggerFromContext(ctx)
	}
	start := time.Now()

	groups, err := src.Groups()
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate documents")
	}

	w := d.newWalker(b, logger)
	report := &Report{}
	bookNum := 0

	for _, g := range groups {
		for _, file := range g.Files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			report.Documents++
			path := source.DocPath(g.Folder, file)
			logging.DocumentStart(logger, report.Documents, path)

			docStart := time.Now()
			slots, err := d.convertDocument(w, src, g.Folder, file, &bookNum)
			if err != nil {
				return nil, err
			}
			report.Slots += slots
			d.metrics.DocumentDone(time.Since(docStart))
		}
	}

	report.Books = bookNum
	report.Undeclared, report.Unproduced = d.reconcile(b)
	d.metrics.Reconciled(len(report.Undeclared), len(report.Unproduced))
	report.Duration = time.Since(start)

	if len(report.Undeclared) > 0 {
		logger.Info("undeclared features", "features", report.Undeclared)
	}
	if len(report.Unproduced) > 0 {
		logger.Debug("declared features without data", "features", report.Unproduced)
	}
	return report, nil
}

func (d *Director) newWalker(b graph.Builder, logger *slog.Logger) *walker {
	p := d.profile
	pass := make(map[string]bool, len(p.PassThrough))
	for _, t := range p.PassThrough {
		pass[t] = true
	}
	suppress := make(map[string]bool)
	for _, name := range d.suppress {
		suppress[name] = true
	}
	if d.demo {
		for _, name := range p.DemoSuppress {
			suppress[name] = true
		}
	}
	return &walker{
		p:           p,
		b:           b,
		norm:        NewNormalizer(p.Renames, p.BoolFlags),
		refs:        NewRefParser(p.Separators),
		passThrough: pass,
		suppress:    suppress,
		afterTag:    d.afterTag,
		metrics:     d.metrics,
		logger:      logger,
	}
}

// convertDocument reads, parses and walks one document with fresh
// per-document state.
func (d *Director) convertDocument(w *walker, src source.Source, folder, file string, bookNum *int) (int, error) {
	path := source.DocPath(folder, file)

	data, err := src.Read(folder, file)
	if err != nil {
		return 0, errors.NewConversion(path, "", err)
	}
	if d.transform != nil {
		data = []byte(d.transform(string(data)))
	}

	root, err := xml.ParseElement(data)
	if err != nil {
		pe := errors.NewParse("XML", path, err.Error())
		pe.Err = err
		return 0, pe
	}

	cur := newWalkState(path, w.b, bookNum)
	if err := w.walkNode(cur, root); err != nil {
		return 0, errors.NewConversion(path, cur.path(), err)
	}

	if cur.tracker.Chapter() != graph.NoNode || cur.tracker.Verse() != graph.NoNode {
		w.logger.Warn("chapter or verse still open at end of document, closing", "document", path)
		cur.tracker.CloseAll()
	}

	if eb, ok := w.b.(interface{ Err() error }); ok && eb.Err() != nil {
		return 0, errors.NewConversion(path, "", eb.Err())
	}
	return cur.slots, nil
}

// reconcile registers metadata for every declared feature, produced or
// not, and synthesizes string metadata for produced features nobody declared.
func (d *Director) reconcile(b graph.Builder) (undeclared, unproduced []string) {
	p := d.profile
	for _, name := range p.FeatureNames() {
		if !b.Occurs(name) {
			unproduced = append(unproduced, name)
		}
		b.Meta(name, graph.FeatureMeta{
			Description: p.Features[name].Description,
			ValueType:   p.ValueType(name),
		})
	}
	for _, name := range b.FeatureNames() {
		if _, ok := p.Features[name]; ok {
			continue
		}
		undeclared = append(undeclared, name)
		b.Meta(name, graph.FeatureMeta{
			Description: fmt.Sprintf("this is XML attribute %s", name),
			ValueType:   graph.TypeStr,
		})
	}
	return undeclared, unproduced
}
