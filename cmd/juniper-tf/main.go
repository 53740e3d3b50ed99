// Command juniper-tf converts Lowfat Greek New Testament XML into a
// Text-Fabric dataset.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/JuniperTF/core/bundle"
	"github.com/FocuswithJustin/JuniperTF/core/convert"
	"github.com/FocuswithJustin/JuniperTF/core/graph"
	"github.com/FocuswithJustin/JuniperTF/core/graphdb"
	"github.com/FocuswithJustin/JuniperTF/core/source"
	"github.com/FocuswithJustin/JuniperTF/core/sqlite"
	"github.com/FocuswithJustin/JuniperTF/core/tf"
	"github.com/FocuswithJustin/JuniperTF/core/xml"
	"github.com/FocuswithJustin/JuniperTF/internal/logging"
	"github.com/FocuswithJustin/JuniperTF/internal/metrics"
	"github.com/FocuswithJustin/JuniperTF/internal/validation"
)

const version = "0.1.0"

// Globals are the flags shared by every command.
type Globals struct {
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info"`
	LogFormat string `name:"log-format" help:"Log format (text, json)" default:"text"`
}

// CLI defines the command-line interface for juniper-tf.
var CLI struct {
	Globals

	Convert     ConvertCmd     `cmd:"" help:"Convert an XML corpus into Text-Fabric feature files"`
	Survey      SurveyCmd      `cmd:"" help:"List the element tags and attributes of an XML corpus"`
	Features    FeaturesCmd    `cmd:"" help:"List the features a profile declares"`
	Fingerprint FingerprintCmd `cmd:"" help:"Convert in memory and print the graph hash"`
	Verify      VerifyCmd      `cmd:"" help:"Verify a dataset bundle against its manifest"`
	Version     VersionCmd     `cmd:"" help:"Print version information"`
}

// ProfileFlags select the conversion profile.
type ProfileFlags struct {
	Profile string `help:"Built-in profile (lowfat, macula)" default:"lowfat"`
	Config  string `help:"Profile file (YAML or JSON) overlaid on its base profile" type:"path"`
}

func (f ProfileFlags) load() (*convert.Profile, error) {
	if f.Config == "" {
		return convert.Builtin(f.Profile)
	}
	if err := validation.ValidatePath(f.Config); err != nil {
		return nil, fmt.Errorf("invalid profile path: %w", err)
	}
	return convert.LoadProfile(f.Config)
}

// WalkFlags tune how documents are walked.
type WalkFlags struct {
	Exclude   []string `help:"Gitignore patterns of documents to skip" sep:","`
	Suppress  []string `help:"Features to drop from the output" sep:","`
	Demo      bool     `help:"Drop the profile's demo features"`
	TailAfter bool     `name:"tail-after" help:"Derive the after feature of words from the text that follows them"`
}

func (f WalkFlags) options(p *convert.Profile) []convert.Option {
	opts := []convert.Option{
		convert.WithSuppress(f.Suppress...),
		convert.WithDemoMode(f.Demo),
	}
	if f.TailAfter {
		opts = append(opts, convert.WithTailHook(convert.TailAfter(p.SlotType, convert.AfterFeature)))
	}
	return opts
}

// run converts the corpus at dir into a fresh graph.
func run(ctx context.Context, dir string, p *convert.Profile, walk WalkFlags, opts ...convert.Option) (*graph.Graph, *convert.Report, error) {
	if err := validation.ValidatePath(dir); err != nil {
		return nil, nil, fmt.Errorf("invalid source path: %w", err)
	}
	src, err := source.NewDir(dir, walk.Exclude...)
	if err != nil {
		return nil, nil, err
	}

	d := convert.NewDirector(p, append(walk.options(p), opts...)...)
	if err := d.Err(); err != nil {
		return nil, nil, err
	}
	g := graph.New(p.SlotType)
	report, err := d.Run(ctx, src, g)
	if err != nil {
		return nil, nil, err
	}
	return g, report, nil
}

// ConvertCmd converts a corpus and writes the dataset.
type ConvertCmd struct {
	ProfileFlags
	WalkFlags

	Source      string `arg:"" help:"Corpus directory" type:"existingdir"`
	Out         string `required:"" help:"Output directory for .tf files" type:"path"`
	SQLite      string `name:"sqlite" help:"Also store the graph in this SQLite database" type:"path"`
	Bundle      string `help:"Also pack the output directory into this archive" type:"path"`
	Compression string `help:"Bundle compression (xz, gzip)" default:"xz"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics to this textfile" type:"path"`
	Date        bool   `help:"Record dateWritten in file headers" default:"true" negatable:""`
}

func (c *ConvertCmd) Run(g *Globals) error {
	logging.InitLogger(logging.ParseLevel(g.LogLevel), logging.ParseFormat(g.LogFormat))

	for _, p := range []string{c.Out, c.SQLite, c.Bundle, c.MetricsFile} {
		if p == "" {
			continue
		}
		if err := validation.ValidatePath(p); err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
	}
	compression, err := bundle.ParseCompression(c.Compression)
	if err != nil {
		return err
	}

	profile, err := c.load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runID := logging.NewRunID()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.LoggerFromContext(ctx)

	m := metrics.New()
	gr, report, err := run(ctx, c.Source, profile, c.WalkFlags, convert.WithLogger(logger), convert.WithMetrics(m))
	if err != nil {
		logging.ErrorContext(ctx, "conversion failed", "source", c.Source, "error", err)
		return fmt.Errorf("conversion failed: %w", err)
	}

	opts := tf.Options{
		Formats:         profile.Text.Formats,
		SectionTypes:    profile.Text.SectionTypes,
		SectionFeatures: profile.Text.SectionFeatures,
		Generic:         profile.Generic,
		WrittenBy:       "juniper-tf " + version,
	}
	if c.Date {
		opts.DateWritten = time.Now().UTC().Format(time.RFC3339)
	}
	res, err := tf.Write(c.Out, gr, opts)
	if err != nil {
		return fmt.Errorf("failed to write features: %w", err)
	}

	logging.ConversionSummary(logger, report.Documents, report.Slots, res.Nodes, report.Duration,
		"books", report.Books, "dropped", res.Dropped)

	fmt.Printf("Converted: %s (%s profile)\n", c.Source, profile.Name)
	fmt.Printf("  Documents: %d\n", report.Documents)
	fmt.Printf("  Books: %d\n", report.Books)
	fmt.Printf("  Slots: %d\n", res.Slots)
	fmt.Printf("  Nodes: %d\n", res.Nodes)
	fmt.Printf("  Features: %d\n", res.Features)
	if len(res.Demoted) > 0 {
		logging.WarnContext(ctx, "int features written as str", "features", res.Demoted)
		fmt.Printf("  Written as str: %s\n", strings.Join(res.Demoted, ", "))
	}
	fmt.Printf("Created: %s\n", c.Out)

	if c.SQLite != "" {
		if err := saveSQLite(ctx, c.SQLite, gr, map[string]string{
			"profile": profile.Name,
			"run_id":  runID,
			"version": version,
		}); err != nil {
			return err
		}
		logging.InfoContext(ctx, "graph stored", "path", c.SQLite)
		fmt.Printf("Created: %s\n", c.SQLite)
	}

	if c.Bundle != "" {
		manifest, err := bundle.Pack(c.Out, c.Bundle, bundle.Options{
			Compression: compression,
			Attributes:  map[string]string{"profile": profile.Name, "writtenBy": opts.WrittenBy},
			CreatedAt:   time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to pack bundle: %w", err)
		}
		logging.InfoContext(ctx, "bundle packed", "path", c.Bundle, "files", len(manifest.Files))
		fmt.Printf("Created: %s (%d files)\n", c.Bundle, len(manifest.Files))
	}

	if c.MetricsFile != "" {
		if err := m.WriteTextfile(c.MetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func saveSQLite(ctx context.Context, path string, g *graph.Graph, info map[string]string) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := sqlite.PrepareBulk(ctx, db); err != nil {
		return fmt.Errorf("failed to configure database: %w", err)
	}
	if _, err := graphdb.Save(ctx, db, g, info); err != nil {
		return fmt.Errorf("failed to store graph: %w", err)
	}
	return nil
}

// SurveyCmd lists what occurs in a corpus, to help write a profile.
type SurveyCmd struct {
	Source  string   `arg:"" help:"Corpus directory" type:"existingdir"`
	Exclude []string `help:"Gitignore patterns of documents to skip" sep:","`
}

type tagStats struct {
	count int
	attrs map[string]int
}

func (c *SurveyCmd) Run() error {
	if err := validation.ValidatePath(c.Source); err != nil {
		return fmt.Errorf("invalid source path: %w", err)
	}
	src, err := source.NewDir(c.Source, c.Exclude...)
	if err != nil {
		return err
	}
	groups, err := src.Groups()
	if err != nil {
		return err
	}

	tags := make(map[string]*tagStats)
	docs := 0
	for _, g := range groups {
		for _, file := range g.Files {
			data, err := src.Read(g.Folder, file)
			if err != nil {
				return err
			}
			doc, err := xml.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", source.DocPath(g.Folder, file), err)
			}
			nodes, err := doc.XPath("//*")
			if err != nil {
				return err
			}
			for _, n := range nodes {
				st := tags[n.Name()]
				if st == nil {
					st = &tagStats{attrs: make(map[string]int)}
					tags[n.Name()] = st
				}
				st.count++
				for _, a := range n.Attributes() {
					st.attrs[a.QName()]++
				}
			}
			docs++
		}
	}

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Documents: %d\n", docs)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tCOUNT\tATTRIBUTES")
	for _, name := range names {
		st := tags[name]
		attrs := make([]string, 0, len(st.attrs))
		for a := range st.attrs {
			attrs = append(attrs, a)
		}
		sort.Strings(attrs)
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, st.count, strings.Join(attrs, " "))
	}
	return w.Flush()
}

// FeaturesCmd prints the feature table of a profile.
type FeaturesCmd struct {
	ProfileFlags
}

func (c *FeaturesCmd) Run() error {
	p, err := c.load()
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	fmt.Printf("Profile: %s (slot type %s)\n", p.Name, p.SlotType)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tTYPE\tDESCRIPTION")
	for _, name := range p.FeatureNames() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, p.ValueType(name), p.Features[name].Description)
	}
	return w.Flush()
}

// FingerprintCmd hashes the converted graph without writing it.
type FingerprintCmd struct {
	ProfileFlags
	WalkFlags

	Source string `arg:"" help:"Corpus directory" type:"existingdir"`
	Dump   bool   `help:"Print the canonical graph dump instead of its hash"`
}

func (c *FingerprintCmd) Run(g *Globals) error {
	logging.InitLogger(logging.ParseLevel(g.LogLevel), logging.ParseFormat(g.LogFormat))

	p, err := c.load()
	if err != nil {
		return err
	}
	gr, _, err := run(context.Background(), c.Source, p, c.WalkFlags, convert.WithLogger(logging.GetLogger()))
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	if c.Dump {
		return gr.Dump(os.Stdout)
	}
	h := gr.Fingerprint()
	fmt.Printf("SHA-256: %s\n", h.SHA256)
	fmt.Printf("BLAKE3: %s\n", h.BLAKE3)
	return nil
}

// VerifyCmd unpacks a bundle and checks every file against its manifest.
type VerifyCmd struct {
	Bundle string `arg:"" help:"Path to bundle" type:"existingfile"`
	Out    string `help:"Extract into this directory instead of a temporary one" type:"path"`
}

func (c *VerifyCmd) Run() error {
	if err := validation.ValidatePath(c.Bundle); err != nil {
		return fmt.Errorf("invalid bundle path: %w", err)
	}

	dest := c.Out
	if dest == "" {
		tempDir, err := os.MkdirTemp("", "juniper-tf-verify-*")
		if err != nil {
			return fmt.Errorf("failed to create temp directory: %w", err)
		}
		defer os.RemoveAll(tempDir)
		dest = tempDir
	}

	m, err := bundle.Unpack(c.Bundle, dest)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Printf("Bundle: %s\n", c.Bundle)
	fmt.Printf("  Version: %s\n", m.BundleVersion)
	if m.CreatedAt != "" {
		fmt.Printf("  Created: %s\n", m.CreatedAt)
	}
	for _, f := range m.Files {
		fmt.Printf("  [OK] %s (%d bytes)\n", f.Name, f.SizeBytes)
	}
	if c.Out != "" {
		fmt.Printf("Extracted: %s\n", filepath.Clean(c.Out))
	}
	fmt.Println("Verification passed!")
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Printf("juniper-tf version %s\n", version)
	fmt.Printf("  SQLite driver: %s (%s)\n", info.Package, info.DriverType)
	fmt.Printf("  Profiles: %s\n", strings.Join(convert.BuiltinNames(), ", "))
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("juniper-tf"),
		kong.Description("Convert Lowfat Greek New Testament XML to Text-Fabric"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}
