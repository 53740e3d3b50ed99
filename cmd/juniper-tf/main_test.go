package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/JuniperTF/core/graphdb"
	"github.com/FocuswithJustin/JuniperTF/core/sqlite"
)

const matthewXML = `<?xml version="1.0" encoding="UTF-8"?>
<book id="Mat">
  <sentence>
    <w ref="Mat 1:1!1" lemma="βίβλος" class="noun">Βίβλος</w>
    <w ref="Mat 1:1!2" lemma="γένεσις" class="noun">γενέσεως</w>
    <w ref="Mat 1:2!1" lemma="Ἀβραάμ" class="noun">Ἀβραὰμ</w>
  </sentence>
</book>
`

const markXML = `<book id="Mrk">
  <sentence>
    <w ref="Mrk 1:1!1" lemma="ἀρχή" class="noun">Ἀρχὴ</w>
  </sentence>
</book>
`

// Test helper functions

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func createTestCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	createTestFile(t, dir, "nt/01-matthew.xml", matthewXML)
	createTestFile(t, dir, "nt/02-mark.xml", markXML)
	createTestFile(t, dir, "nt/notes.txt", "not a document")
	return dir
}

func quietGlobals() *Globals {
	return &Globals{LogLevel: "error", LogFormat: "text"}
}

func readTestFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// Tests for ConvertCmd

func TestConvertCmd_Run(t *testing.T) {
	corpus := createTestCorpus(t)
	outDir := t.TempDir()
	out := filepath.Join(outDir, "tf")
	dbPath := filepath.Join(outDir, "graph.db")
	bundlePath := filepath.Join(outDir, "nt.tf.tar.gz")
	metricsPath := filepath.Join(outDir, "junipertf.prom")

	cmd := &ConvertCmd{
		ProfileFlags: ProfileFlags{Profile: "lowfat"},
		Source:       corpus,
		Out:          out,
		SQLite:       dbPath,
		Bundle:       bundlePath,
		Compression:  "gzip",
		MetricsFile:  metricsPath,
		Date:         true,
	}
	if err := cmd.Run(quietGlobals()); err != nil {
		t.Fatalf("ConvertCmd.Run() error = %v", err)
	}

	otype := readTestFile(t, filepath.Join(out, "otype.tf"))
	if !strings.Contains(otype, "\n1-4\tw\n") {
		t.Errorf("otype.tf does not number four words first:\n%s", otype)
	}
	if !strings.Contains(otype, "@dateWritten=") {
		t.Error("otype.tf has no dateWritten")
	}
	text := readTestFile(t, filepath.Join(out, "text.tf"))
	if !strings.HasSuffix(text, "\nΒίβλος\nγενέσεως\nἈβραὰμ\nἈρχὴ\n") {
		t.Errorf("text.tf data =\n%s", text)
	}

	db, err := sqlite.OpenReadOnly(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	st, err := graphdb.ReadStats(context.Background(), db)
	if err != nil {
		t.Fatalf("ReadStats() error = %v", err)
	}
	if st.Slots != 4 {
		t.Errorf("database slots = %d, want 4", st.Slots)
	}

	if got := readTestFile(t, metricsPath); !strings.Contains(got, "junipertf_slots_total 4") {
		t.Errorf("metrics file does not count slots:\n%s", got)
	}

	if err := (&VerifyCmd{Bundle: bundlePath}).Run(); err != nil {
		t.Errorf("VerifyCmd.Run() error = %v", err)
	}
}

func TestConvertCmd_Deterministic(t *testing.T) {
	corpus := createTestCorpus(t)
	a := filepath.Join(t.TempDir(), "a")
	b := filepath.Join(t.TempDir(), "b")

	for _, out := range []string{a, b} {
		cmd := &ConvertCmd{
			ProfileFlags: ProfileFlags{Profile: "macula"},
			Source:       corpus,
			Out:          out,
			Compression:  "xz",
		}
		if err := cmd.Run(quietGlobals()); err != nil {
			t.Fatalf("ConvertCmd.Run() error = %v", err)
		}
	}

	entries, err := os.ReadDir(a)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if readTestFile(t, filepath.Join(a, e.Name())) != readTestFile(t, filepath.Join(b, e.Name())) {
			t.Errorf("%s differs between runs", e.Name())
		}
	}
}

func TestConvertCmd_Suppress(t *testing.T) {
	corpus := createTestCorpus(t)
	out := filepath.Join(t.TempDir(), "tf")

	cmd := &ConvertCmd{
		ProfileFlags: ProfileFlags{Profile: "lowfat"},
		WalkFlags:    WalkFlags{Suppress: []string{"lemma"}},
		Source:       corpus,
		Out:          out,
		Compression:  "xz",
	}
	if err := cmd.Run(quietGlobals()); err != nil {
		t.Fatalf("ConvertCmd.Run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "lemma.tf")); !os.IsNotExist(err) {
		t.Error("suppressed feature was written")
	}
}

func TestConvertCmd_Errors(t *testing.T) {
	corpus := createTestCorpus(t)

	tests := []struct {
		name string
		cmd  ConvertCmd
	}{
		{
			name: "unknown profile",
			cmd:  ConvertCmd{ProfileFlags: ProfileFlags{Profile: "nestle"}, Compression: "xz"},
		},
		{
			name: "missing config",
			cmd:  ConvertCmd{ProfileFlags: ProfileFlags{Config: "/nonexistent/profile.yaml"}, Compression: "xz"},
		},
		{
			name: "unknown compression",
			cmd:  ConvertCmd{ProfileFlags: ProfileFlags{Profile: "lowfat"}, Compression: "zstd"},
		},
		{
			name: "control character in output",
			cmd:  ConvertCmd{ProfileFlags: ProfileFlags{Profile: "lowfat"}, Compression: "xz", Out: "out\x00dir"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd
			cmd.Source = corpus
			if cmd.Out == "" {
				cmd.Out = filepath.Join(t.TempDir(), "tf")
			}
			if err := cmd.Run(quietGlobals()); err == nil {
				t.Error("ConvertCmd.Run() expected error")
			}
		})
	}
}

func TestConvertCmd_BadMarkup(t *testing.T) {
	corpus := t.TempDir()
	createTestFile(t, corpus, "01-matthew.xml", `<book id="Mat"><w ref="Mat 1:1!1">x</book>`)

	cmd := &ConvertCmd{
		ProfileFlags: ProfileFlags{Profile: "lowfat"},
		Source:       corpus,
		Out:          filepath.Join(t.TempDir(), "tf"),
		Compression:  "xz",
	}
	err := cmd.Run(quietGlobals())
	if err == nil || !strings.Contains(err.Error(), "01-matthew.xml") {
		t.Errorf("ConvertCmd.Run() error = %v, want error naming the document", err)
	}
}

// Tests for the other commands

func TestSurveyCmd_Run(t *testing.T) {
	if err := (&SurveyCmd{Source: createTestCorpus(t)}).Run(); err != nil {
		t.Errorf("SurveyCmd.Run() error = %v", err)
	}

	bad := t.TempDir()
	createTestFile(t, bad, "broken.xml", "<book><w>x</book>")
	if err := (&SurveyCmd{Source: bad}).Run(); err == nil {
		t.Error("SurveyCmd.Run() expected error for broken markup")
	}
}

func TestFeaturesCmd_Run(t *testing.T) {
	tests := []struct {
		profile string
		wantErr bool
	}{
		{"lowfat", false},
		{"macula", false},
		{"nestle", true},
	}
	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			err := (&FeaturesCmd{ProfileFlags{Profile: tt.profile}}).Run()
			if (err != nil) != tt.wantErr {
				t.Errorf("FeaturesCmd.Run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFeaturesCmd_Config(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "profile.yaml", "base: macula\nname: custom\n")
	if err := (&FeaturesCmd{ProfileFlags{Config: path}}).Run(); err != nil {
		t.Errorf("FeaturesCmd.Run() error = %v", err)
	}
}

func TestFingerprintCmd_Run(t *testing.T) {
	corpus := createTestCorpus(t)
	for _, dump := range []bool{false, true} {
		cmd := &FingerprintCmd{ProfileFlags: ProfileFlags{Profile: "lowfat"}, Source: corpus, Dump: dump}
		if err := cmd.Run(quietGlobals()); err != nil {
			t.Errorf("FingerprintCmd.Run(dump=%v) error = %v", dump, err)
		}
	}
}

func TestVerifyCmd_Run(t *testing.T) {
	corpus := createTestCorpus(t)
	dir := t.TempDir()
	bundlePath := filepath.Join(dir, "nt.tf.tar.xz")

	cmd := &ConvertCmd{
		ProfileFlags: ProfileFlags{Profile: "lowfat"},
		Source:       corpus,
		Out:          filepath.Join(dir, "tf"),
		Bundle:       bundlePath,
		Compression:  "xz",
	}
	if err := cmd.Run(quietGlobals()); err != nil {
		t.Fatalf("ConvertCmd.Run() error = %v", err)
	}

	extract := filepath.Join(dir, "extracted")
	if err := (&VerifyCmd{Bundle: bundlePath, Out: extract}).Run(); err != nil {
		t.Fatalf("VerifyCmd.Run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(extract, "otype.tf")); err != nil {
		t.Errorf("otype.tf not extracted: %v", err)
	}

	plain := createTestFile(t, dir, "plain.txt", "not an archive")
	if err := (&VerifyCmd{Bundle: plain}).Run(); err == nil {
		t.Error("VerifyCmd.Run() expected error for plain file")
	}
}

func TestVersionCmd_Run(t *testing.T) {
	if err := (&VersionCmd{}).Run(); err != nil {
		t.Errorf("VersionCmd.Run() error = %v", err)
	}
}

func TestCLIParse(t *testing.T) {
	cli := CLI
	parser, err := kong.New(&cli, kong.Name("juniper-tf"))
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}

	corpus := createTestCorpus(t)
	ctx, err := parser.Parse([]string{
		"--log-level", "debug",
		"convert", corpus,
		"--out", filepath.Join(t.TempDir(), "tf"),
		"--suppress", "lemma,gloss",
		"--tail-after",
		"--no-date",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ctx.Command() != "convert <source>" {
		t.Errorf("Command() = %q", ctx.Command())
	}
	if cli.LogLevel != "debug" || cli.Convert.Profile != "lowfat" || cli.Convert.Compression != "xz" {
		t.Errorf("flags = %+v %+v", cli.Globals, cli.Convert.ProfileFlags)
	}
	if len(cli.Convert.Suppress) != 2 || !cli.Convert.TailAfter || cli.Convert.Date {
		t.Errorf("convert flags = %+v", cli.Convert.WalkFlags)
	}
}
