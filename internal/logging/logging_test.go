package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLogOutput reinitializes the logger to write to a buffer for the
// duration of f, exercising the InitLoggerTo ReplaceAttr logic.
func captureLogOutput(level Level, format Format, f func()) string {
	var buf bytes.Buffer
	InitLoggerTo(&buf, level, format)
	f()
	InitLogger(LevelInfo, FormatText)
	return buf.String()
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  Level
		format Format
	}{
		{"Debug level JSON format", LevelDebug, FormatJSON},
		{"Info level JSON format", LevelInfo, FormatJSON},
		{"Warn level Text format", LevelWarn, FormatText},
		{"Error level Text format", LevelError, FormatText},
		{"Default level (invalid value)", Level(999), FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitLogger(tt.level, tt.format)
			if GetLogger() == nil {
				t.Error("Expected logger to be initialized, got nil")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if ParseFormat("JSON") != FormatJSON || ParseFormat("text") != FormatText {
		t.Error("ParseFormat mismatch")
	}
}

func TestLevelFiltering(t *testing.T) {
	output := captureLogOutput(LevelWarn, FormatText, func() {
		InfoContext(context.Background(), "hidden message")
		Warn("visible message")
	})
	if strings.Contains(output, "hidden message") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(output, "visible message") {
		t.Error("warn message missing")
	}
}

func TestTimestampFormat(t *testing.T) {
	output := captureLogOutput(LevelInfo, FormatJSON, func() {
		InfoContext(context.Background(), "stamped")
	})

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, output)
	}
	ts, _ := entry["time"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	if GetRunID(ctx) != "" {
		t.Error("empty context should have no run ID")
	}

	id := NewRunID()
	if len(id) != 36 {
		t.Errorf("NewRunID() = %q, want a UUID", id)
	}
	ctx = WithRunID(ctx, id)
	if GetRunID(ctx) != id {
		t.Errorf("GetRunID() = %q, want %q", GetRunID(ctx), id)
	}

	output := captureLogOutput(LevelInfo, FormatJSON, func() {
		InfoContext(ctx, "with run")
	})
	if !strings.Contains(output, `"run_id":"`+id+`"`) {
		t.Errorf("run_id not attached: %s", output)
	}

	tests := []struct {
		name  string
		log   func(context.Context, string, ...any)
		level string
	}{
		{"warn", WarnContext, `"level":"WARN"`},
		{"error", ErrorContext, `"level":"ERROR"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureLogOutput(LevelInfo, FormatJSON, func() {
				tt.log(ctx, "with run")
			})
			if !strings.Contains(output, tt.level) || !strings.Contains(output, id) {
				t.Errorf("output = %s", output)
			}
		})
	}
}

func TestDomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	DocumentStart(logger, 3, "nt/03-luke.xml")
	ConversionSummary(logger, 27, 137779, 400000, 1500*time.Millisecond, "books", 27)

	out := buf.String()
	for _, want := range []string{
		`"msg":"document_start"`,
		`"path":"nt/03-luke.xml"`,
		`"msg":"conversion_summary"`,
		`"slots":137779`,
		`"duration_ms":1500`,
		`"books":27`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}
