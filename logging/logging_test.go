package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func setup(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var buf bytes.Buffer
	if err := Setup(&buf, level, format); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestNewCarriesComponent(t *testing.T) {
	buf := setup(t, "debug", "text")

	New("engine").Info("run finished", "rows", 3)

	out := buf.String()
	if !strings.Contains(out, "component=engine") {
		t.Errorf("expected component=engine in output, got: %s", out)
	}
	if !strings.Contains(out, "rows=3") {
		t.Errorf("expected rows=3 in output, got: %s", out)
	}
	if strings.Contains(out, "time=") {
		t.Errorf("text output should carry no timestamp, got: %s", out)
	}
}

func TestSetupJSON(t *testing.T) {
	buf := setup(t, "info", "json")

	New("cli").Info("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"cli"`) {
		t.Errorf("expected JSON component field, got: %s", out)
	}
	if !strings.Contains(out, `"level":"INFO"`) {
		t.Errorf("expected JSON level field, got: %s", out)
	}
	if !strings.Contains(out, `"time"`) {
		t.Errorf("JSON output keeps its timestamp, got: %s", out)
	}
}

func TestSetupLevelGating(t *testing.T) {
	buf := setup(t, "WARN", "")

	New("gate").Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected info to be gated at warn, got: %s", buf.String())
	}
	New("gate").Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("expected warn message, got: %s", buf.String())
	}
}

func TestSetupErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(&buf, "loud", "text"); err == nil || !strings.Contains(err.Error(), "unknown level") {
		t.Errorf("expected unknown level error, got %v", err)
	}
	if err := Setup(&buf, "info", "xml"); err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"Error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("%q: unexpected error %v", in, err)
		}
		if got != want {
			t.Errorf("%q: expected %v, got %v", in, want, got)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestDiscard(t *testing.T) {
	if Discard().Enabled(t.Context(), slog.LevelError) {
		t.Error("discard logger should be disabled at every level")
	}
}
