package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewTextHandler(t *testing.T) {
	t.Setenv("GO_ENV", "")

	var buf bytes.Buffer
	l := New(&buf, "info")
	l.Debug("hidden")
	l.Info("visible", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record should be filtered at info level")
	}
	if !strings.Contains(out, "msg=visible") || !strings.Contains(out, "k=v") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestNewJSONHandlerInProduction(t *testing.T) {
	t.Setenv("GO_ENV", "production")

	var buf bytes.Buffer
	New(&buf, "debug").Debug("payload", "n", 3)

	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"n":3`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestLevelFor(t *testing.T) {
	if LevelFor(true) != "debug" {
		t.Error("LevelFor(true) should be debug")
	}
	if LevelFor(false) != "info" {
		t.Error("LevelFor(false) should be info")
	}
}
