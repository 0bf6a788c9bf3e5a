package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "livemap-api", "info", "json")

	logger.Debug("hidden")
	logger.Info("refreshed", "layer", "vehicles")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 record, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["service"] != "livemap-api" {
		t.Errorf("service = %v", rec["service"])
	}
	if rec["layer"] != "vehicles" {
		t.Errorf("layer = %v", rec["layer"])
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "", "debug", "text").Debug("tick", "n", 1)

	out := buf.String()
	if !strings.Contains(out, "msg=tick") || !strings.Contains(out, "n=1") {
		t.Errorf("unexpected text record: %q", out)
	}
	if strings.Contains(out, "service=") {
		t.Errorf("empty service should be omitted: %q", out)
	}
}
