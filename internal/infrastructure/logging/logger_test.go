package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// capture builds a Logger writing to buf through newHandler.
func capture(buf *bytes.Buffer, cfg config.LoggingConfig) *Logger {
	return &Logger{Logger: slog.New(newHandler(buf, cfg, "test"))}
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output %q is not JSON: %v", buf.String(), err)
	}
	return entry
}

func TestNew(t *testing.T) {
	for _, cfg := range []config.LoggingConfig{
		{Level: "info", Format: "json", Output: "stdout"},
		{Level: "debug", Format: "text", Output: "stderr"},
		{},
	} {
		if New(cfg, "1.0.0") == nil {
			t.Errorf("New(%+v) = nil", cfg)
		}
	}
}

func TestNewHandler_DefaultFields(t *testing.T) {
	var buf bytes.Buffer
	capture(&buf, config.LoggingConfig{Level: "info", Format: "json"}).Info("broker session connected", "epoch", 3)

	entry := decode(t, &buf)
	want := map[string]any{
		"msg":     "broker session connected",
		"service": serviceName,
		"version": "test",
		"epoch":   float64(3),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestNewHandler_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	capture(&buf, config.LoggingConfig{Format: "TEXT"}).Info("link up", "ssid", "Home")

	out := buf.String()
	if !strings.Contains(out, "msg=\"link up\"") || !strings.Contains(out, "ssid=Home") {
		t.Errorf("text output = %q", out)
	}
}

func TestNewHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := capture(&buf, config.LoggingConfig{Level: "warn", Format: "json"})

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %q", buf.String())
	}
	log.Warn("kept")
	if decode(t, &buf)["msg"] != "kept" {
		t.Errorf("warn entry missing")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	parent := capture(&buf, config.LoggingConfig{Format: "json"})
	child := parent.Component("supervisor")

	if child == parent {
		t.Fatal("Component() returned the parent logger")
	}
	child.Info("backing off")
	if got := decode(t, &buf)["component"]; got != "supervisor" {
		t.Errorf("component = %v, want supervisor", got)
	}
}

func TestOutputFor(t *testing.T) {
	if outputFor("stderr") == outputFor("stdout") {
		t.Error("stderr and stdout resolved to the same writer")
	}
	if outputFor("") != outputFor("stdout") {
		t.Error("empty output should default to stdout")
	}
}

func TestDefaultAndDiscard(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() = nil")
	}
	d := Discard()
	if d == nil {
		t.Fatal("Discard() = nil")
	}
	d.Error("ignored", "key", "value")
}
