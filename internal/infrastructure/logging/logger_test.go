package logging

import (
	"log/slog"
	"testing"

	"github.com/skra72/melcloudd/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
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

func TestNew_ReturnsUsableLogger(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}
	log := New(cfg, "test")
	if log == nil || log.Logger == nil {
		t.Fatal("New() returned nil logger")
	}

	// Must not panic.
	log.Debug("debug message", "key", "value")
	log.Info("info message")
}

func TestWith_AddsAttributes(t *testing.T) {
	log := Default().With("component", "test")
	if log == nil {
		t.Fatal("With() returned nil")
	}
	log.Info("message with component")
}
