package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		enable   slog.Level
		disabled slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"warn level", "warn", slog.LevelWarn, slog.LevelInfo},
		{"warning alias", "WARNING", slog.LevelWarn, slog.LevelInfo},
		{"default info", "", slog.LevelInfo, slog.LevelDebug},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
			if logger.Enabled(ctx, tt.disabled) {
				t.Fatalf("expected level %s to be disabled", tt.disabled)
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	if logger.Logger == nil {
		t.Fatal("Default() returned Logger with nil slog.Logger")
	}
	if logger == Default() {
		t.Error("Default() returned the same instance twice")
	}
}

func TestNewWithOptionsMirrorsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	var buf bytes.Buffer

	logger, err := NewWithOptions(Options{Level: "info", File: path, Output: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.With("component", "test").Info("hello", "user_id", 42)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, out := range []string{buf.String(), string(data)} {
		if !strings.Contains(out, `"component":"test"`) || !strings.Contains(out, `"user_id":42`) {
			t.Fatalf("expected structured record, got %q", out)
		}
	}
}

func TestNewWithOptionsBadFileStillLogs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOptions(Options{File: filepath.Join(t.TempDir(), "missing", "x.log"), Output: &buf})
	if err == nil {
		t.Fatal("expected file error")
	}
	logger.Info("still here")
	if !strings.Contains(buf.String(), "still here") {
		t.Fatalf("expected stdout logging to continue, got %q", buf.String())
	}
}
