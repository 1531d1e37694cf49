package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"qualquer", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogErrorIncludesRunID(t *testing.T) {
	var buf bytes.Buffer
	old := Logger
	Logger = New(&buf, "DEBUG", "json")
	defer func() { Logger = old }()

	ctx := WithRunID(context.Background(), "run-123")
	LogError(ctx, errors.New("boom"), "falhou")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-123"`) {
		t.Errorf("expected run_id in output, got %s", out)
	}
	if !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("expected error in output, got %s", out)
	}
}

func TestGetRunIDWithoutValue(t *testing.T) {
	if got := GetRunID(context.Background()); got != "" {
		t.Errorf("expected empty run id, got %q", got)
	}
}
