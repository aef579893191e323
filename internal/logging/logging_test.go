package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ppiankov/factbot/internal/model"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{" error ", zerolog.ErrorLevel, false},
		{"loud", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q): unexpected error state %v", tt.in, err)
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factbot.log")

	logger, closer, err := New(model.LogConfig{Level: "info", File: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug().Msg("hidden")
	logger.Info().Str("user_id", "42").Msg("request served")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"message":"request served"`) || !strings.Contains(out, `"user_id":"42"`) {
		t.Errorf("Expected JSON log line, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("Debug line should be filtered, got %q", out)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, _, err := New(model.LogConfig{Level: "loud"}); err == nil {
		t.Error("Expected error for invalid level")
	}
}
