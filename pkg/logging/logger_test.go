package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Pretty should default to false")
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want empty", cfg.File)
	}
	if cfg.FileMaxSizeMB != 50 || cfg.FileMaxBackups != 3 {
		t.Errorf("rotation defaults = %d/%d, want 50/3", cfg.FileMaxSizeMB, cfg.FileMaxBackups)
	}
}

func TestSetup_WritesAtConfiguredLevel(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		emit  func(zerolog.Logger)
		want  string
	}{
		{"debug", LevelDebug, func(l zerolog.Logger) { l.Debug().Msg("page requested") }, "page requested"},
		{"info", LevelInfo, func(l zerolog.Logger) { l.Info().Msg("query finished") }, "query finished"},
		{"warn", LevelWarn, func(l zerolog.Logger) { l.Warn().Msg("retrying request") }, "retrying request"},
		{"error", LevelError, func(l zerolog.Logger) { l.Error().Msg("retries exhausted") }, "retries exhausted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.emit(logger)

			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output %q does not contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestSetup_DebugOverridesLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelError, Debug: true, Output: buf})

	logger.Debug().Msg("cache miss")

	if !strings.Contains(buf.String(), "cache miss") {
		t.Errorf("debug message missing with Debug=true: %q", buf.String())
	}
}

func TestSetup_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	buf := &bytes.Buffer{}

	logger := Setup(Config{Level: LevelInfo, Output: buf, File: path})
	logger.Info().Str("endpoint", "/search/spending_by_award/").Msg("query started")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "spending_by_award") {
		t.Errorf("log file missing entry: %q", data)
	}
	if !strings.Contains(buf.String(), "query started") {
		t.Errorf("console output missing entry: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"critical", zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLogger_AddsComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	NewLogger("pagination").Info().Msg("run complete")

	out := buf.String()
	if !strings.Contains(out, `"component":"pagination"`) {
		t.Errorf("component field missing: %q", out)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("test")
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below warn leaked: %q", out)
	}
	if !strings.Contains(out, "warn message") {
		t.Errorf("warn message missing: %q", out)
	}
}
