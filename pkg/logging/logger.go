// Package logging configures structured zerolog output for the USAspending client.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Debug forces LevelDebug regardless of Level.
	Debug bool

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// File, when set, additionally writes JSON logs to a rotated file.
	File string

	// FileMaxSizeMB is the rotation threshold for File (default 50).
	FileMaxSizeMB int

	// FileMaxBackups is the number of rotated files kept (default 3).
	FileMaxBackups int
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:          LevelInfo,
		Pretty:         false,
		Output:         os.Stderr,
		FileMaxSizeMB:  50,
		FileMaxBackups: 3,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	if cfg.File != "" {
		output = zerolog.MultiLevelWriter(output, newFileWriter(cfg))
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	log.Logger = logger

	return logger
}

// newFileWriter returns a size-rotated writer for cfg.File.
func newFileWriter(cfg Config) io.Writer {
	maxSize := cfg.FileMaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	backups := cfg.FileMaxBackups
	if backups <= 0 {
		backups = 3
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: backups,
		Compress:   false,
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error", "critical":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow detail
//   - Cache hit/miss per fingerprint
//   - Page requests (cursor, requested size)
//   - Lazy field resolution
//
// Info: normal operation
//   - Query iteration start/finish with page counts
//   - Requests that succeeded after retry
//
// Warn: recoverable conditions
//   - Retry attempts and rate limiter waits
//   - Cache backend errors (request falls through to the network)
//   - Inconsistent upstream pages (short page with hasNext=true)
//
// Error: failures surfaced to the caller
//   - Exhausted retries
//   - Non-retryable API errors
//
// Context Fields:
//   - endpoint, method, status, error_class
//   - attempt, backoff
//   - fingerprint, cache_hit
//   - page, requested, emitted, remaining
//   - resource, resource_id (lazy loading)
