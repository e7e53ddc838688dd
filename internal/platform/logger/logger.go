package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Supported output formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config holds the logging settings.
type Config struct {
	// Level is one of debug, info, warn or error (case-insensitive)
	Level string
	// Format is json (default) or text
	Format string
}

// Setup initializes the application's logging system writing to stdout.
// See SetupWithWriter.
func Setup(cfg Config) (*slog.Logger, error) {
	return SetupWithWriter(cfg, os.Stdout)
}

// SetupWithWriter creates a structured logger with the configured level and
// format writing to out, and sets it as the default logger for the application.
// An invalid level falls back to info after a warning on stderr.
func SetupWithWriter(cfg Config, out io.Writer) (*slog.Logger, error) {
	level, ok := ParseLevel(cfg.Level)
	if !ok {
		// Create a temporary logger to output the warning
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, FormatText) {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)

	// This allows using the slog package functions directly (slog.Info, slog.Error, etc.)
	slog.SetDefault(logger)

	return logger, nil
}

// ParseLevel converts a level name into a slog.Level. The second return value
// is false when the name is not recognized, in which case LevelInfo is returned.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
