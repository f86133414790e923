// Package logging builds the process-wide slog.Logger from startup configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the handler.
type Format int

const (
	// FormatText writes logfmt-style lines.
	FormatText Format = iota
	// FormatJSON writes one JSON object per line.
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat maps "json" to FormatJSON and anything else to FormatText.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// ParseLevel accepts debug, info, warn/warning and error in any case. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config holds logger settings.
type Config struct {
	Level     slog.Level
	Format    Format
	Output    io.Writer
	AddSource bool
	// Service is attached to every record.
	Service string
	Version string
}

// DefaultConfig logs at info level as text to stderr.
func DefaultConfig() Config {
	return Config{
		Level:   slog.LevelInfo,
		Format:  FormatText,
		Output:  os.Stderr,
		Service: "spartanfiles",
		Version: "dev",
	}
}

// New returns a logger for cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	if cfg.Version != "" {
		logger = logger.With("version", cfg.Version)
	}
	return logger
}
