// Package logging provides structured logging for the orchestration
// service: slog-based loggers with request tracing and redaction of
// sensitive payload fields.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds the logging configuration.
type Config struct {
	// Level sets the minimum log level: debug, info, warn, error.
	Level string

	// Format specifies the output format: json or text.
	Format string

	// Output specifies the output destination: stdout, stderr, or a file path.
	Output string

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// SampleRate thins debug logs (0.0-1.0, 1.0 = log all).
	SampleRate float64

	// Redact enables redaction of sensitive fields in log attributes.
	// Workflow contexts carry order payloads, so this defaults to on.
	Redact bool
}

// DefaultConfig returns sensible defaults for logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		SampleRate: 1.0,
		Redact:     true,
	}
}

// ConfigFromEnv creates a configuration from environment variables.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = strings.ToLower(level)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = strings.ToLower(format)
	}
	if output := os.Getenv("LOG_OUTPUT"); output != "" {
		cfg.Output = output
	}
	if os.Getenv("LOG_ADD_SOURCE") == "true" {
		cfg.AddSource = true
	}
	if os.Getenv("LOG_REDACT") == "false" {
		cfg.Redact = false
	}

	return cfg
}

// ParseLevel converts a string level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// GetOutput returns the io.Writer for the configured output.
func (c Config) GetOutput() io.Writer {
	switch c.Output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return os.Stdout
		}
		return f
	}
}
