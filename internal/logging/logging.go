// Package logging provides the structured-logging foundation shared by
// every subsystem (discovery, router, hardening, registry, orchestrator,
// httpserver), tagging each record with the emitting component.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format specifies the output format for structured logging.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds configuration for structured logging.
type Config struct {
	Level     slog.Level
	Format    Format
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns INFO-level text logging to stderr, matching
// LOG_LEVEL=INFO, LOG_FORMAT=text from §6's configuration surface.
func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, Format: FormatText, Output: os.Stderr}
}

// New creates a structured logger from cfg, wrapped with redaction. The
// component tag is added per-call-site via WithComponent rather than
// baked into the root logger, since a single process hosts many
// components.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String("ts", t.Format(time.RFC3339Nano))
				}
			}
			if a.Key == slog.MessageKey {
				a.Key = "msg"
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(cfg.Output, opts)
	default:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	handler = NewRedactingHandler(handler)

	return slog.New(handler)
}

// WithComponent returns a new logger tagging every record with the given
// subsystem name (e.g. "discovery", "router", "hardening").
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithCorrelationID returns a new logger tagging every record with a
// correlation id, so an operator can grep server logs for the id surfaced
// to a client in a failed response.
func WithCorrelationID(logger *slog.Logger, correlationID string) *slog.Logger {
	return logger.With(slog.String("correlation_id", correlationID))
}

// ParseLevel converts LOG_LEVEL's string value to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat converts LOG_FORMAT's string value to a Format.
func ParseFormat(format string) Format {
	switch strings.ToLower(format) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// DiscardHandler is a slog.Handler that discards all records, used as the
// default logger for collaborators constructed before a real logger is
// wired in (e.g. a router Client created before SetLogger is called).
type DiscardHandler struct{}

func (DiscardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (DiscardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d DiscardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d DiscardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
func Discard() *slog.Logger {
	return slog.New(DiscardHandler{})
}
