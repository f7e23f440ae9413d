// Package relaylog builds the structured logger shared by every relaycore
// component. Chunk payloads and status strings in this domain never
// carry secrets, so there's no credential-redaction layer here.
package relaylog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jmylchreest/relaycore/internal/config"
)

// GlobalLevel is the shared log level that can be changed at runtime via
// SetLevel.
var GlobalLevel = &slog.LevelVar{}

// New creates a new slog.Logger writing to stdout based on cfg.
func New(cfg config.LoggingConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a new slog.Logger writing to w. Useful for tests
// that want to assert on emitted log lines.
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	GlobalLevel.Set(parseLevel(cfg.Level))

	opts := &slog.HandlerOptions{
		Level:     GlobalLevel,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the global log level at runtime.
func SetLevel(level string) {
	GlobalLevel.Set(parseLevel(level))
}

// WithStream returns a logger scoped to a single live stream id, so every
// line it emits can be filtered back to one (channel, quality) pair.
func WithStream(logger *slog.Logger, liveStreamID string) *slog.Logger {
	return logger.With(slog.String("live_stream_id", liveStreamID))
}

// WithComponent tags a logger with the subsystem emitting the line.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// loggerKey is the context key used by FromContext/ContextWith.
type loggerKey struct{}

// FromContext extracts a logger from ctx, falling back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// ContextWith attaches logger to ctx.
func ContextWith(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}
