// Package logger configures the process-wide slog logger and carries run
// attributes on the context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	categoryKey contextKey = "category"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Init installs the default slog logger. Output goes to stderr so the CLI
// summary on stdout stays machine readable.
func Init(cfg Config) {
	InitWriter(cfg, os.Stderr)
}

// InitWriter is Init with an explicit destination.
func InitWriter(cfg Config, w io.Writer) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
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

// WithRunID tags ctx with the journal id of the current run.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// WithCategory tags ctx with the filing category being processed.
func WithCategory(ctx context.Context, category string) context.Context {
	return context.WithValue(ctx, categoryKey, category)
}

// WithContext returns the default logger enriched with the run attributes
// found on ctx.
func WithContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id, ok := ctx.Value(runIDKey).(string); ok && id != "" {
		l = l.With("run_id", id)
	}
	if c, ok := ctx.Value(categoryKey).(string); ok && c != "" {
		l = l.With("category", c)
	}
	return l
}
