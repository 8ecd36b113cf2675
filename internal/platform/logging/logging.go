// Package logging builds the service's slog loggers and carries a
// request-scoped logger through context.Context.
//
//	logger := logging.New("info", "json", os.Stderr)
//	ctx = logging.With(ctx, slog.String("request_id", id))
//	logging.FromContext(ctx).InfoContext(ctx, "proxied", slog.Int("status", 200))
//
// Error logs name the operation and carry the full chain:
//
//	logger.ErrorContext(ctx, "dispatch failed",
//	    slog.String("operation", "app.dispatch"),
//	    slog.Any("error", err),
//	)
//
// Every logger built here runs its attributes through the masq redactor, so
// credentials that reach a log call by accident are masked.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type contextKey struct{}

// New returns a logger writing to w.
//
// level is one of debug, info, warn or error (case-insensitive); anything
// else means info. Debug loggers also record the source location. format
// "text" selects the logfmt-style handler; any other value selects JSON.
func New(level, format string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)

	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   lvl == slog.LevelDebug,
		ReplaceAttr: newRedactAttr(),
	}

	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps a level name to its slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// With stores a child of the context logger that carries args on every
// record.
func With(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	return WithLogger(ctx, FromContext(ctx).With(args...))
}
