package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type ContextKey string

const (
	RequestIDContextKey  ContextKey = "RequestIDContextKey"
	LoggerNameContextKey ContextKey = "LoggerNameContextKey"
)

var (
	RequestIDKey  = "request_id"
	LoggerNameKey = "logger_name"
)

// Handler adds the request id and logger name stored in the context to
// every record.
type Handler struct {
	slog.Handler
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	requestID, ok := ctx.Value(RequestIDContextKey).(string)
	if ok {
		record.AddAttrs(slog.String(RequestIDKey, requestID))
	}

	loggerName, ok := ctx.Value(LoggerNameContextKey).(string)
	if ok {
		record.AddAttrs(slog.String(LoggerNameKey, loggerName))
	}

	return h.Handler.Handle(ctx, record)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		Handler: h.Handler.WithAttrs(attrs),
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		Handler: h.Handler.WithGroup(name),
	}
}

// New builds a logger writing to w. format is "json" or "text".
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var base slog.Handler
	if strings.ToLower(format) == "text" {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}

	return slog.New(&Handler{Handler: base})
}

// ParseLevel maps a level name to a slog level; unknown names mean info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDContextKey, requestID)
}

func WithLoggerName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, LoggerNameContextKey, name)
}
