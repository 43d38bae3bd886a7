// ABOUTME: Structured logging through log/slog backed by a charmbracelet/log handler
// ABOUTME: Carries request IDs in context so every layer logs with the same correlation key
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// RequestIDKey is the context key for request IDs.
const RequestIDKey ContextKey = "request_id"

var defaultLogger *slog.Logger

func init() {
	// stderr keeps stdout free for the MCP stdio transport
	Init("info", "text", os.Stderr)
}

// Init configures the package logger. level is debug|info|warn|error,
// format is text|logfmt|json. Unknown values fall back to info and text.
func Init(level, format string, w io.Writer) *slog.Logger {
	lvl, err := charmlog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = charmlog.InfoLevel
	}

	formatter := charmlog.TextFormatter
	switch strings.ToLower(format) {
	case "json":
		formatter = charmlog.JSONFormatter
	case "logfmt":
		formatter = charmlog.LogfmtFormatter
	}

	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           lvl,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

// Logger returns the package logger.
func Logger() *slog.Logger {
	return defaultLogger
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns the package logger with request-scoped attributes attached.
func FromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if id := RequestID(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	return logger
}

// HTTPRequest logs a completed HTTP request.
func HTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	FromContext(ctx).Info("http_request",
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
	)
}

// ProviderCall logs a finished provider call at debug level, or warn on failure.
func ProviderCall(ctx context.Context, provider, op string, duration time.Duration, err error) {
	logger := FromContext(ctx)
	if err != nil {
		logger.Warn("provider_call_failed", "provider", provider, "op", op, "duration_ms", duration.Milliseconds(), "error", err)
		return
	}
	logger.Debug("provider_call", "provider", provider, "op", op, "duration_ms", duration.Milliseconds())
}
