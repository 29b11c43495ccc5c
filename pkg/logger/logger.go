package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance
func New() *Logger {
	level := getLogLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("APP_ENV"), "production") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
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

// WithFields adds multiple fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// Sync pipeline logging

// LogSyncAttempt logs the start of a sync_once invocation.
func (l *Logger) LogSyncAttempt(ctx context.Context) {
	l.Logger.InfoContext(ctx, "sync attempt started")
}

// LogSyncResult logs the outcome of a sync_once invocation.
func (l *Logger) LogSyncResult(ctx context.Context, fetched, upserted, updated int, duration time.Duration) {
	l.Logger.InfoContext(ctx, "sync attempt completed",
		slog.Int("fetched", fetched),
		slog.Int("inserted", upserted),
		slog.Int("updated", updated),
		slog.Duration("duration", duration),
	)
}

// LogSyncSkipped logs a dropped tick because the previous run is still in flight.
func (l *Logger) LogSyncSkipped(ctx context.Context) {
	l.Logger.WarnContext(ctx, "sync tick dropped, previous run still in progress")
}

// LogSyncFailure logs a non-fatal failure during sync_once that was swallowed.
func (l *Logger) LogSyncFailure(ctx context.Context, stage string, err error) {
	l.Logger.ErrorContext(ctx, "sync stage failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// Cache logging

// LogCacheHit logs a full or partial bucket cache hit.
func (l *Logger) LogCacheHit(ctx context.Context, months []string, partial bool) {
	l.Logger.DebugContext(ctx, "bucket cache hit",
		slog.Any("months", months),
		slog.Bool("partial", partial),
	)
}

// LogCacheMiss logs months that required a durable-store fallback.
func (l *Logger) LogCacheMiss(ctx context.Context, months []string) {
	l.Logger.DebugContext(ctx, "bucket cache miss",
		slog.Any("months", months),
	)
}

// LogCacheBypass logs a query that bypassed the cache due to decomposition size.
func (l *Logger) LogCacheBypass(ctx context.Context, monthCount int) {
	l.Logger.WarnContext(ctx, "bucket cache bypass",
		slog.Int("month_count", monthCount),
	)
}

// LogCacheFillFailure logs a best-effort async fill failure.
func (l *Logger) LogCacheFillFailure(ctx context.Context, month string, err error) {
	l.Logger.WarnContext(ctx, "bucket fill failed",
		slog.String("month", month),
		slog.String("error", err.Error()),
	)
}

// LogInvalidation logs the months dropped by a cache invalidation.
func (l *Logger) LogInvalidation(ctx context.Context, months []string) {
	l.Logger.InfoContext(ctx, "bucket invalidation",
		slog.Any("months", months),
	)
}

// Provider / breaker logging

// LogBreakerTransition logs a circuit breaker state change.
func (l *Logger) LogBreakerTransition(ctx context.Context, from, to string) {
	l.Logger.WarnContext(ctx, "breaker state transition",
		slog.String("from", from),
		slog.String("to", to),
	)
}

// LogProviderRetry logs a single retry attempt against the upstream provider.
func (l *Logger) LogProviderRetry(ctx context.Context, attempt int, err error) {
	l.Logger.WarnContext(ctx, "provider fetch retry",
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

// Data-quality logging

// LogDroppedRecord logs a single record dropped at mapping time.
func (l *Logger) LogDroppedRecord(ctx context.Context, title, reason string) {
	l.Logger.WarnContext(ctx, "dropped record",
		slog.String("title", title),
		slog.String("reason", reason),
	)
}

// HTTP logging

// LogHTTPRequest logs a completed /search request.
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(), "HTTP request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
	)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
