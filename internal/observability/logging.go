// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger so background code can log without a request.
type Logger struct {
	*slog.Logger
}

// GlobalLogger logs JSON for jobs, repositories and the realtime hub.
// Repository operations log at debug and only show with LOG_LEVEL=debug.
var GlobalLogger = newGlobalLogger()

func newGlobalLogger() *Logger {
	level := slog.LevelInfo
	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "debug") {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

type correlationKey struct{}

// WithCorrelationID returns ctx carrying id, which ties together the log
// lines of one job or one request fan-out.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func correlated(ctx context.Context, attrs []any) []any {
	if id := ExtractCorrelationID(ctx); id != "" {
		return append(attrs, slog.String("correlation_id", id))
	}
	return attrs
}

// RepoLogger logs writes against one table.
type RepoLogger struct {
	table  string
	logger *Logger
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(table string) *RepoLogger {
	return &RepoLogger{table: table, logger: GlobalLogger}
}

func (l *RepoLogger) write(ctx context.Context, operation string, args []any) {
	attrs := correlated(ctx, []any{slog.String("table", l.table), slog.String("operation", operation)})
	l.logger.DebugContext(ctx, "repository "+operation, append(attrs, args...)...)
}

// LogCreate logs an insert; args are slog key/value pairs.
func (l *RepoLogger) LogCreate(ctx context.Context, args ...any) { l.write(ctx, "create", args) }

// LogUpdate logs an update; args are slog key/value pairs.
func (l *RepoLogger) LogUpdate(ctx context.Context, args ...any) { l.write(ctx, "update", args) }

// LogDelete logs a delete; args are slog key/value pairs.
func (l *RepoLogger) LogDelete(ctx context.Context, args ...any) { l.write(ctx, "delete", args) }

// LogError logs a failed repository operation.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	attrs := correlated(ctx, []any{
		slog.String("table", l.table),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	})
	l.logger.ErrorContext(ctx, "repository error", attrs...)
}

// WSLogger logs realtime connection lifecycle for one hub.
type WSLogger struct {
	hub    string
	logger *Logger
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hub string) *WSLogger {
	return &WSLogger{hub: hub, logger: GlobalLogger}
}

// LogConnect logs a user's socket joining the hub.
func (l *WSLogger) LogConnect(ctx context.Context, userID uint) {
	l.logger.InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hub),
		slog.Uint64("user_id", uint64(userID)),
	)
}

// LogDisconnect logs a user's socket leaving the hub.
func (l *WSLogger) LogDisconnect(ctx context.Context, userID uint, reason string) {
	l.logger.InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hub),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("reason", reason),
	)
}

// LogError logs a socket read, write or shutdown failure.
func (l *WSLogger) LogError(ctx context.Context, userID uint, err error, stage string) {
	l.logger.WarnContext(ctx, "websocket error",
		slog.String("hub", l.hub),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// LogAsyncOperationStart logs the start of a job or sweep; args are slog
// key/value pairs.
func LogAsyncOperationStart(ctx context.Context, operation string, args ...any) {
	attrs := correlated(ctx, []any{slog.String("operation", operation)})
	GlobalLogger.DebugContext(ctx, "async operation started", append(attrs, args...)...)
}

// LogAsyncOperationEnd logs the successful end of a job or sweep.
func LogAsyncOperationEnd(ctx context.Context, operation string, args ...any) {
	attrs := correlated(ctx, []any{slog.String("operation", operation)})
	GlobalLogger.InfoContext(ctx, "async operation completed", append(attrs, args...)...)
}

// LogAsyncOperationError logs a failed job or sweep.
func LogAsyncOperationError(ctx context.Context, operation string, err error, args ...any) {
	attrs := correlated(ctx, []any{slog.String("operation", operation), slog.String("error", err.Error())})
	GlobalLogger.ErrorContext(ctx, "async operation failed", append(attrs, args...)...)
}
