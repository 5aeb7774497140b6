package log

import (
	"context"
	"log/slog"
	"net/http"

	"scadenze/internal/core"
)

type contextKey struct{}

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts the request logger, falling back to the default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: ComponentApp,
	}
}

// Middleware adds logger to every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger writes the records the API emits for requests and for
// changes to the schedule.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPStart logs the start of an HTTP request
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, requestID, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithRequestID(requestID).
		WithClientIP(clientIP)

	sl.logger.WithComponent(ComponentHTTP).InfoContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs the completion of an HTTP request at a level chosen by
// status: 4xx warn, 5xx error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, requestID string, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithRequestID(requestID).
		WithClientIP(clientIP)

	sl.logger.WithComponent(ComponentHTTP).LogContext(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogRuleChanged logs a create, update or delete of a recurrence rule.
func (sl *StructuredLogger) LogRuleChanged(ctx context.Context, op string, rule core.RecurrenceRule) {
	fields := NewFields().
		WithRule(rule).
		WithOperation(op)

	sl.logger.WithComponent(ComponentRules).InfoContext(ctx, "Recurrence rule changed", fields.ToSlice()...)
}

// LogOverrideChanged logs an edit of a single occurrence.
func (sl *StructuredLogger) LogOverrideChanged(ctx context.Context, op, ruleID string, original core.Date) {
	fields := NewFields().WithOperation(op)
	fields[FieldRuleID] = ruleID
	fields[FieldScheduledDate] = original.String()

	sl.logger.WithComponent(ComponentRules).InfoContext(ctx, "Occurrence override changed", fields.ToSlice()...)
}

// LogProjection logs a served schedule window.
func (sl *StructuredLogger) LogProjection(ctx context.Context, from, to core.Date, occurrences, failures int) {
	fields := NewFields().
		WithWindow(from, to).
		WithOperation(OpProject)
	fields["occurrences"] = occurrences
	fields["failures"] = failures

	level := slog.LevelDebug
	if failures > 0 {
		level = slog.LevelWarn
	}
	sl.logger.WithComponent(ComponentSchedule).LogContext(ctx, level, "Schedule projected", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation)

	sl.logger.WithComponent(component).ErrorContext(ctx, msg, fields.ToSlice()...)
}
