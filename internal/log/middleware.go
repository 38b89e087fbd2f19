package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext extracts the request logger, falling back to the default one.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// Middleware stores logger in the request context, enriched with the request
// id returned by requestID (which may be nil).
func Middleware(logger *Logger, requestID func(context.Context) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logger.WithComponent(ComponentHTTP)
			if requestID != nil {
				if id := requestID(r.Context()); id != "" {
					l = l.With(FieldRequestID, id)
				}
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), l)))
		})
	}
}

// StructuredLogger provides domain-level log helpers.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogTransaction records a successful write on a transaction.
func (sl *StructuredLogger) LogTransaction(ctx context.Context, op string, id int64, typ, category string, amountCents int64) {
	fields := NewFields().
		WithTransaction(id, typ, category, amountCents).
		WithOperation(op).
		WithComponent(ComponentTransaction)
	sl.logger.LogFields(ctx, slog.LevelInfo, "Transaction "+op+" succeeded", fields)
}

// LogError logs an error with structured context. A nil fields map is fine.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation, errorType string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation).WithComponent(component)
	if errorType != "" {
		fields["error_type"] = errorType
	}
	level := slog.LevelError
	if errorType == ErrorTypeValidation || errorType == ErrorTypeNotFound || errorType == ErrorTypeConflict {
		level = slog.LevelWarn
	}
	sl.logger.LogFields(ctx, level, msg, fields)
}
