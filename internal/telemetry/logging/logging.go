// Package logging wraps zap behind a small context-correlated interface, the
// same shape the teacher wraps slog with, so every call site that logs picks
// up trace/span IDs for free when a span is in flight.
package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/fieldwatch/aegis/internal/telemetry/tracing"
)

// Logger is the minimal interface components log through.
type Logger interface {
	InfoCtx(ctx context.Context, msg string, fields ...zap.Field)
	WarnCtx(ctx context.Context, msg string, fields ...zap.Field)
	ErrorCtx(ctx context.Context, msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
}

type correlatedLogger struct{ base *zap.Logger }

// New wraps base (or a production zap.Logger if base is nil) as a Logger.
func New(base *zap.Logger) Logger {
	if base == nil {
		base, _ = zap.NewProduction()
	}
	return &correlatedLogger{base: base}
}

func (l *correlatedLogger) correlate(ctx context.Context, fields []zap.Field) []zap.Field {
	traceID, spanID := tracing.ExtractIDs(ctx)
	if traceID == "" && spanID == "" {
		return fields
	}
	return append(fields, zap.String("trace_id", traceID), zap.String("span_id", spanID))
}

func (l *correlatedLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Info(msg, l.correlate(ctx, fields)...)
}

func (l *correlatedLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Warn(msg, l.correlate(ctx, fields)...)
}

func (l *correlatedLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Error(msg, l.correlate(ctx, fields)...)
}

func (l *correlatedLogger) With(fields ...zap.Field) Logger {
	return &correlatedLogger{base: l.base.With(fields...)}
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() Logger { return &correlatedLogger{base: zap.NewNop()} }
