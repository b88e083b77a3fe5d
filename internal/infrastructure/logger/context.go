package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	runIDKey  contextKey = "run_id"
)

// WithContext attaches l to ctx
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRun tags ctx and l with a pipeline run identifier and phase.
// The enriched logger is stored in the returned context.
func WithRun(ctx context.Context, l *zap.Logger, runID, phase string) (context.Context, *zap.Logger) {
	enriched := l.With(zap.String("run_id", runID), zap.String("phase", phase))
	ctx = context.WithValue(ctx, runIDKey, runID)
	return WithContext(ctx, enriched), enriched
}

// RunID returns the run identifier stored in ctx, if any
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}
