// Package logging wraps zap with the field-based helper shape the rest of
// the engine calls into, so every component logs through one consistent
// entrypoint instead of reaching for a package-level global.
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.Logger with context-aware helpers.
type Logger struct {
	*zap.Logger
}

// New builds a production-style JSON logger, or a human-readable console
// logger when dev is true (used for the replay CLI mode).
func New(dev bool) (*Logger, error) {
	var zl *zap.Logger
	var err error
	if dev {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zl, err = cfg.Build()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: zl}, nil
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

type traceIDKey struct{}

// WithTraceID attaches a trace id to a context for correlated logging.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

func traceIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

func (l *Logger) withTrace(ctx context.Context, fields []zap.Field) []zap.Field {
	if id := traceIDFrom(ctx); id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	return fields
}

// InfoCtx logs at info level with an optional trace id pulled from ctx.
func (l *Logger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.Logger.Info(msg, l.withTrace(ctx, fields)...)
}

// WarnCtx logs at warn level with an optional trace id pulled from ctx.
func (l *Logger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.Logger.Warn(msg, l.withTrace(ctx, fields)...)
}

// ErrorCtx logs at error level with an optional trace id pulled from ctx.
func (l *Logger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.Logger.Error(msg, l.withTrace(ctx, fields)...)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
