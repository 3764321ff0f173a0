package logger

import (
	"context"
	"sync/atomic"
)

type ctxKey struct{}

var fallback atomic.Pointer[Logger]

func init() {
	fallback.Store(New(nil))
}

// GetDefault returns the logger used when a context carries none.
func GetDefault() *Logger {
	return fallback.Load()
}

// SetDefaultLogger replaces the fallback logger. nil is ignored.
func SetDefaultLogger(l *Logger) {
	if l != nil {
		fallback.Store(l)
	}
}

// WithContext attaches l to ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
			return l
		}
	}
	return GetDefault()
}

// WithFields returns a context whose logger carries fields.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// SetRunID tags every line logged through ctx with the run id.
func SetRunID(ctx context.Context, id string) context.Context {
	return WithFields(ctx, Fields{FieldRunID: id})
}

// SetStage tags every line logged through ctx with the pipeline stage.
func SetStage(ctx context.Context, stage string) context.Context {
	return WithFields(ctx, Fields{FieldStage: stage})
}

// GetRunID returns the run id carried by ctx, or "".
func GetRunID(ctx context.Context) string {
	id, _ := FromContext(ctx).Data[FieldRunID].(string)
	return id
}
