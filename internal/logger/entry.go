package logger

import (
	"context"
	"time"
)

// Entry collects aggregatable run metrics (duration_ms, count, status) for
// a single summary line.
//
//	logger.With(logger.Fields{"stage": "publish"}).WithCount(3).Info(ctx, "Run finished")
type Entry struct {
	fields Fields
}

// With starts an Entry carrying fields.
func With(fields Fields) *Entry {
	e := &Entry{fields: make(Fields, len(fields))}
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

// WithField returns a copy of the Entry with one more field.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	next := With(e.fields)
	next.fields[key] = value
	return next
}

// WithDuration adds duration_ms measured from start.
func (e *Entry) WithDuration(start time.Time) *Entry {
	return e.WithField(FieldDurationMs, time.Since(start).Milliseconds())
}

// WithCount adds a count field.
func (e *Entry) WithCount(count int) *Entry {
	return e.WithField(FieldCount, count)
}

// WithStatus adds a status field.
func (e *Entry) WithStatus(status string) *Entry {
	return e.WithField(FieldStatus, status)
}

// Fields returns a copy of the collected fields.
func (e *Entry) Fields() Fields {
	return With(e.fields).fields
}

// Info logs at Info level through the context logger.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Infof(format, args...)
}

// Warn logs at Warn level through the context logger.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Warnf(format, args...)
}
