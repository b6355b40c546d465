// Package logger carries structured logging fields through context.Context
// so that every log line emitted while serving a request shares its identifiers.
package logger

import (
	"context"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"go.opentelemetry.io/otel/trace"
)

// Well-known field keys.
const (
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
)

type fieldsKey struct{}

// fields 不可变，追加时复制。
type fields []interface{}

func fromContext(ctx context.Context) fields {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(fieldsKey{}).(fields)
	return f
}

// WithFields returns a context whose logger carries the given key/value pairs.
// A key already present is overwritten. An odd trailing key is ignored.
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}
	cur := fromContext(ctx)
	next := make(fields, 0, len(cur)+len(keysAndValues))
	next = append(next, cur...)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		replaced := false
		for j := 0; j+1 < len(next); j += 2 {
			if next[j] == key {
				next[j+1] = keysAndValues[i+1]
				replaced = true
				break
			}
		}
		if !replaced {
			next = append(next, key, keysAndValues[i+1])
		}
	}
	return context.WithValue(ctx, fieldsKey{}, next)
}

// WithRequestID adds the request ID field.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return WithFields(ctx, FieldRequestID, requestID)
}

// WithSessionID adds the conversation ID field.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return WithFields(ctx, FieldSessionID, sessionID)
}

// WithTraceFields adds trace_id and span_id from the active span, if any.
func WithTraceFields(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ctx
	}
	return WithFields(ctx, FieldTraceID, sc.TraceID().String(), FieldSpanID, sc.SpanID().String())
}

// Fields returns a copy of the fields stored in ctx.
func Fields(ctx context.Context) []interface{} {
	f := fromContext(ctx)
	if len(f) == 0 {
		return nil
	}
	return append([]interface{}(nil), f...)
}

// FromContext returns the global logger with the context fields attached.
func FromContext(ctx context.Context) core.Logger {
	base := logger.Global()
	f := fromContext(ctx)
	if len(f) == 0 {
		return base
	}
	return base.With(f...)
}
