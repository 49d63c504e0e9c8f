// Package tracing provides OpenTelemetry distributed tracing setup and utilities.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StoreOperation represents the type of store operation being traced.
type StoreOperation string

const (
	// StoreOperationIncr represents an atomic increment.
	StoreOperationIncr StoreOperation = "incr"
	// StoreOperationGet represents a key read.
	StoreOperationGet StoreOperation = "get"
	// StoreOperationSet represents a key write.
	StoreOperationSet StoreOperation = "set"
	// StoreOperationDelete represents a key deletion.
	StoreOperationDelete StoreOperation = "del"
	// StoreOperationExists represents an existence check.
	StoreOperationExists StoreOperation = "exists"
	// StoreOperationPush represents a capped list push.
	StoreOperationPush StoreOperation = "lpush"
	// StoreOperationSetAdd represents a set member add.
	StoreOperationSetAdd StoreOperation = "sadd"
)

// StartStoreSpan creates a new span for a shared-store operation.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartStoreSpan(ctx, "rl:", tracing.StoreOperationIncr)
//	defer endSpan(err)
//	// ... perform store operation ...
func StartStoreSpan(ctx context.Context, keyspace string, operation StoreOperation) (context.Context, func(error)) {
	tracer := otel.Tracer("neuroklast/store")

	spanName := string(operation)
	if keyspace != "" {
		spanName = spanName + " " + keyspace
	}

	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", string(operation)),
		),
	)

	if keyspace != "" {
		span.SetAttributes(attribute.String("db.redis.keyspace", keyspace))
	}

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartSpan(ctx, "trap_triggered")
//	defer endSpan(err)
//	// ... perform operation ...
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	tracer := otel.Tracer("neuroklast")

	ctx, span := tracer.Start(ctx, name)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}
