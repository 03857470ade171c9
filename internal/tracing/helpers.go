package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/AndreiUshakov/afisha-genspark-sub000"

// StoreOperation names the kind of persistence call a span covers.
type StoreOperation string

const (
	OpQuery  StoreOperation = "query"
	OpInsert StoreOperation = "insert"
	OpUpdate StoreOperation = "update"
	OpDelete StoreOperation = "delete"
	OpPut    StoreOperation = "put"
	OpRemove StoreOperation = "remove"
)

// StartStoreSpan opens a client span for a call into a backing store
// (system is "postgresql", "s3", "redis" and so on). The returned func ends
// the span and records err when non-nil.
//
//	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "content_blocks", tracing.OpUpdate)
//	defer func() { end(err) }()
func StartStoreSpan(ctx context.Context, system, target string, op StoreOperation) (context.Context, func(error)) {
	name := string(op)
	if target != "" {
		name += " " + target
	}

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", string(op)),
		),
	)
	if target != "" {
		span.SetAttributes(attribute.String("db.target", target))
	}
	return ctx, endFunc(span)
}

// StartSpan opens an internal span around a multi-step operation.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, endFunc(span)
}

// AddEvent records a named step on the span in ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
