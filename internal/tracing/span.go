package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/fluvial/internal/record"
)

// NoopTracer returns a tracer that records nothing.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer(instrumentationName)
}

// StartPullSpan starts a span around one pull of a pipeline component
// ("generator" or "window").
func StartPullSpan(ctx context.Context, tracer trace.Tracer, component string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "fluvial."+component+".next",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(attribute.String("fluvial.component", component))
	return ctx, span
}

// EndSpan finishes a span. End of stream is recorded as a status attribute
// rather than as a span error.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	status := record.Classify(err)
	span.SetAttributes(attribute.String("fluvial.status", status.String()))
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case status.Done():
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
