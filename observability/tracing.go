package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/vercel"

// Tracer provides OpenTelemetry tracing. A nil *Tracer uses the global
// provider.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer on the global provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// NewTracerWithProvider creates a tracer on tp.
func NewTracerWithProvider(tp trace.TracerProvider) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(tracerName),
	}
}

func (t *Tracer) get() trace.Tracer {
	if t == nil || t.tracer == nil {
		return otel.Tracer(tracerName)
	}
	return t.tracer
}

// StartIngressSpan starts a span for one webhook request.
func (t *Tracer) StartIngressSpan(ctx context.Context, registrationID string) (context.Context, trace.Span) {
	return t.get().Start(ctx, "vercel.webhook",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("vercel.registration_id", registrationID)),
	)
}

// EndIngressSpan ends an ingress span with the event and its outcome.
func (t *Tracer) EndIngressSpan(span trace.Span, eventID, eventType, outcome string, err error) {
	span.SetAttributes(
		attribute.String("vercel.event_id", eventID),
		attribute.String("vercel.event_type", eventType),
		attribute.String("vercel.outcome", outcome),
	)
	endWithError(span, err)
}

// StartTaskSpan starts a span for one integration task.
func (t *Tracer) StartTaskSpan(ctx context.Context, runID, key, connectionKey string) (context.Context, trace.Span) {
	return t.get().Start(ctx, "vercel.task",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("vercel.run_id", runID),
			attribute.String("vercel.task_key", key),
			attribute.String("vercel.connection_key", connectionKey),
		),
	)
}

// EndTaskSpan ends a task span with the attempt count and result.
func (t *Tracer) EndTaskSpan(span trace.Span, attempts int, cached bool, err error) {
	span.SetAttributes(
		attribute.Int("vercel.attempts", attempts),
		attribute.Bool("vercel.cached", cached),
	)
	endWithError(span, err)
}

func endWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
