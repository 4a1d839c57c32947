package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartRunSpan starts a span for the entire pipeline run.
	StartRunSpan(ctx context.Context, pipeline, runID string) (context.Context, trace.Span)

	// StartPhaseSpan starts a span for a one-time lifecycle phase
	// (configure, initialize) of a process.
	StartPhaseSpan(ctx context.Context, process, phase string) (context.Context, trace.Span)

	// StartStepSpan starts a span for one step of a process.
	StartStepSpan(ctx context.Context, process string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The tracer comes from the global provider at the time of the call.
// Configure the provider first:
//
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{tracer: otel.Tracer("flowpipe")}
}

// StartRunSpan starts a span for the entire pipeline run.
func (m *otelSpanManager) StartRunSpan(ctx context.Context, pipeline, runID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "flowpipe.run",
		trace.WithAttributes(
			attribute.String("pipeline.name", pipeline),
			attribute.String("run.id", runID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartPhaseSpan starts a span for a lifecycle phase.
func (m *otelSpanManager) StartPhaseSpan(ctx context.Context, process, phase string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "flowpipe.process."+phase,
		trace.WithAttributes(
			attribute.String("process.name", process),
			attribute.String("process.phase", phase),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartStepSpan starts a span for one step.
func (m *otelSpanManager) StartStepSpan(ctx context.Context, process string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "flowpipe.process.step",
		trace.WithAttributes(
			attribute.String("process.name", process),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
