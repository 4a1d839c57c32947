package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordStep records one process step and the datum kind it produced.
	RecordStep(ctx context.Context, process, status string, duration time.Duration)

	// RecordRun records a finished pipeline run.
	RecordRun(ctx context.Context, status string, duration time.Duration)

	// RecordProcessFailure records a fatal failure during op.
	RecordProcessFailure(ctx context.Context, process, op string)

	// RecordEdge records the final traffic counters of one edge.
	RecordEdge(ctx context.Context, stats EdgeStats)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	steps       metric.Int64Counter
	stepLatency metric.Float64Histogram
	failures    metric.Int64Counter
	runs        metric.Int64Counter
	runLatency  metric.Float64Histogram
	edgePushed  metric.Int64Counter
	edgeDropped metric.Int64Counter
	edgeBlocked metric.Int64Counter
}

// newOtelMetrics creates instruments from the global meter provider.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("flowpipe")

	steps, err := meter.Int64Counter("flowpipe.process.steps",
		metric.WithDescription("Number of process steps"),
	)
	if err != nil {
		return nil, err
	}

	stepLatency, err := meter.Float64Histogram("flowpipe.process.step_latency_ms",
		metric.WithDescription("Process step latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("flowpipe.process.failures",
		metric.WithDescription("Number of fatal process failures"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter("flowpipe.pipeline.runs",
		metric.WithDescription("Number of pipeline runs"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("flowpipe.pipeline.latency_ms",
		metric.WithDescription("Pipeline run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	edgePushed, err := meter.Int64Counter("flowpipe.edge.pushed",
		metric.WithDescription("Datums accepted by an edge"),
	)
	if err != nil {
		return nil, err
	}

	edgeDropped, err := meter.Int64Counter("flowpipe.edge.dropped",
		metric.WithDescription("Datums dropped by a drained edge"),
	)
	if err != nil {
		return nil, err
	}

	edgeBlocked, err := meter.Int64Counter("flowpipe.edge.blocked",
		metric.WithDescription("Pushes that waited for queue space"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		steps:       steps,
		stepLatency: stepLatency,
		failures:    failures,
		runs:        runs,
		runLatency:  runLatency,
		edgePushed:  edgePushed,
		edgeDropped: edgeDropped,
		edgeBlocked: edgeBlocked,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider at the time of the
// call. Configure the provider first:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := newOtelMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordStep records a process step.
func (m *otelMetrics) RecordStep(ctx context.Context, process, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("process", process),
		attribute.String("status", status),
	)
	m.steps.Add(ctx, 1, attrs)
	m.stepLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordRun records a pipeline run.
func (m *otelMetrics) RecordRun(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordProcessFailure records a fatal process failure.
func (m *otelMetrics) RecordProcessFailure(ctx context.Context, process, op string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("process", process),
		attribute.String("op", op),
	))
}

// RecordEdge records edge traffic.
func (m *otelMetrics) RecordEdge(ctx context.Context, stats EdgeStats) {
	attrs := metric.WithAttributes(attribute.String("edge", stats.Edge))
	m.edgePushed.Add(ctx, stats.Pushed, attrs)
	m.edgeDropped.Add(ctx, stats.Dropped, attrs)
	m.edgeBlocked.Add(ctx, stats.Blocked, attrs)
}
