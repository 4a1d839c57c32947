package flowpipe

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	fperrors "github.com/randalmurphal/flowpipe/pkg/flowpipe/errors"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/observability"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/runstore"
	"golang.org/x/time/rate"
)

// Discipline selects how processes are scheduled.
type Discipline string

const (
	// DisciplineCooperative steps processes one at a time on the calling
	// goroutine in topological order. Runs are deterministic.
	DisciplineCooperative Discipline = "cooperative"

	// DisciplineConcurrent runs every process on its own goroutine.
	// Edges are the only shared state.
	DisciplineConcurrent Discipline = "concurrent"
)

// runConfig holds configuration for pipeline execution.
type runConfig struct {
	discipline Discipline
	maxPasses  int
	runID      string

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	registerer     prometheus.Registerer

	store runstore.Store
	limit rate.Limit
	burst int
	retry *fperrors.RetryConfig
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		discipline: DisciplineCooperative,
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithScheduler selects the scheduling discipline.
// Default: DisciplineCooperative
func WithScheduler(d Discipline) RunOption {
	return func(c *runConfig) {
		if d == DisciplineCooperative || d == DisciplineConcurrent {
			c.discipline = d
		}
	}
}

// WithMaxPasses bounds the number of cooperative scheduler passes.
// A run that needs more returns ErrMaxPasses. Default: unlimited.
func WithMaxPasses(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxPasses = n
		}
	}
}

// WithRunID sets the identifier recorded in logs, spans and the run store.
// Default: the RunID of the Context passed to Run.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithObservabilityLogger sets the logger for run and process events.
// Default: the Context logger.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics from the global meter provider.
//
// Example:
//
//	otel.SetMeterProvider(provider)
//	result, err := compiled.Run(ctx, flowpipe.WithMetrics(true))
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry spans for the run, each process's
// configure and initialize phases, and every step.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithPrometheus registers edge queue metrics with reg for the duration
// of the run. Series carry a run_id label.
func WithPrometheus(reg prometheus.Registerer) RunOption {
	return func(c *runConfig) {
		c.registerer = reg
	}
}

// WithRunStore records the run in store: once when it starts and once
// with the outcome and per-process statistics. Store failures are logged
// and do not fail the run.
func WithRunStore(store runstore.Store) RunOption {
	return func(c *runConfig) {
		c.store = store
	}
}

// WithSourceRate gates every source step through a token bucket shared by
// all sources of the run.
func WithSourceRate(limit rate.Limit, burst int) RunOption {
	return func(c *runConfig) {
		c.limit = limit
		c.burst = max(burst, 1)
	}
}

// WithInitRetry retries Initialize when it fails with a transient error
// (see errors.Transient).
func WithInitRetry(cfg fperrors.RetryConfig) RunOption {
	return func(c *runConfig) {
		c.retry = &cfg
	}
}
