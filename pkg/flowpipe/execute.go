package flowpipe

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/observability"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/runstore"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Status is the outcome of a run.
type Status = runstore.Status

// Run outcomes.
const (
	StatusCompleted = runstore.StatusCompleted
	StatusFailed    = runstore.StatusFailed
	StatusStopped   = runstore.StatusStopped
)

// errIncomplete reports a scheduler that returned while processes were
// still running without a stop, a cancellation or a failure.
var errIncomplete = errors.New("run ended before every process completed")

// Result describes a finished run.
type Result struct {
	RunID      string
	Discipline Discipline
	Status     Status
	Duration   time.Duration
	Processes  map[string]ProcessStats
}

// Steps returns the total number of steps taken by all processes.
func (r *Result) Steps() int64 {
	var total int64
	for _, s := range r.Processes {
		total += s.Steps
	}
	return total
}

// Run configures and initializes every process, then schedules steps until
// every process has completed, a process fails fatally, Stop is called or
// ctx is cancelled.
//
// Execution flow:
//  1. Configure every process (failures are ConfigurationErrors)
//  2. Initialize every process, retrying transient failures if configured
//  3. Step processes under the selected discipline
//  4. Close every edge and report the outcome
//
// The Result is returned in every case once setup begins. A stopped run
// returns StatusStopped and a nil error.
//
// Example:
//
//	ctx := flowpipe.NewContext(context.Background())
//	result, err := compiled.Run(ctx, flowpipe.WithScheduler(flowpipe.DisciplineConcurrent))
func (cp *CompiledPipeline) Run(ctx Context, opts ...RunOption) (result *Result, runErr error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if !cp.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	runID := cfg.runID
	if runID == "" {
		runID = ctx.RunID()
	}
	logger := cfg.logger
	if logger == nil {
		logger = ctx.Logger()
	}

	startTime := time.Now()
	cp.state.Store(int32(StateRunning))
	defer cp.state.Store(int32(StateStopped))

	observability.LogRunStart(logger, runID, string(cfg.discipline), len(cp.nodes), len(cp.edges))

	var tracingCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		tracingCtx, runSpan = cfg.spans.StartRunSpan(ctx, "flowpipe", runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	runCtx, cancel := context.WithCancel(tracingCtx)
	defer cancel()
	cp.mu.Lock()
	cp.cancel = cancel
	cp.mu.Unlock()
	if cp.stopped.Load() {
		cancel()
	}

	env := &runEnv{
		logger:  logger,
		metrics: cfg.metrics,
		spans:   cfg.spans,
		tracing: cfg.tracingEnabled,
		retry:   cfg.retry,
	}
	if cfg.limit > 0 {
		env.limiter = rate.NewLimiter(cfg.limit, cfg.burst)
	}
	execCtx := runContext(runCtx, logger, runID)
	for _, n := range cp.nodes {
		n.bind(execCtx, env)
	}

	if cfg.registerer != nil {
		collector := observability.NewEdgeCollector(cp, prometheus.Labels{"run_id": runID})
		if err := cfg.registerer.Register(collector); err != nil {
			logger.Warn("edge metrics not registered", slog.String("run_id", runID), slog.String("error", err.Error()))
		} else {
			defer cfg.registerer.Unregister(collector)
		}
	}

	cp.saveRecord(cfg.store, logger, runstore.RunRecord{
		RunID:      runID,
		Discipline: string(cfg.discipline),
		Status:     runstore.StatusRunning,
		StartedAt:  startTime,
	})

	err := cp.setup()
	if err == nil {
		switch cfg.discipline {
		case DisciplineConcurrent:
			err = cp.runConcurrent(runCtx)
		default:
			err = cp.runCooperative(runCtx, cfg.maxPasses)
		}
	}
	cp.closeEdges()

	status := StatusCompleted
	switch {
	case err == nil && cp.allDone():
	case cp.stopped.Load():
		status, err = StatusStopped, nil
	case ctx.Err() != nil:
		status, err = StatusFailed, &CancellationError{Cause: ctx.Err()}
	case err == nil:
		status, err = StatusFailed, errIncomplete
	default:
		status = StatusFailed
	}

	duration := time.Since(startTime)
	durationMs := float64(duration.Microseconds()) / 1000

	result = &Result{
		RunID:      runID,
		Discipline: cfg.discipline,
		Status:     status,
		Duration:   duration,
		Processes:  make(map[string]ProcessStats, len(cp.nodes)),
	}
	for _, n := range cp.nodes {
		result.Processes[n.name] = n.stats()
	}

	cfg.metrics.RecordRun(ctx, string(status), duration)
	for _, e := range cp.edges {
		cfg.metrics.RecordEdge(ctx, e.Stats())
	}

	failed := FailedProcess(err)
	switch status {
	case StatusCompleted:
		observability.LogRunComplete(logger, runID, durationMs, result.Steps())
	case StatusStopped:
		observability.LogRunStopped(logger, runID, durationMs)
	default:
		observability.LogRunError(logger, runID, err, durationMs, failed)
	}

	rec := runstore.RunRecord{
		RunID:      runID,
		Discipline: string(cfg.discipline),
		Status:     status,
		StartedAt:  startTime,
		FinishedAt: time.Now(),
		Process:    failed,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	for _, n := range cp.nodes {
		s := n.stats()
		rec.Processes = append(rec.Processes, runstore.ProcessRecord{
			Process:    s.Process,
			Phase:      s.Phase.String(),
			Steps:      s.Steps,
			DataSteps:  s.DataSteps,
			EmptySteps: s.EmptySteps,
			ErrorSteps: s.ErrorSteps,
		})
	}
	cp.saveRecord(cfg.store, logger, rec)

	return result, err
}

// setup configures every process, then initializes every process, then
// marks them running. The first failure aborts the run before any step.
func (cp *CompiledPipeline) setup() error {
	for _, n := range cp.nodes {
		if err := n.configure(); err != nil {
			return err
		}
	}
	for _, n := range cp.nodes {
		if err := n.initialize(); err != nil {
			return err
		}
	}
	for _, n := range cp.nodes {
		if err := n.start(); err != nil {
			return err
		}
	}
	return nil
}

func (cp *CompiledPipeline) allDone() bool {
	for _, n := range cp.nodes {
		if !n.done() {
			return false
		}
	}
	return true
}

// saveRecord writes rec to store. Failures are logged, never fatal.
func (cp *CompiledPipeline) saveRecord(store runstore.Store, logger *slog.Logger, rec runstore.RunRecord) {
	if store == nil {
		return
	}
	if err := store.Save(rec); err != nil {
		observability.LogRunRecordError(logger, rec.RunID, "save", err)
	}
}
