package flowpipe

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context provides execution context to processes.
// It extends context.Context with flowpipe-specific services and metadata.
//
// Context is immutable after creation. The scheduler creates derived
// contexts for each process with the process name and an enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and process
	// context. Never returns nil; defaults to slog.Default().
	Logger() *slog.Logger

	// RunID returns the unique identifier for this run.
	// Auto-generated if not configured.
	RunID() string

	// ProcessName returns the process being driven.
	// Empty string outside of a process call.
	ProcessName() string
}

// StepContext is the Context passed to Process.Step.
type StepContext interface {
	Context

	// Cycle returns the color of the datums being processed. Sources see
	// their freshly advanced color.
	Cycle() uint64

	// MarkComplete ends the process. Complete is pushed downstream after
	// the outputs of this step, then the process retires.
	MarkComplete()
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger  *slog.Logger
	runID   string
	process string
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// ProcessName returns the current process name.
func (c *executionContext) ProcessName() string {
	return c.process
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with run_id and process during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID will be auto-generated. WithRunID as a RunOption
// overrides it for a single run.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := flowpipe.NewContext(context.Background(),
//	    flowpipe.WithLogger(myLogger),
//	    flowpipe.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// runContext returns the context a run executes under. parent supplies
// values, deadline and cancellation; logger is the run's logger, so
// processes log where the run's lifecycle messages go.
func runContext(parent context.Context, logger *slog.Logger, runID string) *executionContext {
	return &executionContext{
		Context: parent,
		logger:  logger,
		runID:   runID,
	}
}

// withProcess returns a new context for one process.
func (c *executionContext) withProcess(name string) *executionContext {
	return &executionContext{
		Context: c.Context,
		logger:  c.logger.With("run_id", c.runID, "process", name),
		runID:   c.runID,
		process: name,
	}
}

// withContext returns a copy carrying ctx, used to attach trace spans.
func (c *executionContext) withContext(ctx context.Context) *executionContext {
	cp := *c
	cp.Context = ctx
	return &cp
}

// stepContext is handed to one Step call.
type stepContext struct {
	*executionContext

	cycle    uint64
	complete bool
}

// Cycle returns the color being processed.
func (c *stepContext) Cycle() uint64 {
	return c.cycle
}

// MarkComplete ends the process after this step.
func (c *stepContext) MarkComplete() {
	c.complete = true
}
