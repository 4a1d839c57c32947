package flowpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/flowpipe/pkg/flowpipe/config"
	fperrors "github.com/randalmurphal/flowpipe/pkg/flowpipe/errors"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// unsynchronizedMessage is the error datum forwarded when synchronized
// inputs carry datums of different cycles.
const unsynchronizedMessage = "input edges are not synchronized"

// ProcessStats counts the steps a process has taken.
type ProcessStats struct {
	Process    string
	Phase      Phase
	Color      uint64
	Steps      int64
	DataSteps  int64
	EmptySteps int64
	ErrorSteps int64
}

type inputBinding struct {
	port Port
	edge *Edge
}

// runEnv holds the per-run services shared by every node.
type runEnv struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	tracing bool
	limiter *rate.Limiter
	retry   *fperrors.RetryConfig
}

// node drives one process: it owns the lifecycle, aligns inputs, applies
// MaxStatus and forwards results. Only the goroutine stepping a node
// touches its fields; phase and counters are atomics for snapshots.
type node struct {
	name  string
	proc  Process
	ports *Ports
	cfg   config.Config

	syncIn      []inputBinding
	optIn       []inputBinding
	unconnected []Port
	outputs     []Port
	outEdges    map[string][]*Edge
	allOut      []*Edge

	phase           phaseTracker
	color           atomic.Uint64
	pendingComplete bool

	steps      atomic.Int64
	dataSteps  atomic.Int64
	emptySteps atomic.Int64
	errorSteps atomic.Int64

	env    *runEnv
	ctx    *executionContext
	logger *slog.Logger
}

func newNode(name string, proc Process, cfg config.Config) *node {
	return &node{
		name:     name,
		proc:     proc,
		ports:    proc.Ports(),
		cfg:      cfg,
		outEdges: make(map[string][]*Edge),
	}
}

// source reports whether the node has no connected inputs.
func (n *node) source() bool {
	return len(n.syncIn) == 0 && len(n.optIn) == 0
}

func (n *node) inputEdges() []*Edge {
	edges := make([]*Edge, 0, len(n.syncIn)+len(n.optIn))
	for _, b := range n.syncIn {
		edges = append(edges, b.edge)
	}
	for _, b := range n.optIn {
		edges = append(edges, b.edge)
	}
	return edges
}

func (n *node) done() bool {
	return n.phase.load() == PhaseComplete
}

func (n *node) stats() ProcessStats {
	return ProcessStats{
		Process:    n.name,
		Phase:      n.phase.load(),
		Color:      n.color.Load(),
		Steps:      n.steps.Load(),
		DataSteps:  n.dataSteps.Load(),
		EmptySteps: n.emptySteps.Load(),
		ErrorSteps: n.errorSteps.Load(),
	}
}

// bind attaches the node to a run.
func (n *node) bind(ctx *executionContext, env *runEnv) {
	n.ctx = ctx.withProcess(n.name)
	n.env = env
	n.logger = env.logger.With("run_id", ctx.RunID())
}

// configure applies declared keys and schema, then calls Configure.
func (n *node) configure() (err error) {
	if cur := n.phase.load(); cur != PhaseConstructed {
		return &ProcessError{Process: n.name, Op: "configure", Err: &TransitionError{From: cur, To: PhaseConfigured}}
	}

	_, span := n.startPhase("configure")
	defer func() { n.endSpan(span, err) }()

	cfg := n.cfg
	if d, ok := n.proc.(ConfigDeclarer); ok {
		applied, applyErr := cfg.Apply(d.ConfigKeys())
		if applyErr != nil {
			return n.configFailed(applyErr)
		}
		cfg = applied
	}
	if s, ok := n.proc.(ConfigSchemaer); ok {
		if schemaErr := config.ValidateSchema(cfg, s.ConfigSchema()); schemaErr != nil {
			return n.configFailed(schemaErr)
		}
	}

	if callErr := n.guard("configure", func() error { return n.proc.Configure(n.ctx, cfg) }); callErr != nil {
		return n.configFailed(callErr)
	}

	n.cfg = cfg
	n.phase.set(PhaseConfigured)
	observability.LogProcessPhase(n.logger, n.name, PhaseConfigured.String())
	return nil
}

func (n *node) configFailed(err error) error {
	n.phase.set(PhaseFailed)
	n.env.metrics.RecordProcessFailure(n.ctx, n.name, "configure")
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return panicErr
	}
	return &ConfigurationError{Process: n.name, Err: err}
}

// initialize calls Initialize, retrying transient failures when the run
// carries a retry policy.
func (n *node) initialize() (err error) {
	if cur := n.phase.load(); cur != PhaseConfigured {
		return &ProcessError{Process: n.name, Op: "initialize", Err: &TransitionError{From: cur, To: PhaseInitialized}}
	}

	_, span := n.startPhase("initialize")
	defer func() { n.endSpan(span, err) }()

	call := func(context.Context) error {
		return n.guard("initialize", func() error { return n.proc.Initialize(n.ctx) })
	}

	var callErr error
	if n.env.retry != nil {
		elapsed := observability.TimedOperation()
		var attempts int
		attempts, callErr = fperrors.Retry(n.ctx, *n.env.retry, call)
		if attempts > 1 {
			n.logger.Info("process initialize retried",
				"process", n.name,
				"attempts", attempts,
				"duration_ms", elapsed(),
			)
		}
	} else {
		callErr = call(n.ctx)
	}
	if callErr != nil {
		return n.fail("initialize", callErr)
	}

	n.phase.set(PhaseInitialized)
	observability.LogProcessPhase(n.logger, n.name, PhaseInitialized.String())
	return nil
}

// start moves an initialized node to running.
func (n *node) start() error {
	if err := n.phase.transition(PhaseRunning, PhaseInitialized); err != nil {
		return &ProcessError{Process: n.name, Op: "start", Err: err}
	}
	observability.LogProcessPhase(n.logger, n.name, PhaseRunning.String())
	return nil
}

// guard runs fn, converting a panic into a PanicError.
func (n *node) guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Process: n.name,
				Op:      op,
				Value:   r,
				Stack:   string(debug.Stack()),
			}
		}
	}()
	return fn()
}

// fail marks the node failed and wraps err with the process name.
func (n *node) fail(op string, err error) error {
	n.phase.set(PhaseFailed)
	n.env.metrics.RecordProcessFailure(n.ctx, n.name, op)

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return panicErr
	}
	var procErr *ProcessError
	if errors.As(err, &procErr) {
		return procErr
	}
	return &ProcessError{Process: n.name, Op: op, Err: err}
}

// fatal reports whether a Step error must stop the pipeline.
func fatal(err error) bool {
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return true
	}
	return fperrors.IsFatal(err) ||
		errors.Is(err, ErrInvalidDatum) ||
		errors.Is(err, ErrMissingOutput) ||
		errors.Is(err, ErrUnknownOutput) ||
		errors.Is(err, ErrCompleteOutput) ||
		errors.Is(err, ErrDesynchronized) ||
		errors.Is(err, ErrPushAfterComplete)
}

// ready reports whether step can run without blocking.
func (n *node) ready() bool {
	if !n.pendingComplete {
		for _, b := range n.syncIn {
			if !b.edge.Ready() {
				return false
			}
		}
	}
	for _, e := range n.allOut {
		if !e.CanPush() {
			return false
		}
	}
	return true
}

// step runs one cycle of the node. It returns a ClosedEdgeError when the
// run is being torn down.
func (n *node) step() error {
	if err := n.phase.transition(PhaseStepping, PhaseRunning); err != nil {
		return n.fail("step", err)
	}

	var err error
	switch {
	case n.pendingComplete:
		n.record(DatumComplete, time.Now())
		err = n.retire(n.completeStamp())
	case n.source():
		err = n.stepSource()
	default:
		err = n.stepFiltered()
	}

	if n.phase.load() == PhaseStepping {
		n.phase.set(PhaseRunning)
	}
	return err
}

func (n *node) completeStamp() Stamp {
	if n.source() {
		return NewStamp(n.color.Add(1))
	}
	return NewStamp(n.color.Load()).Heartbeat()
}

func (n *node) stepSource() error {
	cycle := n.color.Add(1)
	if n.env.limiter != nil {
		if err := n.env.limiter.Wait(n.ctx); err != nil {
			return err
		}
	}
	return n.compute(Inputs{}, cycle, true)
}

func (n *node) stepFiltered() error {
	in := Inputs{
		datums: make(map[string]Datum, len(n.syncIn)+len(n.optIn)+len(n.unconnected)),
		stamps: make(map[string]Stamp, len(n.syncIn)+len(n.optIn)),
	}

	synced := make([]Datum, 0, len(n.syncIn))
	stamps := make([]Stamp, 0, len(n.syncIn))
	var cycle uint64
	for _, b := range n.syncIn {
		d, s, err := b.edge.Pop()
		if err != nil {
			return err
		}
		in.datums[b.port.Name] = d
		in.stamps[b.port.Name] = s
		synced = append(synced, d)
		stamps = append(stamps, s)
		cycle = max(cycle, s.Color())
	}
	for _, b := range n.optIn {
		d, s, ok := b.edge.TryPop()
		if !ok {
			d, s = EmptyDatum(), NewStamp(cycle).Heartbeat()
		}
		in.datums[b.port.Name] = d
		in.stamps[b.port.Name] = s
	}
	for _, p := range n.unconnected {
		in.datums[p.Name] = EmptyDatum()
	}

	if cycle > n.color.Load() {
		n.color.Store(cycle)
	}
	heartbeat := NewStamp(cycle).Heartbeat()
	start := time.Now()

	switch MaxStatus(synced...) {
	case DatumInvalid:
		return n.fail("step", ErrInvalidDatum)

	case DatumError:
		var msgs []string
		for _, b := range n.syncIn {
			if d := in.datums[b.port.Name]; d.Type() == DatumError {
				msgs = append(msgs, d.Message())
			}
		}
		n.record(DatumError, start)
		return n.pushAll(ErrorDatum(strings.Join(msgs, "; ")), heartbeat)

	case DatumComplete:
		n.record(DatumComplete, start)
		return n.retire(heartbeat)

	case DatumEmpty:
		n.record(DatumEmpty, start)
		return n.pushAll(EmptyDatum(), heartbeat)
	}

	if !inSync(stamps) {
		colors := make(map[string]uint64, len(n.syncIn))
		for i, b := range n.syncIn {
			colors[b.port.Name] = stamps[i].Color()
		}
		observability.LogInputsUnsynchronized(n.logger, n.name, colors)
		n.record(DatumError, start)
		return n.pushAll(ErrorDatum(unsynchronizedMessage), heartbeat)
	}

	return n.compute(in, cycle, false)
}

func inSync(stamps []Stamp) bool {
	for i := 1; i < len(stamps); i++ {
		if !stamps[i].InSync(stamps[0]) {
			return false
		}
	}
	return true
}

// compute calls Step and forwards its outputs at cycle.
func (n *node) compute(in Inputs, cycle uint64, source bool) error {
	ec := n.ctx
	var span trace.Span
	if n.env.tracing {
		var spanCtx context.Context
		spanCtx, span = n.env.spans.StartStepSpan(n.ctx, n.name)
		ec = n.ctx.withContext(spanCtx)
	}
	sc := &stepContext{executionContext: ec, cycle: cycle}

	start := time.Now()
	var out Outputs
	err := n.guard("step", func() error {
		var stepErr error
		out, stepErr = n.proc.Step(sc, in)
		return stepErr
	})
	if span != nil {
		n.env.spans.EndSpanWithError(span, err)
	}

	if err != nil {
		if fatal(err) {
			return n.fail("step", err)
		}
		observability.LogStepError(n.logger, n.name, cycle, err)
		stamp := NewStamp(cycle)
		if !source {
			stamp = stamp.Heartbeat()
		}
		n.record(DatumError, start)
		if pushErr := n.pushAll(ErrorDatum(err.Error()), stamp); pushErr != nil {
			return pushErr
		}
		return n.afterStep(sc.complete)
	}

	if sc.complete && len(out) == 0 {
		n.record(DatumComplete, start)
		stamp := NewStamp(cycle)
		if !source {
			stamp = stamp.Heartbeat()
		}
		return n.retire(stamp)
	}

	batch, err := n.prepare(out, cycle, source)
	if err != nil {
		return n.fail("step", err)
	}
	n.record(DatumData, start)
	for _, em := range batch {
		for _, e := range n.outEdges[em.port] {
			if err := n.push(e, em.datum, em.stamp); err != nil {
				return err
			}
		}
	}
	return n.afterStep(sc.complete)
}

// afterStep defers complete to the next step so every step pushes at most
// one datum per edge.
func (n *node) afterStep(complete bool) error {
	if !complete {
		return nil
	}
	if len(n.allOut) == 0 {
		return n.retire(NewStamp(n.color.Load()).Heartbeat())
	}
	n.pendingComplete = true
	return nil
}

type emission struct {
	port  string
	datum Datum
	stamp Stamp
}

// prepare checks step outputs against the declared ports before anything
// is pushed.
func (n *node) prepare(out Outputs, cycle uint64, source bool) ([]emission, error) {
	for port := range out {
		if _, ok := n.ports.Lookup(Output, port); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOutput, port)
		}
	}

	batch := make([]emission, 0, len(n.outputs))
	for _, p := range n.outputs {
		d, ok := out[p.Name]
		stamp := NewStamp(cycle)
		switch {
		case !ok && !p.Optional():
			return nil, fmt.Errorf("%w: %s", ErrMissingOutput, p.Name)
		case !ok:
			d, stamp = EmptyDatum(), stamp.Heartbeat()
		case d.Type() == DatumComplete:
			return nil, fmt.Errorf("%w: %s", ErrCompleteOutput, p.Name)
		case d.Type() == DatumInvalid:
			return nil, fmt.Errorf("%w: output %s", ErrInvalidDatum, p.Name)
		case !d.IsData() && !source:
			stamp = stamp.Heartbeat()
		}
		batch = append(batch, emission{port: p.Name, datum: d, stamp: stamp})
	}
	return batch, nil
}

// pushAll sends d to every output edge.
func (n *node) pushAll(d Datum, s Stamp) error {
	for _, e := range n.allOut {
		if err := n.push(e, d, s); err != nil {
			return err
		}
	}
	return nil
}

func (n *node) push(e *Edge, d Datum, s Stamp) error {
	err := e.Push(d, s)
	if err == nil {
		return nil
	}
	var closed *ClosedEdgeError
	if errors.As(err, &closed) {
		return err
	}
	return n.fail("push", err)
}

// retire forwards complete, drains every input edge and ends the process.
func (n *node) retire(s Stamp) error {
	n.pendingComplete = false
	if err := n.pushAll(CompleteDatum(), s); err != nil {
		return err
	}
	for _, e := range n.inputEdges() {
		e.Drain()
	}
	n.phase.set(PhaseComplete)
	steps := n.steps.Load()
	if n.env.tracing {
		n.env.spans.AddSpanEvent(n.ctx, "process retired",
			attribute.String("process.name", n.name),
			attribute.Int64("process.steps", steps),
		)
	}
	observability.LogProcessRetired(n.logger, n.name, steps)
	return nil
}

func (n *node) record(status DatumType, start time.Time) {
	n.steps.Add(1)
	switch status {
	case DatumData:
		n.dataSteps.Add(1)
	case DatumEmpty:
		n.emptySteps.Add(1)
	case DatumError:
		n.errorSteps.Add(1)
	}
	n.env.metrics.RecordStep(n.ctx, n.name, status.String(), time.Since(start))
}

func (n *node) startPhase(phase string) (context.Context, trace.Span) {
	if !n.env.tracing {
		return n.ctx, nil
	}
	return n.env.spans.StartPhaseSpan(n.ctx, n.name, phase)
}

func (n *node) endSpan(span trace.Span, err error) {
	if span != nil {
		n.env.spans.EndSpanWithError(span, err)
	}
}

// sortedNames returns node names in ascending order.
func sortedNames(nodes []*node) []string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.name)
	}
	slices.Sort(names)
	return names
}
