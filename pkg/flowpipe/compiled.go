package flowpipe

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// PipelineState is the lifecycle position of a compiled pipeline.
type PipelineState int32

const (
	// StateAssembled means compiled and not yet run.
	StateAssembled PipelineState = iota
	// StateRunning means Run is in progress.
	StateRunning
	// StateStopped means the run ended, for whatever reason.
	StateStopped
)

// String returns the state name.
func (s PipelineState) String() string {
	switch s {
	case StateAssembled:
		return "assembled"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// CompiledPipeline is a validated, runnable pipeline.
// It is created by calling Compile() on a Pipeline builder.
//
// Processes are stateful, so a CompiledPipeline runs exactly once. The
// introspection methods are safe to call while it runs.
type CompiledPipeline struct {
	nodes  []*node // topological order
	byName map[string]*node
	edges  []*Edge

	state   atomic.Int32
	ran     atomic.Bool
	stopped atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newCompiledPipeline(order []*node, edges []*Edge) *CompiledPipeline {
	cp := &CompiledPipeline{
		nodes:  order,
		byName: make(map[string]*node, len(order)),
		edges:  slices.Clone(edges),
	}
	for _, n := range order {
		cp.byName[n.name] = n
	}
	return cp
}

// State returns the pipeline state.
func (cp *CompiledPipeline) State() PipelineState {
	return PipelineState(cp.state.Load())
}

// Processes returns the process names in ascending order.
func (cp *CompiledPipeline) Processes() []string {
	return sortedNames(cp.nodes)
}

// Order returns the process names in scheduling order: a topological order
// over dependency edges.
func (cp *CompiledPipeline) Order() []string {
	names := make([]string, 0, len(cp.nodes))
	for _, n := range cp.nodes {
		names = append(names, n.name)
	}
	return names
}

// HasProcess reports whether the pipeline contains a process.
func (cp *CompiledPipeline) HasProcess(name string) bool {
	_, ok := cp.byName[name]
	return ok
}

// Process returns the process registered under name.
func (cp *CompiledPipeline) Process(name string) (Process, bool) {
	n, ok := cp.byName[name]
	if !ok {
		return nil, false
	}
	return n.proc, true
}

// Sources returns the processes without connected inputs.
func (cp *CompiledPipeline) Sources() []string {
	var names []string
	for _, n := range cp.nodes {
		if n.source() {
			names = append(names, n.name)
		}
	}
	return names
}

// Edges returns every edge in connection order.
func (cp *CompiledPipeline) Edges() []*Edge {
	return slices.Clone(cp.edges)
}

// Successors returns the processes fed by name, in connection order
// without duplicates.
func (cp *CompiledPipeline) Successors(name string) []string {
	var out []string
	for _, e := range cp.edges {
		if e.From().Process == name && !slices.Contains(out, e.To().Process) {
			out = append(out, e.To().Process)
		}
	}
	return out
}

// Predecessors returns the processes feeding name, in connection order
// without duplicates.
func (cp *CompiledPipeline) Predecessors(name string) []string {
	var out []string
	for _, e := range cp.edges {
		if e.To().Process == name && !slices.Contains(out, e.From().Process) {
			out = append(out, e.From().Process)
		}
	}
	return out
}

// ProcessStats returns the step counters of one process.
func (cp *CompiledPipeline) ProcessStats(name string) (ProcessStats, bool) {
	n, ok := cp.byName[name]
	if !ok {
		return ProcessStats{}, false
	}
	return n.stats(), true
}

// EdgeStats returns the state of every edge. It implements
// observability.EdgeStatsSource.
func (cp *CompiledPipeline) EdgeStats() []EdgeStats {
	stats := make([]EdgeStats, 0, len(cp.edges))
	for _, e := range cp.edges {
		stats = append(stats, e.Stats())
	}
	return stats
}

// Snapshot is a point-in-time view of a pipeline.
type Snapshot struct {
	State     PipelineState
	Processes []ProcessStats
	Edges     []EdgeStats
}

// Snapshot returns the phase and counters of every process, in scheduling
// order, and the state of every edge.
func (cp *CompiledPipeline) Snapshot() Snapshot {
	procs := make([]ProcessStats, 0, len(cp.nodes))
	for _, n := range cp.nodes {
		procs = append(procs, n.stats())
	}
	return Snapshot{
		State:     cp.State(),
		Processes: procs,
		Edges:     cp.EdgeStats(),
	}
}

// Stop ends a run early. Every edge is closed, blocked pushes and pops
// return, and Run reports StatusStopped without an error. Stop is safe to
// call from any goroutine and more than once.
func (cp *CompiledPipeline) Stop() {
	cp.stopped.Store(true)
	cp.closeEdges()

	cp.mu.Lock()
	cancel := cp.cancel
	cp.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (cp *CompiledPipeline) closeEdges() {
	for _, e := range cp.edges {
		e.Close()
	}
}
