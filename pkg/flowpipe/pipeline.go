package flowpipe

import (
	"fmt"
	"strings"
	"sync"

	"github.com/randalmurphal/flowpipe/pkg/flowpipe/config"
)

// Pipeline is a mutable builder for a process graph.
// Use NewPipeline, then AddProcess and Connect, then Compile to obtain an
// immutable, runnable CompiledPipeline.
//
// Example:
//
//	p := flowpipe.NewPipeline()
//	_ = p.AddProcess("numbers", processes.NewSliceSource("int", 1, 2, 3))
//	_ = p.AddProcess("double", processes.NewMap("int", "int", double))
//	_ = p.AddProcess("sink", processes.NewCollector("int"))
//	_, _ = p.Connect("numbers.out", "double.in")
//	_, _ = p.Connect("double.out", "sink.in")
//
//	compiled, err := p.Compile()
type Pipeline struct {
	mu       sync.RWMutex
	nodes    map[string]*node
	order    []*node
	edges    []*Edge
	inbound  map[PortRef]*Edge
	compiled bool
}

// NewPipeline creates an empty pipeline builder.
func NewPipeline() *Pipeline {
	return &Pipeline{
		nodes:   make(map[string]*node),
		inbound: make(map[PortRef]*Edge),
	}
}

// ProcessOption configures a process when it is added.
type ProcessOption func(*processConfig)

type processConfig struct {
	cfg config.Config
}

// WithConfig sets the configuration handed to the process's Configure.
func WithConfig(cfg config.Config) ProcessOption {
	return func(c *processConfig) {
		c.cfg = cfg
	}
}

// AddProcess registers proc under name and freezes its port declarations.
//
// Names must be non-empty and may not contain '.' or whitespace, since
// port references take the form "process.port".
func (p *Pipeline) AddProcess(name string, proc Process, opts ...ProcessOption) error {
	if name == "" || strings.ContainsAny(name, ". \t\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidProcessName, name)
	}
	if proc == nil {
		return fmt.Errorf("%w: %s", ErrNilProcess, name)
	}
	ports := proc.Ports()
	if ports == nil {
		return &ConfigurationError{Process: name, Err: fmt.Errorf("process returned nil ports")}
	}

	cfg := processConfig{cfg: config.New(nil)}
	for _, opt := range opts {
		opt(&cfg)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.compiled {
		return ErrPipelineFrozen
	}
	if _, exists := p.nodes[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProcess, name)
	}

	ports.freeze()
	n := newNode(name, proc, cfg.cfg)
	n.outputs = ports.Outputs()
	p.nodes[name] = n
	p.order = append(p.order, n)
	return nil
}

// Connect creates an edge from an output port to an input port, both given
// as "process.port". The ports must declare the same type and the input
// must not already be connected. An output may feed any number of inputs;
// each connection gets its own edge.
func (p *Pipeline) Connect(from, to string, opts ...EdgeOption) (*Edge, error) {
	fromRef, err := ParsePortRef(from)
	if err != nil {
		return nil, err
	}
	toRef, err := ParsePortRef(to)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.compiled {
		return nil, ErrPipelineFrozen
	}

	up, ok := p.nodes[fromRef.Process]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, fromRef.Process)
	}
	down, ok := p.nodes[toRef.Process]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, toRef.Process)
	}
	outPort, ok := up.ports.Lookup(Output, fromRef.Port)
	if !ok {
		return nil, fmt.Errorf("%w: output %s", ErrPortNotFound, fromRef)
	}
	inPort, ok := down.ports.Lookup(Input, toRef.Port)
	if !ok {
		return nil, fmt.Errorf("%w: input %s", ErrPortNotFound, toRef)
	}

	if outPort.Type != inPort.Type {
		return nil, &TypeMismatchError{From: fromRef, To: toRef, FromType: outPort.Type, ToType: inPort.Type}
	}
	if existing, ok := p.inbound[toRef]; ok {
		return nil, &AlreadyConnectedError{Port: toRef, Existing: existing.From()}
	}

	var cfg edgeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	e := newEdge(fromRef, toRef, outPort.Type, cfg)
	p.edges = append(p.edges, e)
	p.inbound[toRef] = e
	up.outEdges[fromRef.Port] = append(up.outEdges[fromRef.Port], e)
	up.allOut = append(up.allOut, e)
	return e, nil
}

// HasProcess reports whether name has been added.
func (p *Pipeline) HasProcess(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.nodes[name]
	return ok
}

// Len returns the number of processes.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}
