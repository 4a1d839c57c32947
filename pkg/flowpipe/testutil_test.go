package flowpipe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/randalmurphal/flowpipe/pkg/flowpipe/config"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/observability"
	"github.com/stretchr/testify/require"
)

// testCtx returns a Context with a silent logger.
func testCtx() Context {
	return NewContext(context.Background(), WithLogger(discardLogger()))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Helper processes

// sourceOf emits the given datums one per step, then completes. Data
// datums are emitted with Set, control datums with SetDatum.
func sourceOf(typ string, items ...Datum) *Func {
	ports := NewPorts().MustDeclare(Port{Name: "out", Direction: Output, Type: typ})
	next := 0
	return NewFunc(ports, func(ctx StepContext, _ Inputs) (Outputs, error) {
		if next >= len(items) {
			ctx.MarkComplete()
			return nil, nil
		}
		d := items[next]
		next++
		return Outputs{}.SetDatum("out", d), nil
	})
}

// intSource emits values, then completes.
func intSource(values ...int) *Func {
	items := make([]Datum, 0, len(values))
	for _, v := range values {
		items = append(items, NewDatum(v))
	}
	return sourceOf("int", items...)
}

// mapInt applies fn to "in" and emits on "out".
func mapInt(fn func(int) int) *Func {
	ports := NewPorts().MustDeclare(
		Port{Name: "in", Direction: Input, Type: "int", Flags: FlagRequired},
		Port{Name: "out", Direction: Output, Type: "int"},
	)
	return NewFunc(ports, func(_ StepContext, in Inputs) (Outputs, error) {
		v, _ := InputValue[int](in, "in")
		return Outputs{}.Set("out", fn(v)), nil
	})
}

// sumInts adds "a" and "b". The flags of "b" are configurable so the
// same helper serves feedback tests.
func sumInts(bFlags PortFlag) *Func {
	ports := NewPorts().MustDeclare(
		Port{Name: "a", Direction: Input, Type: "int", Flags: FlagRequired},
		Port{Name: "b", Direction: Input, Type: "int", Flags: bFlags},
		Port{Name: "out", Direction: Output, Type: "int"},
	)
	return NewFunc(ports, func(_ StepContext, in Inputs) (Outputs, error) {
		a, _ := InputValue[int](in, "a")
		b, _ := InputValue[int](in, "b")
		return Outputs{}.Set("out", a+b), nil
	})
}

// failing returns err from every step.
func failing(err error) *Func {
	ports := NewPorts().MustDeclare(
		Port{Name: "in", Direction: Input, Type: "int", Flags: FlagRequired},
		Port{Name: "out", Direction: Output, Type: "int"},
	)
	return NewFunc(ports, func(StepContext, Inputs) (Outputs, error) {
		return nil, err
	})
}

// panicking panics on every step.
func panicking(value any) *Func {
	ports := NewPorts().MustDeclare(
		Port{Name: "in", Direction: Input, Type: "int", Flags: FlagRequired},
		Port{Name: "out", Direction: Output, Type: "int"},
	)
	return NewFunc(ports, func(StepContext, Inputs) (Outputs, error) {
		panic(value)
	})
}

// sink records every data payload it receives.
type sink struct {
	ports *Ports

	mu     sync.Mutex
	values []int
}

func newSink() *sink {
	return &sink{ports: NewPorts().MustDeclare(
		Port{Name: "in", Direction: Input, Type: "int", Flags: FlagRequired},
	)}
}

func (s *sink) Ports() *Ports                         { return s.ports }
func (s *sink) Configure(Context, config.Config) error { return nil }
func (s *sink) Initialize(Context) error               { return nil }

func (s *sink) Step(_ StepContext, in Inputs) (Outputs, error) {
	v, _ := InputValue[int](in, "in")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, v)
	return nil, nil
}

func (s *sink) got() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.values...)
}

// lifecycleProbe records Configure and Initialize calls.
type lifecycleProbe struct {
	*Func
	configureErr  error
	initializeErr error
	configured    int
	initialized   int
}

func (p *lifecycleProbe) Configure(Context, config.Config) error {
	p.configured++
	return p.configureErr
}

func (p *lifecycleProbe) Initialize(Context) error {
	p.initialized++
	return p.initializeErr
}

var errTest = errors.New("test error")

// Manual stepping

// testEnv returns run services that discard everything.
func testEnv() *runEnv {
	return &runEnv{
		logger:  discardLogger(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// startManual prepares cp for stepping nodes by hand.
func startManual(t *testing.T, cp *CompiledPipeline) {
	t.Helper()
	ctx := runContext(context.Background(), testCtx().Logger(), "manual")
	env := testEnv()
	for _, n := range cp.nodes {
		n.bind(ctx, env)
	}
	require.NoError(t, cp.setup())
}

// stepReady steps the named nodes in order until none of them can step.
func stepReady(t *testing.T, cp *CompiledPipeline, names ...string) {
	t.Helper()
	for progressed := true; progressed; {
		progressed = false
		for _, name := range names {
			n := cp.byName[name]
			if n.done() || !n.ready() {
				continue
			}
			require.NoError(t, n.step(), "step %s", name)
			progressed = true
		}
	}
}

// drain pops every queued datum from e without blocking.
func drain(e *Edge) []Datum {
	var out []Datum
	for {
		d, _, ok := e.TryPop()
		if !ok {
			return out
		}
		out = append(out, d)
		if d.Type() == DatumComplete {
			return out
		}
	}
}

// edgeInto returns the edge feeding process.port.
func edgeInto(cp *CompiledPipeline, ref string) *Edge {
	for _, e := range cp.edges {
		if e.To().String() == ref {
			return e
		}
	}
	return nil
}

// mustCompile builds a pipeline from processes and connections.
func mustCompile(t *testing.T, procs map[string]Process, order []string, conns ...[2]string) *CompiledPipeline {
	t.Helper()
	p := NewPipeline()
	for _, name := range order {
		require.NoError(t, p.AddProcess(name, procs[name]))
	}
	for _, c := range conns {
		_, err := p.Connect(c[0], c[1])
		require.NoError(t, err)
	}
	cp, err := p.Compile()
	require.NoError(t, err)
	return cp
}
