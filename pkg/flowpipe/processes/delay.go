package processes

import (
	"github.com/randalmurphal/flowpipe/pkg/flowpipe"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/config"
)

// Delay emits on "out" the value it received one cycle earlier. The first
// cycle emits the configured initial value, or empty when none is set.
// Connected to a no-dependency input it closes a feedback loop.
//
// Config keys:
//   - initial: value emitted on the first cycle
type Delay[T any] struct {
	ports   *flowpipe.Ports
	held    T
	holding bool
}

// NewDelay creates a Delay for typ.
func NewDelay[T any](typ string) *Delay[T] {
	return &Delay[T]{
		ports: flowpipe.NewPorts().MustDeclare(
			flowpipe.Port{Name: PortIn, Direction: flowpipe.Input, Type: typ, Flags: flowpipe.FlagRequired},
			flowpipe.Port{Name: PortOut, Direction: flowpipe.Output, Type: typ},
		),
	}
}

// Ports returns the port declarations.
func (d *Delay[T]) Ports() *flowpipe.Ports { return d.ports }

// Configure reads the initial value.
func (d *Delay[T]) Configure(_ flowpipe.Context, cfg config.Config) error {
	if v, ok := cfg.Any("initial", nil).(T); ok {
		d.held, d.holding = v, true
	}
	return nil
}

// Initialize does nothing.
func (d *Delay[T]) Initialize(flowpipe.Context) error { return nil }

// Step emits the held value and holds the new one.
func (d *Delay[T]) Step(_ flowpipe.StepContext, in flowpipe.Inputs) (flowpipe.Outputs, error) {
	out := flowpipe.Outputs{}
	if d.holding {
		out.Set(PortOut, d.held)
	} else {
		out.SetDatum(PortOut, flowpipe.EmptyDatum())
	}
	d.held, d.holding = flowpipe.InputValue[T](in, PortIn)
	return out, nil
}
