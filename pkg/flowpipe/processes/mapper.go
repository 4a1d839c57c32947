package processes

import (
	"fmt"

	"github.com/randalmurphal/flowpipe/pkg/flowpipe"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/config"
)

// Map applies fn to every value on "in" and emits the result on "out".
// An error from fn becomes an error datum for that cycle.
type Map[In, Out any] struct {
	ports *flowpipe.Ports
	fn    func(In) (Out, error)
}

// NewMap creates a Map from inType to outType.
func NewMap[In, Out any](inType, outType string, fn func(In) (Out, error)) *Map[In, Out] {
	return &Map[In, Out]{
		ports: flowpipe.NewPorts().MustDeclare(
			flowpipe.Port{Name: PortIn, Direction: flowpipe.Input, Type: inType, Flags: flowpipe.FlagRequired},
			flowpipe.Port{Name: PortOut, Direction: flowpipe.Output, Type: outType},
		),
		fn: fn,
	}
}

// Ports returns the port declarations.
func (m *Map[In, Out]) Ports() *flowpipe.Ports { return m.ports }

// Configure does nothing.
func (m *Map[In, Out]) Configure(flowpipe.Context, config.Config) error { return nil }

// Initialize does nothing.
func (m *Map[In, Out]) Initialize(flowpipe.Context) error { return nil }

// Step applies the function.
func (m *Map[In, Out]) Step(_ flowpipe.StepContext, in flowpipe.Inputs) (flowpipe.Outputs, error) {
	v, ok := flowpipe.InputValue[In](in, PortIn)
	if !ok {
		return nil, fmt.Errorf("map: unexpected payload %T", in.Value(PortIn))
	}
	out, err := m.fn(v)
	if err != nil {
		return nil, err
	}
	return flowpipe.Outputs{}.Set(PortOut, out), nil
}
