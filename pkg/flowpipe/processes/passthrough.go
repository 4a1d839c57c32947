package processes

import (
	"github.com/randalmurphal/flowpipe/pkg/flowpipe"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/config"
)

// PassThrough forwards every value on "in" to "out".
type PassThrough struct {
	ports *flowpipe.Ports
}

// NewPassThrough creates a PassThrough for typ.
func NewPassThrough(typ string) *PassThrough {
	return &PassThrough{
		ports: flowpipe.NewPorts().MustDeclare(
			flowpipe.Port{Name: PortIn, Direction: flowpipe.Input, Type: typ, Flags: flowpipe.FlagRequired},
			flowpipe.Port{Name: PortOut, Direction: flowpipe.Output, Type: typ},
		),
	}
}

// Ports returns the port declarations.
func (p *PassThrough) Ports() *flowpipe.Ports { return p.ports }

// Configure does nothing.
func (p *PassThrough) Configure(flowpipe.Context, config.Config) error { return nil }

// Initialize does nothing.
func (p *PassThrough) Initialize(flowpipe.Context) error { return nil }

// Step forwards the input datum.
func (p *PassThrough) Step(_ flowpipe.StepContext, in flowpipe.Inputs) (flowpipe.Outputs, error) {
	return flowpipe.Outputs{}.SetDatum(PortOut, in.Datum(PortIn)), nil
}
