package processes

import (
	"fmt"

	"github.com/randalmurphal/flowpipe/pkg/flowpipe"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/config"
)

// Number is the set of payload types Combine accepts.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Combine operations.
const (
	OpSum      = "sum"
	OpMultiply = "multiply"
)

const combineSchema = `{
	"type": "object",
	"properties": {
		"op": {"type": "string", "enum": ["sum", "multiply"]}
	}
}`

// Combine merges the synchronized inputs "a" and "b" into "out".
//
// Config keys:
//   - op: "sum" (default) or "multiply"
type Combine[T Number] struct {
	ports *flowpipe.Ports
	op    string
}

// NewCombine creates a Combine over typ.
func NewCombine[T Number](typ string) *Combine[T] {
	return &Combine[T]{
		ports: flowpipe.NewPorts().MustDeclare(
			flowpipe.Port{Name: PortA, Direction: flowpipe.Input, Type: typ, Flags: flowpipe.FlagRequired},
			flowpipe.Port{Name: PortB, Direction: flowpipe.Input, Type: typ, Flags: flowpipe.FlagRequired},
			flowpipe.Port{Name: PortOut, Direction: flowpipe.Output, Type: typ},
		),
		op: OpSum,
	}
}

// Ports returns the port declarations.
func (c *Combine[T]) Ports() *flowpipe.Ports { return c.ports }

// ConfigKeys declares the settings read by Configure.
func (c *Combine[T]) ConfigKeys() []config.Key {
	return []config.Key{
		{Name: "op", Default: OpSum, Description: "sum or multiply"},
	}
}

// ConfigSchema restricts op to the supported operations.
func (c *Combine[T]) ConfigSchema() string { return combineSchema }

// Configure reads the operation.
func (c *Combine[T]) Configure(_ flowpipe.Context, cfg config.Config) error {
	c.op = cfg.String("op", OpSum)
	return nil
}

// Initialize does nothing.
func (c *Combine[T]) Initialize(flowpipe.Context) error { return nil }

// Step combines one value from each input.
func (c *Combine[T]) Step(_ flowpipe.StepContext, in flowpipe.Inputs) (flowpipe.Outputs, error) {
	a, okA := flowpipe.InputValue[T](in, PortA)
	b, okB := flowpipe.InputValue[T](in, PortB)
	if !okA || !okB {
		return nil, fmt.Errorf("combine: unexpected payloads %T, %T", in.Value(PortA), in.Value(PortB))
	}
	if c.op == OpMultiply {
		return flowpipe.Outputs{}.Set(PortOut, a*b), nil
	}
	return flowpipe.Outputs{}.Set(PortOut, a+b), nil
}
