package processes

import (
	"slices"
	"sync"

	"github.com/randalmurphal/flowpipe/pkg/flowpipe"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/config"
)

// Collector is a sink that records every value on "in".
// Values may be read while the pipeline runs.
type Collector[T any] struct {
	ports *flowpipe.Ports

	mu     sync.Mutex
	values []T
	colors []uint64
}

// NewCollector creates a Collector for typ.
func NewCollector[T any](typ string) *Collector[T] {
	return &Collector[T]{
		ports: flowpipe.NewPorts().MustDeclare(
			flowpipe.Port{Name: PortIn, Direction: flowpipe.Input, Type: typ, Flags: flowpipe.FlagRequired},
		),
	}
}

// Ports returns the port declarations.
func (c *Collector[T]) Ports() *flowpipe.Ports { return c.ports }

// Configure does nothing.
func (c *Collector[T]) Configure(flowpipe.Context, config.Config) error { return nil }

// Initialize clears previously collected values.
func (c *Collector[T]) Initialize(flowpipe.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values, c.colors = nil, nil
	return nil
}

// Step records the value and its cycle.
func (c *Collector[T]) Step(ctx flowpipe.StepContext, in flowpipe.Inputs) (flowpipe.Outputs, error) {
	v, _ := flowpipe.InputValue[T](in, PortIn)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
	c.colors = append(c.colors, ctx.Cycle())
	return nil, nil
}

// Values returns the collected values in arrival order.
func (c *Collector[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.values)
}

// Colors returns the cycle of every collected value.
func (c *Collector[T]) Colors() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.colors)
}
