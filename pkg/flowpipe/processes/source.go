package processes

import (
	"github.com/randalmurphal/flowpipe/pkg/flowpipe"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/config"
)

// SliceSource emits its values one per step on "out", then completes.
//
// Config keys:
//   - limit: emit at most this many values (0 = all)
type SliceSource[T any] struct {
	ports  *flowpipe.Ports
	values []T
	limit  int
	next   int
}

// NewSliceSource creates a source over values with output type typ.
func NewSliceSource[T any](typ string, values ...T) *SliceSource[T] {
	return &SliceSource[T]{
		ports: flowpipe.NewPorts().MustDeclare(flowpipe.Port{
			Name:        PortOut,
			Direction:   flowpipe.Output,
			Type:        typ,
			Description: "values in order",
		}),
		values: values,
	}
}

// Ports returns the port declarations.
func (s *SliceSource[T]) Ports() *flowpipe.Ports { return s.ports }

// ConfigKeys declares the settings read by Configure.
func (s *SliceSource[T]) ConfigKeys() []config.Key {
	return []config.Key{
		{Name: "limit", Default: 0, Description: "emit at most this many values (0 = all)"},
	}
}

// Configure reads the limit.
func (s *SliceSource[T]) Configure(_ flowpipe.Context, cfg config.Config) error {
	s.limit = cfg.Int("limit", 0)
	return nil
}

// Initialize rewinds the source.
func (s *SliceSource[T]) Initialize(flowpipe.Context) error {
	s.next = 0
	return nil
}

// Step emits the next value, or completes when none remain.
func (s *SliceSource[T]) Step(ctx flowpipe.StepContext, _ flowpipe.Inputs) (flowpipe.Outputs, error) {
	if s.next >= len(s.values) || (s.limit > 0 && s.next >= s.limit) {
		ctx.MarkComplete()
		return nil, nil
	}
	v := s.values[s.next]
	s.next++
	return flowpipe.Outputs{}.Set(PortOut, v), nil
}
