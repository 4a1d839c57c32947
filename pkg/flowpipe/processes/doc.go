// Package processes provides general-purpose flowpipe processes.
//
// Every process here declares the ports "in"/"out" (or "a"/"b"/"out" for
// Combine) with a caller-chosen type tag, so they connect to any process
// that agrees on the tag.
//
//   - SliceSource emits a fixed list of values, then completes.
//   - Map applies a function to every value.
//   - Combine sums or multiplies two synchronized inputs.
//   - PassThrough forwards datums unchanged.
//   - Delay emits each value one cycle late, for feedback loops.
//   - Collector records every value it receives.
package processes

import "github.com/randalmurphal/flowpipe/pkg/flowpipe"

// Port names shared by the processes in this package.
const (
	PortIn  = "in"
	PortOut = "out"
	PortA   = "a"
	PortB   = "b"
)

// RegisterFloat registers float64 variants of the standard processes
// with reg under the type tag "float64".
func RegisterFloat(reg *flowpipe.ProcessRegistry) error {
	const typ = "float64"
	entries := []struct {
		name    string
		desc    string
		factory flowpipe.ProcessFactory
	}{
		{"combine", "sums or multiplies inputs a and b (config key op)", func() (flowpipe.Process, error) {
			return NewCombine[float64](typ), nil
		}},
		{"passthrough", "forwards every datum unchanged", func() (flowpipe.Process, error) {
			return NewPassThrough(typ), nil
		}},
		{"delay", "emits each value one cycle late (config key initial)", func() (flowpipe.Process, error) {
			return NewDelay[float64](typ), nil
		}},
		{"collector", "records every value it receives", func() (flowpipe.Process, error) {
			return NewCollector[float64](typ), nil
		}},
	}
	for _, e := range entries {
		if err := reg.Register(e.name, e.desc, e.factory); err != nil {
			return err
		}
	}
	return nil
}
