package flowpipe

import (
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/config"
)

// Process is one processing stage of a pipeline.
//
// The scheduler calls Configure once, Initialize once, then Step
// repeatedly until the process retires. A process never sees edges: Step
// receives the aligned datums of its inputs and returns values per output
// port. Processes only touch their own state; the scheduler guarantees
// that no two calls on one process overlap.
//
// Example:
//
//	type double struct{ ports *flowpipe.Ports }
//
//	func (d *double) Ports() *flowpipe.Ports { return d.ports }
//	func (d *double) Configure(flowpipe.Context, config.Config) error { return nil }
//	func (d *double) Initialize(flowpipe.Context) error { return nil }
//
//	func (d *double) Step(ctx flowpipe.StepContext, in flowpipe.Inputs) (flowpipe.Outputs, error) {
//	    n, _ := flowpipe.InputValue[int](in, "in")
//	    return flowpipe.Outputs{}.Set("out", 2*n), nil
//	}
type Process interface {
	// Ports returns the port declarations. The set is frozen when the
	// process is added to a pipeline.
	Ports() *Ports

	// Configure reads settings. Returning an error fails the run before
	// any step with a ConfigurationError.
	Configure(ctx Context, cfg config.Config) error

	// Initialize acquires resources. Transient errors are retried when the
	// run has a retry policy.
	Initialize(ctx Context) error

	// Step computes one cycle. It is only called when every synchronized
	// input carries data. Returned errors become error datums unless they
	// are categorized fatal.
	Step(ctx StepContext, in Inputs) (Outputs, error)
}

// ConfigDeclarer is implemented by processes that declare their settings.
// Declared defaults are applied and required keys are checked before
// Configure.
type ConfigDeclarer interface {
	ConfigKeys() []config.Key
}

// ConfigSchemaer is implemented by processes that validate their settings
// against a JSON schema before Configure.
type ConfigSchemaer interface {
	ConfigSchema() string
}

// Inputs holds the datums popped for one step, keyed by input port.
type Inputs struct {
	datums map[string]Datum
	stamps map[string]Stamp
}

// Datum returns the datum popped from port. Unconnected optional ports
// and ports with nothing queued yield empty; undeclared ports yield an
// invalid datum.
func (in Inputs) Datum(port string) Datum {
	return in.datums[port]
}

// Value returns the payload on port, nil unless it carries data.
func (in Inputs) Value(port string) any {
	return in.datums[port].Payload()
}

// Has reports whether port carries data this step.
func (in Inputs) Has(port string) bool {
	return in.datums[port].IsData()
}

// Stamp returns the stamp the datum on port arrived with.
func (in Inputs) Stamp(port string) Stamp {
	return in.stamps[port]
}

// Ports returns the names of the ports present in the step.
func (in Inputs) Ports() []string {
	names := make([]string, 0, len(in.datums))
	for name := range in.datums {
		names = append(names, name)
	}
	return names
}

// InputValue returns the payload on port as T.
func InputValue[T any](in Inputs, port string) (T, bool) {
	return Value[T](in.datums[port])
}

// Outputs maps output port names to the datums a step produces.
// Ports left out carry empty when optional; leaving out a required port is
// an error.
type Outputs map[string]Datum

// Set stores a data datum for port and returns o for chaining.
func (o Outputs) Set(port string, payload any) Outputs {
	o[port] = NewDatum(payload)
	return o
}

// SetDatum stores d for port. Sources use it to emit empty or error
// datums without data.
func (o Outputs) SetDatum(port string, d Datum) Outputs {
	o[port] = d
	return o
}

// StepFunc computes one step.
type StepFunc func(ctx StepContext, in Inputs) (Outputs, error)

// Func is a Process built from a step function. Configure and Initialize
// do nothing.
type Func struct {
	ports *Ports
	step  StepFunc
}

// NewFunc wraps fn as a Process with the given ports.
func NewFunc(ports *Ports, fn StepFunc) *Func {
	if ports == nil {
		ports = NewPorts()
	}
	return &Func{ports: ports, step: fn}
}

// Ports returns the declarations passed to NewFunc.
func (f *Func) Ports() *Ports { return f.ports }

// Configure does nothing.
func (f *Func) Configure(Context, config.Config) error { return nil }

// Initialize does nothing.
func (f *Func) Initialize(Context) error { return nil }

// Step calls the wrapped function.
func (f *Func) Step(ctx StepContext, in Inputs) (Outputs, error) {
	return f.step(ctx, in)
}
