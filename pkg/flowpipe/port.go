package flowpipe

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Direction tells whether a port consumes or produces datums.
type Direction int

const (
	// Input ports receive datums from an edge.
	Input Direction = iota
	// Output ports push datums to every connected edge.
	Output
)

// String returns the direction name.
func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// PortFlag is a bit set of port properties.
type PortFlag uint8

const (
	// FlagRequired marks an input that must be connected and synchronized.
	FlagRequired PortFlag = 1 << iota

	// FlagOptional marks an input that may stay unconnected, or an output
	// a step may leave unset (it then carries empty).
	FlagOptional

	// FlagNoDep marks an input that may close a feedback cycle. Its edge
	// carries data but imposes no scheduling order and no synchronization.
	FlagNoDep

	// FlagMutable marks an input whose consumer modifies the payload.
	// Its upstream output may not fan out to other consumers.
	FlagMutable
)

// Has reports whether every bit of flag is set.
func (f PortFlag) Has(flag PortFlag) bool {
	return f&flag == flag
}

// String lists the set flags.
func (f PortFlag) String() string {
	var names []string
	for _, fl := range []struct {
		flag PortFlag
		name string
	}{
		{FlagRequired, "required"},
		{FlagOptional, "optional"},
		{FlagNoDep, "nodep"},
		{FlagMutable, "mutable"},
	} {
		if f.Has(fl.flag) {
			names = append(names, fl.name)
		}
	}
	return strings.Join(names, "|")
}

// portFlagNames maps every accepted spelling to its flag. Older pipeline
// descriptions used several names for the no-dependency flag.
var portFlagNames = map[string]PortFlag{
	"required":       FlagRequired,
	"_required":      FlagRequired,
	"optional":       FlagOptional,
	"_optional":      FlagOptional,
	"nodep":          FlagNoDep,
	"_nodep":         FlagNoDep,
	"no_dep":         FlagNoDep,
	"no-dependency":  FlagNoDep,
	"input_nodep":    FlagNoDep,
	"_input_nodep":   FlagNoDep,
	"mutable":        FlagMutable,
	"_mutable":       FlagMutable,
	"input_mutable":  FlagMutable,
	"_input_mutable": FlagMutable,
}

// ParsePortFlag converts a flag name to a PortFlag.
func ParsePortFlag(name string) (PortFlag, error) {
	f, ok := portFlagNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPortFlag, name)
	}
	return f, nil
}

// ParsePortFlags converts a list of flag names to a combined PortFlag.
func ParsePortFlags(names ...string) (PortFlag, error) {
	var out PortFlag
	for _, name := range names {
		f, err := ParsePortFlag(name)
		if err != nil {
			return 0, err
		}
		out |= f
	}
	return out, nil
}

// Port is a named, typed attachment point on a process.
type Port struct {
	Name        string
	Direction   Direction
	Type        string
	Flags       PortFlag
	Description string
}

// Required reports whether an input must be connected.
func (p Port) Required() bool {
	return p.Flags.Has(FlagRequired) && !p.Flags.Has(FlagOptional)
}

// Synchronized reports whether an input takes part in per-step alignment
// and MaxStatus: required and not no-dependency.
func (p Port) Synchronized() bool {
	return p.Direction == Input && p.Required() && !p.Flags.Has(FlagNoDep)
}

// Optional reports whether an output may be left unset by a step.
func (p Port) Optional() bool {
	return p.Flags.Has(FlagOptional)
}

// PortRef names a port of a process in a pipeline.
type PortRef struct {
	Process string
	Port    string
}

// String renders the reference as "process.port".
func (r PortRef) String() string {
	return r.Process + "." + r.Port
}

// ParsePortRef parses "process.port". Process names never contain dots,
// so the first dot separates the two parts.
func ParsePortRef(s string) (PortRef, error) {
	proc, port, ok := strings.Cut(s, ".")
	if !ok || proc == "" || port == "" {
		return PortRef{}, fmt.Errorf("%w: %q", ErrInvalidPortRef, s)
	}
	return PortRef{Process: proc, Port: port}, nil
}

// Ports holds the port declarations of one process. Declarations are
// accepted until the process is added to a pipeline.
type Ports struct {
	mu      sync.RWMutex
	inputs  []Port
	outputs []Port
	frozen  bool
}

// NewPorts creates an empty declaration set.
func NewPorts() *Ports {
	return &Ports{}
}

// Declare adds a port. It fails with a ConfigurationError when the name is
// empty, already declared in the same direction, or the set is frozen.
func (p *Ports) Declare(port Port) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return &ConfigurationError{Key: port.Name, Err: ErrPortsFrozen}
	}
	if port.Name == "" || strings.ContainsAny(port.Name, " \t\n") {
		return &ConfigurationError{Key: port.Name, Err: fmt.Errorf("invalid port name %q", port.Name)}
	}

	list := &p.inputs
	if port.Direction == Output {
		list = &p.outputs
	}
	if slices.ContainsFunc(*list, func(q Port) bool { return q.Name == port.Name }) {
		return &ConfigurationError{Key: port.Name, Err: fmt.Errorf("%w: %s port %s", ErrDuplicatePort, port.Direction, port.Name)}
	}
	*list = append(*list, port)
	return nil
}

// Input declares an input port.
func (p *Ports) Input(name, typ string, flags ...PortFlag) error {
	return p.Declare(Port{Name: name, Direction: Input, Type: typ, Flags: combine(flags)})
}

// Output declares an output port.
func (p *Ports) Output(name, typ string, flags ...PortFlag) error {
	return p.Declare(Port{Name: name, Direction: Output, Type: typ, Flags: combine(flags)})
}

// MustDeclare is like Declare but panics on error.
// Intended for process constructors with fixed declarations.
func (p *Ports) MustDeclare(ports ...Port) *Ports {
	for _, port := range ports {
		if err := p.Declare(port); err != nil {
			panic("flowpipe: " + err.Error())
		}
	}
	return p
}

// Inputs returns the input ports in declaration order.
func (p *Ports) Inputs() []Port {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.inputs)
}

// Outputs returns the output ports in declaration order.
func (p *Ports) Outputs() []Port {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.outputs)
}

// Lookup finds a declared port.
func (p *Ports) Lookup(dir Direction, name string) (Port, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	list := p.inputs
	if dir == Output {
		list = p.outputs
	}
	for _, port := range list {
		if port.Name == name {
			return port, true
		}
	}
	return Port{}, false
}

// Frozen reports whether declarations are closed.
func (p *Ports) Frozen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frozen
}

func (p *Ports) freeze() {
	p.mu.Lock()
	p.frozen = true
	p.mu.Unlock()
}

func combine(flags []PortFlag) PortFlag {
	var out PortFlag
	for _, f := range flags {
		out |= f
	}
	return out
}
