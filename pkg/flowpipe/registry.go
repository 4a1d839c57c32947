package flowpipe

import (
	"fmt"

	"github.com/randalmurphal/flowpipe/pkg/flowpipe/registry"
)

// ProcessFactory creates a new, unconfigured process.
type ProcessFactory func() (Process, error)

// ProcessRegistry maps process type names to factories. Pipelines that
// are described by type name rather than built in code use it to create
// their processes.
//
// Example:
//
//	reg := flowpipe.NewProcessRegistry()
//	_ = reg.Register("double", "multiplies integers by two", newDouble)
//	proc, err := reg.Create("double")
type ProcessRegistry struct {
	factories *registry.Registry[ProcessFactory]
}

// NewProcessRegistry creates an empty registry.
func NewProcessRegistry() *ProcessRegistry {
	return &ProcessRegistry{factories: registry.New[ProcessFactory]()}
}

// Register adds a process type. It fails when the type already exists.
func (r *ProcessRegistry) Register(typeName, description string, factory ProcessFactory) error {
	if factory == nil {
		return fmt.Errorf("register %s: %w", typeName, ErrNilProcess)
	}
	return r.factories.Register(typeName, description, factory)
}

// Create builds a new process of the given type.
func (r *ProcessRegistry) Create(typeName string) (Process, error) {
	entry, err := r.factories.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	proc, err := entry.Value()
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", typeName, err)
	}
	if proc == nil {
		return nil, fmt.Errorf("create %s: %w", typeName, ErrNilProcess)
	}
	return proc, nil
}

// Types returns the registered type names in ascending order.
func (r *ProcessRegistry) Types() []string {
	return r.factories.Names()
}

// Describe returns the description of a process type.
func (r *ProcessRegistry) Describe(typeName string) (string, bool) {
	entry, err := r.factories.Lookup(typeName)
	if err != nil {
		return "", false
	}
	return entry.Description, true
}

// Has reports whether a process type is registered.
func (r *ProcessRegistry) Has(typeName string) bool {
	return r.factories.Has(typeName)
}

// AddProcessOfType creates a process from reg and adds it to the pipeline.
func (p *Pipeline) AddProcessOfType(reg *ProcessRegistry, name, typeName string, opts ...ProcessOption) error {
	proc, err := reg.Create(typeName)
	if err != nil {
		return fmt.Errorf("add process %s: %w", name, err)
	}
	return p.AddProcess(name, proc, opts...)
}
