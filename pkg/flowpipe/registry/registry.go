// Package registry provides a thread-safe table of named factories.
//
// Every entry carries a description so that tools can list what a
// registry offers. Names are unique: registering a name twice fails
// unless the entry is replaced explicitly.
//
//	r := registry.New[func() Widget]()
//	if err := r.Register("round", "a round widget", newRound); err != nil {
//	    return err
//	}
//	make, ok := r.Get("round")
package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Sentinel errors for registry operations.
var (
	// ErrDuplicate indicates a name is already registered.
	ErrDuplicate = errors.New("name already registered")

	// ErrNotFound indicates a name is not registered.
	ErrNotFound = errors.New("name not registered")

	// ErrEmptyName indicates an entry was registered without a name.
	ErrEmptyName = errors.New("name cannot be empty")
)

// Entry is one registered value with its metadata.
type Entry[V any] struct {
	Name        string
	Description string
	Value       V
}

// Registry maps names to values. It uses sync.RWMutex for read-heavy use.
type Registry[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
}

// New creates an empty registry.
func New[V any]() *Registry[V] {
	return &Registry[V]{
		entries: make(map[string]Entry[V]),
	}
}

// Register adds a new entry. It fails with ErrDuplicate when the name exists.
func (r *Registry[V]) Register(name, description string, value V) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.entries[name] = Entry[V]{Name: name, Description: description, Value: value}
	return nil
}

// Replace adds or overwrites an entry.
func (r *Registry[V]) Replace(name, description string, value V) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = Entry[V]{Name: name, Description: description, Value: value}
	return nil
}

// Get returns the value registered under name.
func (r *Registry[V]) Get(name string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.Value, ok
}

// Lookup returns the full entry registered under name.
// It fails with ErrNotFound when the name is unknown.
func (r *Registry[V]) Lookup(name string) (Entry[V], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Entry[V]{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

// Has returns true if name is registered.
func (r *Registry[V]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Delete removes name from the registry.
func (r *Registry[V]) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Names returns every registered name in sorted order.
func (r *Registry[V]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.entries))
}

// Entries returns a snapshot of every entry, sorted by name.
func (r *Registry[V]) Entries() []Entry[V] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry[V], 0, len(r.entries))
	for _, name := range slices.Sorted(maps.Keys(r.entries)) {
		out = append(out, r.entries[name])
	}
	return out
}

// Len returns the number of entries.
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
