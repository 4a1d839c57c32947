package runstore

import (
	"cmp"
	"slices"
	"sync"
)

// MemoryStore keeps run records in memory. Data is lost on exit.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]RunRecord
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]RunRecord)}
}

// Save implements Store.
func (m *MemoryStore) Save(rec RunRecord) error {
	if rec.RunID == "" {
		return ErrEmptyRunID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	rec.Processes = slices.Clone(rec.Processes)
	m.runs[rec.RunID] = rec
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID string) (RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return RunRecord{}, ErrStoreClosed
	}
	rec, ok := m.runs[runID]
	if !ok {
		return RunRecord{}, ErrNotFound
	}
	rec.Processes = slices.Clone(rec.Processes)
	return rec, nil
}

// List implements Store.
func (m *MemoryStore) List(limit int) ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]RunRecord, 0, len(m.runs))
	for _, rec := range m.runs {
		rec.Processes = nil
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b RunRecord) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.RunID, b.RunID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.runs, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.runs = nil
	return nil
}
