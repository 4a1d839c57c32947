package flowpipe

import "sync/atomic"

// Phase is the lifecycle position of a process.
type Phase int32

const (
	PhaseConstructed Phase = iota
	PhaseConfigured
	PhaseInitialized
	PhaseRunning
	PhaseStepping
	PhaseComplete
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseConstructed:
		return "constructed"
	case PhaseConfigured:
		return "configured"
	case PhaseInitialized:
		return "initialized"
	case PhaseRunning:
		return "running"
	case PhaseStepping:
		return "stepping"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// phaseTracker guards lifecycle transitions. It is read concurrently by
// snapshots while the owning goroutine moves it forward.
type phaseTracker struct {
	v atomic.Int32
}

func (t *phaseTracker) load() Phase {
	return Phase(t.v.Load())
}

func (t *phaseTracker) set(p Phase) {
	t.v.Store(int32(p))
}

// transition moves from one of the allowed phases to next.
func (t *phaseTracker) transition(next Phase, from ...Phase) error {
	cur := t.load()
	for _, f := range from {
		if cur == f {
			t.set(next)
			return nil
		}
	}
	return &TransitionError{From: cur, To: next}
}
