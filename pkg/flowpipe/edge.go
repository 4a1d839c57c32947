package flowpipe

import (
	"sync"

	"github.com/randalmurphal/flowpipe/pkg/flowpipe/observability"
)

// EdgeStats is a point-in-time view of one edge.
type EdgeStats = observability.EdgeStats

// EdgeOption configures an edge at Connect time.
type EdgeOption func(*edgeConfig)

type edgeConfig struct {
	capacity int
}

// WithCapacity bounds the edge queue. Pushes block while the queue holds
// n datums. Zero or negative means unbounded.
func WithCapacity(n int) EdgeOption {
	return func(c *edgeConfig) {
		if n < 0 {
			n = 0
		}
		c.capacity = n
	}
}

type queued struct {
	datum Datum
	stamp Stamp
}

// Edge is a FIFO queue of stamped datums between one output port and one
// input port.
//
// Once complete has been delivered to the consumer, every later Pop returns
// it again. Once the consumer retires (Drain), pushes are discarded.
// Edge is safe for concurrent use by one producer and one consumer.
type Edge struct {
	id   string
	from PortRef
	to   PortRef
	typ  string

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	queue    []queued
	capacity int

	colored   bool
	lastColor uint64

	producerDone bool
	delivered    *queued
	drained      bool
	closed       bool

	pushed  int64
	popped  int64
	dropped int64
	blocked int64
}

func newEdge(from, to PortRef, typ string, cfg edgeConfig) *Edge {
	e := &Edge{
		id:       from.String() + "->" + to.String(),
		from:     from,
		to:       to,
		typ:      typ,
		capacity: cfg.capacity,
	}
	e.notEmpty = sync.NewCond(&e.mu)
	e.notFull = sync.NewCond(&e.mu)
	return e
}

// ID returns "from.port->to.port".
func (e *Edge) ID() string { return e.id }

// From returns the producing port.
func (e *Edge) From() PortRef { return e.from }

// To returns the consuming port.
func (e *Edge) To() PortRef { return e.to }

// Type returns the port type carried by the edge.
func (e *Edge) Type() string { return e.typ }

// Capacity returns the queue bound, 0 when unbounded.
func (e *Edge) Capacity() int { return e.capacity }

// Push appends d to the queue, blocking while the queue is full.
//
// Colors on an edge never decrease; heartbeat stamps are checked but do not
// advance the edge color. Pushing after complete is an error.
// Pushing after the consumer retired silently drops the datum.
func (e *Edge) Push(d Datum, s Stamp) error {
	if d.Type() == DatumInvalid {
		return ErrInvalidDatum
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.closed:
		return &ClosedEdgeError{Edge: e.id}
	case e.drained:
		e.dropped++
		return nil
	case e.producerDone:
		return ErrPushAfterComplete
	case e.colored && s.Color() < e.lastColor:
		return &DesynchronizationError{Edge: e.id, LastColor: e.lastColor, Color: s.Color()}
	}

	if e.fullLocked() {
		e.blocked++
		for e.fullLocked() && !e.closed && !e.drained {
			e.notFull.Wait()
		}
		if e.closed {
			return &ClosedEdgeError{Edge: e.id}
		}
		if e.drained {
			e.dropped++
			return nil
		}
	}

	e.queue = append(e.queue, queued{datum: d, stamp: s})
	e.pushed++
	if !s.IsHeartbeat() {
		e.colored = true
		e.lastColor = s.Color()
	}
	if d.Type() == DatumComplete {
		e.producerDone = true
	}
	e.notEmpty.Broadcast()
	return nil
}

func (e *Edge) fullLocked() bool {
	return e.capacity > 0 && len(e.queue) >= e.capacity
}

// Pop removes and returns the head of the queue, blocking until one is
// available. After complete has been popped it is returned on every call.
func (e *Edge) Pop() (Datum, Stamp, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for len(e.queue) == 0 && e.delivered == nil && !e.closed {
		e.notEmpty.Wait()
	}
	if e.closed {
		return Datum{}, Stamp{}, &ClosedEdgeError{Edge: e.id}
	}
	item := e.takeLocked()
	return item.datum, item.stamp, nil
}

// TryPop is the non-blocking form of Pop. It reports false when nothing
// is available.
func (e *Edge) TryPop() (Datum, Stamp, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || (len(e.queue) == 0 && e.delivered == nil) {
		return Datum{}, Stamp{}, false
	}
	item := e.takeLocked()
	return item.datum, item.stamp, true
}

// Peek returns the head of the queue without removing it.
func (e *Edge) Peek() (Datum, Stamp, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case len(e.queue) > 0:
		return e.queue[0].datum, e.queue[0].stamp, true
	case e.delivered != nil:
		return e.delivered.datum, e.delivered.stamp, true
	default:
		return Datum{}, Stamp{}, false
	}
}

// takeLocked requires a non-empty queue or a delivered complete.
func (e *Edge) takeLocked() queued {
	if len(e.queue) == 0 {
		return *e.delivered
	}
	item := e.queue[0]
	e.queue[0] = queued{}
	e.queue = e.queue[1:]
	e.popped++
	if item.datum.Type() == DatumComplete {
		e.delivered = &item
	}
	e.notFull.Broadcast()
	return item
}

// Ready reports whether Pop would return without blocking.
func (e *Edge) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed || len(e.queue) > 0 || e.delivered != nil
}

// CanPush reports whether Push would return without blocking.
func (e *Edge) CanPush() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed || e.drained || !e.fullLocked()
}

// Len returns the number of queued datums.
func (e *Edge) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// LastColor returns the color of the newest non-heartbeat push.
func (e *Edge) LastColor() (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastColor, e.colored
}

// Drain marks the consumer as retired. Queued datums are discarded and
// blocked producers resume.
func (e *Edge) Drain() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drained = true
	e.dropped += int64(len(e.queue))
	e.queue = nil
	e.notFull.Broadcast()
}

// Close tears the edge down. Every blocked and later Push or Pop returns
// a ClosedEdgeError.
func (e *Edge) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.notEmpty.Broadcast()
	e.notFull.Broadcast()
}

// Stats returns counters and queue state.
func (e *Edge) Stats() EdgeStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EdgeStats{
		Edge:      e.id,
		Capacity:  e.capacity,
		Depth:     len(e.queue),
		Pushed:    e.pushed,
		Popped:    e.popped,
		Dropped:   e.dropped,
		Blocked:   e.blocked,
		LastColor: e.lastColor,
		Colored:   e.colored,
		Drained:   e.drained,
		Closed:    e.closed,
	}
}
