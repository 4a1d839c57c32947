package flowpipe

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Compile validates the pipeline and creates a runnable CompiledPipeline.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks:
//  1. The pipeline has at least one process
//  2. Every required input port has an edge
//  3. A mutable input does not share its upstream output with another consumer
//  4. Dependency edges (all but no-dependency ones) form no cycle
//  5. Every process can receive complete from a source
//
// Disconnected processes and unconnected outputs are logged as warnings
// but do not fail compilation. A pipeline compiles once; afterwards it
// rejects structural changes with ErrPipelineFrozen.
func (p *Pipeline) Compile() (*CompiledPipeline, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.compiled {
		return nil, ErrPipelineFrozen
	}
	if len(p.order) == 0 {
		return nil, ErrEmptyPipeline
	}

	var errs []error

	// 2 & 3. Bind inputs
	for _, n := range p.order {
		n.syncIn, n.optIn, n.unconnected = nil, nil, nil
		for _, port := range n.ports.Inputs() {
			ref := PortRef{Process: n.name, Port: port.Name}
			e, connected := p.inbound[ref]
			switch {
			case !connected && port.Required():
				errs = append(errs, fmt.Errorf("%w: %s", ErrRequiredPortUnconnected, ref))
			case !connected:
				n.unconnected = append(n.unconnected, port)
			case port.Synchronized():
				n.syncIn = append(n.syncIn, inputBinding{port: port, edge: e})
			default:
				n.optIn = append(n.optIn, inputBinding{port: port, edge: e})
			}

			if connected && port.Flags.Has(FlagMutable) {
				from := e.From()
				if consumers := len(p.nodes[from.Process].outEdges[from.Port]); consumers > 1 {
					errs = append(errs, fmt.Errorf("%w: %s is fed by %s with %d consumers", ErrMutableFanOut, ref, from, consumers))
				}
			}
		}
	}

	// 4. Dependency cycles
	order, cycle := p.topoOrder()
	if cycle != nil {
		errs = append(errs, fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(cycle, " -> ")))
	}

	// 5. Completion reachability
	for _, name := range p.incompletable() {
		errs = append(errs, fmt.Errorf("%w: %s has no synchronized input fed from a source", ErrNoCompletionPath, name))
	}

	p.warnDisconnected()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	p.compiled = true
	return newCompiledPipeline(order, p.edges), nil
}

// dependsOn reports whether e constrains scheduling order.
func (p *Pipeline) dependsOn(e *Edge) bool {
	to := e.To()
	port, ok := p.nodes[to.Process].ports.Lookup(Input, to.Port)
	return ok && !port.Flags.Has(FlagNoDep)
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder returns the processes in a deterministic topological order
// over dependency edges. Ties go to the process added first. When a cycle
// exists it returns nil and one cycle as a list of process names.
func (p *Pipeline) topoOrder() ([]*node, []string) {
	index := make(map[string]int, len(p.order))
	for i, n := range p.order {
		index[n.name] = i
	}

	outgoing := make([][]int, len(p.order))
	indeg := make([]int, len(p.order))
	for _, e := range p.edges {
		if !p.dependsOn(e) {
			continue
		}
		u, v := index[e.From().Process], index[e.To().Process]
		outgoing[u] = append(outgoing[u], v)
		indeg[v]++
	}
	for i := range outgoing {
		slices.Sort(outgoing[i])
	}

	ready := &intMinHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]*node, 0, len(p.order))
	remaining := slices.Clone(indeg)
	for ready.Len() > 0 {
		u := heap.Pop(ready).(int)
		order = append(order, p.order[u])
		for _, v := range outgoing[u] {
			remaining[v]--
			if remaining[v] == 0 {
				heap.Push(ready, v)
			}
		}
	}

	if len(order) == len(p.order) {
		return order, nil
	}
	return nil, p.findCycle(outgoing, remaining)
}

// findCycle extracts one cycle among the processes Kahn's algorithm could
// not sort. Each of them has an unsorted predecessor, so walking
// predecessors must revisit a process.
func (p *Pipeline) findCycle(outgoing [][]int, remaining []int) []string {
	start := slices.IndexFunc(remaining, func(d int) bool { return d > 0 })
	if start < 0 {
		return nil
	}

	incoming := make([][]int, len(outgoing))
	for u, targets := range outgoing {
		for _, v := range targets {
			incoming[v] = append(incoming[v], u)
		}
	}

	seen := make(map[int]int)
	var path []int
	u := start
	for {
		if at, ok := seen[u]; ok {
			cycle := path[at:]
			names := make([]string, 0, len(cycle)+1)
			for i := len(cycle) - 1; i >= 0; i-- {
				names = append(names, p.order[cycle[i]].name)
			}
			return append(names, names[0])
		}
		seen[u] = len(path)
		path = append(path, u)
		for _, w := range incoming[u] {
			if remaining[w] > 0 {
				u = w
				break
			}
		}
	}
}

// incompletable returns the processes that no complete datum can reach.
// Sources can always complete; any other process completes once a
// synchronized input is fed by a process that can.
func (p *Pipeline) incompletable() []string {
	can := make(map[string]bool, len(p.order))
	for _, n := range p.order {
		if n.source() {
			can[n.name] = true
		}
	}

	for changed := true; changed; {
		changed = false
		for _, n := range p.order {
			if can[n.name] {
				continue
			}
			for _, b := range n.syncIn {
				if can[b.edge.From().Process] {
					can[n.name] = true
					changed = true
					break
				}
			}
		}
	}

	var out []string
	for _, n := range p.order {
		if !can[n.name] {
			out = append(out, n.name)
		}
	}
	return out
}

// warnDisconnected logs processes with no edges and unconnected outputs.
func (p *Pipeline) warnDisconnected() {
	for _, n := range p.order {
		if len(p.order) > 1 && n.source() && len(n.allOut) == 0 {
			slog.Warn("process is disconnected", "process", n.name)
			continue
		}
		for _, port := range n.outputs {
			if len(n.outEdges[port.Name]) == 0 {
				slog.Warn("output port is not connected", "port", PortRef{Process: n.name, Port: port.Name}.String())
			}
		}
	}
}
