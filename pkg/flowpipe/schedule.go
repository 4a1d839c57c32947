package flowpipe

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// runCooperative steps ready processes on the calling goroutine, one pass
// over the topological order at a time, until every process completes.
func (cp *CompiledPipeline) runCooperative(ctx context.Context, maxPasses int) error {
	for pass := 1; !cp.allDone(); pass++ {
		if maxPasses > 0 && pass > maxPasses {
			return fmt.Errorf("%w: %d", ErrMaxPasses, maxPasses)
		}

		progressed := false
		for _, n := range cp.nodes {
			if err := ctx.Err(); err != nil {
				return err
			}
			if n.done() || !n.ready() {
				continue
			}
			if err := n.step(); err != nil {
				return err
			}
			progressed = true
		}

		if !progressed {
			var blocked []string
			for _, n := range cp.nodes {
				if !n.done() {
					blocked = append(blocked, n.name)
				}
			}
			return &DeadlockError{Pass: pass, Blocked: blocked}
		}
	}
	return nil
}

// runConcurrent steps every process on its own goroutine. The first fatal
// error cancels the group, which closes every edge so blocked processes
// return.
func (cp *CompiledPipeline) runConcurrent(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, cp.closeEdges)
	defer stop()

	for _, n := range cp.nodes {
		g.Go(func() error {
			for !n.done() {
				if err := n.step(); err != nil {
					var closed *ClosedEdgeError
					if errors.As(err, &closed) || gctx.Err() != nil {
						return nil
					}
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
