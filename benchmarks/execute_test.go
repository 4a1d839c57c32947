package benchmarks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/randalmurphal/flowpipe/pkg/flowpipe"
)

var disciplines = []flowpipe.Discipline{flowpipe.DisciplineCooperative, flowpipe.DisciplineConcurrent}

func quietCtx() flowpipe.Context {
	return flowpipe.NewContext(context.Background(),
		flowpipe.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// runEach compiles a fresh pipeline per iteration; a compiled pipeline
// runs once.
func runEach(b *testing.B, build func() *flowpipe.Pipeline, opts ...flowpipe.RunOption) {
	b.Helper()
	ctx := quietCtx()
	for range b.N {
		b.StopTimer()
		compiled, err := build().Compile()
		if err != nil {
			b.Fatal(err)
		}
		b.StartTimer()
		if _, err := compiled.Run(ctx, opts...); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRun_Chain measures datums flowing through a chain of maps.
func BenchmarkRun_Chain(b *testing.B) {
	for _, d := range disciplines {
		for _, length := range []int{1, 10, 50} {
			b.Run(fmt.Sprintf("%s/length_%d", d, length), func(b *testing.B) {
				runEach(b, func() *flowpipe.Pipeline { return buildChain(length, 100) },
					flowpipe.WithScheduler(d))
			})
		}
	}
}

// BenchmarkRun_FanIn measures synchronized inputs at every level of a
// reduction tree.
func BenchmarkRun_FanIn(b *testing.B) {
	for _, d := range disciplines {
		b.Run(string(d), func(b *testing.B) {
			runEach(b, func() *flowpipe.Pipeline { return buildFanIn(16, 100) },
				flowpipe.WithScheduler(d))
		})
	}
}

// BenchmarkRun_Observability measures the cost of metrics and tracing
// with no-op global providers.
func BenchmarkRun_Observability(b *testing.B) {
	runEach(b, func() *flowpipe.Pipeline { return buildChain(10, 100) },
		flowpipe.WithMetrics(true),
		flowpipe.WithTracing(true),
	)
}

// BenchmarkContextCreation measures context creation overhead.
func BenchmarkContextCreation(b *testing.B) {
	ctx := context.Background()
	for range b.N {
		flowpipe.NewContext(ctx)
	}
}
