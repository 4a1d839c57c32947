package flowpipe

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		ctx := NewContext(context.Background())
		assert.Same(t, slog.Default(), ctx.Logger())
		assert.Len(t, ctx.RunID(), 36, "uuid")
		assert.Empty(t, ctx.ProcessName())
		assert.NotEqual(t, ctx.RunID(), NewContext(context.Background()).RunID())
	})

	t.Run("options", func(t *testing.T) {
		logger := discardLogger()
		ctx := NewContext(context.Background(), WithLogger(logger), WithLogger(nil), WithContextRunID("r-1"))
		assert.Same(t, logger, ctx.Logger())
		assert.Equal(t, "r-1", ctx.RunID())
	})

	t.Run("keeps parent values and cancellation", func(t *testing.T) {
		type key struct{}
		parent, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "v"))
		ctx := NewContext(parent)
		assert.Equal(t, "v", ctx.Value(key{}))
		cancel()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})
}

func TestStepContext(t *testing.T) {
	var seen []string
	ports := NewPorts().MustDeclare(Port{Name: "out", Direction: Output, Type: "int"})
	src := NewFunc(ports, func(ctx StepContext, _ Inputs) (Outputs, error) {
		seen = append(seen, ctx.ProcessName(), ctx.RunID())
		if ctx.Cycle() == 2 {
			ctx.MarkComplete()
		}
		return Outputs{}.Set("out", int(ctx.Cycle())), nil
	})
	out := newSink()
	cp := mustCompile(t,
		map[string]Process{"gen": src, "sink": out},
		[]string{"gen", "sink"},
		[2]string{"gen.out", "sink.in"},
	)

	_, err := cp.Run(testCtx(), WithRunID("step-ctx"))
	require.NoError(t, err)
	assert.Equal(t, []string{"gen", "step-ctx", "gen", "step-ctx"}, seen)
	assert.Equal(t, []int{1, 2}, out.got())
}
