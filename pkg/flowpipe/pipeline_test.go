package flowpipe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAddProcess_Errors tests every rejection of AddProcess.
func TestAddProcess_Errors(t *testing.T) {
	tests := []struct {
		name    string
		procs   []string
		add     string
		proc    Process
		wantErr error
	}{
		{name: "empty name", add: "", proc: intSource(), wantErr: ErrInvalidProcessName},
		{name: "name with dot", add: "a.b", proc: intSource(), wantErr: ErrInvalidProcessName},
		{name: "name with space", add: "a b", proc: intSource(), wantErr: ErrInvalidProcessName},
		{name: "nil process", add: "a", proc: nil, wantErr: ErrNilProcess},
		{name: "nil ports", add: "a", proc: noPorts{NewFunc(nil, nil)}, wantErr: ErrInvalidConfiguration},
		{name: "duplicate", procs: []string{"a"}, add: "a", proc: intSource(), wantErr: ErrDuplicateProcess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline()
			for _, name := range tt.procs {
				require.NoError(t, p.AddProcess(name, intSource()))
			}

			err := p.AddProcess(tt.add, tt.proc)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, len(tt.procs), p.Len())
		})
	}
}

// noPorts is a broken process that declares no port set at all.
type noPorts struct{ *Func }

func (noPorts) Ports() *Ports { return nil }

// TestAddProcess_FreezesPorts tests that ports cannot change once added.
func TestAddProcess_FreezesPorts(t *testing.T) {
	src := intSource(1)
	p := NewPipeline()
	require.NoError(t, p.AddProcess("src", src))

	assert.True(t, src.Ports().Frozen())
	err := src.Ports().Declare(Port{Name: "late", Direction: Output, Type: "int"})
	assert.ErrorIs(t, err, ErrPortsFrozen)
	assert.True(t, p.HasProcess("src"))
	assert.False(t, p.HasProcess("other"))
}

// TestConnect_Errors tests every rejection of Connect.
func TestConnect_Errors(t *testing.T) {
	strSource := sourceOf("string")

	tests := []struct {
		name     string
		from, to string
		wantErr  error
	}{
		{name: "malformed from", from: "src", to: "sum.a", wantErr: ErrInvalidPortRef},
		{name: "malformed to", from: "src.out", to: ".a", wantErr: ErrInvalidPortRef},
		{name: "unknown upstream", from: "nope.out", to: "sum.a", wantErr: ErrProcessNotFound},
		{name: "unknown downstream", from: "src.out", to: "nope.a", wantErr: ErrProcessNotFound},
		{name: "unknown output", from: "src.nope", to: "sum.a", wantErr: ErrPortNotFound},
		{name: "input used as output", from: "sum.a", to: "sum.b", wantErr: ErrPortNotFound},
		{name: "unknown input", from: "src.out", to: "sum.c", wantErr: ErrPortNotFound},
		{name: "type mismatch", from: "str.out", to: "sum.b", wantErr: ErrTypeMismatch},
		{name: "already connected", from: "other.out", to: "sum.a", wantErr: ErrAlreadyConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline()
			require.NoError(t, p.AddProcess("src", intSource()))
			require.NoError(t, p.AddProcess("other", intSource()))
			require.NoError(t, p.AddProcess("str", strSource))
			require.NoError(t, p.AddProcess("sum", sumInts(FlagRequired)))
			_, err := p.Connect("src.out", "sum.a")
			require.NoError(t, err)

			e, err := p.Connect(tt.from, tt.to)
			assert.Nil(t, e)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConnect_ErrorDetails(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.AddProcess("a", intSource()))
	require.NoError(t, p.AddProcess("b", intSource()))
	require.NoError(t, p.AddProcess("s", sourceOf("string")))
	require.NoError(t, p.AddProcess("sum", sumInts(FlagRequired)))

	_, err := p.Connect("a.out", "sum.a")
	require.NoError(t, err)

	_, err = p.Connect("b.out", "sum.a")
	var connErr *AlreadyConnectedError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "a.out", connErr.Existing.String())

	_, err = p.Connect("s.out", "sum.b")
	var typeErr *TypeMismatchError
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, "string", typeErr.FromType)
	assert.Equal(t, "int", typeErr.ToType)
}

// TestConnect_FanOut tests that one output may feed several inputs, each
// over its own edge.
func TestConnect_FanOut(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.AddProcess("src", intSource()))
	require.NoError(t, p.AddProcess("sum", sumInts(FlagRequired)))

	e1, err := p.Connect("src.out", "sum.a")
	require.NoError(t, err)
	e2, err := p.Connect("src.out", "sum.b", WithCapacity(2))
	require.NoError(t, err)

	assert.NotSame(t, e1, e2)
	assert.Equal(t, "src.out->sum.a", e1.ID())
	assert.Equal(t, 0, e1.Capacity())
	assert.Equal(t, 2, e2.Capacity())
	assert.Equal(t, "int", e2.Type())
}

func TestPipeline_FrozenAfterCompile(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.AddProcess("src", intSource()))
	require.NoError(t, p.AddProcess("sink", newSink()))
	_, err := p.Connect("src.out", "sink.in")
	require.NoError(t, err)

	_, err = p.Compile()
	require.NoError(t, err)

	assert.ErrorIs(t, p.AddProcess("late", intSource()), ErrPipelineFrozen)
	_, err = p.Connect("src.out", "late.in")
	assert.ErrorIs(t, err, ErrPipelineFrozen)
	_, err = p.Compile()
	assert.ErrorIs(t, err, ErrPipelineFrozen)
}
