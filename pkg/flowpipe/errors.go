package flowpipe

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for pipeline assembly and compilation.
var (
	// ErrEmptyPipeline indicates Compile() was called without processes.
	ErrEmptyPipeline = errors.New("pipeline has no processes")

	// ErrInvalidProcessName indicates a process name is empty or contains
	// a separator character.
	ErrInvalidProcessName = errors.New("invalid process name")

	// ErrNilProcess indicates AddProcess() was called with a nil process.
	ErrNilProcess = errors.New("process cannot be nil")

	// ErrDuplicateProcess indicates a process name is already in use.
	ErrDuplicateProcess = errors.New("process name already in use")

	// ErrProcessNotFound indicates a reference to an unknown process.
	ErrProcessNotFound = errors.New("process not found")

	// ErrPortNotFound indicates a reference to an undeclared port.
	ErrPortNotFound = errors.New("port not found")

	// ErrInvalidPortRef indicates a port reference not of the form "process.port".
	ErrInvalidPortRef = errors.New("invalid port reference")

	// ErrPipelineFrozen indicates a structural change after Compile().
	ErrPipelineFrozen = errors.New("pipeline is already compiled")

	// ErrTypeMismatch indicates connected ports declare different types.
	ErrTypeMismatch = errors.New("port types do not match")

	// ErrAlreadyConnected indicates an input port already has an edge.
	ErrAlreadyConnected = errors.New("input port already connected")

	// ErrRequiredPortUnconnected indicates a required input without an edge.
	ErrRequiredPortUnconnected = errors.New("required input port is not connected")

	// ErrMutableFanOut indicates a mutable input shares its upstream output.
	ErrMutableFanOut = errors.New("mutable input shares its upstream output")

	// ErrDependencyCycle indicates a cycle made only of dependency edges.
	ErrDependencyCycle = errors.New("dependency cycle without a no-dependency edge")

	// ErrNoCompletionPath indicates a process that can never receive complete.
	ErrNoCompletionPath = errors.New("process can never complete")
)

// Sentinel errors for port declaration and configuration.
var (
	// ErrInvalidConfiguration is wrapped by every ConfigurationError.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDuplicatePort indicates a port name is declared twice in one direction.
	ErrDuplicatePort = errors.New("port already declared")

	// ErrPortsFrozen indicates a declaration after the process joined a pipeline.
	ErrPortsFrozen = errors.New("ports are frozen")

	// ErrUnknownPortFlag indicates a port flag name that is not recognized.
	ErrUnknownPortFlag = errors.New("unknown port flag")
)

// Sentinel errors for execution.
var (
	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrAlreadyRun indicates Run() was called on a pipeline that already ran.
	ErrAlreadyRun = errors.New("pipeline has already run")

	// ErrEdgeClosed is wrapped by every ClosedEdgeError.
	ErrEdgeClosed = errors.New("edge closed")

	// ErrDesynchronized is wrapped by every DesynchronizationError.
	ErrDesynchronized = errors.New("edge colors out of order")

	// ErrInvalidDatum indicates an invalid datum where a real one is required.
	ErrInvalidDatum = errors.New("invalid datum")

	// ErrPushAfterComplete indicates a push onto an edge that carried complete.
	ErrPushAfterComplete = errors.New("push after complete")

	// ErrMissingOutput indicates a step omitted a required output port.
	ErrMissingOutput = errors.New("step did not produce a required output")

	// ErrUnknownOutput indicates a step produced a value for an undeclared port.
	ErrUnknownOutput = errors.New("step produced an undeclared output")

	// ErrCompleteOutput indicates a step returned complete as an output.
	// Processes end with MarkComplete instead.
	ErrCompleteOutput = errors.New("complete is not a valid step output")

	// ErrInvalidTransition indicates a lifecycle operation out of order.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrDeadlock indicates a cooperative pass made no progress.
	ErrDeadlock = errors.New("pipeline deadlocked")

	// ErrMaxPasses indicates the cooperative scheduler exceeded its pass limit.
	ErrMaxPasses = errors.New("exceeded maximum scheduler passes")
)

// ConfigurationError reports a bad port declaration or process setting.
type ConfigurationError struct {
	Process string
	Key     string
	Err     error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration")
	if e.Process != "" {
		fmt.Fprintf(&b, " of process %s", e.Process)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " key %s", e.Key)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is matches ErrInvalidConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// TypeMismatchError reports a connection between ports of different types.
type TypeMismatchError struct {
	From, To         PortRef
	FromType, ToType string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("connect %s -> %s: %v: %q != %q", e.From, e.To, ErrTypeMismatch, e.FromType, e.ToType)
}

// Unwrap returns ErrTypeMismatch.
func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// AlreadyConnectedError reports a second edge into a single-consumer input.
type AlreadyConnectedError struct {
	Port     PortRef
	Existing PortRef
}

// Error implements the error interface.
func (e *AlreadyConnectedError) Error() string {
	return fmt.Sprintf("connect %s: %v (fed by %s)", e.Port, ErrAlreadyConnected, e.Existing)
}

// Unwrap returns ErrAlreadyConnected.
func (e *AlreadyConnectedError) Unwrap() error {
	return ErrAlreadyConnected
}

// DesynchronizationError reports a push whose color is older than the
// edge's last color.
type DesynchronizationError struct {
	Edge      string
	LastColor uint64
	Color     uint64
}

// Error implements the error interface.
func (e *DesynchronizationError) Error() string {
	return fmt.Sprintf("edge %s: %v: color %d after %d", e.Edge, ErrDesynchronized, e.Color, e.LastColor)
}

// Unwrap returns ErrDesynchronized.
func (e *DesynchronizationError) Unwrap() error {
	return ErrDesynchronized
}

// ClosedEdgeError reports an operation on an edge torn down by stop or failure.
type ClosedEdgeError struct {
	Edge string
}

// Error implements the error interface.
func (e *ClosedEdgeError) Error() string {
	return fmt.Sprintf("edge %s: %v", e.Edge, ErrEdgeClosed)
}

// Unwrap returns ErrEdgeClosed.
func (e *ClosedEdgeError) Unwrap() error {
	return ErrEdgeClosed
}

// TransitionError reports a lifecycle operation called out of order.
type TransitionError struct {
	From Phase
	To   Phase
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

// Unwrap returns ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ProcessError reports a fatal failure of one process.
type ProcessError struct {
	Process string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	return fmt.Sprintf("process %s: %s: %v", e.Process, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by process code.
type PanicError struct {
	Process string
	Op      string
	Value   any
	Stack   string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("process %s panicked during %s: %v", e.Process, e.Op, e.Value)
}

// CancellationError reports a run ended by its context.
type CancellationError struct {
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("pipeline run cancelled: %v", e.Cause)
}

// Unwrap returns the context error.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// DeadlockError lists the processes that could not step.
type DeadlockError struct {
	Pass    int
	Blocked []string
}

// Error implements the error interface.
func (e *DeadlockError) Error() string {
	return fmt.Sprintf("%v at pass %d: blocked processes: %s", ErrDeadlock, e.Pass, strings.Join(e.Blocked, ", "))
}

// Unwrap returns ErrDeadlock.
func (e *DeadlockError) Unwrap() error {
	return ErrDeadlock
}

// FailedProcess returns the name of the process responsible for err,
// or "" when err is not tied to one process.
func FailedProcess(err error) string {
	var procErr *ProcessError
	if errors.As(err, &procErr) {
		return procErr.Process
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return panicErr.Process
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr.Process
	}
	return ""
}
