// Package observability provides logging, metrics and tracing for
// pipeline runs.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry, plus a Prometheus collector for edge queues
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run and process context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "detector")
//	enriched.Info("doing work") // includes run_id, process
func EnrichLogger(logger *slog.Logger, runID, process string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("process", process),
	)
}

// LogRunStart logs the start of a pipeline run.
func LogRunStart(logger *slog.Logger, runID, discipline string, processes, edges int) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run starting",
		slog.String("run_id", runID),
		slog.String("discipline", discipline),
		slog.Int("processes", processes),
		slog.Int("edges", edges),
	)
}

// LogRunComplete logs a run in which every process completed.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, steps int64) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int64("steps", steps),
	)
}

// LogRunStopped logs a run ended by an external stop request.
func LogRunStopped(logger *slog.Logger, runID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run stopped",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRunError logs pipeline failure and the process that caused it.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, process string) {
	if logger == nil {
		return
	}
	logger.Error("pipeline run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("process", process),
	)
}

// LogProcessPhase logs a lifecycle transition.
func LogProcessPhase(logger *slog.Logger, process, phase string) {
	if logger == nil {
		return
	}
	logger.Debug("process phase changed",
		slog.String("process", process),
		slog.String("phase", phase),
	)
}

// LogStepError logs a recoverable step failure that becomes an error datum.
func LogStepError(logger *slog.Logger, process string, color uint64, err error) {
	if logger == nil {
		return
	}
	logger.Warn("step failed, forwarding error datum",
		slog.String("process", process),
		slog.Uint64("color", color),
		slog.String("error", err.Error()),
	)
}

// LogInputsUnsynchronized logs synchronized inputs whose colors disagree.
func LogInputsUnsynchronized(logger *slog.Logger, process string, colors map[string]uint64) {
	if logger == nil {
		return
	}
	attrs := make([]any, 0, len(colors)+1)
	attrs = append(attrs, slog.String("process", process))
	for port, color := range colors {
		attrs = append(attrs, slog.Uint64("color."+port, color))
	}
	logger.Warn("input edges are not synchronized", attrs...)
}

// LogProcessRetired logs a process reaching complete.
func LogProcessRetired(logger *slog.Logger, process string, steps int64) {
	if logger == nil {
		return
	}
	logger.Debug("process retired",
		slog.String("process", process),
		slog.Int64("steps", steps),
	)
}

// LogRunRecordError logs a run store failure (non-fatal).
func LogRunRecordError(logger *slog.Logger, runID, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("run record failed",
		slog.String("run_id", runID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// The returned function reports the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
