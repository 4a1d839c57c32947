// Package runstore persists the history of pipeline runs.
//
// A run record captures how a run ended and what every process did:
// its final phase and how many steps of each kind it took.
package runstore

import (
	"errors"
	"time"
)

// Status is the outcome of a run.
type Status string

// Run outcomes.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// RunRecord describes one pipeline run.
type RunRecord struct {
	RunID      string          `json:"run_id"`
	Discipline string          `json:"discipline"`
	Status     Status          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at,omitzero"`
	Process    string          `json:"process,omitempty"` // process that failed the run
	Error      string          `json:"error,omitempty"`
	Processes  []ProcessRecord `json:"processes,omitempty"`
}

// ProcessRecord summarizes one process within a run.
type ProcessRecord struct {
	Process    string `json:"process"`
	Phase      string `json:"phase"`
	Steps      int64  `json:"steps"`
	DataSteps  int64  `json:"data_steps"`
	EmptySteps int64  `json:"empty_steps"`
	ErrorSteps int64  `json:"error_steps"`
}

// Store persists run records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save inserts or replaces the record for rec.RunID, including its
	// process records.
	Save(rec RunRecord) error

	// Load retrieves a run. Returns ErrNotFound if it doesn't exist.
	Load(runID string) (RunRecord, error)

	// List returns runs newest first, without process records.
	// limit <= 0 returns every run.
	List(limit int) ([]RunRecord, error)

	// Delete removes a run. Returns nil if it doesn't exist.
	Delete(runID string) error

	// Close releases any resources.
	Close() error
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a run doesn't exist.
	ErrNotFound = errors.New("run not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("run store closed")

	// ErrEmptyRunID indicates a record without a run ID.
	ErrEmptyRunID = errors.New("run ID cannot be empty")
)
