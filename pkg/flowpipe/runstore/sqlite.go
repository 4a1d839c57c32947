package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists run records to SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a run store.
// The path should be a file path or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			discipline TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			process TEXT NOT NULL,
			error TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_processes (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			process TEXT NOT NULL,
			phase TEXT NOT NULL,
			steps INTEGER NOT NULL,
			data_steps INTEGER NOT NULL,
			empty_steps INTEGER NOT NULL,
			error_steps INTEGER NOT NULL,
			PRIMARY KEY (run_id, process)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(rec RunRecord) error {
	if rec.RunID == "" {
		return ErrEmptyRunID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.Exec(`
		INSERT INTO runs (run_id, discipline, status, started_at, finished_at, process, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			discipline = excluded.discipline,
			status = excluded.status,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			process = excluded.process,
			error = excluded.error
	`, rec.RunID, rec.Discipline, string(rec.Status),
		formatTime(rec.StartedAt), formatTime(rec.FinishedAt), rec.Process, rec.Error)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM run_processes WHERE run_id = ?`, rec.RunID); err != nil {
		return fmt.Errorf("clear run processes: %w", err)
	}
	for i, p := range rec.Processes {
		_, err := tx.Exec(`
			INSERT INTO run_processes (run_id, position, process, phase, steps, data_steps, empty_steps, error_steps)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.RunID, i, p.Process, p.Phase, p.Steps, p.DataSteps, p.EmptySteps, p.ErrorSteps)
		if err != nil {
			return fmt.Errorf("save run process %s: %w", p.Process, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(runID string) (RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return RunRecord{}, ErrStoreClosed
	}

	rec, err := scanRun(s.db.QueryRow(`
		SELECT run_id, discipline, status, started_at, finished_at, process, error
		FROM runs WHERE run_id = ?
	`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("load run: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT process, phase, steps, data_steps, empty_steps, error_steps
		FROM run_processes WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return RunRecord{}, fmt.Errorf("load run processes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p ProcessRecord
		if err := rows.Scan(&p.Process, &p.Phase, &p.Steps, &p.DataSteps, &p.EmptySteps, &p.ErrorSteps); err != nil {
			return RunRecord{}, fmt.Errorf("scan run process: %w", err)
		}
		rec.Processes = append(rec.Processes, p)
	}
	if err := rows.Err(); err != nil {
		return RunRecord{}, fmt.Errorf("iterate run processes: %w", err)
	}
	return rec, nil
}

// List implements Store.
func (s *SQLiteStore) List(limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.Query(`
		SELECT run_id, discipline, status, started_at, finished_at, process, error
		FROM runs
		ORDER BY started_at DESC, run_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM run_processes WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run processes: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		rec               RunRecord
		status            string
		started, finished string
	)
	if err := row.Scan(&rec.RunID, &rec.Discipline, &status, &started, &finished, &rec.Process, &rec.Error); err != nil {
		return RunRecord{}, err
	}
	rec.Status = Status(status)
	rec.StartedAt = parseTime(started)
	rec.FinishedAt = parseTime(finished)
	return rec, nil
}

// formatTime stores times as sortable UTC strings; the zero time is "".
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
