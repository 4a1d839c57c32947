package runstore_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/flowpipe/pkg/flowpipe/runstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories runs every contract test against each implementation.
func storeFactories(t *testing.T) map[string]func() runstore.Store {
	return map[string]func() runstore.Store{
		"memory": func() runstore.Store { return runstore.NewMemoryStore() },
		"sqlite": func() runstore.Store {
			s, err := runstore.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func sampleRun(id string, started time.Time) runstore.RunRecord {
	return runstore.RunRecord{
		RunID:      id,
		Discipline: "cooperative",
		Status:     runstore.StatusCompleted,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Processes: []runstore.ProcessRecord{
			{Process: "double", Phase: "complete", Steps: 4, DataSteps: 3},
			{Process: "source", Phase: "complete", Steps: 4, DataSteps: 3},
		},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			started := time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)
			require.NoError(t, s.Save(sampleRun("run-1", started)))

			got, err := s.Load("run-1")
			require.NoError(t, err)
			assert.Equal(t, runstore.StatusCompleted, got.Status)
			assert.True(t, started.Equal(got.StartedAt))
			assert.True(t, started.Add(time.Second).Equal(got.FinishedAt))
			require.Len(t, got.Processes, 2)
			assert.Equal(t, "double", got.Processes[0].Process)
			assert.Equal(t, int64(3), got.Processes[0].DataSteps)
		})
	}
}

// TestStore_ProcessOrder verifies process records come back in the order
// they were saved, not sorted by name.
func TestStore_ProcessOrder(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			rec := sampleRun("run-1", time.Now())
			rec.Processes = []runstore.ProcessRecord{
				{Process: "src", Phase: "complete"},
				{Process: "double", Phase: "complete"},
				{Process: "sink", Phase: "complete"},
				{Process: "audit", Phase: "complete"},
			}
			require.NoError(t, s.Save(rec))

			got, err := s.Load("run-1")
			require.NoError(t, err)
			names := make([]string, 0, len(got.Processes))
			for _, p := range got.Processes {
				names = append(names, p.Process)
			}
			assert.Equal(t, []string{"src", "double", "sink", "audit"}, names)
		})
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			rec := sampleRun("run-1", time.Now())
			rec.Status = runstore.StatusRunning
			rec.Processes = nil
			require.NoError(t, s.Save(rec))

			rec.Status = runstore.StatusFailed
			rec.Process = "sum"
			rec.Error = "boom"
			rec.Processes = []runstore.ProcessRecord{{Process: "sum", Phase: "failed", Steps: 1}}
			require.NoError(t, s.Save(rec))

			got, err := s.Load("run-1")
			require.NoError(t, err)
			assert.Equal(t, runstore.StatusFailed, got.Status)
			assert.Equal(t, "sum", got.Process)
			assert.Equal(t, "boom", got.Error)
			require.Len(t, got.Processes, 1)
		})
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < 3; i++ {
				require.NoError(t, s.Save(sampleRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))))
			}

			all, err := s.List(0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "run-2", all[0].RunID)
			assert.Equal(t, "run-0", all[2].RunID)
			assert.Empty(t, all[0].Processes)

			limited, err := s.List(2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)
		})
	}
}

func TestStore_DeleteAndErrors(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()

			_, err := s.Load("missing")
			assert.ErrorIs(t, err, runstore.ErrNotFound)

			assert.ErrorIs(t, s.Save(runstore.RunRecord{}), runstore.ErrEmptyRunID)

			require.NoError(t, s.Save(sampleRun("run-1", time.Now())))
			require.NoError(t, s.Delete("run-1"))
			require.NoError(t, s.Delete("run-1"))
			_, err = s.Load("run-1")
			assert.ErrorIs(t, err, runstore.ErrNotFound)

			require.NoError(t, s.Close())
			assert.ErrorIs(t, s.Save(sampleRun("run-2", time.Now())), runstore.ErrStoreClosed)
			_, err = s.List(0)
			assert.ErrorIs(t, err, runstore.ErrStoreClosed)
		})
	}
}

func TestStore_Concurrent(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					id := fmt.Sprintf("run-%d", i%5)
					_ = s.Save(sampleRun(id, time.Now()))
					_, _ = s.Load(id)
					_, _ = s.List(3)
				}(i)
			}
			wg.Wait()

			all, err := s.List(0)
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s1, err := runstore.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Save(sampleRun("run-1", time.Now())))
	require.NoError(t, s1.Close())

	s2, err := runstore.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Load("run-1")
	require.NoError(t, err)
	assert.Len(t, got.Processes, 2)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := runstore.NewSQLiteStore("/nonexistent/path/runs.db")
	assert.Error(t, err)
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	s, err := runstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
