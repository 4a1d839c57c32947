package benchmarks

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/flowpipe/pkg/flowpipe/runstore"
)

func runRecord(i, processes int) runstore.RunRecord {
	rec := runstore.RunRecord{
		RunID:      fmt.Sprintf("run-%d", i),
		Discipline: "cooperative",
		Status:     runstore.StatusCompleted,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	for j := range processes {
		rec.Processes = append(rec.Processes, runstore.ProcessRecord{
			Process:   procName(j),
			Phase:     "complete",
			Steps:     101,
			DataSteps: 100,
		})
	}
	return rec
}

func benchmarkSave(b *testing.B, store runstore.Store) {
	i := 0
	for range b.N {
		if err := store.Save(runRecord(i%100, 10)); err != nil {
			b.Fatal(err)
		}
		i++
	}
}

// BenchmarkMemoryStore_Save measures in-memory run record saves.
func BenchmarkMemoryStore_Save(b *testing.B) {
	benchmarkSave(b, runstore.NewMemoryStore())
}

// BenchmarkSQLiteStore_Save measures SQLite run record saves.
func BenchmarkSQLiteStore_Save(b *testing.B) {
	store, err := runstore.NewSQLiteStore(filepath.Join(b.TempDir(), "runs.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	benchmarkSave(b, store)
}

// BenchmarkSQLiteStore_List measures listing 100 runs.
func BenchmarkSQLiteStore_List(b *testing.B) {
	store, err := runstore.NewSQLiteStore(filepath.Join(b.TempDir(), "runs.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	for i := range 100 {
		if err := store.Save(runRecord(i, 10)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for range b.N {
		if _, err := store.List(0); err != nil {
			b.Fatal(err)
		}
	}
}
