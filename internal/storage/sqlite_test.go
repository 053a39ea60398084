//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"regulon/internal/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "regulon.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	record := model.NetworkRecord{
		VersionedRecord: Versioned(),
		ID:              "repressor",
		Name:            "repressor",
		Document:        "species:\n  - name: x\n",
	}
	if err := store.SaveNetwork(ctx, record); err != nil {
		t.Fatalf("save network: %v", err)
	}
	loaded, ok, err := store.GetNetwork(ctx, "repressor")
	if err != nil || !ok {
		t.Fatalf("get network: ok=%t err=%v", ok, err)
	}
	if loaded.Document != record.Document {
		t.Fatalf("unexpected document: %q", loaded.Document)
	}

	for _, run := range []model.SearchRun{sampleRun("a", time.Unix(1, 0)), sampleRun("b", time.Unix(2, 0))} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.RunID, err)
		}
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "b" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	trajectory := model.TrajectoryRecord{
		VersionedRecord: Versioned(),
		RunID:           "a",
		Species:         []string{"x"},
		Times:           []float64{0, 1, 2},
		Values:          [][]float64{{0}, {1}, {2}},
	}
	if err := store.SaveTrajectory(ctx, trajectory); err != nil {
		t.Fatalf("save trajectory: %v", err)
	}
	got, ok, err := store.GetTrajectory(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("get trajectory: ok=%t err=%v", ok, err)
	}
	if len(got.Values) != 3 || got.Values[2][0] != 2 {
		t.Fatalf("unexpected trajectory: %+v", got)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "regulon.db")

	first := NewSQLiteStore(dbPath)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init first: %v", err)
	}
	if err := first.SaveRun(ctx, sampleRun("run-1", time.Unix(5, 0))); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close first: %v", err)
	}

	second, err := NewStore("sqlite", dbPath)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := second.Init(ctx); err != nil {
		t.Fatalf("init second: %v", err)
	}
	t.Cleanup(func() {
		_ = CloseIfSupported(second)
	})
	run, ok, err := second.GetRun(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if run.Steps != 2 || !run.Solved {
		t.Fatalf("unexpected run: %+v", run)
	}
}
