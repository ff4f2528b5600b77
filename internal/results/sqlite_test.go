package results

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"garnet-sweep/internal/sweep"
)

func TestSQLiteWriter_UpsertsSnapshots(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	run := Run{ID: "run-1", Name: "throughput", Started: time.Unix(0, 0)}
	w, err := OpenSQLite(ctx, path, run, testSchema())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer w.Close()

	rows := testRows()
	if err := w.WriteRows(ctx, rows); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	rows[2].Status = sweep.StatusSuccess
	rows[2].Metrics = sweep.Metrics{"latency": 300}
	if err := w.WriteRows(ctx, rows); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}

	got, err := w.rows(ctx, run.ID)
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	if got[2].Identity.Key() != (sweep.Identity{"8", "base"}).Key() || got[2].Status != sweep.StatusSuccess || got[2].Metrics["latency"] != 300 {
		t.Fatalf("row not updated: %+v", got[2])
	}
	if v, ok := got[1].Metrics.Get("sim_cycles"); !ok || v != 0 {
		t.Fatalf("zero metric lost: %v", got[1].Metrics)
	}
}

func TestSQLiteWriter_SeparatesRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := OpenSQLite(ctx, path, Run{ID: "a", Name: "x", Started: time.Now()}, testSchema())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := first.WriteRows(ctx, testRows()); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	first.Close()

	second, err := OpenSQLite(ctx, path, Run{ID: "b", Name: "x", Started: time.Now()}, testSchema())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer second.Close()
	if err := second.WriteRows(ctx, testRows()[:1]); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	a, _ := second.rows(ctx, "a")
	b, _ := second.rows(ctx, "b")
	if len(a) != 3 || len(b) != 1 {
		t.Fatalf("runs mixed: a=%d b=%d", len(a), len(b))
	}
}
