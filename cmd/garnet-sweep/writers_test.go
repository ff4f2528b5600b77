package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"garnet-sweep/internal/results"
	"garnet-sweep/internal/sweep"
)

func testSchema() sweep.Schema {
	return sweep.Schema{
		Axes:    []sweep.Column{{Name: "mesh_rows", Label: "MESH ROWS"}},
		Metrics: []sweep.Column{{Name: "latency", Label: "LATENCY"}},
	}
}

func TestNewWritersNoneConfigured(t *testing.T) {
	if f := newWriters(sinkSettings{}); f != nil {
		t.Fatalf("expected nil factory when no sink is configured")
	}
}

func TestNewWritersSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	f := newWriters(sinkSettings{SQLitePath: path})
	if f == nil {
		t.Fatalf("expected a factory")
	}
	run := results.Run{ID: "run-1", Name: "mini", Started: time.Now()}
	ws, err := f(context.Background(), run, testSchema())
	if err != nil {
		t.Fatalf("factory returned error: %v", err)
	}
	defer closeAll(ws)
	if len(ws) != 1 {
		t.Fatalf("expected 1 writer, got %d", len(ws))
	}
	sw, ok := ws[0].(*results.SQLiteWriter)
	if !ok {
		t.Fatalf("expected *results.SQLiteWriter, got %T", ws[0])
	}
	row := sweep.Row{Identity: sweep.Identity{"4"}, Status: sweep.StatusSuccess, Metrics: sweep.Metrics{"latency": 1.5}}
	if err := sw.WriteRows(context.Background(), []sweep.Row{row}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestNewWritersGreptimeBadEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	f := newWriters(sinkSettings{
		SQLitePath: path,
		Greptime:   results.GreptimeConfig{Endpoint: "db:notaport"},
	})
	if _, err := f(context.Background(), results.Run{ID: "r"}, testSchema()); err == nil {
		t.Fatalf("expected endpoint error")
	}
}
