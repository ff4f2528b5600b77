package sweep

import (
	"fmt"
	"sync"
	"testing"
)

func TestStore_UpsertIsIdempotent(t *testing.T) {
	s := NewStore()
	row := Row{Seq: 0, Identity: Identity{"4", "base"}, Status: StatusSuccess, Metrics: Metrics{"latency": 250}}
	s.Upsert(row)
	s.Upsert(row)
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	got, ok := s.Get(Identity{"4", "base"})
	if !ok || got.Status != StatusSuccess || got.Metrics["latency"] != 250 {
		t.Fatalf("unexpected row %+v", got)
	}
}

func TestStore_UpsertReplacesWholeRow(t *testing.T) {
	s := NewStore()
	id := Identity{"4", "base"}
	s.Upsert(Row{Identity: id, Status: StatusSuccess, Metrics: Metrics{"latency": 250, "util": 0.3}})
	s.Upsert(Row{Identity: id, Status: StatusFailed, Metrics: Metrics{}})
	got, _ := s.Get(id)
	if got.Status != StatusFailed || len(got.Metrics) != 0 {
		t.Fatalf("row not replaced: %+v", got)
	}
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := NewStore()
	metrics := Metrics{"latency": 1}
	s.Upsert(Row{Identity: Identity{"a"}, Status: StatusRunning, Metrics: metrics})
	metrics["latency"] = 99

	snap := s.Snapshot()
	if snap[0].Metrics["latency"] != 1 {
		t.Fatalf("store shares caller's metrics map")
	}
	snap[0].Metrics["latency"] = 42
	snap[0].Identity[0] = "z"
	if got, _ := s.Get(Identity{"a"}); got.Metrics["latency"] != 1 {
		t.Fatalf("snapshot mutation leaked into store")
	}
}

func TestStore_SnapshotOrder(t *testing.T) {
	s := NewStore()
	s.Upsert(Row{Seq: 2, Identity: Identity{"c"}})
	s.Upsert(Row{Seq: 0, Identity: Identity{"a"}})
	s.Upsert(Row{Seq: 1, Identity: Identity{"b"}})
	snap := s.Snapshot()
	for i, want := range []string{"a", "b", "c"} {
		if snap[i].Identity[0] != want {
			t.Fatalf("position %d = %s, want %s", i, snap[i].Identity, want)
		}
	}
}

func TestStore_ConcurrentDisjointUpserts(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := Identity{fmt.Sprint(w), fmt.Sprint(i)}
				s.Upsert(Row{Seq: w*100 + i, Identity: id, Status: StatusRunning})
				s.Upsert(Row{Seq: w*100 + i, Identity: id, Status: StatusSuccess, Metrics: Metrics{"v": float64(i + 1)}})
				_ = s.Snapshot()
			}
		}(w)
	}
	wg.Wait()
	if s.Len() != 800 {
		t.Fatalf("Len = %d, want 800", s.Len())
	}
	if c := s.Counts(); c[StatusSuccess] != 800 {
		t.Fatalf("counts = %v", c)
	}
}

func TestStore_LoadRoundTrip(t *testing.T) {
	src := NewStore()
	src.Upsert(Row{Seq: 0, Identity: Identity{"4", "base"}, Status: StatusSuccess, Metrics: Metrics{"latency": 250}})
	src.Upsert(Row{Seq: 1, Identity: Identity{"4", "rpm"}, Status: StatusFailed, Metrics: Metrics{}})

	dst := NewStore()
	dst.Load(src.Snapshot())
	a, b := src.Snapshot(), dst.Snapshot()
	if len(a) != len(b) {
		t.Fatalf("row count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Identity.Key() != b[i].Identity.Key() || a[i].Status != b[i].Status || len(a[i].Metrics) != len(b[i].Metrics) {
			t.Fatalf("row %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
