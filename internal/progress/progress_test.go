package progress

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"garnet-sweep/internal/sweep"
)

func testSchema() sweep.Schema {
	return sweep.Schema{Axes: []sweep.Column{{Name: "mesh_rows", Label: "MESH ROWS"}, {Name: "rate", Label: "RATE"}}}
}

func testStore() *sweep.Store {
	s := sweep.NewStore()
	s.Upsert(sweep.Row{Seq: 0, Identity: sweep.Identity{"4", "0.1"}, Status: sweep.StatusSuccess})
	s.Upsert(sweep.Row{Seq: 1, Identity: sweep.Identity{"4", "0.2"}, Status: sweep.StatusFailed, Reason: "invalid or missing: latency"})
	s.Upsert(sweep.Row{Seq: 2, Identity: sweep.Identity{"8", "0.1"}, Status: sweep.StatusRunning})
	return s
}

func TestProject(t *testing.T) {
	v := Project("t", testSchema(), testStore().Snapshot(), 2, 10)
	if v.Percent() != 20 {
		t.Fatalf("Percent = %v, want 20", v.Percent())
	}
	if len(v.Pending) != 2 || v.Pending[0].Status != sweep.StatusFailed || v.Pending[1].Status != sweep.StatusRunning {
		t.Fatalf("unexpected pending rows %+v", v.Pending)
	}
	if v.Counts[sweep.StatusWaiting] != 7 || v.Counts[sweep.StatusRunning] != 1 || v.Counts[sweep.StatusSuccess] != 1 {
		t.Fatalf("unexpected counts %v", v.Counts)
	}
}

func TestPercentEmpty(t *testing.T) {
	if (View{}).Percent() != 0 {
		t.Fatalf("empty view should be 0%%")
	}
	if (View{Done: true}).Percent() != 100 {
		t.Fatalf("finished empty view should be 100%%")
	}
}

type recordingSink struct {
	mu    sync.Mutex
	views []View
	err   error
}

func (r *recordingSink) Render(v View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
	return r.err
}

func (r *recordingSink) snapshot() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]View(nil), r.views...)
}

func TestReporterRendersUntilCancelled(t *testing.T) {
	store := testStore()
	before := store.Snapshot()
	sink := &recordingSink{}
	failing := &recordingSink{err: errors.New("terminal gone")}
	r := NewReporter(Config{
		Title:    "t",
		Schema:   testSchema(),
		Store:    store,
		Total:    3,
		Interval: 5 * time.Millisecond,
		Sinks:    []Sink{failing, sink},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	views := sink.snapshot()
	if len(views) < 2 {
		t.Fatalf("expected several renders, got %d", len(views))
	}
	last := views[len(views)-1]
	if !last.Done || last.Completed != 2 {
		t.Fatalf("final view = %+v", last)
	}
	if len(failing.snapshot()) != len(views) {
		t.Fatalf("render errors must not stop the reporter")
	}
	after := store.Snapshot()
	if len(after) != len(before) {
		t.Fatalf("reporter modified the store")
	}
}

func TestReporterCompletedFunc(t *testing.T) {
	r := NewReporter(Config{Store: testStore(), Total: 4, Completed: func() int { return 3 }})
	if v := r.View(); v.Completed != 3 || v.Percent() != 75 {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestReporterReadsCompletedBeforeSnapshot(t *testing.T) {
	store := sweep.NewStore()
	id := sweep.Identity{"4", "0.1"}
	store.Upsert(sweep.Row{Seq: 0, Identity: id, Status: sweep.StatusRunning})
	// the job finishes while the view is being built
	completed := func() int {
		store.Upsert(sweep.Row{Seq: 0, Identity: id, Status: sweep.StatusSuccess, Metrics: sweep.Metrics{"latency": 1}})
		return 1
	}
	r := NewReporter(Config{Store: store, Total: 2, Completed: completed})
	v := r.View()
	if v.Counts[sweep.StatusRunning] != 0 || v.Counts[sweep.StatusSuccess] != 1 {
		t.Fatalf("unexpected counts %v", v.Counts)
	}
	if v.Counts[sweep.StatusWaiting] != 1 {
		t.Fatalf("WAITING = %d, want 1", v.Counts[sweep.StatusWaiting])
	}
}

func TestTextSinkPrintsChanges(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf)
	v := Project("t", testSchema(), testStore().Snapshot(), 2, 3)
	_ = s.Render(v)
	_ = s.Render(v)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "2/3") || !strings.Contains(lines[0], "failed=1") {
		t.Fatalf("unexpected line %q", lines[0])
	}
}

func TestSummary(t *testing.T) {
	v := Project("throughput", testSchema(), testStore().Snapshot(), 2, 3)
	out := Summary(v)
	for _, want := range []string{"throughput", "2/3", "SUCCESS", "MESH ROWS", "0.2", "invalid or missing: latency"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
