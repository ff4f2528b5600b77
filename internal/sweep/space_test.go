package sweep

import (
	"path/filepath"
	"strings"
	"testing"
)

func newTestBuilder(t *testing.T, root string, axes []string, layout string) *TemplateBuilder {
	t.Helper()
	b, err := NewTemplateBuilder(TemplateSpec{
		Root:    root,
		WorkDir: "/work",
		Axes:    axes,
		Layout:  layout,
		Command: "sim --out={{.outdir}}",
	})
	if err != nil {
		t.Fatalf("NewTemplateBuilder: %v", err)
	}
	return b
}

func testAxes() []Axis {
	return []Axis{
		{Name: "mesh_rows", Values: []string{"4", "8"}},
		{Name: "scheme", Values: []string{"base", "rpm"}},
		{Name: "rate", Values: []string{"0.1", "0.2", "0.3"}},
	}
}

func TestSpace_EnumeratesProductInRowMajorOrder(t *testing.T) {
	root := t.TempDir()
	sp, err := NewSpace(testAxes(), newTestBuilder(t, root, []string{"mesh_rows", "scheme", "rate"}, ""))
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	if sp.Size() != 12 {
		t.Fatalf("Size = %d, want 12", sp.Size())
	}

	seen := make(map[string]bool)
	var order []string
	for job, err := range sp.Jobs() {
		if err != nil {
			t.Fatalf("Jobs: %v", err)
		}
		if seen[job.Identity.Key()] {
			t.Fatalf("identity %s repeated", job.Identity)
		}
		seen[job.Identity.Key()] = true
		order = append(order, job.Identity.String())
		if job.Command == "" || job.StatsFile == "" || job.OutDir == "" {
			t.Fatalf("job %s not materialised: %+v", job.Identity, job)
		}
		if job.Status != StatusWaiting || len(job.Metrics) != 0 {
			t.Fatalf("job %s should start WAITING with no metrics", job.Identity)
		}
	}
	if len(order) != 12 {
		t.Fatalf("yielded %d jobs, want 12", len(order))
	}
	if order[0] != "4/base/0.1" || order[1] != "4/base/0.2" || order[3] != "4/rpm/0.1" || order[6] != "8/base/0.1" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestSpace_Restartable(t *testing.T) {
	sp, _ := NewSpace(testAxes(), newTestBuilder(t, t.TempDir(), []string{"mesh_rows", "scheme", "rate"}, ""))
	collect := func() string {
		var ids []string
		for job := range sp.Jobs() {
			ids = append(ids, job.Identity.Key())
		}
		return strings.Join(ids, "|")
	}
	if a, b := collect(), collect(); a != b {
		t.Fatalf("enumeration not deterministic")
	}
}

func TestSpace_EarlyBreak(t *testing.T) {
	sp, _ := NewSpace(testAxes(), newTestBuilder(t, t.TempDir(), []string{"mesh_rows", "scheme", "rate"}, ""))
	n := 0
	for range sp.Jobs() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("expected to stop after 2 jobs")
	}
}

func TestSpace_SingleCombination(t *testing.T) {
	axes := []Axis{
		{Name: "mesh_rows", Values: []string{"4"}},
		{Name: "scheme", Values: []string{"base"}},
		{Name: "pattern", Values: []string{"uniform_random"}},
		{Name: "rate", Values: []string{"0.1"}},
	}
	root := t.TempDir()
	sp, _ := NewSpace(axes, newTestBuilder(t, root, []string{"mesh_rows", "scheme", "pattern", "rate"}, ""))
	var jobs []*Job
	for job, err := range sp.Jobs() {
		if err != nil {
			t.Fatalf("Jobs: %v", err)
		}
		jobs = append(jobs, job)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	want := Identity{"4", "base", "uniform_random", "0.1"}
	if jobs[0].Identity.Key() != want.Key() {
		t.Fatalf("identity = %v, want %v", jobs[0].Identity, want)
	}
	if jobs[0].OutDir != filepath.Join(root, "4", "base", "uniform_random", "0.1") {
		t.Fatalf("unexpected outdir %s", jobs[0].OutDir)
	}
}

func TestSpace_FilterAndCount(t *testing.T) {
	sp, _ := NewSpace(testAxes(), newTestBuilder(t, t.TempDir(), []string{"mesh_rows", "scheme", "rate"}, "{{.mesh_rows}}x{{.mesh_rows}}/{{.scheme}}/{{.rate}}"))
	f, err := NewFilter([]string{"4x4/**"}, []string{"**/0.2"})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	sp.WithFilter(f)
	n, err := sp.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Fatalf("Count = %d, want 4", n)
	}
	for job := range sp.Jobs() {
		if !strings.HasPrefix(job.RelDir, "4x4/") || strings.HasSuffix(job.RelDir, "/0.2") {
			t.Fatalf("filter let %s through", job.RelDir)
		}
		if job.Index < 0 || job.Index >= 6 {
			t.Fatalf("ordinal %d should stay relative to the full space", job.Index)
		}
	}
}

func TestSpace_CheckDetectsSharedOutdir(t *testing.T) {
	sp, _ := NewSpace(testAxes(), newTestBuilder(t, t.TempDir(), []string{"mesh_rows", "scheme", "rate"}, "{{.mesh_rows}}/{{.scheme}}"))
	if _, err := sp.Check(); err == nil || !strings.Contains(err.Error(), "share output directory") {
		t.Fatalf("expected shared outdir error, got %v", err)
	}
}

func TestSpace_CheckReportsBuildErrors(t *testing.T) {
	b, err := NewTemplateBuilder(TemplateSpec{
		Root:    t.TempDir(),
		Axes:    []string{"mesh_rows", "scheme", "rate"},
		Command: "sim {{int .scheme}}",
	})
	if err != nil {
		t.Fatalf("NewTemplateBuilder: %v", err)
	}
	sp, _ := NewSpace(testAxes(), b)
	if _, err := sp.Check(); err == nil {
		t.Fatalf("expected template error for non-numeric scheme")
	}
}

func TestNewSpace_RejectsEmptyAxis(t *testing.T) {
	_, err := NewSpace([]Axis{{Name: "x"}}, newTestBuilder(t, t.TempDir(), []string{"x"}, ""))
	if err == nil {
		t.Fatalf("expected error for empty axis")
	}
}
