// Package driver exposes the three entry points of the tool: build the
// simulator, run a sweep and report on an existing output root.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"garnet-sweep/internal/config"
	"garnet-sweep/internal/logging"
	"garnet-sweep/internal/progress"
	"garnet-sweep/internal/results"
	"garnet-sweep/internal/status"
	"garnet-sweep/internal/sweep"
)

// DisplayFunc creates the progress sink for a sweep. A sink that
// implements io.Closer is closed when the sweep ends.
type DisplayFunc func(title string, schema sweep.Schema) progress.Sink

// WritersFunc creates extra result sinks for a run.
type WritersFunc func(ctx context.Context, run results.Run, schema sweep.Schema) ([]results.Writer, error)

// Options configures RunSweep and ReportOnly.
type Options struct {
	Root    string
	WorkDir string

	Workers    int
	LaunchRate float64
	Only       []string
	Skip       []string
	// Checkpoint rewrites the archive at this interval while jobs run.
	Checkpoint time.Duration
	Interval   time.Duration
	StatusAddr string

	// Runner executes jobs; nil runs them through the shell.
	Runner  sweep.Runner
	Display DisplayFunc
	Writers WritersFunc

	// Reextract makes ReportOnly rescan stats files even when an archive exists.
	Reextract bool
}

// Result is what an entry point leaves behind.
type Result struct {
	RunID   string
	Store   *sweep.Store
	Schema  sweep.Schema
	View    progress.View
	Archive string
}

func (o Options) filter() (*sweep.Filter, error) {
	if len(o.Only) == 0 && len(o.Skip) == 0 {
		return nil, nil
	}
	return sweep.NewFilter(o.Only, o.Skip)
}

func title(cfg *config.SweepConfig) string {
	if cfg.Title != "" {
		return cfg.Title
	}
	return cfg.Name
}

// RunSweep enumerates the space of cfg, runs every selected job under
// opts.Root and persists the results. It refuses to start when the root
// already exists. On interrupt it persists what finished and returns
// sweep.ErrInterrupted.
func RunSweep(ctx context.Context, cfg *config.SweepConfig, opts Options) (*Result, error) {
	log := logging.FromContext(ctx)
	if opts.Root == "" {
		return nil, errors.New("output root is required")
	}
	if _, err := os.Stat(opts.Root); err == nil {
		return nil, fmt.Errorf("%w: %s", sweep.ErrOutputRootExists, opts.Root)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	space, err := sweep.NewSpaceFromConfig(cfg, opts.Root, opts.WorkDir)
	if err != nil {
		return nil, err
	}
	f, err := opts.filter()
	if err != nil {
		return nil, err
	}
	if f != nil {
		space.WithFilter(f)
	}
	total, err := space.Check()
	if err != nil {
		return nil, fmt.Errorf("pre-flight check: %w", err)
	}

	run := results.Run{ID: uuid.NewString(), Name: cfg.Name, Started: time.Now()}
	schema := space.Schema(sweep.MetricColumns(cfg))
	log = log.With("run_id", run.ID)
	ctx = logging.NewContext(ctx, log)

	// Nothing is written under the root until every sink is open.
	archive := results.NewCSVWriter(filepath.Join(opts.Root, results.ArchiveName), schema)
	writers := []results.Writer{archive}
	if opts.Writers != nil {
		extra, err := opts.Writers(ctx, run, schema)
		if err != nil {
			return nil, err
		}
		writers = append(writers, extra...)
	}
	sinks := results.NewMultiWriter(writers...)
	defer sinks.Close()

	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}
	manifest := &Manifest{
		RunID:   run.ID,
		Started: run.Started,
		Workers: opts.Workers,
		Jobs:    total,
		Only:    opts.Only,
		Skip:    opts.Skip,
		WorkDir: opts.WorkDir,
		Sweep:   cfg,
	}
	if err := WriteManifest(opts.Root, manifest); err != nil {
		_ = os.RemoveAll(opts.Root)
		return nil, err
	}
	log.Info("sweep started", "sweep", cfg.Name, "jobs", total, "space", space.Size(), "root", opts.Root)

	store := sweep.NewStore()
	runner := opts.Runner
	if runner == nil {
		runner = sweep.ShellRunner{}
	}
	schedOpts := sweep.DefaultOptions()
	if opts.Workers > 0 {
		schedOpts.Workers = opts.Workers
	}
	schedOpts.LaunchRate = opts.LaunchRate
	sched := sweep.NewScheduler(store, runner, sweep.NewExtractorFromConfig(cfg), schedOpts)

	var display progress.Sink
	var displaySinks []progress.Sink
	if opts.Display != nil {
		if display = opts.Display(title(cfg), schema); display != nil {
			displaySinks = append(displaySinks, display)
		}
	}
	reporter := progress.NewReporter(progress.Config{
		Title:     title(cfg),
		Schema:    schema,
		Store:     store,
		Completed: sched.Completed,
		Total:     total,
		Interval:  opts.Interval,
		Sinks:     displaySinks,
	})

	bgCtx, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	var bg sync.WaitGroup
	bg.Add(1)
	go func() {
		defer bg.Done()
		reporter.Run(bgCtx)
	}()
	if opts.Checkpoint > 0 {
		bg.Add(1)
		go func() {
			defer bg.Done()
			checkpoint(bgCtx, archive, store, opts.Checkpoint)
		}()
	}
	if opts.StatusAddr != "" {
		if _, err := status.NewServer(reporter).Start(bgCtx, opts.StatusAddr); err != nil {
			log.Warn("status server not started", "err", err)
		}
	}

	runErr := sched.Run(ctx, space.Jobs())
	stopBackground()
	bg.Wait()
	if c, ok := display.(io.Closer); ok {
		_ = c.Close()
	}

	rows := store.Snapshot()
	finished := time.Now()
	manifest.Finished = &finished
	manifest.Interrupted = errors.Is(runErr, sweep.ErrInterrupted)
	if err := WriteManifest(opts.Root, manifest); err != nil {
		log.Warn("manifest update failed", "err", err)
	}
	persistErr := sinks.WriteRows(context.WithoutCancel(ctx), rows)
	if persistErr != nil {
		log.Error("persisting results failed", "err", persistErr)
	}

	view := reporter.View()
	view.Done = true
	log.Info("sweep finished", "completed", view.Completed, "total", view.Total,
		"failed", view.Counts[sweep.StatusFailed], "elapsed", view.Elapsed.Round(time.Millisecond))

	res := &Result{RunID: run.ID, Store: store, Schema: schema, View: view, Archive: archive.Path()}
	if runErr != nil {
		return res, runErr
	}
	return res, persistErr
}

func checkpoint(ctx context.Context, w results.Writer, store *sweep.Store, every time.Duration) {
	log := logging.FromContext(ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.WriteRows(ctx, store.Snapshot()); err != nil {
				log.Warn("checkpoint failed", "err", err)
			}
		}
	}
}

// ReportOnly rebuilds the results of an existing output root without
// running any job. The archive is loaded when present; otherwise, or
// with opts.Reextract, every job's stats file is scanned again and the
// archive rewritten. When cfg is nil the root's manifest supplies it.
func ReportOnly(ctx context.Context, cfg *config.SweepConfig, opts Options) (*Result, error) {
	log := logging.FromContext(ctx)
	info, err := os.Stat(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("output root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output root %s is not a directory", opts.Root)
	}
	manifest, err := ReadManifest(opts.Root)
	switch {
	case err == nil && cfg == nil:
		cfg = manifest.Sweep
		if opts.WorkDir == "" {
			opts.WorkDir = manifest.WorkDir
		}
	case err != nil && cfg == nil:
		return nil, err
	}

	space, err := sweep.NewSpaceFromConfig(cfg, opts.Root, opts.WorkDir)
	if err != nil {
		return nil, err
	}
	f, err := opts.filter()
	if err != nil {
		return nil, err
	}
	if f != nil {
		space.WithFilter(f)
	}
	schema := space.Schema(sweep.MetricColumns(cfg))
	archive := filepath.Join(opts.Root, results.ArchiveName)
	store := sweep.NewStore()

	rows, err := results.Load(archive, schema)
	switch {
	case err == nil && !opts.Reextract:
		log.Info("reading results archive", "path", archive, "rows", len(rows))
		store.Load(rows)
	case err == nil || errors.Is(err, results.ErrNoArchive):
		log.Info("extracting metrics from stats files", "root", opts.Root)
		if err := reextract(ctx, space, sweep.NewExtractorFromConfig(cfg), store); err != nil {
			return nil, err
		}
		if err := results.Save(archive, schema, store.Snapshot()); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	runID := ""
	if manifest != nil {
		runID = manifest.RunID
	}
	if opts.Writers != nil && manifest != nil {
		run := results.Run{ID: manifest.RunID, Name: cfg.Name, Started: manifest.Started}
		extra, err := opts.Writers(ctx, run, schema)
		if err != nil {
			return nil, err
		}
		mw := results.NewMultiWriter(extra...)
		if err := mw.WriteRows(ctx, store.Snapshot()); err != nil {
			log.Warn("writing result sinks failed", "err", err)
		}
		_ = mw.Close()
	}

	reporter := progress.NewReporter(progress.Config{
		Title:  title(cfg),
		Schema: schema,
		Store:  store,
		Total:  store.Len(),
	})
	view := reporter.View()
	view.Done = true
	return &Result{RunID: runID, Store: store, Schema: schema, View: view, Archive: archive}, nil
}

// reextract rescans every job's stats file. A job whose file cannot be
// read is logged and recorded with the status its metrics give.
func reextract(ctx context.Context, space *sweep.Space, ex *sweep.Extractor, store *sweep.Store) error {
	log := logging.FromContext(ctx)
	for job, err := range space.Jobs() {
		if err != nil {
			return err
		}
		if err := ex.Apply(job); err != nil {
			log.Warn("reading metrics failed", "job", job.Identity.String(), "stats", job.StatsFile, "err", err)
		}
		store.Upsert(job.Row())
	}
	return nil
}
