package sweep

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"garnet-sweep/internal/logging"
)

// Runner executes a job's invocation and blocks until it exits.
type Runner interface {
	Run(ctx context.Context, job *Job) error
}

// ShellRunner runs the invocation through a shell. Process output not
// redirected by the invocation itself lands in stdout.log and stderr.log
// next to the job's stats. The process is not tied to ctx: an interrupted
// sweep leaves running simulators alone.
type ShellRunner struct {
	Shell string
}

// Run implements Runner.
func (r ShellRunner) Run(ctx context.Context, job *Job) error {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	stdout, err := os.Create(filepath.Join(job.OutDir, "stdout.log"))
	if err != nil {
		return err
	}
	defer stdout.Close()
	stderr, err := os.Create(filepath.Join(job.OutDir, "stderr.log"))
	if err != nil {
		return err
	}
	defer stderr.Close()

	cmd := exec.Command(shell, "-c", job.Command)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Options tunes a Scheduler.
type Options struct {
	// Workers bounds how many jobs run at once. Values below one mean one.
	Workers int
	// LaunchRate caps process starts per second; zero means unlimited.
	LaunchRate float64
	// CommandFile is written into each output directory with the
	// invocation text. Empty disables it.
	CommandFile string
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{Workers: 16, CommandFile: "cmd"}
}

// Scheduler runs jobs on a bounded worker pool and records every status
// transition in the store.
type Scheduler struct {
	store     *Store
	runner    Runner
	extractor *Extractor
	opts      Options
	limiter   *rate.Limiter

	dispatched atomic.Int64
	running    atomic.Int64
	completed  atomic.Int64
}

// NewScheduler wires a scheduler.
func NewScheduler(store *Store, runner Runner, extractor *Extractor, opts Options) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	s := &Scheduler{store: store, runner: runner, extractor: extractor, opts: opts}
	if opts.LaunchRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.LaunchRate), 1)
	}
	return s
}

// Completed returns how many jobs reached a terminal status.
func (s *Scheduler) Completed() int { return int(s.completed.Load()) }

// Running returns how many processes are currently running.
func (s *Scheduler) Running() int { return int(s.running.Load()) }

// Dispatched returns how many jobs were handed to a worker.
func (s *Scheduler) Dispatched() int { return int(s.dispatched.Load()) }

// Run dispatches jobs until the sequence ends, then waits for every
// worker. Per-job failures are recorded as FAILED rows, never returned.
// When ctx is cancelled dispatch stops and Run returns ErrInterrupted
// without waiting for processes still in flight.
func (s *Scheduler) Run(ctx context.Context, jobs iter.Seq2[*Job, error]) error {
	log := logging.FromContext(ctx)
	work := make(chan *Job)
	var wg sync.WaitGroup
	for range s.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range work {
				s.execute(ctx, job)
			}
		}()
	}

	var seqErr error
dispatch:
	for job, err := range jobs {
		if err != nil {
			seqErr = err
			break
		}
		select {
		case work <- job:
			s.dispatched.Add(1)
		case <-ctx.Done():
			break dispatch
		}
	}
	close(work)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("interrupt received, not waiting for running jobs", "running", s.Running())
		return fmt.Errorf("%w: %d of %d dispatched jobs finished", ErrInterrupted, s.Completed(), s.Dispatched())
	}
	if seqErr != nil {
		return seqErr
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %d jobs finished", ErrInterrupted, s.Completed())
	}
	return nil
}

func (s *Scheduler) execute(ctx context.Context, job *Job) {
	if ctx.Err() != nil {
		return
	}
	log := logging.FromContext(ctx).With("job", job.Identity.String(), "outdir", job.OutDir)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
	}

	if err := os.MkdirAll(job.OutDir, 0o755); err != nil {
		job.fail(fmt.Sprintf("create output directory: %v", err))
		s.finish(log, job)
		return
	}
	if s.opts.CommandFile != "" {
		if err := os.WriteFile(filepath.Join(job.OutDir, s.opts.CommandFile), []byte(job.Command), 0o644); err != nil {
			log.Warn("write command file failed", "err", err)
		}
	}

	job.Status = StatusRunning
	s.store.Upsert(job.Row())
	s.running.Add(1)
	log.Debug("job started")
	err := s.runner.Run(ctx, job)
	s.running.Add(-1)
	if err != nil {
		log.Debug("process exited with error", "err", err)
	}

	job.Status = StatusReadingMetrics
	s.store.Upsert(job.Row())
	if err := s.extractor.Apply(job); err != nil {
		log.Warn("reading metrics failed", "err", err)
	}
	s.finish(log, job)
}

func (s *Scheduler) finish(log *slog.Logger, job *Job) {
	s.store.Upsert(job.Row())
	s.completed.Add(1)
	if job.Reason != "" {
		log.Info("job finished", "status", job.Status, "reason", job.Reason)
		return
	}
	log.Info("job finished", "status", job.Status)
}
