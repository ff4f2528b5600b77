package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"garnet-sweep/internal/logging"
	"garnet-sweep/internal/sweep"
)

// DefaultInterval matches a four times per second refresh.
const DefaultInterval = 250 * time.Millisecond

// Sink displays views. Render must return quickly.
type Sink interface {
	Render(v View) error
}

// Config wires a Reporter.
type Config struct {
	Title  string
	Schema sweep.Schema
	Store  *sweep.Store
	// Completed reports finished jobs; nil counts terminal rows.
	Completed func() int
	Total     int
	Interval  time.Duration
	Sinks     []Sink
}

// Reporter periodically snapshots the store and hands views to its sinks.
// It never writes to the store.
type Reporter struct {
	cfg   Config
	start time.Time

	mu      sync.Mutex
	lastErr string
}

// NewReporter creates a reporter.
func NewReporter(cfg Config) *Reporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Reporter{cfg: cfg, start: time.Now()}
}

// View projects the current store content.
func (r *Reporter) View() View {
	// completed is read first so it never counts a job whose row is still running
	completed := 0
	if r.cfg.Completed != nil {
		completed = r.cfg.Completed()
	}
	rows := r.cfg.Store.Snapshot()
	if r.cfg.Completed == nil {
		for _, row := range rows {
			if row.Status.Terminal() {
				completed++
			}
		}
	}
	v := Project(r.cfg.Title, r.cfg.Schema, rows, completed, r.cfg.Total)
	v.Elapsed = time.Since(r.start)
	return v
}

// Run renders on every tick until ctx is done, then renders one final
// view marked Done.
func (r *Reporter) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.render(log, false)
	for {
		select {
		case <-ctx.Done():
			r.render(log, true)
			return
		case <-ticker.C:
			r.render(log, false)
		}
	}
}

func (r *Reporter) render(log *slog.Logger, done bool) {
	v := r.View()
	v.Done = done
	for _, s := range r.cfg.Sinks {
		if err := s.Render(v); err != nil {
			r.reportErr(log, err)
		}
	}
}

func (r *Reporter) reportErr(log *slog.Logger, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err.Error() == r.lastErr {
		return
	}
	r.lastErr = err.Error()
	log.Warn("progress render failed", "err", err)
}

// Rows returns a snapshot of every row in store order.
func (r *Reporter) Rows() []sweep.Row {
	return r.cfg.Store.Snapshot()
}

// Schema returns the columns of the reported table.
func (r *Reporter) Schema() sweep.Schema {
	return r.cfg.Schema
}
