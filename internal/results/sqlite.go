package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"garnet-sweep/internal/sweep"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	started_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	run_id     TEXT NOT NULL REFERENCES runs(run_id),
	identity   TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	status     TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	axes       TEXT NOT NULL,
	metrics    TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (run_id, identity)
);
CREATE INDEX IF NOT EXISTS idx_results_status ON results(run_id, status);
`

// SQLiteWriter records every sweep run in a SQLite database so results
// from several output roots can be compared in one place.
type SQLiteWriter struct {
	mu     sync.Mutex
	db     *sql.DB
	run    Run
	schema sweep.Schema
	now    func() time.Time
}

// OpenSQLite opens or creates the database at path and registers run.
func OpenSQLite(ctx context.Context, path string, run Run, schema sweep.Schema) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO runs (run_id, name, started_at) VALUES (?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET name = excluded.name`,
		run.ID, run.Name, run.Started.UTC().Format(time.RFC3339Nano))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register run: %w", err)
	}
	return &SQLiteWriter{db: db, run: run, schema: schema, now: time.Now}, nil
}

// WriteRows upserts every row of the snapshot in one transaction.
func (w *SQLiteWriter) WriteRows(ctx context.Context, rows []sweep.Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (run_id, identity, seq, status, reason, axes, metrics, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, identity) DO UPDATE SET
			seq = excluded.seq,
			status = excluded.status,
			reason = excluded.reason,
			axes = excluded.axes,
			metrics = excluded.metrics,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := w.now().UTC().Format(time.RFC3339Nano)
	for _, r := range rows {
		axes := make(map[string]string, len(w.schema.Axes))
		for i, c := range w.schema.Axes {
			if i < len(r.Identity) {
				axes[c.Name] = r.Identity[i]
			}
		}
		axesJSON, err := json.Marshal(axes)
		if err != nil {
			return err
		}
		metricsJSON, err := json.Marshal(r.Metrics.Clone())
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, w.run.ID, r.Identity.String(), r.Seq, string(r.Status), r.Reason,
			string(axesJSON), string(metricsJSON), now); err != nil {
			return fmt.Errorf("upsert %s: %w", r.Identity, err)
		}
	}
	return tx.Commit()
}

// rows returns the stored rows of a run ordered by sequence.
func (w *SQLiteWriter) rows(ctx context.Context, runID string) ([]sweep.Row, error) {
	rs, err := w.db.QueryContext(ctx,
		`SELECT seq, status, reason, axes, metrics FROM results WHERE run_id = ? ORDER BY seq, identity`, runID)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []sweep.Row
	for rs.Next() {
		var (
			row                   sweep.Row
			status, axes, metrics string
		)
		if err := rs.Scan(&row.Seq, &status, &row.Reason, &axes, &metrics); err != nil {
			return nil, err
		}
		row.Status = sweep.Status(status)
		var byName map[string]string
		if err := json.Unmarshal([]byte(axes), &byName); err != nil {
			return nil, fmt.Errorf("decode axes: %w", err)
		}
		row.Identity = make(sweep.Identity, len(w.schema.Axes))
		for i, c := range w.schema.Axes {
			row.Identity[i] = byName[c.Name]
		}
		row.Metrics = sweep.Metrics{}
		if err := json.Unmarshal([]byte(metrics), &row.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
		out = append(out, row)
	}
	return out, rs.Err()
}

// Close closes the database.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
