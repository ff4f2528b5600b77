package results

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"garnet-sweep/internal/logging"
	"garnet-sweep/internal/sweep"
)

// DefaultGreptimeTable is used when no table name is configured.
const DefaultGreptimeTable = "sweep_results"

const defaultGreptimePort = 4001

// GreptimeConfig locates the database. Endpoint is host or host:port.
type GreptimeConfig struct {
	Endpoint string
	Database string
	Table    string
}

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeWriter writes one row per job, with the run and axes as tags.
// Rows written for the same identity replace each other because they
// share tags and timestamp.
type GreptimeWriter struct {
	client greptimeClient
	table  string
	run    Run
	schema sweep.Schema
	log    *slog.Logger
}

// NewGreptimeWriter connects to GreptimeDB.
func NewGreptimeWriter(cfg GreptimeConfig, run Run, schema sweep.Schema, log *slog.Logger) (*GreptimeWriter, error) {
	host, port, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	gcfg := greptime.NewConfig(host).WithPort(port)
	if cfg.Database != "" {
		gcfg = gcfg.WithDatabase(cfg.Database)
	}
	client, err := greptime.NewClient(gcfg)
	if err != nil {
		return nil, fmt.Errorf("greptimedb client: %w", err)
	}
	name := cfg.Table
	if name == "" {
		name = DefaultGreptimeTable
	}
	if log == nil {
		log = logging.Discard()
	}
	return &GreptimeWriter{client: client, table: name, run: run, schema: schema, log: log}, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	if endpoint == "" {
		return "", 0, fmt.Errorf("greptimedb endpoint is empty")
	}
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("greptimedb endpoint %q: bad port", endpoint)
	}
	return host, port, nil
}

func (w *GreptimeWriter) build(rows []sweep.Row) (*table.Table, error) {
	tbl, err := table.New(w.table)
	if err != nil {
		return nil, err
	}
	if err := tbl.AddTagColumn("run_id", types.STRING); err != nil {
		return nil, err
	}
	if err := tbl.AddTagColumn("sweep", types.STRING); err != nil {
		return nil, err
	}
	for _, c := range w.schema.Axes {
		if err := tbl.AddTagColumn(c.Name, types.STRING); err != nil {
			return nil, err
		}
	}
	if err := tbl.AddFieldColumn("status", types.STRING); err != nil {
		return nil, err
	}
	for _, c := range w.schema.Metrics {
		if err := tbl.AddFieldColumn(c.Name, types.FLOAT64); err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}

	ts := w.run.Started
	if ts.IsZero() {
		ts = time.Now()
	}
	for _, r := range rows {
		vals := make([]any, 0, 3+len(w.schema.Axes)+len(w.schema.Metrics))
		vals = append(vals, w.run.ID, w.run.Name)
		for i := range w.schema.Axes {
			v := ""
			if i < len(r.Identity) {
				v = r.Identity[i]
			}
			vals = append(vals, v)
		}
		vals = append(vals, string(r.Status))
		for _, c := range w.schema.Metrics {
			if v, ok := r.Metrics.Get(c.Name); ok {
				vals = append(vals, v)
			} else {
				vals = append(vals, nil)
			}
		}
		vals = append(vals, ts)
		if err := tbl.AddRow(vals...); err != nil {
			return nil, fmt.Errorf("row %s: %w", r.Identity, err)
		}
	}
	return tbl, nil
}

// WriteRows implements Writer.
func (w *GreptimeWriter) WriteRows(ctx context.Context, rows []sweep.Row) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := w.build(rows)
	if err != nil {
		return err
	}
	if _, err := w.client.Write(ctx, tbl); err != nil {
		w.log.Warn("greptimedb write failed", "err", err)
		return err
	}
	w.log.Debug("greptimedb wrote rows", "rows", len(rows), "table", w.table)
	return nil
}
