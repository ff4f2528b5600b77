package results

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"garnet-sweep/internal/sweep"
)

// ArchiveName is the archive file name inside an output root.
const ArchiveName = "output.csv"

// StatusColumn is the header of the status column.
const StatusColumn = "STATUS"

// ErrNoArchive is returned when an output root has no archive to load.
var ErrNoArchive = errors.New("no results archive")

// Header returns the archive columns: axis labels, STATUS, metric labels.
func Header(schema sweep.Schema) []string {
	h := make([]string, 0, len(schema.Axes)+1+len(schema.Metrics))
	for _, c := range schema.Axes {
		h = append(h, label(c))
	}
	h = append(h, StatusColumn)
	for _, c := range schema.Metrics {
		h = append(h, label(c))
	}
	return h
}

func label(c sweep.Column) string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// FormatMetric renders a metric cell. Undefined metrics are empty.
func FormatMetric(m sweep.Metrics, name string) string {
	v, ok := m.Get(name)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Encode writes rows as CSV in the order given.
func Encode(w io.Writer, schema sweep.Schema, rows []sweep.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(schema)); err != nil {
		return err
	}
	rec := make([]string, 0, len(schema.Axes)+1+len(schema.Metrics))
	for _, r := range rows {
		if len(r.Identity) != len(schema.Axes) {
			return fmt.Errorf("row %s has %d identity values, want %d", r.Identity, len(r.Identity), len(schema.Axes))
		}
		rec = rec[:0]
		rec = append(rec, r.Identity...)
		rec = append(rec, string(r.Status))
		for _, c := range schema.Metrics {
			rec = append(rec, FormatMetric(r.Metrics, c.Name))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode reads an archive. Columns are matched by header so archives
// with extra columns, such as a leading unnamed index, still load. Seq
// follows file order.
func Decode(r io.Reader, schema sweep.Schema) ([]sweep.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("archive is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}
	axisPos := make([]int, len(schema.Axes))
	for i, c := range schema.Axes {
		p, ok := pos[label(c)]
		if !ok {
			return nil, fmt.Errorf("archive has no %q column", label(c))
		}
		axisPos[i] = p
	}
	statusPos, ok := pos[StatusColumn]
	if !ok {
		return nil, fmt.Errorf("archive has no %s column", StatusColumn)
	}

	var rows []sweep.Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cell := func(p int) string {
			if p < len(rec) {
				return strings.TrimSpace(rec[p])
			}
			return ""
		}
		id := make(sweep.Identity, len(axisPos))
		for i, p := range axisPos {
			id[i] = cell(p)
		}
		st, err := sweep.ParseStatus(cell(statusPos))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		m := sweep.Metrics{}
		for _, c := range schema.Metrics {
			p, ok := pos[label(c)]
			if !ok || cell(p) == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell(p), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %q: %w", line, label(c), err)
			}
			m[c.Name] = v
		}
		rows = append(rows, sweep.Row{Seq: len(rows), Identity: id, Status: st, Metrics: m})
	}
	return rows, nil
}

// Save atomically replaces the archive at path.
func Save(path string, schema sweep.Schema, rows []sweep.Row) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := Encode(tmp, schema, rows); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp archive: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename archive: %w", err)
	}
	return nil
}

// Load reads the archive at path. A missing file yields ErrNoArchive.
func Load(path string, schema sweep.Schema) ([]sweep.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoArchive, path)
		}
		return nil, err
	}
	defer f.Close()
	rows, err := Decode(f, schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// CSVWriter keeps the archive at a fixed path up to date.
type CSVWriter struct {
	path   string
	schema sweep.Schema
}

// NewCSVWriter creates a writer for the archive at path.
func NewCSVWriter(path string, schema sweep.Schema) *CSVWriter {
	return &CSVWriter{path: path, schema: schema}
}

// Path returns the archive location.
func (w *CSVWriter) Path() string { return w.path }

// WriteRows implements Writer.
func (w *CSVWriter) WriteRows(_ context.Context, rows []sweep.Row) error {
	return Save(w.path, w.schema, rows)
}
