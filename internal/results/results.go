// Package results persists snapshots of the results store: the CSV
// archive read back by report mode, plus optional history sinks.
package results

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"garnet-sweep/internal/sweep"
)

// Writer receives full snapshots of the results store. Every call carries
// all rows, so sinks upsert rather than append.
type Writer interface {
	WriteRows(ctx context.Context, rows []sweep.Row) error
}

// Run identifies one sweep execution in history sinks.
type Run struct {
	ID      string
	Name    string
	Started time.Time
}

// MultiWriter fans a snapshot out to several writers. A failing writer
// does not stop the others.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a MultiWriter, skipping nil writers.
func NewMultiWriter(ws ...Writer) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ws {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Len returns the number of writers.
func (mw *MultiWriter) Len() int { return len(mw.writers) }

// WriteRows sends rows to every writer and joins their errors.
func (mw *MultiWriter) WriteRows(ctx context.Context, rows []sweep.Row) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.WriteRows(ctx, rows); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", w, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every writer that holds resources.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
