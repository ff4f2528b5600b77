// Package progress renders live views of a sweep's results store.
package progress

import (
	"time"

	"garnet-sweep/internal/sweep"
)

// View is a read-only projection of the store at one instant.
type View struct {
	Title     string
	Schema    sweep.Schema
	Total     int
	Completed int
	Counts    map[sweep.Status]int
	// Pending holds every row whose status is not SUCCESS, in store order.
	Pending []sweep.Row
	Elapsed time.Duration
	Done    bool
}

// Percent returns completion in [0, 100].
func (v View) Percent() float64 {
	if v.Total <= 0 {
		if v.Done {
			return 100
		}
		return 0
	}
	p := float64(v.Completed) / float64(v.Total) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// Project builds a view from a snapshot.
func Project(title string, schema sweep.Schema, rows []sweep.Row, completed, total int) View {
	v := View{
		Title:     title,
		Schema:    schema,
		Total:     total,
		Completed: completed,
		Counts:    make(map[sweep.Status]int, len(sweep.Statuses)),
	}
	running := 0
	for _, r := range rows {
		v.Counts[r.Status]++
		if r.Status != sweep.StatusSuccess {
			v.Pending = append(v.Pending, r)
		}
		if !r.Status.Terminal() {
			running++
		}
	}
	// rows only appear once a job starts, the remainder is still queued
	if waiting := total - completed - running; waiting > 0 {
		v.Counts[sweep.StatusWaiting] += waiting
	}
	return v
}
