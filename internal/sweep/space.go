package sweep

import (
	"errors"
	"fmt"
	"iter"
	"path/filepath"
)

// Axis is a named, ordered, finite list of parameter values.
type Axis struct {
	Name   string
	Label  string
	Values []string
}

// Space is the Cartesian product of its axes. Enumeration is lazy,
// deterministic and restartable; every yielded job already carries its
// invocation.
type Space struct {
	axes    []Axis
	builder Builder
	filter  *Filter
}

// NewSpace creates a space over axes whose invocations come from b.
func NewSpace(axes []Axis, b Builder) (*Space, error) {
	if len(axes) == 0 {
		return nil, errors.New("space needs at least one axis")
	}
	if b == nil {
		return nil, errors.New("space needs an invocation builder")
	}
	for _, a := range axes {
		if len(a.Values) == 0 {
			return nil, fmt.Errorf("axis %q has no values", a.Name)
		}
	}
	return &Space{axes: axes, builder: b}, nil
}

// WithFilter restricts enumeration to jobs whose relative output
// directory passes f. Returns the space for method chaining.
func (s *Space) WithFilter(f *Filter) *Space {
	s.filter = f
	return s
}

// Axes returns the axes in enumeration order, outermost first.
func (s *Space) Axes() []Axis {
	return s.axes
}

// Size is the product of all axis cardinalities, ignoring any filter.
func (s *Space) Size() int {
	n := 1
	for _, a := range s.axes {
		n *= len(a.Values)
	}
	return n
}

// Identities yields every combination in row-major order with its ordinal.
func (s *Space) Identities() iter.Seq2[int, Identity] {
	return func(yield func(int, Identity) bool) {
		idx := make([]int, len(s.axes))
		total := s.Size()
		for ord := 0; ord < total; ord++ {
			id := make(Identity, len(s.axes))
			for i, a := range s.axes {
				id[i] = a.Values[idx[i]]
			}
			if !yield(ord, id) {
				return
			}
			// odometer: the innermost axis varies fastest
			for i := len(idx) - 1; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(s.axes[i].Values) {
					break
				}
				idx[i] = 0
			}
		}
	}
}

// Jobs yields a fully materialised job per selected combination. A build
// failure is yielded once as an error and ends the sequence.
func (s *Space) Jobs() iter.Seq2[*Job, error] {
	return func(yield func(*Job, error) bool) {
		for ord, id := range s.Identities() {
			inv, err := s.builder.Build(id)
			if err != nil {
				yield(nil, fmt.Errorf("build invocation for %s: %w", id, err))
				return
			}
			if s.filter != nil && !s.filter.Match(inv.RelDir) {
				continue
			}
			job := &Job{
				Index:     ord,
				Identity:  id,
				RelDir:    inv.RelDir,
				OutDir:    inv.OutDir,
				StatsFile: inv.StatsFile,
				Command:   inv.Command,
				Status:    StatusWaiting,
				Metrics:   Metrics{},
			}
			if !yield(job, nil) {
				return
			}
		}
	}
}

// Check materialises every selected job once and returns how many there
// are. It fails if an invocation cannot be built or two jobs would share
// an output directory.
func (s *Space) Check() (int, error) {
	owners := make(map[string]Identity)
	n := 0
	for job, err := range s.Jobs() {
		if err != nil {
			return 0, err
		}
		dir := filepath.Clean(job.OutDir)
		if prev, ok := owners[dir]; ok {
			return 0, fmt.Errorf("jobs %s and %s share output directory %s", prev, job.Identity, dir)
		}
		owners[dir] = job.Identity
		n++
	}
	return n, nil
}

// Count returns the number of jobs Jobs will yield.
func (s *Space) Count() (int, error) {
	if s.filter == nil {
		return s.Size(), nil
	}
	n := 0
	for _, err := range s.Jobs() {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// Schema returns the identity columns of the space with the given metric columns.
func (s *Space) Schema(metrics []Column) Schema {
	cols := make([]Column, len(s.axes))
	for i, a := range s.axes {
		cols[i] = Column{Name: a.Name, Label: a.Label}
	}
	return Schema{Axes: cols, Metrics: metrics}
}
