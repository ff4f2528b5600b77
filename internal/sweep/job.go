// Package sweep enumerates a parameter space, runs one external simulator
// process per point and keeps the authoritative results table.
package sweep

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strings"
)

var (
	// ErrOutputRootExists is returned when a sweep would reuse an existing output root.
	ErrOutputRootExists = errors.New("output root already exists")
	// ErrInterrupted is returned when dispatch stopped before every job ran.
	ErrInterrupted = errors.New("sweep interrupted")
)

// Status is the lifecycle state of a job.
type Status string

// Job lifecycle states. SUCCESS and FAILED are terminal.
const (
	StatusWaiting        Status = "WAITING"
	StatusRunning        Status = "RUNNING"
	StatusReadingMetrics Status = "READING_METRICS"
	StatusSuccess        Status = "SUCCESS"
	StatusFailed         Status = "FAILED"
)

// Statuses lists every state in lifecycle order.
var Statuses = []Status{StatusWaiting, StatusRunning, StatusReadingMetrics, StatusSuccess, StatusFailed}

// Terminal reports whether no further transition follows s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

var markupRe = regexp.MustCompile(`\[[^\]]*\]`)

// ParseStatus maps a stored status label to a Status. Labels written with
// console markup such as "[green]SUCCESS" or "[cyan]READING STATS" are
// accepted.
func ParseStatus(s string) (Status, error) {
	clean := strings.ToUpper(strings.TrimSpace(markupRe.ReplaceAllString(s, "")))
	clean = strings.ReplaceAll(clean, " ", "_")
	switch clean {
	case "WAITING":
		return StatusWaiting, nil
	case "RUNNING":
		return StatusRunning, nil
	case "READING_METRICS", "READING_STATS":
		return StatusReadingMetrics, nil
	case "SUCCESS":
		return StatusSuccess, nil
	case "FAILED":
		return StatusFailed, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Identity is the ordered tuple of axis values naming one job.
type Identity []string

const keySep = "\x1f"

// Key returns the map key used by the results store.
func (id Identity) Key() string {
	return strings.Join(id, keySep)
}

func (id Identity) String() string {
	return strings.Join(id, "/")
}

// Metrics holds extracted values by metric name. A missing key means the
// metric is undefined, which is distinct from zero.
type Metrics map[string]float64

// Get returns the value and whether it is defined.
func (m Metrics) Get(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// Clone returns an independent copy.
func (m Metrics) Clone() Metrics {
	if m == nil {
		return Metrics{}
	}
	return maps.Clone(m)
}

// Job is one point of the parameter space together with its invocation
// and mutable run state. The run state is owned by the worker executing
// the job.
type Job struct {
	Index     int
	Identity  Identity
	RelDir    string
	OutDir    string
	StatsFile string
	Command   string

	Status  Status
	Metrics Metrics
	Reason  string
}

// Row projects the job into a results row.
func (j *Job) Row() Row {
	return Row{
		Seq:      j.Index,
		Identity: j.Identity,
		Status:   j.Status,
		Metrics:  j.Metrics.Clone(),
		Reason:   j.Reason,
	}
}

func (j *Job) fail(reason string) {
	j.Status = StatusFailed
	j.Reason = reason
}

// Row is the externally visible state of one job.
type Row struct {
	Seq      int
	Identity Identity
	Status   Status
	Metrics  Metrics
	Reason   string
}

// Clone returns a deep copy of r.
func (r Row) Clone() Row {
	c := r
	c.Identity = append(Identity(nil), r.Identity...)
	c.Metrics = r.Metrics.Clone()
	return c
}

// Column names one exported field.
type Column struct {
	Name  string
	Label string
}

// Schema describes the identity and metric columns of a results table.
type Schema struct {
	Axes    []Column
	Metrics []Column
}
