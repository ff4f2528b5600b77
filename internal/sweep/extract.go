package sweep

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// Marker maps a substring of a stats line to a metric. The value is the
// whitespace-separated token at Field, divided by Divisor.
type Marker struct {
	Metric  string
	Match   string
	Field   int
	Divisor float64
}

// Term is a derived metric denominator: a metric, or a numeric axis value
// raised to Power.
type Term struct {
	Metric string
	Axis   string
	Power  int
}

// Derived computes Name = Numerator / product(Denominators) when every
// input is defined and non-zero.
type Derived struct {
	Name         string
	Numerator    string
	Denominators []Term
}

// Extractor reads metrics from a stats file and classifies the outcome.
// It has no side effects beyond reading the file.
type Extractor struct {
	markers  []Marker
	derived  []Derived
	required []string
	axes     map[string]int
}

// NewExtractor creates an extractor. axisNames gives identity positions
// for axis terms of derived metrics.
func NewExtractor(markers []Marker, derived []Derived, required []string, axisNames []string) *Extractor {
	axes := make(map[string]int, len(axisNames))
	for i, n := range axisNames {
		axes[n] = i
	}
	return &Extractor{markers: markers, derived: derived, required: required, axes: axes}
}

const maxStatsLine = 1 << 20

// Extract scans the file at path. A missing file yields no metrics and no error.
func (e *Extractor) Extract(path string) (Metrics, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Metrics{}, nil
		}
		return Metrics{}, err
	}
	defer f.Close()
	return e.ExtractFrom(f)
}

// ExtractFrom scans r line by line. When a marker appears on several
// lines the last parsable one wins; a malformed token leaves the metric
// as it was. Lines longer than maxStatsLine are skipped.
func (e *Extractor) ExtractFrom(r io.Reader) (Metrics, error) {
	m := Metrics{}
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	skip := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return m, nil
			}
			return m, fmt.Errorf("scan stats: %w", err)
		}
		if !skip {
			line = append(line, chunk...)
			if len(line) > maxStatsLine {
				skip = true
				line = line[:0]
			}
		}
		if isPrefix {
			continue
		}
		if !skip {
			e.scanLine(m, string(line))
		}
		line = line[:0]
		skip = false
	}
}

func (e *Extractor) scanLine(m Metrics, line string) {
	var fields []string
	for _, mk := range e.markers {
		if !strings.Contains(line, mk.Match) {
			continue
		}
		if fields == nil {
			fields = strings.Fields(line)
		}
		if v, ok := mk.parse(fields); ok {
			m[mk.Metric] = v
		}
	}
}

func (mk Marker) parse(fields []string) (float64, bool) {
	if mk.Field < 0 || mk.Field >= len(fields) {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[mk.Field], 64)
	if err != nil {
		return 0, false
	}
	if mk.Divisor != 0 {
		v /= mk.Divisor
	}
	return v, true
}

// Derive fills derived metrics into m.
func (e *Extractor) Derive(id Identity, m Metrics) {
	for _, d := range e.derived {
		v, ok := m[d.Numerator]
		if !ok || v == 0 {
			continue
		}
		for _, t := range d.Denominators {
			den, defined := e.term(t, id, m)
			if !defined || den == 0 {
				ok = false
				break
			}
			v /= den
		}
		if ok {
			m[d.Name] = v
		}
	}
}

func (e *Extractor) term(t Term, id Identity, m Metrics) (float64, bool) {
	if t.Metric != "" {
		v, ok := m[t.Metric]
		return v, ok
	}
	pos, ok := e.axes[t.Axis]
	if !ok || pos >= len(id) {
		return 0, false
	}
	base, err := strconv.ParseFloat(id[pos], 64)
	if err != nil {
		return 0, false
	}
	p := t.Power
	if p <= 0 {
		p = 1
	}
	v := 1.0
	for range p {
		v *= base
	}
	return v, true
}

// Classify returns SUCCESS when every required metric is defined and
// positive. Without required metrics any defined metric counts.
func (e *Extractor) Classify(m Metrics) Status {
	if len(e.required) == 0 {
		if len(m) > 0 {
			return StatusSuccess
		}
		return StatusFailed
	}
	for _, name := range e.required {
		v, ok := m[name]
		if !ok || !(v > 0) {
			return StatusFailed
		}
	}
	return StatusSuccess
}

// Apply extracts, derives and classifies metrics for job in place.
func (e *Extractor) Apply(job *Job) error {
	m, err := e.Extract(job.StatsFile)
	e.Derive(job.Identity, m)
	job.Metrics = m
	job.Status = e.Classify(m)
	job.Reason = ""
	if job.Status == StatusFailed {
		job.Reason = e.missing(m)
	}
	return err
}

func (e *Extractor) missing(m Metrics) string {
	if len(e.required) == 0 {
		return "no metrics found"
	}
	var names []string
	for _, name := range e.required {
		if v, ok := m[name]; !ok || !(v > 0) {
			names = append(names, name)
		}
	}
	return "invalid or missing: " + strings.Join(names, ", ")
}
