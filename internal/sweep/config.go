package sweep

import (
	"garnet-sweep/internal/config"
)

// NewSpaceFromConfig builds the parameter space and template builder for
// a sweep definition rooted at root. workDir is exposed to templates as .cwd.
func NewSpaceFromConfig(cfg *config.SweepConfig, root, workDir string) (*Space, error) {
	axes := make([]Axis, 0, len(cfg.Axes))
	names := make([]string, 0, len(cfg.Axes))
	for _, a := range cfg.Axes {
		vals, err := a.Expand()
		if err != nil {
			return nil, err
		}
		axes = append(axes, Axis{Name: a.Name, Label: a.AxisLabel(), Values: vals})
		names = append(names, a.Name)
	}
	b, err := NewTemplateBuilder(TemplateSpec{
		Root:      root,
		WorkDir:   workDir,
		Axes:      names,
		Layout:    cfg.Layout,
		Command:   cfg.Command,
		StatsFile: cfg.StatsFile,
		Vars:      cfg.Vars,
	})
	if err != nil {
		return nil, err
	}
	return NewSpace(axes, b)
}

// NewExtractorFromConfig builds the metrics extractor for a sweep definition.
func NewExtractorFromConfig(cfg *config.SweepConfig) *Extractor {
	markers := make([]Marker, len(cfg.Markers))
	for i, m := range cfg.Markers {
		markers[i] = Marker{Metric: m.Metric, Match: m.Match, Field: m.Field, Divisor: m.Divisor}
	}
	derived := make([]Derived, len(cfg.Derived))
	for i, d := range cfg.Derived {
		terms := make([]Term, len(d.Denominators))
		for j, t := range d.Denominators {
			terms[j] = Term{Metric: t.Metric, Axis: t.Axis, Power: t.Power}
		}
		derived[i] = Derived{Name: d.Name, Numerator: d.Numerator, Denominators: terms}
	}
	names := make([]string, len(cfg.Axes))
	for i, a := range cfg.Axes {
		names[i] = a.Name
	}
	return NewExtractor(markers, derived, cfg.Required, names)
}

// MetricColumns returns the metric columns of a sweep definition in export order.
func MetricColumns(cfg *config.SweepConfig) []Column {
	names := cfg.MetricNames()
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Label: cfg.MetricLabel(n)}
	}
	return cols
}
