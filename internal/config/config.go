// YAML sweep definition loader with CUE validation integration
package config

import (
	"embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultStatsFile is used when a definition does not name its stats file.
const DefaultStatsFile = "stats.txt"

// ErrUnknownPreset is returned by LoadPreset for names with no embedded definition.
var ErrUnknownPreset = errors.New("unknown preset")

var reservedNames = map[string]bool{"outdir": true, "cwd": true, "vars": true}

//go:embed presets/*.yaml
var presetFS embed.FS

// Range describes an arithmetic axis: start, start+step, ... while < stop.
type Range struct {
	Start     float64 `yaml:"start"`
	Stop      float64 `yaml:"stop"`
	Step      float64 `yaml:"step"`
	Precision *int    `yaml:"precision,omitempty"`
}

// Axis is one swept parameter dimension.
type Axis struct {
	Name   string `yaml:"name"`
	Label  string `yaml:"label,omitempty"`
	Values []any  `yaml:"values,omitempty"`
	Range  *Range `yaml:"range,omitempty"`
}

// Marker tells the extractor how to read one metric from a stats line.
type Marker struct {
	Metric  string  `yaml:"metric"`
	Match   string  `yaml:"match"`
	Field   int     `yaml:"field"`
	Divisor float64 `yaml:"divisor,omitempty"`
}

// Metric declares display metadata and column order for a metric.
type Metric struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label,omitempty"`
}

// Term is one denominator of a derived metric: either a metric or an axis
// value raised to Power.
type Term struct {
	Metric string `yaml:"metric,omitempty"`
	Axis   string `yaml:"axis,omitempty"`
	Power  int    `yaml:"power,omitempty"`
}

// Derived is a metric computed from others once extraction finished.
type Derived struct {
	Name         string `yaml:"name"`
	Numerator    string `yaml:"numerator"`
	Denominators []Term `yaml:"denominators"`
}

// SweepConfig is the root of a sweep definition file.
type SweepConfig struct {
	Name      string            `yaml:"name"`
	Title     string            `yaml:"title,omitempty"`
	Vars      map[string]string `yaml:"vars,omitempty"`
	Axes      []Axis            `yaml:"axes"`
	Layout    string            `yaml:"layout,omitempty"`
	Command   string            `yaml:"command"`
	StatsFile string            `yaml:"stats_file,omitempty"`
	Markers   []Marker          `yaml:"markers"`
	Metrics   []Metric          `yaml:"metrics,omitempty"`
	Required  []string          `yaml:"required"`
	Derived   []Derived         `yaml:"derived,omitempty"`
	Build     []string          `yaml:"build,omitempty"`
}

// Load reads a sweep definition from disk and validates it.
func Load(configPath string) (*SweepConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read YAML config: %w", err)
	}
	return Parse(configPath, data)
}

// LoadPreset returns one of the embedded definitions by name.
func LoadPreset(name string) (*SweepConfig, error) {
	data, err := presetFS.ReadFile(path.Join("presets", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return Parse(name+".yaml", data)
}

// Presets lists the embedded definition names.
func Presets() []string {
	entries, _ := presetFS.ReadDir("presets")
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Parse validates data against the CUE schema, decodes it and checks the
// cross references the schema cannot express.
func Parse(filename string, data []byte) (*SweepConfig, error) {
	if err := ValidateWithCue(filename, data); err != nil {
		return nil, err
	}
	var cfg SweepConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal YAML config: %w", err)
	}
	if cfg.StatsFile == "" {
		cfg.StatsFile = DefaultStatsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal encodes the definition back to YAML.
func (c *SweepConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks naming and reference rules.
func (c *SweepConfig) Validate() error {
	if len(c.Axes) == 0 {
		return fmt.Errorf("sweep %q: no axes defined", c.Name)
	}
	axes := make(map[string]bool, len(c.Axes))
	for _, a := range c.Axes {
		if reservedNames[a.Name] {
			return fmt.Errorf("axis %q: name is reserved", a.Name)
		}
		if axes[a.Name] {
			return fmt.Errorf("axis %q: defined twice", a.Name)
		}
		axes[a.Name] = true
		if _, err := a.Expand(); err != nil {
			return err
		}
	}

	extracted := make(map[string]bool)
	for _, m := range c.Markers {
		if axes[m.Metric] {
			return fmt.Errorf("marker %q: metric name collides with an axis", m.Metric)
		}
		extracted[m.Metric] = true
	}
	known := make(map[string]bool, len(extracted))
	for name := range extracted {
		known[name] = true
	}
	for _, d := range c.Derived {
		if known[d.Name] {
			return fmt.Errorf("derived metric %q: name already in use", d.Name)
		}
		if !extracted[d.Numerator] {
			return fmt.Errorf("derived metric %q: numerator %q is not extracted by any marker", d.Name, d.Numerator)
		}
		for _, t := range d.Denominators {
			switch {
			case t.Metric != "" && t.Axis != "":
				return fmt.Errorf("derived metric %q: term names both metric and axis", d.Name)
			case t.Metric != "":
				if !extracted[t.Metric] {
					return fmt.Errorf("derived metric %q: metric %q is not extracted by any marker", d.Name, t.Metric)
				}
			case t.Axis != "":
				if !axes[t.Axis] {
					return fmt.Errorf("derived metric %q: unknown axis %q", d.Name, t.Axis)
				}
			default:
				return fmt.Errorf("derived metric %q: empty term", d.Name)
			}
		}
		known[d.Name] = true
	}
	for _, m := range c.Metrics {
		if !known[m.Name] {
			return fmt.Errorf("metric %q: not produced by any marker or derived metric", m.Name)
		}
	}
	for _, r := range c.Required {
		if !known[r] {
			return fmt.Errorf("required metric %q: not produced by any marker or derived metric", r)
		}
	}
	return nil
}

// MetricNames returns every metric in column order: declared metrics
// first, then marker metrics, then derived metrics, without duplicates.
func (c *SweepConfig) MetricNames() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, m := range c.Metrics {
		add(m.Name)
	}
	for _, m := range c.Markers {
		add(m.Metric)
	}
	for _, d := range c.Derived {
		add(d.Name)
	}
	return names
}

// MetricLabel returns the display label for a metric.
func (c *SweepConfig) MetricLabel(name string) string {
	for _, m := range c.Metrics {
		if m.Name == name && m.Label != "" {
			return m.Label
		}
	}
	return DefaultLabel(name)
}

// AxisLabel returns the display label for an axis.
func (a Axis) AxisLabel() string {
	if a.Label != "" {
		return a.Label
	}
	return DefaultLabel(a.Name)
}

// DefaultLabel turns snake_case into an upper-case column title.
func DefaultLabel(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "_", " "))
}

// Expand returns the canonical string form of every axis value in order.
func (a Axis) Expand() ([]string, error) {
	if (a.Range == nil) == (len(a.Values) == 0) {
		return nil, fmt.Errorf("axis %q: exactly one of values or range is required", a.Name)
	}
	var out []string
	if a.Range != nil {
		vals, err := a.Range.expand()
		if err != nil {
			return nil, fmt.Errorf("axis %q: %w", a.Name, err)
		}
		out = vals
	} else {
		for _, v := range a.Values {
			out = append(out, formatValue(v))
		}
	}
	seen := make(map[string]bool, len(out))
	for _, v := range out {
		if seen[v] {
			return nil, fmt.Errorf("axis %q: duplicate value %q", a.Name, v)
		}
		seen[v] = true
	}
	return out, nil
}

func (r *Range) expand() ([]string, error) {
	if r.Step <= 0 {
		return nil, fmt.Errorf("range step must be positive")
	}
	n := int(math.Ceil((r.Stop-r.Start)/r.Step - 1e-9))
	if n <= 0 {
		return nil, fmt.Errorf("range [%g, %g) is empty", r.Start, r.Stop)
	}
	prec := -1
	if r.Precision != nil {
		prec = *r.Precision
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		v := r.Start + float64(i)*r.Step
		if prec >= 0 {
			scale := math.Pow(10, float64(prec))
			v = math.Round(v*scale) / scale
		}
		out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return out, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
