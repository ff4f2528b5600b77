package sweep

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
)

// Invocation is everything the scheduler needs to run one job.
type Invocation struct {
	RelDir    string
	OutDir    string
	StatsFile string
	Command   string
}

// Builder turns an identity into an invocation. Implementations must be
// pure functions of the identity.
type Builder interface {
	Build(id Identity) (Invocation, error)
}

// TemplateSpec configures a TemplateBuilder.
type TemplateSpec struct {
	Root      string
	WorkDir   string
	Axes      []string
	Layout    string
	Command   string
	StatsFile string
	Vars      map[string]string
}

// TemplateBuilder renders text/template sources over the identity.
// Templates see each axis value under its name plus .outdir, .cwd and .vars.
type TemplateBuilder struct {
	root    string
	cwd     string
	axes    []string
	vars    map[string]string
	layout  *template.Template
	command *template.Template
	stats   *template.Template
}

var templateFuncs = template.FuncMap{
	"int":   func(s string) (int, error) { return strconv.Atoi(strings.TrimSpace(s)) },
	"float": func(s string) (float64, error) { return strconv.ParseFloat(strings.TrimSpace(s), 64) },
	"mul":   func(a, b int) int { return a * b },
	"add":   func(a, b int) int { return a + b },
	"sub":   func(a, b int) int { return a - b },
}

// ParseTemplate parses src with the helper functions available to sweep templates.
func ParseTemplate(name, src string) (*template.Template, error) {
	return template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(src)
}

// NewTemplateBuilder parses the templates in spec. An empty layout joins
// the identity values with "/".
func NewTemplateBuilder(spec TemplateSpec) (*TemplateBuilder, error) {
	if spec.Root == "" {
		return nil, errors.New("template builder needs an output root")
	}
	if spec.Command == "" {
		return nil, errors.New("template builder needs a command template")
	}
	b := &TemplateBuilder{root: spec.Root, cwd: spec.WorkDir, axes: spec.Axes, vars: spec.Vars}
	var err error
	if spec.Layout != "" {
		if b.layout, err = ParseTemplate("layout", spec.Layout); err != nil {
			return nil, fmt.Errorf("parse layout template: %w", err)
		}
	}
	if b.command, err = ParseTemplate("command", spec.Command); err != nil {
		return nil, fmt.Errorf("parse command template: %w", err)
	}
	stats := spec.StatsFile
	if stats == "" {
		stats = "stats.txt"
	}
	if b.stats, err = ParseTemplate("stats_file", stats); err != nil {
		return nil, fmt.Errorf("parse stats_file template: %w", err)
	}
	return b, nil
}

// Build implements Builder.
func (b *TemplateBuilder) Build(id Identity) (Invocation, error) {
	if len(id) != len(b.axes) {
		return Invocation{}, fmt.Errorf("identity %s has %d values, want %d", id, len(id), len(b.axes))
	}
	data := map[string]any{"cwd": b.cwd, "vars": b.vars}
	for i, name := range b.axes {
		data[name] = id[i]
	}

	rel := id.String()
	if b.layout != nil {
		out, err := render(b.layout, data)
		if err != nil {
			return Invocation{}, err
		}
		rel = strings.TrimSpace(out)
	}
	rel = filepath.Clean(rel)
	if !filepath.IsLocal(rel) {
		return Invocation{}, fmt.Errorf("layout %q escapes the output root", rel)
	}
	outdir := filepath.Join(b.root, rel)
	data["outdir"] = outdir

	cmd, err := render(b.command, data)
	if err != nil {
		return Invocation{}, err
	}
	stats, err := render(b.stats, data)
	if err != nil {
		return Invocation{}, err
	}
	stats = strings.TrimSpace(stats)
	if !filepath.IsAbs(stats) {
		stats = filepath.Join(outdir, stats)
	}
	return Invocation{
		RelDir:    filepath.ToSlash(rel),
		OutDir:    outdir,
		StatsFile: stats,
		Command:   cmd,
	}, nil
}

func render(t *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", t.Name(), err)
	}
	return buf.String(), nil
}
