package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"garnet-sweep/internal/config"
)

// ManifestName is the manifest file inside an output root.
const ManifestName = "sweep.yaml"

// ErrNoManifest is returned when an output root carries no manifest.
var ErrNoManifest = errors.New("no sweep manifest")

// Manifest records how an output root was produced so it can be reported
// on later without the definition file it was started from.
type Manifest struct {
	RunID       string              `yaml:"run_id"`
	Started     time.Time           `yaml:"started"`
	Finished    *time.Time          `yaml:"finished,omitempty"`
	Interrupted bool                `yaml:"interrupted,omitempty"`
	Workers     int                 `yaml:"workers"`
	Jobs        int                 `yaml:"jobs"`
	Only        []string            `yaml:"only,omitempty"`
	Skip        []string            `yaml:"skip,omitempty"`
	WorkDir     string              `yaml:"workdir"`
	Sweep       *config.SweepConfig `yaml:"sweep"`
}

// WriteManifest stores m under root.
func WriteManifest(root string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(root, ManifestName), data, 0o644)
}

// ReadManifest loads the manifest of root and validates its definition.
func ReadManifest(root string) (*Manifest, error) {
	path := filepath.Join(root, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrNoManifest, root)
		}
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Sweep == nil {
		return nil, fmt.Errorf("%s: manifest has no sweep definition", path)
	}
	if m.Sweep.StatsFile == "" {
		m.Sweep.StatsFile = config.DefaultStatsFile
	}
	if err := m.Sweep.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}
