package entrygen

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest lists the entry points produced by one generator run.
type Manifest struct {
	Generator   string       `yaml:"generator"`
	Section     string       `yaml:"section"`
	EntryPoints []EntryPoint `yaml:"entry_points"`
}

// NewManifest collects the entry points of results.
func NewManifest(results []Result) Manifest {
	m := Manifest{
		Generator:   "kcall-gen",
		Section:     Section,
		EntryPoints: []EntryPoint{},
	}
	for _, res := range results {
		m.EntryPoints = append(m.EntryPoints, res.EntryPoints...)
	}
	return m
}

// WriteManifest writes m as YAML to path.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}

// ReadManifest reads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return m, nil
}
