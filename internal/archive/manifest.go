package archive

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/imagineos/tapthepost/internal/models"
)

// ManifestSource describes one input of an export
type ManifestSource struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Manifest records how an export was produced
type Manifest struct {
	Output    string               `yaml:"output"`
	CreatedAt string               `yaml:"createdat"`
	Layout    models.CompositeSpec `yaml:"layout"`
	Sources   []ManifestSource     `yaml:"sources"`
}

// NewManifest pairs each layout cell with the image it was computed from
func NewManifest(output string, spec models.CompositeSpec, sources []ManifestSource, t time.Time) Manifest {
	return Manifest{
		Output:    output,
		CreatedAt: t.Format("2006-01-02_15-04-05"),
		Layout:    spec,
		Sources:   sources,
	}
}

// SaveManifest writes m as YAML
func SaveManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}

	return nil
}

// LoadManifest reads a manifest written by SaveManifest
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &m, nil
}
