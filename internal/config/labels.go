package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Labels maps a reference image filename (or its stem) to a display name.
//
//	labels:
//	  1.jpg: Obama
//	  2: Biden
type Labels struct {
	Names map[string]string `yaml:"labels"`
}

// LoadLabels reads the alias file. An empty path yields an empty set.
func LoadLabels(path string) (*Labels, error) {
	labels := &Labels{Names: map[string]string{}}
	if path == "" {
		return labels, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	if err := yaml.Unmarshal(data, labels); err != nil {
		return nil, fmt.Errorf("failed to parse labels file %s: %w", path, err)
	}
	if labels.Names == nil {
		labels.Names = map[string]string{}
	}
	return labels, nil
}

// Lookup prefers an exact filename entry over a stem entry.
func (l *Labels) Lookup(filename, stem string) (string, bool) {
	if l == nil {
		return "", false
	}
	if name, ok := l.Names[filename]; ok && name != "" {
		return name, true
	}
	if name, ok := l.Names[stem]; ok && name != "" {
		return name, true
	}
	return "", false
}
