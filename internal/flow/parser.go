package flow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseFile parses a flow from a YAML file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse flow %s: %w", path, err)
	}

	f.Path = path
	return f, nil
}

// Parse parses and validates a flow from YAML data.
func Parse(data []byte) (*Flow, error) {
	var f Flow
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid flow format: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}
