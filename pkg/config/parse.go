package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseRunYAML parses a RunConfig from YAML bytes, applies defaults and validates it.
// This is used for APIs where the run config is provided as payload (not via filesystem).
func ParseRunYAML(data []byte) (*RunConfig, error) {
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse run config yaml: %w", err)
	}

	applyRunDefaults(&cfg)
	if err := validateRunConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}

	return &cfg, nil
}

// ParseRunYAMLString parses a RunConfig from a YAML string
func ParseRunYAMLString(yamlText string) (*RunConfig, error) {
	return ParseRunYAML([]byte(yamlText))
}

// ParseHistYAML parses a HistConfig from YAML bytes. Histogram ranges are checked
// against the fit parameters later, once the run they apply to is known.
func ParseHistYAML(data []byte) (*HistConfig, error) {
	var cfg HistConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse histogram config yaml: %w", err)
	}

	applyHistDefaults(&cfg)
	if err := validateHistConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid histogram config: %w", err)
	}

	return &cfg, nil
}

// ParseHistYAMLString parses a HistConfig from a YAML string
func ParseHistYAMLString(yamlText string) (*HistConfig, error) {
	return ParseHistYAML([]byte(yamlText))
}

// ParseReadYAML parses a ReadConfig from YAML bytes
func ParseReadYAML(data []byte) (*ReadConfig, error) {
	var cfg ReadConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse read config yaml: %w", err)
	}

	applyReadDefaults(&cfg)
	if err := validateReadConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid read config: %w", err)
	}

	return &cfg, nil
}

// MarshalRunYAML renders a run config, used to echo the effective settings of a job
func MarshalRunYAML(cfg *RunConfig) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run config: %w", err)
	}
	return out, nil
}
