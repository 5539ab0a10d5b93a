package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is dispatchd's optional YAML deployment config (grounded on
// the teacher's own .vega.yaml document format, repurposed from
// agents/workflows to dispatch's own settings): which plugin directories
// to load at startup, alongside the flag-level settings.
type fileConfig struct {
	Workers int      `yaml:"workers"`
	DBPath  string   `yaml:"db_path"`
	Otel    bool     `yaml:"otel"`
	Plugins []string `yaml:"plugins"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("dispatchd: read config %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("dispatchd: parse config %s: %w", path, err)
	}
	return &cfg, nil
}
