// Package config loads server configuration from an optional YAML file with
// flag/env overrides applied by the caller.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration.
type Config struct {
	Port          int    `yaml:"port"`
	DBPath        string `yaml:"db_path"`
	CompanyName   string `yaml:"company_name"`
	SessionTTLHrs int    `yaml:"session_ttl_hours"`
	SeedDemoData  bool   `yaml:"seed_demo_data"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:          9000,
		DBPath:        "mex.db",
		CompanyName:   "Your Company",
		SessionTTLHrs: 24,
		SeedDemoData:  true,
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
