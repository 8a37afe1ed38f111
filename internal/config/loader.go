package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file. Missing fields fall back
// to Defaults(); ${VAR} references are expanded from the environment before
// parsing.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	cfg := Defaults()
	expanded := expandEnvVars(data)
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", absPath, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Hash the raw bytes (not the expanded ones) so secrets pulled from the
	// environment never influence the integrity hash.
	cfg.SourceHash = hashBytes(data)
	return cfg, nil
}

// expandEnvVars replaces ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envVarPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func validate(cfg *Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service.name is empty")
	}
	if cfg.Dispatcher.PollIntervalMS <= 0 {
		return fmt.Errorf("dispatcher.poll_interval_ms must be positive, got %d", cfg.Dispatcher.PollIntervalMS)
	}
	if cfg.Dispatcher.ItemTimeoutMS <= 0 {
		return fmt.Errorf("dispatcher.item_timeout_ms must be positive, got %d", cfg.Dispatcher.ItemTimeoutMS)
	}
	if cfg.API.Enabled && cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is empty but api.enabled is true")
	}
	return nil
}
