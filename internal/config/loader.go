package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global
// config, defaults. Missing files are not errors; malformed JSON is.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}
	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.inkdesk/config.json
// Project: .inkdesk/config.json (relative to the workspace root)
func LoadDefault(workspaceRoot string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".inkdesk", "config.json")
	projectPath := filepath.Join(workspaceRoot, ".inkdesk", "config.json")
	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into base.
// Missing files are silently skipped.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for key, p := range loaded.Providers {
		base.Providers[key] = p
	}
	if loaded.DefaultProvider != "" {
		base.DefaultProvider = loaded.DefaultProvider
	}
	if loaded.DefaultPolicy != "" {
		base.DefaultPolicy = loaded.DefaultPolicy
	}
	if loaded.ToolServer != "" {
		base.ToolServer = loaded.ToolServer
	}
	if loaded.Debug {
		base.Debug = true
	}
	return nil
}
