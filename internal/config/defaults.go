package config

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"claude": {
				Command: "claude",
			},
			"codex": {
				Command: "codex",
			},
		},
		DefaultProvider: "claude",
		DefaultPolicy:   "restricted",
	}
}
