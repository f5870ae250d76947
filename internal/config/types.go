package config

// ProviderConfig defines how one assistant provider's CLI is invoked.
type ProviderConfig struct {
	Command string   `json:"command"`         // CLI binary name (e.g., "claude", "codex")
	Args    []string `json:"args,omitempty"`  // Default args appended to every invocation
	Model   string   `json:"model,omitempty"` // Default model for this provider
}

// Config is the top-level configuration.
type Config struct {
	Providers       map[string]ProviderConfig `json:"providers"`
	DefaultProvider string                    `json:"default_provider"`
	DefaultPolicy   string                    `json:"default_policy"` // "restricted" or "full"
	ToolServer      string                    `json:"tool_server,omitempty"`
	Debug           bool                      `json:"debug,omitempty"`
}
