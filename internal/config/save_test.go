package config

import (
	"path/filepath"
	"testing"
)

// TestSave_RoundTrip verifies a saved config loads back identically.
func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.DefaultProvider = "codex"
	cfg.Providers["codex"] = ProviderConfig{Command: "codex", Model: "gpt-5-codex"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DefaultProvider != "codex" {
		t.Errorf("Expected codex, got %s", loaded.DefaultProvider)
	}
	if loaded.Providers["codex"].Model != "gpt-5-codex" {
		t.Errorf("Expected model gpt-5-codex, got %s", loaded.Providers["codex"].Model)
	}
}
