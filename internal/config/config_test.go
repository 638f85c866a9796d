package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ToolLoopLimit != 5 {
		t.Errorf("ToolLoopLimit = %d, want 5", cfg.ToolLoopLimit)
	}
	if cfg.RequestTimeoutSeconds != 60 {
		t.Errorf("RequestTimeoutSeconds = %d, want 60", cfg.RequestTimeoutSeconds)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.HistoryPath == "" {
		t.Error("HistoryPath should have a default")
	}
}

func TestLoadOverlaysFileOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"deepseek": {"api_key": "sk-test"}, "tool_loop_limit": 3}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeepSeek.APIKey != "sk-test" {
		t.Errorf("DeepSeek.APIKey = %q, want sk-test", cfg.DeepSeek.APIKey)
	}
	if cfg.ToolLoopLimit != 3 {
		t.Errorf("ToolLoopLimit = %d, want 3", cfg.ToolLoopLimit)
	}
	// Untouched fields keep their defaults.
	if cfg.RequestTimeoutSeconds != 60 {
		t.Errorf("RequestTimeoutSeconds = %d, want 60", cfg.RequestTimeoutSeconds)
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.OpenAI.APIKey = "sk-openai"
	cfg.OpenAI.BaseURL = "https://example.test/v1"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.OpenAI.APIKey != "sk-openai" {
		t.Errorf("OpenAI.APIKey = %q, want sk-openai", loaded.OpenAI.APIKey)
	}
	if loaded.OpenAI.BaseURL != "https://example.test/v1" {
		t.Errorf("OpenAI.BaseURL = %q", loaded.OpenAI.BaseURL)
	}
}

func TestEnvFallbackForAPIKeys(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeepSeek.APIKey != "sk-env" {
		t.Errorf("DeepSeek.APIKey = %q, want sk-env", cfg.DeepSeek.APIKey)
	}
}
