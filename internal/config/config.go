// Package config loads and persists the application configuration:
// provider credentials, storage paths, and runtime limits.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ProviderConfig holds the credentials for one LLM backend. BaseURL
// overrides the provider's default endpoint, mainly for tests and
// self-hosted gateways.
type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
}

// Config is the application configuration.
type Config struct {
	DeepSeek    ProviderConfig `json:"deepseek"`
	OpenAI      ProviderConfig `json:"openai"`
	HuggingFace ProviderConfig `json:"huggingface"`

	// HistoryPath is the SQLite database holding conversation history.
	HistoryPath string `json:"history_path"`

	LogLevel string `json:"log_level"` // debug, info, warn, error, none
	LogPath  string `json:"-"`

	// ToolLoopLimit bounds provider round-trips in one tool-calling
	// exchange.
	ToolLoopLimit int `json:"tool_loop_limit"`

	// RequestTimeoutSeconds is the per-request HTTP timeout used for
	// provider and tool-server traffic.
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "linux":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "aichat")
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "aichat")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "aichat")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "aichat")
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "aichat")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "aichat")
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "aichat")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "aichat")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "aichat")
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		HistoryPath:           filepath.Join(stateDir, "history.db"),
		LogLevel:              "info",
		LogPath:               filepath.Join(stateDir, "aichat.log"),
		ToolLoopLimit:         5,
		RequestTimeoutSeconds: 60,
	}
}

// Load reads the configuration at path, overlaying it onto the
// defaults. A missing file yields the defaults. API keys absent from
// the file are taken from the environment (DEEPSEEK_API_KEY,
// OPENAI_API_KEY, HF_API_KEY).
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			config.fillFromEnv()
			return config, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	stateDir := defaultStateDir()
	if config.HistoryPath == "" {
		config.HistoryPath = filepath.Join(stateDir, "history.db")
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogPath == "" {
		config.LogPath = filepath.Join(stateDir, "aichat.log")
	}
	if config.ToolLoopLimit <= 0 {
		config.ToolLoopLimit = 5
	}
	if config.RequestTimeoutSeconds <= 0 {
		config.RequestTimeoutSeconds = 60
	}
	config.fillFromEnv()

	return config, nil
}

func (c *Config) fillFromEnv() {
	if c.DeepSeek.APIKey == "" {
		c.DeepSeek.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.HuggingFace.APIKey == "" {
		c.HuggingFace.APIKey = os.Getenv("HF_API_KEY")
	}
}

// Save writes the configuration to path, creating the directory if
// needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the default config path.
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
