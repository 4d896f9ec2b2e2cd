package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Checkpoint driver names.
const (
	CheckpointMemory = "memory"
	CheckpointSQLite = "sqlite"
)

// Config is the explicit configuration object for the whole process. Search
// backend credentials are enumerated here rather than looked up from the
// environment at call time, so a missing key is detectable before any
// network attempt.
type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int64  `json:"max_concurrent"`
	MaxSteps      int    `json:"max_steps"`
	LLM           struct {
		BaseURL          string  `json:"base_url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model"`
		MaxTokens        int     `json:"max_tokens"`
		Temperature      float32 `json:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens"`
		OutputReserve    int     `json:"output_reserve"`
	} `json:"llm"`
	Search struct {
		TavilyAPIKey string `json:"tavily_api_key"`
		SerpAPIKey   string `json:"serp_api_key"`
		BraveAPIKey  string `json:"brave_api_key"`
	} `json:"search"`
	Checkpoint struct {
		Driver string `json:"driver"`
		Path   string `json:"path"`
	} `json:"checkpoint"`
	Web struct {
		Addr string `json:"addr"`
	} `json:"web"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
}

// Load reads the config file at path, writing defaults there first if it
// does not exist, then applies environment overrides (highest precedence).
func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".gatekeep"),
		LogLevel:      "info",
		MaxConcurrent: 4,
		MaxSteps:      50,
	}
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.MaxContextTokens = 128000
	cfg.LLM.OutputReserve = 4096
	cfg.Checkpoint.Driver = CheckpointMemory
	cfg.Web.Addr = ":8080"

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Env overrides (highest precedence)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		cfg.Search.TavilyAPIKey = v
	}
	if v := os.Getenv("SERP_API_KEY"); v != "" {
		cfg.Search.SerpAPIKey = v
	}
	if v := os.Getenv("BRAVE_API_KEY"); v != "" {
		cfg.Search.BraveAPIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}

	if cfg.Checkpoint.Path == "" {
		cfg.Checkpoint.Path = filepath.Join(cfg.DataDir, "checkpoints.db")
	}

	return cfg, nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.LLM.APIKey = mask(c.LLM.APIKey)
	out.Search.TavilyAPIKey = mask(c.Search.TavilyAPIKey)
	out.Search.SerpAPIKey = mask(c.Search.SerpAPIKey)
	out.Search.BraveAPIKey = mask(c.Search.BraveAPIKey)
	out.Telegram.Token = mask(c.Telegram.Token)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
