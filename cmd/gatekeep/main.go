package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gatekeep/internal/agent"
	"github.com/user/gatekeep/internal/checkpoint"
	"github.com/user/gatekeep/internal/config"
	"github.com/user/gatekeep/internal/graph"
	"github.com/user/gatekeep/internal/tool"
	"github.com/user/gatekeep/internal/tool/tools"
	"github.com/user/gatekeep/pkg/llm"
	"github.com/user/gatekeep/pkg/llm/openai"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "gatekeep",
	Short: "Human-in-the-loop web search agent",
	Long:  "An LLM agent whose tool calls are gated behind human approval.\nRun 'gatekeep chat' for the terminal loop or 'gatekeep serve' for the web UI.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath,
		"config",
		filepath.Join(os.Getenv("HOME"), ".gatekeep", "config.json"),
		"config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildAgent assembles provider, tools, and checkpoint saver into an Agent.
// The returned closer releases the saver (non-nil only for sqlite).
func buildAgent(cfg *config.Config) (*agent.Agent, func() error, error) {
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	registry := tool.NewRegistry()
	registry.Register(tools.NewWebSearch(tools.SearchCredentials{
		TavilyAPIKey: cfg.Search.TavilyAPIKey,
		SerpAPIKey:   cfg.Search.SerpAPIKey,
		BraveAPIKey:  cfg.Search.BraveAPIKey,
	}))
	registry.Register(tools.NewReadURL())

	var saver graph.Saver
	closer := func() error { return nil }
	switch cfg.Checkpoint.Driver {
	case config.CheckpointMemory:
		saver = checkpoint.NewMemory()
	case config.CheckpointSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Checkpoint.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create checkpoint dir: %w", err)
		}
		db, err := checkpoint.NewSQLite(cfg.Checkpoint.Path)
		if err != nil {
			return nil, nil, err
		}
		saver = db
		closer = db.Close
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint driver %q", cfg.Checkpoint.Driver)
	}

	a, err := agent.New(provider, registry, saver,
		agent.WithMaxSteps(cfg.MaxSteps),
		agent.WithTokenWindow(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve),
	)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return a, closer, nil
}
