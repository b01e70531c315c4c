// SPDX-License-Identifier: AGPL-3.0-only

// Package config holds process-wide configuration: defaults, environment
// overrides and validation. Precedence is defaults < environment < flags,
// wired up in cmd/deckagent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Logging   LoggingConfig
	Scheduler SchedulerConfig
	Database  DatabaseConfig
}

// ServerConfig configures the MCP management server.
type ServerConfig struct {
	Name          string
	Version       string
	Address       string
	Port          int
	TransportMode string // "sse" or "stdio"
}

// AIConfig configures the provider adapter layer.
type AIConfig struct {
	// Provider selects the binding: "openai" (default) or "anthropic".
	Provider string
	// APIKey is the shared fallback credential; the per-provider keys
	// below take precedence when set.
	APIKey          string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	// BaseURL overrides the OpenAI endpoint for compatible servers
	// (Ollama, vLLM, Groq, LiteLLM).
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
	// Per-token rates; zero means "look up the pricing catalog".
	InputCostPerToken  float64
	OutputCostPerToken float64
	// StrictToolArguments rejects tool calls whose arguments the model
	// omitted instead of defaulting them to an empty mapping.
	StrictToolArguments bool
	MaxToolIterations   int
	MCPConfigFilePath   string
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level    string
	FilePath string
}

// SchedulerConfig configures recurring design jobs.
type SchedulerConfig struct {
	JobRunTimeout time.Duration
}

// DatabaseConfig configures run-history persistence.
type DatabaseConfig struct {
	Path string
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Server: ServerConfig{
			Name:          "deckagent",
			Version:       "1.0.0",
			Address:       "localhost",
			Port:          8080,
			TransportMode: "stdio",
		},
		AI: AIConfig{
			Provider:          "openai",
			Model:             "", // binding default
			MaxTokens:         4096,
			Temperature:       0.7,
			MaxToolIterations: 20,
			MCPConfigFilePath: filepath.Join(home, ".deckagent", "mcp.json"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Scheduler: SchedulerConfig{
			JobRunTimeout: 10 * time.Minute,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(home, ".deckagent", "runs.db"),
		},
	}
}

// FromEnv overrides cfg with environment variables.
func FromEnv(cfg *Config) {
	setString(&cfg.Server.Address, "DECKAGENT_ADDRESS")
	setInt(&cfg.Server.Port, "DECKAGENT_PORT")
	setString(&cfg.Server.TransportMode, "DECKAGENT_TRANSPORT")

	setString(&cfg.AI.Provider, "DECKAGENT_AI_PROVIDER")
	setString(&cfg.AI.APIKey, "DECKAGENT_API_KEY")
	setString(&cfg.AI.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.AI.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.AI.BaseURL, "DECKAGENT_AI_BASE_URL")
	setString(&cfg.AI.Model, "DECKAGENT_AI_MODEL")
	setInt64(&cfg.AI.MaxTokens, "DECKAGENT_AI_MAX_TOKENS")
	setFloat(&cfg.AI.Temperature, "DECKAGENT_AI_TEMPERATURE")
	setFloat(&cfg.AI.InputCostPerToken, "DECKAGENT_AI_INPUT_COST")
	setFloat(&cfg.AI.OutputCostPerToken, "DECKAGENT_AI_OUTPUT_COST")
	setBool(&cfg.AI.StrictToolArguments, "DECKAGENT_AI_STRICT_TOOL_ARGS")
	setInt(&cfg.AI.MaxToolIterations, "DECKAGENT_AI_MAX_ITERATIONS")
	setString(&cfg.AI.MCPConfigFilePath, "DECKAGENT_MCP_CONFIG")

	setString(&cfg.Logging.Level, "DECKAGENT_LOG_LEVEL")
	setString(&cfg.Logging.FilePath, "DECKAGENT_LOG_FILE")

	setString(&cfg.Database.Path, "DECKAGENT_DB_PATH")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks the configuration for values that cannot work. Credential
// presence is deliberately not checked here; the provider bindings refuse
// construction themselves so the error carries the provider identity.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	switch c.Server.TransportMode {
	case "sse", "stdio":
	default:
		return fmt.Errorf("invalid transport mode: %s (must be sse or stdio)", c.Server.TransportMode)
	}
	switch strings.ToLower(c.AI.Provider) {
	case "", "openai", "anthropic":
	default:
		return fmt.Errorf("invalid AI provider: %s (must be openai or anthropic)", c.AI.Provider)
	}
	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("invalid max tokens: %d", c.AI.MaxTokens)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("invalid temperature: %v (must be in [0, 2])", c.AI.Temperature)
	}
	if c.AI.MaxToolIterations <= 0 {
		return fmt.Errorf("invalid max tool iterations: %d", c.AI.MaxToolIterations)
	}
	if c.Scheduler.JobRunTimeout <= 0 {
		return fmt.Errorf("invalid job run timeout: %v", c.Scheduler.JobRunTimeout)
	}
	return nil
}
