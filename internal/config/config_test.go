// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Name != "deckagent" {
		t.Errorf("Expected server name deckagent, got %s", cfg.Server.Name)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.TransportMode != "stdio" {
		t.Errorf("Expected default transport stdio, got %s", cfg.Server.TransportMode)
	}
	if cfg.AI.Provider != "openai" {
		t.Errorf("Expected default provider openai, got %s", cfg.AI.Provider)
	}
	if cfg.AI.MaxTokens != 4096 {
		t.Errorf("Expected default max tokens 4096, got %d", cfg.AI.MaxTokens)
	}
	if cfg.AI.MaxToolIterations != 20 {
		t.Errorf("Expected default max tool iterations 20, got %d", cfg.AI.MaxToolIterations)
	}
	if cfg.AI.StrictToolArguments {
		t.Error("Expected strict tool arguments to default off")
	}
	if cfg.Scheduler.JobRunTimeout != 10*time.Minute {
		t.Errorf("Expected default job run timeout 10m, got %v", cfg.Scheduler.JobRunTimeout)
	}
	if cfg.Database.Path == "" {
		t.Error("Expected a default database path")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DECKAGENT_PORT", "9090")
	t.Setenv("DECKAGENT_AI_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("DECKAGENT_AI_TEMPERATURE", "0.2")
	t.Setenv("DECKAGENT_AI_STRICT_TOOL_ARGS", "true")
	t.Setenv("DECKAGENT_AI_MAX_TOKENS", "8192")

	cfg := DefaultConfig()
	FromEnv(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.AI.Provider != "anthropic" {
		t.Errorf("Expected provider anthropic, got %s", cfg.AI.Provider)
	}
	if cfg.AI.AnthropicAPIKey != "sk-ant-test" {
		t.Errorf("Expected anthropic key from env, got %s", cfg.AI.AnthropicAPIKey)
	}
	if cfg.AI.Temperature != 0.2 {
		t.Errorf("Expected temperature 0.2, got %v", cfg.AI.Temperature)
	}
	if !cfg.AI.StrictToolArguments {
		t.Error("Expected strict tool arguments enabled")
	}
	if cfg.AI.MaxTokens != 8192 {
		t.Errorf("Expected max tokens 8192, got %d", cfg.AI.MaxTokens)
	}
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("DECKAGENT_PORT", "not-a-number")
	t.Setenv("DECKAGENT_AI_TEMPERATURE", "warm")

	cfg := DefaultConfig()
	FromEnv(cfg)

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected malformed port to be ignored, got %d", cfg.Server.Port)
	}
	if cfg.AI.Temperature != 0.7 {
		t.Errorf("Expected malformed temperature to be ignored, got %v", cfg.AI.Temperature)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"bad transport", func(c *Config) { c.Server.TransportMode = "http" }},
		{"bad provider", func(c *Config) { c.AI.Provider = "gemini" }},
		{"zero max tokens", func(c *Config) { c.AI.MaxTokens = 0 }},
		{"negative temperature", func(c *Config) { c.AI.Temperature = -0.1 }},
		{"temperature too high", func(c *Config) { c.AI.Temperature = 2.5 }},
		{"zero iterations", func(c *Config) { c.AI.MaxToolIterations = 0 }},
		{"zero timeout", func(c *Config) { c.Scheduler.JobRunTimeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tc.name)
			}
		})
	}
}

func TestValidateAcceptsEmptyProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AI.Provider = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected empty provider to validate (defaults to openai), got %v", err)
	}
}
