// SPDX-License-Identifier: AGPL-3.0-only

// Package conversation keeps a running exchange with one provider binding.
// A session owns two buffers held in step: the provider-native message
// context sent on the wire and the canonical history the rest of the
// process reads. Both are value types, so a failed provider cycle commits
// nothing; callers only ever observe the state before the call or the
// state after a fully successful one.
package conversation

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/deckagent/deckagent/internal/config"
	"github.com/deckagent/deckagent/internal/errors"
	"github.com/deckagent/deckagent/internal/message"
	"github.com/deckagent/deckagent/internal/provider"
	"github.com/deckagent/deckagent/internal/tool"
	"github.com/openai/openai-go"
)

// Conversation is the provider-neutral surface the agent loop drives.
// Implementations hide the native message shapes of their binding.
type Conversation interface {
	// Provider names the binding, "anthropic" or "openai".
	Provider() string
	// Send appends msg to both contexts and requests a completion.
	Send(ctx context.Context, msg message.Message) (message.Message, error)
	// SendWithTools is Send with a tool roster advertised to the model.
	// The returned requests are empty when the model answered directly.
	SendWithTools(ctx context.Context, msg message.Message, tools []tool.Descriptor) (message.Message, []message.ToolCallRequest, error)
	// PushToolResult appends a tool outcome to both contexts without
	// calling the provider.
	PushToolResult(res message.ToolCallResult) error
	// Continue requests a completion over the accumulated contexts,
	// typically after PushToolResult. It fails on an empty session.
	Continue(ctx context.Context, tools []tool.Descriptor) (message.Message, []message.ToolCallRequest, error)
	// History returns the canonical transcript.
	History() message.History
	// TotalCost returns the accumulated spend in USD across all
	// committed cycles.
	TotalCost() float64
}

// New builds a conversation for the provider named in cfg. Per-provider
// credentials win over the shared AI.APIKey fallback.
func New(cfg *config.Config) (Conversation, error) {
	mc := provider.ModelConfig{
		Model:               cfg.AI.Model,
		MaxTokens:           cfg.AI.MaxTokens,
		Temperature:         cfg.AI.Temperature,
		InputCostPerToken:   cfg.AI.InputCostPerToken,
		OutputCostPerToken:  cfg.AI.OutputCostPerToken,
		StrictToolArguments: cfg.AI.StrictToolArguments,
	}

	switch strings.ToLower(cfg.AI.Provider) {
	case "anthropic":
		key := cfg.AI.AnthropicAPIKey
		if key == "" {
			key = cfg.AI.APIKey
		}
		a, err := provider.NewAnthropic(key, mc)
		if err != nil {
			return nil, err
		}
		return NewSession[anthropic.MessageParam, *anthropic.Message, anthropic.ToolUnionParam](a), nil
	case "", "openai":
		key := cfg.AI.OpenAIAPIKey
		if key == "" {
			key = cfg.AI.APIKey
		}
		o, err := provider.NewOpenAI(key, cfg.AI.BaseURL, mc)
		if err != nil {
			return nil, err
		}
		return NewSession[openai.ChatCompletionMessageParamUnion, *openai.ChatCompletion, openai.ChatCompletionToolParam](o), nil
	default:
		return nil, errors.Configuration("unknown AI provider: " + cfg.AI.Provider)
	}
}
