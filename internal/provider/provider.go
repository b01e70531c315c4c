// SPDX-License-Identifier: AGPL-3.0-only

// Package provider defines the adapter contract between the agent loop's
// canonical conversation model and a vendor chat-completion API, plus one
// concrete binding per vendor. The agent loop never sees vendor wire shapes:
// the type parameters pin them per binding, and everything crossing the
// contract in or out is canonical.
package provider

import (
	"context"

	"github.com/deckagent/deckagent/internal/message"
	"github.com/deckagent/deckagent/internal/tool"
)

// ModelConfig is the immutable per-adapter model configuration. It is fixed
// at adapter construction and never mutated afterward.
type ModelConfig struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	// Per-token rates used by Cost. Zero values are filled from the
	// pricing catalog at construction when the model is known.
	InputCostPerToken  float64
	OutputCostPerToken float64
	// StrictToolArguments rejects tool calls whose arguments the vendor
	// omitted instead of defaulting them to an empty mapping.
	StrictToolArguments bool
}

// RequestOptions overrides adapter defaults for a single request. Nil or
// zero fields keep the configured value; Temperature is a pointer because
// zero is a meaningful override.
type RequestOptions struct {
	Model       string
	MaxTokens   int64
	Temperature *float64
}

// apply resolves per-request overrides against the configured defaults.
func (c ModelConfig) apply(opts *RequestOptions) (model string, maxTokens int64, temperature float64) {
	model, maxTokens, temperature = c.Model, c.MaxTokens, c.Temperature
	if opts == nil {
		return
	}
	if opts.Model != "" {
		model = opts.Model
	}
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	return
}

// Adapter is the complete set of operations the agent loop needs from a
// vendor binding. M is the vendor's request message type, R its response
// type, T its advertised-tool type. A binding that omits an operation fails
// to compile against this interface.
//
// Every operation is either pure translation or a single network call; no
// operation orchestrates multiple steps. Adapters never retry and never
// suppress errors: vendor failures are tagged with the binding's identity
// and returned.
type Adapter[M, R, T any] interface {
	// Name returns the binding identity used in error tagging.
	Name() string

	// Config returns the immutable model configuration.
	Config() ModelConfig

	// GenerateResponse issues one non-streaming chat completion carrying
	// the configured model, token ceiling and temperature, with opts
	// overriding any of them per call.
	GenerateResponse(ctx context.Context, msgs []M, opts *RequestOptions) (R, error)

	// GenerateResponseWithTools is GenerateResponse with a tool list the
	// model may invoke zero or more times in one response.
	GenerateResponseWithTools(ctx context.Context, msgs []M, tools []T, opts *RequestOptions) (R, error)

	// FormatRequest translates canonical history into vendor messages.
	// Empty input is ErrEmptyConversation; unknown block types and
	// disallowed image MIME types are ErrUnsupportedContent.
	FormatRequest(msgs []message.Message) ([]M, error)

	// ExtractToolCalls pulls tool invocations out of a response. A
	// response without tool-use content yields an empty slice, not an
	// error; the only error case is strict argument checking.
	ExtractToolCalls(resp R) ([]message.ToolCallRequest, error)

	// FormatToolResult wraps one tool result into the vendor's tool-result
	// turn, tagged with the originating invocation id.
	FormatToolResult(res message.ToolCallResult) (M, error)

	// FormatToolList translates descriptors into the vendor's advertised
	// tool shape, substituting the empty-object schema where absent.
	FormatToolList(tools []tool.Descriptor) []T

	// IntermediateMessage extracts only the textual part of a response
	// into a canonical message tagged as an intermediate turn.
	IntermediateMessage(resp R) message.Message

	// NewContext returns a fresh, empty vendor-shaped context.
	NewContext() Context[M]

	// AppendResponse re-expresses a response as a vendor request turn and
	// returns the context with it appended. The input context is not
	// modified.
	AppendResponse(resp R, ctx Context[M]) (Context[M], error)

	// AppendCanonical appends the response as a canonical assistant
	// message (extracted text plus extracted tool calls) and returns the
	// grown history. The input history is not modified.
	AppendCanonical(resp R, msgType message.Type, hist message.History) (message.History, error)

	// Cost derives inputTokens*inputCost + outputTokens*outputCost from
	// the usage the vendor reported. Missing usage is ErrCostUnavailable,
	// never zero.
	Cost(resp R) (float64, error)
}
