// SPDX-License-Identifier: AGPL-3.0-only
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/deckagent/deckagent/internal/errors"
	"github.com/deckagent/deckagent/internal/message"
	"github.com/deckagent/deckagent/internal/tool"
)

const (
	openaiName         = "openai"
	defaultOpenAIModel = "gpt-4o"
)

// OpenAI implements the Adapter contract over the Chat Completions API. It
// works against any OpenAI-compatible endpoint (Ollama, vLLM, Groq, LiteLLM)
// via a configurable base URL.
//
// Role remapping: none, the API has a first-class system role. Images are
// sent as image_url content parts; the URL is rebuilt as
// "data:<mime>;base64,<payload>" from the validated MIME type and the
// prefix-stripped payload, since the API only accepts URL-shaped references.
type OpenAI struct {
	client *openai.Client
	cfg    ModelConfig
}

var _ Adapter[openai.ChatCompletionMessageParamUnion, *openai.ChatCompletion, openai.ChatCompletionToolParam] = (*OpenAI)(nil)

// NewOpenAI creates the OpenAI binding. A missing API key refuses
// construction rather than failing on first use.
func NewOpenAI(apiKey, baseURL string, cfg ModelConfig) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.Configuration("OpenAI API key is not set")
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	cfg = fillPricing(cfg)

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, cfg: cfg}, nil
}

func (p *OpenAI) Name() string        { return openaiName }
func (p *OpenAI) Config() ModelConfig { return p.cfg }

func (p *OpenAI) GenerateResponse(ctx context.Context, msgs []openai.ChatCompletionMessageParamUnion, opts *RequestOptions) (*openai.ChatCompletion, error) {
	return p.generate(ctx, msgs, nil, opts)
}

func (p *OpenAI) GenerateResponseWithTools(ctx context.Context, msgs []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam, opts *RequestOptions) (*openai.ChatCompletion, error) {
	return p.generate(ctx, msgs, tools, opts)
}

func (p *OpenAI) generate(ctx context.Context, msgs []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam, opts *RequestOptions) (*openai.ChatCompletion, error) {
	model, maxTokens, temperature := p.cfg.apply(opts)

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(model),
		Messages:            msgs,
		MaxCompletionTokens: openai.Int(maxTokens),
		Temperature:         openai.Float(temperature),
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.ProviderRequest(openaiName, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.ProviderRequest(openaiName, fmt.Errorf("response contained no choices"))
	}
	return resp, nil
}

// FormatRequest translates canonical history into Chat Completions turns.
func (p *OpenAI) FormatRequest(msgs []message.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	if len(msgs) == 0 {
		return nil, errors.EmptyConversation(openaiName)
	}

	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		native, err := p.formatMessage(m)
		if err != nil {
			return nil, err
		}
		out = append(out, native)
	}
	return out, nil
}

func (p *OpenAI) formatMessage(m message.Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case message.RoleSystem:
		text, err := textOnly(m, "system")
		if err != nil {
			return openai.ChatCompletionMessageParamUnion{}, err
		}
		return openai.SystemMessage(text), nil

	case message.RoleUser:
		parts, hasImage, err := openaiParts(m)
		if err != nil {
			return openai.ChatCompletionMessageParamUnion{}, err
		}
		if !hasImage {
			return openai.UserMessage(m.Text()), nil
		}
		return openai.UserMessage(parts), nil

	case message.RoleAssistant:
		text, err := textOnly(m, "assistant")
		if err != nil {
			return openai.ChatCompletionMessageParamUnion{}, err
		}
		asst := openai.ChatCompletionAssistantMessageParam{}
		if text != "" {
			asst.Content.OfString = openai.String(text)
		}
		if len(m.Calls) > 0 {
			asst.ToolCalls = make([]openai.ChatCompletionMessageToolCallParam, len(m.Calls))
			for i, call := range m.Calls {
				args, err := marshalArguments(call.Arguments)
				if err != nil {
					return openai.ChatCompletionMessageParamUnion{}, err
				}
				asst.ToolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: string(args),
					},
				}
			}
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &asst}, nil

	default:
		return openai.ChatCompletionMessageParamUnion{}, errors.UnsupportedContent(openaiName, fmt.Sprintf("message role %q", m.Role))
	}
}

// openaiParts translates content blocks into user content parts, enforcing
// the image MIME allow-list.
func openaiParts(m message.Message) ([]openai.ChatCompletionContentPartUnionParam, bool, error) {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Content))
	hasImage := false
	for _, b := range m.Content {
		switch b.Type {
		case message.BlockText:
			parts = append(parts, openai.TextContentPart(b.Text))
		case message.BlockImage:
			if !message.AllowedImageMIME(b.MIMEType) {
				return nil, false, errors.UnsupportedContent(openaiName, fmt.Sprintf("image MIME type %q", b.MIMEType))
			}
			url := "data:" + b.MIMEType + ";base64," + message.StripDataURI(b.Data)
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
			hasImage = true
		default:
			return nil, false, errors.UnsupportedContent(openaiName, fmt.Sprintf("content block type %q", b.Type))
		}
	}
	return parts, hasImage, nil
}

// textOnly rejects image blocks in turns the API only accepts as text.
func textOnly(m message.Message, role string) (string, error) {
	for _, b := range m.Content {
		if b.Type == message.BlockImage {
			return "", errors.UnsupportedContent(openaiName, fmt.Sprintf("image content in %s turn", role))
		}
		if b.Type != message.BlockText {
			return "", errors.UnsupportedContent(openaiName, fmt.Sprintf("content block type %q", b.Type))
		}
	}
	return m.Text(), nil
}

// ExtractToolCalls pulls tool invocations out of the first choice. Zero tool
// calls is a normal outcome and yields an empty slice.
func (p *OpenAI) ExtractToolCalls(resp *openai.ChatCompletion) ([]message.ToolCallRequest, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, nil
	}
	var calls []message.ToolCallRequest
	for _, tc := range resp.Choices[0].Message.ToolCalls {
		args := map[string]interface{}{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, errors.UnsupportedContent(openaiName, fmt.Sprintf("tool %s arguments are not a JSON object: %v", tc.Function.Name, err))
			}
		} else if p.cfg.StrictToolArguments {
			return nil, errors.InvalidInput(fmt.Sprintf("tool call %s (%s) carried no arguments", tc.ID, tc.Function.Name))
		}
		calls = append(calls, message.ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return calls, nil
}

// FormatToolResult wraps a tool result as a tool turn correlated by the
// originating invocation id.
func (p *OpenAI) FormatToolResult(res message.ToolCallResult) (openai.ChatCompletionMessageParamUnion, error) {
	body, err := res.Body()
	if err != nil {
		return openai.ChatCompletionMessageParamUnion{}, err
	}
	return openai.ToolMessage(body, res.ID), nil
}

// FormatToolList translates descriptors into Chat Completions tool params.
func (p *OpenAI) FormatToolList(tools []tool.Descriptor) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Schema()),
			},
		}
	}
	return out
}

// IntermediateMessage extracts only the textual part of a response into a
// canonical intermediate turn.
func (p *OpenAI) IntermediateMessage(resp *openai.ChatCompletion) message.Message {
	return message.NewText(message.RoleAssistant, message.TypeIntermediate, openaiText(resp))
}

func openaiText(resp *openai.ChatCompletion) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

// NewContext returns a fresh, empty Chat Completions context.
func (p *OpenAI) NewContext() Context[openai.ChatCompletionMessageParamUnion] {
	return Context[openai.ChatCompletionMessageParamUnion]{}
}

// AppendResponse re-expresses the response as an assistant request turn and
// returns the grown context.
func (p *OpenAI) AppendResponse(resp *openai.ChatCompletion, ctx Context[openai.ChatCompletionMessageParamUnion]) (Context[openai.ChatCompletionMessageParamUnion], error) {
	if resp == nil || len(resp.Choices) == 0 {
		return ctx, errors.ProviderRequest(openaiName, fmt.Errorf("response contained no choices"))
	}
	msg := resp.Choices[0].Message

	asst := openai.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" {
		asst.Content.OfString = openai.String(msg.Content)
	}
	if len(msg.ToolCalls) > 0 {
		asst.ToolCalls = make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			args := tc.Function.Arguments
			if args == "" {
				args = "{}"
			}
			asst.ToolCalls[i] = openai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Function.Name,
					Arguments: args,
				},
			}
		}
	}
	return ctx.Append(openai.ChatCompletionMessageParamUnion{OfAssistant: &asst}), nil
}

// AppendCanonical appends the response as a canonical assistant message with
// extracted text and tool calls, returning the grown history.
func (p *OpenAI) AppendCanonical(resp *openai.ChatCompletion, msgType message.Type, hist message.History) (message.History, error) {
	calls, err := p.ExtractToolCalls(resp)
	if err != nil {
		return hist, err
	}
	msg := message.NewText(message.RoleAssistant, msgType, openaiText(resp))
	msg.Calls = calls
	return hist.Append(msg), nil
}

// Cost derives the request cost from the usage block. A response without
// usage counts is an explicit failure, never zero.
func (p *OpenAI) Cost(resp *openai.ChatCompletion) (float64, error) {
	if resp == nil || (resp.Usage.PromptTokens == 0 && resp.Usage.CompletionTokens == 0) {
		return 0, errors.CostUnavailable(openaiName)
	}
	return costFromTokens(p.cfg, resp.Usage.PromptTokens, resp.Usage.CompletionTokens), nil
}
