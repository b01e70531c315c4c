// SPDX-License-Identifier: AGPL-3.0-only
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/deckagent/deckagent/internal/errors"
	"github.com/deckagent/deckagent/internal/message"
	"github.com/deckagent/deckagent/internal/tool"
)

const (
	anthropicName         = "anthropic"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	defaultMaxTokens      = 4096
)

// Anthropic implements the Adapter contract over the Anthropic Messages API.
//
// Role remapping: Anthropic has no message-level system turn, so canonical
// system messages are demoted to user turns during translation. Tool results
// travel as user messages carrying a tool_result block, per the Messages API.
type Anthropic struct {
	client *anthropic.Client
	cfg    ModelConfig
}

var _ Adapter[anthropic.MessageParam, *anthropic.Message, anthropic.ToolUnionParam] = (*Anthropic)(nil)

// NewAnthropic creates the Anthropic binding. A missing API key refuses
// construction rather than failing on first use.
func NewAnthropic(apiKey string, cfg ModelConfig) (*Anthropic, error) {
	if apiKey == "" {
		return nil, errors.Configuration("Anthropic API key is not set")
	}
	if cfg.Model == "" {
		cfg.Model = defaultAnthropicModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	cfg = fillPricing(cfg)

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Anthropic{client: &client, cfg: cfg}, nil
}

func (p *Anthropic) Name() string       { return anthropicName }
func (p *Anthropic) Config() ModelConfig { return p.cfg }

func (p *Anthropic) GenerateResponse(ctx context.Context, msgs []anthropic.MessageParam, opts *RequestOptions) (*anthropic.Message, error) {
	return p.generate(ctx, msgs, nil, opts)
}

func (p *Anthropic) GenerateResponseWithTools(ctx context.Context, msgs []anthropic.MessageParam, tools []anthropic.ToolUnionParam, opts *RequestOptions) (*anthropic.Message, error) {
	return p.generate(ctx, msgs, tools, opts)
}

func (p *Anthropic) generate(ctx context.Context, msgs []anthropic.MessageParam, tools []anthropic.ToolUnionParam, opts *RequestOptions) (*anthropic.Message, error) {
	model, maxTokens, temperature := p.cfg.apply(opts)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		Messages:    msgs,
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.ProviderRequest(anthropicName, err)
	}
	return resp, nil
}

// FormatRequest translates canonical history into Messages API turns.
func (p *Anthropic) FormatRequest(msgs []message.Message) ([]anthropic.MessageParam, error) {
	if len(msgs) == 0 {
		return nil, errors.EmptyConversation(anthropicName)
	}

	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks, err := anthropicBlocks(m)
		if err != nil {
			return nil, err
		}

		switch m.Role {
		case message.RoleUser, message.RoleSystem:
			// System demoted to user: no message-level system turn here.
			out = append(out, anthropic.NewUserMessage(blocks...))
		case message.RoleAssistant:
			for _, call := range m.Calls {
				input, err := marshalArguments(call.Arguments)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    call.ID,
						Name:  call.Name,
						Input: input,
					},
				})
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, errors.UnsupportedContent(anthropicName, fmt.Sprintf("message role %q", m.Role))
		}
	}
	return out, nil
}

// anthropicBlocks translates canonical content blocks, enforcing the image
// MIME allow-list and stripping any data-URI prefix from payloads.
func anthropicBlocks(m message.Message) ([]anthropic.ContentBlockParamUnion, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
	for _, b := range m.Content {
		switch b.Type {
		case message.BlockText:
			blocks = append(blocks, anthropic.NewTextBlock(b.Text))
		case message.BlockImage:
			if !message.AllowedImageMIME(b.MIMEType) {
				return nil, errors.UnsupportedContent(anthropicName, fmt.Sprintf("image MIME type %q", b.MIMEType))
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(b.MIMEType, message.StripDataURI(b.Data)))
		default:
			return nil, errors.UnsupportedContent(anthropicName, fmt.Sprintf("content block type %q", b.Type))
		}
	}
	return blocks, nil
}

func marshalArguments(args map[string]interface{}) (json.RawMessage, error) {
	if args == nil {
		return json.RawMessage("{}"), nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal tool arguments: %w", err)
	}
	return raw, nil
}

// ExtractToolCalls scans the response for tool_use blocks. Zero tool calls is
// a normal outcome and yields an empty slice.
func (p *Anthropic) ExtractToolCalls(resp *anthropic.Message) ([]message.ToolCallRequest, error) {
	if resp == nil {
		return nil, nil
	}
	var calls []message.ToolCallRequest
	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}
		tu := block.AsToolUse()
		args := map[string]interface{}{}
		if len(tu.Input) > 0 {
			if err := json.Unmarshal(tu.Input, &args); err != nil {
				return nil, errors.UnsupportedContent(anthropicName, fmt.Sprintf("tool %s arguments are not a JSON object: %v", tu.Name, err))
			}
		} else if p.cfg.StrictToolArguments {
			return nil, errors.InvalidInput(fmt.Sprintf("tool call %s (%s) carried no arguments", tu.ID, tu.Name))
		}
		calls = append(calls, message.ToolCallRequest{
			ID:        tu.ID,
			Name:      tu.Name,
			Arguments: args,
		})
	}
	return calls, nil
}

// FormatToolResult wraps a tool result as a user turn carrying a tool_result
// block correlated by the originating invocation id.
func (p *Anthropic) FormatToolResult(res message.ToolCallResult) (anthropic.MessageParam, error) {
	body, err := res.Body()
	if err != nil {
		return anthropic.MessageParam{}, err
	}
	return anthropic.NewUserMessage(anthropic.NewToolResultBlock(res.ID, body, false)), nil
}

// FormatToolList translates descriptors into Messages API tool params.
func (p *Anthropic) FormatToolList(tools []tool.Descriptor) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		schema := t.Schema()
		props, _ := schema["properties"].(map[string]interface{})
		if props == nil {
			props = map[string]interface{}{}
		}
		var required []string
		if req, ok := schema["required"].([]interface{}); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}
		if req, ok := schema["required"].([]string); ok {
			required = req
		}

		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		}
	}
	return out
}

// IntermediateMessage extracts only the textual part of a response into a
// canonical intermediate turn.
func (p *Anthropic) IntermediateMessage(resp *anthropic.Message) message.Message {
	return message.NewText(message.RoleAssistant, message.TypeIntermediate, anthropicText(resp))
}

func anthropicText(resp *anthropic.Message) string {
	if resp == nil {
		return ""
	}
	text := ""
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += block.AsText().Text
	}
	return text
}

// NewContext returns a fresh, empty Messages API context.
func (p *Anthropic) NewContext() Context[anthropic.MessageParam] {
	return Context[anthropic.MessageParam]{}
}

// AppendResponse re-expresses the response as an assistant request turn and
// returns the grown context.
func (p *Anthropic) AppendResponse(resp *anthropic.Message, ctx Context[anthropic.MessageParam]) (Context[anthropic.MessageParam], error) {
	if resp == nil {
		return ctx, errors.ProviderRequest(anthropicName, fmt.Errorf("nil response"))
	}
	var blocks []anthropic.ContentBlockParamUnion
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			blocks = append(blocks, anthropic.NewTextBlock(block.AsText().Text))
		case "tool_use":
			tu := block.AsToolUse()
			input := tu.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    tu.ID,
					Name:  tu.Name,
					Input: input,
				},
			})
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(""))
	}
	return ctx.Append(anthropic.NewAssistantMessage(blocks...)), nil
}

// AppendCanonical appends the response as a canonical assistant message with
// extracted text and tool calls, returning the grown history.
func (p *Anthropic) AppendCanonical(resp *anthropic.Message, msgType message.Type, hist message.History) (message.History, error) {
	calls, err := p.ExtractToolCalls(resp)
	if err != nil {
		return hist, err
	}
	msg := message.NewText(message.RoleAssistant, msgType, anthropicText(resp))
	msg.Calls = calls
	return hist.Append(msg), nil
}

// Cost derives the request cost from the usage block. A response without
// usage counts is an explicit failure, never zero.
func (p *Anthropic) Cost(resp *anthropic.Message) (float64, error) {
	if resp == nil || (resp.Usage.InputTokens == 0 && resp.Usage.OutputTokens == 0) {
		return 0, errors.CostUnavailable(anthropicName)
	}
	return costFromTokens(p.cfg, resp.Usage.InputTokens, resp.Usage.OutputTokens), nil
}
