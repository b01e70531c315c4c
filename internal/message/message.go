// SPDX-License-Identifier: AGPL-3.0-only

// Package message holds the provider-independent conversation model. The
// agent loop reads and writes these types only; translating them to and from
// vendor wire shapes is the provider package's job.
package message

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the sender of a canonical message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Type distinguishes how a message participates in the conversation.
type Type string

const (
	// TypeRequest is a user-facing turn sent to the model.
	TypeRequest Type = "request"
	// TypeResponse is an assistant turn translated from a provider response.
	TypeResponse Type = "response"
	// TypeIntermediate is model output re-injected as input without being
	// treated as a final answer.
	TypeIntermediate Type = "intermediate"
	// TypeToolResult carries the serialized output of a tool invocation.
	TypeToolResult Type = "tool_result"
)

// BlockType tags a content block variant.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
)

// allowedImageMIME is the fixed set of image types a binding may forward.
// Anything else is a hard translation error, never a silent drop.
var allowedImageMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AllowedImageMIME reports whether mimeType is in the image allow-list.
func AllowedImageMIME(mimeType string) bool {
	return allowedImageMIME[mimeType]
}

// ContentBlock is one tagged unit of message content.
type ContentBlock struct {
	Type     BlockType `json:"type"`
	Text     string    `json:"text,omitempty"`
	MIMEType string    `json:"mime_type,omitempty"`
	// Data is the base64 image payload. It may arrive with a
	// "data:<mime>;base64," prefix; bindings strip it before translation.
	Data string `json:"data,omitempty"`
}

// TextBlock creates a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ImageBlock creates an image content block.
func ImageBlock(mimeType, data string) ContentBlock {
	return ContentBlock{Type: BlockImage, MIMEType: mimeType, Data: data}
}

// StripDataURI removes a "data:<mime>;base64," prefix from an image payload,
// returning the raw base64 data unchanged when no prefix is present.
func StripDataURI(data string) string {
	if !strings.HasPrefix(data, "data:") {
		return data
	}
	if i := strings.Index(data, "base64,"); i >= 0 {
		return data[i+len("base64,"):]
	}
	return data
}

// ToolCallRequest is a model-issued request to invoke a named tool.
type ToolCallRequest struct {
	// ID is the provider-assigned correlation id.
	ID string `json:"id"`
	// CallID is a secondary correlation id some providers require; empty
	// when unused.
	CallID    string                 `json:"call_id,omitempty"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolCallResult is the tool executor's output for one invocation. ID must
// match the originating request's ID.
type ToolCallResult struct {
	ID                string                 `json:"id"`
	Content           interface{}            `json:"content"`
	StructuredContent map[string]interface{} `json:"structured_content,omitempty"`
}

// Body serializes the result so a provider that cannot parse structured
// fields still receives the raw text. StructuredContent defaults to an empty
// mapping.
func (r ToolCallResult) Body() (string, error) {
	structured := r.StructuredContent
	if structured == nil {
		structured = map[string]interface{}{}
	}
	out, err := json.Marshal(map[string]interface{}{
		"content":           r.Content,
		"structuredContent": structured,
	})
	if err != nil {
		return "", fmt.Errorf("serialize tool result %s: %w", r.ID, err)
	}
	return string(out), nil
}

// Message is a single canonical conversation turn. Messages are immutable
// once appended to a History.
type Message struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      Type           `json:"type"`
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	// Calls holds tool invocations extracted from a provider response.
	// Only set on assistant messages.
	Calls []ToolCallRequest `json:"calls,omitempty"`
}

// New creates a canonical message with a fresh id and timestamp.
func New(role Role, msgType Type, blocks ...ContentBlock) Message {
	return Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      msgType,
		Role:      role,
		Content:   blocks,
	}
}

// NewText creates a canonical message holding a single text block.
func NewText(role Role, msgType Type, text string) Message {
	return New(role, msgType, TextBlock(text))
}

// Text joins the message's text blocks, skipping images.
func (m Message) Text() string {
	var parts []string
	for _, b := range m.Content {
		if b.Type == BlockText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
