// SPDX-License-Identifier: AGPL-3.0-only
package message

import (
	"encoding/json"
	"testing"
)

func TestNewAssignsIDAndTimestamp(t *testing.T) {
	m := NewText(RoleUser, TypeRequest, "hello")

	if m.ID == "" {
		t.Error("Expected a non-empty message ID")
	}
	if m.Timestamp.IsZero() {
		t.Error("Expected a non-zero timestamp")
	}
	if m.Role != RoleUser {
		t.Errorf("Expected role 'user', got '%s'", m.Role)
	}
	if m.Type != TypeRequest {
		t.Errorf("Expected type 'request', got '%s'", m.Type)
	}
}

func TestNewAssignsUniqueIDs(t *testing.T) {
	a := NewText(RoleUser, TypeRequest, "a")
	b := NewText(RoleUser, TypeRequest, "b")
	if a.ID == b.ID {
		t.Errorf("Expected unique IDs, both were '%s'", a.ID)
	}
}

func TestTextJoinsTextBlocksOnly(t *testing.T) {
	m := New(RoleAssistant, TypeResponse,
		TextBlock("first"),
		ImageBlock("image/png", "aGVsbG8="),
		TextBlock("second"),
	)

	if got := m.Text(); got != "first\nsecond" {
		t.Errorf("Expected 'first\\nsecond', got '%s'", got)
	}
}

func TestAllowedImageMIME(t *testing.T) {
	for _, mime := range []string{"image/jpeg", "image/png", "image/gif", "image/webp"} {
		if !AllowedImageMIME(mime) {
			t.Errorf("Expected %s to be allowed", mime)
		}
	}
	for _, mime := range []string{"image/tiff", "image/bmp", "text/plain", ""} {
		if AllowedImageMIME(mime) {
			t.Errorf("Expected %s to be rejected", mime)
		}
	}
}

func TestStripDataURI(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"data:image/png;base64,aGVsbG8=", "aGVsbG8="},
		{"aGVsbG8=", "aGVsbG8="},
		{"data:image/jpeg;base64,", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := StripDataURI(tc.in); got != tc.want {
			t.Errorf("StripDataURI(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestToolCallResultBody(t *testing.T) {
	res := ToolCallResult{
		ID:                "call_1",
		Content:           []string{"slide created"},
		StructuredContent: map[string]interface{}{"slide_id": "s-3"},
	}

	body, err := res.Body()
	if err != nil {
		t.Fatalf("Body() returned error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		t.Fatalf("Body() produced invalid JSON: %v", err)
	}
	structured, ok := decoded["structuredContent"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected structuredContent object, got %T", decoded["structuredContent"])
	}
	if structured["slide_id"] != "s-3" {
		t.Errorf("Expected slide_id 's-3', got %v", structured["slide_id"])
	}
}

func TestToolCallResultBodyDefaultsStructuredContent(t *testing.T) {
	res := ToolCallResult{ID: "call_2", Content: "ok"}

	body, err := res.Body()
	if err != nil {
		t.Fatalf("Body() returned error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		t.Fatalf("Body() produced invalid JSON: %v", err)
	}
	structured, ok := decoded["structuredContent"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected structuredContent object, got %T", decoded["structuredContent"])
	}
	if len(structured) != 0 {
		t.Errorf("Expected empty structuredContent, got %v", structured)
	}
}

func TestHistoryAppendIsImmutable(t *testing.T) {
	base := History{}.Append(NewText(RoleUser, TypeRequest, "one"))
	grown := base.Append(NewText(RoleAssistant, TypeResponse, "two"))

	if base.Len() != 1 {
		t.Errorf("Expected base history to stay at 1 message, got %d", base.Len())
	}
	if grown.Len() != 2 {
		t.Errorf("Expected grown history to have 2 messages, got %d", grown.Len())
	}
}

func TestHistoryMessagesReturnsCopy(t *testing.T) {
	h := History{}.Append(NewText(RoleUser, TypeRequest, "one"))

	msgs := h.Messages()
	msgs[0].Content = nil

	if got := h.Messages()[0].Text(); got != "one" {
		t.Errorf("Expected history to be unaffected by caller mutation, got '%s'", got)
	}
}

func TestHistoryLast(t *testing.T) {
	var h History
	if _, ok := h.Last(); ok {
		t.Error("Expected Last to report false on empty history")
	}

	h = h.Append(NewText(RoleUser, TypeRequest, "one"), NewText(RoleAssistant, TypeResponse, "two"))
	last, ok := h.Last()
	if !ok {
		t.Fatal("Expected Last to report true")
	}
	if last.Text() != "two" {
		t.Errorf("Expected last message 'two', got '%s'", last.Text())
	}
}
