// SPDX-License-Identifier: AGPL-3.0-only

package conversation

import (
	"context"
	std "errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/deckagent/deckagent/internal/config"
	"github.com/deckagent/deckagent/internal/errors"
	"github.com/deckagent/deckagent/internal/message"
	"github.com/deckagent/deckagent/internal/provider"
	"github.com/deckagent/deckagent/internal/tool"
)

// fakeResp stands in for a vendor response object.
type fakeResp struct {
	text  string
	calls []message.ToolCallRequest
	in    int64
	out   int64
}

// fakeAdapter is a scriptable Adapter over plain strings. Failure modes
// are injected per phase so tests can break a cycle at any step.
type fakeAdapter struct {
	resp      fakeResp
	genErr    error
	costErr   error
	appendErr error
	genCalls  int
	lastTools []string
}

var _ provider.Adapter[string, fakeResp, string] = (*fakeAdapter)(nil)

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Config() provider.ModelConfig {
	return provider.ModelConfig{Model: "fake-1", MaxTokens: 64}
}

func (f *fakeAdapter) GenerateResponse(_ context.Context, msgs []string, _ *provider.RequestOptions) (fakeResp, error) {
	f.genCalls++
	f.lastTools = nil
	if len(msgs) == 0 {
		return fakeResp{}, errors.EmptyConversation(f.Name())
	}
	if f.genErr != nil {
		return fakeResp{}, f.genErr
	}
	return f.resp, nil
}

func (f *fakeAdapter) GenerateResponseWithTools(ctx context.Context, msgs []string, tools []string, opts *provider.RequestOptions) (fakeResp, error) {
	resp, err := f.GenerateResponse(ctx, msgs, opts)
	f.lastTools = tools
	return resp, err
}

func (f *fakeAdapter) FormatRequest(msgs []message.Message) ([]string, error) {
	if len(msgs) == 0 {
		return nil, errors.EmptyConversation(f.Name())
	}
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m.Role)+":"+m.Text())
	}
	return out, nil
}

func (f *fakeAdapter) ExtractToolCalls(r fakeResp) ([]message.ToolCallRequest, error) {
	return r.calls, nil
}

func (f *fakeAdapter) FormatToolResult(res message.ToolCallResult) (string, error) {
	body, err := res.Body()
	if err != nil {
		return "", err
	}
	return "tool:" + res.ID + ":" + body, nil
}

func (f *fakeAdapter) FormatToolList(tools []tool.Descriptor) []string {
	out := make([]string, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Name)
	}
	return out
}

func (f *fakeAdapter) IntermediateMessage(r fakeResp) message.Message {
	return message.NewText(message.RoleAssistant, message.TypeIntermediate, r.text)
}

func (f *fakeAdapter) NewContext() provider.Context[string] {
	return provider.Context[string]{}
}

func (f *fakeAdapter) AppendResponse(r fakeResp, c provider.Context[string]) (provider.Context[string], error) {
	if f.appendErr != nil {
		return provider.Context[string]{}, f.appendErr
	}
	return c.Append("assistant:" + r.text), nil
}

func (f *fakeAdapter) AppendCanonical(r fakeResp, msgType message.Type, h message.History) (message.History, error) {
	m := message.NewText(message.RoleAssistant, msgType, r.text)
	m.Calls = r.calls
	return h.Append(m), nil
}

func (f *fakeAdapter) Cost(r fakeResp) (float64, error) {
	if f.costErr != nil {
		return 0, f.costErr
	}
	return float64(r.in)*0.001 + float64(r.out)*0.002, nil
}

func newTestSession(f *fakeAdapter) *Session[string, fakeResp, string] {
	return NewSession[string, fakeResp, string](f)
}

func userMsg(text string) message.Message {
	return message.NewText(message.RoleUser, message.TypeRequest, text)
}

func TestSendCommitsBothContexts(t *testing.T) {
	fake := &fakeAdapter{resp: fakeResp{text: "three slides, dark theme", in: 100, out: 50}}
	s := newTestSession(fake)

	reply, err := s.Send(context.Background(), userMsg("design a deck"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if reply.Text() != "three slides, dark theme" {
		t.Errorf("Expected reply text from response, got %q", reply.Text())
	}
	if reply.Type != message.TypeResponse {
		t.Errorf("Expected response type, got %s", reply.Type)
	}

	if got := s.History().Len(); got != 2 {
		t.Fatalf("Expected 2 canonical messages, got %d", got)
	}
	msgs := s.History().Messages()
	if msgs[0].Role != message.RoleUser || msgs[1].Role != message.RoleAssistant {
		t.Errorf("Expected user then assistant, got %s then %s", msgs[0].Role, msgs[1].Role)
	}
}

func TestSendAccumulatesCost(t *testing.T) {
	fake := &fakeAdapter{resp: fakeResp{text: "ok", in: 100, out: 50}}
	s := newTestSession(fake)

	if _, err := s.Send(context.Background(), userMsg("one")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, err := s.Send(context.Background(), userMsg("two")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// 100*0.001 + 50*0.002 = 0.2 per cycle.
	if got := s.TotalCost(); math.Abs(got-0.4) > 1e-9 {
		t.Errorf("Expected accumulated cost 0.4, got %v", got)
	}
}

func TestFailedCallLeavesContextsUntouched(t *testing.T) {
	fake := &fakeAdapter{resp: fakeResp{text: "ok", in: 10, out: 10}}
	s := newTestSession(fake)
	if _, err := s.Send(context.Background(), userMsg("seed")); err != nil {
		t.Fatalf("seeding Send failed: %v", err)
	}

	histBefore := s.History().Messages()
	nativeBefore := s.native.Turns()
	costBefore := s.TotalCost()

	fake.genErr = errors.ProviderRequest("fake", std.New("boom"))
	if _, err := s.Send(context.Background(), userMsg("next")); !std.Is(err, errors.ErrProviderRequest) {
		t.Fatalf("Expected provider request error, got %v", err)
	}

	if !reflect.DeepEqual(s.History().Messages(), histBefore) {
		t.Error("Expected canonical history to be unchanged after a failed call")
	}
	if !reflect.DeepEqual(s.native.Turns(), nativeBefore) {
		t.Error("Expected native context to be unchanged after a failed call")
	}
	if s.TotalCost() != costBefore {
		t.Errorf("Expected cost unchanged at %v, got %v", costBefore, s.TotalCost())
	}
}

func TestMissingCostAbortsCycle(t *testing.T) {
	fake := &fakeAdapter{
		resp:    fakeResp{text: "ok"},
		costErr: errors.CostUnavailable("fake"),
	}
	s := newTestSession(fake)

	_, err := s.Send(context.Background(), userMsg("hi"))
	if !std.Is(err, errors.ErrCostUnavailable) {
		t.Fatalf("Expected cost unavailable error, got %v", err)
	}
	if s.History().Len() != 0 {
		t.Error("Expected no canonical commit when cost extraction fails")
	}
	if s.native.Len() != 0 {
		t.Error("Expected no native commit when cost extraction fails")
	}
}

func TestContinueOnEmptySessionFails(t *testing.T) {
	s := newTestSession(&fakeAdapter{})
	_, _, err := s.Continue(context.Background(), nil)
	if !std.Is(err, errors.ErrEmptyConversation) {
		t.Errorf("Expected empty conversation error, got %v", err)
	}
}

func TestSendWithToolsSurfacesCalls(t *testing.T) {
	calls := []message.ToolCallRequest{
		{ID: "call-1", Name: "create_slide", Arguments: map[string]interface{}{"title": "Intro"}},
	}
	fake := &fakeAdapter{resp: fakeResp{text: "making a slide", calls: calls, in: 1, out: 1}}
	s := newTestSession(fake)

	roster := []tool.Descriptor{{Name: "create_slide"}, {Name: "set_theme"}}
	reply, got, err := s.SendWithTools(context.Background(), userMsg("build it"), roster)
	if err != nil {
		t.Fatalf("SendWithTools failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "create_slide" {
		t.Fatalf("Expected one create_slide call, got %+v", got)
	}
	if reply.Type != message.TypeIntermediate {
		t.Errorf("Expected intermediate type when calls are present, got %s", reply.Type)
	}
	if !reflect.DeepEqual(fake.lastTools, []string{"create_slide", "set_theme"}) {
		t.Errorf("Expected tool roster forwarded to the adapter, got %v", fake.lastTools)
	}
}

func TestPushToolResultAppendsWithoutProviderCall(t *testing.T) {
	fake := &fakeAdapter{resp: fakeResp{text: "ok", in: 1, out: 1}}
	s := newTestSession(fake)
	if _, err := s.Send(context.Background(), userMsg("seed")); err != nil {
		t.Fatalf("seeding Send failed: %v", err)
	}
	genBefore := fake.genCalls

	res := message.ToolCallResult{ID: "call-1", Content: "slide created"}
	if err := s.PushToolResult(res); err != nil {
		t.Fatalf("PushToolResult failed: %v", err)
	}

	if fake.genCalls != genBefore {
		t.Error("Expected no provider call from PushToolResult")
	}
	last, ok := s.History().Last()
	if !ok {
		t.Fatal("Expected a message in history")
	}
	if last.Type != message.TypeToolResult || last.Role != message.RoleUser {
		t.Errorf("Expected user tool_result message, got %s/%s", last.Role, last.Type)
	}
	if !strings.Contains(last.Text(), "slide created") {
		t.Errorf("Expected tool body in canonical message, got %q", last.Text())
	}
	turns := s.native.Turns()
	if got := turns[len(turns)-1]; !strings.HasPrefix(got, "tool:call-1:") {
		t.Errorf("Expected native tool turn, got %q", got)
	}
}

func TestContinueAfterToolResult(t *testing.T) {
	fake := &fakeAdapter{resp: fakeResp{text: "done", in: 1, out: 1}}
	s := newTestSession(fake)
	if _, err := s.Send(context.Background(), userMsg("seed")); err != nil {
		t.Fatalf("seeding Send failed: %v", err)
	}
	if err := s.PushToolResult(message.ToolCallResult{ID: "c1", Content: "ok"}); err != nil {
		t.Fatalf("PushToolResult failed: %v", err)
	}

	reply, calls, err := s.Continue(context.Background(), nil)
	if err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("Expected no tool calls, got %d", len(calls))
	}
	if reply.Text() != "done" {
		t.Errorf("Expected final reply, got %q", reply.Text())
	}
	// seed user + assistant + tool result + assistant
	if got := s.History().Len(); got != 4 {
		t.Errorf("Expected 4 canonical messages, got %d", got)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AI.Provider = "anthropic"
	cfg.AI.APIKey = "sk-shared"

	conv, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if conv.Provider() != "anthropic" {
		t.Errorf("Expected anthropic, got %s", conv.Provider())
	}

	cfg = config.DefaultConfig()
	cfg.AI.Provider = ""
	cfg.AI.OpenAIAPIKey = "sk-openai"
	conv, err = New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if conv.Provider() != "openai" {
		t.Errorf("Expected openai as the default provider, got %s", conv.Provider())
	}
}

func TestNewWithoutCredentialsFails(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AI.Provider = "anthropic"
	if _, err := New(cfg); !std.Is(err, errors.ErrConfiguration) {
		t.Errorf("Expected configuration error without a key, got %v", err)
	}
}
