// SPDX-License-Identifier: AGPL-3.0-only

package conversation

import (
	"context"

	"github.com/deckagent/deckagent/internal/errors"
	"github.com/deckagent/deckagent/internal/message"
	"github.com/deckagent/deckagent/internal/provider"
	"github.com/deckagent/deckagent/internal/tool"
)

// Session binds one adapter to one pair of message buffers. The type
// parameters pin the adapter's native message, response and tool shapes
// so they never leak past this package.
//
// Mutating operations work on candidate copies of both buffers and assign
// them back only once every step of the cycle has succeeded, including
// cost extraction. A session is not safe for concurrent use; each agent
// run owns its own.
type Session[M, R, T any] struct {
	adapter   provider.Adapter[M, R, T]
	native    provider.Context[M]
	history   message.History
	totalCost float64
}

// NewSession wraps an adapter in an empty session.
func NewSession[M, R, T any](a provider.Adapter[M, R, T]) *Session[M, R, T] {
	return &Session[M, R, T]{
		adapter: a,
		native:  a.NewContext(),
	}
}

func (s *Session[M, R, T]) Provider() string {
	return s.adapter.Name()
}

func (s *Session[M, R, T]) History() message.History {
	return s.history
}

func (s *Session[M, R, T]) TotalCost() float64 {
	return s.totalCost
}

func (s *Session[M, R, T]) Send(ctx context.Context, msg message.Message) (message.Message, error) {
	reply, _, err := s.send(ctx, msg, nil)
	return reply, err
}

func (s *Session[M, R, T]) SendWithTools(ctx context.Context, msg message.Message, tools []tool.Descriptor) (message.Message, []message.ToolCallRequest, error) {
	return s.send(ctx, msg, tools)
}

func (s *Session[M, R, T]) send(ctx context.Context, msg message.Message, tools []tool.Descriptor) (message.Message, []message.ToolCallRequest, error) {
	formatted, err := s.adapter.FormatRequest([]message.Message{msg})
	if err != nil {
		return message.Message{}, nil, err
	}
	native := s.native.Append(formatted...)
	hist := s.history.Append(msg)
	return s.complete(ctx, native, hist, tools)
}

func (s *Session[M, R, T]) Continue(ctx context.Context, tools []tool.Descriptor) (message.Message, []message.ToolCallRequest, error) {
	if s.native.Len() == 0 {
		return message.Message{}, nil, errors.EmptyConversation(s.adapter.Name())
	}
	return s.complete(ctx, s.native, s.history, tools)
}

func (s *Session[M, R, T]) PushToolResult(res message.ToolCallResult) error {
	nativeMsg, err := s.adapter.FormatToolResult(res)
	if err != nil {
		return err
	}
	body, err := res.Body()
	if err != nil {
		return err
	}
	s.native = s.native.Append(nativeMsg)
	s.history = s.history.Append(message.NewText(message.RoleUser, message.TypeToolResult, body))
	return nil
}

// complete runs one provider cycle against candidate buffers and commits
// them on full success. Any error, the provider call itself or a missing
// usage block afterwards, leaves the session exactly as it was.
func (s *Session[M, R, T]) complete(ctx context.Context, native provider.Context[M], hist message.History, tools []tool.Descriptor) (message.Message, []message.ToolCallRequest, error) {
	var (
		resp R
		err  error
	)
	if len(tools) > 0 {
		resp, err = s.adapter.GenerateResponseWithTools(ctx, native.Turns(), s.adapter.FormatToolList(tools), nil)
	} else {
		resp, err = s.adapter.GenerateResponse(ctx, native.Turns(), nil)
	}
	if err != nil {
		return message.Message{}, nil, err
	}

	cost, err := s.adapter.Cost(resp)
	if err != nil {
		return message.Message{}, nil, err
	}
	calls, err := s.adapter.ExtractToolCalls(resp)
	if err != nil {
		return message.Message{}, nil, err
	}
	msgType := message.TypeResponse
	if len(calls) > 0 {
		msgType = message.TypeIntermediate
	}

	native, err = s.adapter.AppendResponse(resp, native)
	if err != nil {
		return message.Message{}, nil, err
	}
	hist, err = s.adapter.AppendCanonical(resp, msgType, hist)
	if err != nil {
		return message.Message{}, nil, err
	}

	s.native = native
	s.history = hist
	s.totalCost += cost

	reply, _ := s.history.Last()
	return reply, calls, nil
}
