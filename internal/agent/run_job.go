// SPDX-License-Identifier: AGPL-3.0-only

// Package agent drives a design job through the model: it opens a
// conversation, advertises the design tools, and loops over tool calls
// until the model produces a final answer.
package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/deckagent/deckagent/internal/config"
	"github.com/deckagent/deckagent/internal/conversation"
	"github.com/deckagent/deckagent/internal/logging"
	"github.com/deckagent/deckagent/internal/message"
	"github.com/deckagent/deckagent/internal/model"
	"github.com/deckagent/deckagent/internal/tool"
)

// Dispatcher is the slice of tool.Executor the run loop needs: a roster of
// tools and a way to invoke one.
type Dispatcher interface {
	Tools() []tool.Descriptor
	Call(ctx context.Context, req message.ToolCallRequest) (message.ToolCallResult, error)
}

// RunJob executes a design job against the configured provider and returns
// the final output together with the run's accumulated cost in USD.
func RunJob(ctx context.Context, job *model.Job, cfg *config.Config) (string, float64, error) {
	logger := logging.GetDefaultLogger().WithField("job_id", job.ID)
	logger.Infof("Running design job: %s", job.Name)

	conv, err := conversation.New(cfg)
	if err != nil {
		logger.Errorf("Failed to create conversation: %v", err)
		return "", 0, err
	}

	var disp Dispatcher
	if cfg.AI.MCPConfigFilePath != "" {
		if _, statErr := os.Stat(cfg.AI.MCPConfigFilePath); statErr == nil {
			ex, err := tool.Load(ctx, cfg.AI.MCPConfigFilePath, logger)
			if err != nil {
				logger.Errorf("Failed to load design tools: %v", err)
				return "", 0, err
			}
			defer ex.Close()
			disp = ex
		} else {
			logger.Debugf("No MCP config at %s, running without tools", cfg.AI.MCPConfigFilePath)
		}
	}

	output, err := runConversation(ctx, conv, disp, job.Brief, cfg.AI.MaxToolIterations, logger)
	return output, conv.TotalCost(), err
}

// runConversation loops the conversation through tool calls until the model
// answers without requesting any, or the iteration budget runs out.
func runConversation(ctx context.Context, conv conversation.Conversation, disp Dispatcher, brief string, maxIterations int, logger *logging.Logger) (string, error) {
	userMsg := message.NewText(message.RoleUser, message.TypeRequest, brief)

	var tools []tool.Descriptor
	if disp != nil {
		tools = disp.Tools()
	}

	// Fallback to a plain completion if no tools
	if len(tools) == 0 {
		logger.Infof("No design tools available, using basic completion")
		reply, err := conv.Send(ctx, userMsg)
		if err != nil {
			logger.Errorf("Completion failed: %v", err)
			return "", err
		}
		logger.Infof("Design job completed successfully")
		return reply.Text(), nil
	}

	logger.Infof("Starting tool-enabled design run with max %d iterations", maxIterations)

	reply, calls, err := conv.SendWithTools(ctx, userMsg, tools)
	if err != nil {
		logger.Errorf("Completion failed: %v", err)
		return "", err
	}

	for i := 0; i < maxIterations; i++ {
		if len(calls) == 0 {
			logger.Infof("Design job completed successfully with %d iterations", i+1)
			return reply.Text(), nil
		}

		logger.Debugf("Processing %d tool calls in iteration %d", len(calls), i+1)
		for j, call := range calls {
			logger.Debugf("Tool call %d: %s", j+1, call.Name)
			res, err := disp.Call(ctx, call)
			if err != nil {
				logger.Warnf("Tool call error: %v", err)
				res = message.ToolCallResult{ID: call.ID, Content: "ERROR: " + err.Error()}
			}
			if err := conv.PushToolResult(res); err != nil {
				return "", err
			}
		}

		reply, calls, err = conv.Continue(ctx, tools)
		if err != nil {
			logger.Errorf("Completion failed on iteration %d: %v", i+1, err)
			return "", err
		}
	}

	logger.Errorf("Design job exceeded maximum iterations (%d)", maxIterations)
	return "", fmt.Errorf("tool loop exceeded maximum iterations (%d)", maxIterations)
}
