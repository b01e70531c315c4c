// SPDX-License-Identifier: AGPL-3.0-only
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/deckagent/deckagent/internal/logging"
	"github.com/deckagent/deckagent/internal/message"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// serverSpec is one entry in the MCP configuration file.
type serverSpec struct {
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	URL     string   `json:"url,omitempty"`
}

// serverConfig mirrors the standard mcpServers configuration layout.
type serverConfig struct {
	MCP map[string]serverSpec `json:"mcpServers"`
}

func parseServerConfig(raw []byte) (*serverConfig, error) {
	var cfg serverConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse MCP config: %w", err)
	}
	return &cfg, nil
}

// Executor dispatches tool invocations to the design-tool servers that
// advertised them and keeps the underlying MCP sessions open until Close.
type Executor struct {
	sessions map[string]*mcp.ClientSession // serverName -> session
	toolSrv  map[string]string             // toolName -> serverName
	tools    []Descriptor
	logger   *logging.Logger
}

// Load connects to every server in the MCP config file at path, collects
// their advertised tools as Descriptors, and returns an Executor that routes
// invocations back to the right server. Servers that fail to connect are
// skipped with a warning so one broken server does not take down the rest.
func Load(ctx context.Context, path string, logger *logging.Logger) (*Executor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read MCP config: %w", err)
	}
	cfg, err := parseServerConfig(raw)
	if err != nil {
		return nil, err
	}

	ex := &Executor{
		sessions: map[string]*mcp.ClientSession{},
		toolSrv:  map[string]string{},
		logger:   logger,
	}

	for name, spec := range cfg.MCP {
		var tp mcp.Transport
		switch {
		case spec.Command != "":
			tp = &mcp.CommandTransport{Command: exec.Command(spec.Command, spec.Args...)}
		case spec.URL != "":
			tp = &mcp.SSEClientTransport{Endpoint: spec.URL}
		default:
			continue
		}

		cli := mcp.NewClient(&mcp.Implementation{Name: "deckagent", Version: "1.0.0"}, nil)
		session, err := cli.Connect(ctx, tp, nil)
		if err != nil {
			logger.Warnf("Failed to connect to design server %s: %v", name, err)
			continue
		}
		ex.sessions[name] = session

		resp, err := session.ListTools(ctx, nil)
		if err != nil {
			logger.Warnf("Failed to list tools for server %s: %v", name, err)
			continue
		}
		for _, tl := range resp.Tools {
			desc, err := descriptorFromMCP(tl)
			if err != nil {
				logger.Warnf("Skipping tool %s: %v", tl.Name, err)
				continue
			}
			ex.tools = append(ex.tools, desc)
			ex.toolSrv[tl.Name] = name
		}
	}

	return ex, nil
}

// descriptorFromMCP converts an advertised MCP tool into a Descriptor,
// re-marshalling the schema into a plain map.
func descriptorFromMCP(tl *mcp.Tool) (Descriptor, error) {
	desc := Descriptor{Name: tl.Name, Description: tl.Description}
	if tl.InputSchema != nil {
		raw, err := json.Marshal(tl.InputSchema)
		if err != nil {
			return Descriptor{}, fmt.Errorf("marshal input schema: %w", err)
		}
		var schema map[string]interface{}
		if err := json.Unmarshal(raw, &schema); err != nil {
			return Descriptor{}, fmt.Errorf("unmarshal input schema: %w", err)
		}
		desc.InputSchema = schema
	}
	return desc, nil
}

// Tools returns the descriptors for every tool the connected servers
// advertised.
func (e *Executor) Tools() []Descriptor {
	out := make([]Descriptor, len(e.tools))
	copy(out, e.tools)
	return out
}

// Call routes one tool invocation to the server that advertised it and wraps
// the output as a canonical ToolCallResult correlated by the request's id.
func (e *Executor) Call(ctx context.Context, req message.ToolCallRequest) (message.ToolCallResult, error) {
	serverName, ok := e.toolSrv[req.Name]
	if !ok {
		return message.ToolCallResult{}, fmt.Errorf("unknown tool: %s", req.Name)
	}
	session, ok := e.sessions[serverName]
	if !ok {
		return message.ToolCallResult{}, fmt.Errorf("server not found for tool: %s", req.Name)
	}

	args := req.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      req.Name,
		Arguments: args,
	})
	if err != nil {
		return message.ToolCallResult{}, fmt.Errorf("call tool %s: %w", req.Name, err)
	}

	result := message.ToolCallResult{ID: req.ID, Content: flattenContent(res.Content)}
	if sc, ok := res.StructuredContent.(map[string]interface{}); ok {
		result.StructuredContent = sc
	}
	return result, nil
}

// flattenContent reduces MCP content blocks to plain values a provider can
// re-serialize.
func flattenContent(content []mcp.Content) interface{} {
	var out []interface{}
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			out = append(out, tc.Text)
			continue
		}
		raw, err := json.Marshal(c)
		if err != nil {
			continue
		}
		var v interface{}
		if json.Unmarshal(raw, &v) == nil {
			out = append(out, v)
		}
	}
	return out
}

// Close terminates every MCP session.
func (e *Executor) Close() {
	for name, session := range e.sessions {
		if err := session.Close(); err != nil {
			e.logger.Warnf("Failed to close session %s: %v", name, err)
		}
	}
}
