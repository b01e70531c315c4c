// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"context"
	"reflect"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolDefinition represents a tool that can be registered with the MCP server
type ToolDefinition struct {
	// Name is the name of the tool
	Name string

	// Description is a brief description of what the tool does
	Description string

	// Handler is the function that will be called when the tool is invoked
	Handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

	// Parameters is the parameter schema for the tool (can be a struct)
	Parameters interface{}
}

// registerToolsDeclarative sets up all the MCP tools using a more declarative approach
func (s *MCPServer) registerToolsDeclarative() {
	tools := []ToolDefinition{
		{
			Name:        "list_jobs",
			Description: "Lists all design jobs",
			Handler:     s.handleListJobs,
			Parameters:  struct{}{},
		},
		{
			Name:        "get_job",
			Description: "Gets a specific design job by ID",
			Handler:     s.handleGetJob,
			Parameters:  JobIDParams{},
		},
		{
			Name:        "add_job",
			Description: "Adds a new scheduled design job. Requires 'name', 'schedule', and 'brief'. The brief describes the deck the model should produce on each run. Set 'enabled' to true to activate immediately.",
			Handler:     s.handleAddJob,
			Parameters:  JobParams{},
		},
		{
			Name:        "update_job",
			Description: "Updates an existing design job. Requires 'id'. Only provided fields are updated; omitted fields remain unchanged.",
			Handler:     s.handleUpdateJob,
			Parameters:  JobParams{},
		},
		{
			Name:        "remove_job",
			Description: "Permanently removes a design job by ID",
			Handler:     s.handleRemoveJob,
			Parameters:  JobIDParams{},
		},
		{
			Name:        "enable_job",
			Description: "Enables a disabled design job so it runs on its schedule",
			Handler:     s.handleEnableJob,
			Parameters:  JobIDParams{},
		},
		{
			Name:        "disable_job",
			Description: "Disables a design job so it stops running on its schedule but is not removed",
			Handler:     s.handleDisableJob,
			Parameters:  JobIDParams{},
		},
		{
			Name:        "run_design",
			Description: "Runs a design job immediately, outside its schedule, and returns the run record",
			Handler:     s.handleRunDesign,
			Parameters:  RunJobParams{},
		},
		{
			Name:        "get_run_result",
			Description: "Gets run records for a design job. Returns the latest run by default, or recent history when limit > 1.",
			Handler:     s.handleGetRunResult,
			Parameters:  RunResultParams{},
		},
	}

	for _, tool := range tools {
		registerToolWithError(s.server, tool)
	}
}

// registerToolWithError registers a tool with the MCP server
func registerToolWithError(srv *mcp.Server, def ToolDefinition) {
	schema := buildSchema(def.Parameters)
	tool := &mcp.Tool{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: schema,
	}
	srv.AddTool(tool, def.Handler)
}

// buildSchema converts a Go struct with json and description tags into a JSON Schema object
func buildSchema(params interface{}) map[string]interface{} {
	t := reflect.TypeOf(params)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	properties := map[string]interface{}{}
	var required []string

	collectFields(t, properties, &required)

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// collectFields extracts JSON schema properties from struct fields,
// recursing into embedded (anonymous) structs.
func collectFields(t reflect.Type, properties map[string]interface{}, required *[]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Recurse into embedded structs
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectFields(field.Type, properties, required)
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		// Parse json tag to get field name and options
		parts := strings.Split(jsonTag, ",")
		fieldName := parts[0]
		omitempty := false
		for _, p := range parts[1:] {
			if p == "omitempty" {
				omitempty = true
			}
		}

		prop := map[string]interface{}{
			"type": goTypeToJSONType(field.Type),
		}

		if desc := field.Tag.Get("description"); desc != "" {
			prop["description"] = desc
		}

		properties[fieldName] = prop

		if !omitempty {
			*required = append(*required, fieldName)
		}
	}
}

// goTypeToJSONType maps Go types to JSON Schema types
func goTypeToJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	default:
		return "string"
	}
}
