// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"encoding/json"
	"fmt"

	"github.com/deckagent/deckagent/internal/errors"
	"github.com/deckagent/deckagent/internal/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// jsonUnmarshal decodes raw JSON, treating empty input as an empty object.
func jsonUnmarshal(raw []byte, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// extractParams extracts parameters from a tool request
func extractParams(request *mcp.CallToolRequest, params interface{}) error {
	if err := jsonUnmarshal(request.Params.Arguments, params); err != nil {
		return errors.InvalidInput(fmt.Sprintf("invalid parameters: %v", err))
	}
	return nil
}

// extractJobIDParam extracts the job ID parameter from a request
func extractJobIDParam(request *mcp.CallToolRequest) (string, error) {
	var params JobIDParams
	if err := extractParams(request, &params); err != nil {
		return "", err
	}

	if params.ID == "" {
		return "", errors.InvalidInput("job ID is required")
	}

	return params.ID, nil
}

// createSuccessResponse creates a success response
func createSuccessResponse(message string) (*mcp.CallToolResult, error) {
	response := map[string]interface{}{
		"success": true,
		"message": message,
	}

	responseJSON, err := json.Marshal(response)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to marshal response: %w", err))
	}

	return textResult(string(responseJSON)), nil
}

// createErrorResponse creates an error response
func createErrorResponse(err error) (*mcp.CallToolResult, error) {
	// Always return the original error as the second return value
	// This ensures MCP protocol error handling works correctly
	return nil, err
}

// createJobResponse creates a response with a single job
func createJobResponse(job *model.Job) (*mcp.CallToolResult, error) {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to marshal job: %w", err))
	}
	return textResult(string(jobJSON)), nil
}

// createJobsResponse creates a response with multiple jobs
func createJobsResponse(jobs []*model.Job) (*mcp.CallToolResult, error) {
	jobsJSON, err := json.Marshal(jobs)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to marshal jobs: %w", err))
	}
	return textResult(string(jobsJSON)), nil
}

// createRunResponse creates a response with a single run
func createRunResponse(run *model.Run) (*mcp.CallToolResult, error) {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to marshal run: %w", err))
	}
	return textResult(string(runJSON)), nil
}

// createRunsResponse creates a response with multiple runs
func createRunsResponse(runs []*model.Run) (*mcp.CallToolResult, error) {
	runsJSON, err := json.Marshal(runs)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to marshal runs: %w", err))
	}
	return textResult(string(runsJSON)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: text,
			},
		},
	}
}

// validateJobParams validates the parameters required to create a job
func validateJobParams(name, schedule, brief string) error {
	if name == "" || schedule == "" {
		return errors.InvalidInput("missing required fields: name and schedule are required")
	}
	if brief == "" {
		return errors.InvalidInput("missing required field: brief is required for design jobs")
	}
	return nil
}
