// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/deckagent/deckagent/internal/agent"
	"github.com/deckagent/deckagent/internal/config"
	"github.com/deckagent/deckagent/internal/errors"
	"github.com/deckagent/deckagent/internal/logging"
	"github.com/deckagent/deckagent/internal/model"
	"github.com/deckagent/deckagent/internal/scheduler"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Make os.OpenFile mockable for testing
var osOpenFile = os.OpenFile

// JobParams holds parameters for creating and updating design jobs
type JobParams struct {
	ID          string `json:"id,omitempty" description:"job ID"`
	Name        string `json:"name,omitempty" description:"job name"`
	Schedule    string `json:"schedule,omitempty" description:"cron schedule expression"`
	Brief       string `json:"brief,omitempty" description:"design brief handed to the model on each run"`
	Description string `json:"description,omitempty" description:"job description"`
	Enabled     bool   `json:"enabled,omitempty" description:"whether the job is enabled"`
}

// JobIDParams holds the ID parameter used by multiple handlers
type JobIDParams struct {
	ID string `json:"id" description:"the ID of the job to get/remove/enable/disable"`
}

// RunResultParams holds parameters for the get_run_result tool
type RunResultParams struct {
	ID    string `json:"id" description:"the ID of the job to get runs for"`
	Limit int    `json:"limit,omitempty" description:"number of recent runs to return (default 1, max 100)"`
}

// RunJobParams holds parameters for the run_design tool
type RunJobParams struct {
	ID string `json:"id" description:"the ID of the job to run immediately"`
}

// MCPServer exposes job management and on-demand design runs over MCP.
type MCPServer struct {
	scheduler      *scheduler.Scheduler
	executor       *agent.Executor
	runStore       model.RunStore
	server         *mcp.Server
	httpServer     *http.Server
	cancel         context.CancelFunc
	address        string
	port           int
	stopCh         chan struct{}
	wg             sync.WaitGroup
	config         *config.Config
	logger         *logging.Logger
	shutdownMutex  sync.Mutex
	isShuttingDown bool
	doneOnce       sync.Once
}

// NewMCPServer creates a new MCP design job server
func NewMCPServer(cfg *config.Config, sched *scheduler.Scheduler, executor *agent.Executor, runStore model.RunStore) (*MCPServer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var logger *logging.Logger

	if cfg.Logging.FilePath != "" {
		var err error
		logger, err = logging.FileLogger(cfg.Logging.FilePath, logging.ParseLevel(cfg.Logging.Level))
		if err != nil {
			return nil, fmt.Errorf("failed to create file logger: %w", err)
		}
	} else if cfg.Server.TransportMode == "stdio" {
		// For stdio transport, all logging must go to a file to avoid
		// corrupting the JSON-RPC stream on stdout
		execPath, err := os.Executable()
		if err != nil {
			execPath = cfg.Server.Name
		}
		execDir := filepath.Dir(execPath)
		logFilename := fmt.Sprintf("%s.log", cfg.Server.Name)
		logPath := filepath.Join(execDir, logFilename)

		logFile, err := osOpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(logFile)
			logger = logging.New(logging.Options{
				Output: logFile,
				Level:  logging.ParseLevel(cfg.Logging.Level),
			})
		} else {
			// Fall back to stderr to avoid corrupting stdout
			log.SetOutput(os.Stderr)
			logger = logging.New(logging.Options{
				Output: os.Stderr,
				Level:  logging.ParseLevel(cfg.Logging.Level),
			})
		}
	} else {
		logger = logging.New(logging.Options{
			Level: logging.ParseLevel(cfg.Logging.Level),
		})
	}

	logging.SetDefaultLogger(logger)

	switch cfg.Server.TransportMode {
	case "stdio":
		logger.Infof("Using stdio transport")
	case "sse":
		logger.Infof("Using SSE transport on %s:%d", cfg.Server.Address, cfg.Server.Port)
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported transport mode: %s", cfg.Server.TransportMode))
	}

	mcpSrv := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	}, nil)

	mcpServer := &MCPServer{
		scheduler: sched,
		executor:  executor,
		runStore:  runStore,
		server:    mcpSrv,
		address:   cfg.Server.Address,
		port:      cfg.Server.Port,
		stopCh:    make(chan struct{}),
		config:    cfg,
		logger:    logger,
	}

	// Scheduled jobs run through the agent executor.
	sched.SetJobExecutor(executor)

	return mcpServer, nil
}

// Start starts the MCP server
func (s *MCPServer) Start(ctx context.Context) error {
	s.registerToolsDeclarative()

	switch s.config.Server.TransportMode {
	case "stdio":
		runCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.server.Run(runCtx, &mcp.StdioTransport{}); err != nil {
				s.logger.Errorf("Error running MCP server: %v", err)
			}
			// Transport exited (e.g. stdin closed); let main shut down.
			s.signalDone()
		}()
	case "sse":
		addr := fmt.Sprintf("%s:%d", s.address, s.port)
		handler := mcp.NewSSEHandler(func(_ *http.Request) *mcp.Server {
			return s.server
		}, nil)
		s.httpServer = &http.Server{Addr: addr, Handler: handler}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Errorf("Error running MCP server: %v", err)
			}
		}()
	}

	// Listen for context cancellation
	go func() {
		<-ctx.Done()
		if err := s.Stop(); err != nil {
			s.logger.Errorf("Error stopping MCP server: %v", err)
		}
	}()

	return nil
}

// Stop stops the MCP server
func (s *MCPServer) Stop() error {
	s.shutdownMutex.Lock()
	defer s.shutdownMutex.Unlock()

	if s.isShuttingDown {
		s.logger.Debugf("Stop called but server is already shutting down, ignoring")
		return nil
	}

	s.isShuttingDown = true

	if s.cancel != nil {
		s.cancel()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return errors.Internal(fmt.Errorf("error shutting down MCP server: %w", err))
		}
	}

	// Close the run store if it owns resources
	if closer, ok := s.runStore.(interface{ Close() error }); ok && closer != nil {
		if err := closer.Close(); err != nil {
			s.logger.Warnf("Error closing run store: %v", err)
		}
	}

	s.signalDone()

	s.wg.Wait()
	return nil
}

// Done is closed when the server transport has exited or Stop was called.
func (s *MCPServer) Done() <-chan struct{} {
	return s.stopCh
}

func (s *MCPServer) signalDone() {
	s.doneOnce.Do(func() { close(s.stopCh) })
}

// handleListJobs lists all jobs
func (s *MCPServer) handleListJobs(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.Debugf("Handling list_jobs request")

	jobs := s.scheduler.ListJobs()

	return createJobsResponse(jobs)
}

// handleGetJob gets a specific job by ID
func (s *MCPServer) handleGetJob(_ context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := extractJobIDParam(request)
	if err != nil {
		return createErrorResponse(err)
	}

	s.logger.Debugf("Handling get_job request for job %s", jobID)

	job, err := s.scheduler.GetJob(jobID)
	if err != nil {
		return createErrorResponse(err)
	}

	return createJobResponse(job)
}

// handleAddJob adds a new design job
func (s *MCPServer) handleAddJob(_ context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params JobParams

	if err := extractParams(request, &params); err != nil {
		return createErrorResponse(err)
	}

	if err := validateJobParams(params.Name, params.Schedule, params.Brief); err != nil {
		return createErrorResponse(err)
	}

	s.logger.Debugf("Handling add_job request for job %s", params.Name)

	job := createBaseJob(params.Name, params.Schedule, params.Description, params.Enabled)
	job.Brief = params.Brief

	if err := s.scheduler.AddJob(job); err != nil {
		return createErrorResponse(err)
	}

	return createJobResponse(job)
}

// createBaseJob creates a base job with common fields initialized
func createBaseJob(name, schedule, description string, enabled bool) *model.Job {
	now := time.Now()
	jobID := fmt.Sprintf("job_%d", now.UnixNano())

	return &model.Job{
		ID:          jobID,
		Name:        name,
		Schedule:    schedule,
		Description: description,
		Enabled:     enabled,
		Status:      model.StatusPending,
		LastRun:     now,
		NextRun:     now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// handleUpdateJob updates an existing job
func (s *MCPServer) handleUpdateJob(_ context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params JobParams

	if err := extractParams(request, &params); err != nil {
		return createErrorResponse(err)
	}

	if params.ID == "" {
		return createErrorResponse(errors.InvalidInput("job ID is required"))
	}

	s.logger.Debugf("Handling update_job request for job %s", params.ID)

	existingJob, err := s.scheduler.GetJob(params.ID)
	if err != nil {
		return createErrorResponse(err)
	}

	updateJobFields(existingJob, params, request.Params.Arguments)

	if err := s.scheduler.UpdateJob(existingJob); err != nil {
		return createErrorResponse(err)
	}

	return createJobResponse(existingJob)
}

// updateJobFields updates job fields with provided values
func updateJobFields(job *model.Job, params JobParams, rawJSON []byte) {
	if params.Name != "" {
		job.Name = params.Name
	}
	if params.Schedule != "" {
		job.Schedule = params.Schedule
	}
	if params.Brief != "" {
		job.Brief = params.Brief
	}
	if params.Description != "" {
		job.Description = params.Description
	}

	// Only update Enabled if it's explicitly in the JSON
	var rawParams map[string]interface{}
	if err := jsonUnmarshal(rawJSON, &rawParams); err == nil {
		if _, exists := rawParams["enabled"]; exists {
			job.Enabled = params.Enabled
		}
	}

	job.UpdatedAt = time.Now()
}

// handleRemoveJob removes a job
func (s *MCPServer) handleRemoveJob(_ context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := extractJobIDParam(request)
	if err != nil {
		return createErrorResponse(err)
	}

	s.logger.Debugf("Handling remove_job request for job %s", jobID)

	if err := s.scheduler.RemoveJob(jobID); err != nil {
		return createErrorResponse(err)
	}

	return createSuccessResponse(fmt.Sprintf("Job %s removed successfully", jobID))
}

// handleEnableJob enables a job
func (s *MCPServer) handleEnableJob(_ context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := extractJobIDParam(request)
	if err != nil {
		return createErrorResponse(err)
	}

	s.logger.Debugf("Handling enable_job request for job %s", jobID)

	if err := s.scheduler.EnableJob(jobID); err != nil {
		return createErrorResponse(err)
	}

	job, err := s.scheduler.GetJob(jobID)
	if err != nil {
		return createErrorResponse(err)
	}

	return createJobResponse(job)
}

// handleDisableJob disables a job
func (s *MCPServer) handleDisableJob(_ context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := extractJobIDParam(request)
	if err != nil {
		return createErrorResponse(err)
	}

	s.logger.Debugf("Handling disable_job request for job %s", jobID)

	if err := s.scheduler.DisableJob(jobID); err != nil {
		return createErrorResponse(err)
	}

	job, err := s.scheduler.GetJob(jobID)
	if err != nil {
		return createErrorResponse(err)
	}

	return createJobResponse(job)
}

// handleRunDesign runs a job immediately, outside its schedule
func (s *MCPServer) handleRunDesign(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params RunJobParams
	if err := extractParams(request, &params); err != nil {
		return createErrorResponse(err)
	}
	if params.ID == "" {
		return createErrorResponse(errors.InvalidInput("job ID is required"))
	}

	s.logger.Debugf("Handling run_design request for job %s", params.ID)

	job, err := s.scheduler.GetJob(params.ID)
	if err != nil {
		return createErrorResponse(err)
	}

	run := s.executor.ExecuteJob(ctx, job.ID, job.Brief, s.config.Scheduler.JobRunTimeout)
	return createRunResponse(run)
}

// handleGetRunResult returns run records for a job
func (s *MCPServer) handleGetRunResult(_ context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params RunResultParams
	if err := extractParams(request, &params); err != nil {
		return createErrorResponse(err)
	}

	if params.ID == "" {
		return createErrorResponse(errors.InvalidInput("job ID is required"))
	}

	s.logger.Debugf("Handling get_run_result request for job %s (limit=%d)", params.ID, params.Limit)

	if s.runStore == nil {
		return createErrorResponse(errors.NotFound("run", params.ID))
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 1
	}

	if limit == 1 {
		run, err := s.runStore.GetLatestRun(params.ID)
		if err != nil {
			return createErrorResponse(errors.Internal(fmt.Errorf("failed to get run: %w", err)))
		}
		if run == nil {
			return createErrorResponse(errors.NotFound("run", params.ID))
		}
		return createRunResponse(run)
	}

	runs, err := s.runStore.GetRuns(params.ID, limit)
	if err != nil {
		return createErrorResponse(errors.Internal(fmt.Errorf("failed to get runs: %w", err)))
	}
	if len(runs) == 0 {
		return createErrorResponse(errors.NotFound("run", params.ID))
	}
	return createRunsResponse(runs)
}
