// SPDX-License-Identifier: AGPL-3.0-only
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deckagent/deckagent/internal/config"
	"github.com/deckagent/deckagent/internal/logging"
	"github.com/deckagent/deckagent/internal/model"
)

// Executor runs design jobs for the scheduler and persists their runs.
type Executor struct {
	config   *config.Config
	runStore model.RunStore
	logger   *logging.Logger
}

// NewExecutor creates a new design job executor
func NewExecutor(cfg *config.Config, store model.RunStore, logger *logging.Logger) *Executor {
	return &Executor{
		config:   cfg,
		runStore: store,
		logger:   logger,
	}
}

// Execute implements model.Executor for the scheduler.
func (e *Executor) Execute(ctx context.Context, job *model.Job, timeout time.Duration) error {
	// Runtime validation only checks fields needed for execution. The
	// schedule has already done its work by the time we get here.
	if job.ID == "" || job.Brief == "" {
		return fmt.Errorf("invalid job: missing ID or Brief")
	}

	run := e.ExecuteJob(ctx, job.ID, job.Brief, timeout)
	if run.Error != "" {
		return fmt.Errorf("%s", run.Error)
	}

	return nil
}

// ExecuteJob runs one design brief and records the outcome, including the
// provider, model and cost of the run.
func (e *Executor) ExecuteJob(ctx context.Context, jobID string, brief string, timeout time.Duration) *model.Run {
	provider := strings.ToLower(e.config.AI.Provider)
	if provider == "" {
		provider = "openai"
	}

	run := &model.Run{
		JobID:     jobID,
		Prompt:    brief,
		Provider:  provider,
		Model:     e.config.AI.Model,
		StartTime: time.Now(),
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, cost, err := RunJob(execCtx, &model.Job{ID: jobID, Brief: brief}, e.config)

	run.EndTime = time.Now()
	run.Duration = run.EndTime.Sub(run.StartTime).String()
	run.Cost = cost

	if err != nil {
		run.Error = err.Error()
		run.Output = fmt.Sprintf("Error executing design job: %v", err)
	} else {
		run.Output = output
	}

	model.PersistAndLogRun(e.runStore, run, e.logger)

	return run
}
