// SPDX-License-Identifier: AGPL-3.0-only

// Package model defines the shared domain types: design jobs, their run
// records and the interfaces the scheduler, store and agent meet in.
package model

import (
	"context"
	"time"
)

// Status is the lifecycle state of a design job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusDisabled  Status = "disabled"
)

func (s Status) String() string { return string(s) }

// Job is a recurring deck-design assignment. The brief is the natural
// language instruction handed to the model on each run.
type Job struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Brief       string    `json:"brief"`
	Schedule    string    `json:"schedule"`
	Enabled     bool      `json:"enabled"`
	Status      Status    `json:"status"`
	LastRun     time.Time `json:"lastRun,omitempty"`
	NextRun     time.Time `json:"nextRun,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Run records one execution of a job: what was asked, what came back,
// which binding produced it and what it cost.
type Run struct {
	JobID     string    `json:"jobId"`
	Prompt    string    `json:"prompt"`
	Output    string    `json:"output"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Cost      float64   `json:"cost"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Duration  string    `json:"duration"`
}

// JobStore persists job definitions.
type JobStore interface {
	SaveJob(job *Job) error
	UpdateJob(job *Job) error
	DeleteJob(jobID string) error
	LoadJobs() ([]*Job, error)
}

// RunStore persists run records.
type RunStore interface {
	SaveRun(run *Run) error
	GetLatestRun(jobID string) (*Run, error)
	GetRuns(jobID string, limit int) ([]*Run, error)
}

// Executor runs a job to completion within the given timeout.
type Executor interface {
	Execute(ctx context.Context, job *Job, timeout time.Duration) error
}
