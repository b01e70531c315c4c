// SPDX-License-Identifier: AGPL-3.0-only
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deckagent/deckagent/internal/config"
	"github.com/deckagent/deckagent/internal/errors"
	"github.com/deckagent/deckagent/internal/model"
	"github.com/robfig/cron/v3"
)

// Scheduler manages recurring design jobs
type Scheduler struct {
	cron        *cron.Cron
	jobs        map[string]*model.Job
	entryIDs    map[string]cron.EntryID
	mu          sync.RWMutex
	jobExecutor model.Executor
	jobStore    model.JobStore
	config      *config.SchedulerConfig
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg *config.SchedulerConfig) *Scheduler {
	cronOpts := cron.New(
		cron.WithParser(cron.NewParser(
			cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(
			cron.Recover(cron.DefaultLogger),
		),
	)

	return &Scheduler{
		cron:     cronOpts,
		jobs:     make(map[string]*model.Job),
		entryIDs: make(map[string]cron.EntryID),
		config:   cfg,
	}
}

// Start begins the scheduler
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()

	// Listen for context cancellation to stop the scheduler
	go func() {
		<-ctx.Done()
		if err := s.Stop(); err != nil {
			// We cannot return the error here since we're in a goroutine,
			// so we'll just log it
			fmt.Printf("Error stopping scheduler: %v\n", err)
		}
	}()
}

// Stop halts the scheduler
func (s *Scheduler) Stop() error {
	s.cron.Stop()
	return nil
}

// AddJob adds a new job to the scheduler
func (s *Scheduler) AddJob(job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return errors.AlreadyExists("job", job.ID)
	}

	// Persist to store first
	if s.jobStore != nil {
		if err := s.jobStore.SaveJob(job); err != nil {
			return fmt.Errorf("persist job: %w", err)
		}
	}

	s.jobs[job.ID] = job

	if job.Enabled {
		err := s.scheduleJob(job)
		if err != nil {
			job.Status = model.StatusFailed
			return err
		}
	}

	return nil
}

// RemoveJob removes a job from the scheduler
func (s *Scheduler) RemoveJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.jobs[jobID]
	if !exists {
		return errors.NotFound("job", jobID)
	}

	if s.jobStore != nil {
		if err := s.jobStore.DeleteJob(jobID); err != nil {
			return fmt.Errorf("delete job from store: %w", err)
		}
	}

	if entryID, exists := s.entryIDs[jobID]; exists {
		s.cron.Remove(entryID)
		delete(s.entryIDs, jobID)
	}

	delete(s.jobs, jobID)

	return nil
}

// EnableJob enables a disabled job
func (s *Scheduler) EnableJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return errors.NotFound("job", jobID)
	}

	if job.Enabled {
		return nil // Already enabled
	}

	job.Enabled = true
	job.UpdatedAt = time.Now()

	if s.jobStore != nil {
		if err := s.jobStore.UpdateJob(job); err != nil {
			job.Enabled = false // rollback
			return fmt.Errorf("persist job enable: %w", err)
		}
	}

	err := s.scheduleJob(job)
	if err != nil {
		job.Status = model.StatusFailed
		return err
	}

	return nil
}

// DisableJob disables a running job
func (s *Scheduler) DisableJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return errors.NotFound("job", jobID)
	}

	if !job.Enabled {
		return nil // Already disabled
	}

	if entryID, exists := s.entryIDs[jobID]; exists {
		s.cron.Remove(entryID)
		delete(s.entryIDs, jobID)
	}

	job.Enabled = false
	job.Status = model.StatusDisabled
	job.UpdatedAt = time.Now()

	if s.jobStore != nil {
		if err := s.jobStore.UpdateJob(job); err != nil {
			return fmt.Errorf("persist job disable: %w", err)
		}
	}

	return nil
}

// GetJob retrieves a job by ID
func (s *Scheduler) GetJob(jobID string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, errors.NotFound("job", jobID)
	}

	return job, nil
}

// ListJobs returns all jobs
func (s *Scheduler) ListJobs() []*model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*model.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}

	return jobs
}

// UpdateJob updates an existing job
func (s *Scheduler) UpdateJob(job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existingJob, exists := s.jobs[job.ID]
	if !exists {
		return errors.NotFound("job", job.ID)
	}

	// If the job was scheduled, remove it
	if existingJob.Enabled {
		if entryID, exists := s.entryIDs[job.ID]; exists {
			s.cron.Remove(entryID)
			delete(s.entryIDs, job.ID)
		}
	}

	job.UpdatedAt = time.Now()
	s.jobs[job.ID] = job

	if s.jobStore != nil {
		if err := s.jobStore.UpdateJob(job); err != nil {
			return fmt.Errorf("persist job update: %w", err)
		}
	}

	if job.Enabled {
		return s.scheduleJob(job)
	}

	return nil
}

// SetJobExecutor sets the executor to be used for job execution
func (s *Scheduler) SetJobExecutor(executor model.Executor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobExecutor = executor
}

// SetJobStore sets the store to be used for job persistence
func (s *Scheduler) SetJobStore(store model.JobStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStore = store
}

// LoadJobs restores persisted jobs from the store into the scheduler.
// Must be called after SetJobExecutor so that enabled jobs can be scheduled.
func (s *Scheduler) LoadJobs() error {
	if s.jobStore == nil {
		return nil
	}

	jobs, err := s.jobStore.LoadJobs()
	if err != nil {
		return fmt.Errorf("load jobs from store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range jobs {
		if _, exists := s.jobs[job.ID]; exists {
			continue // skip duplicates
		}
		s.jobs[job.ID] = job
		if job.Enabled {
			if err := s.scheduleJob(job); err != nil {
				job.Status = model.StatusFailed
				fmt.Printf("Failed to schedule persisted job %s: %v\n", job.ID, err)
			}
		}
	}

	return nil
}

// NewJob creates a new job with default values
func NewJob() *model.Job {
	now := time.Now()
	return &model.Job{
		Enabled:   false,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// scheduleJob adds a job to the cron scheduler (internal method)
func (s *Scheduler) scheduleJob(job *model.Job) error {
	if s.jobExecutor == nil {
		return fmt.Errorf("cannot schedule job: no job executor set")
	}

	jobFunc := func() {
		// Check if the job still exists (may have been removed between dispatch and execution)
		s.mu.RLock()
		if _, exists := s.jobs[job.ID]; !exists {
			s.mu.RUnlock()
			return
		}
		s.mu.RUnlock()

		job.LastRun = time.Now()
		job.Status = model.StatusRunning

		ctx := context.Background()
		timeout := s.config.JobRunTimeout

		if err := s.jobExecutor.Execute(ctx, job, timeout); err != nil {
			job.Status = model.StatusFailed
		} else {
			job.Status = model.StatusCompleted
		}

		job.UpdatedAt = time.Now()
		s.updateNextRunTime(job)
	}

	entryID, err := s.cron.AddFunc(job.Schedule, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	s.entryIDs[job.ID] = entryID
	s.updateNextRunTime(job)

	return nil
}

// updateNextRunTime updates the job's next run time based on its cron entry
func (s *Scheduler) updateNextRunTime(job *model.Job) {
	if entryID, exists := s.entryIDs[job.ID]; exists {
		entries := s.cron.Entries()
		for _, entry := range entries {
			if entry.ID == entryID {
				job.NextRun = entry.Next
				break
			}
		}
	}
}
