// SPDX-License-Identifier: AGPL-3.0-only
package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/deckagent/deckagent/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetLatestRun(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().Truncate(time.Microsecond)
	r := &model.Run{
		JobID:     "job-1",
		Prompt:    "design a quarterly review deck",
		Output:    "ten slides, sections for revenue and roadmap",
		Provider:  "anthropic",
		Model:     "claude-sonnet-4-20250514",
		Cost:      0.2,
		StartTime: now,
		EndTime:   now.Add(time.Second),
		Duration:  "1s",
	}

	if err := s.SaveRun(r); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetLatestRun("job-1")
	if err != nil {
		t.Fatalf("GetLatestRun: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.JobID != "job-1" {
		t.Errorf("JobID = %q, want %q", got.JobID, "job-1")
	}
	if got.Provider != "anthropic" {
		t.Errorf("Provider = %q, want %q", got.Provider, "anthropic")
	}
	if got.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q, want %q", got.Model, "claude-sonnet-4-20250514")
	}
	if got.Cost != 0.2 {
		t.Errorf("Cost = %v, want 0.2", got.Cost)
	}
	if got.Duration != "1s" {
		t.Errorf("Duration = %q, want %q", got.Duration, "1s")
	}
}

func TestGetLatestRunNotFound(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetLatestRun("nonexistent")
	if err != nil {
		t.Fatalf("GetLatestRun: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil run, got %+v", got)
	}
}

func TestGetRunsOrdering(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().Truncate(time.Microsecond)

	// Save 3 runs with ascending start times.
	for i := 0; i < 3; i++ {
		r := &model.Run{
			JobID:     "job-order",
			Output:    time.Duration(i).String(),
			StartTime: now.Add(time.Duration(i) * time.Minute),
			EndTime:   now.Add(time.Duration(i)*time.Minute + time.Second),
			Duration:  "1s",
		}
		if err := s.SaveRun(r); err != nil {
			t.Fatalf("SaveRun %d: %v", i, err)
		}
	}

	runs, err := s.GetRuns("job-order", 10)
	if err != nil {
		t.Fatalf("GetRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}

	// Most recent first.
	if runs[0].Output != "2ns" {
		t.Errorf("first run output = %q, want %q", runs[0].Output, "2ns")
	}
	if runs[2].Output != "0s" {
		t.Errorf("last run output = %q, want %q", runs[2].Output, "0s")
	}
}

func TestGetRunsLimit(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		r := &model.Run{
			JobID:     "job-limit",
			StartTime: now.Add(time.Duration(i) * time.Minute),
			EndTime:   now.Add(time.Duration(i)*time.Minute + time.Second),
		}
		if err := s.SaveRun(r); err != nil {
			t.Fatalf("SaveRun %d: %v", i, err)
		}
	}

	runs, err := s.GetRuns("job-limit", 2)
	if err != nil {
		t.Fatalf("GetRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func TestSaveLoadUpdateDeleteJob(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().Truncate(time.Microsecond)
	j := &model.Job{
		ID:        "job-crud",
		Name:      "weekly-deck",
		Brief:     "refresh the all-hands deck",
		Schedule:  "0 9 * * MON",
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.SaveJob(j); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	jobs, err := s.LoadJobs()
	if err != nil {
		t.Fatalf("LoadJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Brief != "refresh the all-hands deck" {
		t.Errorf("Brief = %q, want %q", jobs[0].Brief, "refresh the all-hands deck")
	}
	if jobs[0].Status != model.StatusPending {
		t.Errorf("Status = %q, want %q", jobs[0].Status, model.StatusPending)
	}

	j.Name = "weekly-deck-v2"
	j.Enabled = false
	j.UpdatedAt = now.Add(time.Minute)
	if err := s.UpdateJob(j); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	jobs, err = s.LoadJobs()
	if err != nil {
		t.Fatalf("LoadJobs: %v", err)
	}
	if jobs[0].Name != "weekly-deck-v2" {
		t.Errorf("Name = %q, want %q", jobs[0].Name, "weekly-deck-v2")
	}
	if jobs[0].Status != model.StatusDisabled {
		t.Errorf("Status = %q, want %q", jobs[0].Status, model.StatusDisabled)
	}

	if err := s.DeleteJob("job-crud"); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	jobs, err = s.LoadJobs()
	if err != nil {
		t.Fatalf("LoadJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected 0 jobs after delete, got %d", len(jobs))
	}
}

func TestUpdateJobNotFound(t *testing.T) {
	s := newTestStore(t)

	j := &model.Job{ID: "missing", Name: "x", Schedule: "* * * * *"}
	if err := s.UpdateJob(j); err == nil {
		t.Fatal("expected error updating missing job")
	}
}

func TestStoreReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}

	now := time.Now().Truncate(time.Microsecond)
	if err := s.SaveRun(&model.Run{JobID: "job-p", StartTime: now, EndTime: now}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetLatestRun("job-p")
	if err != nil {
		t.Fatalf("GetLatestRun: %v", err)
	}
	if got == nil {
		t.Fatal("expected persisted run after reopen")
	}
}
