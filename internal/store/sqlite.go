// SPDX-License-Identifier: AGPL-3.0-only
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/deckagent/deckagent/internal/model"

	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339Nano

// SQLiteStore implements model.JobStore and model.RunStore backed by a
// SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure the parent directory exists.
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveRun persists a job run record.
func (s *SQLiteStore) SaveRun(run *model.Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (job_id, prompt, output, provider, model, cost, error, start_time, end_time, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.JobID,
		run.Prompt,
		run.Output,
		run.Provider,
		run.Model,
		run.Cost,
		run.Error,
		run.StartTime.Format(timeFormat),
		run.EndTime.Format(timeFormat),
		run.Duration,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetLatestRun returns the most recent run for the given job ID.
// Returns nil, nil if no run exists.
func (s *SQLiteStore) GetLatestRun(jobID string) (*model.Run, error) {
	runs, err := s.GetRuns(jobID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// GetRuns returns up to limit runs for the given job ID, ordered by
// start_time descending (most recent first).
func (s *SQLiteStore) GetRuns(jobID string, limit int) ([]*model.Run, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT job_id, prompt, output, provider, model, cost, error, start_time, end_time, duration
		FROM runs
		WHERE job_id = ?
		ORDER BY start_time DESC
		LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		var r model.Run
		var startStr, endStr string
		if err := rows.Scan(
			&r.JobID, &r.Prompt, &r.Output, &r.Provider, &r.Model,
			&r.Cost, &r.Error, &startStr, &endStr, &r.Duration,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.StartTime, _ = time.Parse(timeFormat, startStr)
		r.EndTime, _ = time.Parse(timeFormat, endStr)
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}

// SaveJob persists a new job definition.
func (s *SQLiteStore) SaveJob(job *model.Job) error {
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, name, description, brief, schedule, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Name,
		job.Description,
		job.Brief,
		job.Schedule,
		boolToInt(job.Enabled),
		job.CreatedAt.Format(timeFormat),
		job.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJob updates an existing job definition.
func (s *SQLiteStore) UpdateJob(job *model.Job) error {
	result, err := s.db.Exec(`
		UPDATE jobs SET name=?, description=?, brief=?, schedule=?, enabled=?, updated_at=?
		WHERE id=?`,
		job.Name,
		job.Description,
		job.Brief,
		job.Schedule,
		boolToInt(job.Enabled),
		job.UpdatedAt.Format(timeFormat),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job %s not found", job.ID)
	}
	return nil
}

// DeleteJob removes a job definition by ID.
func (s *SQLiteStore) DeleteJob(jobID string) error {
	_, err := s.db.Exec("DELETE FROM jobs WHERE id=?", jobID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// LoadJobs returns all persisted job definitions.
func (s *SQLiteStore) LoadJobs() ([]*model.Job, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, brief, schedule, enabled, created_at, updated_at
		FROM jobs`)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		var j model.Job
		var enabled int
		var createdStr, updatedStr string
		if err := rows.Scan(
			&j.ID, &j.Name, &j.Description, &j.Brief, &j.Schedule,
			&enabled, &createdStr, &updatedStr,
		); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		j.Enabled = enabled != 0
		j.CreatedAt, _ = time.Parse(timeFormat, createdStr)
		j.UpdatedAt, _ = time.Parse(timeFormat, updatedStr)
		j.Status = model.StatusPending
		if !j.Enabled {
			j.Status = model.StatusDisabled
		}
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
