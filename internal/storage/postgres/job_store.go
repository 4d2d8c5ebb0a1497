package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

// JobStore persists job records in Postgres.
type JobStore struct {
	db    DB
	table string
}

// NewJobStore constructs a JobStore over db. An empty table defaults to "jobs".
func NewJobStore(db DB, table string) (*JobStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table, "jobs")
	if err != nil {
		return nil, err
	}
	return &JobStore{db: db, table: name}, nil
}

// EnsureSchema creates the jobs table when missing.
func (s *JobStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	request JSONB NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ,
	error_text TEXT NOT NULL DEFAULT '',
	entries INTEGER NOT NULL DEFAULT 0,
	filename TEXT NOT NULL DEFAULT '',
	report_uri TEXT NOT NULL DEFAULT ''
)`, s.table)
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// CreateJob inserts a new job row.
func (s *JobStore) CreateJob(ctx context.Context, job hansard.Job) error {
	request, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("marshal job request: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, status, request, submitted_at)
VALUES ($1, $2, $3, $4)`, s.table)
	if _, err := s.db.Exec(ctx, query, job.ID, string(job.Status), request, job.Submitted); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJob sets the status and result of a job. started_at is stamped on the
// first transition to running; finished_at on terminal statuses.
func (s *JobStore) UpdateJob(
	ctx context.Context,
	jobID string,
	status hansard.JobStatus,
	errText string,
	result hansard.JobResult,
	at time.Time,
) error {
	query := fmt.Sprintf(`
UPDATE %s
SET status = $1::text,
	error_text = $2,
	entries = $3,
	filename = $4,
	report_uri = $5,
	started_at = CASE WHEN $1::text = 'running' AND started_at IS NULL THEN $6 ELSE started_at END,
	finished_at = CASE WHEN $1::text IN ('succeeded', 'failed') THEN $6 ELSE finished_at END
WHERE id = $7`, s.table)
	tag, err := s.db.Exec(ctx, query,
		string(status),
		errText,
		result.Entries,
		result.Filename,
		result.ReportURI,
		at,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s: %w", jobID, hansard.ErrNotFoundJob)
	}
	return nil
}

// GetJob retrieves a single job by its ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (hansard.Job, error) {
	query := fmt.Sprintf(`
SELECT id, status, request, submitted_at, started_at, finished_at, error_text, entries, filename, report_uri
FROM %s
WHERE id = $1`, s.table)
	var (
		job     hansard.Job
		status  string
		request []byte
	)
	err := s.db.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&status,
		&request,
		&job.Submitted,
		&job.Started,
		&job.Finished,
		&job.ErrorText,
		&job.Result.Entries,
		&job.Result.Filename,
		&job.Result.ReportURI,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return hansard.Job{}, fmt.Errorf("get job %s: %w", jobID, hansard.ErrNotFoundJob)
	}
	if err != nil {
		return hansard.Job{}, fmt.Errorf("failed to get job: %w", err)
	}
	job.Status = hansard.JobStatus(status)
	if err := json.Unmarshal(request, &job.Request); err != nil {
		return hansard.Job{}, fmt.Errorf("decode job request: %w", err)
	}
	return job, nil
}
