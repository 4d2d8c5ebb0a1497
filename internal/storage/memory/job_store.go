package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

// JobStore provides an in-memory implementation for development/testing.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]hansard.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]hansard.Job),
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job hansard.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJob updates the status and result for a job.
func (s *JobStore) UpdateJob(
	_ context.Context,
	jobID string,
	status hansard.JobStatus,
	errText string,
	result hansard.JobResult,
	at time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("update job %s: %w", jobID, hansard.ErrNotFoundJob)
	}
	job.Status = status
	job.ErrorText = errText
	job.Result = result
	if status == hansard.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(at)
	}
	if isTerminal(status) {
		job.Finished = pointerTime(at)
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (hansard.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return hansard.Job{}, fmt.Errorf("get job %s: %w", jobID, hansard.ErrNotFoundJob)
	}
	return job, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status hansard.JobStatus) bool {
	switch status {
	case hansard.JobStatusSucceeded, hansard.JobStatusFailed:
		return true
	default:
		return false
	}
}
