package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/sentinel/internal/domain"
	"github.com/phrazzld/sentinel/internal/store"
)

// JobStatus is the point-in-time view of a job returned to pollers.
type JobStatus struct {
	ID     uuid.UUID
	State  domain.JobState
	Result string
}

// StatusService reads job state.
type StatusService interface {
	// GetStatus returns the job's state and result, or ErrJobNotFound.
	GetStatus(ctx context.Context, id uuid.UUID) (*JobStatus, error)
}

type statusServiceImpl struct {
	jobs   store.JobStore
	logger *slog.Logger
}

// NewStatusService creates a StatusService over jobs.
func NewStatusService(jobs store.JobStore, logger *slog.Logger) (StatusService, error) {
	if jobs == nil {
		return nil, &JobServiceError{Operation: "create_service", Message: "jobs cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &statusServiceImpl{jobs: jobs, logger: logger.With("component", "status_service")}, nil
}

// GetStatus is a pure read of the registry.
func (s *statusServiceImpl) GetStatus(ctx context.Context, id uuid.UUID) (*JobStatus, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		if !store.IsNotFoundError(err) {
			s.logger.ErrorContext(ctx, "failed to read job", "error", err, "job_id", id)
		}
		return nil, NewJobServiceError("get_status", "failed to read job", err)
	}
	return &JobStatus{ID: job.ID, State: job.State, Result: job.Result}, nil
}
