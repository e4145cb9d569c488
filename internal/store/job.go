package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/sentinel/internal/domain"
)

// JobStore is the job registry: a keyed store of job state and results.
//
// Implementations must be safe for concurrent use by many request handlers
// and workers. Transition is a compare-and-set on the job state, which is what
// guarantees that only one worker ever moves a given job to running.
type JobStore interface {
	// Create saves a new job. It returns ErrJobExists if the ID is taken.
	Create(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Transition moves the job from its current state to next and records result.
	// Returns ErrJobNotFound if the job does not exist and an error wrapping
	// domain.ErrInvalidTransition if next does not follow the stored state.
	// The updated job is returned on success.
	Transition(ctx context.Context, id uuid.UUID, next domain.JobState, result string) (*domain.Job, error)
}
