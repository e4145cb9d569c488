package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/sentinel/internal/domain"
	"github.com/phrazzld/sentinel/internal/store"
)

// JobStore keeps jobs in a map guarded by a mutex.
// Jobs are copied on the way in and out so callers never share state with the store.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job
}

// NewJobStore creates an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

// Ensure JobStore implements store.JobStore
var _ store.JobStore = (*JobStore)(nil)

// Create saves a copy of job.
func (s *JobStore) Create(_ context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return store.ErrJobExists
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Get returns a copy of the job with the given ID.
func (s *JobStore) Get(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// Transition applies the state change under the write lock.
func (s *JobStore) Transition(
	_ context.Context,
	id uuid.UUID,
	next domain.JobState,
	result string,
) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}

	updated := cloneJob(job)
	if err := updated.Transition(next, result); err != nil {
		return nil, err
	}
	s.jobs[id] = updated
	return cloneJob(updated), nil
}

// size returns the number of stored jobs.
func (s *JobStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func cloneJob(job *domain.Job) *domain.Job {
	c := *job
	c.Options = maps.Clone(job.Options)
	return &c
}
