package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/sentinel/internal/domain"
)

// Common errors returned by queue backends
var (
	ErrQueueClosed        = errors.New("queue is closed")
	ErrQueueFull          = errors.New("queue is full")
	ErrBackendUnavailable = errors.New("queue backend unavailable")
)

// Payload is the unit of work carried by a queue: the job id plus the
// submission fields a worker needs to generate the artifact.
type Payload struct {
	JobID    uuid.UUID      `json:"job_id"`
	Name     string         `json:"name"`
	Idea     string         `json:"idea"`
	Template string         `json:"template"`
	Options  map[string]any `json:"options,omitempty"`
}

// PayloadFromJob builds the queue payload for job.
func PayloadFromJob(job *domain.Job) Payload {
	return Payload{
		JobID:    job.ID,
		Name:     job.Name,
		Idea:     job.Idea,
		Template: job.Template,
		Options:  job.Options,
	}
}

// Writer is the producer side of a queue.
type Writer interface {
	// Enqueue adds a payload to the queue.
	Enqueue(ctx context.Context, p Payload) error
}

// Reader is the consumer side of a queue.
type Reader interface {
	// Dequeue blocks until a payload is available or ctx is done.
	// It returns ErrQueueClosed once the queue is closed and drained, and an
	// error wrapping ErrBackendUnavailable when the backend cannot be reached.
	Dequeue(ctx context.Context) (Payload, error)
}

// Backend is a queue usable for both submission and consumption.
type Backend interface {
	Writer
	Reader

	// Close releases the backend. Further Enqueue calls return ErrQueueClosed.
	Close() error
}
