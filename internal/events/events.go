package events

import (
	"context"

	"github.com/google/uuid"
)

// Type identifies the kind of event on the wire.
type Type string

// Event types
const (
	TypeJobQueued    Type = "job_queued"
	TypeJobSucceeded Type = "job_succeeded"
	TypeJobFailed    Type = "job_failed"
	TypePong         Type = "pong"
)

// Event is a transient notification pushed to subscribers as a JSON object.
// Only the fields relevant to the event type are set.
type Event struct {
	Type   Type   `json:"event"`
	JobID  string `json:"job_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// JobQueued is emitted once a job is registered and enqueued.
func JobQueued(id uuid.UUID, name string) Event {
	return Event{Type: TypeJobQueued, JobID: id.String(), Name: name}
}

// JobSucceeded carries the artifact locator of a finished job.
func JobSucceeded(id uuid.UUID, locator string) Event {
	return Event{Type: TypeJobSucceeded, JobID: id.String(), Result: locator}
}

// JobFailed carries the error summary of a failed job.
func JobFailed(id uuid.UUID, summary string) Event {
	return Event{Type: TypeJobFailed, JobID: id.String(), Error: summary}
}

// Pong is the reply to any inbound subscriber message.
func Pong() Event {
	return Event{Type: TypePong}
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without knowing who receives them.
type EventEmitter interface {
	// Emit publishes the event. Delivery is best effort; an error means the
	// event could not be handed off at all.
	Emit(ctx context.Context, event Event) error
}

// EmitterFunc adapts a function to the EventEmitter interface.
type EmitterFunc func(ctx context.Context, event Event) error

// Emit calls f(ctx, event).
func (f EmitterFunc) Emit(ctx context.Context, event Event) error {
	return f(ctx, event)
}
