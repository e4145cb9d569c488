package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobState represents the lifecycle state of a generation job.
type JobState string

// Possible job states. A job only ever moves forward:
// queued -> running -> succeeded | failed.
const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// DefaultTemplate is used when a submission does not name a template.
const DefaultTemplate = "python-cli"

// IsValid reports whether s is a known job state.
func (s JobState) IsValid() bool {
	switch s {
	case JobStateQueued, JobStateRunning, JobStateSucceeded, JobStateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible from s.
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// CanTransitionTo reports whether next directly follows s.
func (s JobState) CanTransitionTo(next JobState) bool {
	switch s {
	case JobStateQueued:
		return next == JobStateRunning
	case JobStateRunning:
		return next == JobStateSucceeded || next == JobStateFailed
	default:
		return false
	}
}

// Job is a single project-generation request and its processing state.
//
// Result holds the artifact locator once the job succeeded and the error
// summary once it failed; it is empty otherwise.
type Job struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Idea      string         `json:"idea"`
	Template  string         `json:"template"`
	Options   map[string]any `json:"options,omitempty"`
	State     JobState       `json:"state"`
	Result    string         `json:"result,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewJob creates a queued job with a fresh ID.
// An empty template is replaced by DefaultTemplate.
func NewJob(name, idea, template string, options map[string]any) (*Job, error) {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	if options == nil {
		options = map[string]any{}
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New(),
		Name:      name,
		Idea:      idea,
		Template:  template,
		Options:   options,
		State:     JobStateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Validate checks that the job carries the fields every submission needs.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if strings.TrimSpace(j.Name) == "" {
		return NewValidationError("name", "cannot be empty", nil)
	}
	if strings.TrimSpace(j.Idea) == "" {
		return NewValidationError("idea", "cannot be empty", nil)
	}
	if !j.State.IsValid() {
		return ErrInvalidJobState
	}
	return nil
}

// Transition moves the job to next, recording result and the update time.
// It returns ErrInvalidTransition if next does not follow the current state.
func (j *Job) Transition(next JobState, result string) error {
	if !next.IsValid() {
		return ErrInvalidJobState
	}
	if !j.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, next)
	}

	j.State = next
	j.Result = result
	j.UpdatedAt = time.Now().UTC()
	return nil
}
