package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/sentinel/internal/auth"
	"github.com/phrazzld/sentinel/internal/domain"
	"github.com/phrazzld/sentinel/internal/events"
	"github.com/phrazzld/sentinel/internal/platform/logger"
	"github.com/phrazzld/sentinel/internal/queue"
	"github.com/phrazzld/sentinel/internal/store"
)

// SubmitRequest is a project-generation submission.
type SubmitRequest struct {
	Name     string
	Idea     string
	Template string
	Options  map[string]any
}

// Dispatcher accepts generation jobs.
type Dispatcher interface {
	// Submit authenticates the caller, registers a queued job, enqueues it and
	// announces it. It returns as soon as the job is enqueued.
	Submit(ctx context.Context, creds auth.Credentials, req SubmitRequest) (*domain.Job, error)
}

// DispatcherConfig holds the dispatcher's settings.
type DispatcherConfig struct {
	// DefaultTemplate replaces an empty template in submissions.
	DefaultTemplate string
}

type dispatcherImpl struct {
	authenticator   auth.Authenticator
	jobs            store.JobStore
	queue           queue.Writer
	emitter         events.EventEmitter
	defaultTemplate string
	logger          *slog.Logger
}

// NewDispatcher creates a Dispatcher.
// It returns an error if any of the required dependencies are nil.
func NewDispatcher(
	authenticator auth.Authenticator,
	jobs store.JobStore,
	q queue.Writer,
	emitter events.EventEmitter,
	cfg DispatcherConfig,
	log *slog.Logger,
) (Dispatcher, error) {
	deps := []struct {
		name string
		nil  bool
	}{
		{"authenticator", authenticator == nil},
		{"jobs", jobs == nil},
		{"queue", q == nil},
		{"emitter", emitter == nil},
	}
	for _, d := range deps {
		if d.nil {
			return nil, &JobServiceError{
				Operation: "create_service",
				Message:   d.name + " cannot be nil",
			}
		}
	}

	if log == nil {
		log = slog.Default()
	}
	if cfg.DefaultTemplate == "" {
		cfg.DefaultTemplate = domain.DefaultTemplate
	}

	return &dispatcherImpl{
		authenticator:   authenticator,
		jobs:            jobs,
		queue:           q,
		emitter:         emitter,
		defaultTemplate: cfg.DefaultTemplate,
		logger:          log.With("component", "dispatcher"),
	}, nil
}

// Submit registers, enqueues and announces a job.
// The three effects are not transactional: if enqueueing fails the job stays
// registered as queued and the caller gets ErrQueueUnavailable; a failed
// announcement is logged and otherwise ignored.
func (d *dispatcherImpl) Submit(
	ctx context.Context,
	creds auth.Credentials,
	req SubmitRequest,
) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	principal, err := d.authenticator.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}

	template := req.Template
	if template == "" {
		template = d.defaultTemplate
	}

	job, err := domain.NewJob(req.Name, req.Idea, template, req.Options)
	if err != nil {
		return nil, err
	}

	if err := d.jobs.Create(ctx, job); err != nil {
		log.Error("failed to register job", "error", err, "job_id", job.ID)
		return nil, NewJobServiceError("submit", "failed to register job", err)
	}

	if err := d.queue.Enqueue(ctx, queue.PayloadFromJob(job)); err != nil {
		log.Error("failed to enqueue job", "error", err, "job_id", job.ID)
		return nil, NewJobServiceError("submit", "failed to enqueue job",
			fmt.Errorf("%w: %w", ErrQueueUnavailable, err))
	}

	if err := d.emitter.Emit(ctx, events.JobQueued(job.ID, job.Name)); err != nil {
		log.Warn("failed to announce queued job", "error", err, "job_id", job.ID)
	}

	log.Info("job queued",
		"job_id", job.ID,
		"name", job.Name,
		"template", job.Template,
		"auth_method", principal.Method)
	return job, nil
}
