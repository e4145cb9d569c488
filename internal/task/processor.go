package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/phrazzld/sentinel/internal/artifact"
	"github.com/phrazzld/sentinel/internal/domain"
	"github.com/phrazzld/sentinel/internal/events"
	"github.com/phrazzld/sentinel/internal/generation"
	"github.com/phrazzld/sentinel/internal/platform/logger"
	"github.com/phrazzld/sentinel/internal/queue"
	"github.com/phrazzld/sentinel/internal/redact"
	"github.com/phrazzld/sentinel/internal/store"
)

// Common errors
var (
	ErrNilJobStore   = errors.New("job store cannot be nil")
	ErrNilGenerator  = errors.New("generator cannot be nil")
	ErrNilArtifacts  = errors.New("artifact store cannot be nil")
	ErrNilEmitter    = errors.New("emitter cannot be nil")
	ErrJobPanicked   = errors.New("job panicked")
	ErrJobTimedOut   = errors.New("job timed out")
	errClaimRejected = errors.New("job already claimed")
)

// DefaultJobTimeout bounds a single job when no timeout is configured.
const DefaultJobTimeout = 30 * time.Minute

// JobProcessor carries one job from Running to a terminal state.
type JobProcessor struct {
	jobs      store.JobStore
	generator generation.Generator
	artifacts artifact.Store
	emitter   events.EventEmitter
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewJobProcessor creates a JobProcessor. A non-positive timeout means
// DefaultJobTimeout.
func NewJobProcessor(
	jobs store.JobStore,
	generator generation.Generator,
	artifacts artifact.Store,
	emitter events.EventEmitter,
	timeout time.Duration,
	log *slog.Logger,
) (*JobProcessor, error) {
	switch {
	case jobs == nil:
		return nil, ErrNilJobStore
	case generator == nil:
		return nil, ErrNilGenerator
	case artifacts == nil:
		return nil, ErrNilArtifacts
	case emitter == nil:
		return nil, ErrNilEmitter
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &JobProcessor{
		jobs:      jobs,
		generator: generator,
		artifacts: artifacts,
		emitter:   emitter,
		timeout:   timeout,
		now:       time.Now,
		logger:    log,
	}, nil
}

// Process claims the job named by p and runs it to completion.
//
// A payload whose job was already claimed (or no longer exists) is dropped
// without side effects. Every other failure, including a panic in the
// generator, ends with the job marked Failed. Process never panics and only
// returns an error when the registry itself could not be updated.
func (p *JobProcessor) Process(ctx context.Context, payload queue.Payload) error {
	log := p.logger.With("job_id", payload.JobID, "name", payload.Name)
	ctx = logger.WithLogger(ctx, log)

	if _, err := p.jobs.Transition(ctx, payload.JobID, domain.JobStateRunning, ""); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || store.IsNotFoundError(err) {
			log.Warn("dropping payload", "reason", errClaimRejected, "error", err)
			return nil
		}
		return fmt.Errorf("claim job %s: %w", payload.JobID, err)
	}
	log.Info("processing job")
	started := p.now()

	// Terminal writes outlive the job deadline.
	finishCtx := context.WithoutCancel(ctx)

	locator, err := p.run(ctx, payload)
	if err != nil {
		summary := redact.Error(err)
		log.Error("job failed", "error", summary, "duration", p.now().Sub(started))
		if _, tErr := p.jobs.Transition(finishCtx, payload.JobID, domain.JobStateFailed, summary); tErr != nil {
			return fmt.Errorf("mark job %s failed: %w", payload.JobID, tErr)
		}
		p.emit(finishCtx, log, events.JobFailed(payload.JobID, summary))
		return nil
	}

	if _, err := p.jobs.Transition(finishCtx, payload.JobID, domain.JobStateSucceeded, locator); err != nil {
		return fmt.Errorf("mark job %s succeeded: %w", payload.JobID, err)
	}
	log.Info("job succeeded", "result", locator, "duration", p.now().Sub(started))
	p.emit(finishCtx, log, events.JobSucceeded(payload.JobID, locator))
	return nil
}

type outcome struct {
	locator string
	err     error
}

// run executes the job on its own goroutine so a collaborator that ignores
// ctx still cannot hold the worker past the timeout.
func (p *JobProcessor) run(ctx context.Context, payload queue.Payload) (string, error) {
	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(jobCtx).Error("recovered from panic in job",
					"panic", r,
					"stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("%w: %v", ErrJobPanicked, r)}
			}
		}()
		locator, err := p.generate(jobCtx, payload)
		done <- outcome{locator: locator, err: err}
	}()

	select {
	case o := <-done:
		if errors.Is(o.err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrJobTimedOut, p.timeout)
		}
		return o.locator, o.err
	case <-jobCtx.Done():
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrJobTimedOut, p.timeout)
		}
		return "", jobCtx.Err()
	}
}

func (p *JobProcessor) generate(ctx context.Context, payload queue.Payload) (string, error) {
	art, err := p.generator.Generate(ctx, generation.Request{
		Name:     payload.Name,
		Idea:     payload.Idea,
		Template: payload.Template,
		Options:  payload.Options,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	content, err := generation.Package(art, p.now())
	if err != nil {
		return "", fmt.Errorf("package: %w", err)
	}

	locator, err := p.artifacts.Store(ctx, payload.JobID, content)
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	return locator, nil
}

func (p *JobProcessor) emit(ctx context.Context, log *slog.Logger, e events.Event) {
	if err := p.emitter.Emit(ctx, e); err != nil {
		log.Warn("failed to emit event", "event", e.Type, "error", err)
	}
}
