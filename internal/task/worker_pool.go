package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/sentinel/internal/queue"
)

// Processor handles a single dequeued payload.
type Processor interface {
	Process(ctx context.Context, p queue.Payload) error
}

// WorkerPool manages a pool of worker goroutines that process jobs
// from a queue. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	// queue provides the payloads to be processed
	queue queue.Reader

	// processor runs each payload to a terminal state
	processor Processor

	// workerCount is the number of concurrent workers to start
	workerCount int

	// logger for structured logging
	logger *slog.Logger
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(q queue.Reader, processor Processor, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}

	// Apply defaults for invalid config values
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	return &WorkerPool{
		queue:       q,
		processor:   processor,
		workerCount: workerCount,
		logger:      logger.With("component", "worker_pool"),
	}
}

// Run starts the workers and blocks until they have all stopped.
//
// Cancelling ctx stops each worker once its current job is finished; the
// job itself is not interrupted. Run returns nil after a cancellation or a
// closed queue. Any other dequeue error means the queue backend is gone: the
// remaining workers are stopped and the error is returned.
func (p *WorkerPool) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	for i := range p.workerCount {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := p.worker(ctx, id); err != nil {
				cancel(err)
			}
		}(i)
	}

	p.logger.Info("worker pool started", "worker_count", p.workerCount)
	wg.Wait()
	p.logger.Info("worker pool stopped")

	if err := context.Cause(ctx); err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// worker processes payloads until ctx is done or the queue fails.
func (p *WorkerPool) worker(ctx context.Context, id int) error {
	log := p.logger.With("worker_id", id)
	log.Debug("starting worker")

	for {
		payload, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrQueueClosed) {
				log.Debug("stopping worker")
				return nil
			}
			log.Error("queue backend failed, stopping worker", "error", err)
			return fmt.Errorf("worker %d dequeue: %w", id, err)
		}

		// A claimed job finishes even when the pool is shutting down.
		if err := p.processor.Process(context.WithoutCancel(ctx), payload); err != nil {
			log.Error("failed to record job outcome", "job_id", payload.JobID, "error", err)
		}
	}
}
