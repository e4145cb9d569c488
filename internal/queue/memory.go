package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MemoryBackend is a bounded in-process queue backed by a buffered channel.
// It does not survive restarts and is meant for single-process deployments.
type MemoryBackend struct {
	mu       sync.RWMutex
	payloads chan Payload
	logger   *slog.Logger
	closed   bool
}

// Ensure MemoryBackend implements Backend
var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates a queue with the specified buffer size.
func NewMemoryBackend(size int, logger *slog.Logger) *MemoryBackend {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBackend{
		payloads: make(chan Payload, size),
		logger:   logger.With("component", "memory_queue"),
	}
}

// Enqueue adds a payload without blocking.
// Returns ErrQueueFull when the buffer is at capacity.
func (q *MemoryBackend) Enqueue(_ context.Context, p Payload) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.payloads <- p:
		q.logger.Debug("job enqueued",
			"job_id", p.JobID,
			"queue_len", len(q.payloads),
			"queue_cap", cap(q.payloads))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.payloads))
	}
}

// Dequeue waits for the next payload.
func (q *MemoryBackend) Dequeue(ctx context.Context) (Payload, error) {
	select {
	case <-ctx.Done():
		return Payload{}, ctx.Err()
	case p, ok := <-q.payloads:
		if !ok {
			return Payload{}, ErrQueueClosed
		}
		return p, nil
	}
}

// size returns the number of buffered payloads.
func (q *MemoryBackend) size() int {
	return len(q.payloads)
}

// Close stops accepting payloads. Buffered payloads can still be dequeued.
func (q *MemoryBackend) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.payloads)
		q.logger.Info("queue closed")
	}
	return nil
}
