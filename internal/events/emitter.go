package events

import (
	"context"
	"log/slog"
	"sync"
)

// FanoutEmitter forwards every event to a set of registered emitters.
type FanoutEmitter struct {
	emitters []EventEmitter
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewFanoutEmitter creates an emitter that forwards to the given emitters.
func NewFanoutEmitter(logger *slog.Logger, emitters ...EventEmitter) *FanoutEmitter {
	return &FanoutEmitter{
		emitters: emitters,
		logger:   logger.With("component", "fanout_emitter"),
	}
}

// Register adds another emitter to receive events.
func (e *FanoutEmitter) Register(emitter EventEmitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitters = append(e.emitters, emitter)
	e.logger.Debug("registered event emitter", "emitter_count", len(e.emitters))
}

// Emit forwards the event to every registered emitter.
// A failing emitter does not stop delivery to the others; the first error is returned.
func (e *FanoutEmitter) Emit(ctx context.Context, event Event) error {
	e.mu.RLock()
	emitters := make([]EventEmitter, len(e.emitters))
	copy(emitters, e.emitters)
	e.mu.RUnlock()

	var firstErr error
	for i, emitter := range emitters {
		if err := emitter.Emit(ctx, event); err != nil {
			e.logger.Error("emitter failed to publish event",
				"error", err,
				"emitter_index", i,
				"event", event.Type,
				"job_id", event.JobID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// LogEmitter records events in the log. Worker-only processes without a
// relay channel use it so lifecycle transitions remain visible.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a LogEmitter.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger.With("component", "event_log")}
}

// Emit logs the event at info level.
func (e *LogEmitter) Emit(ctx context.Context, event Event) error {
	e.logger.InfoContext(ctx, "job event",
		"event", event.Type,
		"job_id", event.JobID,
		"result", event.Result,
		"error", event.Error)
	return nil
}
