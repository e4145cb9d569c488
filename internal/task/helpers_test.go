package task

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/sentinel/internal/artifact"
	"github.com/phrazzld/sentinel/internal/domain"
	"github.com/phrazzld/sentinel/internal/events"
	"github.com/phrazzld/sentinel/internal/generation"
	"github.com/phrazzld/sentinel/internal/platform/memory"
	"github.com/phrazzld/sentinel/internal/queue"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// generatorFunc adapts a function to generation.Generator.
type generatorFunc func(ctx context.Context, req generation.Request) (*generation.Artifact, error)

func (f generatorFunc) Generate(ctx context.Context, req generation.Request) (*generation.Artifact, error) {
	return f(ctx, req)
}

func succeedingGenerator() generatorFunc {
	return func(_ context.Context, req generation.Request) (*generation.Artifact, error) {
		return &generation.Artifact{Files: map[string]string{
			"README.md": "# " + req.Name,
			"main.py":   "print('hi')\n",
		}}, nil
	}
}

// recordingEmitter collects emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEmitter) received() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingEmitter) count(typ events.Type) int {
	n := 0
	for _, e := range r.received() {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	jobs      *memory.JobStore
	artifacts *artifact.LocalStore
	emitter   *recordingEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	artifacts, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return &fixture{
		jobs:      memory.NewJobStore(),
		artifacts: artifacts,
		emitter:   &recordingEmitter{},
	}
}

func (f *fixture) processor(t *testing.T, gen generation.Generator) *JobProcessor {
	t.Helper()
	p, err := NewJobProcessor(f.jobs, gen, f.artifacts, f.emitter, 0, setupTestLogger())
	require.NoError(t, err)
	return p
}

// submit registers a queued job and returns its payload.
func (f *fixture) submit(t *testing.T) queue.Payload {
	t.Helper()
	job, err := domain.NewJob("calc", "a calculator", "python-cli", nil)
	require.NoError(t, err)
	require.NoError(t, f.jobs.Create(context.Background(), job))
	return queue.PayloadFromJob(job)
}

func (f *fixture) state(t *testing.T, id uuid.UUID) *domain.Job {
	t.Helper()
	job, err := f.jobs.Get(context.Background(), id)
	require.NoError(t, err)
	return job
}
