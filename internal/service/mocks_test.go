package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/sentinel/internal/auth"
	"github.com/phrazzld/sentinel/internal/domain"
	"github.com/phrazzld/sentinel/internal/events"
	"github.com/phrazzld/sentinel/internal/queue"
	"github.com/stretchr/testify/mock"
)

// MockJobStore mocks the store.JobStore interface
type MockJobStore struct {
	mock.Mock
}

func (m *MockJobStore) Create(ctx context.Context, job *domain.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobStore) Transition(
	ctx context.Context,
	id uuid.UUID,
	next domain.JobState,
	result string,
) (*domain.Job, error) {
	args := m.Called(ctx, id, next, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

// MockQueue mocks the queue.Writer interface
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, p queue.Payload) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// stubAuthenticator accepts a single key.
type stubAuthenticator struct {
	key string
}

func (a stubAuthenticator) Authenticate(_ context.Context, creds auth.Credentials) (*auth.Principal, error) {
	if creds.APIKey == a.key {
		return &auth.Principal{Subject: "test", Method: auth.MethodAPIKey}, nil
	}
	return nil, auth.ErrUnauthorized
}

// recordingEmitter collects emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingEmitter) received() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}
