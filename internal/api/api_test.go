package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/phrazzld/sentinel/internal/api/middleware"
	"github.com/phrazzld/sentinel/internal/artifact"
	"github.com/phrazzld/sentinel/internal/auth"
	"github.com/phrazzld/sentinel/internal/domain"
	"github.com/phrazzld/sentinel/internal/events"
	"github.com/phrazzld/sentinel/internal/generation"
	"github.com/phrazzld/sentinel/internal/platform/memory"
	"github.com/phrazzld/sentinel/internal/queue"
	"github.com/phrazzld/sentinel/internal/service"
	"github.com/phrazzld/sentinel/internal/task"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "static-key"
	testSecret = "0123456789abcdef0123456789abcdef"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// generatorFunc adapts a function to generation.Generator.
type generatorFunc func(ctx context.Context, req generation.Request) (*generation.Artifact, error)

func (f generatorFunc) Generate(ctx context.Context, req generation.Request) (*generation.Artifact, error) {
	return f(ctx, req)
}

// countingJobStore records how many jobs were created in the registry.
type countingJobStore struct {
	*memory.JobStore
	created atomic.Int32
}

func (s *countingJobStore) Create(ctx context.Context, job *domain.Job) error {
	if err := s.JobStore.Create(ctx, job); err != nil {
		return err
	}
	s.created.Add(1)
	return nil
}

// testApp wires the full pipeline on in-memory backends.
type testApp struct {
	server *httptest.Server
	jobs   *countingJobStore
	queue  *queue.MemoryBackend
	hub    *events.Hub
	tokens auth.TokenService
}

type appOptions struct {
	generator   generation.Generator
	withWorkers bool
}

func newTestApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()
	log := discardLogger()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	authenticator := auth.NewService(auth.NewKeyVerifier(testKey, ""), tokens)

	jobs := &countingJobStore{JobStore: memory.NewJobStore()}
	q := queue.NewMemoryBackend(16, log)
	hub := events.NewHub(events.HubConfig{WriteTimeout: time.Second, CommandBuffer: 16}, log)
	go hub.Run(ctx)

	dispatcher, err := service.NewDispatcher(authenticator, jobs, q, hub, service.DispatcherConfig{}, log)
	require.NoError(t, err)
	status, err := service.NewStatusService(jobs, log)
	require.NoError(t, err)

	if opts.withWorkers {
		store, err := artifact.NewLocalStore(t.TempDir())
		require.NoError(t, err)
		proc, err := task.NewJobProcessor(jobs, opts.generator, store, hub, 5*time.Second, log)
		require.NoError(t, err)
		pool := task.NewWorkerPool(q, proc, task.WorkerPoolConfig{WorkerCount: 2}, log)
		go func() { _ = pool.Run(ctx) }()
	}

	server := httptest.NewServer(NewRouter(RouterConfig{
		Dispatcher:    dispatcher,
		Status:        status,
		Authenticator: authenticator,
		Hub:           hub,
		Logger:        log,
	}))
	t.Cleanup(server.Close)

	return &testApp{server: server, jobs: jobs, queue: q, hub: hub, tokens: tokens}
}

type requestOpts struct {
	key   string
	token string
}

func (a *testApp) do(t *testing.T, method, path, body string, opts requestOpts) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if opts.key != "" {
		req.Header.Set(middleware.APIKeyHeader, opts.key)
	}
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (a *testApp) submit(t *testing.T, body string) string {
	t.Helper()
	code, data := a.do(t, http.MethodPost, "/generate", body, requestOpts{key: testKey})
	require.Equal(t, http.StatusAccepted, code, string(data))

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	require.Equal(t, "queued", resp.Status)
	return resp.JobID
}

func (a *testApp) status(t *testing.T, id string) StatusResponse {
	t.Helper()
	code, data := a.do(t, http.MethodGet, "/status/"+id, "", requestOpts{key: testKey})
	require.Equal(t, http.StatusOK, code, string(data))

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

// stateOf reads the registry directly; safe to call from Eventually.
func (a *testApp) stateOf(id string) domain.JobState {
	job, err := a.jobs.Get(context.Background(), uuid.MustParse(id))
	if err != nil {
		return ""
	}
	return job.State
}

// dialPush opens a push channel connection and waits until the hub has it.
func (a *testApp) dialPush(t *testing.T, wantSubscribers int) *pushClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws"
	conn, br, _, err := ws.Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var r io.Reader = conn
	if br != nil {
		r = br
	}

	require.Eventually(t, func() bool {
		n, err := a.hub.Count(context.Background())
		return err == nil && n == wantSubscribers
	}, 5*time.Second, 10*time.Millisecond)

	return &pushClient{t: t, conn: conn, rw: struct {
		io.Reader
		io.Writer
	}{r, conn}}
}

type pushClient struct {
	t    *testing.T
	conn net.Conn
	rw   io.ReadWriter
}

func (c *pushClient) send(msg string) {
	c.t.Helper()
	require.NoError(c.t, wsutil.WriteClientText(c.conn, []byte(msg)))
}

// next reads one event, failing the test after timeout.
func (c *pushClient) next(timeout time.Duration) (events.Event, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return events.Event{}, err
	}
	data, err := wsutil.ReadServerText(c.rw)
	if err != nil {
		return events.Event{}, err
	}
	var e events.Event
	err = json.Unmarshal(data, &e)
	return e, err
}

func (c *pushClient) mustNext() events.Event {
	c.t.Helper()
	e, err := c.next(5 * time.Second)
	require.NoError(c.t, err)
	return e
}
