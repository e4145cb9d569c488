package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/sentinel/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusAccepted, map[string]any{"status": "queued"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"queued"}`, w.Body.String())
}

// captureLogs routes the request's logger into a buffer.
func captureLogs(req *http.Request) (*http.Request, *strings.Builder) {
	var buf strings.Builder
	l := slog.New(logger.NewContextHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	ctx := logger.WithLogger(logger.WithTraceID(req.Context(), "test-trace-id"), l)
	return req.WithContext(ctx), &buf
}

func TestRespondWithError(t *testing.T) {
	req, _ := captureLogs(httptest.NewRequest(http.MethodGet, "/test", nil))
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusBadRequest, "Invalid request")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Invalid request", response.Error)
	assert.Equal(t, "test-trace-id", response.TraceID)
}

func TestRespondWithErrorNoTraceID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(context.Background())
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusUnauthorized, "Unauthorized")

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Unauthorized", response["error"])
	assert.NotContains(t, response, "trace_id")
}

func TestRespondWithErrorAndLog(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		elevate       bool
		expectedLevel string
	}{
		{name: "server error", status: http.StatusInternalServerError, expectedLevel: "ERROR"},
		{name: "client error", status: http.StatusBadRequest, expectedLevel: "DEBUG"},
		{name: "elevated client error", status: http.StatusUnauthorized, elevate: true, expectedLevel: "WARN"},
		{name: "rate limited", status: http.StatusTooManyRequests, expectedLevel: "WARN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, logs := captureLogs(httptest.NewRequest(http.MethodGet, "/test", nil))
			w := httptest.NewRecorder()

			secretErr := errors.New("dial postgres://sentinel:hunter2@db:5432/jobs failed")
			var opts []ResponseOption
			if tc.elevate {
				opts = append(opts, WithElevatedLogLevel())
			}
			RespondWithErrorAndLog(w, req, tc.status, "Something failed", secretErr, opts...)

			assert.Equal(t, tc.status, w.Code)
			assert.NotContains(t, w.Body.String(), "hunter2")

			out := logs.String()
			assert.Contains(t, out, "level="+tc.expectedLevel)
			assert.Contains(t, out, "trace_id=test-trace-id")
			assert.Contains(t, out, "error_type=")
			assert.NotContains(t, out, "hunter2")
		})
	}
}
