package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/sentinel/internal/api/middleware"
	"github.com/phrazzld/sentinel/internal/api/shared"
	"github.com/phrazzld/sentinel/internal/auth"
	"github.com/phrazzld/sentinel/internal/service"
)

// JobHandler handles job submission and status requests.
type JobHandler struct {
	dispatcher service.Dispatcher
	status     service.StatusService
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(dispatcher service.Dispatcher, status service.StatusService) *JobHandler {
	return &JobHandler{dispatcher: dispatcher, status: status}
}

// Generate handles POST /generate. The dispatcher authenticates the caller
// from the request headers; the response is sent once the job is queued.
func (h *JobHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, shared.ValidationMessage(err), err)
		return
	}

	job, err := h.dispatcher.Submit(r.Context(), middleware.Credentials(r), req.toSubmitRequest())
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			middleware.RespondUnauthorized(w, r, err)
			return
		}
		respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, GenerateResponse{
		Status: "queued",
		JobID:  job.ID.String(),
	})
}

// GetStatus handles GET /status/{job_id}. It must be mounted behind the
// auth middleware.
func (h *JobHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "job_id")
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	status, err := h.status.GetStatus(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	resp := StatusResponse{ID: status.ID.String(), Status: string(status.State)}
	if status.Result != "" {
		resp.Result = &status.Result
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
