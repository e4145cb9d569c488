package api

import (
	"github.com/phrazzld/sentinel/internal/service"
)

// GenerateRequest defines the payload for the job submission endpoint.
type GenerateRequest struct {
	Idea     string         `json:"idea"               validate:"required,max=4000"`
	Name     string         `json:"name"               validate:"required,max=200"`
	Template string         `json:"template,omitempty" validate:"max=100"`
	Options  map[string]any `json:"options,omitempty"`
}

// toSubmitRequest converts the payload to the dispatcher's request type.
func (r GenerateRequest) toSubmitRequest() service.SubmitRequest {
	return service.SubmitRequest{
		Name:     r.Name,
		Idea:     r.Idea,
		Template: r.Template,
		Options:  r.Options,
	}
}

// GenerateResponse is returned once a job is queued.
type GenerateResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// StatusResponse reports a job's state. Result is the artifact locator
// for succeeded jobs and the error summary for failed ones.
type StatusResponse struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Result *string `json:"result"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
