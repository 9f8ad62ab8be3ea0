package handlers

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_job_service.go -package=mocks dpia-ai/internal/handlers JobService

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dpia-ai/internal/contextutil"
	"dpia-ai/internal/jobs"
)

// JobService submits, observes and cancels background jobs.
type JobService interface {
	Submit(ctx context.Context, kind jobs.Kind, payload json.RawMessage) (string, error)
	Poll(ctx context.Context, id string) (jobs.Snapshot, error)
	Cancel(ctx context.Context, id string) error
}

// JobsHandler handles HTTP requests for jobs.
type JobsHandler struct {
	jobs JobService
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(jobService JobService) *JobsHandler {
	return &JobsHandler{jobs: jobService}
}

// SubmitRequest is the payload of a job submission.
//
// swagger:model SubmitRequest
type SubmitRequest struct {
	// Kind is "chatTurn" or "reportRun".
	Kind    jobs.Kind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitResponse identifies a submitted job.
//
// swagger:model SubmitResponse
type SubmitResponse struct {
	JobID string     `json:"job_id"`
	State jobs.State `json:"state"`
}

// Submit starts a job and returns its ID without waiting for it.
//
// swagger:route POST /api/jobs submitJob
//
// responses:
//
//	'202': SubmitResponse
//	'400': ErrorResponse
func (h *JobsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.jobs.Submit(ctx, req.Kind, req.Payload)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to submit job")
		return
	}
	writeJSON(ctx, w, http.StatusAccepted, SubmitResponse{JobID: id, State: jobs.StatePending})
}

// Get returns the current state of a job, with its result once it succeeded.
//
// swagger:route GET /api/jobs/{id} pollJob
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.jobs.Poll(ctx, strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load job")
		return
	}
	writeJSON(ctx, w, http.StatusOK, snap)
}

// Cancel requests cancellation of a job and returns its state afterwards.
// A running job may still report running until it reaches its next checkpoint.
//
// swagger:route POST /api/jobs/{id}/cancel cancelJob
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	if err := h.jobs.Cancel(ctx, id); err != nil {
		handleServiceError(ctx, w, err, "Failed to cancel job")
		return
	}
	snap, err := h.jobs.Poll(ctx, id)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load job")
		return
	}
	writeJSON(ctx, w, http.StatusAccepted, snap)
}
