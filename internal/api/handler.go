// Package api provides the HTTP API handlers and routing for the ingestion service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"ingestion/internal/apperrors"
	"ingestion/internal/health"
	"ingestion/internal/job"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// Handler contains HTTP handlers for the ingestion API
type Handler struct {
	svc       *job.Service
	health    *health.Checker
	createReq *requestValidator
	logger    *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc *job.Service, healthChecker *health.Checker) *Handler {
	return &Handler{
		svc:       svc,
		health:    healthChecker,
		createReq: mustRequestValidator("create_ingestion.json", createIngestionSchema),
		logger:    slog.With("component", "api"),
	}
}

// createResponse is the worker's answer to Start, plus the id it was started under.
type createResponse struct {
	ID     string     `json:"id"`
	Status job.Status `json:"status,omitempty"`
}

type embeddingResponse struct {
	ID        string    `json:"id"`
	Embedding []float64 `json:"embedding"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// CreateJob handles POST /v1/ingestions
//
// @Summary Create an ingestion job
// @Description Persists a Pending record, starts the job on the worker and returns the worker's status.
// @Tags ingestions
// @Accept json
// @Produce json
// @Param request body job.CreateRequest true "optional id and ingestion metadata"
// @Success 202 {object} createResponse
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Security BearerAuth
// @Router /v1/ingestions [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := h.createReq.Validate(body); err != nil {
		h.handleError(w, r, err)
		return
	}

	var req job.CreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.CreateJob(r.Context(), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, createResponse{ID: res.ID, Status: res.Status})
}

// GetJob handles GET /v1/ingestions/{id}
//
// @Summary Get the cached ingestion record
// @Tags ingestions
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} job.Job
// @Failure 404 {object} errorResponse
// @Security BearerAuth
// @Router /v1/ingestions/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, j)
}

// GetStatus handles GET /v1/ingestions/{id}/status
//
// @Summary Get the job status from the worker
// @Description Synchronises the cached status with the worker. When the worker is unreachable the cached status is returned with stale set.
// @Tags ingestions
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} job.StatusResult
// @Failure 404 {object} errorResponse
// @Security BearerAuth
// @Router /v1/ingestions/{id}/status [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// Cancel handles POST /v1/ingestions/{id}/cancel
//
// @Summary Cancel a job
// @Tags ingestions
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} job.ControlResult
// @Failure 404 {object} errorResponse
// @Security BearerAuth
// @Router /v1/ingestions/{id}/cancel [post]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.svc.Cancel)
}

// Pause handles POST /v1/ingestions/{id}/pause
//
// @Summary Pause a job
// @Tags ingestions
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} job.ControlResult
// @Failure 404 {object} errorResponse
// @Security BearerAuth
// @Router /v1/ingestions/{id}/pause [post]
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.svc.Pause)
}

// Resume handles POST /v1/ingestions/{id}/resume
//
// @Summary Resume a paused job
// @Tags ingestions
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} job.ControlResult
// @Failure 404 {object} errorResponse
// @Security BearerAuth
// @Router /v1/ingestions/{id}/resume [post]
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.svc.Resume)
}

// Retry handles POST /v1/ingestions/{id}/retry
//
// @Summary Retry a failed job
// @Tags ingestions
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} job.ControlResult
// @Failure 404 {object} errorResponse
// @Security BearerAuth
// @Router /v1/ingestions/{id}/retry [post]
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.svc.Retry)
}

// GetEmbedding handles GET /v1/ingestions/{id}/embedding
//
// @Summary Get the embedding vector for a job
// @Tags ingestions
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} embeddingResponse
// @Failure 502 {object} errorResponse
// @Security BearerAuth
// @Router /v1/ingestions/{id}/embedding [get]
func (h *Handler) GetEmbedding(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	vec, err := h.svc.GetEmbedding(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, embeddingResponse{ID: id, Embedding: vec})
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 503 if the worker or the record store is unavailable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// control runs one of the service's control operations against the path id.
func (h *Handler) control(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*job.ControlResult, error)) {
	res, err := fn(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

// handleError handles errors from service layer with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		h.logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path, "status", status)
	} else {
		h.logger.WarnContext(r.Context(), "Client error", "error", err, "path", r.URL.Path, "status", status)
	}

	resp := errorResponse{Error: err.Error()}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		resp.Field = appErr.Field
	}
	h.writeJSON(w, status, resp)
}
