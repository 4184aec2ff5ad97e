package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/clipthumb/internal/job"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.PreviewService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreatePreview only records the job.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.PreviewService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(validator.WithRequiredStructEnabled()),
		logger:             logger,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Publishing: h.service.PublishingEnabled()})
}

// CreatePreview handles POST /previews requests.
func (h *Handlers) CreatePreview(w http.ResponseWriter, r *http.Request) {
	var req CreatePreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input := job.CreatePreviewInput{
		SourcePath: req.SourcePath,
		Options:    req.Options.toOptions(),
		Publish:    req.Publish,
	}

	create := h.service.CreateJob
	if h.enableAsyncProcess {
		create = h.service.Submit
	}

	created, err := create(r.Context(), input)
	if err != nil {
		if errors.Is(err, job.ErrPublishingDisabled) {
			writeError(w, http.StatusBadRequest, "publishing is not configured on this server", "PUBLISHING_DISABLED")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	h.logger.Info("job created",
		slog.String("job_id", created.ID),
		slog.String("source", req.SourcePath),
	)

	writeJSON(w, http.StatusAccepted, CreatePreviewResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// ListPreviews handles GET /previews requests.
func (h *Handlers) ListPreviews(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := ListPreviewsResponse{Previews: make([]PreviewResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Previews = append(resp.Previews, newPreviewResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPreview handles GET /previews/{id} requests.
func (h *Handlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	found, ok := h.findJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newPreviewResponse(found))
}

// DeletePreview handles DELETE /previews/{id} requests. Only finished jobs
// can be deleted.
func (h *Handlers) DeletePreview(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	err := h.service.DeleteJob(r.Context(), jobID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrJobActive):
		writeError(w, http.StatusConflict, "job has not finished", "JOB_ACTIVE")
	default:
		h.logger.Error("failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
	}
}

// GetPreviewFile handles GET /previews/{id}/file requests by streaming the
// finished artifact.
func (h *Handlers) GetPreviewFile(w http.ResponseWriter, r *http.Request) {
	found, ok := h.findJob(w, r)
	if !ok {
		return
	}

	if found.Status != job.StatusCompleted || found.Result == nil {
		writeError(w, http.StatusConflict, "preview is not ready", "PREVIEW_NOT_READY")
		return
	}

	f, err := os.Open(found.Result.Path) // #nosec G304 - path was produced by the generator
	if err != nil {
		h.logger.Error("failed to open preview artifact",
			slog.String("job_id", found.ID),
			slog.String("path", found.Result.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusGone, "preview artifact is no longer available", "PREVIEW_GONE")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read preview artifact", "PREVIEW_READ_FAILED")
		return
	}

	http.ServeContent(w, r, filepath.Base(found.Result.Path), info.ModTime(), f)
}

func (h *Handlers) findJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return nil, false
	}

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return nil, false
	}
	return found, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
