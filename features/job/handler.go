package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"docingest/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// List returns failed ingestion jobs, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobs, err := h.service.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list failed jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to list failed jobs", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}
	slog.InfoContext(ctx, "listed failed jobs", "count", len(jobs))

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": jobs,
		"meta": map[string]int{"count": len(jobs)},
	})
}

type retryView struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	Status   string `json:"status"`
}

// Retry puts a failed file back on the ingestion queue. The job row is only
// removed once the queue accepted the message.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	j, err := h.service.Retry(ctx, id)
	fileName := ""
	if j != nil {
		fileName = j.FileName
	}

	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		h.writeError(ctx, w, "NOT_FOUND", "Job not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrPublishTimeout):
		slog.ErrorContext(ctx, "ingestion queue did not accept retry", "job_id", id, "file_name", fileName, "error", err)
		h.writeError(ctx, w, "QUEUE_UNAVAILABLE", "Ingestion queue is not responding, job kept for a later retry", http.StatusServiceUnavailable)
		return
	default:
		slog.ErrorContext(ctx, "failed to retry job", "job_id", id, "file_name", fileName, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(ctx, "failed job requeued", "job_id", id, "file_name", fileName)
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": retryView{ID: id, FileName: fileName, Status: "queued"},
	})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.writeJSON(ctx, w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
