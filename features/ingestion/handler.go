package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"docingest/internal/config"
	"docingest/internal/document"
	"docingest/internal/middleware"
	"docingest/internal/parser"
	"docingest/internal/worker"
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Handler struct {
	service   *Service
	pub       EventPublisher
	uploadDir string
	maxUpload int64
}

func NewHandler(service *Service, pub EventPublisher, uploadDir string, maxUploadMB int64) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &Handler{service: service, pub: pub, uploadDir: uploadDir, maxUpload: maxUploadMB << 20}
}

// extensionTypes covers clients that send application/octet-stream, and
// Markdown, which content sniffing reports as plain text.
var extensionTypes = map[string]string{
	".pdf":      parser.MIMEPDF,
	".txt":      parser.MIMEPlain,
	".md":       parser.MIMEMarkdown,
	".markdown": parser.MIMEMarkdown,
	".doc":      parser.MIMEDoc,
	".docx":     parser.MIMEDocx,
}

// detectMIME prefers the declared part type, then the file extension, then
// the content itself.
func detectMIME(declared, fileName string, data []byte) string {
	declared = parser.Normalize(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return t
	}
	return parser.Normalize(mimetype.Detect(data).String())
}

type uploadRequest struct {
	file document.File
	cfg  document.ProcessingConfig
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*uploadRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "File too large or malformed form", http.StatusBadRequest)
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Unable to read file", http.StatusBadRequest)
		return nil, false
	}

	name := r.FormValue("name")
	if name == "" {
		name = filepath.Base(header.Filename)
	}

	cfg := document.ProcessingConfig{Model: r.FormValue("model")}
	for _, field := range []struct {
		key string
		dst *int
	}{
		{"chunk_size", &cfg.ChunkSize},
		{"overlap_size", &cfg.OverlapSize},
	} {
		v := r.FormValue(field.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", fmt.Sprintf("%s must be an integer", field.key), http.StatusBadRequest)
			return nil, false
		}
		*field.dst = n
	}

	return &uploadRequest{
		file: document.File{
			Name:     name,
			Size:     header.Size,
			MIMEType: detectMIME(header.Header.Get("Content-Type"), header.Filename, data),
			Data:     data,
		},
		cfg: cfg,
	}, true
}

// Upload ingests the file synchronously. The run's outcome, including a
// failed one, is the response body.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	stats := h.service.Upload(r.Context(), req.file, req.cfg)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": stats}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// UploadAsync stages the file on disk and queues it for the file worker.
func (h *Handler) UploadAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	if !h.service.parser.Supports(req.file.MIMEType) {
		msg := fmt.Sprintf("%s: %q (supported: %s)", document.ErrUnsupportedFormat, req.file.MIMEType, strings.Join(h.service.parser.Types(), ", "))
		h.writeError(ctx, w, "UNSUPPORTED_FORMAT", msg, http.StatusUnsupportedMediaType)
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		slog.ErrorContext(ctx, "failed to create upload directory", "error", err, "path", filepath.Clean(h.uploadDir))
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to create upload directory", http.StatusInternalServerError)
		return
	}

	path := filepath.Clean(filepath.Join(h.uploadDir, fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(req.file.Name))))
	if err := os.WriteFile(path, req.file.Data, 0o600); err != nil { // #nosec G304 -- path is UUID-based
		slog.ErrorContext(ctx, "failed to stage file", "error", err, "path", path)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to save file", http.StatusInternalServerError)
		return
	}

	body, err := json.Marshal(worker.IngestFilePayload{
		Path:          path,
		FileName:      req.file.Name,
		MIMEType:      req.file.MIMEType,
		ChunkSize:     req.cfg.ChunkSize,
		OverlapSize:   req.cfg.OverlapSize,
		Model:         req.cfg.Model,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err == nil {
		err = h.pub.Publish(config.TopicIngestFile, body)
	}
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			slog.WarnContext(ctx, "failed to clean up staged file", "error", removeErr, "path", path)
		}
		slog.ErrorContext(ctx, "failed to queue ingestion", "error", err, "file_name", req.file.Name)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to queue ingestion", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(ctx, "ingestion queued", "file_name", req.file.Name, "path", path)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	resp := map[string]interface{}{
		"data": document.Stats{
			FileName: req.file.Name,
			FileSize: req.file.Size,
			Status:   document.StatusPending,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.ListDocuments(r.Context())
	if err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": names,
		"meta": map[string]int{"count": len(names)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	stats, err := h.service.GetDocumentStats(r.Context(), name)
	if err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": stats}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

type chunkView struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	Text  string `json:"text"`
}

func (h *Handler) GetChunks(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	limit := 100
	offset := 0
	for _, param := range []struct {
		key string
		dst *int
	}{
		{"limit", &limit},
		{"offset", &offset},
	} {
		v := r.URL.Query().Get(param.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", fmt.Sprintf("%s must be a non-negative integer", param.key), http.StatusBadRequest)
			return
		}
		*param.dst = n
	}
	limit = max(limit, 1)

	records, err := h.service.GetChunks(r.Context(), name, limit, offset)
	if err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}

	chunks := make([]chunkView, len(records))
	for i, rec := range records {
		chunks[i] = chunkView{ID: rec.ID, Index: rec.Payload.Metadata.Index, Text: rec.Payload.Text}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": chunks,
		"meta": map[string]int{"count": len(chunks), "limit": limit, "offset": offset},
	}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.service.Delete(r.Context(), name); err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeStoreError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, document.ErrDocumentNotFound):
		h.writeError(ctx, w, "NOT_FOUND", "Document not found", http.StatusNotFound)
	case errors.Is(err, document.ErrStoreUnavailable):
		slog.ErrorContext(ctx, "vector store unavailable", "error", err)
		h.writeError(ctx, w, "STORE_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
	default:
		slog.ErrorContext(ctx, "operation failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
