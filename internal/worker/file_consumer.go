package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"docingest/features/job"
	"docingest/internal/document"
	"docingest/internal/middleware"
)

const fileWorkerHandler = "file-worker"

type Ingester interface {
	Upload(ctx context.Context, file document.File, cfg document.ProcessingConfig) document.Stats
}

type JobSaver interface {
	Save(ctx context.Context, j *job.Job) error
}

// FileConsumer ingests files staged by the async upload endpoint.
type FileConsumer struct {
	ingester Ingester
	jobs     JobSaver
	readFile func(name string) ([]byte, error)
}

func NewFileConsumer(i Ingester, j JobSaver) *FileConsumer {
	return &FileConsumer{ingester: i, jobs: j, readFile: os.ReadFile}
}

// HandleMessage returns an error only when the message should be requeued.
// Malformed messages are dropped and failed ingestions become failed jobs.
func (c *FileConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestFilePayload
	err := json.Unmarshal(m.Body, &payload)

	correlationID := payload.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if err != nil {
		slog.ErrorContext(ctx, "invalid message format", "error", err)
		return nil
	}
	if payload.Path == "" || payload.FileName == "" {
		slog.ErrorContext(ctx, "missing required fields, dropping", "path", payload.Path, "file_name", payload.FileName)
		return nil
	}

	data, err := c.readFile(payload.Path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.ErrorContext(ctx, "staged file is gone, dropping", "path", payload.Path, "file_name", payload.FileName)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to read staged file", "path", payload.Path, "error", err)
		return err
	}

	file := document.File{
		Name:     payload.FileName,
		Size:     int64(len(data)),
		MIMEType: payload.MIMEType,
		Data:     data,
	}
	cfg := document.ProcessingConfig{
		ChunkSize:   payload.ChunkSize,
		OverlapSize: payload.OverlapSize,
		Model:       payload.Model,
	}

	stats := c.ingester.Upload(ctx, file, cfg)
	if stats.Status != document.StatusCompleted {
		failed := &job.Job{
			FileName: payload.FileName,
			Handler:  fileWorkerHandler,
			Payload:  json.RawMessage(m.Body),
			Error:    stats.Error,
		}
		if err := c.jobs.Save(ctx, failed); err != nil {
			slog.ErrorContext(ctx, "failed to save failed job", "file_name", payload.FileName, "error", err)
			return err
		}
		// The staged file stays so a retry can read it again.
		slog.InfoContext(ctx, "saved failed job for retry", "job_id", failed.ID, "file_name", payload.FileName)
		return nil
	}

	if err := os.Remove(payload.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.WarnContext(ctx, "failed to remove staged file", "path", payload.Path, "error", err)
	}
	slog.InfoContext(ctx, "async ingestion completed", "file_name", payload.FileName, "chunks", stats.TotalChunks)
	return nil
}
