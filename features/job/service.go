package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"docingest/internal/config"
)

var ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	logger         *slog.Logger
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, pub: pub, logger: logger, publishTimeout: 5 * time.Second}
}

// WithPublishTimeout bounds how long Retry waits for the queue.
func (s *Service) WithPublishTimeout(d time.Duration) *Service {
	s.publishTimeout = d
	return s
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Retry republishes a failed job to the file ingestion topic and removes it,
// returning the job it queued. The job is kept when publishing fails or
// times out; the returned job is then still set when it was found.
func (s *Service) Retry(ctx context.Context, id string) (*Job, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(config.TopicIngestFile, job.Payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return job, err
		}
	case <-time.After(s.publishTimeout):
		s.logger.ErrorContext(ctx, "publish timed out", "job_id", id, "file_name", job.FileName)
		return job, ErrPublishTimeout
	case <-ctx.Done():
		return job, ctx.Err()
	}

	s.logger.InfoContext(ctx, "job republished", "job_id", id, "file_name", job.FileName)
	return job, s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
