package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docingest/internal/document"
	"docingest/internal/text"
)

// ErrMissingFileName is returned for uploads without a file name, which would
// leave the record IDs without a prefix.
var ErrMissingFileName = errors.New("file name is required")

type Parser interface {
	Supports(mimeType string) bool
	Types() []string
	Extract(ctx context.Context, mimeType string, data []byte) (string, error)
}

type Embedder interface {
	Generate(ctx context.Context, model string, texts []string) ([][]float32, error)
}

type VectorStore interface {
	StoreVectors(ctx context.Context, records []document.VectorRecord) error
	DeleteChunks(ctx context.Context, fileName string) error
	DeleteDocument(ctx context.Context, fileName string) error
	SaveDocumentStats(ctx context.Context, stats document.Stats) error
	GetDocumentStats(ctx context.Context, fileName string) (*document.Stats, error)
	ListDocuments(ctx context.Context) ([]string, error)
	GetChunks(ctx context.Context, fileName string, limit, offset int) ([]document.VectorRecord, error)
}

// Service drives parse, chunk, embed and store for one document at a time.
type Service struct {
	parser   Parser
	embedder Embedder
	store    VectorStore
	defaults document.ProcessingConfig
	locks    *fileLocks
	now      func() time.Time
}

func NewService(p Parser, e Embedder, s VectorStore, defaults document.ProcessingConfig) *Service {
	return &Service{
		parser:   p,
		embedder: e,
		store:    s,
		defaults: defaults,
		locks:    newFileLocks(),
		now:      time.Now,
	}
}

// Upload ingests one file and reports the outcome. Expected failures never
// surface as errors; they end the run in StatusError with the cause in
// Stats.Error and TotalChunks 0.
//
// Prior chunks of the same file name are deleted before the new ones are
// written, so a shrinking document leaves no orphans. Runs for the same file
// name are serialized.
func (s *Service) Upload(ctx context.Context, file document.File, cfg document.ProcessingConfig) document.Stats {
	start := s.now()
	cfg = cfg.WithDefaults(s.defaults)

	size := file.Size
	if size == 0 {
		size = int64(len(file.Data))
	}
	stats := document.Stats{
		FileName:    file.Name,
		FileSize:    size,
		Status:      document.StatusPending,
		Model:       cfg.Model,
		ChunkSize:   cfg.ChunkSize,
		OverlapSize: cfg.OverlapSize,
	}

	fail := func(err error) document.Stats {
		stats.Status = document.StatusError
		stats.Error = err.Error()
		stats.TotalChunks = 0
		stats.CompletedAt = s.now()
		stats.ProcessingTimeMS = stats.CompletedAt.Sub(start).Milliseconds()
		slog.ErrorContext(ctx, "ingestion failed", "file_name", file.Name, "mime_type", file.MIMEType, "error", err)
		return stats
	}

	if file.Name == "" {
		return fail(ErrMissingFileName)
	}
	if !s.parser.Supports(file.MIMEType) {
		return fail(fmt.Errorf("%w: %q", document.ErrUnsupportedFormat, file.MIMEType))
	}
	if err := cfg.Validate(); err != nil {
		return fail(err)
	}

	stats.Status = document.StatusProcessing
	slog.InfoContext(ctx, "ingestion started", "file_name", file.Name, "file_size", size, "mime_type", file.MIMEType)

	content, err := s.parser.Extract(ctx, file.MIMEType, file.Data)
	if err != nil {
		return fail(err)
	}

	chunks, err := text.Split(content, cfg.ChunkSize, cfg.OverlapSize)
	if err != nil {
		return fail(err)
	}

	var vectors [][]float32
	if len(chunks) > 0 {
		vectors, err = s.embedder.Generate(ctx, cfg.Model, chunks)
		if err != nil {
			return fail(err)
		}
	}

	records, err := document.NewRecords(file.Name, chunks, vectors)
	if err != nil {
		return fail(err)
	}

	unlock, err := s.locks.lock(ctx, file.Name)
	if err != nil {
		return fail(err)
	}
	defer unlock()

	if err := s.store.DeleteChunks(ctx, file.Name); err != nil {
		return fail(err)
	}

	if err := s.store.StoreVectors(ctx, records); err != nil {
		s.rollback(ctx, file.Name)
		return fail(err)
	}

	stats.Status = document.StatusCompleted
	stats.TotalChunks = len(chunks)
	stats.CompletedAt = s.now()
	stats.ProcessingTimeMS = stats.CompletedAt.Sub(start).Milliseconds()

	if err := s.store.SaveDocumentStats(ctx, stats); err != nil {
		s.rollback(ctx, file.Name)
		return fail(err)
	}

	slog.InfoContext(ctx, "ingestion completed",
		"file_name", file.Name,
		"chunks", stats.TotalChunks,
		"model", cfg.Model,
		"duration_ms", stats.ProcessingTimeMS,
	)
	return stats
}

// rollback removes whatever part of the document reached the store.
func (s *Service) rollback(ctx context.Context, fileName string) {
	if err := s.store.DeleteDocument(context.WithoutCancel(ctx), fileName); err != nil {
		slog.WarnContext(ctx, "failed to roll back partial document", "file_name", fileName, "error", err)
	}
}

func (s *Service) GetDocumentStats(ctx context.Context, fileName string) (*document.Stats, error) {
	return s.store.GetDocumentStats(ctx, fileName)
}

func (s *Service) ListDocuments(ctx context.Context) ([]string, error) {
	return s.store.ListDocuments(ctx)
}

func (s *Service) GetChunks(ctx context.Context, fileName string, limit, offset int) ([]document.VectorRecord, error) {
	if _, err := s.store.GetDocumentStats(ctx, fileName); err != nil {
		return nil, err
	}
	return s.store.GetChunks(ctx, fileName, limit, offset)
}

// Delete removes a stored document. Unknown names yield ErrDocumentNotFound.
func (s *Service) Delete(ctx context.Context, fileName string) error {
	unlock, err := s.locks.lock(ctx, fileName)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.store.GetDocumentStats(ctx, fileName); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, fileName); err != nil {
		return err
	}
	slog.InfoContext(ctx, "document deleted", "file_name", fileName)
	return nil
}

// fileLocks hands out one lock per file name. Entries are dropped once the
// last holder or waiter is gone.
type fileLocks struct {
	mu    sync.Mutex
	locks map[string]*fileLock
}

type fileLock struct {
	ch   chan struct{}
	refs int
}

func newFileLocks() *fileLocks {
	return &fileLocks{locks: make(map[string]*fileLock)}
}

func (l *fileLocks) lock(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	fl, ok := l.locks[name]
	if !ok {
		fl = &fileLock{ch: make(chan struct{}, 1)}
		l.locks[name] = fl
	}
	fl.refs++
	l.mu.Unlock()

	select {
	case fl.ch <- struct{}{}:
		return func() {
			<-fl.ch
			l.release(name, fl)
		}, nil
	case <-ctx.Done():
		l.release(name, fl)
		return nil, ctx.Err()
	}
}

func (l *fileLocks) release(name string, fl *fileLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fl.refs--
	if fl.refs == 0 {
		delete(l.locks, name)
	}
}
