package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docingest/internal/document"
)

// ChunkIndex persists chunk vectors keyed by record ID.
type ChunkIndex interface {
	UpsertChunks(ctx context.Context, records []document.VectorRecord) error
	DeleteChunksBySource(ctx context.Context, source string) error
	CountChunks(ctx context.Context) (int, error)
	GetChunks(ctx context.Context, source string, limit, offset int) ([]document.VectorRecord, error)
}

// StatsIndex persists one stats record per file name. Get returns
// document.ErrDocumentNotFound for unknown names.
type StatsIndex interface {
	Save(ctx context.Context, stats document.Stats) error
	Get(ctx context.Context, fileName string) (*document.Stats, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, fileName string) error
	Count(ctx context.Context) (int, error)
}

// Store is the vector store adapter the ingestion pipeline writes through.
// Every call runs under the configured timeout, and errors leave as
// ErrStoreUnavailable, ErrStoreWriteFailure or ErrDocumentNotFound.
type Store struct {
	chunks    ChunkIndex
	stats     StatsIndex
	timeout   time.Duration
	batchSize int
}

// DefaultWriteBatchSize is the number of records written under one timeout.
const DefaultWriteBatchSize = 500

func New(chunks ChunkIndex, stats StatsIndex, timeout time.Duration) *Store {
	return &Store{chunks: chunks, stats: stats, timeout: timeout, batchSize: DefaultWriteBatchSize}
}

// WithBatchSize overrides the records per timed write. Values below one
// keep the current size.
func (s *Store) WithBatchSize(n int) *Store {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// StoreVectors upserts records by ID, batchSize records at a time, each
// batch under its own timeout so large documents are not bounded by one.
func (s *Store) StoreVectors(ctx context.Context, records []document.VectorRecord) error {
	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))
		if err := s.upsert(ctx, records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, records []document.VectorRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return classify(s.chunks.UpsertChunks(ctx, records), true)
}

// DeleteChunks removes every stored chunk of fileName.
func (s *Store) DeleteChunks(ctx context.Context, fileName string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return classify(s.chunks.DeleteChunksBySource(ctx, fileName), true)
}

// DeleteDocument removes a document's chunks and its stats record.
func (s *Store) DeleteDocument(ctx context.Context, fileName string) error {
	if err := s.DeleteChunks(ctx, fileName); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return classify(s.stats.Delete(ctx, fileName), true)
}

func (s *Store) SaveDocumentStats(ctx context.Context, stats document.Stats) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return classify(s.stats.Save(ctx, stats), true)
}

func (s *Store) GetDocumentStats(ctx context.Context, fileName string) (*document.Stats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	stats, err := s.stats.Get(ctx, fileName)
	if err != nil {
		return nil, classify(err, false)
	}
	return stats, nil
}

// ListDocuments returns the names of stored documents in ascending order.
func (s *Store) ListDocuments(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	names, err := s.stats.List(ctx)
	if err != nil {
		return nil, classify(err, false)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *Store) GetChunks(ctx context.Context, fileName string, limit, offset int) ([]document.VectorRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	records, err := s.chunks.GetChunks(ctx, fileName, limit, offset)
	if err != nil {
		return nil, classify(err, false)
	}
	return records, nil
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.chunks.CountChunks(ctx)
	return n, classify(err, false)
}

func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.stats.Count(ctx)
	return n, classify(err, false)
}

// classify keeps errors the backends already mapped and treats anything
// else, including timeouts, as an unreachable store.
func classify(err error, write bool) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, document.ErrStoreUnavailable),
		errors.Is(err, document.ErrStoreWriteFailure),
		errors.Is(err, document.ErrDocumentNotFound):
		return err
	case errors.Is(err, context.Canceled):
		return err
	}
	if write && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", document.ErrStoreWriteFailure, err)
	}
	return fmt.Errorf("%w: %w", document.ErrStoreUnavailable, err)
}
