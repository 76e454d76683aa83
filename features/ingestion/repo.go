package ingestion

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"docingest/internal/document"
)

// PostgresRepo keeps one stats row per file name in document_stats.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, s document.Stats) error {
	query := `INSERT INTO document_stats (file_name, file_size, total_chunks, status, error, processing_time_ms, completed_at, model, chunk_size, overlap_size)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (file_name) DO UPDATE SET file_size = EXCLUDED.file_size, total_chunks = EXCLUDED.total_chunks, status = EXCLUDED.status, error = EXCLUDED.error, processing_time_ms = EXCLUDED.processing_time_ms, completed_at = EXCLUDED.completed_at, model = EXCLUDED.model, chunk_size = EXCLUDED.chunk_size, overlap_size = EXCLUDED.overlap_size, updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query,
		s.FileName, s.FileSize, s.TotalChunks, string(s.Status), s.Error,
		s.ProcessingTimeMS, s.CompletedAt, s.Model, s.ChunkSize, s.OverlapSize,
	)
	return classify(err, true)
}

func (r *PostgresRepo) Get(ctx context.Context, fileName string) (*document.Stats, error) {
	s := &document.Stats{}
	var status string
	query := `SELECT file_name, file_size, total_chunks, status, error, processing_time_ms, completed_at, model, chunk_size, overlap_size FROM document_stats WHERE file_name = $1`
	err := r.db.QueryRowContext(ctx, query, fileName).Scan(
		&s.FileName, &s.FileSize, &s.TotalChunks, &status, &s.Error,
		&s.ProcessingTimeMS, &s.CompletedAt, &s.Model, &s.ChunkSize, &s.OverlapSize,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", document.ErrDocumentNotFound, fileName)
	}
	if err != nil {
		return nil, classify(err, false)
	}
	s.Status = document.Status(status)
	return s, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]string, error) {
	query := `SELECT file_name FROM document_stats ORDER BY file_name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err, false)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classify(err, false)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, false)
	}
	return names, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, fileName string) error {
	query := `DELETE FROM document_stats WHERE file_name = $1`
	_, err := r.db.ExecContext(ctx, query, fileName)
	return classify(err, true)
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM document_stats`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, classify(err, false)
}

// classify maps connection-level failures to ErrStoreUnavailable and server
// rejections of writes to ErrStoreWriteFailure. Other errors pass through.
func classify(err error, write bool) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			// connection exception, insufficient resources, operator intervention
			return fmt.Errorf("%w: %w", document.ErrStoreUnavailable, err)
		}
		if write {
			return fmt.Errorf("%w: %w", document.ErrStoreWriteFailure, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", document.ErrStoreUnavailable, err)
	}
	return err
}
