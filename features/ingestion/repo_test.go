package ingestion_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docingest/features/ingestion"
	"docingest/internal/document"
)

var statsColumns = []string{"file_name", "file_size", "total_chunks", "status", "error", "processing_time_ms", "completed_at", "model", "chunk_size", "overlap_size"}

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := ingestion.NewPostgresRepo(db)
	now := time.Now()
	s := document.Stats{
		FileName:         "report.pdf",
		FileSize:         2048,
		TotalChunks:      3,
		Status:           document.StatusCompleted,
		ProcessingTimeMS: 120,
		CompletedAt:      now,
		Model:            "text-embedding-3-small",
		ChunkSize:        1000,
		OverlapSize:      200,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_stats (file_name, file_size, total_chunks, status, error, processing_time_ms, completed_at, model, chunk_size, overlap_size)")).
		WithArgs(s.FileName, s.FileSize, s.TotalChunks, "completed", "", s.ProcessingTimeMS, now, s.Model, s.ChunkSize, s.OverlapSize).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Save(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := ingestion.NewPostgresRepo(db)
	now := time.Now()

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM document_stats WHERE file_name = $1")).
			WithArgs("report.pdf").
			WillReturnRows(sqlmock.NewRows(statsColumns).
				AddRow("report.pdf", 2048, 3, "completed", "", 120, now, "m", 1000, 200))

		s, err := repo.Get(context.Background(), "report.pdf")
		require.NoError(t, err)
		assert.Equal(t, document.StatusCompleted, s.Status)
		assert.Equal(t, 3, s.TotalChunks)
		assert.Equal(t, int64(2048), s.FileSize)
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM document_stats WHERE file_name = $1")).
			WithArgs("missing.pdf").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), "missing.pdf")
		assert.ErrorIs(t, err, document.ErrDocumentNotFound)
	})
}

func TestPostgresRepo_ListOrdered(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := ingestion.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_name FROM document_stats ORDER BY file_name ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"file_name"}).AddRow("a.txt").AddRow("b.pdf"))

	names, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.pdf"}, names)
}

func TestPostgresRepo_DeleteAndCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := ingestion.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM document_stats WHERE file_name = $1")).
		WithArgs("a.txt").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM document_stats")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	require.NoError(t, repo.Delete(context.Background(), "a.txt"))
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPostgresRepo_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"Connection Exception", &pq.Error{Code: "08006"}, document.ErrStoreUnavailable},
		{"Too Many Connections", &pq.Error{Code: "53300"}, document.ErrStoreUnavailable},
		{"Admin Shutdown", &pq.Error{Code: "57P01"}, document.ErrStoreUnavailable},
		{"Check Violation", &pq.Error{Code: "23514"}, document.ErrStoreWriteFailure},
		{"Bad Connection", sql.ErrConnDone, document.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_stats")).WillReturnError(tt.err)

			err = ingestion.NewPostgresRepo(db).Save(context.Background(), document.Stats{FileName: "x", Status: "bogus"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
