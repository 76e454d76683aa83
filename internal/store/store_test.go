package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docingest/internal/adapter/memory"
	"docingest/internal/document"
)

type MockChunkIndex struct {
	mock.Mock
}

func (m *MockChunkIndex) UpsertChunks(ctx context.Context, records []document.VectorRecord) error {
	return m.Called(ctx, records).Error(0)
}

func (m *MockChunkIndex) DeleteChunksBySource(ctx context.Context, source string) error {
	return m.Called(ctx, source).Error(0)
}

func (m *MockChunkIndex) CountChunks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockChunkIndex) GetChunks(ctx context.Context, source string, limit, offset int) ([]document.VectorRecord, error) {
	args := m.Called(ctx, source, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.VectorRecord), args.Error(1)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	chunks := memory.NewChunks()
	s := New(chunks, memory.NewStats(), time.Second)

	recs, err := document.NewRecords("a.txt", []string{"x", "y"}, [][]float32{{1}, {2}})
	require.NoError(t, err)
	require.NoError(t, s.StoreVectors(ctx, recs))
	require.NoError(t, s.SaveDocumentStats(ctx, document.Stats{FileName: "a.txt", TotalChunks: 2, Status: document.StatusCompleted}))

	st, err := s.GetDocumentStats(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalChunks)

	names, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, names)

	n, err := s.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.DeleteDocument(ctx, "a.txt"))
	_, err = s.GetDocumentStats(ctx, "a.txt")
	assert.ErrorIs(t, err, document.ErrDocumentNotFound)
	n, _ = s.CountChunks(ctx)
	assert.Zero(t, n)
	docs, _ := s.CountDocuments(ctx)
	assert.Zero(t, docs)
}

func TestStore_ListDocuments_Empty(t *testing.T) {
	names, err := New(memory.NewChunks(), memory.NewStats(), 0).ListDocuments(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}

func TestStore_StoreVectors_Empty(t *testing.T) {
	chunks := new(MockChunkIndex)
	s := New(chunks, memory.NewStats(), time.Second)

	require.NoError(t, s.StoreVectors(context.Background(), nil))
	chunks.AssertNotCalled(t, "UpsertChunks", mock.Anything, mock.Anything)
}

func TestStore_ErrorClassification(t *testing.T) {
	recs := []document.VectorRecord{{ID: "a-0"}}

	tests := []struct {
		name    string
		backend error
		want    error
	}{
		{"Already Unavailable", document.ErrStoreUnavailable, document.ErrStoreUnavailable},
		{"Already Write Failure", document.ErrStoreWriteFailure, document.ErrStoreWriteFailure},
		{"Timeout", context.DeadlineExceeded, document.ErrStoreUnavailable},
		{"Unknown Write Error", errors.New("constraint violated"), document.ErrStoreWriteFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := new(MockChunkIndex)
			chunks.On("UpsertChunks", mock.Anything, recs).Return(tt.backend)

			err := New(chunks, memory.NewStats(), time.Second).StoreVectors(context.Background(), recs)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.backend)
		})
	}
}

func TestStore_ReadErrorsAreUnavailable(t *testing.T) {
	chunks := new(MockChunkIndex)
	chunks.On("CountChunks", mock.Anything).Return(0, errors.New("connection reset"))

	_, err := New(chunks, memory.NewStats(), time.Second).CountChunks(context.Background())
	assert.ErrorIs(t, err, document.ErrStoreUnavailable)
}

func TestStore_AppliesTimeout(t *testing.T) {
	chunks := new(MockChunkIndex)
	chunks.On("UpsertChunks", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)

	start := time.Now()
	err := New(chunks, memory.NewStats(), 20*time.Millisecond).StoreVectors(context.Background(), []document.VectorRecord{{ID: "a-0"}})
	assert.ErrorIs(t, err, document.ErrStoreUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStore_DeleteDocument_StopsOnChunkFailure(t *testing.T) {
	chunks := new(MockChunkIndex)
	chunks.On("DeleteChunksBySource", mock.Anything, "a.txt").Return(document.ErrStoreUnavailable)

	stats := memory.NewStats()
	require.NoError(t, stats.Save(context.Background(), document.Stats{FileName: "a.txt"}))

	err := New(chunks, stats, time.Second).DeleteDocument(context.Background(), "a.txt")
	assert.ErrorIs(t, err, document.ErrStoreUnavailable)

	_, err = stats.Get(context.Background(), "a.txt")
	assert.NoError(t, err)
}

func TestStore_StoreVectors_WritesInBatches(t *testing.T) {
	chunks := new(MockChunkIndex)
	var sizes []int
	chunks.On("UpsertChunks", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sizes = append(sizes, len(args.Get(1).([]document.VectorRecord)))
		}).
		Return(nil)

	recs := make([]document.VectorRecord, 7)
	err := New(chunks, memory.NewStats(), time.Second).WithBatchSize(3).StoreVectors(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, sizes)
}

func TestStore_StoreVectors_StopsOnBatchFailure(t *testing.T) {
	chunks := new(MockChunkIndex)
	chunks.On("UpsertChunks", mock.Anything, mock.Anything).Return(nil).Once()
	chunks.On("UpsertChunks", mock.Anything, mock.Anything).Return(errors.New("rejected")).Once()

	recs := make([]document.VectorRecord, 9)
	err := New(chunks, memory.NewStats(), time.Second).WithBatchSize(3).StoreVectors(context.Background(), recs)
	assert.ErrorIs(t, err, document.ErrStoreWriteFailure)
	chunks.AssertNumberOfCalls(t, "UpsertChunks", 2)
}
