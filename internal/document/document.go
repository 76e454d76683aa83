package document

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a single ingestion run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// File is an uploaded document as received by the ingestion service.
type File struct {
	Name     string
	Size     int64
	MIMEType string
	Data     []byte
}

// ProcessingConfig controls chunking and embedding for one ingestion run.
type ProcessingConfig struct {
	ChunkSize   int    `json:"chunk_size"`
	OverlapSize int    `json:"overlap_size"`
	Model       string `json:"model"`
}

// Validate checks the chunk parameters. The overlap must be strictly smaller
// than the chunk size, otherwise the chunk window would never advance.
func (c ProcessingConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.OverlapSize < 0 {
		return fmt.Errorf("%w: overlap size must not be negative, got %d", ErrInvalidConfig, c.OverlapSize)
	}
	if c.OverlapSize >= c.ChunkSize {
		return fmt.Errorf("%w: overlap size %d must be smaller than chunk size %d", ErrInvalidConfig, c.OverlapSize, c.ChunkSize)
	}
	return nil
}

// WithDefaults fills zero-valued fields from def. An unset chunk size takes
// the default overlap as well; an explicit chunk size keeps its overlap.
func (c ProcessingConfig) WithDefaults(def ProcessingConfig) ProcessingConfig {
	if c.ChunkSize == 0 {
		c.ChunkSize = def.ChunkSize
		if c.OverlapSize == 0 {
			c.OverlapSize = def.OverlapSize
		}
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	return c
}

// Stats summarizes one ingestion run over all chunks of one document.
type Stats struct {
	FileName         string    `json:"file_name"`
	FileSize         int64     `json:"file_size"`
	TotalChunks      int       `json:"total_chunks"`
	Status           Status    `json:"status"`
	Error            string    `json:"error,omitempty"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	CompletedAt      time.Time `json:"completed_at"`
	Model            string    `json:"model,omitempty"`
	ChunkSize        int       `json:"chunk_size,omitempty"`
	OverlapSize      int       `json:"overlap_size,omitempty"`
}

// Metadata locates a chunk inside its source document.
type Metadata struct {
	Source string `json:"source"`
	Index  int    `json:"index"`
}

// Payload is the non-vector part of a stored record.
type Payload struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// VectorRecord is the persisted unit: one chunk, its vector and its payload.
type VectorRecord struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// RecordID derives the storage key of a chunk. Re-ingesting a file under the
// same name addresses the same keys, index by index.
func RecordID(fileName string, index int) string {
	return fmt.Sprintf("%s-%d", fileName, index)
}

// NewRecords pairs chunks with their vectors in order. Both slices must have
// the same length.
func NewRecords(fileName string, chunks []string, vectors [][]float32) ([]VectorRecord, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	records := make([]VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = VectorRecord{
			ID:     RecordID(fileName, i),
			Vector: vectors[i],
			Payload: Payload{
				Text:     c,
				Metadata: Metadata{Source: fileName, Index: i},
			},
		}
	}
	return records, nil
}
