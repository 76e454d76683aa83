package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"docingest/internal/document"
)

// Chunks is an in-process chunk index. Records are keyed by ID, so writing
// an existing ID replaces the record.
type Chunks struct {
	mu      sync.RWMutex
	records map[string]document.VectorRecord
}

func NewChunks() *Chunks {
	return &Chunks{records: make(map[string]document.VectorRecord)}
}

func (c *Chunks) UpsertChunks(ctx context.Context, records []document.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		r.Vector = slices.Clone(r.Vector)
		c.records[r.ID] = r
	}
	return nil
}

func (c *Chunks) DeleteChunksBySource(ctx context.Context, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, r := range c.records {
		if r.Payload.Metadata.Source == source {
			delete(c.records, id)
		}
	}
	return nil
}

func (c *Chunks) CountChunks(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records), nil
}

// GetChunks returns one page of a source's chunks ordered by index. A
// non-positive limit returns everything after offset.
func (c *Chunks) GetChunks(ctx context.Context, source string, limit, offset int) ([]document.VectorRecord, error) {
	c.mu.RLock()
	var out []document.VectorRecord
	for _, r := range c.records {
		if r.Payload.Metadata.Source == source {
			r.Vector = slices.Clone(r.Vector)
			out = append(out, r)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Payload.Metadata.Index < out[j].Payload.Metadata.Index })

	if offset >= len(out) {
		return []document.VectorRecord{}, nil
	}
	out = out[max(offset, 0):]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Stats is an in-process stats index.
type Stats struct {
	mu    sync.RWMutex
	stats map[string]document.Stats
}

func NewStats() *Stats {
	return &Stats{stats: make(map[string]document.Stats)}
}

func (s *Stats) Save(ctx context.Context, stats document.Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[stats.FileName] = stats
	return nil
}

func (s *Stats) Get(ctx context.Context, fileName string) (*document.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[fileName]
	if !ok {
		return nil, document.ErrDocumentNotFound
	}
	return &st, nil
}

func (s *Stats) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.stats))
	for name := range s.stats {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names, nil
}

func (s *Stats) Delete(ctx context.Context, fileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stats, fileName)
	return nil
}

func (s *Stats) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stats), nil
}
