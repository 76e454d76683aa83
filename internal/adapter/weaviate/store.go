package weaviate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"docingest/internal/document"
	"docingest/internal/vector"
)

// recordNamespace scopes the UUIDv5 object IDs derived from record IDs.
var recordNamespace = uuid.MustParse("6f1c2a9e-3d4b-5c8e-9a7f-2b1d0e4c6a58")

// Weaviate caps batch deletes at QUERY_MAXIMUM_RESULTS matches per call.
const maxDeletePerCall = 10000

// DefaultBatchSize bounds the objects sent in one batch request.
const DefaultBatchSize = 100

type Store struct {
	client    *weaviate.Client
	batchSize int
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client, batchSize: DefaultBatchSize}
}

// WithBatchSize overrides the objects per batch request. Values below one
// keep the current size.
func (s *Store) WithBatchSize(n int) *Store {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewSchemaClient(s.client))
}

// ObjectID maps a record ID onto the UUID Weaviate keys objects by. The
// mapping is deterministic so rewriting a record replaces the object.
func ObjectID(recordID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(recordNamespace, []byte(recordID)).String())
}

// UpsertChunks writes records in batches of at most batchSize objects.
// Weaviate batch writes replace objects with the same ID. Per-object
// rejections are collected across all batches.
func (s *Store) UpsertChunks(ctx context.Context, records []document.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, len(records))
	for i, r := range records {
		objects[i] = &models.Object{
			Class: vector.ClassName,
			ID:    ObjectID(r.ID),
			Properties: map[string]interface{}{
				vector.PropRecordID:   r.ID,
				vector.PropText:       r.Payload.Text,
				vector.PropSource:     r.Payload.Metadata.Source,
				vector.PropChunkIndex: r.Payload.Metadata.Index,
			},
			Vector: r.Vector,
		}
	}

	var failures []string
	for start := 0; start < len(objects); start += s.batchSize {
		end := min(start+s.batchSize, len(objects))
		res, err := s.client.Batch().ObjectsBatcher().WithObjects(objects[start:end]...).Do(ctx)
		if err != nil {
			return classify(err, true)
		}
		for _, obj := range res {
			if obj.Result == nil || obj.Result.Errors == nil {
				continue
			}
			for _, e := range obj.Result.Errors.Error {
				failures = append(failures, fmt.Sprintf("%s: %s", obj.ID, e.Message))
			}
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("%w: %d object(s) rejected: %s", document.ErrStoreWriteFailure, len(failures), strings.Join(failures, "; "))
	}
	return nil
}

func sourceFilter(source string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{vector.PropSource}).
		WithOperator(filters.Equal).
		WithValueText(source)
}

// DeleteChunksBySource removes every chunk of one document.
func (s *Store) DeleteChunksBySource(ctx context.Context, source string) error {
	for {
		res, err := s.client.Batch().ObjectsBatchDeleter().
			WithClassName(vector.ClassName).
			WithOutput("minimal").
			WithWhere(sourceFilter(source)).
			Do(ctx)
		if err != nil {
			return classify(err, true)
		}
		if res == nil || res.Results == nil {
			return nil
		}
		if res.Results.Failed > 0 {
			return fmt.Errorf("%w: failed to delete %d chunk(s) of %s", document.ErrStoreWriteFailure, res.Results.Failed, source)
		}
		if res.Results.Matches < maxDeletePerCall {
			return nil
		}
	}
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, classify(err, false)
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("%w: graphql: %s", document.ErrStoreUnavailable, res.Errors[0].Message)
	}

	data, _ := res.Data["Aggregate"].(map[string]interface{})
	groups, _ := data[vector.ClassName].([]interface{})
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

// GetChunks returns one page of a document's chunks ordered by index.
func (s *Store) GetChunks(ctx context.Context, source string, limit, offset int) ([]document.VectorRecord, error) {
	fields := []graphql.Field{
		{Name: vector.PropRecordID},
		{Name: vector.PropText},
		{Name: vector.PropSource},
		{Name: vector.PropChunkIndex},
		{Name: "_additional", Fields: []graphql.Field{{Name: "vector"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithWhere(sourceFilter(source)).
		WithSort(graphql.Sort{Path: []string{vector.PropChunkIndex}, Order: graphql.Asc}).
		WithLimit(limit).
		WithOffset(offset).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, classify(err, false)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("%w: graphql: %s", document.ErrStoreUnavailable, res.Errors[0].Message)
	}

	records := []document.VectorRecord{}
	data, _ := res.Data["Get"].(map[string]interface{})
	objects, _ := data[vector.ClassName].([]interface{})
	for _, o := range objects {
		props, ok := o.(map[string]interface{})
		if !ok {
			continue
		}
		var r document.VectorRecord
		r.ID, _ = props[vector.PropRecordID].(string)
		r.Payload.Text, _ = props[vector.PropText].(string)
		r.Payload.Metadata.Source, _ = props[vector.PropSource].(string)
		if idx, ok := props[vector.PropChunkIndex].(float64); ok {
			r.Payload.Metadata.Index = int(idx)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if raw, ok := additional["vector"].([]interface{}); ok {
				r.Vector = make([]float32, 0, len(raw))
				for _, x := range raw {
					f, _ := x.(float64)
					r.Vector = append(r.Vector, float32(f))
				}
			}
		}
		records = append(records, r)
	}
	return records, nil
}

// classify maps client errors onto the store error taxonomy: a missing
// response or gateway status means the store is unreachable, any other
// status on a write means it was rejected.
func classify(err error, write bool) error {
	if errors.Is(err, document.ErrStoreUnavailable) || errors.Is(err, document.ErrStoreWriteFailure) {
		return err
	}
	var wErr *fault.WeaviateClientError
	if errors.As(err, &wErr) && write && wErr.StatusCode > 0 {
		switch wErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		default:
			return fmt.Errorf("%w: %w", document.ErrStoreWriteFailure, err)
		}
	}
	return fmt.Errorf("%w: %w", document.ErrStoreUnavailable, err)
}
