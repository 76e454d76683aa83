package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"docingest/internal/adapter/gemini"
	"docingest/internal/embedding"
)

func TestEmbedder_EmbedBatch(t *testing.T) {
	var gotPath string
	var gotRequests int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body struct {
			Requests []json.RawMessage `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotRequests = len(body.Requests)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings": []map[string]interface{}{
				{"values": []float32{0.1, 0.2}},
				{"values": []float32{0.3, 0.4}},
			},
		})
	}))
	defer ts.Close()

	embedder, err := gemini.NewEmbedder(context.Background(), "test-key", option.WithEndpoint(ts.URL))
	require.NoError(t, err)

	vectors, err := embedder.EmbedBatch(context.Background(), "gemini-embedding-001", []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vectors)
	assert.True(t, strings.HasSuffix(gotPath, ":batchEmbedContents"), gotPath)
	assert.Equal(t, 2, gotRequests)
}

func TestEmbedder_EmbedBatch_CountMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings": []map[string]interface{}{{"values": []float32{0.1}}},
		})
	}))
	defer ts.Close()

	embedder, err := gemini.NewEmbedder(context.Background(), "test-key", option.WithEndpoint(ts.URL))
	require.NoError(t, err)

	_, err = embedder.EmbedBatch(context.Background(), "m", []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmbedder_EmbedBatch_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"Rate Limited", http.StatusTooManyRequests, true},
		{"Server Error", http.StatusInternalServerError, true},
		{"Bad Request", http.StatusBadRequest, false},
		{"Unauthorized", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]interface{}{"code": tt.status, "message": "failure"},
				})
			}))
			defer ts.Close()

			embedder, err := gemini.NewEmbedder(context.Background(), "test-key", option.WithEndpoint(ts.URL))
			require.NoError(t, err)

			_, err = embedder.EmbedBatch(context.Background(), "m", []string{"a"})
			var statusErr *embedding.StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, tt.transient, embedding.IsTransient(err))
		})
	}
}
