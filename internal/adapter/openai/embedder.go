package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"docingest/internal/embedding"
)

// Embedder calls an OpenAI-compatible /embeddings endpoint.
type Embedder struct {
	client *openai.Client
}

func NewEmbedder(apiKey, baseURL string, httpClient *http.Client) *Embedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &Embedder{client: openai.NewClientWithConfig(cfg)}
}

func (e *Embedder) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	slog.DebugContext(ctx, "embedding batch", "provider", "openai", "model", model, "count", len(texts))

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, classify(err)
	}

	// The API may return items out of order; Index is authoritative.
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range for %d texts", d.Index, len(texts))
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
	}
	return out, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &embedding.StatusError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &embedding.StatusError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &embedding.StatusError{StatusCode: 0, Err: err}
	}
	return err
}
