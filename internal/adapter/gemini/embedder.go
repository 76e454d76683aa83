package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"docingest/internal/embedding"
)

type Embedder struct {
	client *genai.Client
}

func NewEmbedder(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Embedder, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client}, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	slog.DebugContext(ctx, "embedding batch", "provider", "gemini", "model", model, "count", len(texts))

	em := e.client.EmbeddingModel(model)
	em.TaskType = genai.TaskTypeRetrievalDocument
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, classify(err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini returned an empty embedding at position %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}

var grpcToHTTP = map[codes.Code]int{
	codes.InvalidArgument:   http.StatusBadRequest,
	codes.Unauthenticated:   http.StatusUnauthorized,
	codes.PermissionDenied:  http.StatusForbidden,
	codes.NotFound:          http.StatusNotFound,
	codes.ResourceExhausted: http.StatusTooManyRequests,
	codes.Internal:          http.StatusInternalServerError,
	codes.Unavailable:       http.StatusServiceUnavailable,
	codes.DeadlineExceeded:  http.StatusGatewayTimeout,
}

// classify attaches the HTTP status of a Gemini failure so the generator can
// tell rate limiting and outages apart from rejected requests.
func classify(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &embedding.StatusError{StatusCode: gErr.Code, Err: err}
	}
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return &embedding.StatusError{StatusCode: code, Err: err}
		}
		if st := apiErr.GRPCStatus(); st != nil {
			if code, ok := grpcToHTTP[st.Code()]; ok {
				return &embedding.StatusError{StatusCode: code, Err: err}
			}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &embedding.StatusError{StatusCode: 0, Err: err}
	}
	return err
}
