package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"docingest/internal/document"
)

// Provider is a batch embedding endpoint. Implementations return exactly
// one vector per input text, in input order.
type Provider interface {
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
}

type Config struct {
	DefaultModel   string
	BatchSize      int
	Concurrency    int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	Timeout        time.Duration
	// RateLimit is the provider request budget per second; zero disables limiting.
	RateLimit float64
}

func DefaultConfig() Config {
	return Config{
		BatchSize:      64,
		Concurrency:    4,
		MaxAttempts:    3,
		RetryBaseDelay: 500 * time.Millisecond,
		RetryMaxDelay:  10 * time.Second,
		Timeout:        30 * time.Second,
	}
}

type Generator struct {
	provider Provider
	cfg      Config
	limiter  *rate.Limiter
}

// NewGenerator fills zero-valued settings from DefaultConfig.
func NewGenerator(provider Provider, cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = def.RetryMaxDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	g := &Generator{provider: provider, cfg: cfg}
	if cfg.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}
	return g
}

// Generate embeds texts and returns one vector per text in input order.
// Batches run concurrently into a staging buffer that is only returned once
// every batch has succeeded and all vectors share one dimension; any failure
// yields a *document.EmbeddingError and no vectors.
func (g *Generator) Generate(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if model == "" {
		model = g.cfg.DefaultModel
	}

	size := g.cfg.BatchSize
	staged := make([][]float32, len(texts))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batch := start / size
		eg.Go(func() error {
			vectors, err := g.embedBatch(egCtx, model, batch, texts[start:end])
			if err != nil {
				return err
			}
			copy(staged[start:end], vectors)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	dim := len(staged[0])
	for i, v := range staged {
		if len(v) == 0 || len(v) != dim {
			return nil, &document.EmbeddingError{
				BatchIndex: i / size,
				Attempts:   1,
				Err:        fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim),
			}
		}
	}

	slog.DebugContext(ctx, "embedded chunks", "model", model, "count", len(texts), "batches", (len(texts)+size-1)/size, "dimension", dim)
	return staged, nil
}

func (g *Generator) embedBatch(ctx context.Context, model string, batch int, texts []string) ([][]float32, error) {
	attempts := 0
	op := func() ([][]float32, error) {
		attempts++
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()

		vectors, err := g.provider.EmbedBatch(callCtx, model, texts)
		if err != nil {
			if ctx.Err() == nil && IsTransient(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		if len(vectors) != len(texts) {
			return nil, backoff.Permanent(fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts)))
		}
		return vectors, nil
	}

	notify := func(err error, next time.Duration) {
		slog.WarnContext(ctx, "embedding batch failed, retrying", "batch", batch, "attempt", attempts, "retry_in", next, "error", err)
	}

	vectors, err := backoff.RetryNotifyWithData(op, g.newBackOff(ctx), notify)
	if err != nil {
		slog.ErrorContext(ctx, "embedding batch failed", "batch", batch, "attempts", attempts, "error", err)
		return nil, &document.EmbeddingError{BatchIndex: batch, Attempts: attempts, Err: err}
	}
	return vectors, nil
}

func (g *Generator) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(g.cfg.RetryBaseDelay),
		backoff.WithMaxInterval(g.cfg.RetryMaxDelay),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(g.cfg.MaxAttempts-1)), ctx)
}
