package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nsqio/go-nsq"

	"docingest/features/ingestion"
	"docingest/features/job"
	"docingest/features/stats"
	"docingest/internal/adapter/gemini"
	"docingest/internal/adapter/mock"
	"docingest/internal/adapter/openai"
	"docingest/internal/config"
	"docingest/internal/document"
	"docingest/internal/embedding"
	"docingest/internal/middleware"
	"docingest/internal/parser"
	"docingest/internal/store"
	"docingest/internal/worker"
)

type App struct {
	Handler      http.Handler
	Ingestion    *ingestion.Service
	FileConsumer *worker.FileConsumer

	cfg     *config.Config
	closers []func() error
}

// NewProvider builds the embedding provider cfg selects. The returned close
// function releases provider resources and is never nil.
func NewProvider(ctx context.Context, cfg *config.Config) (embedding.Provider, func() error, error) {
	noop := func() error { return nil }

	switch cfg.ResolvedProvider() {
	case config.ProviderOpenAI:
		client := &http.Client{Timeout: time.Duration(cfg.EmbeddingTimeoutSeconds) * time.Second}
		return openai.NewEmbedder(cfg.EmbeddingAPIKey, cfg.EmbeddingAPIBase, client), noop, nil
	case config.ProviderGemini:
		e, err := gemini.NewEmbedder(ctx, cfg.EmbeddingAPIKey)
		if err != nil {
			return nil, noop, fmt.Errorf("gemini client error: %w", err)
		}
		return e, e.Close, nil
	default:
		e := mock.NewEmbedder(cfg.EmbeddingMockDimension)
		slog.InfoContext(ctx, "using mock embedding provider", "dimension", e.Dimension())
		return e, noop, nil
	}
}

func New(ctx context.Context, cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*App, error) {
	provider, closeProvider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("embedding provider ready", "provider", cfg.ResolvedProvider(), "model", cfg.EmbeddingModel)

	generator := embedding.NewGenerator(provider, embedding.Config{
		DefaultModel:   cfg.EmbeddingModel,
		BatchSize:      cfg.EmbeddingBatchSize,
		Concurrency:    cfg.EmbeddingConcurrency,
		MaxAttempts:    cfg.EmbeddingMaxAttempts,
		RetryBaseDelay: time.Duration(cfg.EmbeddingRetryBaseMS) * time.Millisecond,
		Timeout:        time.Duration(cfg.EmbeddingTimeoutSeconds) * time.Second,
		RateLimit:      cfg.EmbeddingRateLimitRPS,
	})

	vectorStore := store.New(deps.Chunks, deps.Stats, time.Duration(cfg.StoreTimeoutSeconds)*time.Second)

	// Feature: Ingestion
	ingestionService := ingestion.NewService(parser.Default(), generator, vectorStore, document.ProcessingConfig{
		ChunkSize:   cfg.ChunkSize,
		OverlapSize: cfg.ChunkOverlap,
		Model:       cfg.EmbeddingModel,
	})
	ingestionHandler := ingestion.NewHandler(ingestionService, deps.Producer, cfg.UploadDir, cfg.MaxUploadSizeMB)

	a := &App{
		Ingestion: ingestionService,
		cfg:       cfg,
		closers:   []func() error{closeProvider},
	}

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.CorrelationID(middleware.CORS(h)))
	}

	route("POST /documents", ingestionHandler.Upload)
	route("GET /documents", ingestionHandler.List)
	route("GET /documents/{name}", ingestionHandler.Get)
	route("GET /documents/{name}/chunks", ingestionHandler.GetChunks)
	route("DELETE /documents/{name}", ingestionHandler.Delete)

	// Asynchronous ingestion needs the queue and the failed job table.
	var jobCounter stats.JobRepo
	if deps.DB != nil && deps.Producer != nil {
		jobRepo := job.NewPostgresRepo(deps.DB)
		jobService := job.NewService(jobRepo, deps.Producer, logger)
		jobHandler := job.NewHandler(jobService)

		route("POST /documents/async", ingestionHandler.UploadAsync)
		route("GET /jobs/failed", jobHandler.List)
		route("POST /jobs/{id}/retry", jobHandler.Retry)

		a.FileConsumer = worker.NewFileConsumer(ingestionService, jobRepo)
		jobCounter = jobRepo
	}

	// Feature: Stats
	statsHandler := stats.NewHandler(vectorStore, vectorStore, jobCounter)
	route("GET /stats", statsHandler.GetStats)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			slog.Warn("failed to write health response", "error", err)
		}
	})

	a.Handler = mux
	return a, nil
}

// Run serves HTTP and, when enabled, consumes queued files until ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if a.FileConsumer != nil && a.cfg.EnableFileWorker {
		consumer, err := a.startConsumer()
		if err != nil {
			return err
		}
		defer consumer.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) startConsumer() (*nsq.Consumer, error) {
	consumer, err := nsq.NewConsumer(config.TopicIngestFile, config.ChannelFileWorker, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddConcurrentHandlers(a.FileConsumer, max(1, a.cfg.WorkerConcurrency))

	if a.cfg.NSQLookupd != "" {
		err = consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd)
	} else {
		err = consumer.ConnectToNSQD(a.cfg.NSQDHost)
	}
	if err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("nsq connect error: %w", err)
	}
	slog.Info("file worker connected", "topic", config.TopicIngestFile, "channel", config.ChannelFileWorker, "concurrency", a.cfg.WorkerConcurrency)
	return consumer, nil
}

func (a *App) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("failed to release resource", "error", err)
		}
	}
}
