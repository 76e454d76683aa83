package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

const (
	BackendWeaviate = "weaviate"
	BackendMemory   = "memory"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"docingest"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"docingest"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// VectorBackend selects where chunks and stats live: "weaviate" keeps
	// chunks in Weaviate and stats in Postgres, "memory" keeps both in process.
	VectorBackend  string `envconfig:"VECTOR_BACKEND" default:"weaviate"`
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd        string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost          string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP          string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	EnableFileWorker  bool   `envconfig:"ENABLE_FILE_WORKER" default:"true"`
	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"4"`

	// Embedding
	EmbeddingProvider       string  `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	EmbeddingAPIKey         string  `envconfig:"EMBEDDING_API_KEY"`
	EmbeddingAPIBase        string  `envconfig:"EMBEDDING_API_BASE" default:"https://api.openai.com/v1"`
	EmbeddingModel          string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingMockDimension  int     `envconfig:"EMBEDDING_MOCK_DIMENSION" default:"384"`
	EmbeddingBatchSize      int     `envconfig:"EMBEDDING_BATCH_SIZE" default:"64"`
	EmbeddingConcurrency    int     `envconfig:"EMBEDDING_CONCURRENCY" default:"4"`
	EmbeddingMaxAttempts    int     `envconfig:"EMBEDDING_MAX_ATTEMPTS" default:"3"`
	EmbeddingRetryBaseMS    int     `envconfig:"EMBEDDING_RETRY_BASE_DELAY_MS" default:"500"`
	EmbeddingTimeoutSeconds int     `envconfig:"EMBEDDING_TIMEOUT_SECONDS" default:"30"`
	EmbeddingRateLimitRPS   float64 `envconfig:"EMBEDDING_RATE_LIMIT_RPS" default:"0"`

	StoreTimeoutSeconds int `envconfig:"STORE_TIMEOUT_SECONDS" default:"15"`

	// Chunking defaults for uploads that do not override them
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell take precedence; .env files only fill gaps.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ResolvedProvider is the embedding provider actually used: without an API
// key every provider falls back to the offline mock.
func (c *Config) ResolvedProvider() string {
	if c.EmbeddingAPIKey == "" {
		return ProviderMock
	}
	return c.EmbeddingProvider
}

func (c *Config) Validate() error {
	if c.VectorBackend != BackendMemory {
		if c.DBHost == "" {
			return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
		}
		if c.DBUser == "" {
			return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
		}
		if c.DBName == "" {
			return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
		}
	}

	switch c.VectorBackend {
	case BackendWeaviate, BackendMemory:
	default:
		return fmt.Errorf("%w: VECTOR_BACKEND=%q", ErrInvalidValue, c.VectorBackend)
	}
	switch c.EmbeddingProvider {
	case ProviderOpenAI, ProviderGemini, ProviderMock:
	default:
		return fmt.Errorf("%w: EMBEDDING_PROVIDER=%q", ErrInvalidValue, c.EmbeddingProvider)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive", ErrInvalidValue)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)", ErrInvalidValue)
	}
	if c.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("%w: EMBEDDING_BATCH_SIZE must be positive", ErrInvalidValue)
	}
	if c.EmbeddingConcurrency <= 0 {
		return fmt.Errorf("%w: EMBEDDING_CONCURRENCY must be positive", ErrInvalidValue)
	}
	if c.EmbeddingMaxAttempts <= 0 {
		return fmt.Errorf("%w: EMBEDDING_MAX_ATTEMPTS must be positive", ErrInvalidValue)
	}
	if c.EmbeddingRateLimitRPS < 0 {
		return fmt.Errorf("%w: EMBEDDING_RATE_LIMIT_RPS must not be negative", ErrInvalidValue)
	}
	return nil
}
