package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

// FileEnv names the optional YAML file whose keys mirror the environment variables below.
const FileEnv = "RAG_CONFIG_FILE"

const (
	EmbedderOllama = "ollama"
	EmbedderHash   = "hash"

	VectorBackendQdrant   = "qdrant"
	VectorBackendPgvector = "pgvector"
	VectorBackendMemory   = "memory"
)

type Config struct {
	APIPort  string
	LogLevel string
	LogFile  string

	// Empty DSN keeps the document catalog and job store in process memory.
	PostgresDSN string

	// Empty URL disables asynchronous ingestion.
	NATSURL     string
	NATSSubject string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string
	OllamaTimeout    time.Duration

	Embedder      string
	EmbedDim      int
	EmbedCacheTTL time.Duration

	VectorBackend    string
	QdrantURL        string
	QdrantCollection string
	PgvectorTable    string

	StoragePath    string
	MaxUploadBytes int64

	ChunkSize     int
	ChunkOverlap  int
	RAGTopK       int
	Temperature   float64
	PageNumbering string

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIMaxConnections int
	APIQueueWait      time.Duration
	APIRequestTimeout time.Duration

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	BreakerEnabled      bool

	WorkerMetricsPort string
	IngestJobTimeout  time.Duration
	JobRetention      time.Duration

	MCPTransport string
	MCPAddr      string
}

// Load reads .env (if present), then the RAG_CONFIG_FILE overlay, then the process
// environment. Environment variables win over file values.
func Load() (Config, error) {
	_ = godotenv.Load()

	src, err := newSource(os.Getenv(FileEnv))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIPort:  src.str("API_PORT", "8080"),
		LogLevel: src.str("LOG_LEVEL", "info"),
		LogFile:  src.str("LOG_FILE", ""),

		PostgresDSN: src.str("POSTGRES_DSN", ""),

		NATSURL:     src.str("NATS_URL", ""),
		NATSSubject: src.str("NATS_SUBJECT", "rag.ingest"),

		OllamaURL:        src.str("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   src.str("OLLAMA_GEN_MODEL", "gemma3:1b"),
		OllamaEmbedModel: src.str("OLLAMA_EMBED_MODEL", "all-minilm"),
		OllamaTimeout:    src.duration("OLLAMA_TIMEOUT", 120*time.Second),

		Embedder:      strings.ToLower(src.str("EMBEDDER", EmbedderOllama)),
		EmbedDim:      src.integer("EMBED_DIM", 384),
		EmbedCacheTTL: src.duration("EMBED_CACHE_TTL", 0),

		VectorBackend:    strings.ToLower(src.str("VECTOR_BACKEND", VectorBackendQdrant)),
		QdrantURL:        src.str("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: src.str("QDRANT_COLLECTION", "privacy_docs"),
		PgvectorTable:    src.str("PGVECTOR_TABLE", "privacy_docs"),

		StoragePath:    src.str("STORAGE_PATH", "./data/uploads"),
		MaxUploadBytes: int64(src.integer("MAX_UPLOAD_BYTES", 50<<20)),

		ChunkSize:     src.integer("CHUNK_SIZE", 250),
		ChunkOverlap:  src.integer("CHUNK_OVERLAP", 40),
		RAGTopK:       src.integer("RAG_TOP_K", 3),
		Temperature:   src.float("TEMPERATURE", 0.1),
		PageNumbering: strings.ToLower(src.str("PAGE_NUMBERING", "actual")),

		APIRateLimitRPS:   src.float("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst: src.integer("API_RATE_LIMIT_BURST", 10),
		APIMaxInFlight:    src.integer("API_MAX_IN_FLIGHT", 32),
		APIMaxConnections: src.integer("API_MAX_CONNECTIONS", 256),
		APIQueueWait:      src.duration("API_QUEUE_WAIT", 250*time.Millisecond),
		APIRequestTimeout: src.duration("API_REQUEST_TIMEOUT", 120*time.Second),

		RetryMaxAttempts:    src.integer("RETRY_MAX_ATTEMPTS", 1),
		RetryInitialBackoff: src.duration("RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
		RetryMaxBackoff:     src.duration("RETRY_MAX_BACKOFF", 400*time.Millisecond),
		BreakerEnabled:      src.boolean("BREAKER_ENABLED", true),

		WorkerMetricsPort: src.str("WORKER_METRICS_PORT", "9090"),
		IngestJobTimeout:  src.duration("INGEST_JOB_TIMEOUT", 10*time.Minute),
		JobRetention:      src.duration("JOB_RETENTION", 24*time.Hour),

		MCPTransport: strings.ToLower(src.str("MCP_TRANSPORT", "stdio")),
		MCPAddr:      src.str("MCP_ADDR", ":8090"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var problems []string
	if c.ChunkSize <= 0 {
		problems = append(problems, "CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		problems = append(problems, "CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if c.RAGTopK <= 0 {
		problems = append(problems, "RAG_TOP_K must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		problems = append(problems, "TEMPERATURE must be in [0, 2]")
	}
	switch c.Embedder {
	case EmbedderOllama, EmbedderHash:
	default:
		problems = append(problems, fmt.Sprintf("unknown EMBEDDER %q", c.Embedder))
	}
	if c.EmbedDim <= 0 {
		problems = append(problems, "EMBED_DIM must be positive")
	}
	switch c.VectorBackend {
	case VectorBackendQdrant, VectorBackendMemory:
	case VectorBackendPgvector:
		if c.PostgresDSN == "" {
			problems = append(problems, "VECTOR_BACKEND=pgvector requires POSTGRES_DSN")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown VECTOR_BACKEND %q", c.VectorBackend))
	}
	switch c.PageNumbering {
	case "actual", "legacy":
	default:
		problems = append(problems, fmt.Sprintf("unknown PAGE_NUMBERING %q", c.PageNumbering))
	}
	switch c.MCPTransport {
	case "stdio", "sse":
	default:
		problems = append(problems, fmt.Sprintf("unknown MCP_TRANSPORT %q", c.MCPTransport))
	}
	if c.AsyncIngest() {
		// api and worker must share job status and the index
		if c.PostgresDSN == "" {
			problems = append(problems, "NATS_URL requires POSTGRES_DSN")
		}
		if c.VectorBackend == VectorBackendMemory {
			problems = append(problems, "NATS_URL cannot be combined with VECTOR_BACKEND=memory")
		}
	}
	if len(problems) > 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate config", fmt.Errorf("%s", strings.Join(problems, "; ")))
	}
	return nil
}

// AsyncIngest reports whether a message queue is configured.
func (c Config) AsyncIngest() bool {
	return strings.TrimSpace(c.NATSURL) != ""
}

type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	src := source{file: map[string]string{}}
	if strings.TrimSpace(path) == "" {
		return src, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return src, fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return src, fmt.Errorf("parse config file: %w", err)
	}
	for k, v := range values {
		if v == nil {
			continue
		}
		src.file[strings.ToUpper(strings.TrimSpace(k))] = fmt.Sprint(v)
	}
	return src, nil
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) str(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) integer(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) float(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) boolean(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) duration(key string, fallback time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
