package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/questinrest/offline-rag-bot/internal/config"
	"github.com/questinrest/offline-rag-bot/internal/core/ports"
	"github.com/questinrest/offline-rag-bot/internal/core/usecase"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/chunking"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/embedding/cached"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/embedding/hashing"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/extractor/pdf"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/extractor/plaintext"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/llm/ollama"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/normalizer"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/queue/nats"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/repository/memory"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/repository/postgres"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/resilience"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/storage/localfs"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/vector/inmemory"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/vector/pgvector"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	// Queue is nil when asynchronous ingestion is not configured.
	Queue     ports.IngestQueue
	Documents ports.DocumentCatalog

	IngestUC   *usecase.IngestUseCase
	Retriever  *usecase.Retriever
	AnswerUC   *usecase.AnswerUseCase
	VectorName string

	closeFns []func()
}

// Option tweaks how New wires collaborators.
type Option func(*options)

type options struct {
	onRetry func(operation string, attempt int, err error)
}

// WithRetryObserver is notified of every retried Ollama, vector store or NATS call.
func WithRetryObserver(fn func(operation string, attempt int, err error)) Option {
	return func(o *options) { o.onRetry = fn }
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: cfg.RetryInitialBackoff,
		RetryMaxBackoff:     cfg.RetryMaxBackoff,
		BreakerEnabled:      cfg.BreakerEnabled,
		OnRetry:             o.onRetry,
	})

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.onClose(func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	var (
		catalog ports.DocumentCatalog
		jobs    ports.JobRepository
	)
	if db != nil {
		catalog = postgres.NewDocumentRepository(db)
		jobs = postgres.NewJobRepository(db)
	} else {
		catalog = memory.NewDocumentRepository()
		jobs = memory.NewJobRepository(cfg.JobRetention)
	}
	app.Documents = catalog

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel,
		ollama.WithTimeout(cfg.OllamaTimeout),
		ollama.WithResilience(executor),
	)

	embedder, err := newEmbedder(cfg, ollamaClient)
	if err != nil {
		return nil, err
	}

	backend, err := newVectorBackend(ctx, cfg, db, executor)
	if err != nil {
		return nil, err
	}
	app.VectorName = cfg.VectorBackend

	ingestOpts := []usecase.IngestOption{
		usecase.WithChunkDefaults(cfg.ChunkSize, cfg.ChunkOverlap),
		usecase.WithObjectStorage(storage),
	}
	if cfg.AsyncIngest() {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.onClose(queue.Close)
		app.Queue = queue
		ingestOpts = append(ingestOpts, usecase.WithAsyncQueue(queue, jobs))
	}

	docNormalizer := normalizer.New(pdf.NewExtractor(), plaintext.NewExtractor(), normalizer.PageNumbering(cfg.PageNumbering))
	index := usecase.NewChunkIndex(embedder, backend)

	app.IngestUC = usecase.NewIngestUseCase(docNormalizer, chunking.NewFactory(), index, catalog, ingestOpts...)
	app.Retriever = usecase.NewRetriever(index, cfg.RAGTopK)
	app.AnswerUC = usecase.NewAnswerUseCase(app.Retriever, ollama.NewGenerator(ollamaClient), cfg.OllamaGenModel, cfg.Temperature)

	slog.Info("bootstrap_completed",
		"vector_backend", cfg.VectorBackend,
		"embedder", cfg.Embedder,
		"catalog", catalogKind(db),
		"async_ingest", app.Queue != nil,
	)
	ok = true
	return app, nil
}

func newEmbedder(cfg config.Config, client *ollama.Client) (ports.Embedder, error) {
	var embedder ports.Embedder
	switch cfg.Embedder {
	case config.EmbedderOllama:
		embedder = ollama.NewEmbedder(client)
	case config.EmbedderHash:
		embedder = hashing.NewEmbedder(cfg.EmbedDim)
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
	if cfg.EmbedCacheTTL > 0 {
		embedder = cached.NewEmbedder(embedder, cfg.EmbedCacheTTL)
	}
	return embedder, nil
}

func newVectorBackend(ctx context.Context, cfg config.Config, db *sql.DB, executor *resilience.Executor) (ports.VectorBackend, error) {
	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithResilience(executor)), nil
	case config.VectorBackendPgvector:
		if db == nil {
			return nil, fmt.Errorf("pgvector backend requires POSTGRES_DSN")
		}
		store, err := pgvector.New(db, cfg.PgvectorTable, cfg.EmbedDim)
		if err != nil {
			return nil, fmt.Errorf("init pgvector store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure pgvector schema: %w", err)
		}
		return store, nil
	case config.VectorBackendMemory:
		return inmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func catalogKind(db *sql.DB) string {
	if db != nil {
		return "postgres"
	}
	return "memory"
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
