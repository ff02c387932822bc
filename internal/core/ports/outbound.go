package ports

import (
	"context"
	"io"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

// DocumentNormalizer turns a file or directory path into normalized source documents.
type DocumentNormalizer interface {
	Load(ctx context.Context, path string) ([]domain.SourceDocument, error)
}

// PageExtractor extracts plain text page by page from a paginated file (PDF).
// A page that cannot be decoded is returned as an empty string.
type PageExtractor interface {
	Pages(ctx context.Context, path string) ([]string, error)
}

// TextReader reads a non-paginated text file.
type TextReader interface {
	ReadText(ctx context.Context, path string) (string, error)
}

// Chunker splits page text into overlapping windows.
type Chunker interface {
	Split(text string) []string
	SplitDocuments(pages []domain.PageUnit) []domain.Chunk
}

// ChunkerFactory builds a chunker for per-request size and overlap.
type ChunkerFactory func(chunkSize, chunkOverlap int) Chunker

// Embedder builds vectors for chunks and query text.
// Indexing and querying must share the same embedder model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorBackend is the vector database collaborator. Distances are cosine distances,
// results are sorted ascending by distance.
type VectorBackend interface {
	Add(ctx context.Context, ids []string, documents []string, metadatas []domain.ChunkMetadata, embeddings [][]float32) error
	Query(ctx context.Context, embedding []float32, nResults int, filter domain.SearchFilter) (domain.QueryResult, error)
	DeleteByDocID(ctx context.Context, docID string) error
}

// AnswerGenerator creates the final user-facing answer from retrieved context.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, chunks []domain.ScoredChunk, opts domain.GenerationOptions) (*domain.Answer, error)
}

// DocumentCatalog persists ingested document records.
type DocumentCatalog interface {
	Upsert(ctx context.Context, record domain.DocumentRecord) error
	GetByID(ctx context.Context, id string) (*domain.DocumentRecord, error)
	List(ctx context.Context) ([]domain.DocumentRecord, error)
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// JobRepository persists the status of asynchronous ingestion jobs.
type JobRepository interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	Get(ctx context.Context, id string) (*domain.IngestJob, error)
	Update(ctx context.Context, job *domain.IngestJob) error
}

// IngestQueue publishes/consumes asynchronous ingestion jobs.
type IngestQueue interface {
	PublishIngest(ctx context.Context, job domain.IngestJob) error
	SubscribeIngest(ctx context.Context, handler func(context.Context, domain.IngestJob) error) error
}
