package ports

import (
	"context"
	"io"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

// DocumentIngestor is the inbound contract for the write path.
type DocumentIngestor interface {
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestReport, error)
	Enqueue(ctx context.Context, req domain.IngestRequest) (*domain.IngestJob, error)
	ProcessJob(ctx context.Context, job domain.IngestJob) error
	GetJob(ctx context.Context, id string) (*domain.IngestJob, error)
	Upload(ctx context.Context, files []UploadFile, chunkSize, chunkOverlap int) (*domain.IngestReport, error)
}

// UploadFile is one file of a multi-file upload.
type UploadFile struct {
	Name string
	Body io.Reader
}

// ChunkRetriever is the inbound contract for similarity retrieval.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, question string, filter domain.SearchFilter) ([]domain.ScoredChunk, error)
	RetrieveTopK(ctx context.Context, question string, topK int, filter domain.SearchFilter) ([]domain.ScoredChunk, error)
}

// QuestionAnswerer is the inbound contract for grounded answers.
type QuestionAnswerer interface {
	Answer(ctx context.Context, req domain.AnswerRequest) (*domain.Answer, error)
}

// DocumentReader is the inbound read model for the ingestion catalog.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.DocumentRecord, error)
	List(ctx context.Context) ([]domain.DocumentRecord, error)
}
