package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/core/ports"
)

type IngestUseCase struct {
	normalizer ports.DocumentNormalizer
	chunkers   ports.ChunkerFactory
	index      *ChunkIndex
	catalog    ports.DocumentCatalog
	storage    ports.ObjectStorage
	queue      ports.IngestQueue
	jobs       ports.JobRepository

	defaultChunkSize    int
	defaultChunkOverlap int
	now                 func() time.Time
}

const statusWriteTimeout = 10 * time.Second

type IngestOption func(*IngestUseCase)

func WithObjectStorage(storage ports.ObjectStorage) IngestOption {
	return func(uc *IngestUseCase) {
		uc.storage = storage
	}
}

// WithAsyncQueue enables Enqueue. Jobs are tracked in repo.
func WithAsyncQueue(queue ports.IngestQueue, repo ports.JobRepository) IngestOption {
	return func(uc *IngestUseCase) {
		uc.queue = queue
		uc.jobs = repo
	}
}

func WithChunkDefaults(chunkSize, chunkOverlap int) IngestOption {
	return func(uc *IngestUseCase) {
		uc.defaultChunkSize = chunkSize
		uc.defaultChunkOverlap = chunkOverlap
	}
}

func NewIngestUseCase(
	normalizer ports.DocumentNormalizer,
	chunkers ports.ChunkerFactory,
	index *ChunkIndex,
	catalog ports.DocumentCatalog,
	opts ...IngestOption,
) *IngestUseCase {
	uc := &IngestUseCase{
		normalizer:          normalizer,
		chunkers:            chunkers,
		index:               index,
		catalog:             catalog,
		defaultChunkSize:    250,
		defaultChunkOverlap: 40,
		now:                 func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Ingest loads every supported file under req.Path, re-indexes each document from
// scratch and records it in the catalog. An input without supported files yields an
// empty report.
func (uc *IngestUseCase) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestReport, error) {
	req, err := uc.normalizeRequest(req)
	if err != nil {
		return nil, err
	}
	started := time.Now()

	docs, err := uc.normalizer.Load(ctx, req.Path)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	chunker := uc.chunkers(req.ChunkSize, req.ChunkOverlap)
	report := &domain.IngestReport{Documents: []domain.DocumentRecord{}}
	for _, doc := range docs {
		record, err := uc.ingestDocument(ctx, chunker, doc)
		if err != nil {
			return nil, err
		}
		report.Documents = append(report.Documents, record)
		report.Pages += record.Pages
		report.Chunks += record.Chunks
	}

	slog.Info("ingest_completed",
		"path", req.Path,
		"documents", len(report.Documents),
		"pages", report.Pages,
		"chunks", report.Chunks,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return report, nil
}

func (uc *IngestUseCase) ingestDocument(ctx context.Context, chunker ports.Chunker, doc domain.SourceDocument) (domain.DocumentRecord, error) {
	chunks := chunker.SplitDocuments(doc.Pages)

	if _, err := uc.index.ReplaceDocument(ctx, doc.ID, chunks); err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("index document %s: %w", doc.Name, err)
	}

	record := domain.DocumentRecord{
		ID:         doc.ID,
		Name:       doc.Name,
		Path:       doc.Path,
		Category:   doc.Category,
		Pages:      len(doc.Pages),
		Chunks:     len(chunks),
		IngestedAt: uc.now(),
	}
	if uc.catalog != nil {
		if err := uc.catalog.Upsert(ctx, record); err != nil {
			return domain.DocumentRecord{}, fmt.Errorf("record document %s: %w", doc.Name, err)
		}
	}
	return record, nil
}

// Upload stores every file under a sanitized name, then ingests them as one run with
// a combined report. Every name is checked before anything is stored. Uploading the
// same file name again replaces the previous version.
func (uc *IngestUseCase) Upload(ctx context.Context, files []ports.UploadFile, chunkSize, chunkOverlap int) (*domain.IngestReport, error) {
	if uc.storage == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload documents", errors.New("object storage is not configured"))
	}
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload documents", errors.New("no files"))
	}
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".pdf" && ext != ".txt" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "upload documents", fmt.Errorf("unsupported file type %q in %s", ext, f.Name))
		}
	}
	if _, err := uc.normalizeRequest(domain.IngestRequest{Path: "upload", ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path, err := uc.storage.Save(ctx, sanitizeFilename(f.Name), f.Body)
		if err != nil {
			return nil, fmt.Errorf("save %s to object storage: %w", f.Name, err)
		}
		paths = append(paths, path)
	}

	combined := &domain.IngestReport{Documents: []domain.DocumentRecord{}}
	for _, path := range paths {
		report, err := uc.Ingest(ctx, domain.IngestRequest{
			Path:         path,
			ChunkSize:    chunkSize,
			ChunkOverlap: chunkOverlap,
		})
		if err != nil {
			return nil, err
		}
		combined.Documents = append(combined.Documents, report.Documents...)
		combined.Pages += report.Pages
		combined.Chunks += report.Chunks
	}
	return combined, nil
}

// Enqueue records a queued job and publishes it for the worker.
func (uc *IngestUseCase) Enqueue(ctx context.Context, req domain.IngestRequest) (*domain.IngestJob, error) {
	if uc.queue == nil || uc.jobs == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "enqueue ingest", errors.New("async ingestion is not configured"))
	}
	req, err := uc.normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	job := &domain.IngestJob{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    domain.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create ingest job: %w", err)
	}

	if err := uc.queue.PublishIngest(ctx, *job); err != nil {
		if failErr := uc.finishJob(ctx, job, nil, err); failErr != nil {
			return nil, fmt.Errorf("publish ingest job: %w; mark failed status: %v", err, failErr)
		}
		return nil, fmt.Errorf("publish ingest job: %w", err)
	}
	return job, nil
}

// ProcessJob runs a queued job and records its outcome. The ingestion error, if any, is
// returned so the queue can decide on redelivery.
func (uc *IngestUseCase) ProcessJob(ctx context.Context, job domain.IngestJob) error {
	job.Status = domain.JobRunning
	job.UpdatedAt = uc.now()
	if uc.jobs != nil {
		if err := uc.jobs.Update(ctx, &job); err != nil {
			return fmt.Errorf("set status=running: %w", err)
		}
	}

	report, ingestErr := uc.Ingest(ctx, job.Request)
	if err := uc.finishJob(ctx, &job, report, ingestErr); err != nil {
		if ingestErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", ingestErr, err)
		}
		return fmt.Errorf("set status=succeeded: %w", err)
	}
	return ingestErr
}

func (uc *IngestUseCase) GetJob(ctx context.Context, id string) (*domain.IngestJob, error) {
	if uc.jobs == nil {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get ingest job", fmt.Errorf("id=%s", id))
	}
	return uc.jobs.Get(ctx, id)
}

func (uc *IngestUseCase) finishJob(ctx context.Context, job *domain.IngestJob, report *domain.IngestReport, jobErr error) error {
	job.UpdatedAt = uc.now()
	if jobErr != nil {
		job.Status = domain.JobFailed
		job.Error = jobErr.Error()
	} else {
		job.Status = domain.JobSucceeded
		job.Error = ""
		if report != nil {
			job.Documents = len(report.Documents)
			job.Chunks = report.Chunks
		}
	}
	if uc.jobs == nil {
		return nil
	}
	// The job context may already be past its deadline; the terminal status must still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	return uc.jobs.Update(writeCtx, job)
}

// normalizeRequest applies the chunk defaults and validates the bounds. A request with
// neither size nor overlap set gets both defaults; an explicit size keeps overlap as given.
func (uc *IngestUseCase) normalizeRequest(req domain.IngestRequest) (domain.IngestRequest, error) {
	req.Path = strings.TrimSpace(req.Path)
	if req.Path == "" {
		return req, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("path is required"))
	}
	if req.ChunkSize == 0 {
		req.ChunkSize = uc.defaultChunkSize
		if req.ChunkOverlap == 0 {
			req.ChunkOverlap = uc.defaultChunkOverlap
		}
	}
	if req.ChunkSize <= 0 {
		return req, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("chunk_size must be positive, got %d", req.ChunkSize))
	}
	if req.ChunkOverlap < 0 || req.ChunkOverlap >= req.ChunkSize {
		return req, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("chunk_overlap must be in [0, %d), got %d", req.ChunkSize, req.ChunkOverlap))
	}
	return req, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.txt"
	}
	return base
}
