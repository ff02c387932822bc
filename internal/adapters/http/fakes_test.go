package httpadapter

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/questinrest/offline-rag-bot/internal/config"
	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/core/ports"
)

type ingestorFake struct {
	err      error
	lastReq  domain.IngestRequest
	uploaded []string
	bodies   []string
	jobs     map[string]*domain.IngestJob
}

func (f *ingestorFake) Ingest(_ context.Context, req domain.IngestRequest) (*domain.IngestReport, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.IngestReport{
		Documents: []domain.DocumentRecord{{ID: "doc-1", Name: "gdpr.txt", Category: domain.CategoryGDPR, Pages: 1, Chunks: 4}},
		Pages:     1,
		Chunks:    4,
	}, nil
}

func (f *ingestorFake) Enqueue(_ context.Context, req domain.IngestRequest) (*domain.IngestJob, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	job := &domain.IngestJob{ID: "job-1", Request: req, Status: domain.JobQueued}
	if f.jobs == nil {
		f.jobs = map[string]*domain.IngestJob{}
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *ingestorFake) ProcessJob(context.Context, domain.IngestJob) error { return nil }

func (f *ingestorFake) GetJob(_ context.Context, id string) (*domain.IngestJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get ingest job", fmt.Errorf("id=%s", id))
	}
	return job, nil
}

func (f *ingestorFake) Upload(_ context.Context, files []ports.UploadFile, chunkSize, chunkOverlap int) (*domain.IngestReport, error) {
	report := &domain.IngestReport{Documents: []domain.DocumentRecord{}}
	for _, file := range files {
		raw, err := io.ReadAll(file.Body)
		if err != nil {
			return nil, err
		}
		f.uploaded = append(f.uploaded, file.Name)
		f.bodies = append(f.bodies, string(raw))
		report.Documents = append(report.Documents, domain.DocumentRecord{ID: "doc-" + file.Name, Name: file.Name})
		report.Chunks++
	}
	f.lastReq = domain.IngestRequest{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
	if f.err != nil {
		return nil, f.err
	}
	return report, nil
}

type retrieverFake struct {
	err      error
	lastTopK int
	chunks   []domain.ScoredChunk
	filter   domain.SearchFilter
}

func (f *retrieverFake) Retrieve(ctx context.Context, question string, filter domain.SearchFilter) ([]domain.ScoredChunk, error) {
	return f.RetrieveTopK(ctx, question, 0, filter)
}

func (f *retrieverFake) RetrieveTopK(_ context.Context, _ string, topK int, filter domain.SearchFilter) ([]domain.ScoredChunk, error) {
	f.lastTopK = topK
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type answererFake struct {
	err     error
	lastReq domain.AnswerRequest
}

func (f *answererFake) Answer(_ context.Context, req domain.AnswerRequest) (*domain.Answer, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Answer{
		Question: req.Question,
		Text:     "Controllers must document processing.",
		Model:    "gemma3:1b",
		Sources:  []domain.ScoredChunk{{Content: "chunk", Score: 0.9}},
	}, nil
}

type documentsFake struct {
	err  error
	docs []domain.DocumentRecord
}

func (f documentsFake) GetByID(_ context.Context, id string) (*domain.DocumentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, d := range f.docs {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
}

func (f documentsFake) List(context.Context) ([]domain.DocumentRecord, error) {
	return f.docs, f.err
}

type testDeps struct {
	ingestor  *ingestorFake
	retriever *retrieverFake
	answerer  *answererFake
	documents documentsFake
}

func newTestDeps() *testDeps {
	return &testDeps{
		ingestor:  &ingestorFake{},
		retriever: &retrieverFake{chunks: []domain.ScoredChunk{{Content: "GDPR text", Score: 0.8}}},
		answerer:  &answererFake{},
		documents: documentsFake{docs: []domain.DocumentRecord{{ID: "doc-1", Name: "gdpr.txt"}}},
	}
}

func (d *testDeps) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, d.ingestor, d.retriever, d.answerer, d.documents).Handler()
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestDeps().handler(cfg)
}
