package usecase

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/core/ports"
)

type embedderFake struct {
	embedCalls int
	queryCalls int
	lastQuery  string
	err        error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i + 1), 0}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queryCalls++
	f.lastQuery = text
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

type addCall struct {
	ids       []string
	documents []string
	metadatas []domain.ChunkMetadata
}

type backendFake struct {
	calls     []string
	adds      []addCall
	deleted   []string
	result    domain.QueryResult
	lastK     int
	lastQuery domain.SearchFilter
	addErr    error
	queryErr  error
}

func (f *backendFake) Add(_ context.Context, ids, documents []string, metadatas []domain.ChunkMetadata, _ [][]float32) error {
	f.calls = append(f.calls, "add")
	if f.addErr != nil {
		return f.addErr
	}
	f.adds = append(f.adds, addCall{ids: ids, documents: documents, metadatas: metadatas})
	return nil
}

func (f *backendFake) Query(_ context.Context, _ []float32, nResults int, filter domain.SearchFilter) (domain.QueryResult, error) {
	f.calls = append(f.calls, "query")
	f.lastK = nResults
	f.lastQuery = filter
	if f.queryErr != nil {
		return domain.QueryResult{}, f.queryErr
	}
	return f.result, nil
}

func (f *backendFake) DeleteByDocID(_ context.Context, docID string) error {
	f.calls = append(f.calls, "delete:"+docID)
	f.deleted = append(f.deleted, docID)
	return nil
}

type normalizerFake struct {
	docs     []domain.SourceDocument
	err      error
	lastPath string
}

func (f *normalizerFake) Load(_ context.Context, path string) ([]domain.SourceDocument, error) {
	f.lastPath = path
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type chunkerFake struct {
	size, overlap int
}

func (f *chunkerFake) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Split(text, "|")
}

func (f *chunkerFake) SplitDocuments(pages []domain.PageUnit) []domain.Chunk {
	out := []domain.Chunk{}
	for _, page := range pages {
		for _, text := range f.Split(page.Text) {
			out = append(out, domain.Chunk{Text: text, Metadata: page.Metadata()})
		}
	}
	return out
}

func chunkerFactoryFake(record *chunkerFake) ports.ChunkerFactory {
	return func(size, overlap int) ports.Chunker {
		record.size = size
		record.overlap = overlap
		return record
	}
}

type catalogFake struct {
	records map[string]domain.DocumentRecord
	err     error
}

func (f *catalogFake) Upsert(_ context.Context, record domain.DocumentRecord) error {
	if f.err != nil {
		return f.err
	}
	if f.records == nil {
		f.records = map[string]domain.DocumentRecord{}
	}
	f.records[record.ID] = record
	return nil
}

func (f *catalogFake) GetByID(_ context.Context, id string) (*domain.DocumentRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &record, nil
}

func (f *catalogFake) List(context.Context) ([]domain.DocumentRecord, error) {
	out := make([]domain.DocumentRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

type storageFake struct {
	saved     []string
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.saved = append(f.saved, key)
	f.savedKey = key
	f.savedBody = string(raw)
	return "/uploads/" + key, nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

type queueFake struct {
	published []domain.IngestJob
	err       error
}

func (f *queueFake) PublishIngest(_ context.Context, job domain.IngestJob) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, job)
	return nil
}

func (f *queueFake) SubscribeIngest(context.Context, func(context.Context, domain.IngestJob) error) error {
	return errors.New("not implemented")
}

type jobsFake struct {
	jobs    map[string]domain.IngestJob
	history []domain.JobStatus
}

func (f *jobsFake) Create(_ context.Context, job *domain.IngestJob) error {
	if f.jobs == nil {
		f.jobs = map[string]domain.IngestJob{}
	}
	f.jobs[job.ID] = *job
	f.history = append(f.history, job.Status)
	return nil
}

func (f *jobsFake) Get(_ context.Context, id string) (*domain.IngestJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (f *jobsFake) Update(_ context.Context, job *domain.IngestJob) error {
	if f.jobs == nil {
		f.jobs = map[string]domain.IngestJob{}
	}
	f.jobs[job.ID] = *job
	f.history = append(f.history, job.Status)
	return nil
}

type generatorFake struct {
	calls  int
	chunks []domain.ScoredChunk
	opts   domain.GenerationOptions
	err    error
}

func (f *generatorFake) Generate(_ context.Context, question string, chunks []domain.ScoredChunk, opts domain.GenerationOptions) (*domain.Answer, error) {
	f.calls++
	f.chunks = chunks
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Answer{Question: question, Text: "generated", Model: opts.Model, Sources: chunks}, nil
}
