package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/core/ports"
)

func twoDocs() []domain.SourceDocument {
	return []domain.SourceDocument{
		{
			ID: "d1", Name: "gdpr.pdf", Path: "/data/gdpr.pdf", Category: domain.CategoryGDPR,
			Pages: []domain.PageUnit{
				{Text: "a|b", PageNumber: 1, DocID: "d1", Source: "gdpr.pdf", Category: domain.CategoryGDPR},
				{Text: "c", PageNumber: 2, DocID: "d1", Source: "gdpr.pdf", Category: domain.CategoryGDPR},
			},
		},
		{
			ID: "d2", Name: "notes.txt", Path: "/data/notes.txt", Category: domain.CategoryUnknown,
			Pages: []domain.PageUnit{
				{Text: "x", PageNumber: 1, DocID: "d2", Source: "notes.txt", Category: domain.CategoryUnknown},
			},
		},
	}
}

type ingestFixture struct {
	uc         *IngestUseCase
	normalizer *normalizerFake
	chunker    *chunkerFake
	backend    *backendFake
	catalog    *catalogFake
	storage    *storageFake
	queue      *queueFake
	jobs       *jobsFake
}

func newIngestFixture(docs []domain.SourceDocument) *ingestFixture {
	f := &ingestFixture{
		normalizer: &normalizerFake{docs: docs},
		chunker:    &chunkerFake{},
		backend:    &backendFake{},
		catalog:    &catalogFake{},
		storage:    &storageFake{},
		queue:      &queueFake{},
		jobs:       &jobsFake{},
	}
	f.uc = NewIngestUseCase(
		f.normalizer,
		chunkerFactoryFake(f.chunker),
		NewChunkIndex(&embedderFake{}, f.backend),
		f.catalog,
		WithObjectStorage(f.storage),
		WithAsyncQueue(f.queue, f.jobs),
		WithChunkDefaults(250, 40),
	)
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	f.uc.now = func() time.Time { return fixed }
	return f
}

func TestIngestResetsThenIndexesEachDocument(t *testing.T) {
	f := newIngestFixture(twoDocs())
	report, err := f.uc.Ingest(context.Background(), domain.IngestRequest{Path: "/data"})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if f.chunker.size != 250 || f.chunker.overlap != 40 {
		t.Fatalf("expected default chunk bounds, got %d/%d", f.chunker.size, f.chunker.overlap)
	}
	wantCalls := []string{"delete:d1", "add", "delete:d2", "add"}
	if strings.Join(f.backend.calls, ",") != strings.Join(wantCalls, ",") {
		t.Fatalf("unexpected backend calls: %v", f.backend.calls)
	}
	if ids := f.backend.adds[0].ids; len(ids) != 3 || ids[2] != "d1_2_2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if report.Pages != 3 || report.Chunks != 4 || len(report.Documents) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	rec := f.catalog.records["d1"]
	if rec.Chunks != 3 || rec.Pages != 2 || rec.Category != domain.CategoryGDPR || rec.IngestedAt.IsZero() {
		t.Fatalf("unexpected catalog record: %+v", rec)
	}
}

func TestIngestEmptyInputIsNotAnError(t *testing.T) {
	f := newIngestFixture(nil)
	report, err := f.uc.Ingest(context.Background(), domain.IngestRequest{Path: "/empty"})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(report.Documents) != 0 || report.Chunks != 0 || report.Documents == nil {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestIngestValidatesChunkBounds(t *testing.T) {
	f := newIngestFixture(twoDocs())
	cases := []domain.IngestRequest{
		{Path: ""},
		{Path: "/data", ChunkSize: -1},
		{Path: "/data", ChunkSize: 50, ChunkOverlap: 50},
		{Path: "/data", ChunkSize: 50, ChunkOverlap: -2},
	}
	for _, req := range cases {
		if _, err := f.uc.Ingest(context.Background(), req); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", req, err)
		}
	}
	if len(f.backend.calls) != 0 {
		t.Fatalf("invalid requests must not touch the index")
	}
}

func TestIngestExplicitSizeKeepsZeroOverlap(t *testing.T) {
	f := newIngestFixture(twoDocs())
	if _, err := f.uc.Ingest(context.Background(), domain.IngestRequest{Path: "/data", ChunkSize: 100}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if f.chunker.size != 100 || f.chunker.overlap != 0 {
		t.Fatalf("unexpected chunk bounds %d/%d", f.chunker.size, f.chunker.overlap)
	}
}

func TestIngestPropagatesNotFound(t *testing.T) {
	f := newIngestFixture(nil)
	f.normalizer.err = domain.WrapError(domain.ErrNotFound, "load documents", errors.New("missing"))
	_, err := f.uc.Ingest(context.Background(), domain.IngestRequest{Path: "/missing"})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUploadSavesSanitizedNameAndIngests(t *testing.T) {
	f := newIngestFixture(twoDocs()[:1])
	report, err := f.uc.Upload(context.Background(), []ports.UploadFile{{Name: "GDPR policy 1.pdf", Body: strings.NewReader("%PDF")}}, 0, 0)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if f.storage.savedKey != "GDPR_policy_1.pdf" || f.storage.savedBody != "%PDF" {
		t.Fatalf("unexpected stored file %q %q", f.storage.savedKey, f.storage.savedBody)
	}
	if f.normalizer.lastPath != "/uploads/GDPR_policy_1.pdf" {
		t.Fatalf("expected stored path to be ingested, got %s", f.normalizer.lastPath)
	}
	if len(report.Documents) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	f := newIngestFixture(nil)
	_, err := f.uc.Upload(context.Background(), []ports.UploadFile{
		{Name: "ccpa.txt", Body: strings.NewReader("ok")},
		{Name: "slides.pptx", Body: strings.NewReader("x")},
	}, 0, 0)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(f.storage.saved) != 0 {
		t.Fatalf("nothing may be stored when one file is unsupported: %v", f.storage.saved)
	}
}

func TestUploadSeveralFilesCombinesReports(t *testing.T) {
	f := newIngestFixture(twoDocs()[:1])
	report, err := f.uc.Upload(context.Background(), []ports.UploadFile{
		{Name: "gdpr.pdf", Body: strings.NewReader("%PDF")},
		{Name: "lgpd notes.txt", Body: strings.NewReader("texto")},
	}, 120, 20)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(f.storage.saved) != 2 || f.storage.saved[1] != "lgpd_notes.txt" {
		t.Fatalf("unexpected stored files %v", f.storage.saved)
	}
	// the fake normalizer returns the same document for each path
	if len(report.Documents) != 2 || report.Chunks != 6 || report.Pages != 4 {
		t.Fatalf("unexpected combined report %+v", report)
	}
	if f.chunker.size != 120 || f.chunker.overlap != 20 {
		t.Fatalf("chunk settings not applied: %d/%d", f.chunker.size, f.chunker.overlap)
	}
}

func TestUploadRejectsEmptyAndBadBounds(t *testing.T) {
	f := newIngestFixture(nil)
	if _, err := f.uc.Upload(context.Background(), nil, 0, 0); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for no files, got %v", err)
	}
	_, err := f.uc.Upload(context.Background(), []ports.UploadFile{{Name: "a.txt", Body: strings.NewReader("x")}}, 50, 50)
	if !domain.IsKind(err, domain.ErrInvalidInput) || len(f.storage.saved) != 0 {
		t.Fatalf("expected rejection before storing, got %v (saved %v)", err, f.storage.saved)
	}
}

func TestEnqueueCreatesAndPublishesJob(t *testing.T) {
	f := newIngestFixture(twoDocs())
	job, err := f.uc.Enqueue(context.Background(), domain.IngestRequest{Path: "/data", ChunkSize: 120, ChunkOverlap: 20})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if job.ID == "" || job.Status != domain.JobQueued {
		t.Fatalf("unexpected job %+v", job)
	}
	if len(f.queue.published) != 1 || f.queue.published[0].ID != job.ID || f.queue.published[0].Request.ChunkSize != 120 {
		t.Fatalf("unexpected published jobs %+v", f.queue.published)
	}
	if len(f.backend.calls) != 0 {
		t.Fatalf("enqueue must not ingest synchronously")
	}
}

func TestEnqueueMarksJobFailedWhenPublishFails(t *testing.T) {
	f := newIngestFixture(twoDocs())
	f.queue.err = errors.New("nats down")
	_, err := f.uc.Enqueue(context.Background(), domain.IngestRequest{Path: "/data"})
	if err == nil || !strings.Contains(err.Error(), "publish ingest job") {
		t.Fatalf("expected publish error, got %v", err)
	}
	if got := f.jobs.history; len(got) != 2 || got[1] != domain.JobFailed {
		t.Fatalf("unexpected status history %v", got)
	}
}

func TestProcessJobRecordsSuccess(t *testing.T) {
	f := newIngestFixture(twoDocs())
	job, err := f.uc.Enqueue(context.Background(), domain.IngestRequest{Path: "/data"})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := f.uc.ProcessJob(context.Background(), *job); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	got, err := f.uc.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != domain.JobSucceeded || got.Documents != 2 || got.Chunks != 4 {
		t.Fatalf("unexpected job %+v", got)
	}
	want := []domain.JobStatus{domain.JobQueued, domain.JobRunning, domain.JobSucceeded}
	for i := range want {
		if f.jobs.history[i] != want[i] {
			t.Fatalf("unexpected status history %v", f.jobs.history)
		}
	}
}

func TestProcessJobRecordsFailure(t *testing.T) {
	f := newIngestFixture(twoDocs())
	f.backend.addErr = errors.New("disk full")
	job := domain.IngestJob{ID: "j1", Request: domain.IngestRequest{Path: "/data"}, Status: domain.JobQueued}
	_ = f.jobs.Create(context.Background(), &job)

	err := f.uc.ProcessJob(context.Background(), job)
	if !errors.Is(err, f.backend.addErr) {
		t.Fatalf("expected ingest error, got %v", err)
	}
	got, _ := f.uc.GetJob(context.Background(), "j1")
	if got.Status != domain.JobFailed || !strings.Contains(got.Error, "disk full") {
		t.Fatalf("unexpected job %+v", got)
	}
}

func TestIngestEmbedFailureDeletesNothing(t *testing.T) {
	backend := &backendFake{}
	errDown := errors.New("ollama down")
	uc := NewIngestUseCase(
		&normalizerFake{docs: twoDocs()},
		chunkerFactoryFake(&chunkerFake{}),
		NewChunkIndex(&embedderFake{err: errDown}, backend),
		&catalogFake{},
	)
	if _, err := uc.Ingest(context.Background(), domain.IngestRequest{Path: "/data"}); !errors.Is(err, errDown) {
		t.Fatalf("expected embedder error, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("backend must not be touched before embedding succeeds: %v", backend.calls)
	}
}

// deadlineJobs rejects writes on a done context, as database/sql does.
type deadlineJobs struct {
	jobsFake
}

func (f *deadlineJobs) Update(ctx context.Context, job *domain.IngestJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.jobsFake.Update(ctx, job)
}

type blockingNormalizer struct{}

func (blockingNormalizer) Load(ctx context.Context, _ string) ([]domain.SourceDocument, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestProcessJobTimeoutStillRecordsFailure(t *testing.T) {
	jobs := &deadlineJobs{}
	uc := NewIngestUseCase(
		blockingNormalizer{},
		chunkerFactoryFake(&chunkerFake{}),
		NewChunkIndex(&embedderFake{}, &backendFake{}),
		&catalogFake{},
		WithAsyncQueue(&queueFake{}, jobs),
	)
	job := domain.IngestJob{ID: "j-slow", Request: domain.IngestRequest{Path: "/data"}, Status: domain.JobQueued}
	_ = jobs.Create(context.Background(), &job)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := uc.ProcessJob(ctx, job)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if strings.Contains(err.Error(), "mark failed status") {
		t.Fatalf("terminal status write failed: %v", err)
	}
	got, _ := jobs.Get(context.Background(), "j-slow")
	if got.Status != domain.JobFailed || !strings.Contains(got.Error, "deadline exceeded") {
		t.Fatalf("expected failed job, got %+v", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report 1.txt":       "report_1.txt",
		"../../etc/gdpr.pdf": "gdpr.pdf",
		"política lgpd.pdf":  "pol_tica_lgpd.pdf",
		"":                   "document.txt",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
