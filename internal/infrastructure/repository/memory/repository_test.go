package memory

import (
	"context"
	"testing"
	"time"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

func TestDocumentRepositoryUpsertReplaces(t *testing.T) {
	repo := NewDocumentRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	_ = repo.Upsert(ctx, domain.DocumentRecord{ID: "a", Name: "gdpr.pdf", Chunks: 3, IngestedAt: now})
	_ = repo.Upsert(ctx, domain.DocumentRecord{ID: "a", Name: "gdpr.pdf", Chunks: 5, IngestedAt: now})
	_ = repo.Upsert(ctx, domain.DocumentRecord{ID: "b", Name: "ccpa.txt", Chunks: 1, IngestedAt: now.Add(time.Minute)})

	got, err := repo.GetByID(ctx, "a")
	if err != nil || got.Chunks != 5 {
		t.Fatalf("expected replaced record, got %+v %v", got, err)
	}
	list, _ := repo.List(ctx)
	if len(list) != 2 || list[0].ID != "b" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if _, err := repo.GetByID(ctx, "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestJobRepositoryLifecycle(t *testing.T) {
	repo := NewJobRepository(time.Hour)
	ctx := context.Background()
	job := &domain.IngestJob{ID: "j1", Status: domain.JobQueued}

	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, job); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}
	job.Status = domain.JobSucceeded
	if err := repo.Update(ctx, job); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := repo.Get(ctx, "j1")
	if err != nil || got.Status != domain.JobSucceeded {
		t.Fatalf("unexpected job %+v %v", got, err)
	}
	if err := repo.Update(ctx, &domain.IngestJob{ID: "nope"}); !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
