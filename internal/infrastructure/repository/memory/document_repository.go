// Package memory keeps the document catalog and ingest jobs in process memory. It backs
// the CLI and single-binary deployments that run without Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/patrickmn/go-cache"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

type DocumentRepository struct {
	cache *cache.Cache
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (r *DocumentRepository) Upsert(_ context.Context, record domain.DocumentRecord) error {
	r.cache.Set(record.ID, record, cache.NoExpiration)
	return nil
}

func (r *DocumentRepository) GetByID(_ context.Context, id string) (*domain.DocumentRecord, error) {
	if x, found := r.cache.Get(id); found {
		record := x.(domain.DocumentRecord)
		return &record, nil
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
}

func (r *DocumentRepository) List(_ context.Context) ([]domain.DocumentRecord, error) {
	items := r.cache.Items()
	out := make([]domain.DocumentRecord, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(domain.DocumentRecord))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IngestedAt.Equal(out[j].IngestedAt) {
			return out[i].IngestedAt.After(out[j].IngestedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
