package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

// JobRepository forgets jobs after the retention period.
type JobRepository struct {
	cache *cache.Cache
}

func NewJobRepository(retention time.Duration) *JobRepository {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &JobRepository{
		cache: cache.New(retention, 10*time.Minute),
	}
}

func (r *JobRepository) Create(_ context.Context, job *domain.IngestJob) error {
	if err := r.cache.Add(job.ID, *job, cache.DefaultExpiration); err != nil {
		return fmt.Errorf("create ingest job: %w", err)
	}
	return nil
}

func (r *JobRepository) Get(_ context.Context, id string) (*domain.IngestJob, error) {
	if x, found := r.cache.Get(id); found {
		job := x.(domain.IngestJob)
		return &job, nil
	}
	return nil, domain.WrapError(domain.ErrJobNotFound, "get ingest job", fmt.Errorf("id=%s", id))
}

func (r *JobRepository) Update(_ context.Context, job *domain.IngestJob) error {
	if err := r.cache.Replace(job.ID, *job, cache.DefaultExpiration); err != nil {
		return domain.WrapError(domain.ErrJobNotFound, "update ingest job", fmt.Errorf("id=%s", job.ID))
	}
	return nil
}
