package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingest_jobs (id, path, chunk_size, chunk_overlap, status, error_message, documents, chunks, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, job.ID, job.Request.Path, job.Request.ChunkSize, job.Request.ChunkOverlap, string(job.Status), job.Error,
		job.Documents, job.Chunks, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create ingest job: %w", err)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id string) (*domain.IngestJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, path, chunk_size, chunk_overlap, status, error_message, documents, chunks, created_at, updated_at
FROM ingest_jobs
WHERE id = $1
`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get ingest job", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get ingest job: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) Update(ctx context.Context, job *domain.IngestJob) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ingest_jobs
SET status = $2, error_message = $3, documents = $4, chunks = $5, updated_at = $6
WHERE id = $1
`, job.ID, string(job.Status), job.Error, job.Documents, job.Chunks, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update ingest job: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ingest job rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrJobNotFound, "update ingest job", fmt.Errorf("id=%s", job.ID))
	}
	return nil
}

func scanJob(row rowScanner) (domain.IngestJob, error) {
	var job domain.IngestJob
	var status string
	err := row.Scan(
		&job.ID,
		&job.Request.Path,
		&job.Request.ChunkSize,
		&job.Request.ChunkOverlap,
		&status,
		&job.Error,
		&job.Documents,
		&job.Chunks,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return domain.IngestJob{}, err
	}
	job.Status = domain.JobStatus(status)
	return job, nil
}
