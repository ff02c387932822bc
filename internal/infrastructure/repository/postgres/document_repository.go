package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Upsert records an ingested document. Re-ingesting the same path replaces the row.
func (r *DocumentRepository) Upsert(ctx context.Context, record domain.DocumentRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (id, name, path, category, pages, chunks, ingested_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name, path = EXCLUDED.path, category = EXCLUDED.category,
	pages = EXCLUDED.pages, chunks = EXCLUDED.chunks, ingested_at = EXCLUDED.ingested_at
`,
		record.ID, record.Name, record.Path, string(record.Category), record.Pages, record.Chunks, record.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, path, category, pages, chunks, ingested_at
FROM documents
WHERE id = $1
`, id)

	record, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &record, nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]domain.DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, path, category, pages, chunks, ingested_at
FROM documents
ORDER BY ingested_at DESC, name ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DocumentRecord, 0)
	for rows.Next() {
		record, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func scanDocument(row rowScanner) (domain.DocumentRecord, error) {
	var record domain.DocumentRecord
	var category string
	err := row.Scan(
		&record.ID,
		&record.Name,
		&record.Path,
		&category,
		&record.Pages,
		&record.Chunks,
		&record.IngestedAt,
	)
	if err != nil {
		return domain.DocumentRecord{}, err
	}
	record.Category = domain.Category(category)
	return record, nil
}
