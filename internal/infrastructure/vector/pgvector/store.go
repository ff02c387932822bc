// Package pgvector stores chunk embeddings in Postgres using the pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Store struct {
	db    *sql.DB
	table string
	dim   int
}

func New(db *sql.DB, table string, dim int) (*Store, error) {
	table = strings.ToLower(strings.TrimSpace(table))
	if !tableName.MatchString(table) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "pgvector store", fmt.Errorf("invalid table name %q", table))
	}
	if dim <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "pgvector store", fmt.Errorf("invalid dimension %d", dim))
	}
	return &Store{db: db, table: table, dim: dim}, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS %[1]s (
	id TEXT PRIMARY KEY,
	doc_id TEXT NOT NULL,
	source TEXT NOT NULL,
	page INTEGER NOT NULL,
	category TEXT NOT NULL,
	content TEXT NOT NULL,
	embedding vector(%[2]d) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_doc_id ON %[1]s(doc_id);
`, s.table, s.dim)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute pgvector ddl: %w", err)
	}
	return nil
}

// Add upserts all rows in one transaction.
func (s *Store) Add(ctx context.Context, ids, documents []string, metadatas []domain.ChunkMetadata, embeddings [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(documents) != len(ids) || len(metadatas) != len(ids) || len(embeddings) != len(ids) {
		return fmt.Errorf("pgvector add: ids/documents/metadatas/embeddings length mismatch")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (id, doc_id, source, page, category, content, embedding)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE
SET doc_id = EXCLUDED.doc_id, source = EXCLUDED.source, page = EXCLUDED.page,
	category = EXCLUDED.category, content = EXCLUDED.content, embedding = EXCLUDED.embedding
`, s.table)
	for i := range ids {
		meta := metadatas[i]
		if _, err := tx.ExecContext(ctx, query,
			ids[i], meta.DocID, meta.Source, meta.Page, string(meta.Category), documents[i], pgvector.NewVector(embeddings[i]),
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", ids[i], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add tx: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, embedding []float32, nResults int, filter domain.SearchFilter) (domain.QueryResult, error) {
	out := domain.QueryResult{
		IDs:       [][]string{{}},
		Documents: [][]string{{}},
		Metadatas: [][]domain.ChunkMetadata{{}},
		Distances: [][]float64{{}},
	}
	if nResults <= 0 {
		return out, nil
	}

	args := []any{pgvector.NewVector(embedding)}
	where := make([]string, 0, 4)
	addCond := func(column string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.DocID != "" {
		addCond("doc_id", filter.DocID)
	}
	if filter.Source != "" {
		addCond("source", filter.Source)
	}
	if filter.Category != "" {
		addCond("category", string(filter.Category))
	}
	if filter.Page != 0 {
		addCond("page", filter.Page)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, content, doc_id, source, page, category, embedding <=> $1 AS distance\nFROM %s\n", s.table)
	if len(where) > 0 {
		b.WriteString("WHERE " + strings.Join(where, " AND ") + "\n")
	}
	args = append(args, nResults)
	fmt.Fprintf(&b, "ORDER BY distance ASC\nLIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, content, category string
			meta                  domain.ChunkMetadata
			distance              float64
		)
		if err := rows.Scan(&id, &content, &meta.DocID, &meta.Source, &meta.Page, &category, &distance); err != nil {
			return domain.QueryResult{}, fmt.Errorf("scan chunk: %w", err)
		}
		meta.Category = domain.Category(category)
		out.IDs[0] = append(out.IDs[0], id)
		out.Documents[0] = append(out.Documents[0], content)
		out.Metadatas[0] = append(out.Metadatas[0], meta)
		out.Distances[0] = append(out.Distances[0], distance)
	}
	if err := rows.Err(); err != nil {
		return domain.QueryResult{}, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteByDocID(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE doc_id = $1", s.table), docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}
