package usecase

import (
	"context"
	"fmt"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/core/ports"
)

// ChunkIndex embeds chunks and hands them to the vector backend.
//
// The same embedder must be used for AddDocuments and Query; mixing embedding spaces
// between the write and read paths silently degrades retrieval.
type ChunkIndex struct {
	embedder ports.Embedder
	backend  ports.VectorBackend
}

func NewChunkIndex(embedder ports.Embedder, backend ports.VectorBackend) *ChunkIndex {
	return &ChunkIndex{
		embedder: embedder,
		backend:  backend,
	}
}

// AddDocuments indexes chunks under `{docId}_{page}_{positionInBatch}` ids and returns
// the ids in input order. Empty input is a no-op.
func (x *ChunkIndex) AddDocuments(ctx context.Context, chunks []domain.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	batch, err := x.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := x.write(ctx, batch); err != nil {
		return nil, err
	}
	return batch.ids, nil
}

// ReplaceDocument swaps the stored chunks of docID for chunks. Embedding happens before
// anything is deleted, so a failing embedder leaves the previous version searchable.
func (x *ChunkIndex) ReplaceDocument(ctx context.Context, docID string, chunks []domain.Chunk) ([]string, error) {
	var batch embeddedBatch
	if len(chunks) > 0 {
		var err error
		if batch, err = x.embed(ctx, chunks); err != nil {
			return nil, err
		}
	}
	if err := x.DeleteDocument(ctx, docID); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	if err := x.write(ctx, batch); err != nil {
		return nil, err
	}
	return batch.ids, nil
}

type embeddedBatch struct {
	ids        []string
	texts      []string
	metadatas  []domain.ChunkMetadata
	embeddings [][]float32
}

func (x *ChunkIndex) embed(ctx context.Context, chunks []domain.Chunk) (embeddedBatch, error) {
	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	metadatas := make([]domain.ChunkMetadata, len(chunks))
	for i, chunk := range chunks {
		ids[i] = domain.CompositeID(chunk.Metadata, i)
		texts[i] = chunk.Text
		metadatas[i] = chunk.Metadata
	}

	embeddings, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return embeddedBatch{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return embeddedBatch{}, fmt.Errorf("embed chunks: vectors/chunks mismatch: %d/%d", len(embeddings), len(chunks))
	}
	return embeddedBatch{ids: ids, texts: texts, metadatas: metadatas, embeddings: embeddings}, nil
}

func (x *ChunkIndex) write(ctx context.Context, b embeddedBatch) error {
	if err := x.backend.Add(ctx, b.ids, b.texts, b.metadatas, b.embeddings); err != nil {
		return fmt.Errorf("add chunks to vector index: %w", err)
	}
	return nil
}

// Query embeds queryText and returns the raw nearest-neighbour result.
func (x *ChunkIndex) Query(ctx context.Context, queryText string, nResults int, filter domain.SearchFilter) (domain.QueryResult, error) {
	embedding, err := x.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("embed query: %w", err)
	}
	result, err := x.backend.Query(ctx, embedding, nResults, filter)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("query vector index: %w", err)
	}
	return result, nil
}

func (x *ChunkIndex) DeleteDocument(ctx context.Context, docID string) error {
	if err := x.backend.DeleteByDocID(ctx, docID); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}
