package usecase

import (
	"context"
	"strings"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

const DefaultTopK = 5

// Retriever turns a question into scored chunks. It queries the ChunkIndex that was used
// for ingestion, so both sides share one embedder.
type Retriever struct {
	index *ChunkIndex
	topK  int
}

func NewRetriever(index *ChunkIndex, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		index: index,
		topK:  topK,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, question string, filter domain.SearchFilter) ([]domain.ScoredChunk, error) {
	return r.RetrieveTopK(ctx, question, r.topK, filter)
}

// RetrieveTopK is Retrieve with a per-call K. Blank questions return an empty result
// without touching the embedder or the index.
func (r *Retriever) RetrieveTopK(ctx context.Context, question string, topK int, filter domain.SearchFilter) ([]domain.ScoredChunk, error) {
	if strings.TrimSpace(question) == "" {
		return []domain.ScoredChunk{}, nil
	}
	if topK <= 0 {
		topK = r.topK
	}

	result, err := r.index.Query(ctx, question, topK, filter)
	if err != nil {
		return nil, err
	}
	return FormatResults(result), nil
}

// FormatResults reads the first (and only) query of a raw result and zips it into
// scored chunks with score = 1 - distance, keeping the index order.
func FormatResults(result domain.QueryResult) []domain.ScoredChunk {
	if len(result.Documents) == 0 {
		return []domain.ScoredChunk{}
	}
	docs := result.Documents[0]
	var metas []domain.ChunkMetadata
	if len(result.Metadatas) > 0 {
		metas = result.Metadatas[0]
	}
	var distances []float64
	if len(result.Distances) > 0 {
		distances = result.Distances[0]
	}

	n := len(docs)
	if len(metas) < n {
		n = len(metas)
	}
	if len(distances) < n {
		n = len(distances)
	}

	out := make([]domain.ScoredChunk, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.ScoredChunk{
			Content:  docs[i],
			Metadata: metas[i],
			Score:    1 - distances[i],
		})
	}
	return out
}
