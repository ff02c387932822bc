// Package inmemory is a brute-force cosine-distance vector store held in process memory.
package inmemory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

type entry struct {
	id        string
	document  string
	metadata  domain.ChunkMetadata
	embedding []float32
	seq       int
}

type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nextSeq int
}

func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func (s *Store) Add(ctx context.Context, ids, documents []string, metadatas []domain.ChunkMetadata, embeddings [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(documents) != len(ids) || len(metadatas) != len(ids) || len(embeddings) != len(ids) {
		return fmt.Errorf("inmemory add: ids/documents/metadatas/embeddings length mismatch")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range ids {
		seq := s.nextSeq
		if existing, ok := s.entries[id]; ok {
			seq = existing.seq
		} else {
			s.nextSeq++
		}
		s.entries[id] = &entry{
			id:        id,
			document:  documents[i],
			metadata:  metadatas[i],
			embedding: append([]float32(nil), embeddings[i]...),
			seq:       seq,
		}
	}
	return nil
}

// Query ranks every matching entry by cosine distance. Ties keep insertion order.
func (s *Store) Query(ctx context.Context, embedding []float32, nResults int, filter domain.SearchFilter) (domain.QueryResult, error) {
	out := domain.QueryResult{
		IDs:       [][]string{{}},
		Documents: [][]string{{}},
		Metadatas: [][]domain.ChunkMetadata{{}},
		Distances: [][]float64{{}},
	}
	if err := ctx.Err(); err != nil {
		return domain.QueryResult{}, err
	}
	if nResults <= 0 {
		return out, nil
	}

	type hit struct {
		e        *entry
		distance float64
	}

	s.mu.RLock()
	hits := make([]hit, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.Matches(e.metadata) {
			continue
		}
		hits = append(hits, hit{e: e, distance: CosineDistance(embedding, e.embedding)})
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].e.seq < hits[j].e.seq
	})
	if len(hits) > nResults {
		hits = hits[:nResults]
	}

	for _, h := range hits {
		out.IDs[0] = append(out.IDs[0], h.e.id)
		out.Documents[0] = append(out.Documents[0], h.e.document)
		out.Metadatas[0] = append(out.Metadatas[0], h.e.metadata)
		out.Distances[0] = append(out.Distances[0], h.distance)
	}
	return out, nil
}

func (s *Store) DeleteByDocID(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.metadata.DocID == docID {
			delete(s.entries, id)
		}
	}
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CosineDistance returns 1 - cos(a, b). Zero vectors are at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		na += float64(v) * float64(v)
	}
	for _, v := range b {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
