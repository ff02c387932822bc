// Package cached memoizes embeddings in process memory with a TTL.
package cached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/questinrest/offline-rag-bot/internal/core/ports"
)

type Embedder struct {
	next  ports.Embedder
	cache *cache.Cache
}

func NewEmbedder(next ports.Embedder, ttl time.Duration) *Embedder {
	cleanup := ttl * 2
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &Embedder{
		next:  next,
		cache: cache.New(ttl, cleanup),
	}
}

// Embed looks every text up individually and forwards only the misses to the wrapped
// embedder, in one batch and in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		if vec, ok := e.lookup(text); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := e.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
		e.cache.Set(key(missTexts[j]), fresh[j], cache.DefaultExpiration)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.lookup(text); ok {
		return vec, nil
	}
	vec, err := e.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key(text), vec, cache.DefaultExpiration)
	return vec, nil
}

func (e *Embedder) lookup(text string) ([]float32, bool) {
	if x, found := e.cache.Get(key(text)); found {
		return x.([]float32), true
	}
	return nil, false
}

func key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
