// Package hashing implements a dependency-free embedder based on the feature-hashing
// trick. Vectors are deterministic, L2-normalized and comparable by cosine distance.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	DefaultDimension = 384

	tfSaturationK = 1.2
	bigramWeight  = 0.5
)

type Embedder struct {
	dim int
}

func NewEmbedder(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{dim: dim}
}

func (e *Embedder) Dimension() int {
	return e.dim
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, e.vector(text))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *Embedder) vector(text string) []float32 {
	tokens := tokenize(text)
	termFreq := make(map[string]float64, len(tokens)*2)
	for i, token := range tokens {
		termFreq[token]++
		if i > 0 {
			termFreq[tokens[i-1]+" "+token] += bigramWeight
		}
	}

	acc := make([]float64, e.dim)
	for term, tf := range termFreq {
		idx, sign := e.bucket(term)
		weight := (tf * (tfSaturationK + 1)) / (tf + tfSaturationK)
		acc[idx] += sign * weight
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dim)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

// bucket maps a term to a dimension and a sign so that colliding terms tend to cancel
// instead of accumulating.
func (e *Embedder) bucket(term string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(e.dim)), sign
}

func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
