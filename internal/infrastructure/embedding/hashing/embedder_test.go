package hashing

import (
	"context"
	"math"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestEmbedDeterministicAndNormalized(t *testing.T) {
	e := NewEmbedder(0)
	if e.Dimension() != DefaultDimension {
		t.Fatalf("expected default dimension, got %d", e.Dimension())
	}
	vecs, err := e.Embed(context.Background(), []string{"Right to erasure", "Right to erasure"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != DefaultDimension {
		t.Fatalf("unexpected shape: %d x %d", len(vecs), len(vecs[0]))
	}
	for i := range vecs[0] {
		if vecs[0][i] != vecs[1][i] {
			t.Fatalf("embedding not deterministic at %d", i)
		}
	}
	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestEmbedEmptyInputs(t *testing.T) {
	e := NewEmbedder(16)
	vecs, err := e.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("expected nil result for empty input, got %v %v", vecs, err)
	}
	q, err := e.EmbedQuery(context.Background(), "!!! ---")
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}
	for _, v := range q {
		if v != 0 {
			t.Fatalf("expected zero vector for tokenless text")
		}
	}
}

func TestEmbedQueryFavoursLexicalOverlap(t *testing.T) {
	e := NewEmbedder(DefaultDimension)
	ctx := context.Background()
	q, _ := e.EmbedQuery(ctx, "data subject erasure request")
	docs, _ := e.Embed(ctx, []string{
		"Data subjects may request erasure of personal data.",
		"Businesses must disclose categories of collected information.",
	})
	if cosine(q, docs[0]) <= cosine(q, docs[1]) {
		t.Fatalf("expected lexical match to score higher: %f vs %f", cosine(q, docs[0]), cosine(q, docs[1]))
	}
}

func TestTokenizeKeepsUnicodeLetters(t *testing.T) {
	tokens := tokenize("Proteção DOC_0001 versão-2")
	want := []string{"proteção", "doc", "0001", "versão", "2"}
	if len(tokens) != len(want) {
		t.Fatalf("unexpected tokens %v", tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d = %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestEmbedHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEmbedder(8).Embed(ctx, []string{"x"}); err == nil {
		t.Fatalf("expected context error")
	}
}
