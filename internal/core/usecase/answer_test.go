package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

func answerFixture(result domain.QueryResult) (*AnswerUseCase, *generatorFake, *backendFake) {
	backend := &backendFake{result: result}
	gen := &generatorFake{}
	retriever := NewRetriever(NewChunkIndex(&embedderFake{}, backend), 3)
	return NewAnswerUseCase(retriever, gen, "gemma3:1b", 0.1), gen, backend
}

func oneHit() domain.QueryResult {
	return domain.QueryResult{
		IDs:       [][]string{{"abc_1_0"}},
		Documents: [][]string{{"Controllers must keep records."}},
		Metadatas: [][]domain.ChunkMetadata{{{DocID: "abc", Source: "gdpr.pdf", Page: 1}}},
		Distances: [][]float64{{0.1}},
	}
}

func TestAnswerWithoutContextSkipsGenerator(t *testing.T) {
	uc, gen, _ := answerFixture(domain.QueryResult{})
	answer, err := uc.Answer(context.Background(), domain.AnswerRequest{Question: "anything?"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("generator must not be called without context")
	}
	if answer.Text != "" || answer.Sources == nil || len(answer.Sources) != 0 {
		t.Fatalf("unexpected answer %+v", answer)
	}
}

func TestAnswerUsesDefaults(t *testing.T) {
	uc, gen, backend := answerFixture(oneHit())
	answer, err := uc.Answer(context.Background(), domain.AnswerRequest{Question: "what do controllers do?"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if gen.calls != 1 || gen.opts.Model != "gemma3:1b" || gen.opts.Temperature != 0.1 {
		t.Fatalf("unexpected generator options: %+v", gen.opts)
	}
	if backend.lastK != 3 {
		t.Fatalf("expected retriever default k, got %d", backend.lastK)
	}
	if answer.Text != "generated" || len(answer.Sources) != 1 {
		t.Fatalf("unexpected answer %+v", answer)
	}
}

func TestAnswerPerRequestOverrides(t *testing.T) {
	uc, gen, backend := answerFixture(oneHit())
	temp := 0.7
	_, err := uc.Answer(context.Background(), domain.AnswerRequest{
		Question:    "q",
		TopK:        8,
		Model:       "llama3",
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if gen.opts.Model != "llama3" || gen.opts.Temperature != 0.7 || backend.lastK != 8 {
		t.Fatalf("overrides not applied: opts=%+v k=%d", gen.opts, backend.lastK)
	}
}

func TestAnswerRejectsTemperatureOutOfRange(t *testing.T) {
	uc, gen, _ := answerFixture(oneHit())
	temp := 3.5
	_, err := uc.Answer(context.Background(), domain.AnswerRequest{Question: "q", Temperature: &temp})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("generator must not be called")
	}
}

func TestAnswerWrapsGeneratorError(t *testing.T) {
	uc, gen, _ := answerFixture(oneHit())
	gen.err = errors.New("model offline")
	_, err := uc.Answer(context.Background(), domain.AnswerRequest{Question: "q"})
	if !errors.Is(err, gen.err) {
		t.Fatalf("expected generator error, got %v", err)
	}
}
