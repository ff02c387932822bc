package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/core/ports"
)

type AnswerUseCase struct {
	retriever          *Retriever
	generator          ports.AnswerGenerator
	defaultModel       string
	defaultTemperature float64
}

func NewAnswerUseCase(retriever *Retriever, generator ports.AnswerGenerator, defaultModel string, defaultTemperature float64) *AnswerUseCase {
	return &AnswerUseCase{
		retriever:          retriever,
		generator:          generator,
		defaultModel:       defaultModel,
		defaultTemperature: defaultTemperature,
	}
}

// Answer retrieves context and asks the generator. When nothing is retrieved the model is
// not called and the returned answer has empty text and no sources.
func (uc *AnswerUseCase) Answer(ctx context.Context, req domain.AnswerRequest) (*domain.Answer, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = uc.defaultModel
	}
	temperature := uc.defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if temperature < 0 || temperature > 2 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("temperature %.2f out of range [0, 2]", temperature))
	}

	chunks, err := uc.retriever.RetrieveTopK(ctx, req.Question, req.TopK, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(chunks) == 0 {
		return &domain.Answer{
			Question: req.Question,
			Model:    model,
			Sources:  []domain.ScoredChunk{},
		}, nil
	}

	answer, err := uc.generator.Generate(ctx, req.Question, chunks, domain.GenerationOptions{
		Model:       model,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}
