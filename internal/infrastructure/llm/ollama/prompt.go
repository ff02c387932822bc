package ollama

import (
	"fmt"
	"strings"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

var systemPrompt = `You are a helpful RAG assistant.

Answer the question using ONLY the provided context.
Do not use any internal knowledge.

If the context does not contain the answer, reply exactly:
` + domain.InsufficientContext + `

Write a short, direct answer using the context.`

func buildUserPrompt(question string, chunks []domain.ScoredChunk) string {
	return fmt.Sprintf("Question:\n%s\n\nContext:\n%s\n\nReturn a direct answer.", question, BuildContext(chunks))
}

// BuildContext renders retrieved chunks as numbered blocks separated by blank lines.
func BuildContext(chunks []domain.ScoredChunk) string {
	if len(chunks) == 0 {
		return domain.NoContextMessage
	}

	blocks := make([]string, 0, len(chunks))
	for idx, chunk := range chunks {
		source := chunk.Metadata.Source
		if source == "" {
			source = chunk.Metadata.DocID
		}
		if source == "" {
			source = "unknown"
		}
		page := "unknown"
		if chunk.Metadata.Page > 0 {
			page = fmt.Sprintf("%d", chunk.Metadata.Page)
		}
		blocks = append(blocks, fmt.Sprintf("[chunk_id=%d | source=%s | page=%s]\n%s", idx+1, source, page, chunk.Content))
	}
	return strings.Join(blocks, "\n\n")
}
