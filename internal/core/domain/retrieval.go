package domain

// InsufficientContext is the sentinel answer the model is instructed to emit
// when the retrieved context does not support an answer.
const InsufficientContext = "Insufficient context."

// NoContextMessage is rendered in place of the context block when nothing was retrieved.
const NoContextMessage = "No relevant context found."

// SearchFilter is a metadata predicate. Non-zero fields are AND-ed equality constraints;
// the zero value matches every chunk.
type SearchFilter struct {
	DocID    string   `json:"doc_id,omitempty"`
	Source   string   `json:"source,omitempty"`
	Category Category `json:"category,omitempty"`
	Page     int      `json:"page,omitempty"`
}

func (f SearchFilter) IsZero() bool {
	return f == SearchFilter{}
}

func (f SearchFilter) Matches(meta ChunkMetadata) bool {
	if f.DocID != "" && f.DocID != meta.DocID {
		return false
	}
	if f.Source != "" && f.Source != meta.Source {
		return false
	}
	if f.Category != "" && f.Category != meta.Category {
		return false
	}
	if f.Page != 0 && f.Page != meta.Page {
		return false
	}
	return true
}

// QueryResult mirrors the raw nearest-neighbour response of the vector index:
// one inner slice per query embedding, best match first.
type QueryResult struct {
	IDs       [][]string        `json:"ids"`
	Documents [][]string        `json:"documents"`
	Metadatas [][]ChunkMetadata `json:"metadatas"`
	Distances [][]float64       `json:"distances"`
}

type ScoredChunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

type AnswerRequest struct {
	Question    string       `json:"question"`
	TopK        int          `json:"top_k"`
	Model       string       `json:"model,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	Filter      SearchFilter `json:"filter"`
}

type Answer struct {
	Question string        `json:"question"`
	Text     string        `json:"answer"`
	Model    string        `json:"model,omitempty"`
	Sources  []ScoredChunk `json:"chunks_used"`
}

// GenerationOptions carries per-request model settings to the generator.
type GenerationOptions struct {
	Model       string
	Temperature float64
}
