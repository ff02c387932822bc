package domain

import (
	"fmt"
	"time"
)

type Category string

const (
	CategoryCCPA    Category = "CCPA"
	CategoryGDPR    Category = "GDPR"
	CategoryDDPA    Category = "DDPA"
	CategoryLGPD    Category = "LGPD"
	CategoryUnknown Category = "UNKNOWN"
)

// SourceDocument is one physical input file after normalization.
type SourceDocument struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Category Category   `json:"category"`
	Pages    []PageUnit `json:"pages"`
}

// PageUnit is one PDF page or a whole plain-text file.
type PageUnit struct {
	Text       string   `json:"text"`
	PageNumber int      `json:"page_number"`
	DocID      string   `json:"doc_id"`
	Source     string   `json:"source"`
	Category   Category `json:"category"`
}

func (p PageUnit) Metadata() ChunkMetadata {
	return ChunkMetadata{
		DocID:    p.DocID,
		Source:   p.Source,
		Page:     p.PageNumber,
		Category: p.Category,
	}
}

// ChunkMetadata is the metadata schema shared by the ingestion and query paths.
// Every vector backend stores and returns exactly these fields.
type ChunkMetadata struct {
	DocID    string   `json:"doc_id"`
	Source   string   `json:"source"`
	Page     int      `json:"page"`
	Category Category `json:"category"`
}

type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// IndexedVector is what the core submits to the vector index.
type IndexedVector struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Metadata  ChunkMetadata `json:"metadata"`
	Embedding []float32     `json:"embedding"`
}

// CompositeID builds the `{docId}_{pageNumber}_{sequenceIndex}` key of an indexed chunk.
func CompositeID(meta ChunkMetadata, sequence int) string {
	page := meta.Page
	if page <= 0 {
		page = 1
	}
	return fmt.Sprintf("%s_%d_%d", meta.DocID, page, sequence)
}

// DocumentRecord is the catalog entry kept for every ingested source document.
type DocumentRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Category   Category  `json:"category"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
}

type IngestRequest struct {
	Path         string `json:"path"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

type IngestReport struct {
	Documents []DocumentRecord `json:"documents"`
	Pages     int              `json:"pages"`
	Chunks    int              `json:"chunks"`
}
