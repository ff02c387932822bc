package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/core/ports"
)

const (
	DefaultChunkSize    = 250
	DefaultChunkOverlap = 40
)

var sentenceEnd = regexp.MustCompile(`[.?!]\s+`)

// separator is one split boundary, coarsest first. The zero value splits between runes.
type separator struct {
	literal  string
	sentence bool
}

var defaultSeparators = []separator{
	{literal: "\n\n"},
	{literal: "\n"},
	{sentence: true},
	{},
}

func (s separator) isRune() bool {
	return !s.sentence && s.literal == ""
}

func (s separator) foundIn(text string) bool {
	if s.sentence {
		return sentenceEnd.MatchString(text)
	}
	return strings.Contains(text, s.literal)
}

// split cuts text on the separator and keeps each separator at the start of the
// piece that follows it.
func (s separator) split(text string) []string {
	switch {
	case s.isRune():
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	case s.sentence:
		matches := sentenceEnd.FindAllStringIndex(text, -1)
		out := make([]string, 0, len(matches)+1)
		prev := 0
		for _, m := range matches {
			cut := m[0] + 1
			if cut > prev {
				out = append(out, text[prev:cut])
			}
			prev = cut
		}
		if prev < len(text) {
			out = append(out, text[prev:])
		}
		return out
	default:
		parts := strings.Split(text, s.literal)
		out := make([]string, 0, len(parts))
		if parts[0] != "" {
			out = append(out, parts[0])
		}
		for _, p := range parts[1:] {
			out = append(out, s.literal+p)
		}
		return out
	}
}

// Splitter is a recursive, boundary-aware text splitter. Lengths are counted in runes.
type Splitter struct {
	ChunkSize int
	Overlap   int

	separators []separator
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		separators: defaultSeparators,
	}
}

// NewFactory adapts NewSplitter to ports.ChunkerFactory.
func NewFactory() ports.ChunkerFactory {
	return func(chunkSize, chunkOverlap int) ports.Chunker {
		return NewSplitter(chunkSize, chunkOverlap)
	}
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.splitText(text, s.separators)
}

// SplitDocuments splits every page and copies the page metadata onto its chunks,
// preserving source order.
func (s *Splitter) SplitDocuments(pages []domain.PageUnit) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(pages))
	for _, page := range pages {
		meta := page.Metadata()
		for _, text := range s.Split(page.Text) {
			out = append(out, domain.Chunk{Text: text, Metadata: meta})
		}
	}
	return out
}

func (s *Splitter) splitText(text string, separators []separator) []string {
	sep := separators[len(separators)-1]
	var finer []separator
	for i, candidate := range separators {
		if candidate.isRune() {
			sep = candidate
			break
		}
		if candidate.foundIn(text) {
			sep = candidate
			finer = separators[i+1:]
			break
		}
	}

	var out []string
	var small []string
	for _, piece := range sep.split(text) {
		if runeLen(piece) < s.ChunkSize {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			out = append(out, s.merge(small)...)
			small = nil
		}
		if len(finer) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				out = append(out, trimmed)
			}
			continue
		}
		out = append(out, s.splitText(piece, finer)...)
	}
	if len(small) > 0 {
		out = append(out, s.merge(small)...)
	}
	return out
}

// merge packs consecutive pieces into windows of at most ChunkSize runes and, when a
// window is emitted, drops pieces from its head until at most Overlap runes remain.
func (s *Splitter) merge(pieces []string) []string {
	var out []string
	var window []string
	total := 0
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.ChunkSize && len(window) > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
				out = append(out, chunk)
			}
			for total > s.Overlap || (total+n > s.ChunkSize && total > 0) {
				total -= runeLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
		out = append(out, chunk)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
