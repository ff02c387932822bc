package plaintext

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Extractor reads plain-text sources. Invalid UTF-8 sequences are dropped rather than
// failing the whole file.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ReadText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	return strings.ToValidUTF8(string(raw), ""), nil
}
