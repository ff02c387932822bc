// Package normalizer loads PDF and plain-text files into typed source documents.
package normalizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/core/ports"
)

// PageNumbering controls how PDF pages are numbered in chunk metadata.
type PageNumbering string

const (
	// PageNumberingActual tags each PDF page with its 1-based position.
	PageNumberingActual PageNumbering = "actual"
	// PageNumberingLegacy tags every PDF page with 1, matching older indexes.
	PageNumberingLegacy PageNumbering = "legacy"
)

// categoryKeywords is checked in order; the first substring found in the lower-cased
// file name wins.
var categoryKeywords = []struct {
	keyword  string
	category domain.Category
}{
	{"ccpa", domain.CategoryCCPA},
	{"gdpr", domain.CategoryGDPR},
	{"ddpa", domain.CategoryDDPA},
	{"lgpd", domain.CategoryLGPD},
}

type Normalizer struct {
	pdf       ports.PageExtractor
	text      ports.TextReader
	numbering PageNumbering
}

func New(pdf ports.PageExtractor, text ports.TextReader, numbering PageNumbering) *Normalizer {
	if numbering != PageNumberingLegacy {
		numbering = PageNumberingActual
	}
	return &Normalizer{
		pdf:       pdf,
		text:      text,
		numbering: numbering,
	}
}

// Load expands path (a file or a directory, walked recursively in path order) and
// returns one SourceDocument per supported file that has at least one non-empty page.
func (n *Normalizer) Load(ctx context.Context, path string) ([]domain.SourceDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "load documents", fmt.Errorf("input path does not exist: %s", path))
		}
		return nil, fmt.Errorf("stat input path: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = listFiles(path)
		if err != nil {
			return nil, err
		}
	}

	docs := make([]domain.SourceDocument, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, ok, err := n.loadFile(ctx, file)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (n *Normalizer) loadFile(ctx context.Context, file string) (domain.SourceDocument, bool, error) {
	info, err := os.Stat(file)
	if err != nil || !info.Mode().IsRegular() {
		return domain.SourceDocument{}, false, nil
	}

	var texts []string
	switch strings.ToLower(filepath.Ext(file)) {
	case ".pdf":
		texts, err = n.pdf.Pages(ctx, file)
		if err != nil {
			return domain.SourceDocument{}, false, fmt.Errorf("extract pdf %s: %w", file, err)
		}
	case ".txt":
		text, err := n.text.ReadText(ctx, file)
		if err != nil {
			return domain.SourceDocument{}, false, fmt.Errorf("read text %s: %w", file, err)
		}
		texts = []string{text}
	default:
		return domain.SourceDocument{}, false, nil
	}

	resolved, err := ResolvePath(file)
	if err != nil {
		return domain.SourceDocument{}, false, err
	}
	name := filepath.Base(file)
	doc := domain.SourceDocument{
		ID:       DocID(resolved),
		Name:     name,
		Path:     resolved,
		Category: DetectCategory(name),
	}

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pageNumber := i + 1
		if n.numbering == PageNumberingLegacy {
			pageNumber = 1
		}
		doc.Pages = append(doc.Pages, domain.PageUnit{
			Text:       text,
			PageNumber: pageNumber,
			DocID:      doc.ID,
			Source:     doc.Name,
			Category:   doc.Category,
		})
	}
	if len(doc.Pages) == 0 {
		slog.Debug("document_without_text", "path", resolved)
		return domain.SourceDocument{}, false, nil
	}
	return doc, true, nil
}

func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk input directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// ResolvePath returns the absolute path with symlinks resolved where possible.
func ResolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// DocID is the first 16 hex characters of the SHA-256 digest of the resolved path.
// It is stable across runs and changes when the file moves.
func DocID(resolvedPath string) string {
	sum := sha256.Sum256([]byte(resolvedPath))
	return hex.EncodeToString(sum[:])[:16]
}

func DetectCategory(name string) domain.Category {
	lower := strings.ToLower(name)
	for _, kw := range categoryKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.category
		}
	}
	return domain.CategoryUnknown
}
