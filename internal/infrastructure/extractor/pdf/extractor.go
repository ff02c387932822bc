package pdf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls plain text out of PDF files page by page.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Pages returns one entry per PDF page in document order. Pages that fail to decode
// come back as empty strings so a single bad page does not abort the file.
func (e *Extractor) Pages(ctx context.Context, path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("read pdf %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, pageText(reader, path, i))
	}
	return pages, nil
}

func pageText(reader *pdf.Reader, path string, number int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("pdf_page_extract_failed", "path", path, "page", number, "error", fmt.Sprint(r))
			text = ""
		}
	}()

	page := reader.Page(number)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		slog.Warn("pdf_page_extract_failed", "path", path, "page", number, "error", err)
		return ""
	}
	return text
}
