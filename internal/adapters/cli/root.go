// Package cli is the operator command line: ingest, retrieve and ask against the local index.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/core/ports"
)

// Services is what the commands need from the composition root.
type Services struct {
	Ingestor  ports.DocumentIngestor
	Retriever ports.ChunkRetriever
	Answerer  ports.QuestionAnswerer
	Documents ports.DocumentReader
	TopK      int
}

// Loader builds the services on first use so that --help never touches the backends.
// The caller owns any resources the loader opens.
type Loader func(ctx context.Context) (*Services, error)

type app struct {
	load   Loader
	svc    *Services
	asJSON bool
}

func NewRootCommand(load Loader) *cobra.Command {
	a := &app{load: load}
	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Ask questions about local privacy-law documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		a.ingestCommand(),
		a.retrieveCommand(),
		a.askCommand(),
		a.documentsCommand(),
		a.jobCommand(),
	)
	return root
}

func (a *app) services(ctx context.Context) (*Services, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	if a.load == nil {
		return nil, errors.New("services not configured")
	}
	svc, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

func (a *app) printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func addFilterFlags(cmd *cobra.Command, f *filterFlags) {
	cmd.Flags().StringVar(&f.category, "category", "", "restrict to CCPA, GDPR, DDPA, LGPD or UNKNOWN")
	cmd.Flags().StringVar(&f.docID, "doc-id", "", "restrict to one document id")
	cmd.Flags().StringVar(&f.source, "source", "", "restrict to one source file name")
}

type filterFlags struct {
	category string
	docID    string
	source   string
}

func (f filterFlags) filter() domain.SearchFilter {
	return domain.SearchFilter{
		DocID:    strings.TrimSpace(f.docID),
		Source:   strings.TrimSpace(f.source),
		Category: domain.Category(strings.ToUpper(strings.TrimSpace(f.category))),
	}
}

func printChunks(cmd *cobra.Command, chunks []domain.ScoredChunk) {
	if len(chunks) == 0 {
		cmd.Println("No relevant chunks found.")
		return
	}
	for i, c := range chunks {
		cmd.Printf("[%d] %s p.%d (%s) score=%.3f\n", i+1, c.Metadata.Source, c.Metadata.Page, c.Metadata.Category, c.Score)
		cmd.Printf("    %s\n", snippet(c.Content, 240))
	}
}

func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
