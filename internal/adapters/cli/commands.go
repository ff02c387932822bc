package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

func (a *app) ingestCommand() *cobra.Command {
	var (
		chunkSize    int
		chunkOverlap int
		async        bool
	)
	cmd := &cobra.Command{
		Use:   "ingest PATH",
		Short: "Load, chunk and index a .pdf/.txt file or a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			req := domain.IngestRequest{Path: args[0], ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}

			if async {
				job, err := svc.Ingestor.Enqueue(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("enqueue ingest: %w", err)
				}
				if a.asJSON {
					return a.printJSON(cmd, job)
				}
				cmd.Printf("Queued job %s\n", job.ID)
				return nil
			}

			report, err := svc.Ingestor.Ingest(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if a.asJSON {
				return a.printJSON(cmd, report)
			}
			for _, doc := range report.Documents {
				cmd.Printf("%s  %-7s pages=%d chunks=%d  %s\n", doc.ID, doc.Category, doc.Pages, doc.Chunks, doc.Name)
			}
			cmd.Printf("Indexed %d documents, %d pages, %d chunks\n", len(report.Documents), report.Pages, report.Chunks)
			return nil
		},
	}
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size in characters (default from config)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "chunk overlap in characters")
	cmd.Flags().BoolVar(&async, "async", false, "queue the job for the worker instead of ingesting inline")
	return cmd
}

func (a *app) retrieveCommand() *cobra.Command {
	var (
		topK    int
		filters filterFlags
	)
	cmd := &cobra.Command{
		Use:   "retrieve QUESTION",
		Short: "Show the chunks most similar to a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			if topK <= 0 {
				topK = svc.TopK
			}
			chunks, err := svc.Retriever.RetrieveTopK(cmd.Context(), strings.Join(args, " "), topK, filters.filter())
			if err != nil {
				return fmt.Errorf("retrieve: %w", err)
			}
			if a.asJSON {
				if chunks == nil {
					chunks = []domain.ScoredChunk{}
				}
				return a.printJSON(cmd, chunks)
			}
			printChunks(cmd, chunks)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks (default from config)")
	addFilterFlags(cmd, &filters)
	return cmd
}

func (a *app) askCommand() *cobra.Command {
	var (
		topK        int
		model       string
		temperature float64
		filters     filterFlags
	)
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			if topK <= 0 {
				topK = svc.TopK
			}
			req := domain.AnswerRequest{
				Question: strings.Join(args, " "),
				TopK:     topK,
				Model:    model,
				Filter:   filters.filter(),
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &temperature
			}

			answer, err := svc.Answerer.Answer(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("answer: %w", err)
			}
			if a.asJSON {
				return a.printJSON(cmd, answer)
			}
			if len(answer.Sources) == 0 {
				cmd.Println(domain.NoContextMessage)
				return nil
			}
			cmd.Println(answer.Text)
			cmd.Println()
			cmd.Println("Sources:")
			printChunks(cmd, answer.Sources)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of context chunks (default from config)")
	cmd.Flags().StringVar(&model, "model", "", "generation model (default from config)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature in [0, 2] (default from config)")
	addFilterFlags(cmd, &filters)
	return cmd
}

func (a *app) documentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List ingested documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			docs, err := svc.Documents.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list documents: %w", err)
			}
			if a.asJSON {
				if docs == nil {
					docs = []domain.DocumentRecord{}
				}
				return a.printJSON(cmd, docs)
			}
			if len(docs) == 0 {
				cmd.Println("No documents ingested.")
				return nil
			}
			for _, d := range docs {
				cmd.Printf("%s  %-7s chunks=%-4d %s  %s\n", d.ID, d.Category, d.Chunks, d.IngestedAt.Format("2006-01-02 15:04"), d.Name)
			}
			return nil
		},
	}
}

func (a *app) jobCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "job ID",
		Short: "Show the status of an asynchronous ingestion job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			job, err := svc.Ingestor.GetJob(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get job: %w", err)
			}
			if a.asJSON {
				return a.printJSON(cmd, job)
			}
			cmd.Printf("%s  %s  documents=%d chunks=%d\n", job.ID, job.Status, job.Documents, job.Chunks)
			if job.Error != "" {
				cmd.Printf("error: %s\n", job.Error)
			}
			if !job.Finished() {
				cmd.Printf("still in progress, check again later\n")
			}
			return nil
		},
	}
}
