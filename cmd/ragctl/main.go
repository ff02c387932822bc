package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/questinrest/offline-rag-bot/internal/adapters/cli"
	"github.com/questinrest/offline-rag-bot/internal/bootstrap"
	"github.com/questinrest/offline-rag-bot/internal/config"
	"github.com/questinrest/offline-rag-bot/internal/observability/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app *bootstrap.App
	defer func() {
		if app != nil {
			app.Close()
		}
	}()

	root := cli.NewRootCommand(func(ctx context.Context) (*cli.Services, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		slog.SetDefault(logging.NewStderrJSONLogger("ragctl", cfg.LogLevel))

		app, err = bootstrap.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		return &cli.Services{
			Ingestor:  app.IngestUC,
			Retriever: app.Retriever,
			Answerer:  app.AnswerUC,
			Documents: app.Documents,
			TopK:      cfg.RAGTopK,
		}, nil
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
