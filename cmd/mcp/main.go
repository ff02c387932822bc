package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/questinrest/offline-rag-bot/internal/adapters/mcp"
	"github.com/questinrest/offline-rag-bot/internal/bootstrap"
	"github.com/questinrest/offline-rag-bot/internal/config"
	"github.com/questinrest/offline-rag-bot/internal/observability/logging"
)

const serviceName = "rag-mcp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	// stdout carries the MCP stdio protocol
	slog.SetDefault(logging.NewStderrJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server, err := mcpadapter.NewServer(app.IngestUC, app.Retriever, app.AnswerUC, cfg.RAGTopK)
	if err != nil {
		slog.Error("mcp_init_error", "error", err)
		os.Exit(1)
	}

	switch cfg.MCPTransport {
	case "sse":
		slog.Info("mcp_listening", "addr", cfg.MCPAddr)
		err = server.ServeSSE(ctx, cfg.MCPAddr)
	default:
		err = server.ServeStdio()
	}
	if err != nil {
		slog.Error("mcp_server_error", "error", err)
		os.Exit(1)
	}
}
