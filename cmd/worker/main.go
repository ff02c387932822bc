package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/questinrest/offline-rag-bot/internal/bootstrap"
	"github.com/questinrest/offline-rag-bot/internal/config"
	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/observability/logging"
	"github.com/questinrest/offline-rag-bot/internal/observability/metrics"
)

const serviceName = "rag-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	logger, logCloser := logging.NewRotatingJSONLogger(serviceName, cfg.LogLevel, cfg.LogFile)
	defer logCloser.Close()
	slog.SetDefault(logger)

	if !cfg.AsyncIngest() {
		slog.Error("worker_requires_nats", "hint", "set NATS_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.WithRetryObserver(workerMetrics.RetryObserver(serviceName)))
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIngest(ctx, func(handlerCtx context.Context, job domain.IngestJob) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, cfg.IngestJobTimeout)
		defer cancel()

		if !job.CreatedAt.IsZero() {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(job.CreatedAt))
		}
		workerMetrics.StartJob()
		started := time.Now()
		err := app.IngestUC.ProcessJob(processCtx, job)
		workerMetrics.FinishJob(serviceName, time.Since(started), err)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker_subscribe_error", "error", err)
		os.Exit(1)
	}
}
