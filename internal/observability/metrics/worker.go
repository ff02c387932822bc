package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

// WorkerMetrics covers the async ingestion worker: jobs pulled off the queue and the
// collaborator retries they cause.
type WorkerMetrics struct {
	registry *prometheus.Registry

	jobs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	queueLag *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	m := &WorkerMetrics{
		registry: registry,
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "worker",
			Name:      "ingest_job_total",
			Help:      "Ingestion jobs by final status.",
		}, []string{"service", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "worker",
			Name:      "ingest_job_duration_seconds",
			Help:      "Time spent normalizing, chunking, embedding and indexing one job.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"service", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "rag",
			Subsystem:   "worker",
			Name:        "ingest_job_in_flight",
			Help:        "Ingestion jobs currently running.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		queueLag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job enqueue and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"service"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "worker",
			Name:      "collaborator_retries_total",
			Help:      "Retried calls to Ollama, the vector store or NATS.",
		}, []string{"service", "operation"}),
	}
	registry.MustRegister(m.jobs, m.duration, m.inFlight, m.queueLag, m.retries)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.inFlight.Inc()
}

// FinishJob records the job under its terminal status. A job cut off by the worker
// timeout is counted as "timeout" rather than failed.
func (m *WorkerMetrics) FinishJob(service string, duration time.Duration, err error) {
	m.inFlight.Dec()
	status := jobStatusLabel(err)
	m.jobs.WithLabelValues(service, status).Inc()
	m.duration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

// RetryObserver returns a hook suitable for resilience.Config.OnRetry.
func (m *WorkerMetrics) RetryObserver(service string) func(operation string, attempt int, err error) {
	return func(operation string, _ int, _ error) {
		m.retries.WithLabelValues(service, operation).Inc()
	}
}

func jobStatusLabel(err error) string {
	switch {
	case err == nil:
		return string(domain.JobSucceeded)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return string(domain.JobFailed)
	}
}
