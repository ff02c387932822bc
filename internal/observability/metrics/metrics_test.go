package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestHTTPMiddlewareNormalizesPaths(t *testing.T) {
	m := NewHTTPServerMetrics("rag-api")
	h := m.Middleware("rag-api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/jobs/abc", nil))

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `rag_http_requests_total{method="GET",path="/v1/jobs/{job_id}",service="rag-api",status="404"} 1`) {
		t.Fatalf("request counter missing:\n%s", out)
	}
}

func TestRecordRAGObservationSplitsHitsAndMisses(t *testing.T) {
	m := NewHTTPServerMetrics("rag-api")
	m.RecordRAGObservation("rag-api", "answer", 3, 10*time.Millisecond)
	m.RecordRAGObservation("rag-api", "answer", 0, 10*time.Millisecond)
	m.RecordIngest("rag-api", "ingest", 2, 9)
	m.RecordRejected("rag-api", "rate_limited")

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`rag_retrieval_hit_total{endpoint="answer",service="rag-api"} 1`,
		`rag_retrieval_no_context_total{endpoint="answer",service="rag-api"} 1`,
		`rag_ingest_chunks_total{endpoint="ingest",service="rag-api"} 9`,
		`rag_http_rejected_total{reason="rate_limited",service="rag-api"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWorkerMetricsTracksJobStatus(t *testing.T) {
	m := NewWorkerMetrics("rag-worker")
	m.StartJob()
	m.FinishJob("rag-worker", time.Second, errors.New("boom"))
	m.StartJob()
	m.FinishJob("rag-worker", time.Second, fmt.Errorf("embed: %w", context.DeadlineExceeded))
	m.StartJob()
	m.FinishJob("rag-worker", time.Second, nil)
	m.ObserveQueueLag("rag-worker", -time.Second)
	m.RetryObserver("rag-worker")("ollama.embed", 1, errors.New("busy"))

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`rag_worker_ingest_job_total{service="rag-worker",status="failed"} 1`,
		`rag_worker_ingest_job_total{service="rag-worker",status="timeout"} 1`,
		`rag_worker_ingest_job_total{service="rag-worker",status="succeeded"} 1`,
		`rag_worker_collaborator_retries_total{operation="ollama.embed",service="rag-worker"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "rag_worker_queue_lag_seconds_count") {
		t.Fatalf("negative lag must not be observed:\n%s", out)
	}
	if !strings.Contains(out, `rag_worker_ingest_job_in_flight{service="rag-worker"} 0`) {
		t.Fatalf("in-flight gauge not restored:\n%s", out)
	}
}
