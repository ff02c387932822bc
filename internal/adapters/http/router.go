package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/questinrest/offline-rag-bot/internal/config"
	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/core/ports"
	"github.com/questinrest/offline-rag-bot/internal/observability/metrics"
)

const (
	serviceName = "rag-api"

	// multipart parts beyond this spill to temp files
	multipartMemory = 8 << 20
)

type Router struct {
	cfg config.Config

	ingestor  ports.DocumentIngestor
	retriever ports.ChunkRetriever
	answerer  ports.QuestionAnswerer
	documents ports.DocumentReader

	metrics *metrics.HTTPServerMetrics
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func NewRouter(
	cfg config.Config,
	ingestor ports.DocumentIngestor,
	retriever ports.ChunkRetriever,
	answerer ports.QuestionAnswerer,
	documents ports.DocumentReader,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:       cfg,
		ingestor:  ingestor,
		retriever: retriever,
		answerer:  answerer,
		documents: documents,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Handler wires the routes behind request id, access log, metrics, traffic control and
// OpenAPI request validation. It panics if the embedded OpenAPI document is invalid.
func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /healthz", rt.healthz)
	api.Handle("POST /v1/ingest", endpoint("ingest", rt.ingest))
	api.Handle("GET /v1/jobs/{job_id}", endpoint("job", rt.getJob))
	api.Handle("GET /v1/documents", endpoint("list_documents", rt.listDocuments))
	api.Handle("POST /v1/documents", endpoint("upload", rt.uploadDocument))
	api.Handle("GET /v1/documents/{document_id}", endpoint("get_document", rt.getDocumentByID))
	api.Handle("POST /v1/retrieve", endpoint("retrieve", rt.retrieve))
	api.Handle("POST /v1/answer", endpoint("answer", rt.answer))

	validator, err := loadOpenAPIRouter(context.Background())
	if err != nil {
		panic(err)
	}

	var handler http.Handler = requestValidationMiddleware(api, validator)
	handler = timeoutMiddleware(handler, rt.cfg.APIRequestTimeout)
	handler = backpressureWithHook(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueWait, rt.rejected("overloaded"))
	if rt.cfg.APIRateLimitRPS > 0 {
		burst := rt.cfg.APIRateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(rt.cfg.APIRateLimitRPS), burst)
		handler = rateLimitMiddleware(handler, limiter, rt.rejected("rate_limited"))
	}

	root := http.NewServeMux()
	root.Handle("/", handler)
	if rt.metrics != nil {
		root.Handle("GET /metrics", rt.metrics.Handler())
	}

	var out http.Handler = root
	if rt.metrics != nil {
		out = rt.metrics.Middleware(serviceName, out)
	}
	return requestIDMiddleware(accessLogMiddleware(out))
}

// endpoint tags the access log line with the API operation name.
func endpoint(name string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		annotate(r.Context(), "endpoint", name)
		h(w, r)
	})
}

func (rt *Router) rejected(reason string) func() {
	if rt.metrics == nil {
		return nil
	}
	return func() {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	Path         string `json:"path"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	Async        bool   `json:"async"`
}

func (rt *Router) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ingestReq := domain.IngestRequest{
		Path:         req.Path,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
	}
	annotate(r.Context(), "async", req.Async)

	if req.Async {
		job, err := rt.ingestor.Enqueue(r.Context(), ingestReq)
		if err != nil {
			writeError(w, r, err)
			return
		}
		annotate(r.Context(), "job_id", job.ID)
		w.Header().Set("Location", "/v1/jobs/"+job.ID)
		writeJSON(w, http.StatusAccepted, job)
		return
	}

	report, err := rt.ingestor.Ingest(r.Context(), ingestReq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.recordIngest(r.Context(), "ingest", report)
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("job_id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}
	annotate(r.Context(), "job_id", id)
	job, err := rt.ingestor.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	annotate(r.Context(), "job_status", job.Status)
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		if r.ContentLength > rt.cfg.MaxUploadBytes {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form with 'file' parts is required"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	files := make([]ports.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, r, fmt.Errorf("open upload %s: %w", fh.Filename, err))
			return
		}
		defer f.Close()
		files = append(files, ports.UploadFile{Name: fh.Filename, Body: f})
	}
	annotate(r.Context(), "files", len(files))

	chunkSize, err := formInt(r, "chunk_size")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	chunkOverlap, err := formInt(r, "chunk_overlap")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	report, err := rt.ingestor.Upload(r.Context(), files, chunkSize, chunkOverlap)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.recordIngest(r.Context(), "upload", report)
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.documents.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []domain.DocumentRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("document_id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type retrieveRequest struct {
	Question string              `json:"question"`
	TopK     int                 `json:"top_k"`
	Filter   domain.SearchFilter `json:"filter"`
}

type retrieveResponse struct {
	Question string               `json:"question"`
	Chunks   []domain.ScoredChunk `json:"chunks"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req retrieveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	topK := rt.topK(req.TopK)
	annotate(r.Context(), "top_k", topK, "category", req.Filter.Category)
	chunks, err := rt.retriever.RetrieveTopK(r.Context(), req.Question, topK, req.Filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if chunks == nil {
		chunks = []domain.ScoredChunk{}
	}
	annotate(r.Context(), "results", len(chunks))
	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(serviceName, "retrieve", len(chunks), time.Since(started))
	}
	writeJSON(w, http.StatusOK, retrieveResponse{Question: req.Question, Chunks: chunks})
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req domain.AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TopK = rt.topK(req.TopK)
	annotate(r.Context(), "top_k", req.TopK, "category", req.Filter.Category)

	answer, err := rt.answerer.Answer(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	annotate(r.Context(), "model", answer.Model, "sources", len(answer.Sources))
	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(serviceName, "answer", len(answer.Sources), time.Since(started))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) topK(requested int) int {
	if requested > 0 {
		return requested
	}
	return rt.cfg.RAGTopK
}

func (rt *Router) recordIngest(ctx context.Context, op string, report *domain.IngestReport) {
	if report == nil {
		return
	}
	annotate(ctx, "documents", len(report.Documents), "chunks", report.Chunks)
	if rt.metrics != nil {
		rt.metrics.RecordIngest(serviceName, op, len(report.Documents), report.Chunks)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func formInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
