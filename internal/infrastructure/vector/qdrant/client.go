package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/infrastructure/resilience"
)

// pointNamespace derives stable point ids from composite chunk ids; Qdrant only accepts
// UUIDs or unsigned integers.
var pointNamespace = uuid.MustParse("6f1c3a52-8d0e-4b8e-9a43-2f6c9d7e1b40")

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

type Option func(*Client)

func WithResilience(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func New(baseURL, collection string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PointID maps a composite chunk id to its Qdrant point id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Add upserts one point per chunk. Re-adding an id replaces the stored point.
func (c *Client) Add(ctx context.Context, ids, documents []string, metadatas []domain.ChunkMetadata, embeddings [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(documents) != len(ids) || len(metadatas) != len(ids) || len(embeddings) != len(ids) {
		return fmt.Errorf("qdrant add: ids/documents/metadatas/embeddings length mismatch")
	}

	if err := c.ensureCollection(ctx, len(embeddings[0])); err != nil {
		return err
	}

	points := make([]point, 0, len(ids))
	for i := range ids {
		meta := metadatas[i]
		points = append(points, point{
			ID:     PointID(ids[i]),
			Vector: embeddings[i],
			Payload: map[string]any{
				"chunk_id": ids[i],
				"doc_id":   meta.DocID,
				"source":   meta.Source,
				"page":     meta.Page,
				"category": string(meta.Category),
				"text":     documents[i],
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	_, err := c.do(ctx, http.MethodPut, url, map[string]any{"points": points}, "upsert", nil)
	return err
}

// Query returns the nResults nearest points as cosine distances, closest first. A
// missing collection yields an empty result.
func (c *Client) Query(ctx context.Context, embedding []float32, nResults int, filter domain.SearchFilter) (domain.QueryResult, error) {
	empty := domain.QueryResult{
		IDs:       [][]string{{}},
		Documents: [][]string{{}},
		Metadatas: [][]domain.ChunkMetadata{{}},
		Distances: [][]float64{{}},
	}
	if nResults <= 0 {
		return empty, nil
	}

	reqBody := map[string]any{
		"vector":       embedding,
		"limit":        nResults,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	status, err := c.do(ctx, http.MethodPost, url, reqBody, "search", &searchResp)
	if status == http.StatusNotFound {
		return empty, nil
	}
	if err != nil {
		return domain.QueryResult{}, err
	}

	ids := make([]string, 0, len(searchResp.Result))
	docs := make([]string, 0, len(searchResp.Result))
	metas := make([]domain.ChunkMetadata, 0, len(searchResp.Result))
	distances := make([]float64, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		ids = append(ids, getStringPayload(r.Payload, "chunk_id"))
		docs = append(docs, getStringPayload(r.Payload, "text"))
		metas = append(metas, domain.ChunkMetadata{
			DocID:    getStringPayload(r.Payload, "doc_id"),
			Source:   getStringPayload(r.Payload, "source"),
			Page:     getIntPayload(r.Payload, "page"),
			Category: domain.Category(getStringPayload(r.Payload, "category")),
		})
		distances = append(distances, 1-r.Score)
	}
	return domain.QueryResult{
		IDs:       [][]string{ids},
		Documents: [][]string{docs},
		Metadatas: [][]domain.ChunkMetadata{metas},
		Distances: [][]float64{distances},
	}, nil
}

func (c *Client) DeleteByDocID(ctx context.Context, docID string) error {
	reqBody := map[string]any{
		"filter": buildFilter(domain.SearchFilter{DocID: docID}),
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	status, err := c.do(ctx, http.MethodPost, url, reqBody, "delete", nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

func buildFilter(filter domain.SearchFilter) map[string]any {
	if filter.IsZero() {
		return nil
	}
	must := make([]map[string]any, 0, 4)
	add := func(key string, value any) {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	if filter.DocID != "" {
		add("doc_id", filter.DocID)
	}
	if filter.Source != "" {
		add("source", filter.Source)
	}
	if filter.Category != "" {
		add("category", string(filter.Category))
	}
	if filter.Page != 0 {
		add("page", filter.Page)
	}
	return map[string]any{"must": must}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	status, err := c.do(ctx, http.MethodPut, url, reqBody, "ensure collection", nil)
	// 200/201 for create, 409 if already exists (depends on version/config).
	if status == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if err != nil {
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

// do sends a JSON request through the resilience executor and decodes the response
// into out when it is non-nil. The last HTTP status is returned alongside any error.
func (c *Client) do(ctx context.Context, method, url string, payload any, operation string, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s body: %w", operation, err)
	}

	var status int
	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, method, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &StatusError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       strings.TrimSpace(string(raw)),
			}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	err = resilience.Run(ctx, c.executor, "qdrant."+strings.ReplaceAll(operation, " ", "_"), call, classifyQdrantError)
	return status, err
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}
