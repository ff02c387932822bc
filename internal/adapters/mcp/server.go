// Package mcpadapter exposes retrieval, answering and ingestion as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
	"github.com/questinrest/offline-rag-bot/internal/core/ports"
)

const (
	serverName    = "offline-rag-bot"
	serverVersion = "1.0.0"
)

type Server struct {
	ingestor  ports.DocumentIngestor
	retriever ports.ChunkRetriever
	answerer  ports.QuestionAnswerer
	topK      int

	mcp *server.MCPServer
}

func NewServer(ingestor ports.DocumentIngestor, retriever ports.ChunkRetriever, answerer ports.QuestionAnswerer, topK int) (*Server, error) {
	if retriever == nil || answerer == nil {
		return nil, errors.New("mcp: retriever and answerer are required")
	}
	s := &Server{
		ingestor:  ingestor,
		retriever: retriever,
		answerer:  answerer,
		topK:      topK,
		mcp:       server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// ServeSSE blocks until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sse := server.NewSSEServer(s.mcp)
	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(addr)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return sse.Shutdown(context.Background())
	}
}

func (s *Server) registerTools() {
	filterOpts := []mcp.ToolOption{
		mcp.WithString("category", mcp.Description("Restrict to one law: CCPA, GDPR, DDPA, LGPD or UNKNOWN"),
			mcp.Enum(string(domain.CategoryCCPA), string(domain.CategoryGDPR), string(domain.CategoryDDPA), string(domain.CategoryLGPD), string(domain.CategoryUnknown))),
		mcp.WithString("doc_id", mcp.Description("Restrict to one document id")),
		mcp.WithString("source", mcp.Description("Restrict to one source file name")),
	}

	retrieveOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Return the indexed chunks most similar to a question, best first."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Natural-language question")),
		mcp.WithNumber("top_k", mcp.Description("Number of chunks to return")),
	}, filterOpts...)
	s.mcp.AddTool(mcp.NewTool("retrieve_chunks", retrieveOpts...), s.handleRetrieve)

	answerOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Answer a question from the indexed privacy-law documents using the local model."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Natural-language question")),
		mcp.WithNumber("top_k", mcp.Description("Number of chunks used as context")),
		mcp.WithString("model", mcp.Description("Generation model override")),
		mcp.WithNumber("temperature", mcp.Description("Sampling temperature in [0, 2]")),
	}, filterOpts...)
	s.mcp.AddTool(mcp.NewTool("answer_question", answerOpts...), s.handleAnswer)

	if s.ingestor != nil {
		s.mcp.AddTool(mcp.NewTool("ingest_path",
			mcp.WithDescription("Load, chunk and index a .pdf/.txt file or a directory of them."),
			mcp.WithString("path", mcp.Required(), mcp.Description("File or directory path on the server")),
			mcp.WithNumber("chunk_size", mcp.Description("Chunk size in characters")),
			mcp.WithNumber("chunk_overlap", mcp.Description("Chunk overlap in characters")),
		), s.handleIngest)
	}
}

func (s *Server) handleRetrieve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	chunks, err := s.retriever.RetrieveTopK(ctx, question, s.resolveTopK(req.GetInt("top_k", 0)), filterFrom(req))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrieve: %v", err)), nil
	}
	if chunks == nil {
		chunks = []domain.ScoredChunk{}
	}
	return jsonResult(map[string]any{"question": question, "chunks": chunks})
}

func (s *Server) handleAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answerReq := domain.AnswerRequest{
		Question: question,
		TopK:     s.resolveTopK(req.GetInt("top_k", 0)),
		Model:    req.GetString("model", ""),
		Filter:   filterFrom(req),
	}
	if _, ok := req.GetArguments()["temperature"]; ok {
		temperature := req.GetFloat("temperature", 0)
		answerReq.Temperature = &temperature
	}

	answer, err := s.answerer.Answer(ctx, answerReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("answer: %v", err)), nil
	}
	return jsonResult(answer)
}

func (s *Server) handleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.ingestor.Ingest(ctx, domain.IngestRequest{
		Path:         path,
		ChunkSize:    req.GetInt("chunk_size", 0),
		ChunkOverlap: req.GetInt("chunk_overlap", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingest: %v", err)), nil
	}
	return jsonResult(report)
}

func (s *Server) resolveTopK(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.topK
}

func filterFrom(req mcp.CallToolRequest) domain.SearchFilter {
	return domain.SearchFilter{
		DocID:    strings.TrimSpace(req.GetString("doc_id", "")),
		Source:   strings.TrimSpace(req.GetString("source", "")),
		Category: domain.Category(strings.ToUpper(strings.TrimSpace(req.GetString("category", "")))),
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
