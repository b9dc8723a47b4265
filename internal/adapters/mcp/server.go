package mcpadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

const (
	serverName    = "knowledge-assistant"
	serverVersion = "0.1.0"

	defaultSearchLimit = 4
	maxSearchLimit     = 20
)

type Dependencies struct {
	Answers   ports.AnswerService
	Retriever ports.KnowledgeRetriever
	Catalog   ports.SourceCatalog
	Logger    *slog.Logger
}

// Server exposes the knowledge base as MCP tools over stdio.
type Server struct {
	deps   Dependencies
	server *server.MCPServer
}

func NewServer(deps Dependencies) (*Server, error) {
	if deps.Answers == nil || deps.Retriever == nil {
		return nil, errors.New("mcp server needs an answer service and a retriever")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		deps:   deps,
		server: server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.server.AddTool(mcp.NewTool("ask_knowledge_base",
		mcp.WithDescription("Answer a question from the indexed wiki pages, PDFs and boards. Returns the answer and its sources."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer")),
		mcp.WithString("session_id", mcp.Description("Optional chat session the question belongs to")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleAsk)

	s.server.AddTool(mcp.NewTool("search_knowledge_base",
		mcp.WithDescription("Return the indexed chunks most similar to a query, ordered by similarity."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of chunks"), mcp.DefaultNumber(defaultSearchLimit), mcp.Min(1), mcp.Max(maxSearchLimit)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleSearch)

	if s.deps.Catalog != nil {
		s.server.AddTool(mcp.NewTool("list_sources",
			mcp.WithDescription("List indexed sources with item and chunk counts."),
			mcp.WithReadOnlyHintAnnotation(true),
		), s.handleListSources)
	}
}

// Serve blocks until ctx is done or the input stream closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.server)
	stdio.SetErrorLogger(slog.NewLogLogger(s.deps.Logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

type askOutput struct {
	Answer             string   `json:"answer"`
	Sources            []string `json:"sources"`
	KnowledgeBaseReady bool     `json:"knowledge_base_ready"`
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess := domain.SessionContext{SessionID: req.GetString("session_id", "")}

	result, err := s.deps.Answers.Answer(ctx, sess, question)
	if err != nil {
		return s.toolError("ask_knowledge_base", err), nil
	}
	if !result.KnowledgeBaseReady {
		return mcp.NewToolResultError("the knowledge base is empty, ingest a source first"), nil
	}
	return mcp.NewToolResultJSON(askOutput{
		Answer:             result.Answer,
		Sources:            result.Sources,
		KnowledgeBaseReady: result.KnowledgeBaseReady,
	})
}

type searchHit struct {
	Source string  `json:"source"`
	Kind   string  `json:"kind"`
	Page   int     `json:"page,omitempty"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

type searchOutput struct {
	Results []searchHit `json:"results"`
	Count   int         `json:"count"`
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	chunks, err := s.deps.Retriever.Retrieve(ctx, query, limit)
	if err != nil {
		return s.toolError("search_knowledge_base", err), nil
	}
	out := searchOutput{Results: make([]searchHit, 0, len(chunks)), Count: len(chunks)}
	for _, c := range chunks {
		out.Results = append(out.Results, searchHit{
			Source: c.Metadata.Source,
			Kind:   string(c.Metadata.Kind),
			Page:   c.Metadata.Page,
			Score:  c.Score,
			Text:   c.Text,
		})
	}
	return mcp.NewToolResultJSON(out)
}

func (s *Server) handleListSources(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sources, err := s.deps.Catalog.ListSources(ctx)
	if err != nil {
		return s.toolError("list_sources", err), nil
	}
	return mcp.NewToolResultJSON(struct {
		Sources []domain.SourceSummary `json:"sources"`
	}{Sources: sources})
}

// toolError reports failures inside the tool result so the client model can see them.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.deps.Logger.Error("mcp_tool_failed", "tool", tool, "error", err)
	if domain.IsKind(err, domain.ErrInvalidInput) {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultErrorFromErr(fmt.Sprintf("%s failed", tool), err)
}
