package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
	"github.com/kirillkom/legal-assistant/internal/core/ports"
)

const maxTopK = 20

// Server exposes the legal assistant as MCP tools.
type Server struct {
	assistant ports.LegalAssistant
	logger    *slog.Logger
	mcp       *server.MCPServer
}

func NewServer(assistant ports.LegalAssistant, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		assistant: assistant,
		logger:    logger,
		mcp: server.NewMCPServer(
			"legal-assistant",
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("answer_question",
		mcp.WithDescription("Answer a question about Portuguese law, grounded in the indexed statutes."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The user's question in Portuguese.")),
		mcp.WithNumber("top_k", mcp.Description("Number of statute excerpts to retrieve (default depends on mode).")),
		mcp.WithArray("prior_technical_terms",
			mcp.Description("Technical terms used in the previous answer, for follow-up definitions."),
			mcp.WithStringItems(),
		),
	), s.answerQuestion)

	s.mcp.AddTool(mcp.NewTool("explain_term",
		mcp.WithDescription("Explain a legal term in plain language."),
		mcp.WithString("term", mcp.Required(), mcp.Description("The legal term or one of its synonyms.")),
	), s.explainTerm)

	s.mcp.AddTool(mcp.NewTool("index_stats",
		mcp.WithDescription("Report statute index statistics."),
	), s.indexStats)

	s.mcp.AddTool(mcp.NewTool("glossary_stats",
		mcp.WithDescription("Report glossary table and explanation cache statistics."),
	), s.glossaryStats)
}

// ServeStdio blocks serving the protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) answerQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question is required"), nil
	}
	topK := req.GetInt("top_k", 0)
	if topK < 0 || topK > maxTopK {
		return mcp.NewToolResultError(fmt.Sprintf("top_k must be between 0 and %d", maxTopK)), nil
	}

	payload, err := s.assistant.Answer(ctx, domain.AnswerRequest{
		Question:            question,
		TopK:                topK,
		PriorTechnicalTerms: req.GetStringSlice("prior_technical_terms", nil),
	})
	if err != nil {
		return s.toolError("answer_question", err), nil
	}
	return jsonResult(payload)
}

func (s *Server) explainTerm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term, err := req.RequireString("term")
	if err != nil || strings.TrimSpace(term) == "" {
		return mcp.NewToolResultError("term is required"), nil
	}
	explanation, err := s.assistant.ExplainTerm(ctx, term)
	if err != nil {
		return s.toolError("explain_term", err), nil
	}
	return jsonResult(explanation)
}

func (s *Server) indexStats(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.assistant.IndexStats())
}

func (s *Server) glossaryStats(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.assistant.GlossaryStats())
}

// toolError reports failures as tool results so the calling model can see them.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Error("mcp_tool_failed", "tool", tool, "error", err)
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return mcp.NewToolResultError("invalid input: " + err.Error())
	case domain.IsKind(err, domain.ErrNotInitialized):
		return mcp.NewToolResultError("the statute index is still being built, try again shortly")
	case domain.IsKind(err, domain.ErrTemporary):
		return mcp.NewToolResultError("a backend is temporarily unavailable, try again shortly")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
