// Package mcpserver exposes the answer engine as an MCP tool.
package mcpserver

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"istechat/answerer/answerer"
)

const (
	toolAskQuestion = "ask_question"
	maxTopK         = 20
)

// Predictor answers a single question.
type Predictor interface {
	Predict(ctx context.Context, text string, topK int) (answerer.GeneratedAnswer, error)
}

// MCPServer wraps the MCP server with the answer engine.
type MCPServer struct {
	engine    Predictor
	mcpServer *server.MCPServer
	logger    *zap.Logger
}

// New creates the server and registers its tools.
func New(engine Predictor, version string, logger *zap.Logger) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MCPServer{engine: engine, logger: logger}
	s.mcpServer = server.NewMCPServer(
		"answerer",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	return s
}

// Server returns the underlying MCP server.
func (s *MCPServer) Server() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP requests on stdin/stdout until EOF.
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *MCPServer) registerTools() {
	askTool := mcp.NewTool(toolAskQuestion,
		mcp.WithDescription("Türkçe bir soruyu bilgi tabanından cevaplar; kategori, güven skoru, benzer sorular ve bağlantılar döner."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Kullanıcının sorusu"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Döndürülecek en fazla benzer soru sayısı (varsayılan 3, en çok 20)"),
		),
	)
	s.mcpServer.AddTool(askTool, s.handleAskQuestion)
}

func (s *MCPServer) handleAskQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := strings.TrimSpace(request.GetString("question", ""))
	if question == "" {
		return mcp.NewToolResultError("question parameter required"), nil
	}
	topK := clampTopK(request.GetFloat("top_k", 0))

	answer, err := s.engine.Predict(ctx, question, topK)
	if err != nil {
		s.logger.Error("ask_question failed", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to answer question: %v", err)), nil
	}
	return mcp.NewToolResultText(formatAnswer(question, answer)), nil
}

// clampTopK maps the tool argument into [0, maxTopK]; 0 selects the engine default.
func clampTopK(v float64) int {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > maxTopK:
		return maxTopK
	}
	return int(v)
}

// formatAnswer renders an answer as markdown.
func formatAnswer(question string, a answerer.GeneratedAnswer) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", question)
	sb.WriteString(a.Text)
	sb.WriteString("\n\n")

	if a.Category != nil {
		fmt.Fprintf(&sb, "**Kategori:** %s", *a.Category)
		if a.Subcategory != nil {
			fmt.Fprintf(&sb, " / %s", *a.Subcategory)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "**Güven:** %.2f\n", a.Confidence)

	if len(a.SimilarQuestions) > 0 {
		sb.WriteString("\n## Benzer sorular\n\n")
		for _, q := range a.SimilarQuestions {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
	}
	if len(a.SuggestedLinks) > 0 {
		sb.WriteString("\n## Bağlantılar\n\n")
		for _, l := range a.SuggestedLinks {
			fmt.Fprintf(&sb, "- <%s>\n", l)
		}
	}
	return sb.String()
}
