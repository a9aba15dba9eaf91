package tools

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer returns an MCP server exposing t as its only tool.
func NewMCPServer(t *SearchTool, version string) *server.MCPServer {
	s := server.NewMCPServer("ragkit", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.AddTool(mcpTool(t), t.handleMCP)
	return s
}

func mcpTool(t *SearchTool) mcp.Tool {
	return mcp.NewTool(t.Name(),
		mcp.WithDescription(t.Description()),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query to be performed."),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of results to return (default: 5)."),
			mcp.DefaultNumber(DefaultMaxResults),
		),
		mcp.WithArray("sourceIds",
			mcp.Description("Optional array of source IDs to constrain search results to specific documents."),
			mcp.WithStringItems(),
		),
		mcp.WithString("mode",
			mcp.Description("Search mode: bm25 (default), vector or hybrid."),
			mcp.Enum("bm25", "vector", "hybrid"),
			mcp.DefaultString("bm25"),
		),
	)
}

// handleMCP adapts an MCP tool call onto Run.
func (t *SearchTool) handleMCP(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := t.Run(ctx,
		req.GetString("query", ""),
		req.GetInt("maxResults", DefaultMaxResults),
		req.GetStringSlice("sourceIds", nil),
		req.GetString("mode", "bm25"),
	)
	if out.IsError {
		return mcp.NewToolResultError(out.Text), nil
	}
	return mcp.NewToolResultText(out.Text), nil
}

// ServeStdio runs s over in and out until ctx is cancelled or in closes.
// Protocol errors are logged through log; stdout carries only MCP frames.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer, log *slog.Logger) error {
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(log.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}
