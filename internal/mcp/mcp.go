// Package mcp implements the Model Context Protocol server for kansoku.
//
// The MCP server exposes the same read surface as the HTTP API through MCP
// resources and tools, so an MCP-capable agent can follow a research
// session it is not part of: what the agents did, which tool calls failed,
// and whether the session needs attention.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/kansoku/internal/service/watch"
	"github.com/ashita-ai/kansoku/internal/snapshot"
)

// Views is the poller as the MCP handlers see it.
type Views interface {
	View() (snapshot.View, error)
	Refresh(ctx context.Context) (snapshot.View, error)
	Status() watch.Status
}

// Server wraps the MCP server with the session view.
type Server struct {
	mcpServer *mcpserver.MCPServer
	views     Views
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources, tools
// and prompts.
func New(views Views, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		views:  views,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"kansoku",
		version,
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
		mcpserver.WithInstructions(serverInstructions),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

const serverInstructions = `kansoku follows a multi-agent research session from its event log and snapshot files.

Start with kansoku_status for the objective, progress and a health grade.
Use kansoku_journal to read what each agent did, newest first, and
kansoku_operations to inspect individual tool calls. Data is re-read every
few seconds; call kansoku_refresh only when you need the very latest events.`

// currentView returns the last view, polling once if there is none yet.
func (s *Server) currentView(ctx context.Context) (snapshot.View, error) {
	v, err := s.views.View()
	if err == nil {
		return v, nil
	}
	return s.views.Refresh(ctx)
}

func jsonResult(v any) *mcplib.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("failed to encode result: " + err.Error())
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
