package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/kansoku/internal/snapshot"
)

const (
	uriRecentJournal = "kansoku://journal/recent"
	uriStatus        = "kansoku://status"
	recentEntries    = 20
)

func (s *Server) registerResources() {
	// kansoku://journal/recent: the newest journal entries.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriRecentJournal,
			"Recent Journal",
			mcplib.WithResourceDescription("The newest research journal entries across all agents"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRecentJournal,
	)

	// kansoku://status: objective, progress and health.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriStatus,
			"Session Status",
			mcplib.WithResourceDescription("Session objective, state, progress stats and health grade"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStatusResource,
	)

	// kansoku://agent/{name}/journal: one agent's entries.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"kansoku://agent/{name}/journal",
			"Agent Journal",
			mcplib.WithTemplateDescription("Journal entries for a specific agent"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleAgentJournal,
	)
}

func (s *Server) handleRecentJournal(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	v, err := s.currentView(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: recent journal: %w", err)
	}
	entries := v.Journal[:min(recentEntries, len(v.Journal))]
	out := make([]map[string]any, len(entries))
	for i, e := range entries {
		out[i] = compactEntry(e)
	}
	return textResource(uriRecentJournal, out)
}

func (s *Server) handleStatusResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	v, err := s.currentView(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: status: %w", err)
	}
	return textResource(uriStatus, buildStatus(v))
}

func (s *Server) handleAgentJournal(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	agent, err := parseAgentJournalURI(uri)
	if err != nil {
		return nil, err
	}

	v, err := s.currentView(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: agent journal: %w", err)
	}
	entries := snapshot.JournalQuery{Agent: agent}.Apply(v.Journal)
	out := make([]map[string]any, len(entries))
	for i, e := range entries {
		out[i] = compactEntry(e)
	}
	return textResource(uri, map[string]any{
		"agent":   agent,
		"entries": out,
	})
}

// parseAgentJournalURI extracts the agent from kansoku://agent/{name}/journal.
func parseAgentJournalURI(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, "kansoku://agent/")
	if !ok {
		return "", fmt.Errorf("mcp: invalid agent journal URI: %s", uri)
	}
	agent, ok := strings.CutSuffix(rest, "/journal")
	if !ok {
		return "", fmt.Errorf("mcp: invalid agent journal URI: %s", uri)
	}
	if agent == "" || strings.Contains(agent, "/") {
		return "", fmt.Errorf("mcp: empty or nested agent in URI: %s", uri)
	}
	return agent, nil
}

func textResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
