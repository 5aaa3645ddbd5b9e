package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/kansoku/internal/ctxutil"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/service/sessionhealth"
	"github.com/ashita-ai/kansoku/internal/snapshot"
)

func (s *Server) registerTools() {
	// kansoku_journal: the derived timeline, newest first.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansoku_journal",
			mcplib.WithDescription(`Read the research journal: one entry per agent run, iteration,
quality gate and session milestone, newest first.

WHEN TO USE: To find out what the agents have done so far, or what is
running right now (in_progress entries have no end yet).

FILTER EXAMPLES:
- Everything one agent did: agent="web-researcher"
- Only open work: in_progress=true
- Iterations and gates: kind="iteration,quality_gate"`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("agent",
				mcplib.Description("Only entries for this agent id (case-insensitive)"),
			),
			mcplib.WithString("kind",
				mcplib.Description("Comma separated entry kinds: agent_work, agent_in_progress, iteration, iteration_running, quality_gate, quality_gate_running, session_start, session_complete"),
			),
			mcplib.WithBoolean("in_progress",
				mcplib.Description("true for open entries only, false for finished entries only"),
			),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum entries to return"),
				mcplib.Min(1),
				mcplib.Max(200),
				mcplib.DefaultNumber(20),
			),
			mcplib.WithBoolean("compact",
				mcplib.Description("Return trimmed entries (default true). Set false for full metadata and related tasks."),
				mcplib.DefaultBool(true),
			),
		),
		s.handleJournal,
	)

	// kansoku_operations: paired tool calls.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansoku_operations",
			mcplib.WithDescription(`List tool calls made by the agents, most recent first. Each call is a
start event paired with its completion; calls without a completion are
pending.

WHEN TO USE: To check which searches or fetches failed, or which tool an
agent is stuck in.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("tool", mcplib.Description("Only calls of this tool, e.g. WebSearch")),
			mcplib.WithString("agent", mcplib.Description("Only calls made by this agent id")),
			mcplib.WithString("status",
				mcplib.Description("Only calls with this outcome"),
				mcplib.Enum(string(model.StatusSuccess), string(model.StatusFailed), string(model.StatusPending)),
			),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum calls to return"),
				mcplib.Min(1),
				mcplib.Max(200),
				mcplib.DefaultNumber(20),
			),
		),
		s.handleOperations,
	)

	// kansoku_status: objective, progress and health in one call.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansoku_status",
			mcplib.WithDescription(`Get the session at a glance: objective, state, runtime, progress
stats, task counts and a health grade with the top problems.

WHEN TO USE: FIRST, to orient yourself before reading the journal.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleStatus,
	)

	// kansoku_refresh: force a poll.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansoku_refresh",
			mcplib.WithDescription(`Re-read the session files now instead of waiting for the next poll.
Returns the new event and entry counts.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleRefresh,
	)
}

func (s *Server) handleJournal(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	q := snapshot.JournalQuery{
		Agent: request.GetString("agent", ""),
		Kinds: snapshot.ParseKinds(request.GetString("kind", "")),
	}
	if _, ok := request.GetArguments()["in_progress"]; ok {
		b := request.GetBool("in_progress", false)
		q.InProgress = &b
	}
	limit := request.GetInt("limit", 20)

	v, err := s.currentView(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("no view available: %v", err)), nil
	}

	entries := q.Apply(v.Journal)
	total := len(entries)
	entries = entries[:min(max(limit, 1), total)]

	resp := map[string]any{
		"total": total,
		"stale": v.Stale,
	}
	// Custom sequences may emit other kinds, so an unknown kind is only a
	// hint when it matched nothing.
	if total == 0 {
		for _, k := range q.Kinds {
			if !k.Known() {
				resp["note"] = fmt.Sprintf("%q is not a built-in entry kind", k)
				break
			}
		}
	}
	if request.GetBool("compact", true) {
		out := make([]map[string]any, len(entries))
		for i, e := range entries {
			out[i] = compactEntry(e)
		}
		resp["entries"] = out
	} else {
		resp["entries"] = entries
	}
	return jsonResult(resp), nil
}

func (s *Server) handleOperations(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	q := snapshot.OperationQuery{
		Tool:   request.GetString("tool", ""),
		Agent:  request.GetString("agent", ""),
		Status: model.OperationStatus(request.GetString("status", "")),
	}
	switch q.Status {
	case "", model.StatusSuccess, model.StatusFailed, model.StatusPending:
	default:
		return errorResult("status must be success, failed or pending"), nil
	}
	limit := request.GetInt("limit", 20)

	v, err := s.currentView(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("no view available: %v", err)), nil
	}

	ops := q.Apply(v.Operations)
	total := len(ops)
	ops = ops[:min(max(limit, 1), total)]
	out := make([]map[string]any, len(ops))
	for i, op := range ops {
		out[i] = compactOperation(op)
	}
	return jsonResult(map[string]any{
		"operations": out,
		"total":      total,
		"stale":      v.Stale,
	}), nil
}

// statusResult is the body of kansoku_status and kansoku://status.
type statusResult struct {
	Session snapshot.Status        `json:"session"`
	Stats   *snapshot.Stats        `json:"stats"`
	Tasks   []string               `json:"tasks"`
	Health  *sessionhealth.Metrics `json:"health"`
	Stale   bool                   `json:"stale"`
}

func buildStatus(v snapshot.View) statusResult {
	res := statusResult{
		Session: v.Status,
		Stats:   v.Stats,
		Tasks:   []string{},
		Health:  sessionhealth.Compute(v),
		Stale:   v.Stale,
	}
	if v.Tasks != nil {
		res.Tasks = v.Tasks.Summary
	}
	return res
}

func (s *Server) handleStatus(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	v, err := s.currentView(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("no view available: %v", err)), nil
	}
	return jsonResult(buildStatus(v)), nil
}

func (s *Server) handleRefresh(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	viewer := ctxutil.ViewerFromContext(ctx)
	v, err := s.views.Refresh(ctx)
	if err != nil {
		s.logger.Warn("mcp: refresh failed", "viewer", viewer, "error", err)
		return errorResult(fmt.Sprintf("refresh failed: %v", err)), nil
	}
	s.logger.Info("mcp: refresh", "viewer", viewer, "entries", len(v.Journal))
	st := s.views.Status()
	return jsonResult(map[string]any{
		"events":       v.EventCount,
		"entries":      len(v.Journal),
		"dropped":      v.Dropped,
		"polls":        st.Polls,
		"last_poll_at": st.LastPollAt,
	}), nil
}
