package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kansoku/internal/eventlog"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/service/watch"
	"github.com/ashita-ai/kansoku/internal/snapshot"
)

const testLog = `{"type":"session_start","timestamp":"2025-10-04T09:00:00Z","data":{"objective":"How do tides work?"}}
{"type":"agent_invocation","timestamp":"2025-10-04T09:00:01Z","data":{"agent":"web-researcher"}}
{"type":"tool_use_start","timestamp":"2025-10-04T09:00:02Z","data":{"tool":"WebSearch","agent":"web-researcher"}}
{"type":"tool_use_complete","timestamp":"2025-10-04T09:00:03Z","data":{"tool":"WebSearch","status":"success"}}
{"type":"tool_use_start","timestamp":"2025-10-04T09:00:04Z","data":{"tool":"WebFetch","agent":"web-researcher"}}
{"type":"tool_use_complete","timestamp":"2025-10-04T09:00:05Z","data":{"tool":"WebFetch","status":"failed","error":"timeout after 30s"}}
{"type":"agent_result","timestamp":"2025-10-04T09:00:10Z","data":{"agent":"web-researcher"}}
{"type":"agent_invocation","timestamp":"2025-10-04T09:00:11Z","data":{"agent":"fact-checker"}}
`

type fakeViews struct {
	view      *snapshot.View
	refreshes int
	err       error
}

func (f *fakeViews) View() (snapshot.View, error) {
	if f.view == nil {
		return snapshot.View{}, watch.ErrNoView
	}
	return *f.view, nil
}

func (f *fakeViews) Refresh(context.Context) (snapshot.View, error) {
	f.refreshes++
	if f.err != nil {
		return snapshot.View{}, f.err
	}
	v := testView()
	f.view = &v
	return v, nil
}

func (f *fakeViews) Status() watch.Status {
	return watch.Status{Polls: int64(f.refreshes)}
}

func testView() snapshot.View {
	in := snapshot.Inputs{
		Log:      eventlog.NewDecoder(nil).DecodeBytes("events.jsonl", []byte(testLog)),
		Metrics:  &model.Metrics{Iteration: 1, Confidence: 0.4},
		Session: &model.Session{
			Objective: "How do tides work?",
			Status:    model.SessionInProgress,
			CreatedAt: model.InstantOf(time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC)),
		},
		Tasks:    []model.Task{{ID: "t1", Agent: "fact-checker", Status: model.TaskInProgress}},
		HasTasks: true,
	}
	now := model.InstantOf(time.Date(2025, 10, 4, 9, 1, 0, 0, time.UTC))
	v, _ := snapshot.NewAssembler(nil, nil).Assemble(in, nil, now)
	return v
}

func newTestServer(views Views) *Server {
	return New(views, slog.New(slog.NewTextHandler(io.Discard, nil)), "test")
}

func callTool(args map[string]any) mcplib.CallToolRequest {
	var req mcplib.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, res *mcplib.CallToolResult) map[string]any {
	t.Helper()
	require.NotNil(t, res)
	require.False(t, res.IsError, "unexpected tool error: %v", res.Content)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcplib.TextContent)
	require.True(t, ok)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &out))
	return out
}

func TestJournalTool(t *testing.T) {
	s := newTestServer(&fakeViews{})

	tests := []struct {
		name      string
		args      map[string]any
		wantTotal float64
		wantLen   int
	}{
		{"everything", map[string]any{}, 3, 3},
		{"by agent", map[string]any{"agent": "Web-Researcher"}, 1, 1},
		{"open only", map[string]any{"in_progress": true}, 1, 1},
		{"finished only", map[string]any{"in_progress": false}, 2, 2},
		{"by kinds", map[string]any{"kind": "agent_work, session_start"}, 2, 2},
		{"limited", map[string]any{"limit": 1}, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleJournal(context.Background(), callTool(tt.args))
			require.NoError(t, err)
			out := resultJSON(t, res)
			assert.Equal(t, tt.wantTotal, out["total"])
			assert.Len(t, out["entries"], tt.wantLen)
		})
	}
}

func TestJournalToolCompactEntries(t *testing.T) {
	s := newTestServer(&fakeViews{})

	res, err := s.handleJournal(context.Background(), callTool(map[string]any{"agent": "web-researcher"}))
	require.NoError(t, err)
	entries := resultJSON(t, res)["entries"].([]any)
	require.Len(t, entries, 1)
	e := entries[0].(map[string]any)
	assert.Equal(t, "agent_work", e["kind"])
	assert.Equal(t, float64(2), e["tool_calls"])
	assert.Equal(t, float64(1), e["failed_tool_calls"])
	assert.NotContains(t, e, "metadata")

	res, err = s.handleJournal(context.Background(), callTool(map[string]any{"agent": "web-researcher", "compact": false}))
	require.NoError(t, err)
	full := resultJSON(t, res)["entries"].([]any)[0].(map[string]any)
	assert.Contains(t, full, "metadata")
	assert.Contains(t, full, "related_operations")
}

func TestJournalToolNotesUnknownKind(t *testing.T) {
	s := newTestServer(&fakeViews{})
	res, err := s.handleJournal(context.Background(), callTool(map[string]any{"kind": "nonsense"}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, float64(0), out["total"])
	assert.Contains(t, out["note"], "nonsense")
}

func TestOperationsTool(t *testing.T) {
	s := newTestServer(&fakeViews{})

	res, err := s.handleOperations(context.Background(), callTool(map[string]any{}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, float64(2), out["total"])
	ops := out["operations"].([]any)
	assert.Equal(t, "WebFetch", ops[0].(map[string]any)["tool"], "most recent first")

	res, err = s.handleOperations(context.Background(), callTool(map[string]any{"status": "failed"}))
	require.NoError(t, err)
	ops = resultJSON(t, res)["operations"].([]any)
	require.Len(t, ops, 1)
	op := ops[0].(map[string]any)
	assert.Equal(t, "timeout after 30s", op["error"])
	assert.Equal(t, "web-researcher", op["agent"])
	assert.Equal(t, float64(1000), op["duration_ms"])

	res, err = s.handleOperations(context.Background(), callTool(map[string]any{"status": "exploded"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestStatusTool(t *testing.T) {
	s := newTestServer(&fakeViews{})

	res, err := s.handleStatus(context.Background(), callTool(nil))
	require.NoError(t, err)
	out := resultJSON(t, res)

	health := out["health"].(map[string]any)
	assert.NotEmpty(t, health["status"])
	session := out["session"].(map[string]any)
	assert.Equal(t, "How do tides work?", session["objective"])
	assert.NotEmpty(t, out["tasks"])
}

func TestRefreshTool(t *testing.T) {
	views := &fakeViews{}
	s := newTestServer(views)

	res, err := s.handleRefresh(context.Background(), callTool(nil))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, float64(8), out["events"])
	assert.Equal(t, float64(3), out["entries"])
	assert.Equal(t, float64(1), out["polls"])

	views.err = errors.New("source: fetch events.jsonl: connection refused")
	res, err = s.handleRefresh(context.Background(), callTool(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestToolsReportMissingView(t *testing.T) {
	s := newTestServer(&fakeViews{err: errors.New("no such directory")})

	for name, handler := range map[string]func(context.Context, mcplib.CallToolRequest) (*mcplib.CallToolResult, error){
		"journal":    s.handleJournal,
		"operations": s.handleOperations,
		"status":     s.handleStatus,
	} {
		t.Run(name, func(t *testing.T) {
			res, err := handler(context.Background(), callTool(nil))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestCurrentViewPollsOnce(t *testing.T) {
	views := &fakeViews{}
	s := newTestServer(views)

	_, err := s.currentView(context.Background())
	require.NoError(t, err)
	_, err = s.currentView(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, views.refreshes)
}
