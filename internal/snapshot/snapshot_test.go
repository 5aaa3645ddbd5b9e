package snapshot_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kansoku/internal/eventlog"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/snapshot"
)

var base = time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC)

func instant(d time.Duration) model.Instant {
	return model.InstantOf(base.Add(d))
}

func TestDecodeMetricsNestedLayout(t *testing.T) {
	doc := `{
		"iteration": 3,
		"confidence": 0.856,
		"knowledge": {"entities": 42, "claims": 17},
		"costs": {"total_usd": 1.5, "per_iteration": 0.5},
		"system_health": {"observations": [
			{"timestamp": "2025-10-04T09:00:00Z", "data": {"severity": "warning", "component": "budget", "observation": "spend is high"}},
			"junk"
		]}
	}`
	m, err := snapshot.DecodeMetrics([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.Iteration)
	assert.InDelta(t, 0.856, m.Confidence, 1e-9)
	assert.Equal(t, int64(42), m.Entities)
	assert.Equal(t, int64(17), m.Claims)
	assert.InDelta(t, 1.5, m.TotalCostUSD, 1e-9)
	require.Len(t, m.Observations, 1)
	assert.Equal(t, model.SeverityWarning, m.Observations[0].Severity)
	assert.Equal(t, instant(0), m.Observations[0].At)
}

func TestDecodeMetricsFlatLayoutAndBadFields(t *testing.T) {
	m, err := snapshot.DecodeMetrics([]byte(`{"iteration":"two","entities":5,"total_cost_usd":2.25,"observations":[{"severity":"info"}]}`))
	require.NoError(t, err)
	assert.Zero(t, m.Iteration)
	assert.Equal(t, int64(5), m.Entities)
	assert.InDelta(t, 2.25, m.TotalCostUSD, 1e-9)
	require.Len(t, m.Observations, 1)
	assert.False(t, m.Observations[0].At.Valid())
}

func TestDecodeDocumentsRejectNonObjects(t *testing.T) {
	for _, doc := range []string{"", "[1]", "null", "{"} {
		_, err := snapshot.DecodeMetrics([]byte(doc))
		assert.ErrorIs(t, err, snapshot.ErrMalformed, "metrics %q", doc)
		_, err = snapshot.DecodeSession([]byte(doc))
		assert.ErrorIs(t, err, snapshot.ErrMalformed, "session %q", doc)
	}
	_, err := snapshot.DecodeTasks([]byte(`"tasks"`))
	assert.ErrorIs(t, err, snapshot.ErrMalformed)
}

func TestDecodeSession(t *testing.T) {
	s, err := snapshot.DecodeSession([]byte(`{"session_id":"s-1","research_question":"Why?","status":"completed","created_at":"2025-10-04T09:00:00Z","completed_at":"garbage"}`))
	require.NoError(t, err)
	assert.Equal(t, "s-1", s.ID)
	assert.Equal(t, "Why?", s.Objective)
	assert.Equal(t, model.SessionCompleted, s.Status)
	assert.Equal(t, instant(0), s.CreatedAt)
	assert.False(t, s.CompletedAt.Valid())
}

func TestDecodeTasks(t *testing.T) {
	tasks, err := snapshot.DecodeTasks([]byte(`{"tasks":[{"id":1,"agent":"web-researcher","status":"pending","query":"q"}, 7, {"id":"t2"}]}`))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "1", tasks[0].ID)
	assert.Equal(t, "q", tasks[0].Query)
	assert.False(t, tasks[1].Anchor().Valid())

	tasks, err = snapshot.DecodeTasks([]byte(`[{"id":"a"}]`))
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestBuildStatus(t *testing.T) {
	now := instant(2 * time.Hour)

	st := snapshot.BuildStatus(nil, now)
	assert.Equal(t, "Loading...", st.Objective)
	assert.Nil(t, st.Banner)

	running := &model.Session{Objective: "q", Status: model.SessionInProgress, CreatedAt: instant(0), CompletedAt: model.InvalidInstant}
	st = snapshot.BuildStatus(running, instant(192*time.Second))
	assert.Nil(t, st.Banner)
	assert.Equal(t, "3m 12s", st.Runtime)

	done := &model.Session{Objective: "q", Status: model.SessionCompleted, CreatedAt: instant(0), CompletedAt: instant(65 * time.Minute)}
	st = snapshot.BuildStatus(done, now)
	require.NotNil(t, st.Banner)
	assert.Equal(t, "✅ Research Complete!", st.Banner.Title)
	assert.Equal(t, "Research session finished 2025-10-04 10:05:00 UTC", st.Banner.Message)
	assert.Equal(t, "1h 5m", st.Runtime, "the counter stops at completed_at")

	failed := &model.Session{Status: model.SessionFailed, CreatedAt: instant(0), CompletedAt: model.InvalidInstant}
	st = snapshot.BuildStatus(failed, instant(42*time.Second))
	require.NotNil(t, st.Banner)
	assert.True(t, st.Banner.Error)
	assert.Equal(t, "Research encountered an error and could not complete.", st.Banner.Message)
	assert.Equal(t, "42s", st.Runtime, "without completed_at the counter runs to now")

	failed.Error = "token budget exhausted"
	assert.Equal(t, "token budget exhausted", snapshot.BuildStatus(failed, now).Banner.Message)

	blocked := &model.Session{Status: model.SessionBlockedQualityGate, CreatedAt: model.InvalidInstant}
	st = snapshot.BuildStatus(blocked, now)
	assert.Equal(t, "⛔ Blocked by Quality Gate", st.Banner.Title)
	assert.Empty(t, st.Runtime)
}

func TestBuildStats(t *testing.T) {
	assert.Nil(t, snapshot.BuildStats(nil))
	s := snapshot.BuildStats(&model.Metrics{Iteration: 2, Confidence: 0.666, TotalCostUSD: 1.239, CostPerIterUSD: 0.6})
	assert.Equal(t, "67%", s.Confidence)
	assert.Equal(t, "1.24", s.TotalCost)
	assert.Equal(t, "0.60", s.CostPerIter)
}

func TestBuildTaskBoard(t *testing.T) {
	var tasks []model.Task
	for i := range 7 {
		tasks = append(tasks, model.Task{ID: fmt.Sprintf("c%d", i), Agent: "web-researcher", Status: model.TaskCompleted, Query: "done"})
	}
	tasks = append(tasks,
		model.Task{ID: "p1", Status: "", Description: strings.Repeat("d", 70)},
		model.Task{ID: "f1", Status: model.TaskFailed, Type: "verification"},
		model.Task{ID: "a1", Status: model.TaskInProgress},
		model.Task{ID: "x1", Status: "paused"},
	)

	known := map[string]struct{}{"c0": {}, "p1": {}}
	board, next := snapshot.BuildTaskBoard(tasks, known)

	assert.Equal(t, snapshot.TaskCounts{Active: 1, Pending: 1, Completed: 7, Failed: 1, New: 9}, board.Counts)
	assert.Len(t, next, 11)

	var ids []string
	for _, it := range board.Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"a1", "p1", "c2", "c3", "c4", "c5", "c6", "f1"}, ids)

	byID := map[string]snapshot.TaskItem{}
	for _, it := range board.Items {
		byID[it.ID] = it
	}
	assert.True(t, byID["a1"].New)
	assert.False(t, byID["p1"].New)
	assert.False(t, byID["c6"].New, "completed tasks never carry the badge")
	assert.Equal(t, model.TaskPending, byID["p1"].Status)
	assert.Equal(t, strings.Repeat("d", 60)+"...", byID["p1"].Description)
	assert.Equal(t, "verification", byID["f1"].Description)
	assert.Equal(t, "No description", byID["a1"].Description)
	assert.Equal(t, "unknown", byID["a1"].Agent)

	again, _ := snapshot.BuildTaskBoard(tasks, next)
	assert.Zero(t, again.Counts.New)

	assert.Equal(t, []string{"🔄 1 active", "⏳ 1 pending", "✅ 7 done", "❌ 1 failed", "🆕 9 new"}, board.Counts.Summary())
}

func TestTopObservations(t *testing.T) {
	var obs []model.Observation
	for i := range 6 {
		obs = append(obs, model.Observation{Severity: model.SeverityInfo, Component: fmt.Sprintf("i%d", i)})
	}
	obs = append(obs,
		model.Observation{Severity: model.SeverityWarning, Component: "w"},
		model.Observation{Severity: "debug", Component: "d"},
	)
	for i := range 4 {
		obs = append(obs, model.Observation{Severity: model.SeverityCritical, Component: fmt.Sprintf("c%d", i)})
	}

	top := snapshot.TopObservations(obs, 10)
	require.Len(t, top, 10)
	assert.Equal(t, "c0", top[0].Component)
	assert.Equal(t, "c3", top[3].Component)
	assert.Equal(t, "w", top[4].Component)
	assert.Equal(t, "i4", top[9].Component)
}

func TestRecentToolCalls(t *testing.T) {
	var ops []model.PairedOperation
	for i := range 25 {
		op := model.PairedOperation{
			Key:    fmt.Sprintf("tool%d", i),
			Start:  model.NormalizedEvent{Event: model.Event{Data: model.Data{"input_summary": strings.Repeat("s", 40)}}, Instant: instant(time.Duration(i) * time.Second)},
			Status: model.StatusPending,
		}
		if i == 24 {
			d := int64(1234)
			op.DurationMs = &d
			op.Status = model.StatusSuccess
		}
		ops = append(ops, op)
	}

	calls := snapshot.RecentToolCalls(ops, 20)
	require.Len(t, calls, 20)
	assert.Equal(t, "tool24", calls[0].Tool)
	assert.Equal(t, "1.2s", calls[0].Duration)
	assert.Equal(t, "✓", calls[0].Icon)
	assert.Equal(t, "unknown", calls[0].Agent)
	assert.Equal(t, strings.Repeat("s", 35)+"...", calls[0].Summary)
	assert.Equal(t, "tool5", calls[19].Tool)
	assert.Equal(t, "⏳", calls[19].Icon)
	assert.Empty(t, calls[19].Duration)
}

func TestRecentActivity(t *testing.T) {
	a := snapshot.NewAssembler(nil, nil)

	assert.Equal(t, "No activity yet", a.RecentActivity(nil, 15).Empty)

	onlyTools := []model.Event{{Type: model.EventToolUseStart, Timestamp: "2025-10-04T09:00:00Z"}}
	assert.Equal(t, "Starting research...", a.RecentActivity(onlyTools, 15).Empty)

	var events []model.Event
	for i := range 20 {
		typ := model.EventEntityAdded
		if i%2 == 1 {
			typ = model.EventToolUseComplete
		}
		events = append(events, model.Event{
			Type:      typ,
			Timestamp: base.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
			Data:      model.Data{"name": fmt.Sprintf("e%d", i)},
		})
	}
	act := a.RecentActivity(events, 15)
	// The last 15 events are 5..19; the tool events among them are dropped.
	require.Len(t, act.Items, 7)
	assert.Equal(t, "📌 Added: e18", act.Items[0].Text)
	assert.Equal(t, "📌 Added: e6", act.Items[6].Text)
	assert.Equal(t, "2025-10-04T09:00:18Z_entity_added", act.Items[0].Key)
	assert.Empty(t, act.Empty)
}

func TestAssemble(t *testing.T) {
	log := eventlog.NewDecoder(nil).DecodeBytes("events.jsonl", []byte(strings.Join([]string{
		`{"type":"session_start","timestamp":"2025-10-04T09:00:00Z","data":{"objective":"q"}}`,
		`{"type":"agent_invocation","timestamp":"2025-10-04T09:00:05Z","data":{"agent":"web-researcher"}}`,
		`{"type":"tool_use_start","timestamp":"2025-10-04T09:00:06Z","data":{"agent":"web-researcher","tool":"WebSearch"}}`,
		`garbage`,
		`{"type":"tool_use_complete","timestamp":"2025-10-04T09:00:07Z","data":{"tool":"WebSearch","status":"success"}}`,
	}, "\n")))
	session := &model.Session{Objective: "q", Status: model.SessionInProgress, CreatedAt: instant(0), CompletedAt: model.InvalidInstant}
	tasks := []model.Task{{ID: "t1", Agent: "web-researcher", Status: model.TaskInProgress, StartedAt: instant(6 * time.Second)}}

	a := snapshot.NewAssembler(nil, nil)
	in := snapshot.Inputs{Log: log, Session: session, Tasks: tasks, HasTasks: true}
	v, known := a.Assemble(in, nil, instant(time.Minute))

	assert.True(t, v.Loading)
	assert.Nil(t, v.Stats)
	require.Len(t, v.Warnings, 1)
	assert.Equal(t, 1, v.Warnings[0].Corrupted)
	assert.Equal(t, 5, v.Warnings[0].Total)
	assert.Equal(t, 4, v.EventCount)

	require.Len(t, v.Journal, 2)
	assert.Equal(t, model.KindAgentInProgress, v.Journal[0].Kind)
	assert.Len(t, v.Journal[0].RelatedTasks, 1)
	assert.Len(t, v.Journal[0].RelatedOperations, 1)

	require.Len(t, v.ToolCalls, 1)
	assert.Equal(t, "1000ms", v.ToolCalls[0].Duration)
	assert.Len(t, v.Activity.Items, 2)

	require.NotNil(t, v.Tasks)
	assert.Equal(t, 1, v.Tasks.Counts.New)
	assert.Contains(t, known, "t1")
	assert.Equal(t, "1m 0s", v.Status.Runtime)

	v2, _ := a.Assemble(in, known, instant(time.Minute))
	assert.Zero(t, v2.Tasks.Counts.New)
	assert.Equal(t, v.Journal, v2.Journal)

	noTasks, kept := a.Assemble(snapshot.Inputs{Log: log}, known, instant(time.Minute))
	assert.Nil(t, noTasks.Tasks)
	assert.Equal(t, known, kept)
}

func TestParseKinds(t *testing.T) {
	assert.Nil(t, snapshot.ParseKinds(""))
	assert.Equal(t, []model.EntryKind{"agent_work", "milestone"}, snapshot.ParseKinds(" agent_work,, milestone ,"))
}

func TestJournalQuery(t *testing.T) {
	entries := []model.JournalEntry{
		{Title: "a", Kind: "agent_work", Agent: "Web-Researcher", Start: instant(0), End: instant(time.Second)},
		{Title: "b", Kind: "agent_work", Agent: "fact-checker", Start: instant(2 * time.Second), End: model.InvalidInstant},
		{Title: "c", Kind: "milestone", Start: instant(3 * time.Second), End: instant(3 * time.Second)},
	}
	titles := func(es []model.JournalEntry) []string {
		out := []string{}
		for _, e := range es {
			out = append(out, e.Title)
		}
		return out
	}
	open, closed := true, false

	tests := []struct {
		name string
		q    snapshot.JournalQuery
		want []string
	}{
		{"zero query keeps all", snapshot.JournalQuery{}, []string{"a", "b", "c"}},
		{"agent is case insensitive", snapshot.JournalQuery{Agent: "web-researcher"}, []string{"a"}},
		{"kinds", snapshot.JournalQuery{Kinds: []model.EntryKind{"milestone"}}, []string{"c"}},
		{"in progress", snapshot.JournalQuery{InProgress: &open}, []string{"b"}},
		{"closed", snapshot.JournalQuery{InProgress: &closed}, []string{"a", "c"}},
		{"no match", snapshot.JournalQuery{Agent: "planner", Kinds: []model.EntryKind{"agent_work"}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titles(tt.q.Apply(entries)))
		})
	}
}

func TestOperationQuery(t *testing.T) {
	op := func(seq int, tool, agent string, st model.OperationStatus) model.PairedOperation {
		return model.PairedOperation{
			Kind: "tool",
			Key:  tool,
			Start: model.NormalizedEvent{
				Event: model.Event{Type: "tool_use_start", Data: model.Data{"tool": tool, "agent": agent}},
				Seq:   seq,
			},
			Status: st,
		}
	}
	ops := []model.PairedOperation{
		op(1, "WebSearch", "web-researcher", model.StatusSuccess),
		op(2, "WebFetch", "web-researcher", model.StatusFailed),
		op(3, "WebSearch", "fact-checker", model.StatusPending),
	}
	seqs := func(in []model.PairedOperation) []int {
		out := []int{}
		for _, o := range in {
			out = append(out, o.Start.Seq)
		}
		return out
	}

	assert.Equal(t, []int{3, 2, 1}, seqs(snapshot.OperationQuery{}.Apply(ops)), "most recent first")
	assert.Equal(t, []int{3, 1}, seqs(snapshot.OperationQuery{Tool: "WebSearch"}.Apply(ops)))
	assert.Equal(t, []int{2, 1}, seqs(snapshot.OperationQuery{Agent: "Web-Researcher"}.Apply(ops)))
	assert.Equal(t, []int{2}, seqs(snapshot.OperationQuery{Status: model.StatusFailed}.Apply(ops)))
	assert.Empty(t, snapshot.OperationQuery{Tool: "Bash"}.Apply(ops))
}

func TestTaskCountsSummaryOmitsZeroes(t *testing.T) {
	assert.Empty(t, snapshot.TaskCounts{}.Summary())
	assert.Equal(t, []string{"❌ 2 failed"}, snapshot.TaskCounts{Failed: 2}.Summary())
}
