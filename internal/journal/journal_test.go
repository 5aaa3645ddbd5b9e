package journal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kansoku/internal/eventlog"
	"github.com/ashita-ai/kansoku/internal/journal"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/pairing"
)

var base = time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) string {
	return base.Add(d).Format(time.RFC3339Nano)
}

func instant(d time.Duration) model.Instant {
	return model.InstantOf(base.Add(d))
}

func ev(typ model.EventType, ts string, data model.Data) model.Event {
	return model.Event{Type: typ, Timestamp: ts, Data: data}
}

func agentData(agent string) model.Data {
	return model.Data{"agent": agent}
}

func build(t *testing.T, b *journal.Builder, now time.Duration, events ...model.Event) journal.Result {
	t.Helper()
	return b.Build(journal.Input{Events: eventlog.Normalize(events), Now: instant(now)})
}

func kinds(entries []model.JournalEntry) []model.EntryKind {
	out := make([]model.EntryKind, len(entries))
	for i, e := range entries {
		out[i] = e.Kind
	}
	return out
}

func TestBuildIsIdempotent(t *testing.T) {
	events := eventlog.Normalize([]model.Event{
		ev(model.EventSessionStart, at(0), model.Data{"objective": "q"}),
		ev(model.EventAgentInvocation, at(time.Second), agentData("web-researcher")),
		ev(model.EventToolUseStart, at(2*time.Second), model.Data{"tool": "WebSearch", "agent": "web-researcher"}),
		ev(model.EventToolUseComplete, at(3*time.Second), model.Data{"tool": "WebSearch", "status": "success"}),
		ev(model.EventAgentResult, at(10*time.Second), agentData("web-researcher")),
		ev(model.EventAgentInvocation, at(11*time.Second), agentData("fact-checker")),
	})
	in := journal.Input{Events: events, Now: instant(time.Minute)}
	b := journal.New()

	first := b.Build(in)
	second := b.Build(in)
	assert.Equal(t, first, second)
	require.Len(t, first.Entries, 3)
}

func TestBuildOrdersByStartDescending(t *testing.T) {
	res := build(t, journal.New(), time.Minute,
		ev(model.EventAgentInvocation, at(50*time.Millisecond), agentData("research-planner")),
		ev(model.EventAgentInvocation, at(100*time.Millisecond), agentData("web-researcher")),
	)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, instant(100*time.Millisecond), res.Entries[0].Start)
	assert.Equal(t, instant(50*time.Millisecond), res.Entries[1].Start)
}

func TestBuildExcludesInvalidTimestamps(t *testing.T) {
	res := build(t, journal.New(), time.Minute,
		ev(model.EventAgentInvocation, "not-a-date", agentData("web-researcher")),
		ev(model.EventAgentInvocation, at(time.Second), agentData("web-researcher")),
		ev(model.EventAgentResult, at(2*time.Second), agentData("web-researcher")),
		ev(model.EventAgentResult, at(3*time.Second), agentData("web-researcher")),
		ev(model.EventIterationStart, "not-a-date", model.Data{"iteration": 1.0}),
		ev(model.EventSessionStart, at(0), model.Data{"objective": "q"}),
	)

	for _, e := range res.Entries {
		assert.True(t, e.Start.Valid(), "entry %s has an invalid start", e.Kind)
	}
	assert.Equal(t, 2, res.Dropped)
	assert.Equal(t, []model.EntryKind{model.KindAgentWork, model.KindSessionStart}, kinds(res.Entries))

	work := res.Entries[0]
	assert.Equal(t, instant(time.Second), work.Start)
	assert.Equal(t, instant(3*time.Second), work.End, "the bad invocation keeps its ordinal slot")
	assert.Equal(t, int64(2000), work.Metadata["duration_ms"])
}

func TestBuildRejectsEndBeforeStart(t *testing.T) {
	res := build(t, journal.New(), time.Minute,
		ev(model.EventAgentInvocation, at(10*time.Second), agentData("fact-checker")),
		ev(model.EventAgentResult, at(5*time.Second), agentData("fact-checker")),
	)
	require.Len(t, res.Entries, 1)
	e := res.Entries[0]
	assert.Equal(t, model.KindAgentWork, e.Kind)
	assert.False(t, e.End.Valid())
	assert.True(t, e.InProgress())
	assert.NotContains(t, e.Metadata, "duration_ms")
	assert.Equal(t, true, e.Metadata["end_rejected"])
	assert.Equal(t, "Fact Checker returned a result with an unusable timestamp; end unknown.", e.Narrative)
	assert.NotContains(t, e.Narrative, "finished")
}

func TestBuildInProgressAgent(t *testing.T) {
	res := build(t, journal.New(), 2*time.Minute,
		ev(model.EventAgentInvocation, at(30*time.Second), agentData("synthesis-agent")),
	)
	require.Len(t, res.Entries, 1)
	e := res.Entries[0]
	assert.Equal(t, model.KindAgentInProgress, e.Kind)
	assert.True(t, e.InProgress())
	assert.Equal(t, int64(90_000), e.Metadata["elapsed_ms"])
	assert.Equal(t, "Synthesis Agent has been working for 1m 30s.", e.Narrative)
	assert.Equal(t, "🧩", e.Icon)
}

func TestBuildClampsElapsedForFutureStarts(t *testing.T) {
	res := build(t, journal.New(), 0,
		ev(model.EventAgentInvocation, at(time.Hour), agentData("code-analyzer")),
	)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, int64(0), res.Entries[0].Metadata["elapsed_ms"])
}

func TestBuildPairsAgentsOrdinally(t *testing.T) {
	res := build(t, journal.New(), time.Hour,
		ev(model.EventAgentInvocation, at(0), agentData("web-researcher")),
		ev(model.EventAgentInvocation, at(time.Second), agentData("web-researcher")),
		// Results arrive in the opposite timestamp order.
		ev(model.EventAgentResult, at(20*time.Second), agentData("web-researcher")),
		ev(model.EventAgentResult, at(10*time.Second), agentData("web-researcher")),
	)
	require.Len(t, res.Entries, 2)
	byStart := map[model.Instant]model.JournalEntry{}
	for _, e := range res.Entries {
		byStart[e.Start] = e
	}
	assert.Equal(t, instant(20*time.Second), byStart[instant(0)].End)
	assert.Equal(t, instant(10*time.Second), byStart[instant(time.Second)].End)
}

func TestBuildRelatedOperationsAndTasks(t *testing.T) {
	events := eventlog.Normalize([]model.Event{
		ev(model.EventAgentInvocation, at(0), agentData("web-researcher")),
		ev(model.EventToolUseStart, at(5*time.Second), model.Data{"tool": "WebFetch", "agent": "web-researcher"}),
		ev(model.EventToolUseComplete, at(7*time.Second), model.Data{"tool": "WebFetch", "status": "success"}),
		ev(model.EventToolUseStart, at(6*time.Second), model.Data{"tool": "Read", "agent": "fact-checker"}),
		ev(model.EventAgentResult, at(20*time.Second), model.Data{"agent": "web-researcher", "sources": 4.0, "claims": 2.0, "cost_usd": 0.25}),
		ev(model.EventToolUseStart, at(30*time.Second), model.Data{"tool": "WebSearch", "agent": "web-researcher"}),
	})
	tasks := []model.Task{
		{ID: "t1", Agent: "web-researcher", StartedAt: instant(10 * time.Second)},
		{ID: "t2", Agent: "web-researcher", StartedAt: instant(40 * time.Second)},
		{ID: "t3", Agent: "fact-checker", StartedAt: instant(10 * time.Second)},
		{ID: "t4", Agent: "web-researcher", StartedAt: model.InvalidInstant, CreatedAt: instant(15 * time.Second)},
	}

	res := journal.New().Build(journal.Input{Events: events, Tasks: tasks, Now: instant(time.Minute)})
	require.Len(t, res.Entries, 1)
	e := res.Entries[0]

	require.Len(t, e.RelatedOperations, 1)
	assert.Equal(t, "WebFetch", e.RelatedOperations[0].Key)
	assert.Equal(t, model.StatusSuccess, e.RelatedOperations[0].Status)

	require.Len(t, e.RelatedTasks, 2)
	assert.Equal(t, "t1", e.RelatedTasks[0].ID)
	assert.Equal(t, "t4", e.RelatedTasks[1].ID)

	assert.Equal(t, int64(1), e.Metadata["tool_calls"])
	assert.Equal(t, "Web researcher read 4 sources and recorded 2 claims.", e.Narrative)

	require.Len(t, res.Operations, 3)
	assert.False(t, res.Operations[2].Matched())
}

func TestBuildToolCeilingOption(t *testing.T) {
	events := []model.Event{
		ev(model.EventToolUseStart, at(0), model.Data{"tool": "Bash"}),
		ev(model.EventToolUseComplete, at(70*time.Second), model.Data{"tool": "Bash", "status": "success"}),
	}
	res := build(t, journal.New(), time.Hour, events...)
	require.Len(t, res.Operations, 1)
	assert.False(t, res.Operations[0].Matched())

	res = build(t, journal.New(journal.WithCeiling(2*time.Minute)), time.Hour, events...)
	assert.True(t, res.Operations[0].Matched())
}

func TestBuildSequences(t *testing.T) {
	res := build(t, journal.New(), 30*time.Minute,
		ev(model.EventIterationStart, at(0), model.Data{"iteration": 1.0}),
		ev(model.EventQualityGateStart, at(9*time.Minute), model.Data{"attempt": 1.0}),
		ev(model.EventQualityGateComplete, at(9*time.Minute+30*time.Second), model.Data{"attempt": 1.0, "status": "passed", "issues": 2.0}),
		ev(model.EventIterationComplete, at(10*time.Minute), model.Data{"iteration": 1.0, "confidence": 0.8}),
		ev(model.EventIterationStart, at(11*time.Minute), model.Data{"iteration": 2.0}),
		ev(model.EventQualityGateStart, at(20*time.Minute), model.Data{"attempt": 2.0}),
	)

	assert.Equal(t, []model.EntryKind{
		model.KindQualityGateRun,
		model.KindIterationRunning,
		model.KindQualityGate,
		model.KindIteration,
	}, kinds(res.Entries))

	iter := res.Entries[3]
	assert.Equal(t, int64(600_000), iter.Metadata["duration_ms"])
	assert.Equal(t, "Completed iteration 1 in 10m 0s at 80% confidence.", iter.Narrative)

	gate := res.Entries[2]
	assert.Equal(t, "success", gate.Metadata["status"])
	assert.Equal(t, "Quality gate passed with 2 issues.", gate.Narrative)

	running := res.Entries[1]
	assert.Equal(t, int64(19*60_000), running.Metadata["elapsed_ms"])
	assert.True(t, running.InProgress())
}

func TestBuildCustomSequence(t *testing.T) {
	report := journal.Sequence{
		Name: "report",
		Rule: pairing.Rule{
			Kind:      "report",
			StartType: "report_start",
			EndType:   "report_complete",
			Key:       pairing.DataKey("section"),
			Ceiling:   pairing.NoCeiling,
		},
		Completed: func(op model.PairedOperation) journal.Draft {
			return journal.Draft{Kind: "report", Data: model.Data{"section": op.Key}}
		},
		Running: func(op model.PairedOperation) journal.Draft {
			return journal.Draft{Kind: "report_running"}
		},
	}
	res := build(t, journal.New(journal.WithSequences(report)), time.Hour,
		ev("report_start", at(0), model.Data{"section": "intro"}),
		ev("report_complete", at(time.Minute), model.Data{"section": "intro"}),
	)
	require.Len(t, res.Entries, 1)
	e := res.Entries[0]
	assert.Equal(t, model.EntryKind("report"), e.Kind)
	assert.Equal(t, "•", e.Icon)
	assert.Equal(t, "• report", e.Narrative)
	assert.Equal(t, int64(60_000), e.Metadata["duration_ms"])
}

func TestBuildCountsDroppedSequenceStartsOnce(t *testing.T) {
	// Reports every start as an open operation, including unparseable ones.
	reportAll := func(_ *pairing.Matcher, rule pairing.Rule, events []model.NormalizedEvent) []model.PairedOperation {
		var ops []model.PairedOperation
		for _, e := range events {
			if e.Type == rule.StartType {
				ops = append(ops, model.PairedOperation{Kind: rule.Kind, Start: e, Status: model.StatusPending})
			}
		}
		return ops
	}
	seq := journal.Sequence{
		Name:  "report",
		Rule:  pairing.Rule{Kind: "report", StartType: "report_start", EndType: "report_complete", Ceiling: pairing.NoCeiling},
		Match: reportAll,
		Completed: func(model.PairedOperation) journal.Draft {
			return journal.Draft{Kind: "report"}
		},
		Running: func(model.PairedOperation) journal.Draft {
			return journal.Draft{Kind: "report_running"}
		},
	}
	events := []model.Event{
		ev("report_start", "not-a-date", nil),
		ev("report_start", at(time.Second), nil),
	}

	custom := build(t, journal.New(journal.WithSequences(seq)), time.Minute, events...)
	assert.Equal(t, 1, custom.Dropped)
	assert.Equal(t, []model.EntryKind{"report_running"}, kinds(custom.Entries))

	seq.Match = nil
	greedy := build(t, journal.New(journal.WithSequences(seq)), time.Minute, events...)
	assert.Equal(t, 1, greedy.Dropped)
	assert.Equal(t, []model.EntryKind{"report_running"}, kinds(greedy.Entries))
}

func TestBuildMilestoneFallbacks(t *testing.T) {
	session := &model.Session{
		Objective:   "Survey solid-state batteries",
		Status:      model.SessionCompleted,
		CreatedAt:   instant(0),
		CompletedAt: instant(time.Hour),
	}
	res := journal.New().Build(journal.Input{Session: session, Now: instant(2 * time.Hour)})

	assert.Equal(t, []model.EntryKind{model.KindSessionComplete, model.KindSessionStart}, kinds(res.Entries))
	assert.Equal(t, "Research complete", res.Entries[0].Title)
	assert.Equal(t, "Started researching: Survey solid-state batteries", res.Entries[1].Narrative)
	assert.False(t, res.Entries[1].InProgress())

	// A running session has no completion milestone.
	session.Status = model.SessionInProgress
	res = journal.New().Build(journal.Input{Session: session, Now: instant(2 * time.Hour)})
	assert.Equal(t, []model.EntryKind{model.KindSessionStart}, kinds(res.Entries))
}

func TestBuildMilestonesFromLogWinOverDescriptor(t *testing.T) {
	session := &model.Session{Objective: "from descriptor", CreatedAt: instant(-time.Hour)}
	events := eventlog.Normalize([]model.Event{
		ev(model.EventSessionStart, at(0), nil),
		ev(model.EventSessionComplete, at(time.Hour), model.Data{"status": "failed", "error": "out of budget"}),
	})
	res := journal.New().Build(journal.Input{Events: events, Session: session, Now: instant(2 * time.Hour)})

	require.Len(t, res.Entries, 2)
	assert.Equal(t, "Research failed: out of budget", res.Entries[0].Narrative)
	assert.Equal(t, instant(0), res.Entries[1].Start)
	assert.Equal(t, "Started researching: from descriptor", res.Entries[1].Narrative)
}

func TestBuildTiesKeepFamilyOrder(t *testing.T) {
	res := build(t, journal.New(), time.Minute,
		ev(model.EventSessionStart, at(0), nil),
		ev(model.EventIterationStart, at(0), model.Data{"iteration": 1.0}),
		ev(model.EventAgentInvocation, at(0), agentData("research-planner")),
	)
	assert.Equal(t, []model.EntryKind{
		model.KindAgentInProgress,
		model.KindIterationRunning,
		model.KindSessionStart,
	}, kinds(res.Entries))
}

func TestEntryIDsSurviveLogGrowth(t *testing.T) {
	events := []model.Event{
		ev(model.EventAgentInvocation, at(0), agentData("web-researcher")),
	}
	b := journal.New()
	before := build(t, b, time.Minute, events...)

	events = append(events, ev(model.EventAgentResult, at(30*time.Second), agentData("web-researcher")))
	after := build(t, b, time.Minute, events...)

	require.Len(t, before.Entries, 1)
	require.Len(t, after.Entries, 1)
	assert.NotEqual(t, before.Entries[0].Kind, after.Entries[0].Kind)
	assert.Equal(t, model.EntryID(model.KindAgentWork, "web-researcher", 0), after.Entries[0].ID)
	assert.Equal(t, model.EntryID(model.KindAgentInProgress, "web-researcher", 0), before.Entries[0].ID)
}

func TestResolveAgents(t *testing.T) {
	events := eventlog.Normalize([]model.Event{
		ev(model.EventAgentInvocation, at(0), agentData("zeta-bot")),
		ev(model.EventAgentResult, at(0), agentData("fact-checker")),
		ev(model.EventToolUseStart, at(0), agentData("ignored")),
		ev(model.EventAgentInvocation, at(0), agentData("alpha-bot")),
		ev(model.EventAgentInvocation, at(0), agentData("mission-orchestrator")),
	})
	got := journal.ResolveAgents(events, journal.DefaultAgentOrder())
	assert.Equal(t, []string{"mission-orchestrator", "fact-checker", "zeta-bot", "alpha-bot"}, got)

	got = journal.ResolveAgents(events, []string{"alpha-bot"})
	assert.Equal(t, []string{"alpha-bot", "zeta-bot", "fact-checker", "mission-orchestrator"}, got)
}

func TestBuildToleratesMalformedPayloads(t *testing.T) {
	res := build(t, journal.New(), time.Minute,
		ev(model.EventAgentInvocation, at(0), nil),
		ev(model.EventAgentResult, at(time.Second), model.Data{"sources": "many", "claims": []any{1}}),
		ev(model.EventQualityGateStart, at(2*time.Second), model.Data{"attempt": map[string]any{"x": 1}}),
	)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "Unknown Agent", res.Entries[1].Title)
	assert.Equal(t, model.KindQualityGateRun, res.Entries[0].Kind)
}
