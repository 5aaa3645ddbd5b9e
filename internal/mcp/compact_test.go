package mcp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ashita-ai/kansoku/internal/model"
)

func TestCompactEntry(t *testing.T) {
	start := model.InstantOf(time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC))
	e := model.JournalEntry{
		ID:        model.EntryID(model.KindAgentWork, "web-researcher", 1),
		Kind:      model.KindAgentWork,
		Title:     "Web Researcher",
		Start:     start,
		End:       start + 90_000,
		Narrative: strings.Repeat("tides ", 100),
		Agent:     "web-researcher",
		Metadata:  model.Data{"tool_calls": int64(2)},
		RelatedOperations: []model.PairedOperation{
			{Key: "WebSearch", Status: model.StatusSuccess},
			{Key: "WebFetch", Status: model.StatusFailed},
		},
	}

	m := compactEntry(e)
	assert.Equal(t, e.ID, m["id"])
	assert.Equal(t, false, m["in_progress"])
	assert.Equal(t, e.End, m["end"])
	assert.NotEmpty(t, m["duration"])
	assert.Equal(t, 2, m["tool_calls"])
	assert.Equal(t, 1, m["failed_tool_calls"])
	assert.LessOrEqual(t, len([]rune(m["narrative"].(string))), maxCompactNarrative+3)
	assert.NotContains(t, m, "metadata")
	assert.NotContains(t, m, "related_tasks")
	assert.NotContains(t, m, "tasks")
}

func TestCompactEntryInProgress(t *testing.T) {
	e := model.JournalEntry{
		Kind:     model.KindAgentInProgress,
		Start:    model.InstantOf(time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC)),
		End:      model.InvalidInstant,
		Metadata: model.Data{"elapsed_ms": int64(90_000)},
	}
	m := compactEntry(e)
	assert.Equal(t, true, m["in_progress"])
	assert.NotContains(t, m, "end")
	assert.NotContains(t, m, "agent")
	assert.NotEmpty(t, m["elapsed"])
	assert.NotContains(t, m, "tool_calls")
}

func TestCompactOperation(t *testing.T) {
	d := int64(1500)
	start := model.NormalizedEvent{
		Event:   model.Event{Type: model.EventToolUseStart, Data: model.Data{"tool": "WebFetch", "agent": "web-researcher"}},
		Instant: model.InstantOf(time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC)),
	}
	end := model.NormalizedEvent{
		Event: model.Event{Type: model.EventToolUseComplete, Data: model.Data{"status": "failed", "error": "HTTP 403"}},
	}
	m := compactOperation(model.PairedOperation{Key: "WebFetch", Start: start, End: &end, DurationMs: &d, Status: model.StatusFailed})
	assert.Equal(t, "WebFetch", m["tool"])
	assert.Equal(t, "web-researcher", m["agent"])
	assert.Equal(t, int64(1500), m["duration_ms"])
	assert.Equal(t, "HTTP 403", m["error"])

	pending := compactOperation(model.PairedOperation{Key: "WebSearch", Start: start, Status: model.StatusPending})
	assert.NotContains(t, pending, "duration_ms")
	assert.NotContains(t, pending, "error")
}
