package mcp

import (
	"github.com/ashita-ai/kansoku/internal/format"
	"github.com/ashita-ai/kansoku/internal/model"
)

const maxCompactNarrative = 200

// compactEntry returns a minimal representation of a journal entry for MCP
// responses. Related tasks and operations collapse to counts, and metadata
// is dropped except for the elapsed time of open entries.
func compactEntry(e model.JournalEntry) map[string]any {
	m := map[string]any{
		"id":          e.ID,
		"kind":        e.Kind,
		"title":       e.Title,
		"start":       e.Start,
		"in_progress": e.InProgress(),
	}
	if e.Agent != "" {
		m["agent"] = e.Agent
	}
	if e.Narrative != "" {
		m["narrative"] = format.Truncate(e.Narrative, maxCompactNarrative)
	}
	if e.InProgress() {
		if e.Metadata.Has("elapsed_ms") {
			m["elapsed"] = format.Elapsed(e.Metadata.Int("elapsed_ms"))
		}
	} else {
		m["end"] = e.End
		if e.Start.Valid() {
			m["duration"] = format.ShortDuration(e.End.Sub(e.Start))
		}
	}
	if n := len(e.RelatedOperations); n > 0 {
		m["tool_calls"] = n
		if failed := countFailed(e.RelatedOperations); failed > 0 {
			m["failed_tool_calls"] = failed
		}
	}
	if n := len(e.RelatedTasks); n > 0 {
		m["tasks"] = n
	}
	return m
}

// compactOperation returns a minimal representation of a tool call.
func compactOperation(op model.PairedOperation) map[string]any {
	m := map[string]any{
		"tool":   op.Key,
		"status": op.Status,
		"start":  op.Start.Instant,
	}
	if agent := op.Start.Agent(); agent != "" {
		m["agent"] = agent
	}
	if op.DurationMs != nil {
		m["duration_ms"] = *op.DurationMs
	}
	if op.End != nil {
		if msg := op.End.Data.Str("error"); msg != "" {
			m["error"] = format.Truncate(msg, maxCompactNarrative)
		}
	}
	return m
}

func countFailed(ops []model.PairedOperation) int {
	n := 0
	for _, op := range ops {
		if op.Status == model.StatusFailed {
			n++
		}
	}
	return n
}
