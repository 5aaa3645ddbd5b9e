package snapshot

import (
	"github.com/ashita-ai/kansoku/internal/eventlog"
	"github.com/ashita-ai/kansoku/internal/format"
	"github.com/ashita-ai/kansoku/internal/model"
)

const (
	maxObservations = 10
	maxToolCalls    = 20
	maxActivity     = 15
	toolSummaryLen  = 35
)

var severityRank = []model.Severity{model.SeverityCritical, model.SeverityWarning, model.SeverityInfo}

// TopObservations orders observations critical, warning, info and keeps the
// first limit. Observations with any other severity are not shown.
func TopObservations(obs []model.Observation, limit int) []model.Observation {
	out := make([]model.Observation, 0, min(len(obs), limit))
	for _, sev := range severityRank {
		for _, o := range obs {
			if len(out) == limit {
				return out
			}
			if o.Severity == sev {
				out = append(out, o)
			}
		}
	}
	return out
}

// ToolCall is one row of the tool call sidebar.
type ToolCall struct {
	Tool       string                `json:"tool"`
	Agent      string                `json:"agent"`
	Summary    string                `json:"summary"`
	Status     model.OperationStatus `json:"status"`
	Icon       string                `json:"icon"`
	Start      model.Instant         `json:"start"`
	DurationMs *int64                `json:"duration_ms"`
	Duration   string                `json:"duration"`
}

var statusIcons = map[model.OperationStatus]string{
	model.StatusSuccess: "✓",
	model.StatusFailed:  "✗",
	model.StatusPending: "⏳",
}

// RecentToolCalls returns the last limit tool pairings, most recent first.
func RecentToolCalls(ops []model.PairedOperation, limit int) []ToolCall {
	if len(ops) > limit {
		ops = ops[len(ops)-limit:]
	}
	out := make([]ToolCall, 0, len(ops))
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		tc := ToolCall{
			Tool:       op.Key,
			Agent:      orDefault(op.Start.Agent(), "unknown"),
			Summary:    format.Truncate(op.Start.Data.Str("input_summary"), toolSummaryLen),
			Status:     op.Status,
			Icon:       statusIcons[op.Status],
			Start:      op.Start.Instant,
			DurationMs: op.DurationMs,
		}
		if op.DurationMs != nil {
			tc.Duration = format.ShortDuration(*op.DurationMs)
		}
		out = append(out, tc)
	}
	return out
}

// Activity is the recent event feed.
type Activity struct {
	Items []ActivityItem `json:"items"`
	// Empty is the placeholder shown when there are no items.
	Empty string `json:"empty,omitempty"`
}

// ActivityItem is one rendered event. Key identifies the event across
// polls (timestamp and type), for the expand/collapse state.
type ActivityItem struct {
	Key   string        `json:"key"`
	At    model.Instant `json:"at"`
	Text  string        `json:"text"`
	Event model.Event   `json:"event"`
}

// RecentActivity takes the last limit events of the log, drops tool use
// events (they belong to the sidebar) and renders the rest newest first.
func (a *Assembler) RecentActivity(events []model.Event, limit int) Activity {
	tail := events
	if len(tail) > limit {
		tail = tail[len(tail)-limit:]
	}

	act := Activity{Items: []ActivityItem{}}
	for i := len(tail) - 1; i >= 0; i-- {
		ev := tail[i]
		if ev.Type.IsToolEvent() {
			continue
		}
		act.Items = append(act.Items, ActivityItem{
			Key:   ev.Timestamp + "_" + string(ev.Type),
			At:    eventlog.ParseInstant(ev.Timestamp),
			Text:  a.formatter.Event(ev),
			Event: ev,
		})
	}
	if len(act.Items) == 0 {
		act.Empty = "No activity yet"
		if len(events) > 0 {
			act.Empty = "Starting research..."
		}
	}
	return act
}
