package kansoku

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Instants arrive as RFC 3339 strings, or null when the server could not
// determine them. A nil *time.Time means "unknown" (or "still running" for
// an entry end).

// Event is one record of the session's event log.
type Event struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Seq       int            `json:"seq"`
	Instant   *time.Time     `json:"instant"`
}

// Operation is a start event paired with the end event that closed it.
type Operation struct {
	Kind       string `json:"kind"`
	Key        string `json:"key"`
	Start      Event  `json:"start"`
	End        *Event `json:"end"`
	DurationMs *int64 `json:"duration_ms"`
	Status     string `json:"status"`
}

// Operation statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

// Task is a task as the session snapshot recorded it.
type Task struct {
	ID          string `json:"id"`
	Agent       string `json:"agent"`
	Status      string `json:"status"`
	Query       string `json:"query,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
}

// JournalEntry is one item on the session timeline.
type JournalEntry struct {
	ID                uuid.UUID      `json:"id"`
	Kind              string         `json:"kind"`
	Icon              string         `json:"icon"`
	Title             string         `json:"title"`
	Start             *time.Time     `json:"start"`
	End               *time.Time     `json:"end"`
	Narrative         string         `json:"narrative"`
	Agent             string         `json:"agent,omitempty"`
	Metadata          map[string]any `json:"metadata"`
	RelatedTasks      []Task         `json:"related_tasks"`
	RelatedOperations []Operation    `json:"related_operations"`
}

// InProgress reports whether the entry has not ended yet.
func (e JournalEntry) InProgress() bool { return e.End == nil }

// Banner is the status banner shown once a session completes or fails.
type Banner struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Error   bool   `json:"error"`
}

// SessionStatus summarizes the session itself.
type SessionStatus struct {
	SessionID string  `json:"session_id,omitempty"`
	Objective string  `json:"objective"`
	State     string  `json:"state"`
	Banner    *Banner `json:"banner"`
	RuntimeMs int64   `json:"runtime_ms"`
	Runtime   string  `json:"runtime"`
}

// Stats are the formatted session metrics.
type Stats struct {
	Iteration   int64  `json:"iteration"`
	Confidence  string `json:"confidence"`
	Entities    int64  `json:"entities"`
	Claims      int64  `json:"claims"`
	TotalCost   string `json:"total_cost"`
	CostPerIter string `json:"cost_per_iteration"`
}

// TaskCounts tallies the task board.
type TaskCounts struct {
	Active    int `json:"active"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	New       int `json:"new"`
}

// TaskItem is one row of the task board.
type TaskItem struct {
	ID          string `json:"id"`
	Agent       string `json:"agent"`
	Status      string `json:"status"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	New         bool   `json:"new"`
}

// TaskBoard is the task panel of a view.
type TaskBoard struct {
	Counts  TaskCounts `json:"counts"`
	Summary []string   `json:"summary"`
	Items   []TaskItem `json:"items"`
}

// Observation is a health observation flagged by the session.
type Observation struct {
	Severity    string     `json:"severity"`
	Component   string     `json:"component"`
	Observation string     `json:"observation"`
	Suggestion  string     `json:"suggestion,omitempty"`
	At          *time.Time `json:"at"`
}

// ToolCall is one row of the tool call feed.
type ToolCall struct {
	Tool       string     `json:"tool"`
	Agent      string     `json:"agent"`
	Summary    string     `json:"summary"`
	Status     string     `json:"status"`
	Icon       string     `json:"icon"`
	Start      *time.Time `json:"start"`
	DurationMs *int64     `json:"duration_ms"`
	Duration   string     `json:"duration"`
}

// ActivityItem is one line of the recent activity feed.
type ActivityItem struct {
	Key   string     `json:"key"`
	At    *time.Time `json:"at"`
	Text  string     `json:"text"`
	Event Event      `json:"event"`
}

// Activity is the recent activity feed. Empty holds the placeholder text
// shown when there are no items.
type Activity struct {
	Items []ActivityItem `json:"items"`
	Empty string         `json:"empty,omitempty"`
}

// CorruptionWarning reports unreadable lines in one source document.
type CorruptionWarning struct {
	File      string `json:"file"`
	Corrupted int    `json:"corrupted"`
	Total     int    `json:"total"`
}

// View is the complete aggregated state of the session at one poll.
type View struct {
	GeneratedAt  *time.Time          `json:"generated_at"`
	Status       SessionStatus       `json:"status"`
	Stats        *Stats              `json:"stats"`
	Loading      bool                `json:"loading"`
	Tasks        *TaskBoard          `json:"tasks"`
	Observations []Observation       `json:"observations"`
	Journal      []JournalEntry      `json:"journal"`
	Dropped      int                 `json:"dropped"`
	ToolCalls    []ToolCall          `json:"tool_calls"`
	Activity     Activity            `json:"activity"`
	Warnings     []CorruptionWarning `json:"warnings"`
	Stale        bool                `json:"stale"`
	EventCount   int                 `json:"event_count"`
}

// PollStatus describes the server's poll loop.
type PollStatus struct {
	LastPollAt time.Time `json:"last_poll_at"`
	LastError  string    `json:"last_error,omitempty"`
	Failures   int64     `json:"poll_failures"`
	Polls      int64     `json:"polls"`
}

// SessionHealth grades the session from its log and operations.
type SessionHealth struct {
	Status string `json:"status"`
	Log    *struct {
		Lines          int     `json:"lines"`
		Corrupted      int     `json:"corrupted"`
		CorruptedPct   float64 `json:"corrupted_pct"`
		DroppedEntries int     `json:"dropped_entries"`
	} `json:"log"`
	Operations *struct {
		Total     int     `json:"total"`
		Succeeded int     `json:"succeeded"`
		Failed    int     `json:"failed"`
		Pending   int     `json:"pending"`
		FailedPct float64 `json:"failed_pct"`
	} `json:"operations"`
	Observations *struct {
		Critical int `json:"critical"`
		Warning  int `json:"warning"`
	} `json:"observations"`
	Stale bool     `json:"stale"`
	Gaps  []string `json:"gaps"`
}

// StatusResponse is returned by Status.
type StatusResponse struct {
	Session SessionStatus  `json:"session"`
	Stats   *Stats         `json:"stats"`
	Tasks   *TaskCounts    `json:"tasks"`
	Health  *SessionHealth `json:"health"`
	Poll    PollStatus     `json:"poll"`
}

// HealthResponse is returned by Health.
type HealthResponse struct {
	Status       string     `json:"status"`
	Version      string     `json:"version"`
	Source       string     `json:"source"`
	LastPollAt   *time.Time `json:"last_poll_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	PollFailures int64      `json:"poll_failures"`
	Subscribers  int        `json:"subscribers"`
	StateStore   string     `json:"state_store,omitempty"`
	Uptime       int64      `json:"uptime_seconds"`
}

// UIState is the viewer's persisted dashboard state.
type UIState struct {
	Expanded     []string `json:"expanded"`
	KnownTaskIDs []string `json:"known_task_ids"`
}

// JournalQuery filters Journal. Zero values match everything.
type JournalQuery struct {
	Agent      string
	Kinds      []string
	InProgress *bool
	Limit      int
}

// OperationQuery filters Operations. Zero values match everything.
type OperationQuery struct {
	Tool   string
	Agent  string
	Status string
	Limit  int
}

// Page is one page of a list endpoint.
type Page[T any] struct {
	Items   []T
	Total   int
	HasMore bool
	Limit   int
	Stale   bool
}

type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
	Meta struct {
		Stale bool `json:"stale"`
	} `json:"meta"`
}

type listEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Total   int             `json:"total"`
	HasMore bool            `json:"has_more"`
	Limit   int             `json:"limit"`
	Meta    struct {
		Stale bool `json:"stale"`
	} `json:"meta"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
