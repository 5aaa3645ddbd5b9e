package model

// SessionStatus is the terminal (or in-progress) status of a session descriptor.
type SessionStatus string

const (
	SessionInProgress            SessionStatus = "in_progress"
	SessionCompleted             SessionStatus = "completed"
	SessionCompletedWithAdvisory SessionStatus = "completed_with_advisory"
	SessionBlockedQualityGate    SessionStatus = "blocked_quality_gate"
	SessionFailed                SessionStatus = "failed"
)

// ParseSessionStatus maps a raw status string; anything unrecognised is in progress.
func ParseSessionStatus(s string) SessionStatus {
	switch SessionStatus(s) {
	case SessionCompleted, SessionCompletedWithAdvisory, SessionBlockedQualityGate, SessionFailed:
		return SessionStatus(s)
	default:
		return SessionInProgress
	}
}

// Terminal reports whether the session has stopped running.
func (s SessionStatus) Terminal() bool {
	return s != SessionInProgress && s != ""
}

// Session is the session/process descriptor document.
type Session struct {
	ID          string        `json:"id,omitempty"`
	Objective   string        `json:"objective"`
	Status      SessionStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   Instant       `json:"created_at"`
	CompletedAt Instant       `json:"completed_at"`
}

// TaskStatus is the status of a task queue entry.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Task is one entry of the task queue document.
type Task struct {
	ID          string     `json:"id"`
	Agent       string     `json:"agent"`
	Status      TaskStatus `json:"status"`
	Query       string     `json:"query,omitempty"`
	Description string     `json:"description,omitempty"`
	Type        string     `json:"type,omitempty"`
	CreatedAt   Instant    `json:"created_at"`
	StartedAt   Instant    `json:"started_at"`
	CompletedAt Instant    `json:"completed_at"`
}

// Anchor returns the instant used to place the task on the timeline:
// the start time, falling back to the creation time.
func (t Task) Anchor() Instant {
	if t.StartedAt.Valid() {
		return t.StartedAt
	}
	return t.CreatedAt
}

// Severity of a health observation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Observation is one system health observation from the metrics snapshot.
type Observation struct {
	Severity    Severity `json:"severity"`
	Component   string   `json:"component"`
	Observation string   `json:"observation"`
	Suggestion  string   `json:"suggestion,omitempty"`
	At          Instant  `json:"at"`
}

// Metrics is the periodic metrics/status snapshot document.
type Metrics struct {
	Iteration      int64         `json:"iteration"`
	Confidence     float64       `json:"confidence"`
	Entities       int64         `json:"entities"`
	Claims         int64         `json:"claims"`
	TotalCostUSD   float64       `json:"total_cost_usd"`
	CostPerIterUSD float64       `json:"cost_per_iteration_usd"`
	Observations   []Observation `json:"observations"`
}
