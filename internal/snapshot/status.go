package snapshot

import (
	"fmt"
	"time"

	"github.com/ashita-ai/kansoku/internal/format"
	"github.com/ashita-ai/kansoku/internal/model"
)

// Status is the header: objective, completion banner and runtime counter.
type Status struct {
	SessionID string              `json:"session_id,omitempty"`
	Objective string              `json:"objective"`
	State     model.SessionStatus `json:"state"`
	Banner    *Banner             `json:"banner"`
	RuntimeMs int64               `json:"runtime_ms"`
	Runtime   string              `json:"runtime"`
}

// Banner is shown once the session reaches a terminal status.
type Banner struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Error   bool   `json:"error"`
}

// BuildStatus derives the header from the session descriptor. The runtime
// counts from created_at to now, or to completed_at once the session has
// finished.
func BuildStatus(s *model.Session, now model.Instant) Status {
	if s == nil {
		return Status{Objective: "Loading...", State: model.SessionInProgress}
	}
	st := Status{
		SessionID: s.ID,
		Objective: s.Objective,
		State:     s.Status,
		Banner:    banner(s),
	}
	if st.Objective == "" {
		st.Objective = "Loading..."
	}
	if st.State == "" {
		st.State = model.SessionInProgress
	}

	if s.CreatedAt.Valid() {
		until := now
		if s.Status.Terminal() && s.CompletedAt.Valid() {
			until = s.CompletedAt
		}
		st.RuntimeMs = max(until.Sub(s.CreatedAt), 0)
		st.Runtime = format.Elapsed(st.RuntimeMs)
	}
	return st
}

func banner(s *model.Session) *Banner {
	switch s.Status {
	case model.SessionCompleted:
		return &Banner{Title: "✅ Research Complete!", Message: "Research session finished " + finishedAt(s)}
	case model.SessionCompletedWithAdvisory:
		return &Banner{Title: "⚠️ Research Complete (with advisories)", Message: "Research session finished " + finishedAt(s)}
	case model.SessionBlockedQualityGate:
		return &Banner{
			Title:   "⛔ Blocked by Quality Gate",
			Message: orDefault(s.Error, "The quality gate did not pass; the report was not published."),
			Error:   true,
		}
	case model.SessionFailed:
		return &Banner{
			Title:   "❌ Research Failed",
			Message: orDefault(s.Error, "Research encountered an error and could not complete."),
			Error:   true,
		}
	default:
		return nil
	}
}

func finishedAt(s *model.Session) string {
	if !s.CompletedAt.Valid() {
		return "recently"
	}
	return s.CompletedAt.Time().Format(time.DateTime + " MST")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Stats are the headline numbers from the metrics snapshot, preformatted.
type Stats struct {
	Iteration   int64  `json:"iteration"`
	Confidence  string `json:"confidence"`
	Entities    int64  `json:"entities"`
	Claims      int64  `json:"claims"`
	TotalCost   string `json:"total_cost"`
	CostPerIter string `json:"cost_per_iteration"`
}

// BuildStats formats the metrics snapshot. It returns nil while the
// snapshot does not exist yet.
func BuildStats(m *model.Metrics) *Stats {
	if m == nil {
		return nil
	}
	return &Stats{
		Iteration:   m.Iteration,
		Confidence:  format.Percent(m.Confidence),
		Entities:    m.Entities,
		Claims:      m.Claims,
		TotalCost:   fmt.Sprintf("%.2f", m.TotalCostUSD),
		CostPerIter: fmt.Sprintf("%.2f", m.CostPerIterUSD),
	}
}
