// Package sessionhealth grades a research session from its latest view:
// how much of the log was readable, how many tool calls failed, and what
// the agents flagged as critical. It answers "can I trust what the
// dashboard shows right now?"
package sessionhealth

import (
	"fmt"

	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/snapshot"
)

// Health states.
const (
	StatusHealthy          = "healthy"
	StatusNeedsAttention   = "needs_attention"
	StatusInsufficientData = "insufficient_data"
)

const (
	maxGaps            = 3
	corruptedThreshold = 5.0  // percent of log lines
	failedThreshold    = 20.0 // percent of tool calls
)

// Metrics is the session health report.
type Metrics struct {
	Status       string              `json:"status"`
	Log          *LogMetrics         `json:"log"`
	Operations   *OperationMetrics   `json:"operations"`
	Observations *ObservationMetrics `json:"observations"`
	Stale        bool                `json:"stale"`
	Gaps         []string            `json:"gaps"`
}

// LogMetrics covers decoding of the event log.
type LogMetrics struct {
	Lines          int     `json:"lines"`
	Corrupted      int     `json:"corrupted"`
	CorruptedPct   float64 `json:"corrupted_pct"`
	DroppedEntries int     `json:"dropped_entries"`
}

// OperationMetrics counts tool call outcomes.
type OperationMetrics struct {
	Total     int     `json:"total"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Pending   int     `json:"pending"`
	FailedPct float64 `json:"failed_pct"`
}

// ObservationMetrics counts flagged observations by severity.
type ObservationMetrics struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
}

// Compute grades v.
func Compute(v snapshot.View) *Metrics {
	m := &Metrics{
		Log:          logMetrics(v),
		Operations:   operationMetrics(v.Operations),
		Observations: observationMetrics(v.Observations),
		Stale:        v.Stale,
		Gaps:         []string{},
	}

	if m.Log.Lines == 0 {
		m.Status = StatusInsufficientData
		m.Gaps = append(m.Gaps, "No events recorded yet. The session may not have started.")
		return m
	}

	m.Gaps = computeGaps(m)
	m.Status = computeStatus(m)
	return m
}

func logMetrics(v snapshot.View) *LogMetrics {
	lm := &LogMetrics{Lines: v.EventCount, DroppedEntries: v.Dropped}
	for _, w := range v.Warnings {
		lm.Corrupted += w.Corrupted
		lm.Lines = max(lm.Lines, w.Total)
	}
	if lm.Lines > 0 {
		lm.CorruptedPct = float64(lm.Corrupted) / float64(lm.Lines) * 100
	}
	return lm
}

func operationMetrics(ops []model.PairedOperation) *OperationMetrics {
	om := &OperationMetrics{Total: len(ops)}
	for _, op := range ops {
		switch op.Status {
		case model.StatusSuccess:
			om.Succeeded++
		case model.StatusFailed:
			om.Failed++
		default:
			om.Pending++
		}
	}
	if finished := om.Succeeded + om.Failed; finished > 0 {
		om.FailedPct = float64(om.Failed) / float64(finished) * 100
	}
	return om
}

func observationMetrics(obs []model.Observation) *ObservationMetrics {
	o := &ObservationMetrics{}
	for _, ob := range obs {
		switch ob.Severity {
		case model.SeverityCritical:
			o.Critical++
		case model.SeverityWarning:
			o.Warning++
		}
	}
	return o
}

// computeGaps lists the most important problems, most severe first.
func computeGaps(m *Metrics) []string {
	var gaps []string

	if m.Stale {
		gaps = append(gaps, "The last poll failed. The view may be out of date.")
	}
	if m.Observations.Critical > 0 {
		gaps = append(gaps, fmt.Sprintf("%d critical observations reported.", m.Observations.Critical))
	}
	if m.Log.CorruptedPct > corruptedThreshold {
		gaps = append(gaps, fmt.Sprintf("%d of %d log lines could not be decoded.", m.Log.Corrupted, m.Log.Lines))
	}
	if m.Operations.FailedPct >= failedThreshold {
		gaps = append(gaps, fmt.Sprintf("%d of %d tool calls failed.",
			m.Operations.Failed, m.Operations.Succeeded+m.Operations.Failed))
	}
	if m.Log.DroppedEntries > 0 {
		gaps = append(gaps, fmt.Sprintf("%d journal entries skipped for unreadable timestamps.", m.Log.DroppedEntries))
	}

	if len(gaps) > maxGaps {
		gaps = gaps[:maxGaps]
	}
	return gaps
}

func computeStatus(m *Metrics) string {
	if m.Observations.Critical > 0 {
		return StatusNeedsAttention
	}
	problems := 0
	if m.Stale {
		problems++
	}
	if m.Log.CorruptedPct > corruptedThreshold {
		problems++
	}
	if m.Operations.FailedPct >= failedThreshold {
		problems++
	}
	if problems >= 2 {
		return StatusNeedsAttention
	}
	return StatusHealthy
}
