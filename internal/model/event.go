package model

// EventType is the "type" field of one event log record.
type EventType string

const (
	// Session lifecycle events.
	EventSessionStart    EventType = "session_start"
	EventSessionComplete EventType = "session_complete"

	// Iteration boundaries.
	EventIterationStart    EventType = "iteration_start"
	EventIterationComplete EventType = "iteration_complete"

	// Agent work events.
	EventAgentInvocation EventType = "agent_invocation"
	EventAgentResult     EventType = "agent_result"

	// Tool events.
	EventToolUseStart    EventType = "tool_use_start"
	EventToolUseComplete EventType = "tool_use_complete"

	// Quality gate cycle, keyed by attempt number.
	EventQualityGateStart    EventType = "quality_gate_start"
	EventQualityGateComplete EventType = "quality_gate_complete"

	// Knowledge and task events. These only appear in the activity feed.
	EventTaskStarted       EventType = "task_started"
	EventTaskCompleted     EventType = "task_completed"
	EventEntityAdded       EventType = "entity_added"
	EventClaimAdded        EventType = "claim_added"
	EventGapDetected       EventType = "gap_detected"
	EventGapResolved       EventType = "gap_resolved"
	EventSystemObservation EventType = "system_observation"
)

// IsToolEvent reports whether t belongs to the tool use family.
func (t EventType) IsToolEvent() bool {
	return t == EventToolUseStart || t == EventToolUseComplete
}

// Event is one record of the append-only event log.
// Never mutated after it is decoded.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp string    `json:"timestamp"`
	Data      Data      `json:"data"`
}

// NormalizedEvent is an Event with its position in the decoded log and its
// parsed instant. Instant is InvalidInstant when the timestamp did not parse.
type NormalizedEvent struct {
	Event
	Seq     int     `json:"seq"`
	Instant Instant `json:"instant"`
}

// Valid reports whether the event can take part in the timeline.
func (e NormalizedEvent) Valid() bool {
	return e.Instant.Valid()
}

// Before is the canonical event ordering: instant first, log position as the
// tie-break. Invalid instants sort after every valid one.
func (e NormalizedEvent) Before(o NormalizedEvent) bool {
	switch {
	case e.Valid() && !o.Valid():
		return true
	case !e.Valid() && o.Valid():
		return false
	case e.Instant != o.Instant:
		return e.Instant < o.Instant
	default:
		return e.Seq < o.Seq
	}
}

// Agent returns data.agent, or "" when absent.
func (e NormalizedEvent) Agent() string {
	return e.Data.Str("agent")
}
