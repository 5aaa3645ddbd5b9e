// Package pairing correlates "start" events with the "completion" events of
// the same logical operation.
//
// The strategy is greedy nearest-forward matching: starts are processed in
// log order, and each takes the closest unconsumed completion with the same
// correlation key that is not earlier than the start and lies within the
// latency ceiling. The assignment is local, not globally optimal: a later
// start never reclaims a completion already taken by an earlier one, even
// when that would lower total latency. Keys such as tool names carry no
// instance id, so concurrent same-key operations can be mis-paired; that
// ambiguity comes from the event schema and is left as is.
package pairing

import (
	"strings"
	"time"

	"github.com/ashita-ai/kansoku/internal/model"
)

// DefaultCeiling is the latency ceiling used when a Rule leaves it unset.
const DefaultCeiling = 60 * time.Second

// NoCeiling disables the latency ceiling for a Rule.
const NoCeiling time.Duration = -1

// KeyFunc extracts the correlation key from an event.
type KeyFunc func(model.NormalizedEvent) string

// StatusFunc derives the status of a matched operation from its end event.
type StatusFunc func(end model.NormalizedEvent) model.OperationStatus

// Rule describes one operation kind.
type Rule struct {
	Kind      string
	StartType model.EventType
	EndType   model.EventType
	Key       KeyFunc
	// Ceiling bounds Te-Ts (exclusive). Zero means DefaultCeiling,
	// NoCeiling disables the bound.
	Ceiling time.Duration
	// Status overrides StatusFromField("status").
	Status StatusFunc
}

// DataKey returns a KeyFunc reading data[field].
func DataKey(field string) KeyFunc {
	return func(ev model.NormalizedEvent) string {
		return ev.Data.Str(field)
	}
}

// StatusFromField maps data[field] to an operation status. "success" and
// "failed" are recognised case-insensitively, along with any extra
// aliases; every other value reads as pending.
func StatusFromField(field string, successAliases ...string) StatusFunc {
	return func(end model.NormalizedEvent) model.OperationStatus {
		raw := strings.ToLower(strings.TrimSpace(end.Data.Str(field)))
		switch raw {
		case string(model.StatusSuccess):
			return model.StatusSuccess
		case string(model.StatusFailed):
			return model.StatusFailed
		}
		for _, alias := range successAliases {
			if raw == alias {
				return model.StatusSuccess
			}
		}
		return model.StatusPending
	}
}

// ToolRule pairs tool_use_start with tool_use_complete by tool name.
func ToolRule(ceiling time.Duration) Rule {
	return Rule{
		Kind:      "tool",
		StartType: model.EventToolUseStart,
		EndType:   model.EventToolUseComplete,
		Key:       DataKey("tool"),
		Ceiling:   ceiling,
	}
}

// Matcher assigns end events to start events. One Matcher lives for one
// computation: it remembers which end events (by log position) earlier
// calls consumed so they are never assigned twice. A Matcher is not safe
// for concurrent use; create one per computation.
type Matcher struct {
	consumed map[int]struct{}
}

// NewMatcher returns a Matcher with nothing consumed.
func NewMatcher() *Matcher {
	return &Matcher{consumed: make(map[int]struct{})}
}

// Consumed reports whether the end event at log position seq is taken.
func (m *Matcher) Consumed(seq int) bool {
	_, ok := m.consumed[seq]
	return ok
}

// Match pairs every valid start event of rule.StartType in events with at
// most one end event. events must be in log order. Starts whose instant is
// invalid are not reported.
func (m *Matcher) Match(rule Rule, events []model.NormalizedEvent) []model.PairedOperation {
	key := rule.Key
	if key == nil {
		key = func(model.NormalizedEvent) string { return "" }
	}
	status := rule.Status
	if status == nil {
		status = StatusFromField("status")
	}
	ceiling := rule.Ceiling
	if ceiling == 0 {
		ceiling = DefaultCeiling
	}

	var starts, ends []model.NormalizedEvent
	for _, ev := range events {
		if !ev.Valid() {
			continue
		}
		switch ev.Type {
		case rule.StartType:
			starts = append(starts, ev)
		case rule.EndType:
			ends = append(ends, ev)
		}
	}

	endKeys := make([]string, len(ends))
	for i, ev := range ends {
		endKeys[i] = key(ev)
	}

	ops := make([]model.PairedOperation, 0, len(starts))
	for _, start := range starts {
		k := key(start)
		op := model.PairedOperation{
			Kind:   rule.Kind,
			Key:    k,
			Start:  start,
			Status: model.StatusPending,
		}

		best := -1
		var bestDelta int64
		for i, end := range ends {
			if endKeys[i] != k || m.Consumed(end.Seq) {
				continue
			}
			delta := end.Instant.Sub(start.Instant)
			if delta < 0 {
				continue
			}
			if ceiling > 0 && delta >= ceiling.Milliseconds() {
				continue
			}
			// Strictly smaller wins; ends are in log order so ties keep the earliest.
			if best < 0 || delta < bestDelta {
				best, bestDelta = i, delta
			}
		}

		if best >= 0 {
			end := ends[best]
			m.consumed[end.Seq] = struct{}{}
			d := bestDelta
			op.End = &end
			op.DurationMs = &d
			op.Status = status(end)
		}
		ops = append(ops, op)
	}
	return ops
}
