package eventlog

import (
	"strings"
	"time"

	"github.com/ashita-ai/kansoku/internal/model"
)

// instantLayouts are tried in order. Layouts without a zone are read as UTC.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseInstant parses an ISO-8601-like timestamp. It never fails loudly:
// empty or unparsable input returns model.InvalidInstant.
func ParseInstant(s string) model.Instant {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.InvalidInstant
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.InstantOf(t)
		}
	}
	return model.InvalidInstant
}

// Normalize attaches log positions and parsed instants to decoded events.
// Events keep their decoded order.
func Normalize(events []model.Event) []model.NormalizedEvent {
	out := make([]model.NormalizedEvent, len(events))
	for i, ev := range events {
		out[i] = model.NormalizedEvent{
			Event:   ev,
			Seq:     i,
			Instant: ParseInstant(ev.Timestamp),
		}
	}
	return out
}
