package journal

import (
	"github.com/ashita-ai/kansoku/internal/model"
)

// descriptorSeq is the entry id position used for milestones taken from the
// session descriptor rather than the log.
const descriptorSeq = -1

// milestoneEntries emits one entry per session_start and session_complete
// event. When the log has no valid event of a kind, the session descriptor
// stands in for it.
func milestoneEntries(in Input) []candidate {
	var out []candidate
	starts, validStart := milestones(in.Events, model.EventSessionStart, model.KindSessionStart)
	for i := range starts {
		if in.Session != nil && !starts[i].data.Has("objective") && in.Session.Objective != "" {
			starts[i].data["objective"] = in.Session.Objective
		}
	}
	out = append(out, starts...)
	if !validStart && in.Session != nil && in.Session.CreatedAt.Valid() {
		out = append(out, point(model.KindSessionStart, descriptorSeq, in.Session.CreatedAt, model.Data{
			"objective": in.Session.Objective,
		}))
	}

	completes, validComplete := milestones(in.Events, model.EventSessionComplete, model.KindSessionComplete)
	for i := range completes {
		if in.Session != nil && !completes[i].data.Has("status") && in.Session.Status.Terminal() {
			completes[i].data["status"] = string(in.Session.Status)
		}
	}
	out = append(out, completes...)
	if !validComplete && in.Session != nil && in.Session.Status.Terminal() && in.Session.CompletedAt.Valid() {
		d := model.Data{"status": string(in.Session.Status)}
		if in.Session.Error != "" {
			d["error"] = in.Session.Error
		}
		out = append(out, point(model.KindSessionComplete, descriptorSeq, in.Session.CompletedAt, d))
	}
	return out
}

// milestones returns a point candidate per event of typ and whether any of
// them had a valid instant.
func milestones(events []model.NormalizedEvent, typ model.EventType, kind model.EntryKind) ([]candidate, bool) {
	var out []candidate
	valid := false
	for _, ev := range events {
		if ev.Type != typ {
			continue
		}
		valid = valid || ev.Valid()
		out = append(out, point(kind, ev.Seq, ev.Instant, merge(ev.Data)))
	}
	return out, valid
}

// point is a milestone: it ends where it starts.
func point(kind model.EntryKind, seq int, at model.Instant, data model.Data) candidate {
	return candidate{kind: kind, seq: seq, start: at, end: at, data: data}
}
