package journal

import (
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/pairing"
)

// Draft is what a sequence contributes for one paired operation. The
// builder supplies the instants, the id and the duration/elapsed fields.
type Draft struct {
	Kind  model.EntryKind
	Agent string
	Data  model.Data
}

// Sequence is one start/end event family that becomes journal entries.
// Every sequence is evaluated by the same pass: pair with Rule (or Match),
// then build a completed entry per matched pair and a running entry per
// open start.
type Sequence struct {
	Name string
	Rule pairing.Rule
	// Match replaces the default greedy pairing when set.
	Match     func(m *pairing.Matcher, rule pairing.Rule, events []model.NormalizedEvent) []model.PairedOperation
	Completed func(op model.PairedOperation) Draft
	Running   func(op model.PairedOperation) Draft
}

// BuiltinSequences returns the iteration and quality gate sequences.
func BuiltinSequences() []Sequence {
	return []Sequence{
		{
			Name: "iteration",
			Rule: pairing.Rule{
				Kind:      "iteration",
				StartType: model.EventIterationStart,
				EndType:   model.EventIterationComplete,
				Key:       pairing.DataKey("iteration"),
				Ceiling:   pairing.NoCeiling,
			},
			Completed: func(op model.PairedOperation) Draft {
				return Draft{Kind: model.KindIteration, Data: opData(op, "iteration")}
			},
			Running: func(op model.PairedOperation) Draft {
				return Draft{Kind: model.KindIterationRunning, Data: opData(op, "iteration")}
			},
		},
		{
			Name: "quality_gate",
			Rule: pairing.Rule{
				Kind:      "quality_gate",
				StartType: model.EventQualityGateStart,
				EndType:   model.EventQualityGateComplete,
				Key:       pairing.DataKey("attempt"),
				Ceiling:   pairing.NoCeiling,
				Status:    pairing.StatusFromField("status", "passed"),
			},
			Completed: func(op model.PairedOperation) Draft {
				return Draft{Kind: model.KindQualityGate, Data: opData(op, "attempt")}
			},
			Running: func(op model.PairedOperation) Draft {
				return Draft{Kind: model.KindQualityGateRun, Data: opData(op, "attempt")}
			},
		},
	}
}

// opData merges the start and end payloads and records the key and status.
func opData(op model.PairedOperation, keyField string) model.Data {
	d := merge(op.Start.Data)
	if op.End != nil {
		d = merge(op.Start.Data, op.End.Data)
	}
	if !d.Has(keyField) && op.Key != "" {
		d[keyField] = op.Key
	}
	d["status"] = string(op.Status)
	return d
}

func (b *Builder) sequenceEntries(m *pairing.Matcher, events []model.NormalizedEvent, now model.Instant) ([]candidate, int) {
	var out []candidate
	dropped := 0
	for _, seq := range b.sequences {
		if seq.Completed == nil || seq.Running == nil {
			continue
		}
		var ops []model.PairedOperation
		if seq.Match != nil {
			ops = seq.Match(m, seq.Rule, events)
		} else {
			ops = m.Match(seq.Rule, events)
		}

		// Reported starts with an invalid instant are dropped by Build;
		// only the ones the matcher skipped are counted here.
		reported := make(map[int]bool, len(ops))
		for _, op := range ops {
			reported[op.Start.Seq] = true
		}
		for _, ev := range events {
			if ev.Type == seq.Rule.StartType && !ev.Valid() && !reported[ev.Seq] {
				dropped++
			}
		}

		for _, op := range ops {
			c := candidate{
				seq:   op.Start.Seq,
				start: op.Start.Instant,
				end:   model.InvalidInstant,
			}
			var d Draft
			if op.Matched() && op.End.Instant >= op.Start.Instant {
				d = seq.Completed(op)
				c.end = op.End.Instant
				if d.Data == nil {
					d.Data = model.Data{}
				}
				d.Data["duration_ms"] = c.end.Sub(c.start)
			} else {
				d = seq.Running(op)
				if d.Data == nil {
					d.Data = model.Data{}
				}
				d.Data["elapsed_ms"] = elapsed(now, c.start)
			}
			c.kind, c.agent, c.data = d.Kind, d.Agent, d.Data
			out = append(out, c)
		}
	}
	return out, dropped
}
