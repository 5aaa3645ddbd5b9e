package snapshot

import (
	"slices"
	"strings"

	"github.com/ashita-ai/kansoku/internal/model"
)

// JournalQuery selects journal entries. Zero fields match everything.
type JournalQuery struct {
	Agent string
	Kinds []model.EntryKind
	// InProgress, when set, keeps only open (true) or closed (false) entries.
	InProgress *bool
}

// ParseKinds splits a comma separated kind list. Blank items are ignored.
func ParseKinds(s string) []model.EntryKind {
	var kinds []model.EntryKind
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			kinds = append(kinds, model.EntryKind(part))
		}
	}
	return kinds
}

// Apply returns the matching entries in journal order.
func (q JournalQuery) Apply(entries []model.JournalEntry) []model.JournalEntry {
	out := make([]model.JournalEntry, 0, len(entries))
	for _, e := range entries {
		if q.Agent != "" && !strings.EqualFold(e.Agent, q.Agent) {
			continue
		}
		if len(q.Kinds) > 0 && !slices.Contains(q.Kinds, e.Kind) {
			continue
		}
		if q.InProgress != nil && e.InProgress() != *q.InProgress {
			continue
		}
		out = append(out, e)
	}
	return out
}

// OperationQuery selects tool pairings.
type OperationQuery struct {
	Tool   string
	Agent  string
	Status model.OperationStatus
}

// Apply returns the matching operations, most recent first.
func (q OperationQuery) Apply(ops []model.PairedOperation) []model.PairedOperation {
	out := make([]model.PairedOperation, 0, len(ops))
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if q.Tool != "" && op.Key != q.Tool {
			continue
		}
		if q.Agent != "" && !strings.EqualFold(op.Start.Agent(), q.Agent) {
			continue
		}
		if q.Status != "" && op.Status != q.Status {
			continue
		}
		out = append(out, op)
	}
	return out
}
