// Package journal derives the ordered progress journal from a normalized
// event log. A Builder is a pure function of its Input: every poll rebuilds
// the whole journal from the full log, so the same log always yields the
// same entries with the same ids.
//
// Entries come from three families evaluated in a fixed order: agent work
// (ordinal invocation/result pairing per agent), sequences (start/end pairs
// matched by the pairing package) and session milestones. The final order
// is start instant descending; entries with equal starts keep that family
// order.
package journal

import (
	"slices"
	"time"

	"github.com/ashita-ai/kansoku/internal/format"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/pairing"
)

// Input is everything one build reads. Events must be in log order with Seq
// set (see eventlog.Normalize). Session may be nil.
type Input struct {
	Events  []model.NormalizedEvent
	Tasks   []model.Task
	Session *model.Session
	// Now anchors in-progress entries. An invalid Now reads the wall clock.
	Now model.Instant
}

// Result is the derived journal.
type Result struct {
	Entries []model.JournalEntry `json:"entries"`
	// Operations are the tool call pairings, in start log order.
	Operations []model.PairedOperation `json:"operations"`
	// Dropped counts candidate entries discarded for an invalid start.
	Dropped int `json:"dropped"`
}

// Builder holds the immutable configuration of a journal build. It is safe
// for concurrent use.
type Builder struct {
	ceiling    time.Duration
	agentOrder []string
	sequences  []Sequence
	formatter  *format.Formatter
}

// Option configures a Builder.
type Option func(*Builder)

// WithCeiling sets the latency ceiling for tool call pairing.
func WithCeiling(d time.Duration) Option {
	return func(b *Builder) {
		if d != 0 {
			b.ceiling = d
		}
	}
}

// WithAgentOrder replaces the canonical agent order.
func WithAgentOrder(agents []string) Option {
	return func(b *Builder) {
		if len(agents) > 0 {
			b.agentOrder = slices.Clone(agents)
		}
	}
}

// WithSequences appends sequences after the built-in ones.
func WithSequences(seqs ...Sequence) Option {
	return func(b *Builder) {
		b.sequences = append(b.sequences, seqs...)
	}
}

// WithFormatter sets the entry formatter.
func WithFormatter(f *format.Formatter) Option {
	return func(b *Builder) {
		if f != nil {
			b.formatter = f
		}
	}
}

// New creates a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		ceiling:    pairing.DefaultCeiling,
		agentOrder: DefaultAgentOrder(),
		sequences:  BuiltinSequences(),
		formatter:  format.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// candidate is an entry before validation, formatting and ordering.
type candidate struct {
	kind  model.EntryKind
	agent string
	seq   int
	start model.Instant
	end   model.Instant
	data  model.Data
	tasks []model.Task
	ops   []model.PairedOperation
}

// Build derives the journal for in.
func (b *Builder) Build(in Input) Result {
	now := in.Now
	if !now.Valid() {
		now = model.InstantOf(time.Now())
	}

	m := pairing.NewMatcher()
	ops := m.Match(pairing.ToolRule(b.ceiling), in.Events)

	var res Result
	res.Operations = ops

	// Family order is the tie-break order of the final sort.
	cands := b.agentEntries(in, ops, now)
	seqs, dropped := b.sequenceEntries(m, in.Events, now)
	cands = append(cands, seqs...)
	res.Dropped += dropped
	cands = append(cands, milestoneEntries(in)...)

	entries := make([]model.JournalEntry, 0, len(cands))
	for _, c := range cands {
		if !c.start.Valid() {
			res.Dropped++
			continue
		}
		entries = append(entries, b.entry(c))
	}

	slices.SortStableFunc(entries, func(x, y model.JournalEntry) int {
		switch {
		case x.Start > y.Start:
			return -1
		case x.Start < y.Start:
			return 1
		default:
			return 0
		}
	})
	res.Entries = entries
	return res
}

func (b *Builder) entry(c candidate) model.JournalEntry {
	end := c.end
	if end.Valid() && end < c.start {
		end = model.InvalidInstant
	}
	if c.data == nil {
		c.data = model.Data{}
	}
	d := b.formatter.Entry(format.Subject{Kind: c.kind, Agent: c.agent, Data: c.data})

	tasks := c.tasks
	if tasks == nil {
		tasks = []model.Task{}
	}
	ops := c.ops
	if ops == nil {
		ops = []model.PairedOperation{}
	}
	return model.JournalEntry{
		ID:                model.EntryID(c.kind, c.agent, c.seq),
		Kind:              c.kind,
		Icon:              d.Icon,
		Title:             d.Title,
		Start:             c.start,
		End:               end,
		Narrative:         d.Narrative,
		Agent:             c.agent,
		Metadata:          c.data,
		RelatedTasks:      tasks,
		RelatedOperations: ops,
	}
}

// merge copies the given payloads into a fresh map; later ones win.
func merge(parts ...model.Data) model.Data {
	out := model.Data{}
	for _, p := range parts {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}

func elapsed(now, start model.Instant) int64 {
	return max(now.Sub(start), 0)
}
