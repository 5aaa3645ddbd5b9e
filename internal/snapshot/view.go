// Package snapshot assembles the complete viewer state for one poll: the
// status header, stats, task board, health observations, tool call sidebar,
// activity feed and the journal. Assembly is pure; the only state carried
// between polls is the set of task ids already seen, which the caller
// passes in and gets back.
package snapshot

import (
	"github.com/ashita-ai/kansoku/internal/eventlog"
	"github.com/ashita-ai/kansoku/internal/format"
	"github.com/ashita-ai/kansoku/internal/journal"
	"github.com/ashita-ai/kansoku/internal/model"
)

// Inputs are the decoded documents of one poll. Any document may be absent.
type Inputs struct {
	Log     eventlog.Result
	Metrics *model.Metrics
	Session *model.Session
	Tasks   []model.Task
	// HasTasks distinguishes a missing task queue from an empty one.
	HasTasks bool
}

// View is everything the presentation layer renders.
type View struct {
	GeneratedAt  model.Instant             `json:"generated_at"`
	Status       Status                    `json:"status"`
	Stats        *Stats                    `json:"stats"`
	Loading      bool                      `json:"loading"`
	Tasks        *TaskBoard                `json:"tasks"`
	Observations []model.Observation       `json:"observations"`
	Journal      []model.JournalEntry      `json:"journal"`
	Dropped      int                       `json:"dropped"`
	ToolCalls    []ToolCall                `json:"tool_calls"`
	Activity     Activity                  `json:"activity"`
	Warnings     []model.CorruptionWarning `json:"warnings"`
	Stale        bool                      `json:"stale"`
	// Operations are every tool pairing, oldest first. Not serialized with
	// the view; see ToolCalls for the sidebar window.
	Operations []model.PairedOperation `json:"-"`
	// EventCount is the number of valid events in the log.
	EventCount int `json:"event_count"`
}

// Assembler builds views. It is safe for concurrent use.
type Assembler struct {
	builder   *journal.Builder
	formatter *format.Formatter
}

// NewAssembler creates an Assembler. Nil arguments use the defaults.
func NewAssembler(b *journal.Builder, f *format.Formatter) *Assembler {
	if f == nil {
		f = format.New()
	}
	if b == nil {
		b = journal.New(journal.WithFormatter(f))
	}
	return &Assembler{builder: b, formatter: f}
}

// Assemble builds the view for in at now. known holds the task ids seen by
// earlier polls; the returned set adds the ids seen by this one.
func (a *Assembler) Assemble(in Inputs, known map[string]struct{}, now model.Instant) (View, map[string]struct{}) {
	events := eventlog.Normalize(in.Log.Events)
	res := a.builder.Build(journal.Input{
		Events:  events,
		Tasks:   in.Tasks,
		Session: in.Session,
		Now:     now,
	})

	v := View{
		GeneratedAt:  now,
		Status:       BuildStatus(in.Session, now),
		Stats:        BuildStats(in.Metrics),
		Loading:      in.Metrics == nil,
		Observations: TopObservations(metricsObservations(in.Metrics), maxObservations),
		Journal:      res.Entries,
		Dropped:      res.Dropped,
		Operations:   res.Operations,
		ToolCalls:    RecentToolCalls(res.Operations, maxToolCalls),
		Activity:     a.RecentActivity(in.Log.Events, maxActivity),
		Warnings:     []model.CorruptionWarning{},
		EventCount:   len(in.Log.Events),
	}
	if w := in.Log.Warning(); w != nil {
		v.Warnings = append(v.Warnings, *w)
	}

	nextKnown := known
	if in.HasTasks {
		board, updated := BuildTaskBoard(in.Tasks, known)
		v.Tasks = &board
		nextKnown = updated
	}
	return v, nextKnown
}

func metricsObservations(m *model.Metrics) []model.Observation {
	if m == nil {
		return nil
	}
	return m.Observations
}
