// Package format maps journal entries and raw events to display metadata
// (icon, title, narrative sentence) through declarative lookup tables.
// Unknown kinds fall through to a generic default; nothing here can fail.
package format

import (
	"github.com/ashita-ai/kansoku/internal/model"
)

// defaultIcon is used for any kind or agent without a table entry.
const defaultIcon = "•"

// Display is the rendered form of one journal entry.
type Display struct {
	Icon      string
	Title     string
	Narrative string
}

// Subject is what the formatter renders: an entry kind, the agent it
// belongs to (if any) and the payload fields the entry was built from.
type Subject struct {
	Kind  model.EntryKind
	Agent string
	Data  model.Data
}

// Rule is one row of a lookup table. Title and Narrative may be nil, in
// which case the row only contributes its icon.
type Rule struct {
	Icon      string
	Title     func(Subject) string
	Narrative func(Subject) string
}

// Formatter renders subjects and events. It is immutable after New and safe
// for concurrent use.
type Formatter struct {
	kinds  map[model.EntryKind]Rule
	agents map[string]Rule
	events map[model.EventType]func(model.Event) string
	labels Overrides
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithOverrides applies display label overrides (icons and static titles)
// on top of the built-in tables.
func WithOverrides(o Overrides) Option {
	return func(f *Formatter) { f.labels = o }
}

// New creates a Formatter with the built-in tables.
func New(opts ...Option) *Formatter {
	f := &Formatter{
		kinds:  kindRules,
		agents: agentRules,
		events: eventLines,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Entry renders s. Agent overrides apply to the agent kinds only; anything
// unrecognised renders as "• <kind>".
func (f *Formatter) Entry(s Subject) Display {
	if s.Data == nil {
		s.Data = model.Data{}
	}

	base, ok := f.kinds[s.Kind]
	if !ok {
		base = Rule{
			Icon:      defaultIcon,
			Title:     func(s Subject) string { return string(s.Kind) },
			Narrative: func(s Subject) string { return defaultIcon + " " + string(s.Kind) },
		}
	}
	rule := base
	if isAgentKind(s.Kind) {
		if over, ok := f.agents[s.Agent]; ok {
			rule = merge(base, over, s.Kind)
		}
	}

	d := Display{Icon: rule.Icon}
	if d.Icon == "" {
		d.Icon = defaultIcon
	}
	if rule.Title != nil {
		d.Title = rule.Title(s)
	}
	if rule.Narrative != nil {
		d.Narrative = rule.Narrative(s)
	}
	if s.Kind == model.KindAgentWork && s.Data.Bool("end_rejected") {
		d.Narrative = unresolvedWork(s)
	}
	f.applyLabels(s, &d)
	return d
}

// Event renders one raw event as a single activity feed line.
func (f *Formatter) Event(ev model.Event) string {
	if ev.Data == nil {
		ev.Data = model.Data{}
	}
	if line, ok := f.events[ev.Type]; ok {
		return line(ev)
	}
	return defaultIcon + " " + string(ev.Type)
}

func (f *Formatter) applyLabels(s Subject, d *Display) {
	if isAgentKind(s.Kind) {
		if l, ok := f.labels.Agents[s.Agent]; ok {
			l.apply(d)
		}
		return
	}
	if l, ok := f.labels.Kinds[string(s.Kind)]; ok {
		l.apply(d)
	}
}

func isAgentKind(k model.EntryKind) bool {
	return k == model.KindAgentWork || k == model.KindAgentInProgress
}

// merge layers an agent override on the kind rule. The in-progress kind
// keeps its own narrative: the override narratives describe finished work.
func merge(base, over Rule, kind model.EntryKind) Rule {
	out := base
	if over.Icon != "" {
		out.Icon = over.Icon
	}
	if over.Title != nil {
		out.Title = over.Title
	}
	if over.Narrative != nil && kind == model.KindAgentWork {
		out.Narrative = over.Narrative
	}
	return out
}
