// Package render draws a session view for a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ashita-ai/kansoku/internal/format"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/snapshot"
)

const (
	defaultWidth    = 100
	defaultEntries  = 12
	defaultToolRows = 8
	defaultActivity = 6
	clockLayout     = "15:04:05"
)

type styles struct {
	header   lipgloss.Style
	title    lipgloss.Style
	section  lipgloss.Style
	muted    lipgloss.Style
	active   lipgloss.Style
	ok       lipgloss.Style
	failed   lipgloss.Style
	banner   lipgloss.Style
	errorBar lipgloss.Style
	stale    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1),
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		section:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("111")).MarginTop(1),
		muted:    r.NewStyle().Foreground(lipgloss.Color("244")),
		active:   r.NewStyle().Foreground(lipgloss.Color("220")),
		ok:       r.NewStyle().Foreground(lipgloss.Color("42")),
		failed:   r.NewStyle().Foreground(lipgloss.Color("203")),
		banner:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")).Border(lipgloss.RoundedBorder()).Padding(0, 1),
		errorBar: r.NewStyle().Bold(true).Foreground(lipgloss.Color("203")).Border(lipgloss.RoundedBorder()).Padding(0, 1),
		stale:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220")).Padding(0, 1),
	}
}

// Renderer draws views. Colors follow the output: a non-terminal writer
// gets plain text.
type Renderer struct {
	st       styles
	width    int
	entries  int
	toolRows int
	activity int
	loc      *time.Location
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithWidth sets the wrap width.
func WithWidth(w int) Option {
	return func(r *Renderer) {
		if w > 20 {
			r.width = w
		}
	}
}

// WithMaxEntries caps the journal section.
func WithMaxEntries(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.entries = n
		}
	}
}

// WithLocation sets the zone clock times are shown in.
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// New creates a Renderer whose color profile matches out.
func New(out io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		st:       newStyles(lipgloss.NewRenderer(out)),
		width:    defaultWidth,
		entries:  defaultEntries,
		toolRows: defaultToolRows,
		activity: defaultActivity,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render draws v.
func (r *Renderer) Render(v snapshot.View) string {
	var b strings.Builder
	r.header(&b, v)
	r.stats(&b, v)
	r.journal(&b, v)
	r.tasks(&b, v)
	r.toolCalls(&b, v)
	r.activityFeed(&b, v)
	r.observations(&b, v)
	r.warnings(&b, v)
	return b.String()
}

func (r *Renderer) header(b *strings.Builder, v snapshot.View) {
	line := r.st.header.Render("kansoku") + " " + r.st.title.Render(format.Truncate(v.Status.Objective, r.width-20))
	if v.Stale {
		line += " " + r.st.stale.Render("STALE")
	}
	b.WriteString(line + "\n")

	meta := string(v.Status.State)
	if v.Status.Runtime != "" {
		meta += " · " + v.Status.Runtime
	}
	b.WriteString(r.st.muted.Render(meta) + "\n")

	if bn := v.Status.Banner; bn != nil {
		style := r.st.banner
		if bn.Error {
			style = r.st.errorBar
		}
		b.WriteString(style.Render(bn.Title+"\n"+bn.Message) + "\n")
	}
}

func (r *Renderer) stats(b *strings.Builder, v snapshot.View) {
	if v.Loading || v.Stats == nil {
		b.WriteString(r.st.muted.Render("Loading metrics...") + "\n")
		return
	}
	s := v.Stats
	fmt.Fprintf(b, "Iteration %d · Confidence %s · %s · %s · Cost %s (%s/iter)\n",
		s.Iteration, s.Confidence,
		format.Plural(s.Entities, "entity"), format.Plural(s.Claims, "claim"),
		s.TotalCost, s.CostPerIter)
}

func (r *Renderer) journal(b *strings.Builder, v snapshot.View) {
	b.WriteString(r.st.section.Render("Journal") + "\n")
	if len(v.Journal) == 0 {
		b.WriteString(r.st.muted.Render("  No journal entries yet") + "\n")
		return
	}
	shown := v.Journal[:min(r.entries, len(v.Journal))]
	for _, e := range shown {
		b.WriteString("  " + r.entryLine(e) + "\n")
		if e.Narrative != "" {
			b.WriteString(r.st.muted.Render("    "+format.Truncate(e.Narrative, r.width-6)) + "\n")
		}
	}
	if rest := len(v.Journal) - len(shown); rest > 0 {
		b.WriteString(r.st.muted.Render("  … "+format.Plural(int64(rest), "entry")+" not shown") + "\n")
	}
	if v.Dropped > 0 {
		b.WriteString(r.st.muted.Render("  "+format.Plural(int64(v.Dropped), "entry")+" skipped (unreadable timestamps)") + "\n")
	}
}

func (r *Renderer) entryLine(e model.JournalEntry) string {
	when := r.clock(e.Start)
	title := e.Icon + " " + e.Title
	if e.InProgress() {
		elapsed := ""
		if e.Metadata.Has("elapsed_ms") {
			elapsed = " " + format.Elapsed(e.Metadata.Int("elapsed_ms"))
		}
		return r.st.muted.Render(when) + " " + r.st.active.Render(title+" (running"+elapsed+")")
	}
	span := when
	if e.End != e.Start {
		span += "–" + r.clock(e.End)
	}
	return r.st.muted.Render(span) + " " + title
}

func (r *Renderer) tasks(b *strings.Builder, v snapshot.View) {
	if v.Tasks == nil {
		return
	}
	b.WriteString(r.st.section.Render("Tasks") + "\n")
	b.WriteString("  " + strings.Join(v.Tasks.Summary, " · ") + "\n")
}

func (r *Renderer) toolCalls(b *strings.Builder, v snapshot.View) {
	if len(v.ToolCalls) == 0 {
		return
	}
	b.WriteString(r.st.section.Render("Tool calls") + "\n")
	for _, tc := range v.ToolCalls[:min(r.toolRows, len(v.ToolCalls))] {
		status := r.st.active
		switch tc.Status {
		case model.StatusSuccess:
			status = r.st.ok
		case model.StatusFailed:
			status = r.st.failed
		}
		line := fmt.Sprintf("  %s %s", status.Render(tc.Icon), tc.Tool)
		if tc.Summary != "" {
			line += " " + r.st.muted.Render(tc.Summary)
		}
		if tc.Duration != "" {
			line += " " + r.st.muted.Render("("+tc.Duration+")")
		}
		b.WriteString(line + "\n")
	}
}

func (r *Renderer) activityFeed(b *strings.Builder, v snapshot.View) {
	b.WriteString(r.st.section.Render("Activity") + "\n")
	if len(v.Activity.Items) == 0 {
		b.WriteString(r.st.muted.Render("  "+v.Activity.Empty) + "\n")
		return
	}
	for _, it := range v.Activity.Items[:min(r.activity, len(v.Activity.Items))] {
		b.WriteString("  " + r.st.muted.Render(r.clock(it.At)) + " " + format.Truncate(it.Text, r.width-12) + "\n")
	}
}

func (r *Renderer) observations(b *strings.Builder, v snapshot.View) {
	if len(v.Observations) == 0 {
		return
	}
	b.WriteString(r.st.section.Render("Observations") + "\n")
	for _, o := range v.Observations {
		line := fmt.Sprintf("  %s %s: %s", format.SeverityIcon(o.Severity), o.Component, o.Observation)
		if o.Severity == model.SeverityCritical {
			line = r.st.failed.Render(line)
		}
		b.WriteString(line + "\n")
	}
}

func (r *Renderer) warnings(b *strings.Builder, v snapshot.View) {
	for _, w := range v.Warnings {
		b.WriteString(r.st.failed.Render(fmt.Sprintf("⚠ %s: %d of %d lines could not be read", w.File, w.Corrupted, w.Total)) + "\n")
	}
}

func (r *Renderer) clock(i model.Instant) string {
	if !i.Valid() {
		return "--:--:--"
	}
	return i.Time().In(r.loc).Format(clockLayout)
}
