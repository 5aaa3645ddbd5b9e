package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/render"
	"github.com/ashita-ai/kansoku/internal/service/watch"
	"github.com/ashita-ai/kansoku/internal/snapshot"
)

const clearScreen = "\x1b[H\x1b[2J"

// screen redraws the terminal on every poll.
type screen struct {
	mu    sync.Mutex
	out   io.Writer
	r     *render.Renderer
	clear bool
}

func (s *screen) Publish(v snapshot.View) {
	text := s.r.Render(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clear {
		_, _ = io.WriteString(s.out, clearScreen)
	}
	_, _ = io.WriteString(s.out, text)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	src := fs.String("source", "", "session directory or URL (overrides KANSOKU_SOURCE)")
	interval := fs.Duration("interval", 0, "poll interval (overrides KANSOKU_POLL_INTERVAL)")
	width := fs.Int("width", 0, "render width in columns")
	entries := fs.Int("entries", 0, "journal entries to show")
	once := fs.Bool("once", false, "render one poll and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*src, *interval)
	if err != nil {
		return err
	}
	logger := textLogger(stderr)

	opts := []render.Option{render.WithWidth(*width)}
	if *entries > 0 {
		opts = append(opts, render.WithMaxEntries(*entries))
	}
	scr := &screen{out: stdout, r: render.New(stdout, opts...), clear: !*once && isTerminal(stdout)}

	p, err := watch.FromConfig(cfg, logger, nil, watch.WithPublisher(scr))
	if err != nil {
		return err
	}
	if *once {
		_, err := p.Refresh(ctx)
		return err
	}
	p.Run(ctx)
	return nil
}

// journalOutput is what the journal command prints.
type journalOutput struct {
	Total      int                       `json:"total"`
	EventCount int                       `json:"event_count"`
	Dropped    int                       `json:"dropped"`
	Stale      bool                      `json:"stale"`
	Warnings   []model.CorruptionWarning `json:"warnings,omitempty"`
	Entries    []model.JournalEntry      `json:"entries"`
}

func runJournal(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("journal", flag.ContinueOnError)
	fs.SetOutput(stderr)
	src := fs.String("source", "", "session directory or URL (overrides KANSOKU_SOURCE)")
	agent := fs.String("agent", "", "only entries for this agent")
	kinds := fs.String("kind", "", "comma separated entry kinds")
	running := fs.Bool("running", false, "only in-progress entries")
	limit := fs.Int("limit", 0, "keep the last N entries (0 keeps all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*src, 0)
	if err != nil {
		return err
	}
	p, err := watch.FromConfig(cfg, textLogger(stderr), nil)
	if err != nil {
		return err
	}
	v, err := p.Refresh(ctx)
	if err != nil {
		return err
	}

	q := snapshot.JournalQuery{Agent: *agent, Kinds: snapshot.ParseKinds(*kinds)}
	if *running {
		q.InProgress = running
	}
	entries := q.Apply(v.Journal)
	total := len(entries)
	if *limit > 0 && len(entries) > *limit {
		entries = entries[len(entries)-*limit:]
	}

	out := journalOutput{
		Total:      total,
		EventCount: v.EventCount,
		Dropped:    v.Dropped,
		Stale:      v.Stale,
		Warnings:   v.Warnings,
		Entries:    entries,
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	return nil
}
