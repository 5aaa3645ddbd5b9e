package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/kansoku/internal/eventlog"
	"github.com/ashita-ai/kansoku/internal/snapshot"
)

// Fetcher reads all session documents for one poll.
type Fetcher struct {
	src     Source
	decoder *eventlog.Decoder
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(src Source, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{src: src, decoder: eventlog.NewDecoder(logger), logger: logger}
}

// Fetch reads the event log and the three snapshot documents concurrently.
// The documents are independent writes of another process, so they are
// only eventually consistent with each other.
//
// A missing document leaves its section empty. A malformed snapshot
// document is logged and also left empty. Any other failure (an unreadable
// event log included) fails the whole fetch.
func (f *Fetcher) Fetch(ctx context.Context) (snapshot.Inputs, error) {
	var (
		in       snapshot.Inputs
		metrics  []byte
		session  []byte
		tasks    []byte
		hasTasks bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rc, err := f.src.Open(gctx, EventsFile)
		if errors.Is(err, ErrNotFound) {
			in.Log = eventlog.Result{File: EventsFile}
			return nil
		}
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		in.Log, err = f.decoder.Decode(EventsFile, rc)
		return err
	})
	g.Go(func() (err error) {
		metrics, _, err = f.optional(gctx, MetricsFile)
		return err
	})
	g.Go(func() (err error) {
		session, _, err = f.optional(gctx, SessionFile)
		return err
	})
	g.Go(func() (err error) {
		tasks, hasTasks, err = f.optional(gctx, TaskFile)
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshot.Inputs{}, fmt.Errorf("source: fetch from %s: %w", f.src, err)
	}

	if metrics != nil {
		m, err := snapshot.DecodeMetrics(metrics)
		if err != nil {
			f.logger.Warn("source: skipping document", "file", MetricsFile, "error", err)
		}
		in.Metrics = m
	}
	if session != nil {
		s, err := snapshot.DecodeSession(session)
		if err != nil {
			f.logger.Warn("source: skipping document", "file", SessionFile, "error", err)
		}
		in.Session = s
	}
	if hasTasks {
		t, err := snapshot.DecodeTasks(tasks)
		if err != nil {
			f.logger.Warn("source: skipping document", "file", TaskFile, "error", err)
		} else {
			in.Tasks, in.HasTasks = t, true
		}
	}
	return in, nil
}

// optional reads name, reporting found=false when it does not exist.
func (f *Fetcher) optional(ctx context.Context, name string) ([]byte, bool, error) {
	b, err := ReadAll(ctx, f.src, name)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}
