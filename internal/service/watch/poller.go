// Package watch runs the poll loop: fetch every session document, rebuild
// the view from scratch, publish it. The last good view is kept when a poll
// fails and is marked stale until a poll succeeds again.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/snapshot"
	"github.com/ashita-ai/kansoku/internal/telemetry"
)

// DefaultInterval is the poll period when none is configured.
const DefaultInterval = 3 * time.Second

// ErrNoView is returned by View before the first successful poll.
var ErrNoView = errors.New("watch: no view yet")

// Fetcher reads the session documents for one poll.
type Fetcher interface {
	Fetch(ctx context.Context) (snapshot.Inputs, error)
}

// Publisher receives every view the poller produces.
type Publisher interface {
	Publish(v snapshot.View)
}

// KnownTaskStore persists the task ids already seen, so "new" badges
// survive a restart. Failures are logged and never fail a poll.
type KnownTaskStore interface {
	KnownTaskIDs(ctx context.Context) (map[string]struct{}, error)
	AddKnownTaskIDs(ctx context.Context, ids []string) error
}

// Status is the poller's health.
type Status struct {
	LastPollAt time.Time `json:"last_poll_at"`
	LastError  string    `json:"last_error,omitempty"`
	Failures   int64     `json:"poll_failures"`
	Polls      int64     `json:"polls"`
}

// Poller owns the poll loop and the last view.
type Poller struct {
	fetcher   Fetcher
	assembler *snapshot.Assembler
	logger    *slog.Logger
	interval  time.Duration
	store     KnownTaskStore
	now       func() time.Time

	group singleflight.Group

	mu         sync.RWMutex
	view       *snapshot.View
	known      map[string]struct{}
	loaded     bool
	lastPollAt time.Time
	lastErr    error
	publishers []Publisher

	polls    atomic.Int64
	failures atomic.Int64

	tracer       trace.Tracer
	pollDuration metric.Float64Histogram
	pollFailures metric.Int64Counter
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the poll period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithKnownTaskStore persists seen task ids.
func WithKnownTaskStore(s KnownTaskStore) Option {
	return func(p *Poller) { p.store = s }
}

// WithPublisher adds a view subscriber.
func WithPublisher(pub Publisher) Option {
	return func(p *Poller) { p.publishers = append(p.publishers, pub) }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// New creates a Poller. Call Run to start polling.
func New(f Fetcher, a *snapshot.Assembler, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if a == nil {
		a = snapshot.NewAssembler(nil, nil)
	}
	p := &Poller{
		fetcher:   f,
		assembler: a,
		logger:    logger,
		interval:  DefaultInterval,
		now:       time.Now,
		known:     make(map[string]struct{}),
		tracer:    telemetry.Tracer("kansoku/watch"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.registerMetrics()
	return p
}

// AddPublisher subscribes pub to future views.
func (p *Poller) AddPublisher(pub Publisher) {
	p.mu.Lock()
	p.publishers = append(p.publishers, pub)
	p.mu.Unlock()
}

// Run polls immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("watch: polling", "interval", p.interval.String())
	_, _ = p.Refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.Refresh(ctx)
		}
	}
}

// Refresh polls now. Concurrent calls share one poll.
func (p *Poller) Refresh(ctx context.Context) (snapshot.View, error) {
	// The shared poll must not die with whichever caller arrived first.
	v, err, _ := p.group.Do("poll", func() (any, error) {
		pollCtx := context.WithoutCancel(ctx)
		return p.poll(pollCtx)
	})
	if err != nil {
		return snapshot.View{}, err
	}
	return v.(snapshot.View), nil
}

func (p *Poller) poll(ctx context.Context) (snapshot.View, error) {
	ctx, span := p.tracer.Start(ctx, "watch.poll")
	defer span.End()
	start := p.now()
	p.polls.Add(1)

	p.loadKnown(ctx)

	in, err := p.fetcher.Fetch(ctx)
	if err != nil {
		p.failures.Add(1)
		if p.pollFailures != nil {
			p.pollFailures.Add(ctx, 1)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		p.logger.Warn("watch: poll skipped", "error", err, "failures", p.failures.Load())

		p.mu.Lock()
		p.lastPollAt = start
		p.lastErr = err
		var stale *snapshot.View
		if p.view != nil {
			p.view.Stale = true
			cp := *p.view
			stale = &cp
		}
		pubs := p.publishers
		p.mu.Unlock()

		if stale != nil {
			for _, pub := range pubs {
				pub.Publish(*stale)
			}
		}
		return snapshot.View{}, err
	}

	p.mu.RLock()
	known := p.known
	p.mu.RUnlock()

	v, next := p.assembler.Assemble(in, known, model.InstantOf(p.now()))
	added := newIDs(known, next)

	p.mu.Lock()
	p.view = &v
	p.known = next
	p.lastPollAt = start
	p.lastErr = nil
	pubs := p.publishers
	p.mu.Unlock()

	if len(added) > 0 && p.store != nil {
		if err := p.store.AddKnownTaskIDs(ctx, added); err != nil {
			p.logger.Warn("watch: persist known tasks", "error", err)
		}
	}

	span.SetAttributes(
		attribute.Int("kansoku.journal.entries", len(v.Journal)),
		attribute.Int("kansoku.log.events", v.EventCount),
	)
	if p.pollDuration != nil {
		p.pollDuration.Record(ctx, float64(p.now().Sub(start).Milliseconds()))
	}
	p.logger.Debug("watch: poll complete",
		"entries", len(v.Journal), "events", v.EventCount, "dropped", v.Dropped)

	for _, pub := range pubs {
		pub.Publish(v)
	}
	return v, nil
}

// loadKnown seeds the known task set from the store once.
func (p *Poller) loadKnown(ctx context.Context) {
	p.mu.RLock()
	loaded := p.loaded
	p.mu.RUnlock()
	if loaded {
		return
	}

	var ids map[string]struct{}
	if p.store != nil {
		var err error
		ids, err = p.store.KnownTaskIDs(ctx)
		if err != nil {
			p.logger.Warn("watch: load known tasks", "error", err)
			return
		}
	}

	p.mu.Lock()
	maps.Copy(p.known, ids)
	p.loaded = true
	p.mu.Unlock()
}

// View returns the last view, which may be stale.
func (p *Poller) View() (snapshot.View, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.view == nil {
		return snapshot.View{}, ErrNoView
	}
	return *p.view, nil
}

// Status reports poll health.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := Status{
		LastPollAt: p.lastPollAt,
		Failures:   p.failures.Load(),
		Polls:      p.polls.Load(),
	}
	if p.lastErr != nil {
		st.LastError = p.lastErr.Error()
	}
	return st
}

// Interval returns the poll period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

func newIDs(before, after map[string]struct{}) []string {
	var out []string
	for id := range after {
		if _, ok := before[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func (p *Poller) registerMetrics() {
	meter := telemetry.Meter("kansoku/watch")

	p.pollDuration, _ = meter.Float64Histogram("kansoku.poll.duration",
		metric.WithDescription("Time to fetch documents and rebuild the view"),
		metric.WithUnit("ms"),
	)
	p.pollFailures, _ = meter.Int64Counter("kansoku.poll.failures",
		metric.WithDescription("Polls skipped because a document could not be read"),
	)
	_, _ = meter.Int64ObservableGauge("kansoku.journal.entries",
		metric.WithDescription("Entries in the current journal"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if v, err := p.View(); err == nil {
				o.Observe(int64(len(v.Journal)))
			}
			return nil
		}),
	)
	_, _ = meter.Int64ObservableGauge("kansoku.log.corrupted_lines",
		metric.WithDescription("Corrupted lines in the event log at the last poll"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if v, err := p.View(); err == nil {
				var n int64
				for _, w := range v.Warnings {
					n += int64(w.Corrupted)
				}
				o.Observe(n)
			}
			return nil
		}),
	)
}
