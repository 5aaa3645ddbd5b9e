// Package kansoku is the public API for embedding the Kansoku session viewer.
//
// Kansoku polls the documents a multi-agent research session writes (an
// append-only event log plus metrics, session and task snapshots), rebuilds
// a timeline journal from them on every poll, and serves it over HTTP, SSE
// and MCP:
//
//	app, err := kansoku.New(
//	    kansoku.WithVersion(version),
//	    kansoku.WithLogger(logger),
//	    kansoku.WithSource("/var/run/research/session-42"),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The root package imports internal/*, never the reverse. Public types
// (Sequence, ViewSummary) are standalone structs; the conversions live here
// because this is the only file that sees both sides of the boundary.
package kansoku

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/kansoku/api"
	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/config"
	"github.com/ashita-ai/kansoku/internal/journal"
	"github.com/ashita-ai/kansoku/internal/mcp"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/pairing"
	"github.com/ashita-ai/kansoku/internal/ratelimit"
	"github.com/ashita-ai/kansoku/internal/server"
	"github.com/ashita-ai/kansoku/internal/service/watch"
	"github.com/ashita-ai/kansoku/internal/snapshot"
	"github.com/ashita-ai/kansoku/internal/telemetry"
	"github.com/ashita-ai/kansoku/internal/uistate"
)

// App is the Kansoku server lifecycle. Construct with New(), run with Run().
type App struct {
	cfg          config.Config
	poller       *watch.Poller
	srv          *server.Server
	store        *uistate.Store // nil when KANSOKU_STATE_DB is empty
	limiter      ratelimit.Limiter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New loads configuration and wires every subsystem. It does not poll or
// accept HTTP connections; call Run.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.source != "" {
		cfg.Source = o.source
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	seqs := make([]journal.Sequence, 0, len(o.sequences))
	for _, s := range o.sequences {
		js, err := toJournalSequence(s)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, js)
	}

	logger.Info("kansoku starting", "version", version, "port", cfg.Port, "source", cfg.Source)

	otelShutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	a := &App{cfg: cfg, otelShutdown: otelShutdown, logger: logger, version: version}
	if err := a.wire(seqs, o.hooks); err != nil {
		a.cleanup()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(seqs []journal.Sequence, hooks []ViewHook) error {
	cfg, logger := a.cfg, a.logger

	var store server.UIStore
	if cfg.StateDB != "" {
		s, err := uistate.Open(context.Background(), cfg.StateDB, logger)
		if err != nil {
			return fmt.Errorf("ui state: %w", err)
		}
		a.store = s
		store = s
		logger.Info("ui state: enabled", "path", cfg.StateDB)
	} else {
		logger.Info("ui state: disabled (no KANSOKU_STATE_DB)")
	}

	broker := server.NewBroker(logger)
	pollOpts := []watch.Option{watch.WithPublisher(broker)}
	if a.store != nil {
		pollOpts = append(pollOpts, watch.WithKnownTaskStore(a.store))
	}
	for _, h := range hooks {
		pollOpts = append(pollOpts, watch.WithPublisher(&hookAdapter{hook: h, logger: logger}))
	}
	poller, err := watch.FromConfig(cfg, logger, seqs, pollOpts...)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	a.poller = poller

	var jwtMgr *auth.JWTManager
	var apiKey *auth.KeyHash
	if cfg.AuthEnabled() {
		jwtMgr, err = auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		if cfg.APIKeyHash != "" {
			apiKey, err = auth.ParseKeyHash(cfg.APIKeyHash)
			if err != nil {
				return fmt.Errorf("auth: KANSOKU_API_KEY_HASH: %w", err)
			}
		}
		logger.Info("auth: enabled", "token_exchange", apiKey != nil)
	} else {
		logger.Warn("auth: disabled (no KANSOKU_JWT_PUBLIC_KEY), every request acts as operator")
	}

	a.limiter = ratelimit.NewMemoryLimiter(cfg.RefreshRate, cfg.RefreshBurst)

	srvCfg := server.ServerConfig{
		Views:               poller,
		Logger:              logger,
		Broker:              broker,
		Store:               store,
		JWTMgr:              jwtMgr,
		APIKey:              apiKey,
		Limiter:             a.limiter,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             a.version,
		Source:              cfg.Source,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		UIEnabled:           cfg.UIEnabled,
		OpenAPISpec:         api.OpenAPISpec,
	}
	if cfg.MCPEnabled {
		srvCfg.MCPServer = mcp.New(poller, logger, a.version).MCPServer()
	}
	a.srv = server.New(srvCfg)
	return nil
}

// Handler returns the root HTTP handler, for embedding in another server.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run starts polling and the HTTP server, then blocks until ctx is
// cancelled or the server fails. On return, Shutdown has been called.
func (a *App) Run(ctx context.Context) error {
	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()
	go a.poller.Run(pollCtx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	stopPolling()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown drains in-flight HTTP requests and releases the state store,
// the rate limiter and the OTEL providers.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("kansoku shutting down")
	var err error
	if a.srv != nil {
		if serr := a.srv.Shutdown(ctx); serr != nil {
			a.logger.Error("http shutdown error", "error", serr)
			err = serr
		}
	}
	a.cleanup()
	a.logger.Info("kansoku stopped")
	return err
}

func (a *App) cleanup() {
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("ui state: close", "error", err)
		}
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
}

// toJournalSequence converts a public Sequence to the builder's form.
func toJournalSequence(s Sequence) (journal.Sequence, error) {
	if s.StartType == "" || s.EndType == "" || s.Kind == "" {
		return journal.Sequence{}, fmt.Errorf("kansoku: sequence %q needs StartType, EndType and Kind", s.Name)
	}
	running := s.RunningKind
	if running == "" {
		running = s.Kind + "_running"
	}
	statusField := s.StatusField
	if statusField == "" {
		statusField = "status"
	}
	ceiling := s.Ceiling
	if ceiling <= 0 {
		ceiling = pairing.NoCeiling
	}
	var key pairing.KeyFunc
	if s.KeyField != "" {
		key = pairing.DataKey(s.KeyField)
	}
	name := s.Name
	if name == "" {
		name = s.Kind
	}

	draft := func(kind string) func(op model.PairedOperation) journal.Draft {
		return func(op model.PairedOperation) journal.Draft {
			d := model.Data{}
			for k, v := range op.Start.Data {
				d[k] = v
			}
			if op.End != nil {
				for k, v := range op.End.Data {
					d[k] = v
				}
			}
			if s.KeyField != "" && op.Key != "" && !d.Has(s.KeyField) {
				d[s.KeyField] = op.Key
			}
			d["status"] = string(op.Status)
			return journal.Draft{Kind: model.EntryKind(kind), Agent: d.Str("agent"), Data: d}
		}
	}

	return journal.Sequence{
		Name: name,
		Rule: pairing.Rule{
			Kind:      name,
			StartType: model.EventType(s.StartType),
			EndType:   model.EventType(s.EndType),
			Key:       key,
			Ceiling:   ceiling,
			Status:    pairing.StatusFromField(statusField, s.SuccessValues...),
		},
		Completed: draft(s.Kind),
		Running:   draft(running),
	}, nil
}

// hookAdapter publishes poll results to a public ViewHook.
type hookAdapter struct {
	hook   ViewHook
	logger *slog.Logger
}

func (h *hookAdapter) Publish(v snapshot.View) {
	if err := h.hook.OnView(context.Background(), summarize(v)); err != nil {
		h.logger.Warn("view hook failed", "error", err)
	}
}

func summarize(v snapshot.View) ViewSummary {
	s := ViewSummary{
		Objective:  v.Status.Objective,
		State:      string(v.Status.State),
		EventCount: v.EventCount,
		Entries:    len(v.Journal),
		Operations: len(v.Operations),
		Dropped:    v.Dropped,
		Stale:      v.Stale,
	}
	if v.GeneratedAt.Valid() {
		s.GeneratedAt = v.GeneratedAt.Time()
	}
	for _, e := range v.Journal {
		if e.InProgress() {
			s.Running++
		}
	}
	for _, w := range v.Warnings {
		s.Corrupted += w.Corrupted
	}
	return s
}
