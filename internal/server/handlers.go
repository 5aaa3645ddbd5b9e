package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/service/sessionhealth"
	"github.com/ashita-ai/kansoku/internal/service/watch"
	"github.com/ashita-ai/kansoku/internal/snapshot"
)

// Views is the poller as the handlers see it.
type Views interface {
	View() (snapshot.View, error)
	Refresh(ctx context.Context) (snapshot.View, error)
	Status() watch.Status
}

// UIStore persists presentation state.
type UIStore interface {
	State(ctx context.Context) (model.UIState, error)
	SetExpanded(ctx context.Context, entryID string) error
	ClearExpanded(ctx context.Context, entryID string) error
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	views               Views
	broker              *Broker
	store               UIStore
	jwtMgr              *auth.JWTManager
	apiKey              *auth.KeyHash
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	source              string
	maxRequestBodyBytes int64
	openAPISpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Broker, Store, JWTMgr, APIKey.
type HandlersDeps struct {
	Views               Views
	Broker              *Broker
	Store               UIStore
	JWTMgr              *auth.JWTManager
	APIKey              *auth.KeyHash
	Logger              *slog.Logger
	Version             string
	Source              string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxRequestBodyBytes <= 0 {
		d.MaxRequestBodyBytes = 1 << 20
	}
	return &Handlers{
		views:               d.Views,
		broker:              d.Broker,
		store:               d.Store,
		jwtMgr:              d.JWTMgr,
		apiKey:              d.APIKey,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		source:              d.Source,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openAPISpec:         d.OpenAPISpec,
	}
}

// currentView returns the last view, polling once if there is none yet.
func (h *Handlers) currentView(w http.ResponseWriter, r *http.Request) (snapshot.View, bool) {
	v, err := h.views.View()
	if errors.Is(err, watch.ErrNoView) {
		v, err = h.views.Refresh(r.Context())
	}
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable, "no view available yet: "+err.Error())
		return snapshot.View{}, false
	}
	return v, true
}

// HandleView handles GET /v1/view.
func (h *Handlers) HandleView(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}
	writeView(w, r, v, v.Stale)
}

// HandleJournal handles GET /v1/journal?agent=&kind=&in_progress=&limit=.
func (h *Handlers) HandleJournal(w http.ResponseWriter, r *http.Request) {
	q := snapshot.JournalQuery{
		Agent: r.URL.Query().Get("agent"),
		Kinds: snapshot.ParseKinds(r.URL.Query().Get("kind")),
	}
	if s := r.URL.Query().Get("in_progress"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "in_progress must be true or false")
			return
		}
		q.InProgress = &b
	}
	limit := queryLimit(r, defaultListLimit)

	v, ok := h.currentView(w, r)
	if !ok {
		return
	}
	entries := q.Apply(v.Journal)
	writeList(w, r, entries[:min(limit, len(entries))], len(entries), limit, v.Stale)
}

// HandleOperations handles GET /v1/operations?tool=&agent=&status=&limit=.
func (h *Handlers) HandleOperations(w http.ResponseWriter, r *http.Request) {
	q := snapshot.OperationQuery{
		Tool:   r.URL.Query().Get("tool"),
		Agent:  r.URL.Query().Get("agent"),
		Status: model.OperationStatus(r.URL.Query().Get("status")),
	}
	switch q.Status {
	case "", model.StatusSuccess, model.StatusFailed, model.StatusPending:
	default:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "status must be success, failed or pending")
		return
	}
	limit := queryLimit(r, defaultListLimit)

	v, ok := h.currentView(w, r)
	if !ok {
		return
	}
	ops := q.Apply(v.Operations)
	writeList(w, r, ops[:min(limit, len(ops))], len(ops), limit, v.Stale)
}

// HandleActivity handles GET /v1/activity?limit=.
func (h *Handlers) HandleActivity(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}
	limit := queryLimit(r, len(v.Activity.Items))
	items := v.Activity.Items[:min(limit, len(v.Activity.Items))]
	writeView(w, r, snapshot.Activity{Items: items, Empty: v.Activity.Empty}, v.Stale)
}

// statusResponse is the body of GET /v1/status.
type statusResponse struct {
	Session snapshot.Status        `json:"session"`
	Stats   *snapshot.Stats        `json:"stats"`
	Tasks   *snapshot.TaskCounts   `json:"tasks"`
	Health  *sessionhealth.Metrics `json:"health"`
	Poll    watch.Status           `json:"poll"`
}

// HandleStatus handles GET /v1/status.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}
	resp := statusResponse{
		Session: v.Status,
		Stats:   v.Stats,
		Health:  sessionhealth.Compute(v),
		Poll:    h.views.Status(),
	}
	if v.Tasks != nil {
		resp.Tasks = &v.Tasks.Counts
	}
	writeView(w, r, resp, v.Stale)
}

// HandleRefresh handles POST /v1/refresh.
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	v, err := h.views.Refresh(r.Context())
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable, "refresh failed: "+err.Error())
		return
	}
	writeView(w, r, v, v.Stale)
}

// HandleSubscribe handles GET /v1/subscribe (SSE). A new subscriber means
// a viewer just became active, so it also triggers a refresh.
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable, "streaming not configured")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long-lived connection: lift the server's WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	go func() {
		if _, err := h.views.Refresh(context.WithoutCancel(r.Context())); err != nil {
			h.logger.Debug("subscribe: refresh failed", "error", err)
		}
	}()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	st := h.views.Status()
	resp := model.HealthResponse{
		Status:       "healthy",
		Version:      h.version,
		Source:       h.source,
		LastError:    st.LastError,
		PollFailures: st.Failures,
		Uptime:       int64(time.Since(h.startedAt).Seconds()),
	}
	if !st.LastPollAt.IsZero() {
		t := st.LastPollAt
		resp.LastPollAt = &t
	}

	if _, err := h.views.View(); err != nil {
		resp.Status = "starting"
	}
	if st.LastError != "" {
		resp.Status = "degraded"
	}
	if h.broker != nil {
		resp.Subscribers = h.broker.SubscriberCount()
	}
	if h.store != nil {
		resp.StateStore = "connected"
		if err := h.store.Ping(r.Context()); err != nil {
			resp.StateStore = "disconnected"
			resp.Status = "degraded"
		}
	}

	writeJSON(w, r, http.StatusOK, resp)
}

const (
	defaultListLimit = 50
	maxQueryLimit    = 1000
)

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// queryLimit returns the limit query parameter clamped to [1, maxQueryLimit].
func queryLimit(r *http.Request, defaultVal int) int {
	return max(1, min(queryInt(r, "limit", defaultVal), maxQueryLimit))
}

// HandleOpenAPISpec serves the embedded OpenAPI document.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openAPISpec) == 0 {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "OpenAPI spec not available")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(h.openAPISpec)
}
