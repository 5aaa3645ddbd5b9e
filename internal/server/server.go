package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/ratelimit"
)

// Server is the kansoku HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Broker, Store, JWTMgr, APIKey, Limiter, MCPServer.
type ServerConfig struct {
	// Required dependencies.
	Views  Views
	Logger *slog.Logger

	// Optional dependencies (nil = disabled).
	Broker    *Broker
	Store     UIStore
	JWTMgr    *auth.JWTManager
	APIKey    *auth.KeyHash
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	Source              string
	MaxRequestBodyBytes int64
	UIEnabled           bool
	OpenAPISpec         []byte
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := NewHandlers(HandlersDeps{
		Views:               cfg.Views,
		Broker:              cfg.Broker,
		Store:               cfg.Store,
		JWTMgr:              cfg.JWTMgr,
		APIKey:              cfg.APIKey,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		Source:              cfg.Source,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	authRL := ratelimit.Middleware(cfg.Limiter, prefixedIPKey("auth"), rejectRateLimited, cfg.Logger)
	refreshRL := ratelimit.Middleware(cfg.Limiter, prefixedIPKey("refresh"), rejectRateLimited, cfg.Logger)

	mux := http.NewServeMux()

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Token exchange (no auth, rate limited by IP).
	mux.Handle("POST /auth/token", authRL(http.HandlerFunc(h.HandleAuthToken)))

	// Read endpoints (viewer+).
	viewer := requireRole(auth.RoleViewer)
	mux.Handle("GET /v1/view", viewer(http.HandlerFunc(h.HandleView)))
	mux.Handle("GET /v1/journal", viewer(http.HandlerFunc(h.HandleJournal)))
	mux.Handle("GET /v1/operations", viewer(http.HandlerFunc(h.HandleOperations)))
	mux.Handle("GET /v1/activity", viewer(http.HandlerFunc(h.HandleActivity)))
	mux.Handle("GET /v1/status", viewer(http.HandlerFunc(h.HandleStatus)))

	// Subscription endpoint (viewer+, no rate limit: long-lived connection).
	mux.Handle("GET /v1/subscribe", viewer(http.HandlerFunc(h.HandleSubscribe)))

	// Presentation state is per deployment, so any viewer may toggle it.
	mux.Handle("GET /v1/ui/state", viewer(http.HandlerFunc(h.HandleUIState)))
	mux.Handle("PUT /v1/ui/expanded/{entry_id}", viewer(http.HandlerFunc(h.HandleExpand)))
	mux.Handle("DELETE /v1/ui/expanded/{entry_id}", viewer(http.HandlerFunc(h.HandleCollapse)))

	// Forced poll (operator, rate limited by IP).
	operator := requireRole(auth.RoleOperator)
	mux.Handle("POST /v1/refresh", refreshRL(operator(http.HandlerFunc(h.HandleRefresh))))

	// MCP StreamableHTTP transport (viewer+).
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", viewer(mcpHTTP))
	}

	// Dashboard at the root. Registered last so every API route takes
	// priority via the mux's longest-match rule.
	if cfg.UIEnabled {
		mux.Handle("/", newSPAHandler(DashboardFS()))
		cfg.Logger.Info("ui enabled, serving dashboard at /")
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(newHTTPMetrics(), handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// prefixedIPKey gives each rate-limited route its own bucket per client IP.
func prefixedIPKey(prefix string) ratelimit.KeyFunc {
	return func(r *http.Request) string {
		return prefix + ":" + ratelimit.IPKeyFunc(r)
	}
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, _ ratelimit.Decision) {
	writeError(w, r, http.StatusTooManyRequests, model.ErrCodeRateLimited, "rate limit exceeded")
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
