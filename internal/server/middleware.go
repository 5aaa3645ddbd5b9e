// Package server implements the HTTP API for the research session viewer:
// the current view and its slices, forced refreshes, an SSE stream of
// views, persisted UI state and the MCP transport.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/ctxutil"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/telemetry"
)

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// localViewer is the identity every request gets when auth is disabled.
var localViewer = &auth.Claims{Viewer: "local", Role: auth.RoleOperator}

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// ClaimsFromContext extracts the viewer claims from the context.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	return ctxutil.ClaimsFromContext(ctx)
}

// requestIDMiddleware assigns a unique request ID to each request.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), contextKeyRequestID, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request with structured fields.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestIDFromContext(r.Context()),
		}
		if tid := traceIDFromContext(r.Context()); tid != "" {
			attrs = append(attrs, "trace_id", tid)
		}
		if claims := ClaimsFromContext(r.Context()); claims != nil {
			attrs = append(attrs, "viewer", claims.Viewer)
		}

		level := slog.LevelInfo
		switch {
		case wrapped.statusCode >= 500:
			level = slog.LevelError
		case wrapped.statusCode >= 400:
			level = slog.LevelWarn
		case r.URL.Path == "/health":
			level = slog.LevelDebug
		}
		logger.Log(r.Context(), level, "http request", attrs...)
	})
}

// statusWriter records the response status. It forwards Flush so SSE
// streaming works through the middleware chain.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// httpMetrics are created once per server.
type httpMetrics struct {
	requests otelmetric.Int64Counter
	duration otelmetric.Float64Histogram
}

func newHTTPMetrics() httpMetrics {
	meter := telemetry.Meter("kansoku/http")
	var m httpMetrics
	m.requests, _ = meter.Int64Counter("http.server.request_count")
	m.duration, _ = meter.Float64Histogram("http.server.duration", otelmetric.WithUnit("ms"))
	return m
}

// tracingMiddleware creates an OTEL span for each request and records
// request count and duration.
func tracingMiddleware(m httpMetrics, next http.Handler) http.Handler {
	tracer := telemetry.Tracer("kansoku/http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.Path),
				attribute.String("http.request_id", RequestIDFromContext(r.Context())),
			),
		)
		defer span.End()

		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", wrapped.statusCode))
		attrs := otelmetric.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.URL.Path),
			attribute.String("http.status_code", strconv.Itoa(wrapped.statusCode)),
		)
		if m.requests != nil {
			m.requests.Add(ctx, 1, attrs)
		}
		if m.duration != nil {
			m.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		}
	})
}

// traceIDFromContext extracts the OTEL trace ID from the context, if any.
func traceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// authMiddleware validates bearer tokens on API paths and stores the
// claims in the context. With no manager every request acts as the local
// operator. EventSource cannot set headers, so the stream also accepts an
// access_token query parameter.
func authMiddleware(jwtMgr *auth.JWTManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if jwtMgr == nil {
			next.ServeHTTP(w, r.WithContext(ctxutil.WithClaims(r.Context(), localViewer)))
			return
		}
		if !isAPIPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, err.Error())
			return
		}
		claims, err := jwtMgr.ValidateToken(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid or expired token")
			return
		}

		trace.SpanFromContext(r.Context()).SetAttributes(
			attribute.String("kansoku.viewer", claims.Viewer),
			attribute.String("kansoku.role", string(claims.Role)),
		)
		ctx := ctxutil.WithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if r.URL.Path == "/v1/subscribe" {
			if t := r.URL.Query().Get("access_token"); t != "" {
				return t, nil
			}
		}
		return "", errors.New("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errors.New("invalid authorization format")
	}
	return token, nil
}

// requireRole returns middleware that enforces a minimum role.
func requireRole(minRole auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "no claims in context")
				return
			}
			if !claims.Role.AtLeast(minRole) {
				writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// recoveryMiddleware turns a handler panic into a 500.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("http handler panic",
					"panic", fmt.Sprint(rec),
					"path", r.URL.Path,
					"request_id", RequestIDFromContext(r.Context()),
					"stack", string(debug.Stack()),
				)
				writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func meta(r *http.Request, stale bool) model.ResponseMeta {
	return model.ResponseMeta{
		RequestID: RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
		Stale:     stale,
	}
}

// writeJSON writes a JSON response with the standard envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, status, model.APIResponse{Data: data, Meta: meta(r, false)})
}

// writeView is writeJSON with the view's staleness in the meta block.
func writeView(w http.ResponseWriter, r *http.Request, data any, stale bool) {
	writeEnvelope(w, http.StatusOK, model.APIResponse{Data: data, Meta: meta(r, stale)})
}

// writeList writes a list envelope. total counts every match before limit.
func writeList(w http.ResponseWriter, r *http.Request, data any, total, limit int, stale bool) {
	writeEnvelope(w, http.StatusOK, model.ListResponse{
		Data:    data,
		Total:   total,
		HasMore: total > limit,
		Limit:   limit,
		Meta:    meta(r, stale),
	})
}

// writeError writes a JSON error response with the standard envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, status, model.APIError{
		Error: model.ErrorDetail{Code: code, Message: message},
		Meta:  meta(r, false),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON decodes a bounded JSON request body into target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}
