package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
)

// KeyFunc names the caller a request is charged to. An empty key skips
// limiting.
type KeyFunc func(r *http.Request) string

// RejectFunc writes the response for a limited request.
type RejectFunc func(w http.ResponseWriter, r *http.Request, d Decision)

// Middleware enforces limiter on next. Limiter failures let the request
// through.
func Middleware(limiter Limiter, key KeyFunc, reject RejectFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			d, err := limiter.Allow(r.Context(), k)
			if err != nil {
				logger.Warn("ratelimit: limiter error, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				secs := int(math.Max(1, math.Ceil(d.RetryAfter.Seconds())))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				reject(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPKeyFunc keys on the connection's remote address. X-Forwarded-For is
// not trusted.
func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
