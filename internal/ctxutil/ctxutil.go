// Package ctxutil provides shared context key accessors.
//
// server imports mcp to mount the MCP transport, and the MCP tools need the
// viewer claims that server's auth middleware stores. Both packages import
// ctxutil instead of each other.
package ctxutil

import (
	"context"

	"github.com/ashita-ai/kansoku/internal/auth"
)

type contextKey string

const keyClaims contextKey = "claims"

// WithClaims returns a new context carrying the given claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, keyClaims, claims)
}

// ClaimsFromContext extracts the viewer claims from the context.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if v, ok := ctx.Value(keyClaims).(*auth.Claims); ok {
		return v
	}
	return nil
}

// ViewerFromContext returns the viewer name, or "anonymous" when the
// context carries no claims.
func ViewerFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil && c.Viewer != "" {
		return c.Viewer
	}
	return "anonymous"
}
