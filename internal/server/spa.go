package server

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/ashita-ai/kansoku/internal/model"
)

//go:embed ui
var uiFiles embed.FS

// DashboardFS returns the embedded browser dashboard.
func DashboardFS() fs.FS {
	sub, err := fs.Sub(uiFiles, "ui")
	if err != nil {
		panic(err) // the embed directive guarantees the directory
	}
	return sub
}

// spaHandler serves the dashboard and falls back to index.html for any
// path that is not a file. API routes are registered on the mux first so
// they take priority.
type spaHandler struct {
	fs     http.FileSystem
	static http.Handler
}

func newSPAHandler(fsys fs.FS) http.Handler {
	httpFS := http.FS(fsys)
	return &spaHandler{
		fs:     httpFS,
		static: http.FileServer(httpFS),
	}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	urlPath := path.Clean(r.URL.Path)
	if urlPath == "." {
		urlPath = "/"
	}

	// Unmatched API paths are genuine 404s, not dashboard routes.
	if isAPIPath(urlPath) || strings.HasPrefix(urlPath, "/auth/") {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "endpoint not found")
		return
	}

	if urlPath != "/" {
		if f, err := h.fs.Open(urlPath); err == nil {
			_ = f.Close()
			setCacheHeaders(w, urlPath)
			h.static.ServeHTTP(w, r)
			return
		}
	}

	r.URL.Path = "/"
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.static.ServeHTTP(w, r)
}

// isAPIPath reports whether p needs a viewer identity.
func isAPIPath(p string) bool {
	return strings.HasPrefix(p, "/v1/") || p == "/mcp" || strings.HasPrefix(p, "/mcp/")
}

// setCacheHeaders keeps assets briefly cacheable. They are not content
// hashed, so they must revalidate after a short while.
func setCacheHeaders(w http.ResponseWriter, urlPath string) {
	if strings.HasPrefix(urlPath, "/assets/") {
		w.Header().Set("Cache-Control", "public, max-age=300, must-revalidate")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
}
