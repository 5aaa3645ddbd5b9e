package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSource fetches documents from a base URL. There are no retries: a
// failed fetch fails the poll, and the next poll tries again.
type HTTPSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// StatusError is a non-2xx, non-404 response.
type StatusError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// NewHTTP creates an HTTPSource. A zero timeout means 10s.
func NewHTTP(baseURL string, opts Options) *HTTPSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      opts.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func newHTTP(location string, opts Options) (Source, error) {
	return NewHTTP(location, opts), nil
}

// Open implements Source.
func (h *HTTPSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/"+name, nil)
	if err != nil {
		return nil, fmt.Errorf("source: request %s: %w", name, err)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	// Documents change between polls.
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: fetch %s: %w", name, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.Body, nil
	}

	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return nil, fmt.Errorf("source: fetch %s: %w", name, &StatusError{StatusCode: resp.StatusCode, Body: string(body)})
}

func (h *HTTPSource) String() string {
	return h.baseURL
}
