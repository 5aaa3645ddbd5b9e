// Package source reads the session documents (event log and snapshots) from
// a local directory or a remote base URL.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// Document names, relative to the source root.
const (
	EventsFile   = "events.jsonl"
	MetricsFile  = "dashboard-metrics.json"
	SessionFile  = "session.json"
	TaskFile     = "task-queue.json"
	defaultLimit = 64 << 20
)

// ErrNotFound is returned by Open when the document does not exist (yet).
var ErrNotFound = errors.New("source: not found")

// Source opens session documents by name.
type Source interface {
	// Open returns the document content. It returns an error wrapping
	// ErrNotFound when the document does not exist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// String describes the source for logs and health output.
	String() string
}

// Options configure the constructed source.
type Options struct {
	// Timeout bounds one HTTP fetch. Zero means 10s.
	Timeout time.Duration
	// Token is sent as a bearer token by HTTP sources.
	Token string
}

// Constructor creates a Source for a location.
type Constructor func(location string, opts Options) (Source, error)

var registry = map[string]Constructor{
	"":      newDir,
	"file":  newDir,
	"http":  newHTTP,
	"https": newHTTP,
}

// New creates the Source for location: a directory path, a file:// URL or an
// http(s):// base URL.
func New(location string, opts Options) (Source, error) {
	if location == "" {
		location = "."
	}
	scheme := ""
	if i := strings.Index(location, "://"); i > 0 {
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("source: parse %q: %w", location, err)
		}
		scheme = strings.ToLower(u.Scheme)
	}
	ctor, ok := registry[scheme]
	if !ok {
		return nil, fmt.Errorf("source: unsupported scheme %q", scheme)
	}
	return ctor(location, opts)
}

// ReadAll opens name and reads it fully. Documents larger than 64 MiB are
// rejected.
func ReadAll(ctx context.Context, src Source, name string) ([]byte, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	b, err := io.ReadAll(io.LimitReader(rc, defaultLimit+1))
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", name, err)
	}
	if len(b) > defaultLimit {
		return nil, fmt.Errorf("source: %s exceeds %d bytes", name, defaultLimit)
	}
	return b, nil
}
