package kansoku

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported: callers use the With* functions.
type resolvedOptions struct {
	port      int
	source    string
	logger    *slog.Logger
	version   string
	sequences []Sequence
	hooks     []ViewHook
}

// WithPort overrides the TCP port from config (KANSOKU_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithSource overrides the session location from config (KANSOKU_SOURCE env
// var): a directory, a file:// URL or an http(s):// base URL.
func WithSource(location string) Option {
	return func(o *resolvedOptions) { o.source = location }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithSequences adds journal sequences after the built-in ones.
func WithSequences(seqs ...Sequence) Option {
	return func(o *resolvedOptions) { o.sequences = append(o.sequences, seqs...) }
}

// WithViewHook registers a hook called after every poll.
func WithViewHook(h ViewHook) Option {
	return func(o *resolvedOptions) { o.hooks = append(o.hooks, h) }
}
