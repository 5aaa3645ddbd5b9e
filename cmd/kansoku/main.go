package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/kansoku"
	"github.com/ashita-ai/kansoku/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

const usage = `usage: kansoku <command> [flags]

commands:
  serve     poll the session and serve the dashboard, API and MCP (default)
  watch     poll the session and render it in the terminal
  journal   poll once and print the journal as JSON
  token     issue tokens, generate keys, hash API keys
  version   print the version
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, args, stdout)
	case "watch":
		err = runWatch(ctx, args, stdout, stderr)
	case "journal":
		err = runJournal(ctx, args, stdout, stderr)
	case "token":
		err = runToken(args, stdout, stderr)
	case "version":
		_, _ = fmt.Fprintln(stdout, version)
	case "help", "-h", "--help":
		_, _ = fmt.Fprint(stdout, usage)
	default:
		_, _ = fmt.Fprintf(stderr, "kansoku: unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "kansoku %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

func runServe(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := fs.Int("port", 0, "listen port (overrides KANSOKU_PORT)")
	src := fs.String("source", "", "session directory or URL (overrides KANSOKU_SOURCE)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	app, err := kansoku.New(
		kansoku.WithLogger(logger),
		kansoku.WithVersion(version),
		kansoku.WithPort(*port),
		kansoku.WithSource(*src),
	)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

// loadConfig reads .env and the environment, then applies flag overrides.
func loadConfig(src string, interval time.Duration) (config.Config, error) {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if src != "" {
		cfg.Source = src
	}
	if interval > 0 {
		cfg.PollInterval = interval
	}
	return cfg, nil
}

// textLogger logs to stderr so rendered output on stdout stays clean.
func textLogger(stderr io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel()}))
}

func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("KANSOKU_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
