package watch

import (
	"log/slog"

	"github.com/ashita-ai/kansoku/internal/config"
	"github.com/ashita-ai/kansoku/internal/format"
	"github.com/ashita-ai/kansoku/internal/journal"
	"github.com/ashita-ai/kansoku/internal/snapshot"
	"github.com/ashita-ai/kansoku/internal/source"
)

// FromConfig builds a Poller for cfg: the source, the display overrides and
// the journal builder. extra sequences run after the built-in ones.
func FromConfig(cfg config.Config, logger *slog.Logger, extra []journal.Sequence, opts ...Option) (*Poller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	src, err := source.New(cfg.Source, source.Options{
		Timeout: cfg.FetchTimeout,
		Token:   cfg.SourceToken,
	})
	if err != nil {
		return nil, err
	}

	overrides, err := format.LoadOverrides(cfg.DisplayFile)
	if err != nil {
		return nil, err
	}
	if cfg.DisplayFile != "" {
		logger.Info("watch: display overrides loaded", "file", cfg.DisplayFile,
			"agents", len(overrides.Agents), "kinds", len(overrides.Kinds))
	}
	f := format.New(format.WithOverrides(overrides))

	builder := journal.New(
		journal.WithFormatter(f),
		journal.WithCeiling(cfg.PairCeiling),
		journal.WithAgentOrder(cfg.AgentOrder),
		journal.WithSequences(extra...),
	)

	opts = append([]Option{WithInterval(cfg.PollInterval)}, opts...)
	return New(source.NewFetcher(src, logger), snapshot.NewAssembler(builder, f), logger, opts...), nil
}
