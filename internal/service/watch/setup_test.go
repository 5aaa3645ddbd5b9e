package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kansoku/internal/config"
	"github.com/ashita-ai/kansoku/internal/journal"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/pairing"
	"github.com/ashita-ai/kansoku/internal/service/watch"
	"github.com/ashita-ai/kansoku/internal/source"
)

const setupEvents = `{"type":"agent_invocation","timestamp":"2025-10-04T09:00:00Z","data":{"agent":"web-researcher"}}
{"type":"agent_result","timestamp":"2025-10-04T09:00:30Z","data":{"agent":"web-researcher"}}
{"type":"deploy_start","timestamp":"2025-10-04T09:00:40Z","data":{"target":"staging"}}
`

func setupConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, source.EventsFile), []byte(setupEvents), 0o600))
	return config.Config{
		Source:       dir,
		PollInterval: time.Second,
		FetchTimeout: time.Second,
		PairCeiling:  time.Minute,
	}
}

func TestFromConfigBuildsWorkingPoller(t *testing.T) {
	cfg := setupConfig(t)
	display := filepath.Join(t.TempDir(), "display.yaml")
	require.NoError(t, os.WriteFile(display, []byte("agents:\n  web-researcher:\n    title: Scout\n"), 0o600))
	cfg.DisplayFile = display

	deploy := journal.Sequence{
		Name: "deploy",
		Rule: pairing.Rule{
			Kind:      "deploy",
			StartType: "deploy_start",
			EndType:   "deploy_complete",
			Key:       pairing.DataKey("target"),
			Ceiling:   pairing.NoCeiling,
		},
		Completed: func(op model.PairedOperation) journal.Draft {
			return journal.Draft{Kind: "deploy", Data: op.Start.Data}
		},
		Running: func(op model.PairedOperation) journal.Draft {
			return journal.Draft{Kind: "deploy_running", Data: op.Start.Data}
		},
	}

	p, err := watch.FromConfig(cfg, nil, []journal.Sequence{deploy})
	require.NoError(t, err)
	assert.Equal(t, time.Second, p.Interval())

	v, err := p.Refresh(context.Background())
	require.NoError(t, err)
	// Newest start first: the deploy began after the agent finished.
	require.Len(t, v.Journal, 2)
	assert.Equal(t, model.EntryKind("deploy_running"), v.Journal[0].Kind)
	assert.True(t, v.Journal[0].InProgress())
	assert.Equal(t, model.KindAgentWork, v.Journal[1].Kind)
	assert.Equal(t, "Scout", v.Journal[1].Title)
	assert.False(t, v.Journal[1].InProgress())
}

func TestFromConfigErrors(t *testing.T) {
	cfg := setupConfig(t)
	cfg.Source = "ftp://example.com"
	_, err := watch.FromConfig(cfg, nil, nil)
	require.Error(t, err)

	cfg = setupConfig(t)
	cfg.DisplayFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = watch.FromConfig(cfg, nil, nil)
	require.Error(t, err)
}
