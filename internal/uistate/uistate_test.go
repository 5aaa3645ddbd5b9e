package uistate_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kansoku/internal/uistate"
)

func open(t *testing.T, path string) *uistate.Store {
	t.Helper()
	s, err := uistate.Open(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := uistate.Open(context.Background(), "", nil)
	require.Error(t, err)
}

func TestKnownTaskIDs(t *testing.T) {
	ctx := context.Background()
	s := open(t, filepath.Join(t.TempDir(), "state.db"))

	ids, err := s.KnownTaskIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.AddKnownTaskIDs(ctx, []string{"t1", "t2"}))
	require.NoError(t, s.AddKnownTaskIDs(ctx, []string{"t2", "t3"}))
	require.NoError(t, s.AddKnownTaskIDs(ctx, nil))

	ids, err = s.KnownTaskIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Contains(t, ids, "t3")
}

func TestExpandedEntries(t *testing.T) {
	ctx := context.Background()
	s := open(t, filepath.Join(t.TempDir(), "state.db"))

	require.NoError(t, s.SetExpanded(ctx, "a"))
	require.NoError(t, s.SetExpanded(ctx, "a"))
	require.NoError(t, s.SetExpanded(ctx, "b"))

	got, err := s.Expanded(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, got)

	require.NoError(t, s.ClearExpanded(ctx, "a"))
	err = s.ClearExpanded(ctx, "a")
	require.ErrorIs(t, err, uistate.ErrNotFound)

	got, err = s.Expanded(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got)
}

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := uistate.Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetExpanded(ctx, "entry-1"))
	require.NoError(t, s.AddKnownTaskIDs(ctx, []string{"t2", "t1"}))
	require.NoError(t, s.Close())

	// Migrations are recorded, so reopening must not fail or reapply them.
	s = open(t, path)
	require.NoError(t, s.Ping(ctx))

	st, err := s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"entry-1"}, st.Expanded)
	assert.Equal(t, []string{"t1", "t2"}, st.KnownTaskIDs)
}

func TestEmptyStateUsesEmptySlices(t *testing.T) {
	s := open(t, filepath.Join(t.TempDir(), "state.db"))
	st, err := s.State(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, st.Expanded)
	assert.NotNil(t, st.KnownTaskIDs)
}
