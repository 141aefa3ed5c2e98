package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobby-dev/gobby/internal/types"
)

func TestMergeTaskCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	outcome, err := s.MergeTask(ctx, &types.Task{
		ID: "gb-aaaaaa", ProjectID: "demo", Title: "Imported",
		Status: types.StatusOpen, Type: types.TypeTask,
		CreatedAt: created, UpdatedAt: created,
		Labels: []string{"imported"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.MergeCreated, outcome)

	got, err := s.GetTask(ctx, "gb-aaaaaa")
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt, "imported timestamps are preserved")
	assert.Equal(t, []string{"imported"}, got.Labels)
}

func TestMergeTaskLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	local := mustCreate(t, s, &types.Task{Title: "Local title", Priority: 1})

	// Older incoming copy loses entirely.
	older := *local
	older.Title = "Stale title"
	older.UpdatedAt = local.UpdatedAt.Add(-time.Hour)
	outcome, err := s.MergeTask(ctx, &older)
	require.NoError(t, err)
	assert.Equal(t, types.MergeSkipped, outcome)

	got, err := s.GetTask(ctx, local.ID)
	require.NoError(t, err)
	assert.Equal(t, "Local title", got.Title)

	// Equal timestamps also lose: only strictly newer wins.
	equal := *local
	equal.Title = "Equal timestamp"
	outcome, err = s.MergeTask(ctx, &equal)
	require.NoError(t, err)
	assert.Equal(t, types.MergeSkipped, outcome)

	// Newer incoming copy wins as a whole record.
	newer := *local
	newer.Title = "Newer title"
	newer.Priority = 4
	newer.UpdatedAt = local.UpdatedAt.Add(time.Hour)
	outcome, err = s.MergeTask(ctx, &newer)
	require.NoError(t, err)
	assert.Equal(t, types.MergeUpdated, outcome)

	got, err = s.GetTask(ctx, local.ID)
	require.NoError(t, err)
	assert.Equal(t, "Newer title", got.Title)
	assert.Equal(t, 4, got.Priority)
	assert.Equal(t, local.CreatedAt, got.CreatedAt, "created_at is immutable")
}

func TestMergeTaskImmutableIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	local := mustCreate(t, s, &types.Task{Title: "Mine"})

	hostile := *local
	hostile.ProjectID = "someone-else"
	hostile.UpdatedAt = local.UpdatedAt.Add(time.Hour)
	outcome, err := s.MergeTask(ctx, &hostile)
	require.NoError(t, err)
	assert.Equal(t, types.MergeUpdated, outcome)

	got, err := s.GetTask(ctx, local.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.ProjectID, "project_id never changes on merge")
}

func TestMergeTaskDoesNotNotify(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var fired int
	s.RegisterChangeListener(func() { fired++ })

	now := time.Now().UTC()
	_, err := s.MergeTask(ctx, &types.Task{
		ID: "gb-bbbbbb", ProjectID: "demo", Title: "Quiet",
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Zero(t, fired, "imports must not re-trigger exports")
}

func TestReplaceDependencies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, &types.Task{Title: "A"})
	b := mustCreate(t, s, &types.Task{Title: "B"})
	c := mustCreate(t, s, &types.Task{Title: "C"})
	mustBlock(t, s, a.ID, b.ID)

	err := s.ReplaceDependencies(ctx, a.ID, []*types.Dependency{
		{DependsOn: c.ID, Type: types.DepBlocks},
		{DependsOn: "gb-000000", Type: types.DepBlocks}, // unknown target, dropped
	})
	require.NoError(t, err)

	blockers, err := s.GetBlockers(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, blockers, 1)
	assert.Equal(t, c.ID, blockers[0].ID, "old edge set replaced wholesale")
}
