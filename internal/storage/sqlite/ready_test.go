package sqlite

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobby-dev/gobby/internal/types"
)

func TestReadyTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A (P1) is blocked by B (P3): despite its higher priority, A is not
	// ready until B closes.
	a := mustCreate(t, s, &types.Task{Title: "A", Priority: 1})
	b := mustCreate(t, s, &types.Task{Title: "B", Priority: 3})
	mustBlock(t, s, a.ID, b.ID)

	ready, err := s.ReadyTasks(ctx, types.WorkFilter{ProjectID: "demo"})
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, b.ID, ready[0].ID)

	_, err = s.CloseTask(ctx, b.ID, "done")
	require.NoError(t, err)

	ready, err = s.ReadyTasks(ctx, types.WorkFilter{ProjectID: "demo"})
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, a.ID, ready[0].ID, "A becomes ready once its blocker closes")
}

func TestReadyTasksExcludesInProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, &types.Task{Title: "A"})
	status := types.StatusInProgress
	_, err := s.UpdateTask(ctx, a.ID, types.TaskPatch{Status: &status})
	require.NoError(t, err)

	ready, err := s.ReadyTasks(ctx, types.WorkFilter{ProjectID: "demo"})
	require.NoError(t, err)
	assert.Empty(t, ready, "claimed tasks are not offered again")
}

func TestReadyTasksAssociationEdgesIgnored(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, &types.Task{Title: "A"})
	b := mustCreate(t, s, &types.Task{Title: "B"})
	_, err := s.AddDependency(ctx, &types.Dependency{TaskID: a.ID, DependsOn: b.ID, Type: types.DepRelated})
	require.NoError(t, err)

	ready, err := s.ReadyTasks(ctx, types.WorkFilter{ProjectID: "demo"})
	require.NoError(t, err)
	assert.Len(t, ready, 2, "related edges never gate readiness")
}

func TestReadyTasksFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, &types.Task{Title: "P0 bug", Priority: 0, Type: types.TypeBug})
	mustCreate(t, s, &types.Task{Title: "P2 chore", Priority: 2, Type: types.TypeChore, Assignee: "kim"})
	mustCreate(t, s, &types.Task{Title: "Other project", ProjectID: "other"})

	byProject, err := s.ReadyTasks(ctx, types.WorkFilter{ProjectID: "demo"})
	require.NoError(t, err)
	assert.Len(t, byProject, 2)

	p := 0
	byPriority, err := s.ReadyTasks(ctx, types.WorkFilter{ProjectID: "demo", Priority: &p})
	require.NoError(t, err)
	require.Len(t, byPriority, 1)
	assert.Equal(t, "P0 bug", byPriority[0].Title)

	who := "kim"
	byAssignee, err := s.ReadyTasks(ctx, types.WorkFilter{ProjectID: "demo", Assignee: &who})
	require.NoError(t, err)
	require.Len(t, byAssignee, 1)
	assert.Equal(t, "P2 chore", byAssignee[0].Title)

	limited, err := s.ReadyTasks(ctx, types.WorkFilter{ProjectID: "demo", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "P0 bug", limited[0].Title, "highest priority first")
}

func TestBlockedTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, &types.Task{Title: "A"})
	b := mustCreate(t, s, &types.Task{Title: "B"})
	c := mustCreate(t, s, &types.Task{Title: "C"})
	mustBlock(t, s, a.ID, b.ID)
	mustBlock(t, s, a.ID, c.ID)

	blocked, err := s.BlockedTasks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, a.ID, blocked[0].ID)
	wantBlockers := []string{b.ID, c.ID}
	sort.Strings(wantBlockers)
	assert.Equal(t, wantBlockers, blocked[0].BlockedBy, "blocker ids come back id-sorted")

	// Closing one blocker shrinks the list; closing both clears it.
	_, err = s.CloseTask(ctx, b.ID, "")
	require.NoError(t, err)
	blocked, err = s.BlockedTasks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, []string{c.ID}, blocked[0].BlockedBy)

	_, err = s.CloseTask(ctx, c.ID, "")
	require.NoError(t, err)
	blocked, err = s.BlockedTasks(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, blocked)
}
