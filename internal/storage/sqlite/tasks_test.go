package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobby-dev/gobby/internal/storage"
	"github.com/gobby-dev/gobby/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), "gb")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreate(t *testing.T, s *SQLiteStore, task *types.Task) *types.Task {
	t.Helper()
	if task.ProjectID == "" {
		task.ProjectID = "demo"
	}
	created, err := s.CreateTask(context.Background(), task)
	require.NoError(t, err)
	return created
}

func TestCreateTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &types.Task{Title: "First task", Labels: []string{"infra", "infra", ""}})
	assert.Regexp(t, `^gb-[0-9a-f]{6}$`, created.ID)
	assert.Equal(t, types.StatusOpen, created.Status)
	assert.Equal(t, types.TypeTask, created.Type)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := s.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "First task", got.Title)
	assert.Equal(t, []string{"infra"}, got.Labels, "labels are deduplicated and empties dropped")
}

func TestCreateTaskValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, &types.Task{ProjectID: "demo"})
	assert.True(t, storage.IsValidation(err), "empty title: %v", err)

	_, err = s.CreateTask(ctx, &types.Task{ProjectID: "demo", Title: "x", Priority: 9})
	assert.True(t, storage.IsValidation(err))

	_, err = s.CreateTask(ctx, &types.Task{ProjectID: "demo", Title: "x", ParentTaskID: "gb-nope00"})
	assert.True(t, storage.IsValidation(err), "missing parent: %v", err)
}

func TestCreateChildTaskIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent := mustCreate(t, s, &types.Task{Title: "Parent"})

	c1 := mustCreate(t, s, &types.Task{Title: "Child one", ParentTaskID: parent.ID})
	c2 := mustCreate(t, s, &types.Task{Title: "Child two", ParentTaskID: parent.ID})
	assert.Equal(t, parent.ID+".1", c1.ID)
	assert.Equal(t, parent.ID+".2", c2.ID)

	grandchild := mustCreate(t, s, &types.Task{Title: "Grandchild", ParentTaskID: c1.ID})
	assert.Equal(t, c1.ID+".1", grandchild.ID)

	// Deleting a child never reuses its ordinal's successor scheme: the
	// next ordinal is max+1 over the survivors.
	_, err := s.DeleteTask(ctx, c2.ID, false)
	require.NoError(t, err)
	c3 := mustCreate(t, s, &types.Task{Title: "Child three", ParentTaskID: parent.ID})
	assert.Equal(t, parent.ID+".2", c3.ID)
}

func TestCreateChildProjectMismatch(t *testing.T) {
	s := newTestStore(t)
	parent := mustCreate(t, s, &types.Task{Title: "Parent", ProjectID: "alpha"})

	_, err := s.CreateTask(context.Background(), &types.Task{
		ProjectID: "beta", Title: "Child", ParentTaskID: parent.ID,
	})
	assert.True(t, storage.IsValidation(err))
}

func TestGetTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTask(context.Background(), "gb-000000")
	assert.True(t, storage.IsNotFound(err))
}

func TestUpdateTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &types.Task{Title: "Before"})

	title := "After"
	status := types.StatusInProgress
	p := 0
	updated, err := s.UpdateTask(ctx, created.ID, types.TaskPatch{
		Title: &title, Status: &status, Priority: &p,
	})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)
	assert.Equal(t, types.StatusInProgress, updated.Status)
	assert.Equal(t, 0, updated.Priority)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	bad := 7
	_, err = s.UpdateTask(ctx, created.ID, types.TaskPatch{Priority: &bad})
	assert.True(t, storage.IsValidation(err))

	_, err = s.UpdateTask(ctx, "gb-000000", types.TaskPatch{Title: &title})
	assert.True(t, storage.IsNotFound(err))
}

func TestUpdateTaskReparent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, &types.Task{Title: "A"})
	b := mustCreate(t, s, &types.Task{Title: "B", ParentTaskID: a.ID})

	// A task cannot be reparented under its own descendant.
	parent := b.ID
	_, err := s.UpdateTask(ctx, a.ID, types.TaskPatch{ParentTaskID: &parent})
	assert.True(t, storage.IsValidation(err))

	// Detaching works.
	detach := ""
	updated, err := s.UpdateTask(ctx, b.ID, types.TaskPatch{ParentTaskID: &detach})
	require.NoError(t, err)
	assert.Empty(t, updated.ParentTaskID)
}

func TestCloseTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &types.Task{Title: "To close"})
	closed, err := s.CloseTask(ctx, created.ID, "fixed upstream")
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, closed.Status)
	assert.Equal(t, "fixed upstream", closed.ClosedReason)

	// Idempotent: closing again just refreshes reason and timestamp.
	again, err := s.CloseTask(ctx, created.ID, "actually wontfix")
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, again.Status)
	assert.Equal(t, "actually wontfix", again.ClosedReason)

	_, err = s.CloseTask(ctx, "gb-000000", "")
	assert.True(t, storage.IsNotFound(err))
}

func TestDeleteTaskConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent := mustCreate(t, s, &types.Task{Title: "Parent"})
	child := mustCreate(t, s, &types.Task{Title: "Child", ParentTaskID: parent.ID})

	_, err := s.DeleteTask(ctx, parent.ID, false)
	require.True(t, storage.IsConflict(err))
	assert.Contains(t, err.Error(), child.ID, "conflict names the blocking child")

	other := mustCreate(t, s, &types.Task{Title: "Other"})
	_, err = s.AddDependency(ctx, &types.Dependency{TaskID: other.ID, DependsOn: child.ID, Type: types.DepBlocks})
	require.NoError(t, err)
	_, err = s.DeleteTask(ctx, child.ID, false)
	assert.True(t, storage.IsConflict(err), "incident edge blocks deletion")
}

func TestDeleteTaskCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent := mustCreate(t, s, &types.Task{Title: "Parent"})
	child := mustCreate(t, s, &types.Task{Title: "Child", ParentTaskID: parent.ID})
	grandchild := mustCreate(t, s, &types.Task{Title: "Grandchild", ParentTaskID: child.ID})
	outsider := mustCreate(t, s, &types.Task{Title: "Outsider"})

	_, err := s.AddDependency(ctx, &types.Dependency{TaskID: outsider.ID, DependsOn: grandchild.ID, Type: types.DepBlocks})
	require.NoError(t, err)

	n, err := s.DeleteTask(ctx, parent.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, id := range []string{parent.ID, child.ID, grandchild.ID} {
		_, err := s.GetTask(ctx, id)
		assert.True(t, storage.IsNotFound(err), "%s should be gone", id)
	}

	// The outsider survives and its dangling edge is gone.
	blockers, err := s.GetBlockers(ctx, outsider.ID)
	require.NoError(t, err)
	assert.Empty(t, blockers)
}

func TestListTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	urgent := mustCreate(t, s, &types.Task{Title: "Urgent", Priority: 0})
	mustCreate(t, s, &types.Task{Title: "Normal", Priority: 2})
	bug := mustCreate(t, s, &types.Task{Title: "A bug", Priority: 2, Type: types.TypeBug, Labels: []string{"ui"}})
	_, err := s.CloseTask(ctx, bug.ID, "")
	require.NoError(t, err)

	all, err := s.ListTasks(ctx, types.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, urgent.ID, all[0].ID, "priority 0 sorts first")

	open := types.StatusOpen
	openOnly, err := s.ListTasks(ctx, types.TaskFilter{Status: &open})
	require.NoError(t, err)
	assert.Len(t, openOnly, 2)

	label := "ui"
	labeled, err := s.ListTasks(ctx, types.TaskFilter{Label: &label})
	require.NoError(t, err)
	require.Len(t, labeled, 1)
	assert.Equal(t, bug.ID, labeled[0].ID)

	limited, err := s.ListTasks(ctx, types.TaskFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestChangeListenerFires(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var fired int
	s.RegisterChangeListener(func() { fired++ })

	created := mustCreate(t, s, &types.Task{Title: "Watched"})
	assert.Equal(t, 1, fired)

	_, err := s.CloseTask(ctx, created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, fired)

	// Reads do not notify.
	_, err = s.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fired)
}
