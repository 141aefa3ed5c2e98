package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gobby-dev/gobby/internal/idgen"
	"github.com/gobby-dev/gobby/internal/storage"
	"github.com/gobby-dev/gobby/internal/telemetry"
	"github.com/gobby-dev/gobby/internal/types"
)

// CreateTask validates, assigns an identifier, and persists a new task.
// Tasks created with a parent get hierarchical child IDs (parent.1,
// parent.2, ...); root tasks get hash IDs, regenerated on the rare
// collision. The input is not mutated.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *types.Task) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := *task
	t.SetDefaults()
	t.Labels = normalizeLabels(t.Labels)
	ts := now()
	t.CreatedAt = ts
	t.UpdatedAt = ts
	t.ID = "" // assigned below

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	if t.ParentTaskID != "" {
		parent, err := getTask(ctx, tx, t.ParentTaskID)
		if err != nil {
			if storage.IsNotFound(err) {
				return nil, fmt.Errorf("%w: parent task %s does not exist", storage.ErrValidation, t.ParentTaskID)
			}
			return nil, err
		}
		if parent.ProjectID != t.ProjectID {
			return nil, fmt.Errorf("%w: parent task %s belongs to project %s, not %s",
				storage.ErrValidation, parent.ID, parent.ProjectID, t.ProjectID)
		}
		t.ID, err = nextChildID(ctx, tx, t.ParentTaskID)
		if err != nil {
			return nil, err
		}
	} else {
		t.ID, err = s.newRootID(ctx, tx, t.ProjectID)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, parent_task_id, discovered_in_session_id,
			title, description, status, priority, task_type, assignee, closed_reason,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, nullable(t.ParentTaskID), nullable(t.DiscoveredInSessionID),
		t.Title, t.Description, t.Status, t.Priority, t.Type,
		nullable(t.Assignee), nullable(t.ClosedReason), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	if err := replaceLabels(ctx, tx, t.ID, t.Labels); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}

	telemetry.CountTaskMutation(ctx, "create")
	s.notifyChange()
	return &t, nil
}

// newRootID generates a fresh hash ID, verifying non-collision against the
// store and regenerating up to idgen.MaxAttempts times. Exhausting the
// attempts indicates entropy-source failure and is integrity-fatal.
func (s *SQLiteStore) newRootID(ctx context.Context, q querier, projectID string) (string, error) {
	for attempt := 0; attempt < idgen.MaxAttempts; attempt++ {
		id := idgen.NewTaskID(s.prefix, projectID)
		exists, err := taskExists(ctx, q, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %d consecutive ID collisions for project %s",
		storage.ErrIntegrity, idgen.MaxAttempts, projectID)
}

// nextChildID picks the next unused dot-suffix ordinal for a parent.
func nextChildID(ctx context.Context, q querier, parentID string) (string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM tasks WHERE parent_task_id = ?`, parentID)
	if err != nil {
		return "", fmt.Errorf("list children of %s: %w", parentID, err)
	}
	defer rows.Close()

	maxN := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan child id: %w", err)
		}
		if n := idgen.ParseChildSuffix(parentID, id); n > maxN {
			maxN = n
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return idgen.ChildID(parentID, maxN+1), nil
}

// GetTask returns a single task by ID, labels included.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*types.Task, error) {
	t, err := getTask(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := attachLabels(ctx, s.db, []*types.Task{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTask applies a partial update, re-validates the merged result, and
// refreshes updated_at.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, patch types.TaskPatch) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	existing, err := getTask(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	merged := patch.Apply(*existing)
	merged.UpdatedAt = now()
	if merged.UpdatedAt.Before(merged.CreatedAt) {
		merged.UpdatedAt = merged.CreatedAt // clock went backwards; keep the invariant
	}
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}

	if merged.ParentTaskID != existing.ParentTaskID && merged.ParentTaskID != "" {
		if err := checkParent(ctx, tx, &merged); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET parent_task_id = ?, title = ?, description = ?, status = ?,
			priority = ?, task_type = ?, assignee = ?, closed_reason = ?, updated_at = ?
		WHERE id = ?`,
		nullable(merged.ParentTaskID), merged.Title, merged.Description, merged.Status,
		merged.Priority, merged.Type, nullable(merged.Assignee),
		nullable(merged.ClosedReason), merged.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}

	if patch.Labels != nil {
		if err := replaceLabels(ctx, tx, id, merged.Labels); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}

	merged.Labels = nil
	if err := attachLabels(ctx, s.db, []*types.Task{&merged}); err != nil {
		return nil, err
	}

	telemetry.CountTaskMutation(ctx, "update")
	s.notifyChange()
	return &merged, nil
}

// checkParent enforces that the new parent exists, shares the project, and
// is not a descendant of the task (no parent cycles).
func checkParent(ctx context.Context, q querier, t *types.Task) error {
	parent, err := getTask(ctx, q, t.ParentTaskID)
	if err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("%w: parent task %s does not exist", storage.ErrValidation, t.ParentTaskID)
		}
		return err
	}
	if parent.ProjectID != t.ProjectID {
		return fmt.Errorf("%w: parent task %s belongs to project %s, not %s",
			storage.ErrValidation, parent.ID, parent.ProjectID, t.ProjectID)
	}

	// Walk the ancestor chain of the candidate parent. Hitting the task
	// itself means the reparent would make it its own ancestor.
	seen := map[string]bool{}
	for cur := parent; cur.ParentTaskID != ""; {
		if cur.ParentTaskID == t.ID {
			return fmt.Errorf("%w: task %s cannot become its own ancestor", storage.ErrValidation, t.ID)
		}
		if seen[cur.ParentTaskID] {
			return fmt.Errorf("%w: parent chain of %s contains a cycle", storage.ErrIntegrity, t.ParentTaskID)
		}
		seen[cur.ParentTaskID] = true
		next, err := getTask(ctx, q, cur.ParentTaskID)
		if err != nil {
			if storage.IsNotFound(err) {
				break // dangling ancestor; nothing more to walk
			}
			return err
		}
		cur = next
	}
	return nil
}

// CloseTask sets status closed and records the reason. Idempotent: closing
// an already-closed task updates the reason and timestamp.
func (s *SQLiteStore) CloseTask(ctx context.Context, id, reason string) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := getTask(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	t.Status = types.StatusClosed
	t.ClosedReason = reason
	t.UpdatedAt = now()
	if t.UpdatedAt.Before(t.CreatedAt) {
		t.UpdatedAt = t.CreatedAt
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, closed_reason = ?, updated_at = ? WHERE id = ?`,
		t.Status, nullable(t.ClosedReason), t.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("close task %s: %w", id, err)
	}

	if err := attachLabels(ctx, s.db, []*types.Task{t}); err != nil {
		return nil, err
	}

	telemetry.CountTaskMutation(ctx, "close")
	s.notifyChange()
	return t, nil
}

// DeleteTask removes a task. Without cascade it fails with a conflict error
// naming the blocking relations if the task has children or incident edges.
// With cascade it removes the task, all descendants, and every edge touching
// the deleted set as one atomic unit. Returns the number of tasks removed.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string, cascade bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := getTask(ctx, tx, id); err != nil {
		return 0, err
	}

	if !cascade {
		children, err := directChildren(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		var edges int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM task_dependencies WHERE task_id = ? OR depends_on = ?`,
			id, id).Scan(&edges)
		if err != nil {
			return 0, fmt.Errorf("count edges of %s: %w", id, err)
		}
		if len(children) > 0 || edges > 0 {
			return 0, fmt.Errorf("%w: task %s has %d child task(s) [%s] and %d dependency edge(s); use cascade to delete them",
				storage.ErrConflict, id, len(children), strings.Join(children, ", "), edges)
		}
	}

	// Breadth-first collection of the deletion set, tracking depth so
	// children can be removed before their parents (the parent FK has no
	// cascade by design; hierarchy deletions are always explicit).
	type level struct {
		id    string
		depth int
	}
	set := []level{{id, 0}}
	index := map[string]bool{id: true}
	for i := 0; i < len(set); i++ {
		children, err := directChildren(ctx, tx, set[i].id)
		if err != nil {
			return 0, err
		}
		for _, child := range children {
			if !index[child] {
				index[child] = true
				set = append(set, level{child, set[i].depth + 1})
			}
		}
	}

	placeholders := make([]string, len(set))
	args := make([]any, 0, len(set))
	for i, l := range set {
		placeholders[i] = "?"
		args = append(args, l.id)
	}
	in := strings.Join(placeholders, ",")

	// Edges touching any deleted task go first so no orphaned edge remains.
	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM task_dependencies WHERE task_id IN (%s) OR depends_on IN (%s)`, in, in),
		append(append([]any{}, args...), args...)...)
	if err != nil {
		return 0, fmt.Errorf("delete edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM task_labels WHERE task_id IN (%s)`, in), args...); err != nil {
		return 0, fmt.Errorf("delete labels: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM session_tasks WHERE task_id IN (%s)`, in), args...); err != nil {
		return 0, fmt.Errorf("delete session links: %w", err)
	}

	sort.Slice(set, func(i, j int) bool { return set[i].depth > set[j].depth })
	for _, l := range set {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, l.id); err != nil {
			return 0, fmt.Errorf("delete task %s: %w", l.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}

	telemetry.CountTaskMutation(ctx, "delete")
	s.notifyChange()
	return len(set), nil
}

func directChildren(ctx context.Context, q querier, id string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM tasks WHERE parent_task_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", id, err)
	}
	defer rows.Close()

	var children []string
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, child)
	}
	return children, rows.Err()
}

// ListTasks returns tasks matching the filter, ordered by priority
// ascending then creation time ascending.
func (s *SQLiteStore) ListTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var clauses []string
	var args []any

	if filter.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Priority != nil {
		clauses = append(clauses, "priority = ?")
		args = append(args, *filter.Priority)
	}
	if filter.Type != nil {
		clauses = append(clauses, "task_type = ?")
		args = append(args, *filter.Type)
	}
	if filter.Assignee != nil {
		clauses = append(clauses, "assignee = ?")
		args = append(args, *filter.Assignee)
	}
	if filter.ParentTaskID != nil {
		clauses = append(clauses, "parent_task_id = ?")
		args = append(args, *filter.ParentTaskID)
	}
	if filter.Label != nil {
		clauses = append(clauses, `EXISTS (
			SELECT 1 FROM task_labels WHERE task_id = tasks.id AND label = ?
		)`)
		args = append(args, *filter.Label)
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY priority ASC, created_at ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryTasks(ctx, query, args...)
}

// nullable maps "" to NULL so optional columns stay NULL rather than empty.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
