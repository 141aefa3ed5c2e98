package sqlite

import (
	"context"
	"fmt"

	"github.com/gobby-dev/gobby/internal/storage"
	"github.com/gobby-dev/gobby/internal/types"
)

// MergeTask applies one imported record with last-write-wins semantics.
//
// If the id is absent the record is inserted as-is, timestamps included.
// If present, the incoming record wins only when its updated_at is strictly
// newer than the stored one; the stored id, project_id, created_at, and
// discovered_in_session_id are never overwritten. Merge does not notify
// change listeners: imports must not re-trigger exports.
func (s *SQLiteStore) MergeTask(ctx context.Context, task *types.Task) (types.MergeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := *task
	t.SetDefaults()
	if t.ID == "" {
		return types.MergeSkipped, fmt.Errorf("%w: record has no id", storage.ErrValidation)
	}
	if err := t.Validate(); err != nil {
		return types.MergeSkipped, fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.MergeSkipped, fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	existing, err := getTask(ctx, tx, t.ID)
	switch {
	case storage.IsNotFound(err):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tasks (id, project_id, parent_task_id, discovered_in_session_id,
				title, description, status, priority, task_type, assignee, closed_reason,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.ProjectID, nullable(t.ParentTaskID), nullable(t.DiscoveredInSessionID),
			t.Title, t.Description, t.Status, t.Priority, t.Type,
			nullable(t.Assignee), nullable(t.ClosedReason), t.CreatedAt.UTC(), t.UpdatedAt.UTC())
		if err != nil {
			return types.MergeSkipped, fmt.Errorf("merge insert %s: %w", t.ID, err)
		}
		if err := replaceLabels(ctx, tx, t.ID, t.Labels); err != nil {
			return types.MergeSkipped, err
		}
		if err := tx.Commit(); err != nil {
			return types.MergeSkipped, fmt.Errorf("commit merge: %w", err)
		}
		return types.MergeCreated, nil

	case err != nil:
		return types.MergeSkipped, err
	}

	if !t.UpdatedAt.After(existing.UpdatedAt) {
		return types.MergeSkipped, nil
	}

	// Incoming record is newer: its mutable fields replace the stored ones
	// wholesale. Identity fields stay as stored.
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET parent_task_id = ?, title = ?, description = ?, status = ?,
			priority = ?, task_type = ?, assignee = ?, closed_reason = ?, updated_at = ?
		WHERE id = ?`,
		nullable(t.ParentTaskID), t.Title, t.Description, t.Status,
		t.Priority, t.Type, nullable(t.Assignee), nullable(t.ClosedReason),
		t.UpdatedAt.UTC(), t.ID)
	if err != nil {
		return types.MergeSkipped, fmt.Errorf("merge update %s: %w", t.ID, err)
	}
	if err := replaceLabels(ctx, tx, t.ID, t.Labels); err != nil {
		return types.MergeSkipped, err
	}
	if err := tx.Commit(); err != nil {
		return types.MergeSkipped, fmt.Errorf("commit merge: %w", err)
	}
	return types.MergeUpdated, nil
}

// ReplaceDependencies swaps the outbound edge set of a task in one
// transaction. The winning imported record carries the authoritative edge
// list, so the store's current edges for that task are discarded rather
// than merged. The incremental cycle guard is bypassed here; import runs a
// whole-graph audit afterwards. No listener notification.
func (s *SQLiteStore) ReplaceDependencies(ctx context.Context, taskID string, deps []*types.Dependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace dependencies: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM task_dependencies WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear dependencies of %s: %w", taskID, err)
	}

	for _, dep := range deps {
		d := *dep
		d.TaskID = taskID
		if d.Type == "" {
			d.Type = types.DepBlocks
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrValidation, err)
		}
		// Edges to tasks the store does not know are dropped silently; the
		// import layer reports them before calling in.
		exists, err := taskExists(ctx, tx, d.DependsOn)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		created := d.CreatedAt
		if created.IsZero() {
			created = now()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO task_dependencies (task_id, depends_on, dep_type, created_at)
			VALUES (?, ?, ?, ?)`,
			d.TaskID, d.DependsOn, d.Type, created.UTC())
		if err != nil {
			return fmt.Errorf("insert dependency %s -> %s: %w", d.TaskID, d.DependsOn, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace dependencies: %w", err)
	}
	return nil
}
