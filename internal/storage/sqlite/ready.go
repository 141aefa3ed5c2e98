package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobby-dev/gobby/internal/types"
)

// ReadyTasks returns open tasks with no unresolved blocking dependency,
// ordered by priority ascending then creation time ascending. A task whose
// blockers are all closed is ready; in_progress tasks are excluded because
// they are already claimed.
func (s *SQLiteStore) ReadyTasks(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.status = 'open'
		AND NOT EXISTS (
			SELECT 1 FROM task_dependencies d
			JOIN tasks blocker ON d.depends_on = blocker.id
			WHERE d.task_id = t.id
			AND d.dep_type = 'blocks'
			AND blocker.status != 'closed'
		)`
	var args []any

	if filter.ProjectID != "" {
		query += " AND t.project_id = ?"
		args = append(args, filter.ProjectID)
	}
	if filter.Priority != nil {
		query += " AND t.priority = ?"
		args = append(args, *filter.Priority)
	}
	if filter.Type != nil {
		query += " AND t.task_type = ?"
		args = append(args, *filter.Type)
	}
	if filter.Assignee != nil {
		query += " AND t.assignee = ?"
		args = append(args, *filter.Assignee)
	}

	query += " ORDER BY t.priority ASC, t.created_at ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryTasks(ctx, query, args...)
}

// BlockedTasks returns open tasks that have at least one non-closed
// blocking dependency, each with the list of blocker ids holding it back.
// Together with ReadyTasks this partitions the open set.
func (s *SQLiteStore) BlockedTasks(ctx context.Context, limit int) ([]*types.BlockedTask, error) {
	// ORDER BY inside the aggregate keeps the blocker list deterministic
	// across runs and SQLite versions.
	query := `
		SELECT ` + taskColumns + `, (
			SELECT GROUP_CONCAT(d.depends_on ORDER BY d.depends_on)
			FROM task_dependencies d
			JOIN tasks blocker ON d.depends_on = blocker.id
			WHERE d.task_id = t.id
			AND d.dep_type = 'blocks'
			AND blocker.status != 'closed'
		) AS blocked_by
		FROM tasks t
		WHERE t.status = 'open'
		AND EXISTS (
			SELECT 1 FROM task_dependencies d
			JOIN tasks blocker ON d.depends_on = blocker.id
			WHERE d.task_id = t.id
			AND d.dep_type = 'blocks'
			AND blocker.status != 'closed'
		)
		ORDER BY t.priority ASC, t.created_at ASC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query blocked tasks: %w", err)
	}
	defer rows.Close()

	var blocked []*types.BlockedTask
	var plain []*types.Task
	for rows.Next() {
		var bt types.BlockedTask
		var blockedBy string
		err := rows.Scan(
			&bt.ID, &bt.ProjectID, &nullInto{&bt.ParentTaskID}, &nullInto{&bt.DiscoveredInSessionID},
			&bt.Title, &bt.Description, &bt.Status, &bt.Priority, &bt.Type,
			&nullInto{&bt.Assignee}, &nullInto{&bt.ClosedReason},
			&bt.CreatedAt, &bt.UpdatedAt, &blockedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scan blocked task: %w", err)
		}
		bt.CreatedAt = bt.CreatedAt.UTC()
		bt.UpdatedAt = bt.UpdatedAt.UTC()
		if blockedBy != "" {
			bt.BlockedBy = strings.Split(blockedBy, ",")
		}
		blocked = append(blocked, &bt)
		plain = append(plain, &bt.Task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachLabels(ctx, s.db, plain); err != nil {
		return nil, err
	}
	return blocked, nil
}

// nullInto scans a possibly-NULL text column into a plain string, leaving
// "" for NULL.
type nullInto struct {
	dest *string
}

func (n *nullInto) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n.dest = ""
	case string:
		*n.dest = v
	case []byte:
		*n.dest = string(v)
	default:
		return fmt.Errorf("cannot scan %T into string", src)
	}
	return nil
}
