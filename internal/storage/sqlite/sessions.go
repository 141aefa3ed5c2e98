package sqlite

import (
	"context"
	"fmt"

	"github.com/gobby-dev/gobby/internal/storage"
	"github.com/gobby-dev/gobby/internal/types"
)

// LinkSession records that a work session touched a task in a given way.
// Linking the same (session, task, action) triple twice is a no-op.
func (s *SQLiteStore) LinkSession(ctx context.Context, sessionID, taskID string, action types.SessionAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		return fmt.Errorf("%w: session_id is required", storage.ErrValidation)
	}
	if !action.IsValid() {
		return fmt.Errorf("%w: invalid session action: %s", storage.ErrValidation, action)
	}
	if err := s.requireTask(ctx, taskID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO session_tasks (session_id, task_id, action, created_at)
		VALUES (?, ?, ?, ?)`,
		sessionID, taskID, action, now())
	if err != nil {
		return fmt.Errorf("link session %s to task %s: %w", sessionID, taskID, err)
	}
	return nil
}

// UnlinkSession removes a session association. Missing links are not an
// error.
func (s *SQLiteStore) UnlinkSession(ctx context.Context, sessionID, taskID string, action types.SessionAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_tasks WHERE session_id = ? AND task_id = ? AND action = ?`,
		sessionID, taskID, action)
	if err != nil {
		return fmt.Errorf("unlink session %s from task %s: %w", sessionID, taskID, err)
	}
	return nil
}

// SessionTasks returns the task associations of one session, newest first.
func (s *SQLiteStore) SessionTasks(ctx context.Context, sessionID string) ([]*types.SessionLink, error) {
	return s.queryLinks(ctx,
		`SELECT session_id, task_id, action, created_at FROM session_tasks
		 WHERE session_id = ? ORDER BY created_at DESC, task_id`, sessionID)
}

// TaskSessions returns the session associations of one task, newest first.
func (s *SQLiteStore) TaskSessions(ctx context.Context, taskID string) ([]*types.SessionLink, error) {
	return s.queryLinks(ctx,
		`SELECT session_id, task_id, action, created_at FROM session_tasks
		 WHERE task_id = ? ORDER BY created_at DESC, session_id`, taskID)
}

func (s *SQLiteStore) queryLinks(ctx context.Context, query string, args ...any) ([]*types.SessionLink, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session links: %w", err)
	}
	defer rows.Close()

	var links []*types.SessionLink
	for rows.Next() {
		var l types.SessionLink
		if err := rows.Scan(&l.SessionID, &l.TaskID, &l.Action, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session link: %w", err)
		}
		l.CreatedAt = l.CreatedAt.UTC()
		links = append(links, &l)
	}
	return links, rows.Err()
}
