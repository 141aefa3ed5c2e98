// Package sqlite implements the storage interface using SQLite.
//
// The package is split into focused files:
//   - store.go: SQLiteStore struct, constructor, change listeners, scan helpers
//   - schema.go: database schema
//   - tasks.go: task CRUD and list queries
//   - deps.go: dependency edges, traversal, cycle detection
//   - ready.go: ready/blocked frontier queries
//   - merge.go: import-side last-write-wins merge
//   - sessions.go: session association table
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gobby-dev/gobby/internal/storage"
	"github.com/gobby-dev/gobby/internal/types"
)

// SQLiteStore implements storage.Storage backed by a local SQLite database.
//
// A single writer mutex serializes mutating operations so that validation,
// cycle checks, and persistence are observed atomically; reads run
// concurrently against the WAL.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	prefix string

	mu sync.Mutex // writer lock over store+graph as one unit

	lmu       sync.Mutex
	listeners []func()
}

var _ storage.Storage = (*SQLiteStore)(nil)

// New opens (or creates) the SQLite database at the given path. prefix is
// the fixed identifier prefix for new task IDs (e.g. "gb").
func New(dbPath, prefix string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL for concurrent readers; enforced foreign keys keep edges from
	// outliving their endpoints.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath, prefix: prefix}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// RegisterChangeListener adds fn to the listeners invoked after every
// successful caller-visible mutation.
func (s *SQLiteStore) RegisterChangeListener(fn func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *SQLiteStore) notifyChange() {
	s.lmu.Lock()
	fns := append([]func(){}, s.listeners...)
	s.lmu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// now returns the store's notion of current time. UTC, like every timestamp
// we persist.
func now() time.Time {
	return time.Now().UTC()
}

// taskColumns is the standard column list for task queries.
const taskColumns = `id, project_id, parent_task_id, discovered_in_session_id, title, description,
	status, priority, task_type, assignee, closed_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask scans a task from a *sql.Row or *sql.Rows positioned on a row.
func scanTask(row rowScanner) (*types.Task, error) {
	var t types.Task
	var parentID, sessionID, assignee, closedReason sql.NullString
	err := row.Scan(
		&t.ID, &t.ProjectID, &parentID, &sessionID, &t.Title, &t.Description,
		&t.Status, &t.Priority, &t.Type, &assignee, &closedReason,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ParentTaskID = parentID.String
	t.DiscoveredInSessionID = sessionID.String
	t.Assignee = assignee.String
	t.ClosedReason = closedReason.String
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// getTask fetches a single task (without labels) via q, which may be the
// pooled handle or an open transaction. Returns storage.ErrNotFound when
// the id does not exist.
func getTask(ctx context.Context, q querier, id string) (*types.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// taskExists reports whether id is present.
func taskExists(ctx context.Context, q querier, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check task %s: %w", id, err)
	}
	return true, nil
}

// attachLabels populates the Labels field of every task in the slice with a
// single batched query.
func attachLabels(ctx context.Context, q querier, tasks []*types.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	placeholders := make([]string, len(tasks))
	args := make([]any, len(tasks))
	byID := make(map[string]*types.Task, len(tasks))
	for i, t := range tasks {
		placeholders[i] = "?"
		args[i] = t.ID
		byID[t.ID] = t
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		`SELECT task_id, label FROM task_labels WHERE task_id IN (%s) ORDER BY label`,
		strings.Join(placeholders, ",")), args...)
	if err != nil {
		return fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, label string
		if err := rows.Scan(&taskID, &label); err != nil {
			return fmt.Errorf("scan label: %w", err)
		}
		if t := byID[taskID]; t != nil {
			t.Labels = append(t.Labels, label)
		}
	}
	return rows.Err()
}

// normalizeLabels drops empty and duplicate labels, preserving first-seen
// order.
func normalizeLabels(labels []string) []string {
	var out []string
	seen := make(map[string]bool, len(labels))
	for _, label := range labels {
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

// replaceLabels rewrites the label set of a task inside tx.
func replaceLabels(ctx context.Context, tx *sql.Tx, taskID string, labels []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_labels WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear labels: %w", err)
	}
	for _, label := range normalizeLabels(labels) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_labels (task_id, label) VALUES (?, ?)`, taskID, label); err != nil {
			return fmt.Errorf("insert label %q: %w", label, err)
		}
	}
	return nil
}

// queryTasks runs a task-list query and attaches labels.
func (s *SQLiteStore) queryTasks(ctx context.Context, query string, args ...any) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachLabels(ctx, s.db, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
