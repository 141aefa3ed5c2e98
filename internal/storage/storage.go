// Package storage defines the persistence interface for tasks and their
// dependency graph, plus the sentinel errors every backend reports.
package storage

import (
	"context"

	"github.com/gobby-dev/gobby/internal/types"
)

// Storage is the interface for task and dependency-graph persistence.
//
// Every mutating operation is a single logical transaction: validation,
// cycle checks, and persistence are observed atomically by other callers.
// Successful mutations notify registered change listeners so the sync
// engine can schedule an export.
type Storage interface {
	// Task operations
	CreateTask(ctx context.Context, task *types.Task) (*types.Task, error)
	GetTask(ctx context.Context, id string) (*types.Task, error)
	UpdateTask(ctx context.Context, id string, patch types.TaskPatch) (*types.Task, error)
	CloseTask(ctx context.Context, id, reason string) (*types.Task, error)
	DeleteTask(ctx context.Context, id string, cascade bool) (int, error)
	ListTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error)

	// Dependency graph operations
	AddDependency(ctx context.Context, dep *types.Dependency) (*types.Dependency, error)
	RemoveDependency(ctx context.Context, taskID, dependsOn string, depType types.DepType) (int, error)
	GetBlockers(ctx context.Context, id string) ([]*types.Task, error)
	GetBlocking(ctx context.Context, id string) ([]*types.Task, error)
	GetDependencyTree(ctx context.Context, id string, direction types.TreeDirection, maxDepth int) ([]*types.TreeNode, error)
	CheckCycles(ctx context.Context) ([][]string, error)
	ReadyTasks(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error)
	BlockedTasks(ctx context.Context, limit int) ([]*types.BlockedTask, error)
	ListDependencies(ctx context.Context) ([]*types.Dependency, error)

	// Import support. MergeTask applies last-write-wins by updated_at and
	// never alters id, project, or creation timestamp of an existing row.
	// ReplaceDependencies swaps a task's outbound edge set wholesale; it
	// bypasses the incremental cycle guard, so imports must audit with
	// CheckCycles afterwards. Neither notifies change listeners.
	MergeTask(ctx context.Context, task *types.Task) (types.MergeOutcome, error)
	ReplaceDependencies(ctx context.Context, taskID string, deps []*types.Dependency) error

	// Session association
	LinkSession(ctx context.Context, sessionID, taskID string, action types.SessionAction) error
	UnlinkSession(ctx context.Context, sessionID, taskID string, action types.SessionAction) error
	SessionTasks(ctx context.Context, sessionID string) ([]*types.SessionLink, error)
	TaskSessions(ctx context.Context, taskID string) ([]*types.SessionLink, error)

	// RegisterChangeListener adds fn to the set invoked after every
	// successful caller-visible mutation.
	RegisterChangeListener(fn func())

	Close() error
}
