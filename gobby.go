// Package gobby embeds the task tracker in other Go programs.
//
// The root package re-exports the domain types and opens fully wired
// stores, so embedders do not import internal packages:
//
//	store, err := gobby.Open(".gobby/gobby.db", "gb")
//	if err != nil { ... }
//	defer store.Close()
//
//	task, err := store.CreateTask(ctx, &gobby.Task{
//		ProjectID: "myproject",
//		Title:     "Fix the flaky test",
//	})
package gobby

import (
	"github.com/gobby-dev/gobby/internal/storage"
	"github.com/gobby-dev/gobby/internal/storage/sqlite"
	"github.com/gobby-dev/gobby/internal/types"
)

// Core domain types.
type (
	Task       = types.Task
	TaskPatch  = types.TaskPatch
	Dependency = types.Dependency
	TaskFilter = types.TaskFilter
	WorkFilter = types.WorkFilter

	Status        = types.Status
	TaskType      = types.TaskType
	DepType       = types.DepType
	TreeDirection = types.TreeDirection
	TreeNode      = types.TreeNode
	BlockedTask   = types.BlockedTask
	SessionAction = types.SessionAction
	SessionLink   = types.SessionLink
	MergeOutcome  = types.MergeOutcome
)

// Storage is the persistence interface implemented by Open's return value.
type Storage = storage.Storage

// Status values.
const (
	StatusOpen       = types.StatusOpen
	StatusInProgress = types.StatusInProgress
	StatusClosed     = types.StatusClosed
)

// Task types.
const (
	TypeBug     = types.TypeBug
	TypeFeature = types.TypeFeature
	TypeTask    = types.TypeTask
	TypeEpic    = types.TypeEpic
	TypeChore   = types.TypeChore
)

// Dependency kinds.
const (
	DepBlocks         = types.DepBlocks
	DepRelated        = types.DepRelated
	DepDiscoveredFrom = types.DepDiscoveredFrom
)

// Tree directions.
const (
	TreeBlockers = types.TreeBlockers
	TreeBlocking = types.TreeBlocking
	TreeBoth     = types.TreeBoth
)

// Session actions.
const (
	ActionWorkedOn   = types.ActionWorkedOn
	ActionDiscovered = types.ActionDiscovered
	ActionMentioned  = types.ActionMentioned
	ActionClosed     = types.ActionClosed
)

// Sentinel errors and their matchers.
var (
	ErrNotFound   = storage.ErrNotFound
	ErrValidation = storage.ErrValidation
	ErrConflict   = storage.ErrConflict
	ErrCycle      = storage.ErrCycle
	ErrIntegrity  = storage.ErrIntegrity
	ErrIO         = storage.ErrIO
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return storage.IsNotFound(err) }

// IsValidation reports whether err is or wraps ErrValidation.
func IsValidation(err error) bool { return storage.IsValidation(err) }

// IsConflict reports whether err is or wraps ErrConflict.
func IsConflict(err error) bool { return storage.IsConflict(err) }

// IsCycle reports whether err is or wraps ErrCycle.
func IsCycle(err error) bool { return storage.IsCycle(err) }

// Open opens (or creates) a task store at dbPath. prefix is the identifier
// prefix for new tasks.
func Open(dbPath, prefix string) (Storage, error) {
	return sqlite.New(dbPath, prefix)
}
