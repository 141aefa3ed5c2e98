// Package types defines core data structures for the gobby task tracker.
package types

import (
	"fmt"
	"time"
)

// Task represents a trackable unit of work.
type Task struct {
	ID                    string   `json:"id"`
	ProjectID             string   `json:"project_id"`
	ParentTaskID          string   `json:"parent_task_id,omitempty"`
	DiscoveredInSessionID string   `json:"discovered_in_session_id,omitempty"`
	Title                 string   `json:"title"`
	Description           string   `json:"description,omitempty"`
	Status                Status   `json:"status,omitempty"`
	Priority              int      `json:"priority"` // No omitempty: 0 is valid (P0/highest)
	Type                  TaskType `json:"type,omitempty"`
	Assignee              string   `json:"assignee,omitempty"`
	Labels                []string `json:"labels,omitempty"`
	ClosedReason          string   `json:"closed_reason,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`

	// Dependencies holds the task's outbound edges. Populated only for
	// JSONL export/import; the store keeps edges in their own table.
	Dependencies []*Dependency `json:"dependencies,omitempty"`
}

// Validate checks if the task has valid field values.
func (t *Task) Validate() error {
	if len(t.Title) == 0 {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if t.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if t.Priority < 0 || t.Priority > 4 {
		return fmt.Errorf("priority must be between 0 and 4 (got %d)", t.Priority)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if !t.Type.IsValid() {
		return fmt.Errorf("invalid task type: %s", t.Type)
	}
	if t.ParentTaskID == t.ID && t.ID != "" {
		return fmt.Errorf("task cannot be its own parent")
	}
	if !t.UpdatedAt.IsZero() && !t.CreatedAt.IsZero() && t.UpdatedAt.Before(t.CreatedAt) {
		return fmt.Errorf("updated_at precedes created_at")
	}
	return nil
}

// SetDefaults applies default values for fields omitted during JSONL import.
// Call this after json.Unmarshal so that omitempty fields round-trip:
//   - Status: defaults to StatusOpen if empty
//   - Type: defaults to TypeTask if empty
//
// Priority 0 is a valid value (P0/highest), so an omitted priority cannot be
// distinguished from an explicit P0. The default of 2 applies only to new
// tasks via Create, never to import.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.Type == "" {
		t.Type = TypeTask
	}
}

// Status represents the current state of a task.
type Status string

// Task status constants
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// IsValid checks if the status value is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// TaskType categorizes the kind of work.
type TaskType string

// Task type constants
const (
	TypeBug     TaskType = "bug"
	TypeFeature TaskType = "feature"
	TypeTask    TaskType = "task"
	TypeEpic    TaskType = "epic"
	TypeChore   TaskType = "chore"
)

// IsValid checks if the task type value is valid.
func (t TaskType) IsValid() bool {
	switch t {
	case TypeBug, TypeFeature, TypeTask, TypeEpic, TypeChore:
		return true
	}
	return false
}

// Dependency represents a directed relationship between two tasks.
// TaskID is the dependent; DependsOn is the dependency target. In the JSONL
// export the edge is embedded in its owning task, so TaskID is omitted there.
type Dependency struct {
	TaskID    string    `json:"task_id,omitempty"`
	DependsOn string    `json:"depends_on"`
	Type      DepType   `json:"dep_type"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Validate checks structural edge invariants that hold regardless of store
// state (existence checks belong to the store).
func (d *Dependency) Validate() error {
	if d.TaskID == "" || d.DependsOn == "" {
		return fmt.Errorf("dependency requires both task_id and depends_on")
	}
	if d.TaskID == d.DependsOn {
		return fmt.Errorf("task cannot depend on itself")
	}
	if !d.Type.IsValid() {
		return fmt.Errorf("invalid dependency type: %s", d.Type)
	}
	return nil
}

// DepType categorizes the relationship.
type DepType string

// Dependency type constants
const (
	// DepBlocks affects the ready-work calculation and must stay acyclic.
	DepBlocks DepType = "blocks"

	// Association types; cycles among these are tolerated.
	DepRelated        DepType = "related"
	DepDiscoveredFrom DepType = "discovered-from"
)

// IsValid checks if the dependency type value is valid.
func (d DepType) IsValid() bool {
	switch d {
	case DepBlocks, DepRelated, DepDiscoveredFrom:
		return true
	}
	return false
}

// TaskFilter is used to filter task list queries. Nil fields are not
// applied; non-nil fields combine with AND.
type TaskFilter struct {
	Status       *Status
	Priority     *int
	Type         *TaskType
	Assignee     *string
	Label        *string // membership in the label set
	ParentTaskID *string
	Limit        int
}

// WorkFilter is used to filter ready-work queries.
type WorkFilter struct {
	ProjectID string
	Priority  *int
	Type      *TaskType
	Assignee  *string
	Limit     int
}

// BlockedTask extends Task with the unresolved blockers that keep it out of
// the ready frontier.
type BlockedTask struct {
	Task
	BlockedBy []string `json:"blocked_by"`
}

// TreeDirection selects which closure a dependency tree walk follows.
type TreeDirection string

// Tree direction constants
const (
	TreeBlockers TreeDirection = "blockers" // what this task depends on
	TreeBlocking TreeDirection = "blocking" // what depends on this task
	TreeBoth     TreeDirection = "both"
)

// IsValid checks if the tree direction is valid.
func (d TreeDirection) IsValid() bool {
	switch d {
	case TreeBlockers, TreeBlocking, TreeBoth:
		return true
	}
	return false
}

// TreeNode represents a node in a dependency tree.
type TreeNode struct {
	Task
	Depth     int    `json:"depth"`
	ParentID  string `json:"parent_id"`
	Truncated bool   `json:"truncated"`
}

// SessionAction describes how a work session touched a task.
type SessionAction string

// Session link action constants
const (
	ActionWorkedOn   SessionAction = "worked_on"
	ActionDiscovered SessionAction = "discovered"
	ActionMentioned  SessionAction = "mentioned"
	ActionClosed     SessionAction = "closed"
)

// IsValid checks if the session action is valid.
func (a SessionAction) IsValid() bool {
	switch a {
	case ActionWorkedOn, ActionDiscovered, ActionMentioned, ActionClosed:
		return true
	}
	return false
}

// SessionLink associates a task with a work session.
type SessionLink struct {
	SessionID string        `json:"session_id"`
	TaskID    string        `json:"task_id"`
	Action    SessionAction `json:"action"`
	CreatedAt time.Time     `json:"created_at"`
}

// MergeOutcome reports what an import merge did with a single record.
type MergeOutcome int

// Merge outcomes
const (
	MergeSkipped MergeOutcome = iota // store copy was newer or equal
	MergeCreated                     // record was absent, inserted as-is
	MergeUpdated                     // file copy was newer, fields overwritten
)
