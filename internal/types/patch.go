package types

// TaskPatch carries a partial update for a task. Nil fields are left
// untouched; non-nil fields replace the current value. Identifier, project,
// originating session, and creation timestamp are immutable and therefore
// have no patch field.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *Status
	Priority     *int
	Type         *TaskType
	Assignee     *string
	Labels       *[]string
	ClosedReason *string
	ParentTaskID *string // set to empty string to detach
}

// IsZero reports whether the patch changes nothing.
func (p TaskPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.Type == nil && p.Assignee == nil &&
		p.Labels == nil && p.ClosedReason == nil && p.ParentTaskID == nil
}

// Apply merges the patch into a copy of the given task and returns it.
// Validation of the merged result is the caller's responsibility.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.Labels != nil {
		t.Labels = append([]string(nil), (*p.Labels)...)
	}
	if p.ClosedReason != nil {
		t.ClosedReason = *p.ClosedReason
	}
	if p.ParentTaskID != nil {
		t.ParentTaskID = *p.ParentTaskID
	}
	return t
}
