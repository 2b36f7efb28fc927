package board

import "time"

// Priority ranks a task for display filtering. The zero value means the
// task was created without an explicit priority.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Task represents a single board card. Status references a Column by name;
// the column set valid for the task is the owning project's, or the default
// set when ProjectID is empty (personal task).
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Status        string     `json:"status"`
	Priority      Priority   `json:"priority,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	AssignedUsers []string   `json:"assignedUsers,omitempty"`
	ProjectID     string     `json:"projectId,omitempty"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// TaskPatch carries a partial task update. Nil fields are left untouched
// when the patch is merged into an existing task.
type TaskPatch struct {
	ID            string     `json:"id"`
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Status        *string    `json:"status,omitempty"`
	Priority      *Priority  `json:"priority,omitempty"`
	Tags          *[]string  `json:"tags,omitempty"`
	AssignedUsers *[]string  `json:"assignedUsers,omitempty"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// Apply merges the patch into t, field by field. Later patches win on
// conflicting fields; there is no versioning beyond last-write-wins.
func (p TaskPatch) Apply(t *Task) {
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
	if p.Tags != nil {
		t.Tags = *p.Tags
	}
	if p.AssignedUsers != nil {
		t.AssignedUsers = *p.AssignedUsers
	}
	if p.StartDate != nil {
		t.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		t.EndDate = p.EndDate
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
}

// HasAnyAssignee reports whether the task is assigned to at least one of
// the given user ids.
func (t Task) HasAnyAssignee(userIDs []string) bool {
	for _, want := range userIDs {
		for _, got := range t.AssignedUsers {
			if got == want {
				return true
			}
		}
	}
	return false
}

// HasTag reports whether the task carries the given tag.
func (t Task) HasTag(tag string) bool {
	for _, got := range t.Tags {
		if got == tag {
			return true
		}
	}
	return false
}

// Project groups tasks under a shared column set.
type Project struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Department string   `json:"department,omitempty"`
	Columns    []Column `json:"columns"`
}
