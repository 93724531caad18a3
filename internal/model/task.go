package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Priorities lists every canonical priority in display order.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

// Valid reports whether p is a canonical priority.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Statuses lists every canonical status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted}
}

// Valid reports whether s is a canonical status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusCompleted
}

// ChecklistItem is one sub-step of a task.
type ChecklistItem struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Task is a unit of work created by an admin and assigned to one or more users.
// Progress and Status are derived from TodoChecklist; see service.ApplyChecklist.
type Task struct {
	ID            uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	Title         string          `json:"title" gorm:"size:255;not null"`
	Description   string          `json:"description" gorm:"type:text"`
	Priority      Priority        `json:"priority" gorm:"type:varchar(10);not null;index"`
	Status        Status          `json:"status" gorm:"type:varchar(20);not null;index"`
	DueDate       time.Time       `json:"dueDate" gorm:"not null;index"`
	CreatedBy     uuid.UUID       `json:"createdBy" gorm:"type:char(36);not null;index"`
	Attachments   []string        `json:"attachments" gorm:"serializer:json;type:text"`
	TodoChecklist []ChecklistItem `json:"todoChecklist" gorm:"serializer:json;type:text"`
	Progress      int             `json:"progress" gorm:"not null"`
	Version       int             `json:"version" gorm:"not null"`
	CreatedAt     time.Time       `json:"createdAt" gorm:"index"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	// AssignedTo mirrors Assignees as plain ids; repositories keep both in sync.
	AssignedTo []uuid.UUID    `json:"assignedTo" gorm:"-"`
	Assignees  []TaskAssignee `json:"assignees,omitempty" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate sets UUID and the initial version before creating the record.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return nil
}

// CompletedCount returns the number of checked checklist items.
func (t *Task) CompletedCount() int {
	n := 0
	for _, item := range t.TodoChecklist {
		if item.Completed {
			n++
		}
	}
	return n
}

// IsAssignedTo reports whether userID is one of the task's assignees.
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	for _, id := range t.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// SyncAssignedTo rebuilds AssignedTo from the loaded Assignees rows.
func (t *Task) SyncAssignedTo() {
	ids := make([]uuid.UUID, 0, len(t.Assignees))
	for _, a := range t.Assignees {
		ids = append(ids, a.UserID)
	}
	t.AssignedTo = ids
}

// TaskAssignee links a task to one assigned user.
type TaskAssignee struct {
	TaskID uuid.UUID `json:"-" gorm:"type:char(36);primaryKey"`
	UserID uuid.UUID `json:"id" gorm:"type:char(36);primaryKey;index"`
	User   *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TaskWithCount is a task annotated with its number of completed checklist items.
type TaskWithCount struct {
	Task
	CompletedCount int `json:"completedCount"`
}

// TaskSummary is the projection used for dashboard recent-task lists.
type TaskSummary struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	Priority  Priority  `json:"priority"`
	DueDate   time.Time `json:"dueDate"`
	CreatedAt time.Time `json:"createdAt"`
}
