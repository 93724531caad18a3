package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"taskmanager/internal/model"
)

// Type names a task lifecycle event.
type Type string

const (
	TaskCreated          Type = "created"
	TaskUpdated          Type = "updated"
	TaskStatusChanged    Type = "status_changed"
	TaskChecklistUpdated Type = "checklist_updated"
	TaskDeleted          Type = "deleted"
)

// SubjectPrefix is the NATS subject root; events go to tasks.<type>.
const SubjectPrefix = "tasks"

// TaskEvent is published after a task mutation commits.
type TaskEvent struct {
	Type       Type         `json:"type"`
	TaskID     uuid.UUID    `json:"taskId"`
	ActorID    uuid.UUID    `json:"actorId"`
	Status     model.Status `json:"status,omitempty"`
	Progress   int          `json:"progress"`
	Version    int          `json:"version"`
	AssignedTo []uuid.UUID  `json:"assignedTo,omitempty"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// NewTaskEvent snapshots the task for an event of type t. task may be nil for deletions.
func NewTaskEvent(t Type, taskID, actorID uuid.UUID, task *model.Task) TaskEvent {
	ev := TaskEvent{
		Type:       t,
		TaskID:     taskID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
	if task != nil {
		ev.Status = task.Status
		ev.Progress = task.Progress
		ev.Version = task.Version
		ev.AssignedTo = task.AssignedTo
	}
	return ev
}

// Subject returns the NATS subject the event is published on.
func (e TaskEvent) Subject() string {
	return SubjectPrefix + "." + string(e.Type)
}

// Publisher delivers task events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event TaskEvent) error
}
