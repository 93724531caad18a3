package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"taskmanager/internal/model"
)

func TestNewTaskEvent(t *testing.T) {
	actor := uuid.New()
	task := &model.Task{
		ID:         uuid.New(),
		Status:     model.StatusInProgress,
		Progress:   50,
		Version:    3,
		AssignedTo: []uuid.UUID{actor},
	}

	ev := NewTaskEvent(TaskChecklistUpdated, task.ID, actor, task)
	assert.Equal(t, "tasks.checklist_updated", ev.Subject())
	assert.Equal(t, model.StatusInProgress, ev.Status)
	assert.Equal(t, 50, ev.Progress)
	assert.Equal(t, 3, ev.Version)
	assert.False(t, ev.OccurredAt.IsZero())

	deleted := NewTaskEvent(TaskDeleted, task.ID, actor, nil)
	assert.Equal(t, "tasks.deleted", deleted.Subject())
	assert.Empty(t, deleted.Status)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NewNoopPublisher()
	assert.NoError(t, p.Publish(context.Background(), NewTaskEvent(TaskCreated, uuid.New(), uuid.New(), nil)))
}
