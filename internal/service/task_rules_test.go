package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"taskmanager/internal/errors"
	"taskmanager/internal/model"
)

func items(done ...bool) []model.ChecklistItem {
	out := make([]model.ChecklistItem, len(done))
	for i, d := range done {
		out[i] = model.ChecklistItem{Text: "step", Completed: d}
	}
	return out
}

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name     string
		items    []model.ChecklistItem
		expected int
	}{
		{"empty", nil, 0},
		{"none done", items(false, false), 0},
		{"half", items(true, false), 50},
		{"all done", items(true, true, true), 100},
		{"one third rounds down", items(true, false, false), 33},
		{"two thirds rounds up", items(true, true, false), 67},
		{"exact half rounds up", items(true, false, false, false, false, false, false, false), 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeProgress(tt.items))
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, model.StatusPending, DeriveStatus(0))
	assert.Equal(t, model.StatusInProgress, DeriveStatus(1))
	assert.Equal(t, model.StatusInProgress, DeriveStatus(99))
	assert.Equal(t, model.StatusCompleted, DeriveStatus(100))
}

func TestApplyChecklist(t *testing.T) {
	tests := []struct {
		name             string
		items            []model.ChecklistItem
		expectedProgress int
		expectedStatus   model.Status
	}{
		{"partial", []model.ChecklistItem{{Text: "a", Completed: true}, {Text: "b"}}, 50, model.StatusInProgress},
		{"complete", items(true, true), 100, model.StatusCompleted},
		{"empty", []model.ChecklistItem{}, 0, model.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &model.Task{Status: model.StatusCompleted, Progress: 100}
			ApplyChecklist(task, tt.items)
			assert.Equal(t, tt.expectedProgress, task.Progress)
			assert.Equal(t, tt.expectedStatus, task.Status)
			assert.Len(t, task.TodoChecklist, len(tt.items))
		})
	}
}

func TestApplyChecklist_CompletedReopens(t *testing.T) {
	task := &model.Task{}
	ApplyChecklist(task, items(true, true))
	assert.Equal(t, model.StatusCompleted, task.Status)

	ApplyChecklist(task, items(true, false))
	assert.Equal(t, model.StatusInProgress, task.Status)
	assert.Equal(t, 50, task.Progress)
}

func TestApplyStatus(t *testing.T) {
	t.Run("completed forces checklist", func(t *testing.T) {
		task := &model.Task{TodoChecklist: items(false, true, false)}
		ApplyChecklist(task, task.TodoChecklist)

		assert.NoError(t, ApplyStatus(task, model.StatusCompleted))
		assert.Equal(t, model.StatusCompleted, task.Status)
		assert.Equal(t, 100, task.Progress)
		for _, item := range task.TodoChecklist {
			assert.True(t, item.Completed)
		}
	})

	t.Run("pending keeps progress", func(t *testing.T) {
		task := &model.Task{}
		ApplyChecklist(task, items(true, true))

		assert.NoError(t, ApplyStatus(task, model.StatusPending))
		assert.Equal(t, model.StatusPending, task.Status)
		assert.Equal(t, 100, task.Progress)
		assert.Equal(t, items(true, true), task.TodoChecklist)
	})

	t.Run("invalid status", func(t *testing.T) {
		task := &model.Task{Status: model.StatusPending}
		err := ApplyStatus(task, model.Status("Done"))
		assert.ErrorIs(t, err, errors.ErrValidation)
		assert.Equal(t, model.StatusPending, task.Status)
	})
}
