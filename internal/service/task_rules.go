package service

import (
	"github.com/shopspring/decimal"

	"taskmanager/internal/errors"
	"taskmanager/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ComputeProgress returns the completed share of the checklist as a whole percentage,
// rounded half up. An empty checklist is 0.
func ComputeProgress(items []model.ChecklistItem) int {
	if len(items) == 0 {
		return 0
	}
	done := 0
	for _, item := range items {
		if item.Completed {
			done++
		}
	}
	pct := decimal.NewFromInt(int64(done)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(len(items)))).
		Round(0)
	return int(pct.IntPart())
}

// DeriveStatus maps a progress value onto the lifecycle.
func DeriveStatus(progress int) model.Status {
	switch {
	case progress <= 0:
		return model.StatusPending
	case progress >= 100:
		return model.StatusCompleted
	default:
		return model.StatusInProgress
	}
}

// ApplyChecklist replaces the checklist and recomputes progress and status.
func ApplyChecklist(task *model.Task, items []model.ChecklistItem) {
	checklist := make([]model.ChecklistItem, len(items))
	copy(checklist, items)
	task.TodoChecklist = checklist
	task.Progress = ComputeProgress(checklist)
	task.Status = DeriveStatus(task.Progress)
}

// ApplyStatus sets an explicit status. Completed also checks every item and sets progress to 100;
// other statuses leave checklist and progress untouched.
func ApplyStatus(task *model.Task, status model.Status) error {
	if !status.Valid() {
		return errors.NewValidationError("status", "must be one of Pending, In Progress, Completed")
	}
	task.Status = status
	if status == model.StatusCompleted {
		checklist := make([]model.ChecklistItem, len(task.TodoChecklist))
		for i, item := range task.TodoChecklist {
			checklist[i] = model.ChecklistItem{Text: item.Text, Completed: true}
		}
		task.TodoChecklist = checklist
		task.Progress = 100
	}
	return nil
}
