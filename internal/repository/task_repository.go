package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskmanager/internal/errors"
	"taskmanager/internal/model"
)

// TaskFilter narrows task queries. Zero values mean "no restriction".
type TaskFilter struct {
	AssigneeID    *uuid.UUID
	Status        model.Status
	ExcludeStatus model.Status
	DueBefore     *time.Time
}

func (f TaskFilter) apply(q *gorm.DB) *gorm.DB {
	if f.AssigneeID != nil {
		q = q.Where("id IN (SELECT task_id FROM task_assignees WHERE user_id = ?)", *f.AssigneeID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ExcludeStatus != "" {
		q = q.Where("status <> ?", f.ExcludeStatus)
	}
	if f.DueBefore != nil {
		q = q.Where("due_date < ?", *f.DueBefore)
	}
	return q
}

// Columns tasks may be grouped by.
const (
	GroupByStatus   = "status"
	GroupByPriority = "priority"
)

// taskStateColumns are written together so checklist, progress and status never diverge.
var taskStateColumns = []string{
	"title", "description", "priority", "status", "due_date",
	"attachments", "todo_checklist", "progress", "version", "updated_at",
}

// TaskRepository defines task persistence operations.
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	Save(ctx context.Context, task *model.Task, expectedVersion int) error
	ReplaceAssignees(ctx context.Context, taskID uuid.UUID, userIDs []uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context, filter TaskFilter) (int64, error)
	CountGroupedBy(ctx context.Context, filter TaskFilter, column string) (map[string]int64, error)
	CountByAssigneeAndStatus(ctx context.Context) (map[uuid.UUID]map[model.Status]int64, error)
	Recent(ctx context.Context, filter TaskFilter, limit int) ([]model.TaskSummary, error)
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo TaskRepository) error) error
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create inserts the task together with one assignment row per AssignedTo entry.
func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	task.Assignees = make([]model.TaskAssignee, 0, len(task.AssignedTo))
	for _, id := range task.AssignedTo {
		task.Assignees = append(task.Assignees, model.TaskAssignee{UserID: id})
	}
	return r.db.WithContext(ctx).Create(task).Error
}

// FindByID finds a task by ID with its assignees' profiles.
func (r *taskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Preload("Assignees.User").
		Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	task.SyncAssignedTo()
	return &task, nil
}

// FindByIDForUpdate finds a task by ID with a row-level lock. Call it inside WithTransaction.
func (r *taskRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Assignees").
		Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	task.SyncAssignedTo()
	return &task, nil
}

// List returns matching tasks, newest first, with assignee profiles.
func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var tasks []model.Task
	q := filter.apply(r.db.WithContext(ctx).Model(&model.Task{}))
	if err := q.Preload("Assignees.User").Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].SyncAssignedTo()
	}
	return tasks, nil
}

// Save writes the task's mutable columns if the stored version still equals expectedVersion,
// and bumps the version. A stale version yields errors.ErrConflict.
func (r *taskRepository) Save(ctx context.Context, task *model.Task, expectedVersion int) error {
	task.Version = expectedVersion + 1
	res := r.db.WithContext(ctx).Model(task).
		Where("version = ?", expectedVersion).
		Select(taskStateColumns).
		Omit(clause.Associations).
		Updates(task)
	if res.Error != nil {
		task.Version = expectedVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		task.Version = expectedVersion
		return errors.ErrConflict
	}
	return nil
}

// ReplaceAssignees swaps the whole assignment set of a task.
func (r *taskRepository) ReplaceAssignees(ctx context.Context, taskID uuid.UUID, userIDs []uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("task_id = ?", taskID).Delete(&model.TaskAssignee{}).Error; err != nil {
		return fmt.Errorf("clear assignees: %w", err)
	}
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]model.TaskAssignee, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, model.TaskAssignee{TaskID: taskID, UserID: id})
	}
	return db.Create(&rows).Error
}

// Delete hard-deletes a task and its assignment rows.
func (r *taskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&model.TaskAssignee{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// Count counts tasks matching filter.
func (r *taskRepository) Count(ctx context.Context, filter TaskFilter) (int64, error) {
	var count int64
	err := filter.apply(r.db.WithContext(ctx).Model(&model.Task{})).Count(&count).Error
	return count, err
}

type groupCount struct {
	Grp   string
	Total int64
}

// CountGroupedBy counts matching tasks per distinct value of column (GroupByStatus or GroupByPriority).
// Only values present in the data appear in the result.
func (r *taskRepository) CountGroupedBy(ctx context.Context, filter TaskFilter, column string) (map[string]int64, error) {
	if column != GroupByStatus && column != GroupByPriority {
		return nil, fmt.Errorf("unsupported group column %q", column)
	}

	var rows []groupCount
	q := filter.apply(r.db.WithContext(ctx).Model(&model.Task{}))
	if err := q.Select(column + " AS grp, COUNT(*) AS total").Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Grp] = row.Total
	}
	return out, nil
}

type assigneeStatusCount struct {
	UserID uuid.UUID
	Status model.Status
	Total  int64
}

// CountByAssigneeAndStatus counts assigned tasks per user and status in one query.
func (r *taskRepository) CountByAssigneeAndStatus(ctx context.Context) (map[uuid.UUID]map[model.Status]int64, error) {
	var rows []assigneeStatusCount
	err := r.db.WithContext(ctx).
		Table("task_assignees").
		Select("task_assignees.user_id AS user_id, tasks.status AS status, COUNT(*) AS total").
		Joins("JOIN tasks ON tasks.id = task_assignees.task_id").
		Group("task_assignees.user_id, tasks.status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]map[model.Status]int64)
	for _, row := range rows {
		if out[row.UserID] == nil {
			out[row.UserID] = make(map[model.Status]int64, 3)
		}
		out[row.UserID][row.Status] = row.Total
	}
	return out, nil
}

// Recent returns the newest matching tasks projected for dashboards.
func (r *taskRepository) Recent(ctx context.Context, filter TaskFilter, limit int) ([]model.TaskSummary, error) {
	var out []model.TaskSummary
	q := filter.apply(r.db.WithContext(ctx).Model(&model.Task{}))
	err := q.Select("id, title, status, priority, due_date, created_at").
		Order("created_at DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// WithTransaction executes a function within a database transaction.
func (r *taskRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo TaskRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &taskRepository{db: tx}
		return fn(ctx, txRepo)
	})
}
