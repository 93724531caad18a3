package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskmanager/internal/auth"
	"taskmanager/internal/errors"
	"taskmanager/internal/events"
	"taskmanager/internal/logger"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
)

// StatusSummary counts tasks per status within the caller's scope.
// All ignores the status filter; the other counts honour it.
type StatusSummary struct {
	All             int64 `json:"all"`
	PendingTasks    int64 `json:"pendingTasks"`
	InProgressTasks int64 `json:"inProgressTasks"`
	CompletedTasks  int64 `json:"completedTasks"`
}

// TaskList is the result of listing tasks.
type TaskList struct {
	Tasks         []model.TaskWithCount `json:"tasks"`
	StatusSummary StatusSummary         `json:"statusSummary"`
}

// CreateTaskInput carries the fields of a new task.
type CreateTaskInput struct {
	Title         string
	Description   string
	Priority      model.Priority
	DueDate       time.Time
	AssignedTo    []uuid.UUID
	Attachments   []string
	TodoChecklist []model.ChecklistItem
}

// UpdateTaskInput carries a partial task update; nil fields are left unchanged.
type UpdateTaskInput struct {
	Title         *string
	Description   *string
	Priority      *model.Priority
	DueDate       *time.Time
	AssignedTo    *[]uuid.UUID
	Attachments   *[]string
	TodoChecklist *[]model.ChecklistItem
	// Version, when set, must equal the stored version.
	Version *int
}

// TaskService manages tasks and their lifecycle.
type TaskService interface {
	List(ctx context.Context, p auth.Principal, status model.Status) (*TaskList, error)
	Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*model.Task, error)
	Create(ctx context.Context, p auth.Principal, in CreateTaskInput) (*model.Task, error)
	Update(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateTaskInput) (*model.Task, error)
	Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error
	UpdateStatus(ctx context.Context, p auth.Principal, id uuid.UUID, status model.Status, version *int) (*model.Task, error)
	UpdateChecklist(ctx context.Context, p auth.Principal, id uuid.UUID, checklist []model.ChecklistItem, version *int) (*model.Task, error)
}

type taskService struct {
	taskRepo  repository.TaskRepository
	userRepo  repository.UserRepository
	publisher events.Publisher
}

// NewTaskService creates a new task service.
func NewTaskService(taskRepo repository.TaskRepository, userRepo repository.UserRepository, publisher events.Publisher) TaskService {
	return &taskService{
		taskRepo:  taskRepo,
		userRepo:  userRepo,
		publisher: publisher,
	}
}

// List returns the tasks in the principal's scope, newest first.
func (s *taskService) List(ctx context.Context, p auth.Principal, status model.Status) (*TaskList, error) {
	if status != "" && !status.Valid() {
		return nil, errors.NewValidationError("status", "must be one of Pending, In Progress, Completed")
	}

	scope := repository.TaskFilter{AssigneeID: p.ScopeAssignee()}
	filter := scope
	filter.Status = status

	tasks, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	counts, err := s.taskRepo.CountGroupedBy(ctx, scope, repository.GroupByStatus)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	out := &TaskList{Tasks: make([]model.TaskWithCount, 0, len(tasks))}
	for _, t := range tasks {
		out.Tasks = append(out.Tasks, model.TaskWithCount{Task: t, CompletedCount: t.CompletedCount()})
	}

	for _, n := range counts {
		out.StatusSummary.All += n
	}
	inFilter := func(st model.Status) int64 {
		if status != "" && status != st {
			return 0
		}
		return counts[string(st)]
	}
	out.StatusSummary.PendingTasks = inFilter(model.StatusPending)
	out.StatusSummary.InProgressTasks = inFilter(model.StatusInProgress)
	out.StatusSummary.CompletedTasks = inFilter(model.StatusCompleted)
	return out, nil
}

// Get returns one task with its assignees' profiles.
func (s *taskService) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*model.Task, error) {
	task, err := s.findTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(task) {
		return nil, errors.ErrForbidden
	}
	return task, nil
}

// Create stores a new task owned by the calling admin.
func (s *taskService) Create(ctx context.Context, p auth.Principal, in CreateTaskInput) (*model.Task, error) {
	if !p.IsAdmin() {
		return nil, errors.ErrForbidden
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.NewValidationError("title", "is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, errors.NewValidationError("priority", "must be one of Low, Medium, High")
	}
	if in.DueDate.IsZero() {
		return nil, errors.NewValidationError("dueDate", "is required")
	}
	if err := validateChecklist(in.TodoChecklist); err != nil {
		return nil, err
	}
	assignees, err := s.resolveAssignees(ctx, in.AssignedTo)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		Title:       title,
		Description: in.Description,
		Priority:    priority,
		DueDate:     in.DueDate.UTC(),
		CreatedBy:   p.ID,
		AssignedTo:  assignees,
		Attachments: normalizeAttachments(in.Attachments),
	}
	ApplyChecklist(task, in.TodoChecklist)

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	created, err := s.findTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "task created", "task_id", created.ID, "created_by", p.ID)
	s.publish(ctx, events.NewTaskEvent(events.TaskCreated, created.ID, p.ID, created))
	return created, nil
}

// Update applies a partial update. Only the admin who created the task may update it.
func (s *taskService) Update(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateTaskInput) (*model.Task, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, errors.NewValidationError("title", "must not be empty")
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return nil, errors.NewValidationError("priority", "must be one of Low, Medium, High")
	}
	if in.DueDate != nil && in.DueDate.IsZero() {
		return nil, errors.NewValidationError("dueDate", "must be a valid date")
	}
	if in.TodoChecklist != nil {
		if err := validateChecklist(*in.TodoChecklist); err != nil {
			return nil, err
		}
	}

	// Assignee lookups run before the transaction opens.
	var assignees []uuid.UUID
	if in.AssignedTo != nil {
		resolved, err := s.resolveAssignees(ctx, *in.AssignedTo)
		if err != nil {
			return nil, err
		}
		assignees = resolved
	}

	err := s.taskRepo.WithTransaction(ctx, func(ctx context.Context, repo repository.TaskRepository) error {
		task, err := lockTask(ctx, repo, id)
		if err != nil {
			return err
		}
		if !p.CanManage(task) {
			return errors.ErrForbidden
		}
		if err := checkVersion(task, in.Version); err != nil {
			return err
		}

		if in.Title != nil {
			task.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			task.Description = *in.Description
		}
		if in.Priority != nil {
			task.Priority = *in.Priority
		}
		if in.DueDate != nil {
			task.DueDate = in.DueDate.UTC()
		}
		if in.Attachments != nil {
			task.Attachments = normalizeAttachments(*in.Attachments)
		}
		if in.TodoChecklist != nil {
			ApplyChecklist(task, *in.TodoChecklist)
		}

		if err := repo.Save(ctx, task, task.Version); err != nil {
			return err
		}
		if assignees != nil {
			if err := repo.ReplaceAssignees(ctx, task.ID, assignees); err != nil {
				return fmt.Errorf("replace assignees: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.findTask(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "task updated", "task_id", id, "version", updated.Version)
	s.publish(ctx, events.NewTaskEvent(events.TaskUpdated, id, p.ID, updated))
	return updated, nil
}

// Delete removes a task and its assignments. Only the admin who created it may delete it.
func (s *taskService) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	err := s.taskRepo.WithTransaction(ctx, func(ctx context.Context, repo repository.TaskRepository) error {
		task, err := lockTask(ctx, repo, id)
		if err != nil {
			return err
		}
		if !p.CanManage(task) {
			return errors.ErrForbidden
		}
		if err := repo.Delete(ctx, id); err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrTaskNotFound
			}
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "task deleted", "task_id", id, "deleted_by", p.ID)
	s.publish(ctx, events.NewTaskEvent(events.TaskDeleted, id, p.ID, nil))
	return nil
}

// UpdateStatus sets an explicit status. Completed forces the whole checklist done.
func (s *taskService) UpdateStatus(ctx context.Context, p auth.Principal, id uuid.UUID, status model.Status, version *int) (*model.Task, error) {
	if !status.Valid() {
		return nil, errors.NewValidationError("status", "must be one of Pending, In Progress, Completed")
	}
	return s.mutateLifecycle(ctx, p, id, version, events.TaskStatusChanged, func(task *model.Task) error {
		return ApplyStatus(task, status)
	})
}

// UpdateChecklist replaces the checklist and derives progress and status from it.
func (s *taskService) UpdateChecklist(ctx context.Context, p auth.Principal, id uuid.UUID, checklist []model.ChecklistItem, version *int) (*model.Task, error) {
	if err := validateChecklist(checklist); err != nil {
		return nil, err
	}
	return s.mutateLifecycle(ctx, p, id, version, events.TaskChecklistUpdated, func(task *model.Task) error {
		ApplyChecklist(task, checklist)
		return nil
	})
}

// mutateLifecycle runs one locked read-modify-write for status or checklist changes.
func (s *taskService) mutateLifecycle(
	ctx context.Context,
	p auth.Principal,
	id uuid.UUID,
	version *int,
	eventType events.Type,
	apply func(task *model.Task) error,
) (*model.Task, error) {
	err := s.taskRepo.WithTransaction(ctx, func(ctx context.Context, repo repository.TaskRepository) error {
		task, err := lockTask(ctx, repo, id)
		if err != nil {
			return err
		}
		if !p.CanAccess(task) {
			return errors.ErrForbidden
		}
		if err := checkVersion(task, version); err != nil {
			return err
		}
		if err := apply(task); err != nil {
			return err
		}
		return repo.Save(ctx, task, task.Version)
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrConflict) {
			logger.WarnContext(ctx, "task version conflict", "task_id", id)
		}
		return nil, err
	}

	updated, err := s.findTask(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewTaskEvent(eventType, id, p.ID, updated))
	return updated, nil
}

func (s *taskService) findTask(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return task, nil
}

// resolveAssignees de-duplicates ids and checks every one names an existing user.
func (s *taskService) resolveAssignees(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, errors.NewValidationError("assignedTo", "must contain at least one user")
	}

	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, errors.NewValidationError("assignedTo", "contains an invalid user id")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	n, err := s.userRepo.CountByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("check assignees: %w", err)
	}
	if n != int64(len(unique)) {
		return nil, errors.NewValidationError("assignedTo", "contains an unknown user")
	}
	return unique, nil
}

func (s *taskService) publish(ctx context.Context, event events.TaskEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.ErrorContext(ctx, "failed to publish task event",
			"subject", event.Subject(),
			"task_id", event.TaskID,
			"error", err,
		)
	}
}

func lockTask(ctx context.Context, repo repository.TaskRepository, id uuid.UUID) (*model.Task, error) {
	task, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrTaskNotFound
		}
		return nil, fmt.Errorf("lock task: %w", err)
	}
	return task, nil
}

func checkVersion(task *model.Task, expected *int) error {
	if expected != nil && *expected != task.Version {
		return errors.ErrConflict
	}
	return nil
}

func validateChecklist(items []model.ChecklistItem) error {
	for i, item := range items {
		if strings.TrimSpace(item.Text) == "" {
			return errors.NewValidationError(fmt.Sprintf("todoChecklist[%d].text", i), "is required")
		}
	}
	return nil
}

func normalizeAttachments(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
