package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskmanager/internal/model"
	"taskmanager/internal/service"
)

// TaskHandler handles task endpoints.
type TaskHandler struct {
	taskService service.TaskService
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// ChecklistItemRequest is one checklist entry in a request.
type ChecklistItemRequest struct {
	Text      string `json:"text" validate:"required"`
	Completed bool   `json:"completed"`
}

// CreateTaskRequest represents a task creation request.
type CreateTaskRequest struct {
	Title         string                 `json:"title" validate:"required"`
	Description   string                 `json:"description"`
	Priority      string                 `json:"priority" validate:"omitempty,oneof=Low Medium High"`
	DueDate       time.Time              `json:"dueDate"`
	AssignedTo    []string               `json:"assignedTo" validate:"required,min=1,dive,uuid"`
	Attachments   []string               `json:"attachments"`
	TodoChecklist []ChecklistItemRequest `json:"todoChecklist" validate:"dive"`
}

// UpdateTaskRequest represents a partial task update. Omitted fields are unchanged.
type UpdateTaskRequest struct {
	Title         *string                 `json:"title" validate:"omitempty,min=1"`
	Description   *string                 `json:"description"`
	Priority      *string                 `json:"priority" validate:"omitempty,oneof=Low Medium High"`
	DueDate       *time.Time              `json:"dueDate"`
	AssignedTo    *[]string               `json:"assignedTo" validate:"omitempty,min=1,dive,uuid"`
	Attachments   *[]string               `json:"attachments"`
	TodoChecklist *[]ChecklistItemRequest `json:"todoChecklist" validate:"omitempty,dive"`
	Version       *int                    `json:"version"`
}

// UpdateStatusRequest represents an explicit status change.
type UpdateStatusRequest struct {
	Status  string `json:"status" validate:"required"`
	Version *int   `json:"version"`
}

// UpdateChecklistRequest replaces a task's checklist.
type UpdateChecklistRequest struct {
	TodoChecklist []ChecklistItemRequest `json:"todoChecklist" validate:"required,dive"`
	Version       *int                   `json:"version"`
}

// TaskResponse wraps a mutated task.
type TaskResponse struct {
	Message string      `json:"message"`
	Task    *model.Task `json:"task"`
}

func toChecklist(in []ChecklistItemRequest) []model.ChecklistItem {
	out := make([]model.ChecklistItem, len(in))
	for i, item := range in {
		out[i] = model.ChecklistItem{Text: item.Text, Completed: item.Completed}
	}
	return out
}

// parseIDs converts validated uuid strings.
func parseIDs(in []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(in))
	for _, s := range in {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, badRequest("INVALID_UUID", "invalid assignedTo id")
		}
		out = append(out, id)
	}
	return out, nil
}

// ListTasks godoc
// @Summary List tasks in the caller's scope
// @Description Admins see every task, members only tasks assigned to them.
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter" Enums(Pending, In Progress, Completed)
// @Success 200 {object} service.TaskList
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	list, err := h.taskService.List(c.Request().Context(), p, model.Status(c.QueryParam("status")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// GetTask godoc
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	task, err := h.taskService.Get(c.Request().Context(), p, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

// CreateTask godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTaskRequest true "Task data"
// @Success 201 {object} TaskResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req CreateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	assignees, err := parseIDs(req.AssignedTo)
	if err != nil {
		return err
	}

	task, err := h.taskService.Create(c.Request().Context(), p, service.CreateTaskInput{
		Title:         req.Title,
		Description:   req.Description,
		Priority:      model.Priority(req.Priority),
		DueDate:       req.DueDate,
		AssignedTo:    assignees,
		Attachments:   req.Attachments,
		TodoChecklist: toChecklist(req.TodoChecklist),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, TaskResponse{Message: "task created successfully", Task: task})
}

// UpdateTask godoc
// @Summary Update a task
// @Description Only the admin who created the task may update it.
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body UpdateTaskRequest true "Fields to change"
// @Success 200 {object} TaskResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	in := service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Attachments: req.Attachments,
		Version:     req.Version,
	}
	if req.Priority != nil {
		priority := model.Priority(*req.Priority)
		in.Priority = &priority
	}
	if req.AssignedTo != nil {
		assignees, err := parseIDs(*req.AssignedTo)
		if err != nil {
			return err
		}
		in.AssignedTo = &assignees
	}
	if req.TodoChecklist != nil {
		checklist := toChecklist(*req.TodoChecklist)
		in.TodoChecklist = &checklist
	}

	task, err := h.taskService.Update(c.Request().Context(), p, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, TaskResponse{Message: "task updated successfully", Task: task})
}

// DeleteTask godoc
// @Summary Delete a task
// @Description Only the admin who created the task may delete it.
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.taskService.Delete(c.Request().Context(), p, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "task deleted successfully"})
}

// UpdateTaskStatus godoc
// @Summary Set a task's status
// @Description Completed marks every checklist item done and sets progress to 100.
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body UpdateStatusRequest true "New status"
// @Success 200 {object} TaskResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /tasks/{id}/status [put]
func (h *TaskHandler) UpdateTaskStatus(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.UpdateStatus(c.Request().Context(), p, id, model.Status(req.Status), req.Version)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, TaskResponse{Message: "task status updated", Task: task})
}

// UpdateTaskChecklist godoc
// @Summary Replace a task's checklist
// @Description Progress and status are derived from the new checklist.
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body UpdateChecklistRequest true "Checklist"
// @Success 200 {object} TaskResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /tasks/{id}/todo [put]
func (h *TaskHandler) UpdateTaskChecklist(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateChecklistRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.UpdateChecklist(c.Request().Context(), p, id, toChecklist(req.TodoChecklist), req.Version)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, TaskResponse{Message: "task checklist updated", Task: task})
}
