package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/services"
	"github.com/eventnest/eventnest/pkg/response"
)

// TaskHandler exposes the task board of an event.
type TaskHandler struct {
	tasks *services.TaskService
}

func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

type createTaskRequest struct {
	Title       string            `json:"title" validate:"required,max=255"`
	Description string            `json:"description"`
	AssigneeID  *string           `json:"assignee_id"`
	DueDate     *time.Time        `json:"due_date"`
	Status      models.TaskStatus `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
}

type updateTaskRequest struct {
	Title        *string            `json:"title" validate:"omitempty,min=1,max=255"`
	Description  *string            `json:"description"`
	AssigneeID   *string            `json:"assignee_id"`
	DueDate      *time.Time         `json:"due_date"`
	ClearDueDate bool               `json:"clear_due_date"`
	Status       *models.TaskStatus `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
}

type taskStatusRequest struct {
	Status models.TaskStatus `json:"status" validate:"required,oneof=TODO IN_PROGRESS DONE"`
}

// GET /api/events/:eventID/tasks
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	tasks, err := h.tasks.List(requestContext(c), param(c, "eventID"), userID, services.TaskFilter{
		Status:     models.TaskStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		AssigneeID: strings.TrimSpace(c.Query("assignee")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tasks)
}

// GET /api/events/:eventID/tasks/assigned
func (h *TaskHandler) Assigned(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	tasks, err := h.tasks.ListAssigned(requestContext(c), param(c, "eventID"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tasks)
}

// POST /api/events/:eventID/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req createTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}
	task, _, err := h.tasks.Create(requestContext(c), param(c, "eventID"), userID, services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
		Status:      req.Status,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, task)
}

// GET /api/events/:eventID/tasks/:taskID
func (h *TaskHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	task, err := h.tasks.Get(requestContext(c), param(c, "eventID"), param(c, "taskID"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// PATCH /api/events/:eventID/tasks/:taskID
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}
	task, _, err := h.tasks.Update(requestContext(c), param(c, "eventID"), param(c, "taskID"), userID, services.UpdateTaskInput{
		Title:        req.Title,
		Description:  req.Description,
		AssigneeID:   req.AssigneeID,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
		Status:       req.Status,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// PATCH /api/events/:eventID/tasks/:taskID/status
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req taskStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}
	task, _, err := h.tasks.UpdateStatus(requestContext(c), param(c, "eventID"), param(c, "taskID"), userID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// DELETE /api/events/:eventID/tasks/:taskID
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.tasks.Delete(requestContext(c), param(c, "eventID"), param(c, "taskID"), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
