package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/notifications"
	apperrors "github.com/eventnest/eventnest/pkg/errors"
)

// CreateTaskInput carries the fields of a new task.
type CreateTaskInput struct {
	Title       string
	Description string
	AssigneeID  *string
	DueDate     *time.Time
	Status      models.TaskStatus
}

// UpdateTaskInput holds optional task changes. An empty AssigneeID clears the assignee.
type UpdateTaskInput struct {
	Title        *string
	Description  *string
	AssigneeID   *string
	DueDate      *time.Time
	ClearDueDate bool
	Status       *models.TaskStatus
}

func (in UpdateTaskInput) statusOnly() bool {
	return in.Title == nil && in.Description == nil && in.AssigneeID == nil &&
		in.DueDate == nil && !in.ClearDueDate
}

// TaskFilter narrows List.
type TaskFilter struct {
	Status     models.TaskStatus
	AssigneeID string
}

var validTaskStatuses = map[models.TaskStatus]struct{}{
	models.TaskTodo:       {},
	models.TaskInProgress: {},
	models.TaskDone:       {},
}

// TaskService manages the task board of each event.
type TaskService struct {
	db         *gorm.DB
	access     *AccessService
	dispatcher *notifications.Dispatcher
}

// NewTaskService constructs a TaskService. dispatcher may be nil.
func NewTaskService(db *gorm.DB, access *AccessService, dispatcher *notifications.Dispatcher) (*TaskService, error) {
	if db == nil {
		return nil, errors.New("task service: db is required")
	}
	if access == nil {
		return nil, errors.New("task service: access service is required")
	}
	return &TaskService{db: db, access: access, dispatcher: dispatcher}, nil
}

// List returns the tasks of an event to any collaborator.
func (s *TaskService) List(ctx context.Context, eventID, userID string, filter TaskFilter) ([]models.Task, error) {
	ctx = ensureContext(ctx)
	if _, err := s.access.Membership(ctx, eventID, userID); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Preload("Assignee").Preload("CreatedBy").Where("event_id = ?", eventID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AssigneeID != "" {
		query = query.Where("assignee_id = ?", filter.AssigneeID)
	}

	var tasks []models.Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task service: list tasks: %w", err)
	}
	return tasks, nil
}

// ListAssigned returns the caller's own tasks within an event.
func (s *TaskService) ListAssigned(ctx context.Context, eventID, userID string) ([]models.Task, error) {
	return s.List(ctx, eventID, userID, TaskFilter{AssigneeID: userID})
}

// Get returns one task to any collaborator.
func (s *TaskService) Get(ctx context.Context, eventID, taskID, userID string) (*models.Task, error) {
	ctx = ensureContext(ctx)
	if _, err := s.access.Membership(ctx, eventID, userID); err != nil {
		return nil, err
	}
	return s.load(ctx, eventID, taskID)
}

// EventID resolves the event owning a task.
func (s *TaskService) EventID(ctx context.Context, taskID string) (string, error) {
	var task models.Task
	if err := s.db.WithContext(ensureContext(ctx)).Select("id", "event_id").Take(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.NewNotFound("Task")
		}
		return "", fmt.Errorf("task service: load task: %w", err)
	}
	return task.EventID, nil
}

// Create adds a task. Owner only.
func (s *TaskService) Create(ctx context.Context, eventID, userID string, input CreateTaskInput) (*models.Task, *notifications.Result, error) {
	ctx = ensureContext(ctx)
	if _, err := s.access.RequireOwner(ctx, eventID, userID); err != nil {
		return nil, nil, err
	}

	task := models.Task{
		EventID:     eventID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		CreatedByID: userID,
		DueDate:     utcPtr(input.DueDate),
		Status:      input.Status,
	}
	if task.Title == "" {
		return nil, nil, apperrors.NewBadRequest("title is required")
	}
	if task.Status == "" {
		task.Status = models.TaskTodo
	}
	if _, ok := validTaskStatuses[task.Status]; !ok {
		return nil, nil, apperrors.NewBadRequest("status must be one of TODO, IN_PROGRESS, DONE")
	}
	if input.AssigneeID != nil && strings.TrimSpace(*input.AssigneeID) != "" {
		assignee := strings.TrimSpace(*input.AssigneeID)
		if !s.access.IsCollaborator(ctx, eventID, assignee) {
			return nil, nil, apperrors.NewBadRequest("Assignee must be a collaborator of this event")
		}
		task.AssigneeID = &assignee
	}

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, nil, fmt.Errorf("task service: create task: %w", err)
	}

	result := &notifications.Result{}
	if s.dispatcher != nil {
		var err error
		if result, err = s.dispatcher.TaskSaved(ctx, userID, &task, true, nil); err != nil {
			return nil, nil, err
		}
	}

	saved, err := s.load(ctx, eventID, task.ID)
	if err != nil {
		return nil, nil, err
	}
	return saved, result, nil
}

// Update applies changes. The owner may change anything, the assignee only the status.
func (s *TaskService) Update(ctx context.Context, eventID, taskID, userID string, input UpdateTaskInput) (*models.Task, *notifications.Result, error) {
	ctx = ensureContext(ctx)
	event, err := s.access.Event(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	task, err := s.load(ctx, eventID, taskID)
	if err != nil {
		return nil, nil, err
	}

	isOwner := event.OwnerID == userID
	isAssignee := task.AssigneeID != nil && *task.AssigneeID == userID
	switch {
	case isOwner:
	case isAssignee && input.statusOnly():
	case isAssignee:
		return nil, nil, apperrors.NewForbidden("Assignees can only update the task status")
	default:
		return nil, nil, apperrors.NewForbidden("Only the event owner or the assignee can update this task")
	}

	before := notifications.SnapshotTask(task)

	if title := trimmedPtr(input.Title); title != nil {
		if *title == "" {
			return nil, nil, apperrors.NewBadRequest("title cannot be empty")
		}
		task.Title = *title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = utcPtr(input.DueDate)
	}
	if input.Status != nil {
		if _, ok := validTaskStatuses[*input.Status]; !ok {
			return nil, nil, apperrors.NewBadRequest("status must be one of TODO, IN_PROGRESS, DONE")
		}
		task.Status = *input.Status
	}
	if input.AssigneeID != nil {
		assignee := strings.TrimSpace(*input.AssigneeID)
		if assignee == "" {
			task.AssigneeID = nil
			task.Assignee = nil
		} else {
			if !s.access.IsCollaborator(ctx, eventID, assignee) {
				return nil, nil, apperrors.NewBadRequest("Assignee must be a collaborator of this event")
			}
			var user models.User
			if err := s.db.WithContext(ctx).Take(&user, "id = ?", assignee).Error; err != nil {
				return nil, nil, fmt.Errorf("task service: load assignee: %w", err)
			}
			task.AssigneeID = &assignee
			task.Assignee = &user
		}
	}

	changes := notifications.Diff(before, notifications.SnapshotTask(task))
	if len(changes) == 0 {
		return task, &notifications.Result{}, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", task.ID).Updates(map[string]any{
		"title":       task.Title,
		"description": task.Description,
		"due_date":    task.DueDate,
		"status":      task.Status,
		"assignee_id": task.AssigneeID,
	}).Error; err != nil {
		return nil, nil, fmt.Errorf("task service: update task: %w", err)
	}

	result := &notifications.Result{}
	if s.dispatcher != nil {
		if result, err = s.dispatcher.TaskSaved(ctx, userID, task, false, changes); err != nil {
			return nil, nil, err
		}
	}
	return task, result, nil
}

// UpdateStatus moves a task between columns. Owner or assignee.
func (s *TaskService) UpdateStatus(ctx context.Context, eventID, taskID, userID string, status models.TaskStatus) (*models.Task, *notifications.Result, error) {
	return s.Update(ctx, eventID, taskID, userID, UpdateTaskInput{Status: &status})
}

// Delete removes a task and its discussion. Owner only.
func (s *TaskService) Delete(ctx context.Context, eventID, taskID, userID string) error {
	ctx = ensureContext(ctx)
	if _, err := s.access.RequireOwner(ctx, eventID, userID); err != nil {
		return err
	}
	task, err := s.load(ctx, eventID, taskID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteDiscussion(tx, models.TargetTask, []string{task.ID}); err != nil {
			return fmt.Errorf("task service: %w", err)
		}
		if err := tx.Where("target_kind = ? AND target_id = ?", models.TargetTask, task.ID).
			Delete(&models.ReminderNotification{}).Error; err != nil {
			return fmt.Errorf("task service: delete reminders: %w", err)
		}
		if err := tx.Delete(&models.Task{}, "id = ?", task.ID).Error; err != nil {
			return fmt.Errorf("task service: delete task: %w", err)
		}
		return nil
	})
}

func (s *TaskService) load(ctx context.Context, eventID, taskID string) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Preload("Assignee").Preload("CreatedBy").
		Where("id = ? AND event_id = ?", taskID, eventID).
		Take(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Task")
		}
		return nil, fmt.Errorf("task service: load task: %w", err)
	}
	return &task, nil
}
