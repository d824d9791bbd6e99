package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/notifications"
	apperrors "github.com/eventnest/eventnest/pkg/errors"
)

// CreateEventInput carries the fields of a new event.
type CreateEventInput struct {
	Name      string
	Type      string
	Location  string
	Notes     string
	StartDate time.Time
	EndDate   time.Time
	Status    models.EventStatus
}

// UpdateEventInput holds optional event changes. Nil fields are left untouched.
type UpdateEventInput struct {
	Name      *string
	Type      *string
	Location  *string
	Notes     *string
	StartDate *time.Time
	EndDate   *time.Time
	Status    *models.EventStatus
}

// EventOption customises EventService.
type EventOption func(*EventService)

// WithEventClock injects the clock used for status window checks.
func WithEventClock(clock func() time.Time) EventOption {
	return func(s *EventService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// EventService manages events and their collaborator list.
type EventService struct {
	db         *gorm.DB
	access     *AccessService
	dispatcher *notifications.Dispatcher
	now        func() time.Time
}

// NewEventService constructs an EventService. dispatcher may be nil.
func NewEventService(db *gorm.DB, access *AccessService, dispatcher *notifications.Dispatcher, opts ...EventOption) (*EventService, error) {
	if db == nil {
		return nil, errors.New("event service: db is required")
	}
	if access == nil {
		return nil, errors.New("event service: access service is required")
	}
	s := &EventService{db: db, access: access, dispatcher: dispatcher, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List returns events the user owns or collaborates on, newest first.
func (s *EventService) List(ctx context.Context, userID string, page, pageSize int) ([]models.Event, int64, error) {
	ctx = ensureContext(ctx)
	page, pageSize = normalisePage(page, pageSize)

	visible := func() *gorm.DB {
		memberOf := s.db.Model(&models.Collaborator{}).Select("event_id").Where("user_id = ?", userID)
		return s.db.WithContext(ctx).Model(&models.Event{}).
			Where("owner_id = ? OR id IN (?)", userID, memberOf)
	}

	var total int64
	if err := visible().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("event service: count events: %w", err)
	}

	var events []models.Event
	if err := visible().Preload("Owner").
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("event service: list events: %w", err)
	}
	return events, total, nil
}

// Create stores the event together with the creator's ADMIN membership and a disabled budget.
func (s *EventService) Create(ctx context.Context, userID string, input CreateEventInput) (*models.Event, error) {
	ctx = ensureContext(ctx)

	event := models.Event{
		OwnerID:   userID,
		Name:      strings.TrimSpace(input.Name),
		Type:      strings.TrimSpace(input.Type),
		Location:  strings.TrimSpace(input.Location),
		Notes:     input.Notes,
		StartDate: input.StartDate.UTC(),
		EndDate:   input.EndDate.UTC(),
		Status:    input.Status,
	}
	if event.Name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	if event.Status == "" {
		event.Status = models.EventStatusOngoing
	}
	if err := event.ValidateWindow(s.now()); err != nil {
		return nil, windowError(err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("event service: create event: %w", err)
		}
		member := models.Collaborator{
			UserID:   userID,
			EventID:  event.ID,
			Role:     models.RoleAdmin,
			JoinedAt: s.now().UTC(),
		}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("event service: create admin membership: %w", err)
		}
		budget := models.Budget{
			EventID:   event.ID,
			Amount:    decimal.Zero,
			Currency:  models.DefaultCurrency,
			IsEnabled: false,
		}
		if err := tx.Create(&budget).Error; err != nil {
			return fmt.Errorf("event service: create budget: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Get returns the event to any collaborator.
func (s *EventService) Get(ctx context.Context, eventID, userID string) (*models.Event, error) {
	if _, err := s.access.Membership(ctx, eventID, userID); err != nil {
		return nil, err
	}
	var event models.Event
	if err := s.db.WithContext(ensureContext(ctx)).Preload("Owner").Take(&event, "id = ?", eventID).Error; err != nil {
		return nil, fmt.Errorf("event service: load event: %w", notFoundOr(err, "Event"))
	}
	return &event, nil
}

// Update applies owner changes, validates the status window and notifies collaborators.
func (s *EventService) Update(ctx context.Context, eventID, userID string, input UpdateEventInput) (*models.Event, *notifications.Result, error) {
	ctx = ensureContext(ctx)
	event, err := s.access.RequireOwner(ctx, eventID, userID)
	if err != nil {
		return nil, nil, err
	}
	before := notifications.SnapshotEvent(event)

	if name := trimmedPtr(input.Name); name != nil {
		if *name == "" {
			return nil, nil, apperrors.NewBadRequest("name cannot be empty")
		}
		event.Name = *name
	}
	if input.Type != nil {
		event.Type = strings.TrimSpace(*input.Type)
	}
	if input.Location != nil {
		event.Location = strings.TrimSpace(*input.Location)
	}
	if input.Notes != nil {
		event.Notes = *input.Notes
	}
	if input.StartDate != nil {
		event.StartDate = input.StartDate.UTC()
	}
	if input.EndDate != nil {
		event.EndDate = input.EndDate.UTC()
	}
	if input.Status != nil {
		event.Status = *input.Status
	}
	if err := event.ValidateWindow(s.now()); err != nil {
		return nil, nil, windowError(err)
	}

	changes := notifications.Diff(before, notifications.SnapshotEvent(event))
	if len(changes) == 0 {
		return event, &notifications.Result{}, nil
	}

	event.UpdatedByID = &userID
	if err := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", event.ID).Updates(map[string]any{
		"name":          event.Name,
		"type":          event.Type,
		"location":      event.Location,
		"notes":         event.Notes,
		"start_date":    event.StartDate,
		"end_date":      event.EndDate,
		"status":        event.Status,
		"updated_by_id": event.UpdatedByID,
	}).Error; err != nil {
		return nil, nil, fmt.Errorf("event service: update event: %w", err)
	}

	result := &notifications.Result{}
	if s.dispatcher != nil {
		result, err = s.dispatcher.EventUpdated(ctx, userID, event, changes)
		if err != nil {
			return nil, nil, err
		}
	}
	return event, result, nil
}

// Delete removes the event and everything that hangs off it.
func (s *EventService) Delete(ctx context.Context, eventID, userID string) error {
	ctx = ensureContext(ctx)
	if _, err := s.access.RequireOwner(ctx, eventID, userID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		budgetIDs := tx.Model(&models.Budget{}).Select("id").Where("event_id = ?", eventID)
		expenseIDs := tx.Model(&models.Expense{}).Select("id").Where("budget_id IN (?)", budgetIDs)
		taskIDs := tx.Model(&models.Task{}).Select("id").Where("event_id = ?", eventID)

		var expenseList, taskList []string
		if err := expenseIDs.Pluck("id", &expenseList).Error; err != nil {
			return fmt.Errorf("event service: collect expenses: %w", err)
		}
		if err := taskIDs.Pluck("id", &taskList).Error; err != nil {
			return fmt.Errorf("event service: collect tasks: %w", err)
		}

		if err := deleteDiscussion(tx, models.TargetExpense, expenseList); err != nil {
			return err
		}
		if err := deleteDiscussion(tx, models.TargetTask, taskList); err != nil {
			return err
		}

		steps := []struct {
			name  string
			query *gorm.DB
			model any
		}{
			{"reminders", tx.Where("target_id IN ?", append(append([]string{}, expenseList...), taskList...)), &models.ReminderNotification{}},
			{"expenses", tx.Where("id IN ?", expenseList), &models.Expense{}},
			{"tasks", tx.Where("event_id = ?", eventID), &models.Task{}},
			{"budget", tx.Where("event_id = ?", eventID), &models.Budget{}},
			{"invitations", tx.Where("event_id = ?", eventID), &models.Invitation{}},
			{"collaborators", tx.Where("event_id = ?", eventID), &models.Collaborator{}},
			{"event", tx.Where("id = ?", eventID), &models.Event{}},
		}
		for _, step := range steps {
			if err := step.query.Delete(step.model).Error; err != nil {
				return fmt.Errorf("event service: delete %s: %w", step.name, err)
			}
		}
		return nil
	})
}

// ListCollaborators returns the memberships of an event to any collaborator.
func (s *EventService) ListCollaborators(ctx context.Context, eventID, userID string) ([]models.Collaborator, error) {
	if _, err := s.access.Membership(ctx, eventID, userID); err != nil {
		return nil, err
	}
	var members []models.Collaborator
	if err := s.db.WithContext(ensureContext(ctx)).Preload("User").
		Where("event_id = ?", eventID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("event service: list collaborators: %w", err)
	}
	return members, nil
}

// deleteDiscussion removes comments (replies first) and typing rows of the given targets.
func deleteDiscussion(tx *gorm.DB, kind models.TargetKind, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("target_kind = ? AND target_id IN ?", kind, ids).Delete(&models.TypingStatus{}).Error; err != nil {
		return fmt.Errorf("delete %s typing: %w", kind, err)
	}
	if err := tx.Where("target_kind = ? AND target_id IN ? AND parent_id IS NOT NULL", kind, ids).Delete(&models.Comment{}).Error; err != nil {
		return fmt.Errorf("delete %s replies: %w", kind, err)
	}
	if err := tx.Where("target_kind = ? AND target_id IN ?", kind, ids).Delete(&models.Comment{}).Error; err != nil {
		return fmt.Errorf("delete %s comments: %w", kind, err)
	}
	return nil
}
