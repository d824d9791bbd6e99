package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
	apperrors "github.com/eventnest/eventnest/pkg/errors"
)

// AccessService answers membership questions about events.
type AccessService struct {
	db *gorm.DB
}

// NewAccessService constructs an AccessService.
func NewAccessService(db *gorm.DB) (*AccessService, error) {
	if db == nil {
		return nil, errors.New("access service: db is required")
	}
	return &AccessService{db: db}, nil
}

// Event loads an event or returns ErrNotFound.
func (s *AccessService) Event(ctx context.Context, eventID string) (*models.Event, error) {
	ctx = ensureContext(ctx)
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, apperrors.NewNotFound("Event")
	}

	var event models.Event
	if err := s.db.WithContext(ctx).Take(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Event")
		}
		return nil, fmt.Errorf("access service: load event: %w", err)
	}
	return &event, nil
}

// Membership returns the user's collaborator row. A missing event yields ErrNotFound,
// a non-member ErrForbidden.
func (s *AccessService) Membership(ctx context.Context, eventID, userID string) (*models.Collaborator, error) {
	if _, err := s.Event(ctx, eventID); err != nil {
		return nil, err
	}

	var member models.Collaborator
	err := s.db.WithContext(ensureContext(ctx)).
		Preload("User").
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewForbidden("You are not a collaborator on this event")
	}
	if err != nil {
		return nil, fmt.Errorf("access service: load membership: %w", err)
	}
	return &member, nil
}

// RequireOwner returns the event when userID owns it.
func (s *AccessService) RequireOwner(ctx context.Context, eventID, userID string) (*models.Event, error) {
	event, err := s.Event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != userID {
		return nil, apperrors.NewForbidden("Only the event owner can perform this action")
	}
	return event, nil
}

// RequireAdmin returns the membership when the user owns the event or holds ADMIN.
func (s *AccessService) RequireAdmin(ctx context.Context, eventID, userID string) (*models.Collaborator, error) {
	event, err := s.Event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	member, err := s.Membership(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != userID && !member.IsAdmin() {
		return nil, apperrors.NewForbidden("Only event admins can perform this action")
	}
	return member, nil
}

// IsCollaborator reports membership, treating lookup failures as false.
func (s *AccessService) IsCollaborator(ctx context.Context, eventID, userID string) bool {
	var count int64
	if err := s.db.WithContext(ensureContext(ctx)).Model(&models.Collaborator{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// CollaboratorByID loads a membership row of eventID by its own id.
func (s *AccessService) CollaboratorByID(ctx context.Context, eventID, collaboratorID string) (*models.Collaborator, error) {
	var member models.Collaborator
	err := s.db.WithContext(ensureContext(ctx)).
		Where("id = ? AND event_id = ?", collaboratorID, eventID).
		Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewBadRequest("Assignee must be a collaborator of this event")
	}
	if err != nil {
		return nil, fmt.Errorf("access service: load collaborator: %w", err)
	}
	return &member, nil
}
