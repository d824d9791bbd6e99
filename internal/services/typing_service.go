package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eventnest/eventnest/internal/models"
)

// DefaultTypingTTL bounds how long a typing row counts as live without new activity.
const DefaultTypingTTL = 30 * time.Second

// TypingOption configures a TypingService.
type TypingOption func(*TypingService)

// WithTypingTTL overrides DefaultTypingTTL.
func WithTypingTTL(ttl time.Duration) TypingOption {
	return func(s *TypingService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithTypingClock injects the time source.
func WithTypingClock(now func() time.Time) TypingOption {
	return func(s *TypingService) {
		if now != nil {
			s.now = now
		}
	}
}

// TypingService tracks who is currently composing a comment on a target.
type TypingService struct {
	db       *gorm.DB
	comments *CommentService
	ttl      time.Duration
	now      func() time.Time
}

// NewTypingService constructs a TypingService. Membership is checked through comments.
func NewTypingService(db *gorm.DB, comments *CommentService, opts ...TypingOption) (*TypingService, error) {
	if db == nil {
		return nil, errors.New("typing service: db is required")
	}
	if comments == nil {
		return nil, errors.New("typing service: comment service is required")
	}
	svc := &TypingService{db: db, comments: comments, ttl: DefaultTypingTTL, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TTL reports the liveness window.
func (s *TypingService) TTL() time.Duration { return s.ttl }

// Set upserts the caller's typing row on target.
func (s *TypingService) Set(ctx context.Context, target Target, userID string, isTyping bool) (*models.TypingStatus, error) {
	ctx = ensureContext(ctx)
	collaborator, err := s.comments.Authorize(ctx, target, userID)
	if err != nil {
		return nil, err
	}
	return s.SetFor(ctx, target, collaborator, isTyping)
}

// SetFor upserts the typing row of an already authorized collaborator.
func (s *TypingService) SetFor(ctx context.Context, target Target, collaborator *models.Collaborator, isTyping bool) (*models.TypingStatus, error) {
	ctx = ensureContext(ctx)
	status := models.TypingStatus{
		TargetKind:     target.Kind,
		TargetID:       target.ID,
		CollaboratorID: collaborator.ID,
		IsTyping:       isTyping,
		LastActivity:   s.now().UTC(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target_kind"}, {Name: "target_id"}, {Name: "collaborator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_typing", "last_activity", "updated_at"}),
	}).Create(&status).Error
	if err != nil {
		return nil, fmt.Errorf("typing service: upsert status: %w", err)
	}
	status.Collaborator = collaborator
	return &status, nil
}

// Clear removes the typing row of a collaborator on target.
func (s *TypingService) Clear(ctx context.Context, target Target, collaboratorID string) error {
	err := s.db.WithContext(ensureContext(ctx)).
		Where("target_kind = ? AND target_id = ? AND collaborator_id = ?", target.Kind, target.ID, collaboratorID).
		Delete(&models.TypingStatus{}).Error
	if err != nil {
		return fmt.Errorf("typing service: clear status: %w", err)
	}
	return nil
}

// ListTyping returns collaborators actively typing on target within the TTL.
func (s *TypingService) ListTyping(ctx context.Context, target Target, userID string) ([]models.TypingStatus, error) {
	ctx = ensureContext(ctx)
	if _, err := s.comments.Authorize(ctx, target, userID); err != nil {
		return nil, err
	}

	cutoff := s.now().UTC().Add(-s.ttl)
	var rows []models.TypingStatus
	if err := s.db.WithContext(ctx).
		Preload("Collaborator.User").
		Where("target_kind = ? AND target_id = ? AND is_typing = ? AND last_activity >= ?", target.Kind, target.ID, true, cutoff).
		Order("last_activity DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("typing service: list typing: %w", err)
	}
	return rows, nil
}

// Purge deletes typing rows whose last activity is older than before.
func (s *TypingService) Purge(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("last_activity < ?", before.UTC()).
		Delete(&models.TypingStatus{})
	if result.Error != nil {
		return 0, fmt.Errorf("typing service: purge stale rows: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Now returns the service clock.
func (s *TypingService) Now() time.Time { return s.now() }
