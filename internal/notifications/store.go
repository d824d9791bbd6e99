package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
)

// NewNotification describes a notification to persist.
type NewNotification struct {
	RecipientID string
	ActorID     string
	Verb        string
	Description string
	Level       string
	TargetKind  string
	TargetID    string
	Private     bool
	Data        map[string]any
}

// Store persists notifications and serves the reads used by the live stream.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore constructs a Store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("notification store: db is required")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Now returns the store clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// Create persists a notification and returns it with its actor loaded.
func (s *Store) Create(ctx context.Context, input NewNotification) (*models.Notification, error) {
	recipient := strings.TrimSpace(input.RecipientID)
	if recipient == "" {
		return nil, errors.New("notification store: recipient is required")
	}
	verb := strings.TrimSpace(input.Verb)
	if verb == "" {
		return nil, errors.New("notification store: verb is required")
	}

	data, err := encodeData(input.Data)
	if err != nil {
		return nil, fmt.Errorf("notification store: encode data: %w", err)
	}

	row := models.Notification{
		RecipientID: recipient,
		Verb:        verb,
		Description: strings.TrimSpace(input.Description),
		Level:       input.Level,
		TargetKind:  input.TargetKind,
		TargetID:    input.TargetID,
		Public:      !input.Private,
		Unread:      true,
		Data:        data,
	}
	if row.Level == "" {
		row.Level = models.LevelInfo
	}
	if actor := strings.TrimSpace(input.ActorID); actor != "" {
		row.ActorID = &actor
	}

	db := s.db.WithContext(ctx)
	if err := db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("notification store: create: %w", err)
	}
	if row.ActorID != nil {
		var actor models.User
		if err := db.Take(&actor, "id = ?", *row.ActorID).Error; err == nil {
			row.Actor = &actor
		}
	}
	return &row, nil
}

// LatestUnread returns up to limit unread notifications, newest first, and the unread total.
func (s *Store) LatestUnread(ctx context.Context, userID string, limit int) ([]models.Notification, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Notification{}).
		Where("recipient_id = ? AND unread = ?", userID, true).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("notification store: count unread: %w", err)
	}

	var rows []models.Notification
	if err := db.Preload("Actor").
		Where("recipient_id = ? AND unread = ?", userID, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("notification store: list unread: %w", err)
	}
	return rows, total, nil
}

// Recent returns the newest notifications for a user regardless of read state.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var rows []models.Notification
	if err := s.db.WithContext(ctx).Preload("Actor").
		Where("recipient_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification store: list recent: %w", err)
	}
	return rows, nil
}

// MarkRead flags one notification of the user as read. It reports whether a row matched.
func (s *Store) MarkRead(ctx context.Context, userID, notificationID string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", notificationID, userID).
		Updates(map[string]any{"unread": false, "read_at": s.now().UTC()})
	if result.Error != nil {
		return false, fmt.Errorf("notification store: mark read: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
