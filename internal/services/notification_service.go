package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/notifications"
	apperrors "github.com/eventnest/eventnest/pkg/errors"
)

// Bulk notification actions.
const (
	BulkMarkRead      = "mark_read"
	BulkMarkUnread    = "mark_unread"
	BulkDelete        = "delete"
	BulkMarkAllRead   = "mark_all_read"
	BulkMarkAllUnread = "mark_all_unread"
	BulkDeleteAll     = "delete_all"
	BulkDeleteRead    = "delete_read"
)

var bulkNeedsIDs = map[string]bool{
	BulkMarkRead:      true,
	BulkMarkUnread:    true,
	BulkDelete:        true,
	BulkMarkAllRead:   false,
	BulkMarkAllUnread: false,
	BulkDeleteAll:     false,
	BulkDeleteRead:    false,
}

// NotificationFilter narrows List.
type NotificationFilter struct {
	UnreadOnly bool
	ReadOnly   bool
	Level      string
	Search     string
	Public     *bool
	Page       int
	PageSize   int
}

// NotificationCount summarises the notifications of a user.
type NotificationCount struct {
	Total   int64            `json:"total"`
	Unread  int64            `json:"unread"`
	Read    int64            `json:"read"`
	ByLevel map[string]int64 `json:"by_level"`
}

// BulkResult reports the outcome of a bulk action together with fresh counts.
type BulkResult struct {
	Action   string `json:"action"`
	Affected int64  `json:"affected"`
	Unread   int64  `json:"unread_count"`
	Total    int64  `json:"total_count"`
	Message  string `json:"message"`
}

// NotificationService serves the REST notification inbox.
type NotificationService struct {
	db        *gorm.DB
	store     *notifications.Store
	publisher notifications.Publisher
}

// NewNotificationService constructs a NotificationService. publisher may be nil.
func NewNotificationService(db *gorm.DB, store *notifications.Store, publisher notifications.Publisher) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	if store == nil {
		return nil, errors.New("notification service: store is required")
	}
	return &NotificationService{db: db, store: store, publisher: publisher}, nil
}

// Create persists a notification and pushes it to the recipient stream.
func (s *NotificationService) Create(ctx context.Context, input notifications.NewNotification) (*notifications.View, error) {
	row, err := s.store.Create(ensureContext(ctx), input)
	if err != nil {
		return nil, err
	}
	view := notifications.NewView(*row, s.store.Now())
	if s.publisher != nil {
		s.publisher.Publish(row.RecipientID, view)
	}
	return &view, nil
}

// List returns a page of the user's notifications, newest first, with the filtered total.
func (s *NotificationService) List(ctx context.Context, userID string, filter NotificationFilter) ([]notifications.View, int64, error) {
	ctx = ensureContext(ctx)
	if filter.UnreadOnly && filter.ReadOnly {
		return nil, 0, apperrors.NewBadRequest("unread_only and read_only cannot be combined")
	}
	page, size := normalisePage(filter.Page, filter.PageSize)

	scoped := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", userID)
		if filter.UnreadOnly {
			query = query.Where("unread = ?", true)
		}
		if filter.ReadOnly {
			query = query.Where("unread = ?", false)
		}
		if level := strings.ToLower(strings.TrimSpace(filter.Level)); level != "" {
			query = query.Where("level = ?", level)
		}
		if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
			like := "%" + term + "%"
			query = query.Where("LOWER(verb) LIKE ? OR LOWER(description) LIKE ?", like, like)
		}
		if filter.Public != nil {
			query = query.Where("public = ?", *filter.Public)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: count notifications: %w", err)
	}

	var rows []models.Notification
	if err := scoped().Preload("Actor").
		Order("created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: list notifications: %w", err)
	}
	return notifications.NewViews(rows, s.store.Now()), total, nil
}

// Get returns one notification of the user.
func (s *NotificationService) Get(ctx context.Context, userID, notificationID string) (*notifications.View, error) {
	row, err := s.load(ensureContext(ctx), userID, notificationID)
	if err != nil {
		return nil, err
	}
	view := notifications.NewView(*row, s.store.Now())
	return &view, nil
}

// Count returns totals by read state and level.
func (s *NotificationService) Count(ctx context.Context, userID string) (*NotificationCount, error) {
	ctx = ensureContext(ctx)
	type levelRow struct {
		Level  string
		Unread bool
		N      int64
	}
	var rows []levelRow
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Select("level, unread, COUNT(*) AS n").
		Where("recipient_id = ?", userID).
		Group("level, unread").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: count notifications: %w", err)
	}

	count := &NotificationCount{ByLevel: map[string]int64{
		models.LevelInfo:    0,
		models.LevelSuccess: 0,
		models.LevelWarning: 0,
		models.LevelError:   0,
	}}
	for _, row := range rows {
		count.Total += row.N
		if row.Unread {
			count.Unread += row.N
		} else {
			count.Read += row.N
		}
		count.ByLevel[row.Level] += row.N
	}
	return count, nil
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*notifications.View, error) {
	return s.setRead(ensureContext(ctx), userID, notificationID, true)
}

// MarkUnread flags one notification as unread.
func (s *NotificationService) MarkUnread(ctx context.Context, userID, notificationID string) (*notifications.View, error) {
	return s.setRead(ensureContext(ctx), userID, notificationID, false)
}

// Delete removes one notification of the user.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("id = ? AND recipient_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("Notification")
	}
	return nil
}

// DeleteAll removes every notification of the user and reports how many went.
func (s *NotificationService) DeleteAll(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("recipient_id = ?", userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: delete all: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Bulk applies action to the user's notifications. ids are required for per-item actions.
func (s *NotificationService) Bulk(ctx context.Context, userID, action string, ids []string) (*BulkResult, error) {
	ctx = ensureContext(ctx)
	action = strings.ToLower(strings.TrimSpace(action))
	needsIDs, known := bulkNeedsIDs[action]
	if !known {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("Invalid action %q", action))
	}
	ids = normaliseIDs(ids)
	if needsIDs && len(ids) == 0 {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("notification_ids are required for %s", action))
	}

	base := s.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", userID)
	if needsIDs {
		base = base.Where("id IN ?", ids)
	}

	now := s.store.Now().UTC()
	var (
		result  *gorm.DB
		message string
	)
	switch action {
	case BulkMarkRead, BulkMarkAllRead:
		result = base.Where("unread = ?", true).Updates(map[string]any{"unread": false, "read_at": now})
		message = "marked as read"
	case BulkMarkUnread, BulkMarkAllUnread:
		result = base.Where("unread = ?", false).Updates(map[string]any{"unread": true, "read_at": nil})
		message = "marked as unread"
	case BulkDelete, BulkDeleteAll:
		result = base.Delete(&models.Notification{})
		message = "deleted"
	case BulkDeleteRead:
		result = base.Where("unread = ?", false).Delete(&models.Notification{})
		message = "deleted"
	}
	if result.Error != nil {
		return nil, fmt.Errorf("notification service: bulk %s: %w", action, result.Error)
	}

	count, err := s.Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &BulkResult{
		Action:   action,
		Affected: result.RowsAffected,
		Unread:   count.Unread,
		Total:    count.Total,
		Message:  fmt.Sprintf("%d notification(s) %s", result.RowsAffected, message),
	}, nil
}

func (s *NotificationService) setRead(ctx context.Context, userID, notificationID string, read bool) (*notifications.View, error) {
	row, err := s.load(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"unread": !read, "read_at": nil}
	row.Unread = !read
	row.ReadAt = nil
	if read {
		now := s.store.Now().UTC()
		updates["read_at"] = now
		row.ReadAt = &now
	}
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", row.ID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("notification service: update read state: %w", err)
	}

	view := notifications.NewView(*row, s.store.Now())
	return &view, nil
}

func (s *NotificationService) load(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	var row models.Notification
	if err := s.db.WithContext(ctx).Preload("Actor").
		Where("id = ? AND recipient_id = ?", notificationID, userID).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Notification")
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}
	return &row, nil
}
