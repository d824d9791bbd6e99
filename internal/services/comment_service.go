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

// Target identifies the record a comment thread hangs off.
type Target struct {
	Kind models.TargetKind
	ID   string
}

// ExpenseTarget addresses the thread of an expense.
func ExpenseTarget(id string) Target { return Target{Kind: models.TargetExpense, ID: id} }

// TaskTarget addresses the thread of a task.
func TaskTarget(id string) Target { return Target{Kind: models.TargetTask, ID: id} }

// TargetResolver finds the event that owns a target of one kind.
type TargetResolver interface {
	EventID(ctx context.Context, id string) (string, error)
}

const (
	maxCommentLength = 5000
	errReplyToReply  = "Cannot reply to a reply. Please reply to the original comment."
)

// CommentService manages threaded comments on expenses and tasks.
type CommentService struct {
	db        *gorm.DB
	access    *AccessService
	resolvers map[models.TargetKind]TargetResolver
}

// NewCommentService constructs a CommentService with one resolver per target kind.
func NewCommentService(db *gorm.DB, access *AccessService, resolvers map[models.TargetKind]TargetResolver) (*CommentService, error) {
	if db == nil {
		return nil, errors.New("comment service: db is required")
	}
	if access == nil {
		return nil, errors.New("comment service: access service is required")
	}
	if len(resolvers) == 0 {
		return nil, errors.New("comment service: at least one target resolver is required")
	}
	return &CommentService{db: db, access: access, resolvers: resolvers}, nil
}

// Authorize resolves target and returns the caller's membership of the owning event.
func (s *CommentService) Authorize(ctx context.Context, target Target, userID string) (*models.Collaborator, error) {
	resolver, ok := s.resolvers[target.Kind]
	if !ok {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unsupported comment target %q", target.Kind))
	}
	eventID, err := resolver.EventID(ensureContext(ctx), target.ID)
	if err != nil {
		return nil, err
	}
	return s.access.Membership(ctx, eventID, userID)
}

// List returns root comments oldest first, each with its replies.
func (s *CommentService) List(ctx context.Context, target Target, userID string) ([]models.Comment, error) {
	ctx = ensureContext(ctx)
	if _, err := s.Authorize(ctx, target, userID); err != nil {
		return nil, err
	}

	var comments []models.Comment
	if err := s.db.WithContext(ctx).
		Preload("Author.User").
		Preload("Replies", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Replies.Author.User").
		Where("target_kind = ? AND target_id = ? AND parent_id IS NULL", target.Kind, target.ID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("comment service: list comments: %w", err)
	}
	return comments, nil
}

// Create posts a comment or a reply. Replies may only target root comments of the same thread.
func (s *CommentService) Create(ctx context.Context, target Target, userID, content string, parentID *string) (*models.Comment, error) {
	ctx = ensureContext(ctx)
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewBadRequest("Comment content cannot be empty")
	}
	if len(content) > maxCommentLength {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("Comment content cannot exceed %d characters", maxCommentLength))
	}

	author, err := s.Authorize(ctx, target, userID)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		TargetKind: target.Kind,
		TargetID:   target.ID,
		AuthorID:   author.ID,
		Content:    content,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parentID != nil && strings.TrimSpace(*parentID) != "" {
			id := strings.TrimSpace(*parentID)
			var parent models.Comment
			if err := tx.Where("id = ? AND target_kind = ? AND target_id = ?", id, target.Kind, target.ID).
				Take(&parent).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.NewBadRequest("Parent comment not found on this thread")
				}
				return fmt.Errorf("comment service: load parent: %w", err)
			}
			if parent.ParentID != nil {
				return apperrors.NewBadRequest(errReplyToReply)
			}
			comment.ParentID = &parent.ID
		}
		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("comment service: create comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, comment.ID)
}

// Update edits the caller's own comment.
func (s *CommentService) Update(ctx context.Context, commentID, userID, content string) (*models.Comment, error) {
	ctx = ensureContext(ctx)
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewBadRequest("Comment content cannot be empty")
	}

	comment, err := s.load(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.Author == nil || comment.Author.UserID != userID {
		return nil, apperrors.NewForbidden("You can only edit your own comments")
	}

	if err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", comment.ID).
		Updates(map[string]any{"content": content, "is_edited": true}).Error; err != nil {
		return nil, fmt.Errorf("comment service: update comment: %w", err)
	}
	comment.Content = content
	comment.IsEdited = true
	return comment, nil
}

// Delete removes a comment and its replies. The author or the event owner may delete.
func (s *CommentService) Delete(ctx context.Context, commentID, userID string) error {
	ctx = ensureContext(ctx)
	comment, err := s.load(ctx, commentID)
	if err != nil {
		return err
	}

	if comment.Author == nil {
		return apperrors.NewForbidden("You can only delete your own comments")
	}
	if comment.Author.UserID != userID {
		event, err := s.access.Event(ctx, comment.Author.EventID)
		if err != nil {
			return err
		}
		if event.OwnerID != userID {
			return apperrors.NewForbidden("You can only delete your own comments")
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_id = ?", comment.ID).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("comment service: delete replies: %w", err)
		}
		if err := tx.Delete(&models.Comment{}, "id = ?", comment.ID).Error; err != nil {
			return fmt.Errorf("comment service: delete comment: %w", err)
		}
		return nil
	})
}

func (s *CommentService) load(ctx context.Context, commentID string) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Author.User").Take(&comment, "id = ?", commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Comment")
		}
		return nil, fmt.Errorf("comment service: load comment: %w", err)
	}
	return &comment, nil
}
