package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eventnest/eventnest/internal/models"
	apperrors "github.com/eventnest/eventnest/pkg/errors"
	"github.com/eventnest/eventnest/pkg/logger"
	"github.com/eventnest/eventnest/pkg/mail"
)

const defaultInvitationTTL = 48 * time.Hour

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationBaseURL configures the frontend origin used to build accept links.
func WithInvitationBaseURL(base string) InvitationOption {
	return func(s *InvitationService) {
		s.baseURL = strings.TrimRight(base, "/")
	}
}

// WithInvitationTTL overrides the invitation lifetime.
func WithInvitationTTL(ttl time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InvitationResult is a freshly issued invitation and its accept link.
type InvitationResult struct {
	Invitation *models.Invitation `json:"invitation"`
	Link       string             `json:"invite_link"`
}

// InvitationSummary describes a token to an unauthenticated caller.
type InvitationSummary struct {
	EventID   string                  `json:"event_id"`
	EventName string                  `json:"event_name"`
	Email     string                  `json:"email"`
	Status    models.InvitationStatus `json:"status"`
	ExpiresAt time.Time               `json:"expires_at"`
	Valid     bool                    `json:"is_valid"`
}

// InvitationService issues and consumes event invitations.
type InvitationService struct {
	db      *gorm.DB
	access  *AccessService
	mailer  mail.Mailer
	baseURL string
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewInvitationService constructs an InvitationService. mailer may be nil.
func NewInvitationService(db *gorm.DB, access *AccessService, mailer mail.Mailer, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	if access == nil {
		return nil, errors.New("invitation service: access service is required")
	}

	service := &InvitationService{
		db:     db,
		access: access,
		mailer: mailer,
		ttl:    defaultInvitationTTL,
		now:    time.Now,
		log:    logger.WithModule("invitations"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create invites email to the event. Only the owner may invite.
func (s *InvitationService) Create(ctx context.Context, eventID, inviterID, email string) (*InvitationResult, error) {
	ctx = ensureContext(ctx)
	email = normaliseEmail(email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	event, err := s.access.RequireOwner(ctx, eventID, inviterID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	invitation := models.Invitation{
		EventID:   event.ID,
		Email:     email,
		SentByID:  inviterID,
		Token:     uuid.NewString(),
		Status:    models.InvitationPending,
		ExpiresAt: now.Add(s.ttl),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Concurrent invites to the same event queue behind this row lock.
		var locked models.Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&locked, "id = ?", event.ID).Error; err != nil {
			return fmt.Errorf("invitation service: lock event: %w", err)
		}

		var members int64
		if err := tx.Model(&models.Collaborator{}).
			Joins("JOIN users ON users.id = collaborators.user_id").
			Where("collaborators.event_id = ? AND LOWER(users.email) = ?", event.ID, email).
			Count(&members).Error; err != nil {
			return fmt.Errorf("invitation service: check membership: %w", err)
		}
		if members > 0 {
			return apperrors.NewBadRequest("User is already a collaborator on this event")
		}

		var pending []models.Invitation
		if err := tx.Where("event_id = ? AND email = ? AND status = ?", event.ID, email, models.InvitationPending).
			Find(&pending).Error; err != nil {
			return fmt.Errorf("invitation service: load pending: %w", err)
		}
		for _, existing := range pending {
			if existing.IsValid(now) {
				return apperrors.NewBadRequest("A pending invitation already exists for this email")
			}
			if err := tx.Delete(&models.Invitation{}, "id = ?", existing.ID).Error; err != nil {
				return fmt.Errorf("invitation service: replace expired invitation: %w", err)
			}
		}

		if err := tx.Create(&invitation).Error; err != nil {
			return fmt.Errorf("invitation service: create invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	link := s.acceptLink(invitation.Token)
	s.sendInvite(ctx, event, &invitation, link)

	invitation.Event = event
	return &InvitationResult{Invitation: &invitation, Link: link}, nil
}

// Accept adds the user as a COLLABORATOR and marks the invitation ACCEPTED.
func (s *InvitationService) Accept(ctx context.Context, token, userID string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)
	var accepted *models.Invitation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitation, err := s.pendingFor(tx, token, userID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if !invitation.IsValid(now) {
			return apperrors.ErrGone.WithMessage("Invitation has expired")
		}

		var existing int64
		if err := tx.Model(&models.Collaborator{}).
			Where("event_id = ? AND user_id = ?", invitation.EventID, userID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("invitation service: check membership: %w", err)
		}
		if existing == 0 {
			member := models.Collaborator{
				UserID:   userID,
				EventID:  invitation.EventID,
				Role:     models.RoleCollaborator,
				JoinedAt: now,
			}
			if err := tx.Create(&member).Error; err != nil && !isUniqueConstraintError(err) {
				return fmt.Errorf("invitation service: create membership: %w", err)
			}
		}

		if err := tx.Model(invitation).Update("status", models.InvitationAccepted).Error; err != nil {
			return fmt.Errorf("invitation service: mark accepted: %w", err)
		}
		invitation.Status = models.InvitationAccepted
		accepted = invitation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// Decline marks the invitation DECLINED.
func (s *InvitationService) Decline(ctx context.Context, token, userID string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)
	invitation, err := s.pendingFor(s.db.WithContext(ctx), token, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(invitation).Update("status", models.InvitationDeclined).Error; err != nil {
		return nil, fmt.Errorf("invitation service: mark declined: %w", err)
	}
	invitation.Status = models.InvitationDeclined
	return invitation, nil
}

// Validate summarises a token without consuming it.
func (s *InvitationService) Validate(ctx context.Context, token string) (*InvitationSummary, error) {
	ctx = ensureContext(ctx)
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.NewNotFound("Invitation")
	}

	var invitation models.Invitation
	if err := s.db.WithContext(ctx).Preload("Event").Take(&invitation, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Invitation")
		}
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}

	summary := &InvitationSummary{
		EventID:   invitation.EventID,
		Email:     invitation.Email,
		Status:    invitation.Status,
		ExpiresAt: invitation.ExpiresAt,
		Valid:     invitation.Status == models.InvitationPending && invitation.IsValid(s.now()),
	}
	if invitation.Event != nil {
		summary.EventName = invitation.Event.Name
	}
	return summary, nil
}

// PurgeExpired deletes pending invitations that expired before cutoff.
func (s *InvitationService) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("status = ? AND expires_at < ?", models.InvitationPending, cutoff.UTC()).
		Delete(&models.Invitation{})
	if result.Error != nil {
		return 0, fmt.Errorf("invitation service: purge expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// pendingFor loads the PENDING invitation for token and checks it was addressed to userID.
func (s *InvitationService) pendingFor(db *gorm.DB, token, userID string) (*models.Invitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.NewNotFound("Invitation")
	}

	var invitation models.Invitation
	if err := db.Where("token = ? AND status = ?", token, models.InvitationPending).Take(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Invitation")
		}
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}

	var user models.User
	if err := db.Take(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, fmt.Errorf("invitation service: load user: %w", err)
	}
	if normaliseEmail(user.Email) != invitation.Email {
		return nil, apperrors.NewForbidden("This invitation was sent to a different email address")
	}
	return &invitation, nil
}

func (s *InvitationService) acceptLink(token string) string {
	return fmt.Sprintf("%s/invitations/accept?token=%s", s.baseURL, url.QueryEscape(token))
}

func (s *InvitationService) sendInvite(ctx context.Context, event *models.Event, invitation *models.Invitation, link string) {
	if s.mailer == nil {
		return
	}
	err := s.mailer.Send(ctx, mail.Message{
		To:      []string{invitation.Email},
		Subject: fmt.Sprintf("You're invited to collaborate on %s", event.Name),
		Body: fmt.Sprintf("Hello,\n\nYou have been invited to help plan %s. Use the following link to accept:\n%s\n\nThis invitation expires on %s.\n",
			event.Name, link, invitation.ExpiresAt.Format("January 2, 2006 at 3:04 PM MST")),
	})
	if err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("invitation email failed", zap.String("invitation_id", invitation.ID), zap.Error(err))
	}
}
