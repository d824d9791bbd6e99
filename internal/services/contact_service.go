package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
	apperrors "github.com/eventnest/eventnest/pkg/errors"
)

// ContactInput carries contact fields. Nil pointers are left untouched on update.
type ContactInput struct {
	Name  *string
	Email *string
	Phone *string
	Notes *string
}

// ContactService manages each user's personal address book.
type ContactService struct {
	db *gorm.DB
}

// NewContactService constructs a ContactService.
func NewContactService(db *gorm.DB) (*ContactService, error) {
	if db == nil {
		return nil, errors.New("contact service: db is required")
	}
	return &ContactService{db: db}, nil
}

// List returns the owner's contacts ordered by name.
func (s *ContactService) List(ctx context.Context, ownerID string) ([]models.Contact, error) {
	var contacts []models.Contact
	if err := s.db.WithContext(ensureContext(ctx)).
		Where("owner_id = ?", ownerID).
		Order("name ASC").
		Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("contact service: list contacts: %w", err)
	}
	return contacts, nil
}

// Create adds a contact. A second contact with the same email returns 400.
func (s *ContactService) Create(ctx context.Context, ownerID string, input ContactInput) (*models.Contact, error) {
	ctx = ensureContext(ctx)
	contact := models.Contact{OwnerID: ownerID}
	if err := applyContactInput(&contact, input); err != nil {
		return nil, err
	}
	if contact.Name == "" || contact.Email == "" {
		return nil, apperrors.NewBadRequest("Contact name and email are required")
	}

	if err := s.db.WithContext(ctx).Create(&contact).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("A contact with this email already exists")
		}
		return nil, fmt.Errorf("contact service: create contact: %w", err)
	}
	return &contact, nil
}

// Get returns one of the owner's contacts.
func (s *ContactService) Get(ctx context.Context, ownerID, contactID string) (*models.Contact, error) {
	var contact models.Contact
	if err := s.db.WithContext(ensureContext(ctx)).
		Where("id = ? AND owner_id = ?", contactID, ownerID).
		Take(&contact).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Contact")
		}
		return nil, fmt.Errorf("contact service: load contact: %w", err)
	}
	return &contact, nil
}

// Update changes the supplied fields of a contact.
func (s *ContactService) Update(ctx context.Context, ownerID, contactID string, input ContactInput) (*models.Contact, error) {
	ctx = ensureContext(ctx)
	contact, err := s.Get(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}
	if err := applyContactInput(contact, input); err != nil {
		return nil, err
	}
	if contact.Name == "" || contact.Email == "" {
		return nil, apperrors.NewBadRequest("Contact name and email are required")
	}

	if err := s.db.WithContext(ctx).Model(&models.Contact{}).Where("id = ?", contact.ID).
		Updates(map[string]any{
			"name":  contact.Name,
			"email": contact.Email,
			"phone": contact.Phone,
			"notes": contact.Notes,
		}).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("A contact with this email already exists")
		}
		return nil, fmt.Errorf("contact service: update contact: %w", err)
	}
	return contact, nil
}

// Delete removes one of the owner's contacts.
func (s *ContactService) Delete(ctx context.Context, ownerID, contactID string) error {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("id = ? AND owner_id = ?", contactID, ownerID).
		Delete(&models.Contact{})
	if result.Error != nil {
		return fmt.Errorf("contact service: delete contact: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("Contact")
	}
	return nil
}

func applyContactInput(contact *models.Contact, input ContactInput) error {
	if input.Name != nil {
		contact.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		email := normaliseEmail(*input.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return apperrors.NewBadRequest("Enter a valid email address")
		}
		contact.Email = email
	}
	if input.Phone != nil {
		contact.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Notes != nil {
		contact.Notes = strings.TrimSpace(*input.Notes)
	}
	return nil
}
