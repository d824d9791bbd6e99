package models

import "time"

// InvitationStatus tracks the outcome of an invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
)

// Invitation asks an email address to join an event. ExpiresAt is fixed at creation.
type Invitation struct {
	BaseModel

	EventID   string           `gorm:"type:uuid;not null;index:idx_invitation_event_email" json:"event_id"`
	Email     string           `gorm:"type:varchar(255);not null;index:idx_invitation_event_email" json:"email"`
	SentByID  string           `gorm:"type:uuid;not null" json:"sent_by_id"`
	Token     string           `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	Status    InvitationStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ExpiresAt time.Time        `gorm:"not null;index" json:"expires_at"`

	Event  *Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
	SentBy *User  `gorm:"foreignKey:SentByID" json:"sent_by,omitempty"`
}

// IsValid reports whether the invitation window is still open at now.
func (i *Invitation) IsValid(now time.Time) bool {
	return now.Before(i.ExpiresAt)
}
