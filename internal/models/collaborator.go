package models

import "time"

// Role is a membership role within an event.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleCollaborator Role = "COLLABORATOR"
)

// Collaborator links a user to an event. One row per (user, event).
type Collaborator struct {
	BaseModel

	UserID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_collaborator_user_event" json:"user_id"`
	EventID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_collaborator_user_event;index" json:"event_id"`
	Role     Role      `gorm:"type:varchar(20);not null;default:'COLLABORATOR'" json:"role"`
	JoinedAt time.Time `json:"joined_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// IsAdmin reports whether the membership carries the ADMIN role.
func (c *Collaborator) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
