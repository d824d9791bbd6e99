package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notification is an in-app message for one recipient. Deletes are hard.
type Notification struct {
	BaseModel

	RecipientID string         `gorm:"type:uuid;not null;index" json:"recipient_id"`
	ActorID     *string        `gorm:"type:uuid" json:"actor_id"`
	Verb        string         `gorm:"type:varchar(255);not null" json:"verb"`
	Description string         `gorm:"type:text" json:"description"`
	Level       string         `gorm:"type:varchar(20);not null;default:'info';index" json:"level"`
	TargetKind  string         `gorm:"type:varchar(20)" json:"target_kind"`
	TargetID    string         `gorm:"type:uuid" json:"target_id"`
	Public      bool           `gorm:"not null" json:"public"`
	Unread      bool           `gorm:"not null;default:true;index" json:"unread"`
	ReadAt      *time.Time     `json:"read_at"`
	Data        datatypes.JSON `json:"data"`

	Actor *User `gorm:"foreignKey:ActorID" json:"-"`
}

// ReminderNotification records that a due-date reminder interval was sent.
type ReminderNotification struct {
	BaseModel

	TargetKind  TargetKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_reminder_once" json:"target_kind"`
	TargetID    string     `gorm:"type:uuid;not null;uniqueIndex:idx_reminder_once" json:"target_id"`
	Interval    string     `gorm:"type:varchar(20);not null;uniqueIndex:idx_reminder_once" json:"interval"`
	RecipientID string     `gorm:"type:uuid;not null;uniqueIndex:idx_reminder_once" json:"recipient_id"`
	SentAt      time.Time  `json:"sent_at"`
}
