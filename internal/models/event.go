package models

import (
	"errors"
	"time"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusArchived  EventStatus = "archived"
)

var (
	ErrEventEndsBeforeStart   = errors.New("end date cannot be before start date")
	ErrEventOngoingAfterEnd   = errors.New("event cannot be ongoing after its end date")
	ErrEventCompletedTooEarly = errors.New("event cannot be completed before its end date")
	ErrEventStatusInvalid     = errors.New("invalid event status")
)

// Event is a planned occasion owned by exactly one user.
type Event struct {
	BaseModel

	OwnerID     string      `gorm:"type:uuid;index;not null" json:"owner_id"`
	Name        string      `gorm:"type:varchar(255);not null" json:"name"`
	Type        string      `gorm:"type:varchar(100)" json:"type"`
	Location    string      `gorm:"type:varchar(255)" json:"location"`
	Notes       string      `gorm:"type:text" json:"notes"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	Status      EventStatus `gorm:"type:varchar(20);default:'ongoing';index" json:"status"`
	UpdatedByID *string     `gorm:"type:uuid" json:"updated_by_id,omitempty"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

// ValidateWindow checks the status against the event's time window at now.
func (e *Event) ValidateWindow(now time.Time) error {
	if e.EndDate.Before(e.StartDate) {
		return ErrEventEndsBeforeStart
	}
	switch e.Status {
	case EventStatusOngoing, "":
		if now.After(e.EndDate) {
			return ErrEventOngoingAfterEnd
		}
	case EventStatusCompleted:
		if now.Before(e.EndDate) {
			return ErrEventCompletedTooEarly
		}
	case EventStatusArchived:
	default:
		return ErrEventStatusInvalid
	}
	return nil
}
