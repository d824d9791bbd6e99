package models

import "time"

// RateCounter is one fixed-window request counter shared between server instances.
type RateCounter struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Count     int64     `gorm:"not null;default:0"`
	WindowEnd time.Time `gorm:"not null;index"`
	UpdatedAt time.Time
}
