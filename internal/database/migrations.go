package database

import (
	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
)

// AutoMigrate creates or updates the database schema for all models. Parents are listed
// before the tables that reference them.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.Collaborator{},
		&models.Invitation{},
		&models.Budget{},
		&models.Expense{},
		&models.Task{},
		&models.Comment{},
		&models.TypingStatus{},
		&models.Notification{},
		&models.ReminderNotification{},
		&models.Contact{},
		&models.RateCounter{},
	)
}
