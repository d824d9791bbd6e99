package database

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("expected health query to succeed: %v", err)
	}
	if err := Ping(context.Background(), db); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestAutoMigrateCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	for _, model := range []any{
		&models.User{}, &models.Event{}, &models.Collaborator{}, &models.Invitation{},
		&models.Budget{}, &models.Expense{}, &models.Task{}, &models.Comment{},
		&models.TypingStatus{}, &models.Notification{}, &models.ReminderNotification{}, &models.Contact{},
	} {
		if !db.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}
}

func TestReminderUniqueIndex(t *testing.T) {
	db := openTestDB(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	row := models.ReminderNotification{TargetKind: models.TargetTask, TargetID: "t1", Interval: "1_day", RecipientID: "u1"}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	dup := models.ReminderNotification{TargetKind: models.TargetTask, TargetID: "t1", Interval: "1_day", RecipientID: "u1"}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatal("expected duplicate reminder insert to fail")
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", t.Name())})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	t.Cleanup(func() {
		_ = Close(db)
	})

	return db
}
