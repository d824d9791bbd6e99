package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventnest/eventnest/internal/database"
	"github.com/eventnest/eventnest/internal/models"
)

func seedLegacyEvent(t *testing.T, path string) string {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	defer database.Close(db)
	require.NoError(t, database.AutoMigrate(db))

	owner := models.User{Username: "olu", Email: "olu@example.com", Password: "hashed", IsActive: true}
	require.NoError(t, db.Create(&owner).Error)

	now := time.Now().UTC()
	event := models.Event{OwnerID: owner.ID, Name: "Legacy", StartDate: now, EndDate: now.Add(time.Hour)}
	require.NoError(t, db.Create(&event).Error)
	return event.ID
}

func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf("server:\n  log_level: error\ndatabase:\n  driver: sqlite\n  path: %q\n", dbPath)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestRunBackfillsMissingBudgets(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "eventnest.sqlite")
	eventID := seedLegacyEvent(t, dbPath)
	configDir := writeConfig(t, dbPath)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-config", configDir, "-dry-run"}, &out))
	require.Contains(t, out.String(), "1 event(s) without a budget")
	require.Contains(t, out.String(), eventID)

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"-config", configDir}, &out))
	require.Contains(t, out.String(), "created 1 budget(s)")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"-config", configDir}, &out))
	require.Contains(t, out.String(), "created 0 budget(s)")
}

func TestRunRejectsMissingConfig(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "nope")}, &out)
	require.ErrorContains(t, err, "stat config path")
}
