package notifications

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/database/testutil"
	"github.com/eventnest/eventnest/internal/models"
)

type recordingPublisher struct {
	mu    sync.Mutex
	views map[string][]View
}

func (p *recordingPublisher) Publish(userID string, view View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.views == nil {
		p.views = make(map[string][]View)
	}
	p.views[userID] = append(p.views[userID], view)
}

func (p *recordingPublisher) For(userID string) []View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]View(nil), p.views[userID]...)
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "hashed",
		FirstName: username,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedEvent(t *testing.T, db *gorm.DB, owner *models.User) *models.Event {
	t.Helper()
	now := time.Now().UTC()
	event := &models.Event{
		OwnerID:   owner.ID,
		Name:      "Launch Party",
		StartDate: now,
		EndDate:   now.Add(30 * 24 * time.Hour),
		Status:    models.EventStatusOngoing,
	}
	require.NoError(t, db.Create(event).Error)
	seedCollaborator(t, db, event, owner, models.RoleAdmin)
	return event
}

func seedCollaborator(t *testing.T, db *gorm.DB, event *models.Event, user *models.User, role models.Role) *models.Collaborator {
	t.Helper()
	member := &models.Collaborator{UserID: user.ID, EventID: event.ID, Role: role, JoinedAt: time.Now().UTC()}
	require.NoError(t, db.Create(member).Error)
	member.User = user
	return member
}

func seedBudget(t *testing.T, db *gorm.DB, event *models.Event) *models.Budget {
	t.Helper()
	budget := &models.Budget{EventID: event.ID, Currency: models.DefaultCurrency, IsEnabled: true}
	require.NoError(t, db.Create(budget).Error)
	return budget
}

func newDispatcher(t *testing.T, db *gorm.DB, opts ...DispatcherOption) *Dispatcher {
	t.Helper()
	store, err := NewStore(db)
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(db, store, opts...)
	require.NoError(t, err)
	return dispatcher
}

func countNotifications(t *testing.T, db *gorm.DB, recipientID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID).Count(&count).Error)
	return count
}
