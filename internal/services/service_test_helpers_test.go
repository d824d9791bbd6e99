package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/database/testutil"
	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/notifications"
	apperrors "github.com/eventnest/eventnest/pkg/errors"
	"github.com/eventnest/eventnest/pkg/mail"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type capturingPublisher struct {
	mu    sync.Mutex
	views map[string][]notifications.View
}

func (p *capturingPublisher) Publish(userID string, view notifications.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.views == nil {
		p.views = make(map[string][]notifications.View)
	}
	p.views[userID] = append(p.views[userID], view)
}

func (p *capturingPublisher) count(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.views[userID])
}

type serviceEnv struct {
	db            *gorm.DB
	clock         *testClock
	mailer        *mail.Recorder
	publisher     *capturingPublisher
	access        *AccessService
	events        *EventService
	invitations   *InvitationService
	budgets       *BudgetService
	expenses      *ExpenseService
	tasks         *TaskService
	comments      *CommentService
	typing        *TypingService
	notifications *NotificationService
	contacts      *ContactService
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	env := &serviceEnv{
		db:        db,
		clock:     newTestClock(time.Now().UTC()),
		mailer:    mail.NewRecorder(),
		publisher: &capturingPublisher{},
	}

	store, err := notifications.NewStore(db)
	require.NoError(t, err)
	dispatcher, err := notifications.NewDispatcher(db, store,
		notifications.WithMailer(env.mailer),
		notifications.WithPublisher(env.publisher),
		notifications.WithBaseURL("https://eventnest.test"),
	)
	require.NoError(t, err)

	env.access, err = NewAccessService(db)
	require.NoError(t, err)
	env.events, err = NewEventService(db, env.access, dispatcher, WithEventClock(env.clock.Now))
	require.NoError(t, err)
	env.invitations, err = NewInvitationService(db, env.access, env.mailer,
		WithInvitationBaseURL("https://eventnest.test"),
		WithInvitationClock(env.clock.Now),
	)
	require.NoError(t, err)
	env.budgets, err = NewBudgetService(db, env.access)
	require.NoError(t, err)
	env.expenses, err = NewExpenseService(db, env.access, dispatcher)
	require.NoError(t, err)
	env.tasks, err = NewTaskService(db, env.access, dispatcher)
	require.NoError(t, err)
	env.comments, err = NewCommentService(db, env.access, map[models.TargetKind]TargetResolver{
		models.TargetExpense: env.expenses,
		models.TargetTask:    env.tasks,
	})
	require.NoError(t, err)
	env.typing, err = NewTypingService(db, env.comments, WithTypingClock(env.clock.Now))
	require.NoError(t, err)
	env.notifications, err = NewNotificationService(db, store, env.publisher)
	require.NoError(t, err)
	env.contacts, err = NewContactService(db)
	require.NoError(t, err)

	return env
}

func (env *serviceEnv) user(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "hashed",
		FirstName: username,
		IsActive:  true,
	}
	require.NoError(t, env.db.Create(user).Error)
	return user
}

func (env *serviceEnv) event(t *testing.T, owner *models.User) *models.Event {
	t.Helper()
	now := env.clock.Now()
	event, err := env.events.Create(context.Background(), owner.ID, CreateEventInput{
		Name:      "Annual Gala",
		Type:      "gala",
		Location:  "Lagos",
		StartDate: now.Add(24 * time.Hour),
		EndDate:   now.Add(72 * time.Hour),
	})
	require.NoError(t, err)
	return event
}

func (env *serviceEnv) join(t *testing.T, event *models.Event, user *models.User, role models.Role) *models.Collaborator {
	t.Helper()
	member := &models.Collaborator{UserID: user.ID, EventID: event.ID, Role: role, JoinedAt: env.clock.Now()}
	require.NoError(t, env.db.Create(member).Error)
	return member
}

func (env *serviceEnv) enabledBudget(t *testing.T, event *models.Event, owner *models.User) *models.Budget {
	t.Helper()
	detail, err := env.budgets.GetForEvent(context.Background(), event.ID, owner.ID)
	require.NoError(t, err)
	if !detail.IsEnabled {
		detail, err = env.budgets.Toggle(context.Background(), detail.ID, owner.ID)
		require.NoError(t, err)
	}
	require.True(t, detail.IsEnabled)
	budget := detail.Budget
	return &budget
}

func requireStatus(t *testing.T, err error, status int) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, status, appErr.StatusCode, appErr.Message)
	return appErr
}
