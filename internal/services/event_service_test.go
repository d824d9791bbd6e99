package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/notifications"
)

func TestEventServiceCreateAddsAdminMembershipAndBudget(t *testing.T) {
	env := newServiceEnv(t)
	owner := env.user(t, "olu")

	event := env.event(t, owner)
	require.Equal(t, models.EventStatusOngoing, event.Status)

	var member models.Collaborator
	require.NoError(t, env.db.Where("event_id = ? AND user_id = ?", event.ID, owner.ID).Take(&member).Error)
	require.Equal(t, models.RoleAdmin, member.Role)

	var budget models.Budget
	require.NoError(t, env.db.Where("event_id = ?", event.ID).Take(&budget).Error)
	require.False(t, budget.IsEnabled)
	require.Equal(t, models.DefaultCurrency, budget.Currency)
	require.True(t, budget.Amount.IsZero())
}

func TestEventServiceCreateRejectsInvalidWindow(t *testing.T) {
	env := newServiceEnv(t)
	owner := env.user(t, "olu")
	now := env.clock.Now()

	_, err := env.events.Create(context.Background(), owner.ID, CreateEventInput{
		Name:      "Backwards",
		StartDate: now.Add(48 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
	})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = env.events.Create(context.Background(), owner.ID, CreateEventInput{
		Name:      "Finished too soon",
		StartDate: now,
		EndDate:   now.Add(24 * time.Hour),
		Status:    models.EventStatusCompleted,
	})
	requireStatus(t, err, http.StatusBadRequest)

	var count int64
	require.NoError(t, env.db.Model(&models.Event{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEventServiceListIncludesCollaborations(t *testing.T) {
	env := newServiceEnv(t)
	owner := env.user(t, "olu")
	guest := env.user(t, "ada")

	own := env.event(t, guest)
	shared := env.event(t, owner)
	env.join(t, shared, guest, models.RoleCollaborator)
	env.event(t, owner)

	events, total, err := env.events.List(context.Background(), guest.ID, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	ids := []string{events[0].ID, events[1].ID}
	require.ElementsMatch(t, []string{own.ID, shared.ID}, ids)
}

func TestEventServiceUpdateOwnerOnlyAndNotifies(t *testing.T) {
	env := newServiceEnv(t)
	owner := env.user(t, "olu")
	guest := env.user(t, "ada")
	event := env.event(t, owner)
	env.join(t, event, guest, models.RoleCollaborator)

	location := "Abuja"
	_, _, err := env.events.Update(context.Background(), event.ID, guest.ID, UpdateEventInput{Location: &location})
	requireStatus(t, err, http.StatusForbidden)

	updated, result, err := env.events.Update(context.Background(), event.ID, owner.ID, UpdateEventInput{Location: &location})
	require.NoError(t, err)
	require.Equal(t, "Abuja", updated.Location)
	require.Len(t, result.Notifications, 1)
	require.Equal(t, notifications.VerbEventUpdated, result.Notifications[0].Verb)
	require.Equal(t, guest.ID, result.Notifications[0].RecipientID)
	require.Equal(t, 1, env.publisher.count(guest.ID))
	require.Zero(t, env.publisher.count(owner.ID))

	_, result, err = env.events.Update(context.Background(), event.ID, owner.ID, UpdateEventInput{Location: &location})
	require.NoError(t, err)
	require.Empty(t, result.Notifications)
}

func TestEventServiceGetRequiresMembership(t *testing.T) {
	env := newServiceEnv(t)
	owner := env.user(t, "olu")
	stranger := env.user(t, "eve")
	event := env.event(t, owner)

	_, err := env.events.Get(context.Background(), event.ID, stranger.ID)
	requireStatus(t, err, http.StatusForbidden)

	_, err = env.events.Get(context.Background(), "missing", owner.ID)
	requireStatus(t, err, http.StatusNotFound)

	got, err := env.events.Get(context.Background(), event.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Owner)
	require.Equal(t, owner.ID, got.Owner.ID)
}

func TestEventServiceDeleteCascades(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	owner := env.user(t, "olu")
	guest := env.user(t, "ada")
	event := env.event(t, owner)
	member := env.join(t, event, guest, models.RoleCollaborator)
	budget := env.enabledBudget(t, event, owner)

	expense, _, err := env.expenses.Create(ctx, budget.ID, owner.ID, CreateExpenseInput{Name: "Venue", AssigneeID: &member.ID})
	require.NoError(t, err)
	root, err := env.comments.Create(ctx, ExpenseTarget(expense.ID), guest.ID, "Deposit paid?", nil)
	require.NoError(t, err)
	_, err = env.comments.Create(ctx, ExpenseTarget(expense.ID), owner.ID, "Yes", &root.ID)
	require.NoError(t, err)
	_, err = env.typing.Set(ctx, ExpenseTarget(expense.ID), guest.ID, true)
	require.NoError(t, err)
	_, _, err = env.tasks.Create(ctx, event.ID, owner.ID, CreateTaskInput{Title: "Book DJ", AssigneeID: &guest.ID})
	require.NoError(t, err)
	_, err = env.invitations.Create(ctx, event.ID, owner.ID, "friend@example.com")
	require.NoError(t, err)

	requireStatus(t, env.events.Delete(ctx, event.ID, guest.ID), http.StatusForbidden)
	require.NoError(t, env.events.Delete(ctx, event.ID, owner.ID))

	for _, model := range []any{
		&models.Event{}, &models.Collaborator{}, &models.Budget{}, &models.Expense{},
		&models.Task{}, &models.Comment{}, &models.TypingStatus{}, &models.Invitation{},
	} {
		var count int64
		require.NoError(t, env.db.Model(model).Count(&count).Error)
		require.Zero(t, count, "%T rows left behind", model)
	}
}
