package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/pkg/logger"
	"github.com/eventnest/eventnest/pkg/mail"
)

func TestTaskSavedCreatedNotifiesAssignee(t *testing.T) {
	db := openDB(t)
	owner := seedUser(t, db, "owner")
	helper := seedUser(t, db, "helper")
	event := seedEvent(t, db, owner)
	seedCollaborator(t, db, event, helper, models.RoleCollaborator)

	recorder := mail.NewRecorder()
	publisher := &recordingPublisher{}
	dispatcher := newDispatcher(t, db,
		WithMailer(recorder),
		WithPublisher(publisher),
		WithBaseURL("https://app.example.com/"),
	)

	task := &models.Task{EventID: event.ID, Title: "Book venue", AssigneeID: &helper.ID, CreatedByID: owner.ID, Status: models.TaskTodo}
	require.NoError(t, db.Create(task).Error)

	result, err := dispatcher.TaskSaved(context.Background(), owner.ID, task, true, nil)
	require.NoError(t, err)
	require.Len(t, result.Notifications, 1)
	require.Equal(t, 1, result.Emailed)
	require.NoError(t, result.EmailErrors)

	note := result.Notifications[0]
	require.Equal(t, helper.ID, note.RecipientID)
	require.Equal(t, VerbTaskAssigned, note.Verb)
	require.Equal(t, "You have been assigned a new task: 'Book venue'", note.Description)
	require.True(t, note.Unread)
	require.True(t, note.Public)

	messages := recorder.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, []string{"helper@example.com"}, messages[0].To)
	require.Equal(t, "New Task Assignment: Book venue", messages[0].Subject)
	require.Contains(t, messages[0].Body, "https://app.example.com/events/"+event.ID+"/tasks/"+task.ID)

	views := publisher.For(helper.ID)
	require.Len(t, views, 1)
	require.Equal(t, note.ID, views[0].ID)
	require.NotNil(t, views[0].Actor)
	require.Equal(t, "owner", views[0].Actor.Username)
}

func TestTaskSavedSkipsSelfAssignment(t *testing.T) {
	db := openDB(t)
	owner := seedUser(t, db, "owner")
	event := seedEvent(t, db, owner)
	recorder := mail.NewRecorder()
	dispatcher := newDispatcher(t, db, WithMailer(recorder))

	task := &models.Task{EventID: event.ID, Title: "Self", AssigneeID: &owner.ID, CreatedByID: owner.ID}
	require.NoError(t, db.Create(task).Error)

	result, err := dispatcher.TaskSaved(context.Background(), owner.ID, task, true, nil)
	require.NoError(t, err)
	require.Empty(t, result.Notifications)
	require.Empty(t, recorder.Messages())
	require.Zero(t, countNotifications(t, db, owner.ID))
}

func TestTaskSavedUpdateEmailsOnlySignificantChanges(t *testing.T) {
	db := openDB(t)
	owner := seedUser(t, db, "owner")
	helper := seedUser(t, db, "helper")
	event := seedEvent(t, db, owner)
	seedCollaborator(t, db, event, helper, models.RoleCollaborator)
	recorder := mail.NewRecorder()
	dispatcher := newDispatcher(t, db, WithMailer(recorder))

	task := &models.Task{EventID: event.ID, Title: "Book venue", AssigneeID: &helper.ID, CreatedByID: owner.ID, Status: models.TaskTodo}
	require.NoError(t, db.Create(task).Error)

	before := SnapshotTask(task)
	task.Title = "Book the venue"
	result, err := dispatcher.TaskSaved(context.Background(), owner.ID, task, false, Diff(before, SnapshotTask(task)))
	require.NoError(t, err)
	require.Len(t, result.Notifications, 1)
	require.Equal(t, VerbTaskUpdated, result.Notifications[0].Verb)
	require.Equal(t, "Task 'Book the venue' updated: title: Book the venue", result.Notifications[0].Description)
	require.Zero(t, result.Emailed)
	require.Empty(t, recorder.Messages())

	before = SnapshotTask(task)
	task.Status = models.TaskInProgress
	result, err = dispatcher.TaskSaved(context.Background(), owner.ID, task, false, Diff(before, SnapshotTask(task)))
	require.NoError(t, err)
	require.Equal(t, 1, result.Emailed)
	require.Equal(t, "Task Update: Book the venue", recorder.Messages()[0].Subject)

	result, err = dispatcher.TaskSaved(context.Background(), owner.ID, task, false, nil)
	require.NoError(t, err)
	require.Empty(t, result.Notifications)
}

func TestEmailFailureKeepsNotification(t *testing.T) {
	db := openDB(t)
	owner := seedUser(t, db, "owner")
	helper := seedUser(t, db, "helper")
	event := seedEvent(t, db, owner)
	seedCollaborator(t, db, event, helper, models.RoleCollaborator)

	core, logs := observer.New(zap.WarnLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(zap.NewNop()) })

	recorder := mail.NewRecorder()
	recorder.Err = errors.New("smtp unavailable")
	publisher := &recordingPublisher{}
	dispatcher := newDispatcher(t, db, WithMailer(recorder), WithPublisher(publisher))

	task := &models.Task{EventID: event.ID, Title: "Order cake", AssigneeID: &helper.ID, CreatedByID: owner.ID}
	require.NoError(t, db.Create(task).Error)

	result, err := dispatcher.TaskSaved(context.Background(), owner.ID, task, true, nil)
	require.NoError(t, err)
	require.Error(t, result.EmailErrors)
	require.Zero(t, result.Emailed)
	require.EqualValues(t, 1, countNotifications(t, db, helper.ID))
	require.Len(t, publisher.For(helper.ID), 1)
	require.Equal(t, 1, logs.FilterMessage("notification email failed").Len())
}

func TestExpenseSavedNotifiesAssigneeUser(t *testing.T) {
	db := openDB(t)
	owner := seedUser(t, db, "owner")
	helper := seedUser(t, db, "helper")
	event := seedEvent(t, db, owner)
	member := seedCollaborator(t, db, event, helper, models.RoleCollaborator)
	budget := seedBudget(t, db, event)

	recorder := mail.NewRecorder()
	dispatcher := newDispatcher(t, db, WithMailer(recorder))

	expense := &models.Expense{BudgetID: budget.ID, Name: "Catering", AssigneeID: &member.ID, Status: models.ExpensePending}
	require.NoError(t, db.Create(expense).Error)

	result, err := dispatcher.ExpenseSaved(context.Background(), owner.ID, expense, true, nil)
	require.NoError(t, err)
	require.Len(t, result.Notifications, 1)
	require.Equal(t, helper.ID, result.Notifications[0].RecipientID)
	require.Equal(t, VerbExpenseAssigned, result.Notifications[0].Verb)
	require.Equal(t, "New Expense Assignment: Catering", recorder.Messages()[0].Subject)
}

func TestEventUpdatedNotifiesEveryoneButActor(t *testing.T) {
	db := openDB(t)
	owner := seedUser(t, db, "owner")
	first := seedUser(t, db, "first")
	second := seedUser(t, db, "second")
	event := seedEvent(t, db, owner)
	seedCollaborator(t, db, event, first, models.RoleCollaborator)
	seedCollaborator(t, db, event, second, models.RoleCollaborator)

	recorder := mail.NewRecorder()
	dispatcher := newDispatcher(t, db, WithMailer(recorder))

	before := SnapshotEvent(event)
	event.Location = "Harbour Hall"
	result, err := dispatcher.EventUpdated(context.Background(), owner.ID, event, Diff(before, SnapshotEvent(event)))
	require.NoError(t, err)
	require.Len(t, result.Notifications, 2)
	require.Equal(t, 2, result.Emailed)
	require.Zero(t, countNotifications(t, db, owner.ID))
	require.EqualValues(t, 1, countNotifications(t, db, first.ID))
	require.Equal(t, "Event 'Launch Party' updated: location: Harbour Hall", result.Notifications[0].Description)
	require.Equal(t, "Event Update: Launch Party", recorder.Messages()[0].Subject)
}

func TestDisabledDispatcherIsNoop(t *testing.T) {
	db := openDB(t)
	owner := seedUser(t, db, "owner")
	helper := seedUser(t, db, "helper")
	event := seedEvent(t, db, owner)
	dispatcher := newDispatcher(t, db, WithEnabled(false))

	due := time.Now().Add(time.Hour)
	task := &models.Task{EventID: event.ID, Title: "Quiet", AssigneeID: &helper.ID, CreatedByID: owner.ID, DueDate: &due}
	require.NoError(t, db.Create(task).Error)

	result, err := dispatcher.TaskSaved(context.Background(), owner.ID, task, true, nil)
	require.NoError(t, err)
	require.Empty(t, result.Notifications)
}
