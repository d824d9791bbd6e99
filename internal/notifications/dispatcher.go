package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/pkg/logger"
	"github.com/eventnest/eventnest/pkg/mail"
	"github.com/eventnest/eventnest/pkg/metrics"
)

// Notification verbs.
const (
	VerbTaskAssigned    = "Task Assigned"
	VerbTaskUpdated     = "Task Updated"
	VerbExpenseAssigned = "Expense Assigned"
	VerbExpenseUpdated  = "Expense Updated"
	VerbEventUpdated    = "Event Updated"
	VerbTaskReminder    = "Task Due Reminder"
	VerbExpenseReminder = "Expense Due Reminder"
)

// Publisher pushes a persisted notification to the recipient's live channel.
type Publisher interface {
	Publish(userID string, view View)
}

// Result reports what a dispatch produced. EmailErrors aggregates best-effort delivery failures.
type Result struct {
	Notifications []models.Notification
	Emailed       int
	EmailErrors   error
}

func (r *Result) merge(other *Result) {
	r.Notifications = append(r.Notifications, other.Notifications...)
	r.Emailed += other.Emailed
	r.EmailErrors = multierr.Append(r.EmailErrors, other.EmailErrors)
}

// Dispatcher turns saved changes into notifications: persist, email, then push.
type Dispatcher struct {
	db        *gorm.DB
	store     *Store
	mailer    mail.Mailer
	publisher Publisher
	baseURL   string
	enabled   bool
	log       *zap.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMailer sets the email transport.
func WithMailer(m mail.Mailer) DispatcherOption {
	return func(d *Dispatcher) {
		d.mailer = m
	}
}

// WithPublisher sets the live channel used after persistence.
func WithPublisher(p Publisher) DispatcherOption {
	return func(d *Dispatcher) {
		d.publisher = p
	}
}

// WithBaseURL sets the frontend origin used for links in emails.
func WithBaseURL(url string) DispatcherOption {
	return func(d *Dispatcher) {
		d.baseURL = strings.TrimRight(url, "/")
	}
}

// WithEnabled switches dispatching on or off.
func WithEnabled(enabled bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.enabled = enabled
	}
}

// NewDispatcher constructs a Dispatcher over store.
func NewDispatcher(db *gorm.DB, store *Store, opts ...DispatcherOption) (*Dispatcher, error) {
	if db == nil {
		return nil, errors.New("dispatcher: db is required")
	}
	if store == nil {
		return nil, errors.New("dispatcher: store is required")
	}
	d := &Dispatcher{
		db:      db,
		store:   store,
		enabled: true,
		log:     logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

type delivery struct {
	recipient   *models.User
	actorID     string
	verb        string
	description string
	level       string
	targetKind  models.TargetKind
	targetID    string
	data        map[string]any
	subject     string
	body        string
	sendEmail   bool
}

// TaskSaved notifies the task assignee about a new assignment or about changes.
func (d *Dispatcher) TaskSaved(ctx context.Context, actorID string, task *models.Task, created bool, changes []FieldChange) (*Result, error) {
	if !d.enabled || task == nil || task.AssigneeID == nil || (!created && len(changes) == 0) {
		return &Result{}, nil
	}

	recipient, err := d.user(ctx, *task.AssigneeID)
	if err != nil || recipient == nil || recipient.ID == actorID {
		return &Result{}, err
	}
	eventName := d.eventName(ctx, task.EventID)
	link := d.link("/events/%s/tasks/%s", task.EventID, task.ID)

	note := delivery{
		recipient:  recipient,
		actorID:    actorID,
		targetKind: models.TargetTask,
		targetID:   task.ID,
		data:       map[string]any{"event_id": task.EventID, "task_id": task.ID},
	}
	if created {
		note.verb = VerbTaskAssigned
		note.description = fmt.Sprintf("You have been assigned a new task: '%s'", task.Title)
		note.subject = "New Task Assignment: " + task.Title
		note.body = fmt.Sprintf("Hello %s,\n\nYou have been assigned the task '%s' for %s.\nDue: %s\n\n%s\n",
			recipient.DisplayName(), task.Title, eventName, formatDue(task.DueDate), link)
		note.sendEmail = true
	} else {
		note.verb = VerbTaskUpdated
		note.description = fmt.Sprintf("Task '%s' updated: %s", task.Title, DescribeChanges(changes))
		note.subject = "Task Update: " + task.Title
		note.body = fmt.Sprintf("Hello %s,\n\nThe task '%s' for %s changed:\n%s\n\n%s\n",
			recipient.DisplayName(), task.Title, eventName, changeLines(changes), link)
		note.sendEmail = hasSignificant(changes, significantTask)
		note.data["changes"] = changes
	}

	return d.deliver(ctx, note)
}

// ExpenseSaved notifies the user behind the expense assignee.
func (d *Dispatcher) ExpenseSaved(ctx context.Context, actorID string, expense *models.Expense, created bool, changes []FieldChange) (*Result, error) {
	if !d.enabled || expense == nil || expense.AssigneeID == nil || (!created && len(changes) == 0) {
		return &Result{}, nil
	}

	var collaborator models.Collaborator
	if err := d.db.WithContext(ctx).Preload("User").Take(&collaborator, "id = ?", *expense.AssigneeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Result{}, nil
		}
		return nil, fmt.Errorf("dispatcher: load assignee: %w", err)
	}
	recipient := collaborator.User
	if recipient == nil || recipient.ID == actorID {
		return &Result{}, nil
	}
	eventName := d.eventName(ctx, collaborator.EventID)
	link := d.link("/events/%s/budget", collaborator.EventID)

	note := delivery{
		recipient:  recipient,
		actorID:    actorID,
		targetKind: models.TargetExpense,
		targetID:   expense.ID,
		data:       map[string]any{"event_id": collaborator.EventID, "budget_id": expense.BudgetID, "expense_id": expense.ID},
	}
	if created {
		note.verb = VerbExpenseAssigned
		note.description = fmt.Sprintf("You have been assigned a new expense: '%s'", expense.Name)
		note.subject = "New Expense Assignment: " + expense.Name
		note.body = fmt.Sprintf("Hello %s,\n\nYou have been assigned the expense '%s' for %s.\nDue: %s\n\n%s\n",
			recipient.DisplayName(), expense.Name, eventName, formatDue(expense.DueDate), link)
		note.sendEmail = true
	} else {
		note.verb = VerbExpenseUpdated
		note.description = fmt.Sprintf("Expense '%s' updated: %s", expense.Name, DescribeChanges(changes))
		note.subject = "Expense Update: " + expense.Name
		note.body = fmt.Sprintf("Hello %s,\n\nThe expense '%s' for %s changed:\n%s\n\n%s\n",
			recipient.DisplayName(), expense.Name, eventName, changeLines(changes), link)
		note.sendEmail = hasSignificant(changes, significantExpense)
		note.data["changes"] = changes
	}

	return d.deliver(ctx, note)
}

// EventUpdated notifies every collaborator of the event except the actor.
func (d *Dispatcher) EventUpdated(ctx context.Context, actorID string, event *models.Event, changes []FieldChange) (*Result, error) {
	result := &Result{}
	if !d.enabled || event == nil || len(changes) == 0 {
		return result, nil
	}

	var members []models.Collaborator
	if err := d.db.WithContext(ctx).Preload("User").
		Where("event_id = ? AND user_id <> ?", event.ID, actorID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("dispatcher: load collaborators: %w", err)
	}

	description := fmt.Sprintf("Event '%s' updated: %s", event.Name, DescribeChanges(changes))
	significant := hasSignificant(changes, significantEvent)
	link := d.link("/events/%s", event.ID)

	for _, member := range members {
		if member.User == nil {
			continue
		}
		single, err := d.deliver(ctx, delivery{
			recipient:   member.User,
			actorID:     actorID,
			verb:        VerbEventUpdated,
			description: description,
			targetKind:  "event",
			targetID:    event.ID,
			data:        map[string]any{"event_id": event.ID, "changes": changes},
			subject:     "Event Update: " + event.Name,
			body: fmt.Sprintf("Hello %s,\n\nThe event '%s' changed:\n%s\n\n%s\n",
				member.User.DisplayName(), event.Name, changeLines(changes), link),
			sendEmail: significant,
		})
		if err != nil {
			return nil, err
		}
		result.merge(single)
	}
	return result, nil
}

// Remind emits a due-date reminder. Reminders are always emailed.
func (d *Dispatcher) Remind(ctx context.Context, kind models.TargetKind, targetID, title, recipientID, label string) (*Result, error) {
	recipient, err := d.user(ctx, recipientID)
	if err != nil || recipient == nil {
		return &Result{}, err
	}

	verb, noun := VerbTaskReminder, "Task"
	if kind == models.TargetExpense {
		verb, noun = VerbExpenseReminder, "Expense"
	}
	description := fmt.Sprintf("Reminder: %s '%s' is due in %s", noun, title, label)

	return d.deliver(ctx, delivery{
		recipient:   recipient,
		verb:        verb,
		description: description,
		level:       models.LevelWarning,
		targetKind:  kind,
		targetID:    targetID,
		data:        map[string]any{"interval": label},
		subject:     fmt.Sprintf("%s due in %s: %s", noun, label, title),
		body:        fmt.Sprintf("Hello %s,\n\n%s.\n", recipient.DisplayName(), description),
		sendEmail:   true,
	})
}

func (d *Dispatcher) deliver(ctx context.Context, note delivery) (*Result, error) {
	row, err := d.store.Create(ctx, NewNotification{
		RecipientID: note.recipient.ID,
		ActorID:     note.actorID,
		Verb:        note.verb,
		Description: note.description,
		Level:       note.level,
		TargetKind:  string(note.targetKind),
		TargetID:    note.targetID,
		Data:        note.data,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatcher: persist: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(note.verb).Inc()

	result := &Result{Notifications: []models.Notification{*row}}

	if note.sendEmail {
		if err := d.email(ctx, note); err != nil {
			result.EmailErrors = multierr.Append(result.EmailErrors, err)
		} else if d.mailer != nil {
			result.Emailed++
		}
	}

	if d.publisher != nil {
		d.publisher.Publish(row.RecipientID, NewView(*row, d.store.Now()))
	}
	return result, nil
}

func (d *Dispatcher) email(ctx context.Context, note delivery) error {
	if d.mailer == nil {
		metrics.NotificationEmails.WithLabelValues("skipped").Inc()
		return nil
	}
	err := d.mailer.Send(ctx, mail.Message{
		To:      []string{note.recipient.Email},
		Subject: note.subject,
		Body:    note.body,
	})
	switch {
	case err == nil:
		metrics.NotificationEmails.WithLabelValues("sent").Inc()
		return nil
	case errors.Is(err, mail.ErrSMTPDisabled):
		metrics.NotificationEmails.WithLabelValues("skipped").Inc()
		return err
	default:
		metrics.NotificationEmails.WithLabelValues("failed").Inc()
		d.log.Warn("notification email failed",
			zap.String("verb", note.verb),
			zap.String("recipient", note.recipient.ID),
			zap.Error(err),
		)
		return err
	}
}

func (d *Dispatcher) user(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dispatcher: load user: %w", err)
	}
	return &user, nil
}

func (d *Dispatcher) eventName(ctx context.Context, eventID string) string {
	var event models.Event
	if err := d.db.WithContext(ctx).Select("id", "name").Take(&event, "id = ?", eventID).Error; err != nil {
		return "your event"
	}
	return event.Name
}

func (d *Dispatcher) link(format string, args ...any) string {
	return d.baseURL + fmt.Sprintf(format, args...)
}

func changeLines(changes []FieldChange) string {
	lines := make([]string, 0, len(changes))
	for _, change := range changes {
		lines = append(lines, "- "+strings.ReplaceAll(change.Field, "_", " ")+": "+change.Value)
	}
	return strings.Join(lines, "\n")
}
