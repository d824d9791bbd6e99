package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/pkg/logger"
	"github.com/eventnest/eventnest/pkg/metrics"
)

// DefaultReminderTolerance is the window around each ladder interval.
const DefaultReminderTolerance = time.Hour

type reminderInterval struct {
	key   string
	label string
	span  time.Duration
}

// ladder is walked tightest first.
var ladder = []reminderInterval{
	{key: "12_hours", label: "12 hours", span: 12 * time.Hour},
	{key: "1_day", label: "1 day", span: 24 * time.Hour},
	{key: "7_days", label: "7 days", span: 7 * 24 * time.Hour},
}

// ScanResult summarises one reminder scan.
type ScanResult struct {
	Checked int
	Sent    int
	Skipped int
}

// ReminderScanner emits due-date reminders for open tasks and pending expenses.
type ReminderScanner struct {
	db         *gorm.DB
	dispatcher *Dispatcher
	tolerance  time.Duration
	log        *zap.Logger
}

// ReminderOption customises a ReminderScanner.
type ReminderOption func(*ReminderScanner)

// WithTolerance overrides DefaultReminderTolerance.
func WithTolerance(tolerance time.Duration) ReminderOption {
	return func(s *ReminderScanner) {
		if tolerance > 0 {
			s.tolerance = tolerance
		}
	}
}

// NewReminderScanner constructs a scanner that delivers through dispatcher.
func NewReminderScanner(db *gorm.DB, dispatcher *Dispatcher, opts ...ReminderOption) (*ReminderScanner, error) {
	if db == nil {
		return nil, errors.New("reminders: db is required")
	}
	if dispatcher == nil {
		return nil, errors.New("reminders: dispatcher is required")
	}
	s := &ReminderScanner{
		db:         db,
		dispatcher: dispatcher,
		tolerance:  DefaultReminderTolerance,
		log:        logger.WithModule("reminders"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type reminderCandidate struct {
	kind        models.TargetKind
	id          string
	title       string
	recipientID string
	due         time.Time
}

// Scan evaluates every candidate against the ladder at now.
func (s *ReminderScanner) Scan(ctx context.Context, now time.Time) (ScanResult, error) {
	var result ScanResult
	now = now.UTC()

	candidates, err := s.candidates(ctx, now)
	if err != nil {
		return result, err
	}

	for _, candidate := range candidates {
		result.Checked++
		matched := s.match(candidate.due.Sub(now))
		if len(matched) == 0 {
			continue
		}

		var (
			interval reminderInterval
			claimed  bool
		)
		for _, interval = range matched {
			claimed, err = s.claim(ctx, candidate, interval, now)
			if err != nil {
				return result, err
			}
			if claimed {
				break
			}
		}
		if !claimed {
			result.Skipped++
			continue
		}

		if _, err := s.dispatcher.Remind(ctx, candidate.kind, candidate.id, candidate.title, candidate.recipientID, interval.label); err != nil {
			s.log.Error("reminder dispatch failed",
				zap.String("target_kind", string(candidate.kind)),
				zap.String("target_id", candidate.id),
				zap.String("interval", interval.key),
				zap.Error(err),
			)
			continue
		}
		metrics.RemindersSent.WithLabelValues(interval.key).Inc()
		result.Sent++
	}

	if result.Sent > 0 {
		s.log.Info("reminder scan complete",
			zap.Int("checked", result.Checked),
			zap.Int("sent", result.Sent),
			zap.Int("skipped", result.Skipped),
		)
	}
	return result, nil
}

// match returns every interval within tolerance of remaining, tightest first.
// At most one of them is sent per scan.
func (s *ReminderScanner) match(remaining time.Duration) []reminderInterval {
	var matched []reminderInterval
	for _, interval := range ladder {
		diff := remaining - interval.span
		if diff < 0 {
			diff = -diff
		}
		if diff <= s.tolerance {
			matched = append(matched, interval)
		}
	}
	return matched
}

// claim inserts the reminder row. A unique violation means another scan already sent it.
func (s *ReminderScanner) claim(ctx context.Context, candidate reminderCandidate, interval reminderInterval, now time.Time) (bool, error) {
	row := models.ReminderNotification{
		TargetKind:  candidate.kind,
		TargetID:    candidate.id,
		Interval:    interval.key,
		RecipientID: candidate.recipientID,
		SentAt:      now,
	}
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reminders: record %s: %w", interval.key, err)
	}
	return true, nil
}

func (s *ReminderScanner) candidates(ctx context.Context, now time.Time) ([]reminderCandidate, error) {
	horizon := now.Add(ladder[len(ladder)-1].span + s.tolerance)
	db := s.db.WithContext(ctx)

	var tasks []models.Task
	if err := db.
		Where("status IN ? AND assignee_id IS NOT NULL", []models.TaskStatus{models.TaskTodo, models.TaskInProgress}).
		Where("due_date > ? AND due_date <= ?", now, horizon).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("reminders: load tasks: %w", err)
	}

	var expenses []models.Expense
	if err := db.Preload("Assignee").
		Where("status = ? AND assignee_id IS NOT NULL", models.ExpensePending).
		Where("due_date > ? AND due_date <= ?", now, horizon).
		Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("reminders: load expenses: %w", err)
	}

	out := make([]reminderCandidate, 0, len(tasks)+len(expenses))
	for _, task := range tasks {
		out = append(out, reminderCandidate{
			kind:        models.TargetTask,
			id:          task.ID,
			title:       task.Title,
			recipientID: *task.AssigneeID,
			due:         task.DueDate.UTC(),
		})
	}
	for _, expense := range expenses {
		if expense.Assignee == nil {
			continue
		}
		out = append(out, reminderCandidate{
			kind:        models.TargetExpense,
			id:          expense.ID,
			title:       expense.Name,
			recipientID: expense.Assignee.UserID,
			due:         expense.DueDate.UTC(),
		})
	}
	return out, nil
}
