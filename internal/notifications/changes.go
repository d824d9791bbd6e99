package notifications

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eventnest/eventnest/internal/models"
)

// FieldChange is one watched field whose value differs between two snapshots.
// Value is the new value rendered for people.
type FieldChange struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Snapshot is a fixed list of watched fields captured from a record.
type Snapshot interface {
	watched() []watchedField
}

type watchedField struct {
	name    string
	key     string
	display string
}

// Diff compares the watched fields of two snapshots of the same kind, in declaration order.
func Diff[S Snapshot](before, after S) []FieldChange {
	old := before.watched()
	cur := after.watched()

	var changes []FieldChange
	for i := range cur {
		if i < len(old) && old[i].key == cur[i].key {
			continue
		}
		changes = append(changes, FieldChange{Field: cur[i].name, Value: cur[i].display})
	}
	return changes
}

// TaskSnapshot captures the watched fields of a task.
type TaskSnapshot struct {
	Title         string
	Description   string
	Status        models.TaskStatus
	DueDate       *time.Time
	AssigneeID    string
	AssigneeLabel string
}

// SnapshotTask captures t. The assignee label comes from a preloaded Assignee when present.
func SnapshotTask(t *models.Task) TaskSnapshot {
	snap := TaskSnapshot{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		DueDate:     copyTime(t.DueDate),
	}
	if t.AssigneeID != nil {
		snap.AssigneeID = *t.AssigneeID
		snap.AssigneeLabel = *t.AssigneeID
		if t.Assignee != nil {
			snap.AssigneeLabel = t.Assignee.DisplayName()
		}
	}
	return snap
}

func (s TaskSnapshot) watched() []watchedField {
	return []watchedField{
		text("title", s.Title),
		text("description", s.Description),
		text("status", string(s.Status)),
		timeField("due_date", s.DueDate),
		{name: "assignee", key: s.AssigneeID, display: orNone(s.AssigneeLabel)},
	}
}

// ExpenseSnapshot captures the watched fields of an expense.
type ExpenseSnapshot struct {
	Name          string
	Description   string
	EstimatedCost decimal.NullDecimal
	ActualCost    decimal.NullDecimal
	Status        models.ExpenseStatus
	DueDate       *time.Time
	AssigneeID    string
	AssigneeLabel string
}

// SnapshotExpense captures e. The assignee label uses a preloaded Assignee.User when present.
func SnapshotExpense(e *models.Expense) ExpenseSnapshot {
	snap := ExpenseSnapshot{
		Name:          e.Name,
		Description:   e.Description,
		EstimatedCost: e.EstimatedCost,
		ActualCost:    e.ActualCost,
		Status:        e.Status,
		DueDate:       copyTime(e.DueDate),
	}
	if e.AssigneeID != nil {
		snap.AssigneeID = *e.AssigneeID
		snap.AssigneeLabel = *e.AssigneeID
		if e.Assignee != nil && e.Assignee.User != nil {
			snap.AssigneeLabel = e.Assignee.User.DisplayName()
		}
	}
	return snap
}

func (s ExpenseSnapshot) watched() []watchedField {
	return []watchedField{
		text("name", s.Name),
		text("description", s.Description),
		money("estimated_cost", s.EstimatedCost),
		money("actual_cost", s.ActualCost),
		text("status", string(s.Status)),
		timeField("due_date", s.DueDate),
		{name: "assignee", key: s.AssigneeID, display: orNone(s.AssigneeLabel)},
	}
}

// EventSnapshot captures the watched fields of an event.
type EventSnapshot struct {
	Name      string
	Type      string
	Location  string
	Notes     string
	Status    models.EventStatus
	StartDate time.Time
	EndDate   time.Time
}

// SnapshotEvent captures e.
func SnapshotEvent(e *models.Event) EventSnapshot {
	return EventSnapshot{
		Name:      e.Name,
		Type:      e.Type,
		Location:  e.Location,
		Notes:     e.Notes,
		Status:    e.Status,
		StartDate: e.StartDate,
		EndDate:   e.EndDate,
	}
}

func (s EventSnapshot) watched() []watchedField {
	start, end := s.StartDate, s.EndDate
	return []watchedField{
		text("name", s.Name),
		text("type", s.Type),
		text("location", s.Location),
		text("notes", s.Notes),
		text("status", string(s.Status)),
		timeField("start_date", &start),
		timeField("end_date", &end),
	}
}

var (
	significantTask    = []string{"status", "due_date", "assignee"}
	significantExpense = []string{"status", "actual_cost", "due_date"}
	significantEvent   = []string{"status", "start_date", "end_date", "location"}
)

func hasSignificant(changes []FieldChange, fields []string) bool {
	for _, change := range changes {
		for _, field := range fields {
			if change.Field == field {
				return true
			}
		}
	}
	return false
}

// DescribeChanges renders "field: value, field: value".
func DescribeChanges(changes []FieldChange) string {
	parts := make([]string, 0, len(changes))
	for _, change := range changes {
		parts = append(parts, change.Field+": "+change.Value)
	}
	return strings.Join(parts, ", ")
}

func text(name, value string) watchedField {
	return watchedField{name: name, key: value, display: orNone(value)}
}

func money(name string, value decimal.NullDecimal) watchedField {
	if !value.Valid {
		return watchedField{name: name, display: "none"}
	}
	return watchedField{name: name, key: value.Decimal.String(), display: value.Decimal.StringFixed(2)}
}

func timeField(name string, value *time.Time) watchedField {
	if value == nil || value.IsZero() {
		return watchedField{name: name, display: "none"}
	}
	utc := value.UTC()
	return watchedField{name: name, key: utc.Format(time.RFC3339), display: utc.Format("2006-01-02 15:04 MST")}
}

func orNone(value string) string {
	if strings.TrimSpace(value) == "" {
		return "none"
	}
	return value
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func formatDue(due *time.Time) string {
	if due == nil {
		return "no due date"
	}
	return due.UTC().Format("January 2, 2006 at 3:04 PM MST")
}
