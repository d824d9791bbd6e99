package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/notifications"
	apperrors "github.com/eventnest/eventnest/pkg/errors"
)

var errBudgetDisabled = apperrors.NewBadRequest("Budget must be enabled to modify expenses")

// ExpenseView is an expense with its derived values.
type ExpenseView struct {
	models.Expense
	CostDifference decimal.NullDecimal `json:"cost_difference"`
	IsOverBudget   bool                `json:"is_over_budget"`
	CanBeEdited    bool                `json:"can_be_edited"`
	Currency       string              `json:"currency"`
}

// CreateExpenseInput carries the fields of a new expense.
type CreateExpenseInput struct {
	Name          string
	Description   string
	EstimatedCost decimal.NullDecimal
	ActualCost    decimal.NullDecimal
	AssigneeID    *string
	Status        models.ExpenseStatus
	DueDate       *time.Time
}

// UpdateExpenseInput holds optional expense changes. An empty AssigneeID clears the assignee.
type UpdateExpenseInput struct {
	Name          *string
	Description   *string
	EstimatedCost *decimal.NullDecimal
	ActualCost    *decimal.NullDecimal
	AssigneeID    *string
	Status        *models.ExpenseStatus
	DueDate       *time.Time
	ClearDueDate  bool
}

func (in UpdateExpenseInput) onlyAssigneeFields() bool {
	return in.Name == nil && in.Description == nil && in.EstimatedCost == nil &&
		in.AssigneeID == nil && in.DueDate == nil && !in.ClearDueDate
}

var validExpenseStatuses = map[models.ExpenseStatus]struct{}{
	models.ExpensePaid:      {},
	models.ExpensePending:   {},
	models.ExpenseCancelled: {},
}

// ExpenseService manages expenses of enabled budgets.
type ExpenseService struct {
	db         *gorm.DB
	access     *AccessService
	dispatcher *notifications.Dispatcher
}

// NewExpenseService constructs an ExpenseService. dispatcher may be nil.
func NewExpenseService(db *gorm.DB, access *AccessService, dispatcher *notifications.Dispatcher) (*ExpenseService, error) {
	if db == nil {
		return nil, errors.New("expense service: db is required")
	}
	if access == nil {
		return nil, errors.New("expense service: access service is required")
	}
	return &ExpenseService{db: db, access: access, dispatcher: dispatcher}, nil
}

// List returns the expenses of a budget to any collaborator.
func (s *ExpenseService) List(ctx context.Context, budgetID, userID string) ([]ExpenseView, error) {
	ctx = ensureContext(ctx)
	budget, err := s.budget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Membership(ctx, budget.EventID, userID); err != nil {
		return nil, err
	}

	var expenses []models.Expense
	if err := s.db.WithContext(ctx).Preload("Assignee.User").
		Where("budget_id = ?", budget.ID).
		Order("created_at ASC").
		Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("expense service: list expenses: %w", err)
	}

	views := make([]ExpenseView, 0, len(expenses))
	for _, expense := range expenses {
		views = append(views, newExpenseView(expense, budget))
	}
	return views, nil
}

// Get returns one expense to any collaborator.
func (s *ExpenseService) Get(ctx context.Context, expenseID, userID string) (*ExpenseView, error) {
	ctx = ensureContext(ctx)
	expense, budget, err := s.load(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Membership(ctx, budget.EventID, userID); err != nil {
		return nil, err
	}
	view := newExpenseView(*expense, budget)
	return &view, nil
}

// EventID resolves the event owning an expense.
func (s *ExpenseService) EventID(ctx context.Context, expenseID string) (string, error) {
	_, budget, err := s.load(ctx, expenseID)
	if err != nil {
		return "", err
	}
	return budget.EventID, nil
}

// Create adds an expense. ADMIN only and the budget must be enabled.
func (s *ExpenseService) Create(ctx context.Context, budgetID, userID string, input CreateExpenseInput) (*ExpenseView, *notifications.Result, error) {
	ctx = ensureContext(ctx)
	budget, err := s.budget(ctx, budgetID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.access.RequireAdmin(ctx, budget.EventID, userID); err != nil {
		return nil, nil, err
	}
	if !budget.IsEnabled {
		return nil, nil, errBudgetDisabled
	}

	expense := models.Expense{
		BudgetID:      budget.ID,
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		EstimatedCost: roundCost(input.EstimatedCost),
		ActualCost:    roundCost(input.ActualCost),
		Status:        input.Status,
		DueDate:       utcPtr(input.DueDate),
	}
	if expense.Name == "" {
		return nil, nil, apperrors.NewBadRequest("name is required")
	}
	if expense.Status == "" {
		expense.Status = models.ExpensePending
	}
	if err := validateExpense(&expense); err != nil {
		return nil, nil, err
	}
	if input.AssigneeID != nil && strings.TrimSpace(*input.AssigneeID) != "" {
		member, err := s.access.CollaboratorByID(ctx, budget.EventID, strings.TrimSpace(*input.AssigneeID))
		if err != nil {
			return nil, nil, err
		}
		expense.AssigneeID = &member.ID
	}

	if err := s.db.WithContext(ctx).Create(&expense).Error; err != nil {
		return nil, nil, fmt.Errorf("expense service: create expense: %w", err)
	}

	result := &notifications.Result{}
	if s.dispatcher != nil {
		if result, err = s.dispatcher.ExpenseSaved(ctx, userID, &expense, true, nil); err != nil {
			return nil, nil, err
		}
	}

	view, err := s.reload(ctx, expense.ID, budget)
	if err != nil {
		return nil, nil, err
	}
	return view, result, nil
}

// Update changes an expense. ADMINs may change any field. The assignee may change
// status and actual_cost of their own expense.
func (s *ExpenseService) Update(ctx context.Context, expenseID, userID string, input UpdateExpenseInput) (*ExpenseView, *notifications.Result, error) {
	ctx = ensureContext(ctx)
	expense, budget, err := s.load(ctx, expenseID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorizeUpdate(ctx, expense, budget, userID, input); err != nil {
		return nil, nil, err
	}
	if !budget.IsEnabled {
		return nil, nil, errBudgetDisabled
	}

	before := notifications.SnapshotExpense(expense)

	if name := trimmedPtr(input.Name); name != nil {
		if *name == "" {
			return nil, nil, apperrors.NewBadRequest("name cannot be empty")
		}
		expense.Name = *name
	}
	if input.Description != nil {
		expense.Description = *input.Description
	}
	if input.EstimatedCost != nil {
		expense.EstimatedCost = roundCost(*input.EstimatedCost)
	}
	if input.ActualCost != nil {
		expense.ActualCost = roundCost(*input.ActualCost)
	}
	if input.Status != nil {
		expense.Status = *input.Status
	}
	if input.ClearDueDate {
		expense.DueDate = nil
	} else if input.DueDate != nil {
		expense.DueDate = utcPtr(input.DueDate)
	}
	if input.AssigneeID != nil {
		assignee := strings.TrimSpace(*input.AssigneeID)
		if assignee == "" {
			expense.AssigneeID = nil
			expense.Assignee = nil
		} else {
			member, err := s.access.CollaboratorByID(ctx, budget.EventID, assignee)
			if err != nil {
				return nil, nil, err
			}
			expense.AssigneeID = &member.ID
			if err := s.db.WithContext(ctx).Preload("User").Take(member, "id = ?", member.ID).Error; err == nil {
				expense.Assignee = member
			}
		}
	}
	if err := validateExpense(expense); err != nil {
		return nil, nil, err
	}

	changes := notifications.Diff(before, notifications.SnapshotExpense(expense))
	if len(changes) == 0 {
		view := newExpenseView(*expense, budget)
		return &view, &notifications.Result{}, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Expense{}).Where("id = ?", expense.ID).Updates(map[string]any{
		"name":           expense.Name,
		"description":    expense.Description,
		"estimated_cost": expense.EstimatedCost,
		"actual_cost":    expense.ActualCost,
		"status":         expense.Status,
		"due_date":       expense.DueDate,
		"assignee_id":    expense.AssigneeID,
	}).Error; err != nil {
		return nil, nil, fmt.Errorf("expense service: update expense: %w", err)
	}

	result := &notifications.Result{}
	if s.dispatcher != nil {
		if result, err = s.dispatcher.ExpenseSaved(ctx, userID, expense, false, changes); err != nil {
			return nil, nil, err
		}
	}

	view, err := s.reload(ctx, expense.ID, budget)
	if err != nil {
		return nil, nil, err
	}
	return view, result, nil
}

// Delete removes an expense with its discussion. ADMIN only and the budget must be enabled.
func (s *ExpenseService) Delete(ctx context.Context, expenseID, userID string) error {
	ctx = ensureContext(ctx)
	expense, budget, err := s.load(ctx, expenseID)
	if err != nil {
		return err
	}
	if _, err := s.access.RequireAdmin(ctx, budget.EventID, userID); err != nil {
		return err
	}
	if !budget.IsEnabled {
		return errBudgetDisabled
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteDiscussion(tx, models.TargetExpense, []string{expense.ID}); err != nil {
			return fmt.Errorf("expense service: %w", err)
		}
		if err := tx.Where("target_kind = ? AND target_id = ?", models.TargetExpense, expense.ID).
			Delete(&models.ReminderNotification{}).Error; err != nil {
			return fmt.Errorf("expense service: delete reminders: %w", err)
		}
		if err := tx.Delete(&models.Expense{}, "id = ?", expense.ID).Error; err != nil {
			return fmt.Errorf("expense service: delete expense: %w", err)
		}
		return nil
	})
}

func (s *ExpenseService) authorizeUpdate(ctx context.Context, expense *models.Expense, budget *models.Budget, userID string, input UpdateExpenseInput) error {
	member, err := s.access.Membership(ctx, budget.EventID, userID)
	if err != nil {
		return err
	}
	if _, err := s.access.RequireAdmin(ctx, budget.EventID, userID); err == nil {
		return nil
	}
	if expense.AssigneeID != nil && *expense.AssigneeID == member.ID {
		if input.onlyAssigneeFields() {
			return nil
		}
		return apperrors.NewForbidden("Assignees can only update status and actual cost")
	}
	return apperrors.NewForbidden("Only event admins can modify expenses")
}

func (s *ExpenseService) budget(ctx context.Context, budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.WithContext(ensureContext(ctx)).Take(&budget, "id = ?", budgetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Budget")
		}
		return nil, fmt.Errorf("expense service: load budget: %w", err)
	}
	return &budget, nil
}

func (s *ExpenseService) load(ctx context.Context, expenseID string) (*models.Expense, *models.Budget, error) {
	var expense models.Expense
	if err := s.db.WithContext(ensureContext(ctx)).Preload("Budget").Preload("Assignee.User").
		Take(&expense, "id = ?", expenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.NewNotFound("Expense")
		}
		return nil, nil, fmt.Errorf("expense service: load expense: %w", err)
	}
	if expense.Budget == nil {
		return nil, nil, apperrors.NewNotFound("Budget")
	}
	return &expense, expense.Budget, nil
}

func (s *ExpenseService) reload(ctx context.Context, expenseID string, budget *models.Budget) (*ExpenseView, error) {
	var expense models.Expense
	if err := s.db.WithContext(ctx).Preload("Assignee.User").Take(&expense, "id = ?", expenseID).Error; err != nil {
		return nil, fmt.Errorf("expense service: reload expense: %w", err)
	}
	view := newExpenseView(expense, budget)
	return &view, nil
}

func newExpenseView(expense models.Expense, budget *models.Budget) ExpenseView {
	return ExpenseView{
		Expense:        expense,
		CostDifference: expense.CostDifference(),
		IsOverBudget:   expense.IsOverBudget(),
		CanBeEdited:    budget.IsEnabled,
		Currency:       budget.Currency,
	}
}

func validateExpense(expense *models.Expense) error {
	if _, ok := validExpenseStatuses[expense.Status]; !ok {
		return apperrors.NewBadRequest("status must be one of paid, pending, cancelled")
	}
	if expense.EstimatedCost.Valid && expense.EstimatedCost.Decimal.IsNegative() {
		return apperrors.NewBadRequest("estimated_cost cannot be negative")
	}
	if expense.ActualCost.Valid && expense.ActualCost.Decimal.IsNegative() {
		return apperrors.NewBadRequest("actual_cost cannot be negative")
	}
	return nil
}

func roundCost(value decimal.NullDecimal) decimal.NullDecimal {
	if !value.Valid {
		return value
	}
	return decimal.NewNullDecimal(value.Decimal.Round(2))
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
