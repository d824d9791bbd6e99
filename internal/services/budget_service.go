package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
	apperrors "github.com/eventnest/eventnest/pkg/errors"
)

// StatusSummary aggregates the expenses of one status.
type StatusSummary struct {
	Count     int             `json:"count"`
	Estimated decimal.Decimal `json:"estimated"`
	Actual    decimal.Decimal `json:"actual"`
}

// BudgetDetail is a budget with its derived totals.
type BudgetDetail struct {
	models.Budget
	TotalEstimated  decimal.Decimal                        `json:"total_estimated"`
	TotalActual     decimal.Decimal                        `json:"total_actual"`
	Remaining       decimal.Decimal                        `json:"remaining"`
	ExpensesSummary map[models.ExpenseStatus]StatusSummary `json:"expenses_summary"`
}

// UpdateBudgetInput holds optional budget changes.
type UpdateBudgetInput struct {
	Amount   *decimal.Decimal
	Currency *string
}

// BackfillResult reports budgets created for events that had none.
type BackfillResult struct {
	Created  int      `json:"created"`
	EventIDs []string `json:"event_ids"`
}

var validCurrencies = map[string]struct{}{
	models.CurrencyGBP: {},
	models.CurrencyUSD: {},
	models.CurrencyNGN: {},
}

// BudgetService manages the one budget of each event.
type BudgetService struct {
	db     *gorm.DB
	access *AccessService
}

// NewBudgetService constructs a BudgetService.
func NewBudgetService(db *gorm.DB, access *AccessService) (*BudgetService, error) {
	if db == nil {
		return nil, errors.New("budget service: db is required")
	}
	if access == nil {
		return nil, errors.New("budget service: access service is required")
	}
	return &BudgetService{db: db, access: access}, nil
}

// Get returns a budget with totals to any collaborator of its event.
func (s *BudgetService) Get(ctx context.Context, budgetID, userID string) (*BudgetDetail, error) {
	budget, err := s.load(ctx, "id = ?", budgetID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Membership(ctx, budget.EventID, userID); err != nil {
		return nil, err
	}
	return s.detail(ctx, budget)
}

// GetForEvent returns the budget of eventID to any collaborator.
func (s *BudgetService) GetForEvent(ctx context.Context, eventID, userID string) (*BudgetDetail, error) {
	if _, err := s.access.Membership(ctx, eventID, userID); err != nil {
		return nil, err
	}
	budget, err := s.load(ctx, "event_id = ?", eventID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, budget)
}

// Update changes the amount or currency. Owner or ADMIN only.
func (s *BudgetService) Update(ctx context.Context, budgetID, userID string, input UpdateBudgetInput) (*BudgetDetail, error) {
	ctx = ensureContext(ctx)
	budget, err := s.load(ctx, "id = ?", budgetID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireAdmin(ctx, budget.EventID, userID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Amount != nil {
		if input.Amount.IsNegative() {
			return nil, apperrors.NewBadRequest("amount cannot be negative")
		}
		budget.Amount = input.Amount.Round(2)
		updates["amount"] = budget.Amount
	}
	if input.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*input.Currency))
		if _, ok := validCurrencies[currency]; !ok {
			return nil, apperrors.NewBadRequest("currency must be one of GBP, USD, NGN")
		}
		budget.Currency = currency
		updates["currency"] = currency
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(budget).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("budget service: update budget: %w", err)
		}
	}
	return s.detail(ctx, budget)
}

// Toggle flips is_enabled. Owner or ADMIN only.
func (s *BudgetService) Toggle(ctx context.Context, budgetID, userID string) (*BudgetDetail, error) {
	ctx = ensureContext(ctx)
	budget, err := s.load(ctx, "id = ?", budgetID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireAdmin(ctx, budget.EventID, userID); err != nil {
		return nil, err
	}

	budget.IsEnabled = !budget.IsEnabled
	if err := s.db.WithContext(ctx).Model(budget).Update("is_enabled", budget.IsEnabled).Error; err != nil {
		return nil, fmt.Errorf("budget service: toggle budget: %w", err)
	}
	return s.detail(ctx, budget)
}

// CreateMissing gives every event without a budget a disabled one. With dryRun it only reports.
func (s *BudgetService) CreateMissing(ctx context.Context, dryRun bool) (*BackfillResult, error) {
	ctx = ensureContext(ctx)

	var eventIDs []string
	withBudget := s.db.Model(&models.Budget{}).Select("event_id")
	if err := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("id NOT IN (?)", withBudget).
		Order("created_at ASC").
		Pluck("id", &eventIDs).Error; err != nil {
		return nil, fmt.Errorf("budget service: find events without budget: %w", err)
	}

	result := &BackfillResult{EventIDs: eventIDs}
	if dryRun || len(eventIDs) == 0 {
		return result, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, eventID := range eventIDs {
			budget := models.Budget{EventID: eventID, Amount: decimal.Zero, Currency: models.DefaultCurrency}
			if err := tx.Create(&budget).Error; err != nil {
				return fmt.Errorf("budget service: create budget for %s: %w", eventID, err)
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BudgetService) load(ctx context.Context, query string, id string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.WithContext(ensureContext(ctx)).Where(query, id).Take(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Budget")
		}
		return nil, fmt.Errorf("budget service: load budget: %w", err)
	}
	return &budget, nil
}

func (s *BudgetService) detail(ctx context.Context, budget *models.Budget) (*BudgetDetail, error) {
	var expenses []models.Expense
	if err := s.db.WithContext(ensureContext(ctx)).
		Select("id", "status", "estimated_cost", "actual_cost").
		Where("budget_id = ?", budget.ID).
		Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("budget service: load expenses: %w", err)
	}

	detail := &BudgetDetail{
		Budget:          *budget,
		TotalEstimated:  decimal.Zero,
		TotalActual:     decimal.Zero,
		ExpensesSummary: make(map[models.ExpenseStatus]StatusSummary, 3),
	}
	for _, status := range []models.ExpenseStatus{models.ExpensePending, models.ExpensePaid, models.ExpenseCancelled} {
		detail.ExpensesSummary[status] = StatusSummary{Estimated: decimal.Zero, Actual: decimal.Zero}
	}

	for _, expense := range expenses {
		summary := detail.ExpensesSummary[expense.Status]
		summary.Count++
		if expense.EstimatedCost.Valid {
			summary.Estimated = summary.Estimated.Add(expense.EstimatedCost.Decimal)
			detail.TotalEstimated = detail.TotalEstimated.Add(expense.EstimatedCost.Decimal)
		}
		if expense.ActualCost.Valid {
			summary.Actual = summary.Actual.Add(expense.ActualCost.Decimal)
			detail.TotalActual = detail.TotalActual.Add(expense.ActualCost.Decimal)
		}
		detail.ExpensesSummary[expense.Status] = summary
	}
	detail.Remaining = budget.Amount.Sub(detail.TotalActual)
	return detail, nil
}
