package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/eventnest/eventnest/internal/models"
)

func TestBudgetServiceUpdateRequiresAdmin(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	owner := env.user(t, "olu")
	guest := env.user(t, "ada")
	event := env.event(t, owner)
	env.join(t, event, guest, models.RoleCollaborator)

	detail, err := env.budgets.GetForEvent(ctx, event.ID, guest.ID)
	require.NoError(t, err)

	amount := decimal.RequireFromString("2500.456")
	_, err = env.budgets.Update(ctx, detail.ID, guest.ID, UpdateBudgetInput{Amount: &amount})
	requireStatus(t, err, http.StatusForbidden)
	_, err = env.budgets.Toggle(ctx, detail.ID, guest.ID)
	requireStatus(t, err, http.StatusForbidden)

	currency := "usd"
	updated, err := env.budgets.Update(ctx, detail.ID, owner.ID, UpdateBudgetInput{Amount: &amount, Currency: &currency})
	require.NoError(t, err)
	require.Equal(t, "2500.46", updated.Amount.StringFixed(2))
	require.Equal(t, models.CurrencyUSD, updated.Currency)

	negative := decimal.NewFromInt(-1)
	_, err = env.budgets.Update(ctx, detail.ID, owner.ID, UpdateBudgetInput{Amount: &negative})
	requireStatus(t, err, http.StatusBadRequest)

	euro := "EUR"
	_, err = env.budgets.Update(ctx, detail.ID, owner.ID, UpdateBudgetInput{Currency: &euro})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestBudgetServiceDetailTotals(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	owner := env.user(t, "olu")
	event := env.event(t, owner)
	budget := env.enabledBudget(t, event, owner)

	amount := decimal.NewFromInt(1000)
	_, err := env.budgets.Update(ctx, budget.ID, owner.ID, UpdateBudgetInput{Amount: &amount})
	require.NoError(t, err)

	_, _, err = env.expenses.Create(ctx, budget.ID, owner.ID, CreateExpenseInput{
		Name:          "Venue",
		EstimatedCost: decimal.NewNullDecimal(decimal.NewFromInt(400)),
		ActualCost:    decimal.NewNullDecimal(decimal.NewFromInt(450)),
		Status:        models.ExpensePaid,
	})
	require.NoError(t, err)
	_, _, err = env.expenses.Create(ctx, budget.ID, owner.ID, CreateExpenseInput{
		Name:          "Catering",
		EstimatedCost: decimal.NewNullDecimal(decimal.NewFromInt(300)),
	})
	require.NoError(t, err)

	detail, err := env.budgets.Get(ctx, budget.ID, owner.ID)
	require.NoError(t, err)
	require.True(t, detail.TotalEstimated.Equal(decimal.NewFromInt(700)))
	require.True(t, detail.TotalActual.Equal(decimal.NewFromInt(450)))
	require.True(t, detail.Remaining.Equal(decimal.NewFromInt(550)))
	require.Equal(t, 1, detail.ExpensesSummary[models.ExpensePaid].Count)
	require.Equal(t, 1, detail.ExpensesSummary[models.ExpensePending].Count)
	require.Zero(t, detail.ExpensesSummary[models.ExpenseCancelled].Count)
}

func TestBudgetServiceCreateMissing(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	owner := env.user(t, "olu")
	env.event(t, owner)

	now := time.Now().UTC()
	legacy := models.Event{OwnerID: owner.ID, Name: "Legacy", StartDate: now, EndDate: now.Add(time.Hour)}
	require.NoError(t, env.db.Create(&legacy).Error)

	dry, err := env.budgets.CreateMissing(ctx, true)
	require.NoError(t, err)
	require.Zero(t, dry.Created)
	require.Equal(t, []string{legacy.ID}, dry.EventIDs)

	applied, err := env.budgets.CreateMissing(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, applied.Created)

	var budget models.Budget
	require.NoError(t, env.db.Where("event_id = ?", legacy.ID).Take(&budget).Error)
	require.False(t, budget.IsEnabled)

	again, err := env.budgets.CreateMissing(ctx, false)
	require.NoError(t, err)
	require.Zero(t, again.Created)
	require.Empty(t, again.EventIDs)
}
