package handlers_test

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/eventnest/eventnest/internal/handlers/testutil"
)

func TestExpensesRequireEnabledBudget(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser("owner")
	event := createEvent(t, env, owner)
	budget := eventBudget(t, env, owner, event.ID)

	w := env.Request(http.MethodPost, "/api/budgets/"+budget.ID+"/expenses", map[string]any{"name": "Venue"}, owner.Token)
	resp := testutil.RequireError(t, w, http.StatusBadRequest, "BAD_REQUEST")
	require.Equal(t, "Budget must be enabled to modify expenses", resp.Error.Message)

	enableBudget(t, env, owner, event.ID)
	expense := createExpense(t, env, owner, budget.ID, nil)
	require.Equal(t, "pending", expense.Status)

	// Disabling again freezes existing expenses.
	testutil.RequireData(t, env.Request(http.MethodPost, "/api/budgets/"+budget.ID+"/toggle", nil, owner.Token), http.StatusOK, &budget)
	require.False(t, budget.IsEnabled)
	w = env.Request(http.MethodPatch, "/api/expenses/"+expense.ID, map[string]any{"name": "Hall"}, owner.Token)
	testutil.RequireError(t, w, http.StatusBadRequest, "BAD_REQUEST")

	var view map[string]any
	testutil.RequireData(t, env.Request(http.MethodGet, "/api/expenses/"+expense.ID, nil, owner.Token), http.StatusOK, &view)
	require.Equal(t, false, view["can_be_edited"])
}

func TestBudgetUpdateAndTotals(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser("owner")
	guest := env.CreateUser("guest")
	event := createEvent(t, env, owner)
	join(t, env, owner, guest, event.ID)
	budget := enableBudget(t, env, owner, event.ID)

	w := env.Request(http.MethodPatch, "/api/budgets/"+budget.ID, map[string]any{"amount": "5000", "currency": "usd"}, owner.Token)
	testutil.RequireData(t, w, http.StatusOK, &budget)
	require.True(t, decimal.RequireFromString("5000").Equal(budget.Amount))
	require.Equal(t, "USD", budget.Currency)

	testutil.RequireError(t, env.Request(http.MethodPatch, "/api/budgets/"+budget.ID, map[string]any{"amount": "-1"}, owner.Token), http.StatusBadRequest, "BAD_REQUEST")
	testutil.RequireError(t, env.Request(http.MethodPatch, "/api/budgets/"+budget.ID, map[string]any{"amount": "1"}, guest.Token), http.StatusForbidden, "FORBIDDEN")
	testutil.RequireError(t, env.Request(http.MethodPost, "/api/budgets/"+budget.ID+"/toggle", nil, guest.Token), http.StatusForbidden, "FORBIDDEN")

	createExpense(t, env, owner, budget.ID, map[string]any{"name": "Venue", "estimated_cost": "1500", "actual_cost": "1750.505"})
	createExpense(t, env, owner, budget.ID, map[string]any{"name": "Catering", "estimated_cost": "800", "status": "paid", "actual_cost": "750"})

	var detail struct {
		TotalEstimated  decimal.Decimal `json:"total_estimated"`
		TotalActual     decimal.Decimal `json:"total_actual"`
		Remaining       decimal.Decimal `json:"remaining"`
		ExpensesSummary map[string]struct {
			Count int `json:"count"`
		} `json:"expenses_summary"`
	}
	testutil.RequireData(t, env.Request(http.MethodGet, "/api/budgets/"+budget.ID, nil, guest.Token), http.StatusOK, &detail)
	require.True(t, decimal.RequireFromString("2300").Equal(detail.TotalEstimated))
	require.True(t, decimal.RequireFromString("2500.51").Equal(detail.TotalActual), detail.TotalActual.String())
	require.True(t, decimal.RequireFromString("2499.49").Equal(detail.Remaining), detail.Remaining.String())
	require.Equal(t, 1, detail.ExpensesSummary["pending"].Count)
	require.Equal(t, 1, detail.ExpensesSummary["paid"].Count)
	require.Equal(t, 0, detail.ExpensesSummary["cancelled"].Count)

	var expenses []map[string]any
	testutil.RequireData(t, env.Request(http.MethodGet, "/api/budgets/"+budget.ID+"/expenses", nil, guest.Token), http.StatusOK, &expenses)
	require.Len(t, expenses, 2)
}

func TestExpenseAssigneePermissions(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser("owner")
	guest := env.CreateUser("guest")
	other := env.CreateUser("other")
	event := createEvent(t, env, owner)
	member := join(t, env, owner, guest, event.ID)
	join(t, env, owner, other, event.ID)
	budget := enableBudget(t, env, owner, event.ID)

	testutil.RequireError(t, env.Request(http.MethodPost, "/api/budgets/"+budget.ID+"/expenses", map[string]any{"name": "Flowers"}, guest.Token), http.StatusForbidden, "FORBIDDEN")

	expense := createExpense(t, env, owner, budget.ID, map[string]any{
		"name":           "Venue",
		"estimated_cost": "1000",
		"assignee_id":    member.ID,
	})
	require.NotNil(t, expense.AssigneeID)
	require.Equal(t, member.ID, *expense.AssigneeID)

	var notes []map[string]any
	testutil.RequireData(t, env.Request(http.MethodGet, "/api/notifications", nil, guest.Token), http.StatusOK, &notes)
	require.Len(t, notes, 1)
	require.Equal(t, "Expense Assigned", notes[0]["verb"])

	testutil.RequireError(t, env.Request(http.MethodPatch, "/api/expenses/"+expense.ID, map[string]any{"name": "Hall"}, guest.Token), http.StatusForbidden, "FORBIDDEN")
	testutil.RequireError(t, env.Request(http.MethodPatch, "/api/expenses/"+expense.ID, map[string]any{"status": "paid"}, other.Token), http.StatusForbidden, "FORBIDDEN")

	var updated map[string]any
	w := env.Request(http.MethodPatch, "/api/expenses/"+expense.ID, map[string]any{"status": "paid", "actual_cost": "1200"}, guest.Token)
	testutil.RequireData(t, w, http.StatusOK, &updated)
	require.Equal(t, "paid", updated["status"])
	require.Equal(t, true, updated["is_over_budget"])

	testutil.RequireError(t, env.Request(http.MethodPost, "/api/budgets/"+budget.ID+"/expenses", map[string]any{"name": "X", "assignee_id": "missing"}, owner.Token), http.StatusBadRequest, "BAD_REQUEST")

	testutil.RequireError(t, env.Request(http.MethodDelete, "/api/expenses/"+expense.ID, nil, guest.Token), http.StatusForbidden, "FORBIDDEN")
	require.Equal(t, http.StatusNoContent, env.Request(http.MethodDelete, "/api/expenses/"+expense.ID, nil, owner.Token).Code)
	testutil.RequireError(t, env.Request(http.MethodGet, "/api/expenses/"+expense.ID, nil, owner.Token), http.StatusNotFound, "NOT_FOUND")
}
