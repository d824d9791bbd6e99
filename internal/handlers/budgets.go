package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/services"
	"github.com/eventnest/eventnest/pkg/response"
)

// BudgetHandler exposes budgets and the expenses recorded against them.
type BudgetHandler struct {
	budgets  *services.BudgetService
	expenses *services.ExpenseService
}

func NewBudgetHandler(budgets *services.BudgetService, expenses *services.ExpenseService) *BudgetHandler {
	return &BudgetHandler{budgets: budgets, expenses: expenses}
}

type updateBudgetRequest struct {
	Amount   *decimal.Decimal `json:"amount"`
	Currency *string          `json:"currency" validate:"omitempty,oneof=GBP USD NGN gbp usd ngn"`
}

type createExpenseRequest struct {
	Name          string               `json:"name" validate:"required,max=255"`
	Description   string               `json:"description"`
	EstimatedCost decimal.NullDecimal  `json:"estimated_cost"`
	ActualCost    decimal.NullDecimal  `json:"actual_cost"`
	AssigneeID    *string              `json:"assignee_id"`
	Status        models.ExpenseStatus `json:"status" validate:"omitempty,oneof=paid pending cancelled"`
	DueDate       *time.Time           `json:"due_date"`
}

type updateExpenseRequest struct {
	Name          *string               `json:"name" validate:"omitempty,min=1,max=255"`
	Description   *string               `json:"description"`
	EstimatedCost *decimal.NullDecimal  `json:"estimated_cost"`
	ActualCost    *decimal.NullDecimal  `json:"actual_cost"`
	AssigneeID    *string               `json:"assignee_id"`
	Status        *models.ExpenseStatus `json:"status" validate:"omitempty,oneof=paid pending cancelled"`
	DueDate       *time.Time            `json:"due_date"`
	ClearDueDate  bool                  `json:"clear_due_date"`
}

// GET /api/budgets/:budgetID
func (h *BudgetHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	budget, err := h.budgets.Get(requestContext(c), param(c, "budgetID"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, budget)
}

// PATCH /api/budgets/:budgetID
func (h *BudgetHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req updateBudgetRequest
	if !bindAndValidate(c, &req) {
		return
	}
	budget, err := h.budgets.Update(requestContext(c), param(c, "budgetID"), userID, services.UpdateBudgetInput{
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, budget)
}

// POST /api/budgets/:budgetID/toggle
func (h *BudgetHandler) Toggle(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	budget, err := h.budgets.Toggle(requestContext(c), param(c, "budgetID"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, budget)
}

// GET /api/budgets/:budgetID/expenses
func (h *BudgetHandler) ListExpenses(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	expenses, err := h.expenses.List(requestContext(c), param(c, "budgetID"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, expenses)
}

// POST /api/budgets/:budgetID/expenses
func (h *BudgetHandler) CreateExpense(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req createExpenseRequest
	if !bindAndValidate(c, &req) {
		return
	}
	expense, _, err := h.expenses.Create(requestContext(c), param(c, "budgetID"), userID, services.CreateExpenseInput{
		Name:          req.Name,
		Description:   req.Description,
		EstimatedCost: req.EstimatedCost,
		ActualCost:    req.ActualCost,
		AssigneeID:    req.AssigneeID,
		Status:        req.Status,
		DueDate:       req.DueDate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, expense)
}

// GET /api/expenses/:expenseID
func (h *BudgetHandler) GetExpense(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	expense, err := h.expenses.Get(requestContext(c), param(c, "expenseID"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, expense)
}

// PATCH /api/expenses/:expenseID
func (h *BudgetHandler) UpdateExpense(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req updateExpenseRequest
	if !bindAndValidate(c, &req) {
		return
	}
	expense, _, err := h.expenses.Update(requestContext(c), param(c, "expenseID"), userID, services.UpdateExpenseInput{
		Name:          req.Name,
		Description:   req.Description,
		EstimatedCost: req.EstimatedCost,
		ActualCost:    req.ActualCost,
		AssigneeID:    req.AssigneeID,
		Status:        req.Status,
		DueDate:       req.DueDate,
		ClearDueDate:  req.ClearDueDate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, expense)
}

// DELETE /api/expenses/:expenseID
func (h *BudgetHandler) DeleteExpense(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.expenses.Delete(requestContext(c), param(c, "expenseID"), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
