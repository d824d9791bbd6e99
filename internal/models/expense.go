package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseStatus is the payment state of an expense.
type ExpenseStatus string

const (
	ExpensePaid      ExpenseStatus = "paid"
	ExpensePending   ExpenseStatus = "pending"
	ExpenseCancelled ExpenseStatus = "cancelled"
)

// Expense is one line of a budget. AssigneeID references a Collaborator of the budget's event.
type Expense struct {
	BaseModel

	BudgetID      string              `gorm:"type:uuid;not null;index" json:"budget_id"`
	Name          string              `gorm:"type:varchar(255);not null" json:"name"`
	Description   string              `gorm:"type:text" json:"description"`
	EstimatedCost decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"estimated_cost"`
	ActualCost    decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"actual_cost"`
	AssigneeID    *string             `gorm:"type:uuid;index" json:"assignee_id"`
	Status        ExpenseStatus       `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	DueDate       *time.Time          `gorm:"index" json:"due_date"`

	Budget   *Budget       `gorm:"foreignKey:BudgetID" json:"-"`
	Assignee *Collaborator `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
}

// CostDifference is actual minus estimated, or invalid when either is unset.
func (e *Expense) CostDifference() decimal.NullDecimal {
	if !e.EstimatedCost.Valid || !e.ActualCost.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(e.ActualCost.Decimal.Sub(e.EstimatedCost.Decimal))
}

// IsOverBudget reports whether the actual cost exceeds the estimate.
func (e *Expense) IsOverBudget() bool {
	if !e.EstimatedCost.Valid || !e.ActualCost.Valid {
		return false
	}
	return e.ActualCost.Decimal.GreaterThan(e.EstimatedCost.Decimal)
}
