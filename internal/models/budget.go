package models

import "github.com/shopspring/decimal"

// Currency codes accepted for budgets.
const (
	CurrencyGBP = "GBP"
	CurrencyUSD = "USD"
	CurrencyNGN = "NGN"
)

// DefaultCurrency is assigned to budgets created with their event.
const DefaultCurrency = CurrencyNGN

// Budget is the single spending plan of an event.
type Budget struct {
	BaseModel

	EventID   string          `gorm:"type:uuid;not null;uniqueIndex" json:"event_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"amount"`
	Currency  string          `gorm:"type:varchar(3);not null;default:'NGN'" json:"currency"`
	IsEnabled bool            `gorm:"not null;default:false" json:"is_enabled"`

	Event *Event `gorm:"foreignKey:EventID" json:"-"`
}
