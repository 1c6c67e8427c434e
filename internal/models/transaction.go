package models

import (
	"fmt"
	"time"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Transaction represents a financial movement. Date is when the movement
// happened from the user's perspective (for messages, the time the message
// was received); RegisteredAt is when the system recorded it. Transactions
// created by the message pipeline are never mutated afterwards.
type Transaction struct {
	Base
	UserID       string          `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID    string          `gorm:"type:uuid;not null;index" json:"account_id"`
	CategoryID   *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	Type         TransactionType `gorm:"not null" json:"type"`
	AmountCents  int64           `gorm:"type:bigint;not null" json:"amount_cents"`
	Description  string          `json:"description"`
	Date         time.Time       `gorm:"not null" json:"date"`
	RegisteredAt time.Time       `gorm:"not null" json:"registered_at"`

	Account  Account   `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// FormatAmount renders an amount in cents as a decimal string with two
// fractional digits, e.g. 1250 -> "12.50".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
