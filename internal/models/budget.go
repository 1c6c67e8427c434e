package models

import "time"

// BudgetPeriod represents the recurrence of a budget
type BudgetPeriod string

const (
	BudgetPeriodMonthly BudgetPeriod = "monthly"
	BudgetPeriodYearly  BudgetPeriod = "yearly"
)

// Budget represents a spending limit for a category over a period.
type Budget struct {
	Base
	UserID      string       `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID  string       `gorm:"type:uuid;not null" json:"category_id"`
	AmountCents int64        `gorm:"type:bigint;not null" json:"amount_cents"`
	Period      BudgetPeriod `gorm:"not null" json:"period"`
	StartDate   time.Time    `gorm:"not null" json:"start_date"`
	EndDate     *time.Time   `json:"end_date,omitempty"`

	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
