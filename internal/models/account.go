package models

// Account represents a financial account owned by a user. Accounts are only
// ever created explicitly; the message pipeline never creates one.
//
// Monetary columns store integer minor units (cents) to avoid floating-point
// rounding anywhere in the system.
type Account struct {
	Base
	UserID              string `gorm:"type:uuid;not null;index" json:"user_id"`
	Name                string `gorm:"not null" json:"name"`
	Description         string `json:"description"`
	InitialBalanceCents int64  `gorm:"type:bigint;not null;default:0" json:"initial_balance_cents"`
	BalanceCents        int64  `gorm:"type:bigint;not null;default:0" json:"balance_cents"`
	IsActive            bool   `gorm:"default:true" json:"is_active"`

	Transactions []Transaction `gorm:"foreignKey:AccountID" json:"transactions,omitempty"`
}
