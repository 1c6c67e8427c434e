package models

import "time"

// User represents the user model in the database. The phone number is the
// key the WhatsApp webhook resolves inbound messages against, stored as
// digits only (no "+", no "whatsapp:" prefix).
type User struct {
	Base
	Email       string     `gorm:"uniqueIndex;not null" json:"email"`
	Password    string     `gorm:"not null" json:"-"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	PhoneNumber string     `gorm:"size:32;uniqueIndex" json:"phone_number"`
	IsActive    bool       `gorm:"default:true" json:"is_active"`
	IsAdmin     bool       `gorm:"default:false" json:"-"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	Accounts     []Account         `gorm:"foreignKey:UserID" json:"accounts,omitempty"`
	Categories   []Category        `gorm:"foreignKey:UserID" json:"categories,omitempty"`
	Transactions []Transaction     `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
	Budgets      []Budget          `gorm:"foreignKey:UserID" json:"budgets,omitempty"`
	Messages     []IncomingMessage `gorm:"foreignKey:UserID" json:"messages,omitempty"`
}
