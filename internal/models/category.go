package models

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Category represents a transaction category. Names are unique per user under
// case-insensitive comparison; the message pipeline creates missing categories
// on the fly, tagged with the type of the movement that referenced them.
type Category struct {
	Base
	UserID      string       `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string       `gorm:"not null" json:"name"`
	Type        CategoryType `gorm:"not null" json:"type"`
	Description string       `json:"description"`

	Transactions []Transaction `gorm:"foreignKey:CategoryID" json:"transactions,omitempty"`
	Budgets      []Budget      `gorm:"foreignKey:CategoryID" json:"budgets,omitempty"`
}

// CategoryTypeFor maps a transaction type onto the category type a category
// auto-created for that transaction receives.
func CategoryTypeFor(t TransactionType) CategoryType {
	if t == TransactionTypeIncome {
		return CategoryTypeIncome
	}
	return CategoryTypeExpense
}
