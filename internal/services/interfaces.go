package services

import (
	"time"

	"gorm.io/gorm"

	"finanzas/internal/models"
	"finanzas/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName, phoneNumber string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	GetUserByPhone(phoneNumber string) (*models.User, error)
	AttemptLogin(email, password string) (*models.User, error)
}

// AccountServicer defines the contract for account-related business logic.
// FindAccountByName and GetDefaultAccount are the resolution operations the
// message pipeline depends on; neither ever creates an account.
type AccountServicer interface {
	CreateAccount(userID, name, description string, initialBalanceCents int64) (*models.Account, error)
	GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(userID, accountID string) (*models.Account, error)
	FindAccountByName(userID, name string) (*models.Account, error)
	GetDefaultAccount(userID string) (*models.Account, error)
	UpdateAccountBalance(tx *gorm.DB, accountID string, transactionType models.TransactionType, amountCents int64) error
}

// CategoryServicer defines the contract for category-related business logic.
// Resolution is an explicit two-step contract: FindCategoryByName is a pure
// lookup, CreateCategoryIfAbsent is the side-effecting step the message
// pipeline uses to auto-create missing categories.
type CategoryServicer interface {
	CreateCategory(userID, name string, categoryType models.CategoryType, description string) (*models.Category, error)
	FindCategoryByName(userID, name string) (*models.Category, error)
	CreateCategoryIfAbsent(userID, name string, categoryType models.CategoryType) (*models.Category, error)
	GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	CategoryID *string
	AccountID  *string
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(userID, accountID string, categoryID *string, transactionType models.TransactionType, amountCents int64, description string, movementDate time.Time) (*models.Transaction, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
}

// BudgetProgress contains spending vs budget data for a budget's current period.
type BudgetProgress struct {
	BudgetID   string  `json:"budget_id"`
	Budgeted   int64   `json:"budgeted"`
	Spent      int64   `json:"spent"`
	Remaining  int64   `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(userID, categoryID string, amountCents int64, period models.BudgetPeriod, startDate time.Time, endDate *time.Time) (*models.Budget, error)
	GetUserBudgets(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	DeleteBudget(userID, budgetID string) error
	GetBudgetProgress(userID, budgetID string) (*BudgetProgress, error)
}

// MessageSummary is the read-only projection of a message used by history and
// admin listings.
type MessageSummary struct {
	ID         string                  `json:"id"`
	RawText    string                  `json:"raw_text"`
	ParsedType *models.TransactionType `json:"parsed_type,omitempty"`
	Amount     *string                 `json:"amount,omitempty"`
	Category   *string                 `json:"category,omitempty"`
	Account    *string                 `json:"account,omitempty"`
	State      models.MessageState     `json:"state"`
	BotReply   *string                 `json:"bot_reply,omitempty"`
	ReceivedAt time.Time               `json:"received_at"`
}

// MessageServicer defines the contract for the message-to-movement pipeline.
// ProcessSingleMessage never returns an error: every outcome, including
// panics, is recorded on the message itself.
type MessageServicer interface {
	IngestMessage(userID, senderPhone, rawText string) (*models.IncomingMessage, error)
	ProcessSingleMessage(msg *models.IncomingMessage)
	DrainPending()
	GetUserMessages(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.IncomingMessage], error)
	GetAllMessages(page pagination.PageRequest) (*pagination.PageResponse[models.IncomingMessage], error)
	ToSummary(msg *models.IncomingMessage) MessageSummary
}

// MessageDrainer runs DrainPending on a fixed interval.
type MessageDrainer interface {
	Start()
	Stop()
}
