package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "finanzas/internal/errors"
	"finanzas/internal/models"
	"finanzas/internal/pagination"
)

// accountService handles account-related business logic.
type accountService struct {
	db *gorm.DB
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB) AccountServicer {
	return &accountService{db: db}
}

// CreateAccount creates a new account for a user
func (s *accountService) CreateAccount(userID, name, description string, initialBalanceCents int64) (*models.Account, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}

	account := &models.Account{
		UserID:              userID,
		Name:                name,
		Description:         description,
		InitialBalanceCents: initialBalanceCents,
		BalanceCents:        initialBalanceCents,
		IsActive:            true,
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return account, nil
}

// GetUserAccounts retrieves a paginated list of accounts for a user.
func (s *accountService) GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	page.Defaults()

	base := s.db.Model(&models.Account{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var accounts []models.Account
	if err := base.Scopes(pagination.Paginate(page)).
		Order("created_at ASC").
		Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(accounts, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetAccountByID retrieves an account by ID for a specific user
func (s *accountService) GetAccountByID(userID, accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ? AND user_id = ?", accountID, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// FindAccountByName retrieves an account by name for a specific user using
// case-insensitive comparison. Missing accounts are a terminal resolution
// failure; this lookup never creates anything.
func (s *accountService) FindAccountByName(userID, name string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("user_id = ? AND LOWER(name) = LOWER(?)", userID, name).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// GetDefaultAccount returns the user's oldest account by creation order. This
// is the account movements land on when the message names none.
func (s *accountService) GetDefaultAccount(userID string) (*models.Account, error) {
	var account models.Account
	err := s.db.Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNoAccounts
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// UpdateAccountBalance adjusts the account balance for a new movement inside
// the caller's database transaction.
func (s *accountService) UpdateAccountBalance(tx *gorm.DB, accountID string, transactionType models.TransactionType, amountCents int64) error {
	delta := amountCents
	if transactionType == models.TransactionTypeExpense {
		delta = -amountCents
	}

	result := tx.Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("balance_cents", gorm.Expr("balance_cents + ?", delta))
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}
