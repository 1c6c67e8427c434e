// Package errors provides custom error types for the finanzas API.
// All service-layer errors use AppError so that handlers and the message
// pipeline can classify failures by code without inspecting raw errors, and
// so that internal details never leak to clients.
package errors

import (
	"net/http"

	goerrors "errors"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
//
// Messages on the WhatsApp pipeline sentinels are in Spanish because they are
// relayed verbatim back to the end user over the messaging channel.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Code extracts the AppError code from an error chain, or "" if the error is
// not an AppError.
func Code(err error) string {
	var appErr *AppError
	if goerrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
	ErrDuplicatePhone = &AppError{Code: "DUPLICATE_PHONE", Message: "A user with this phone number already exists", StatusCode: http.StatusConflict}
)

// Account errors.
var (
	ErrAccountNotFound = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrNoAccounts      = &AppError{Code: "NO_ACCOUNTS_CONFIGURED", Message: "No tienes cuentas configuradas. Por favor, crea una primero.", StatusCode: http.StatusConflict}
)

// Category errors.
var (
	ErrCategoryNotFound = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryInUse    = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is used by existing transactions", StatusCode: http.StatusConflict}
)

// Transaction errors.
var (
	ErrTransactionNotFound = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
)

// Budget errors.
var (
	ErrBudgetNotFound = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
)

// Message grammar errors. The messages mirror the bot's reply contract: the
// natural-language form replies with a usage hint, the tokenized form keeps
// its historical "❌" prefix.
var (
	ErrMessageFormat = &AppError{
		Code:       "MESSAGE_FORMAT_INVALID",
		Message:    "El formato del mensaje no es válido. Usa: 'gasto/ingreso <monto> <categoría> [en <cuenta>] [descripción]'",
		StatusCode: http.StatusBadRequest,
	}
	ErrTokenFormat = &AppError{
		Code:       "MESSAGE_FORMAT_INVALID",
		Message:    "❌ Formato incorrecto. Usa: GASTO [monto] [categoria] [cuenta]",
		StatusCode: http.StatusBadRequest,
	}
	ErrMovementTypeInvalid = &AppError{
		Code:       "MOVEMENT_TYPE_INVALID",
		Message:    "❌ Tipo inválido. Usa GASTO o INGRESO",
		StatusCode: http.StatusBadRequest,
	}
	ErrAmountInvalid = &AppError{
		Code:       "AMOUNT_INVALID",
		Message:    "❌ El monto debe ser un número válido",
		StatusCode: http.StatusBadRequest,
	}
	ErrAmountNotPositive = &AppError{
		Code:       "AMOUNT_NOT_POSITIVE",
		Message:    "El monto debe ser mayor a 0",
		StatusCode: http.StatusBadRequest,
	}
)

// Message pipeline errors.
var (
	ErrMessageNotFound = &AppError{Code: "MESSAGE_NOT_FOUND", Message: "Message not found", StatusCode: http.StatusNotFound}
	ErrMovementCreate  = &AppError{Code: "MOVEMENT_CREATE_FAILED", Message: "Error interno al procesar el mensaje.", StatusCode: http.StatusInternalServerError}
)
