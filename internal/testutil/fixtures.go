package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"finanzas/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password, unique email, and
// unique phone number.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	n := nextID()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:       fmt.Sprintf("user%d@test.com", n),
		Password:    string(hash),
		PhoneNumber: fmt.Sprintf("5215500%06d", n),
		IsActive:    true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAccount creates an account with zero balance.
func CreateTestAccount(t *testing.T, db *gorm.DB, userID string) *models.Account {
	t.Helper()
	return CreateTestAccountWithName(t, db, userID, fmt.Sprintf("Test Account %d", nextID()))
}

// CreateTestAccountWithName creates an account with the given name.
func CreateTestAccountWithName(t *testing.T, db *gorm.DB, userID, name string) *models.Account {
	t.Helper()

	account := &models.Account{
		UserID:   userID,
		Name:     name,
		IsActive: true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestCategory creates a category with the given name and type.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID, name string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   name,
		Type:   categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestMessage creates an incoming message in state RECEIVED.
func CreateTestMessage(t *testing.T, db *gorm.DB, userID, rawText string) *models.IncomingMessage {
	t.Helper()

	msg := &models.IncomingMessage{
		UserID:      userID,
		RawText:     rawText,
		SenderPhone: fmt.Sprintf("5215500%06d", nextID()),
		ReceivedAt:  time.Now(),
		State:       models.MessageStateReceived,
	}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("failed to create test message: %v", err)
	}
	return msg
}
