package services

import (
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"finanzas/internal/models"
	"finanzas/internal/pagination"
	"finanzas/internal/parser"
	"finanzas/internal/testutil"
)

func newMessagePipeline(db *gorm.DB) MessageServicer {
	accounts := NewAccountService(db)
	categories := NewCategoryService(db)
	transactions := NewTransactionService(db, accounts)
	return NewMessageService(db, categories, accounts, transactions)
}

func reloadMessage(t *testing.T, db *gorm.DB, id string) *models.IncomingMessage {
	t.Helper()
	var msg models.IncomingMessage
	if err := db.First(&msg, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload message: %v", err)
	}
	return &msg
}

func countTransactions(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count transactions: %v", err)
	}
	return count
}

func TestIngestMessage(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)

		msg, err := svc.IngestMessage(user.ID, user.PhoneNumber, "gasto 10 Cafe")
		testutil.AssertNoError(t, err)

		if msg.State != models.MessageStateReceived {
			t.Errorf("expected state RECEIVED, got %s", msg.State)
		}
		if msg.RawText != "gasto 10 Cafe" {
			t.Errorf("unexpected raw text %q", msg.RawText)
		}
		if msg.ReceivedAt.IsZero() {
			t.Error("expected received_at to be set")
		}
	})

	t.Run("empty_text", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.IngestMessage(user.ID, user.PhoneNumber, "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("text_too_long", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.IngestMessage(user.ID, user.PhoneNumber, strings.Repeat("a", 501))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestProcessSingleMessage(t *testing.T) {
	t.Run("completed_with_named_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithName(t, db, user.ID, "Cuenta Principal")

		msg := testutil.CreateTestMessage(t, db, user.ID, "gasto 12.50 Cafe en Cuenta Principal")
		svc.ProcessSingleMessage(msg)

		got := reloadMessage(t, db, msg.ID)
		if got.State != models.MessageStateCompleted {
			t.Fatalf("expected state COMPLETED, got %s (error: %v)", got.State, got.ErrorText)
		}
		if got.TransactionID == nil {
			t.Fatal("expected transaction ID on completed message")
		}
		if got.ProcessedAt == nil {
			t.Error("expected processed_at to be set")
		}
		if got.BotReply == nil || *got.BotReply != "Movimiento de 12.50 en categoría Cafe registrado exitosamente." {
			t.Errorf("unexpected bot reply: %v", got.BotReply)
		}

		var tx models.Transaction
		if err := db.First(&tx, "id = ?", *got.TransactionID).Error; err != nil {
			t.Fatalf("failed to load transaction: %v", err)
		}
		if tx.AmountCents != 1250 {
			t.Errorf("expected 1250 cents, got %d", tx.AmountCents)
		}
		if tx.Type != models.TransactionTypeExpense {
			t.Errorf("expected expense, got %s", tx.Type)
		}
		if tx.AccountID != account.ID {
			t.Errorf("expected account %s, got %s", account.ID, tx.AccountID)
		}
		if tx.Description != parser.DefaultDescription {
			t.Errorf("expected default description, got %q", tx.Description)
		}
		if diff := tx.Date.Sub(msg.ReceivedAt); diff < -time.Second || diff > time.Second {
			t.Errorf("expected movement date %v, got %v", msg.ReceivedAt, tx.Date)
		}

		// The category was auto-created with the movement's type.
		var category models.Category
		if err := db.First(&category, "id = ?", *tx.CategoryID).Error; err != nil {
			t.Fatalf("failed to load category: %v", err)
		}
		if category.Name != "Cafe" {
			t.Errorf("expected category Cafe, got %s", category.Name)
		}
		if category.Type != models.CategoryTypeExpense {
			t.Errorf("expected expense category, got %s", category.Type)
		}

		// The account balance absorbed the expense.
		var acc models.Account
		if err := db.First(&acc, "id = ?", account.ID).Error; err != nil {
			t.Fatalf("failed to load account: %v", err)
		}
		if acc.BalanceCents != -1250 {
			t.Errorf("expected balance -1250, got %d", acc.BalanceCents)
		}
	})

	t.Run("default_account_is_oldest", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)
		first := testutil.CreateTestAccountWithName(t, db, user.ID, "Primera")
		testutil.CreateTestAccountWithName(t, db, user.ID, "Segunda")

		msg := testutil.CreateTestMessage(t, db, user.ID, "ingreso 1500 Salario")
		svc.ProcessSingleMessage(msg)

		got := reloadMessage(t, db, msg.ID)
		if got.State != models.MessageStateCompleted {
			t.Fatalf("expected state COMPLETED, got %s", got.State)
		}

		var tx models.Transaction
		if err := db.First(&tx, "id = ?", *got.TransactionID).Error; err != nil {
			t.Fatalf("failed to load transaction: %v", err)
		}
		if tx.AccountID != first.ID {
			t.Errorf("expected movement on oldest account %s, got %s", first.ID, tx.AccountID)
		}
		if tx.Type != models.TransactionTypeIncome {
			t.Errorf("expected income, got %s", tx.Type)
		}
	})

	t.Run("reuses_existing_category_case_insensitive", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestAccount(t, db, user.ID)
		existing := testutil.CreateTestCategory(t, db, user.ID, "CAFE", models.CategoryTypeExpense)

		msg := testutil.CreateTestMessage(t, db, user.ID, "gasto 10 cafe")
		svc.ProcessSingleMessage(msg)

		got := reloadMessage(t, db, msg.ID)
		if got.State != models.MessageStateCompleted {
			t.Fatalf("expected state COMPLETED, got %s", got.State)
		}

		var tx models.Transaction
		if err := db.First(&tx, "id = ?", *got.TransactionID).Error; err != nil {
			t.Fatalf("failed to load transaction: %v", err)
		}
		if tx.CategoryID == nil || *tx.CategoryID != existing.ID {
			t.Errorf("expected existing category %s, got %v", existing.ID, tx.CategoryID)
		}

		var count int64
		db.Model(&models.Category{}).Where("user_id = ?", user.ID).Count(&count)
		if count != 1 {
			t.Errorf("expected 1 category, got %d", count)
		}
	})

	t.Run("unknown_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestAccountWithName(t, db, user.ID, "Cuenta Principal")

		msg := testutil.CreateTestMessage(t, db, user.ID, "gasto 100 Comida en Inexistente")
		svc.ProcessSingleMessage(msg)

		got := reloadMessage(t, db, msg.ID)
		if got.State != models.MessageStateError {
			t.Fatalf("expected state ERROR, got %s", got.State)
		}
		if got.ErrorText == nil || *got.ErrorText != "La cuenta 'Inexistente' no fue encontrada." {
			t.Errorf("unexpected error text: %v", got.ErrorText)
		}
		if got.BotReply == nil || *got.BotReply != "Hubo un error: La cuenta 'Inexistente' no fue encontrada." {
			t.Errorf("unexpected bot reply: %v", got.BotReply)
		}
		if got.TransactionID != nil {
			t.Error("expected no transaction on failed message")
		}
		if countTransactions(t, db, user.ID) != 0 {
			t.Error("expected no transactions persisted")
		}
	})

	t.Run("no_accounts_configured", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)

		msg := testutil.CreateTestMessage(t, db, user.ID, "gasto 10 Cafe")
		svc.ProcessSingleMessage(msg)

		got := reloadMessage(t, db, msg.ID)
		if got.State != models.MessageStateError {
			t.Fatalf("expected state ERROR, got %s", got.State)
		}
		if got.ErrorText == nil || *got.ErrorText != "No tienes cuentas configuradas. Por favor, crea una primero." {
			t.Errorf("unexpected error text: %v", got.ErrorText)
		}
	})

	t.Run("unparseable_text", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestAccount(t, db, user.ID)

		msg := testutil.CreateTestMessage(t, db, user.ID, "hola como estas")
		svc.ProcessSingleMessage(msg)

		got := reloadMessage(t, db, msg.ID)
		if got.State != models.MessageStateError {
			t.Fatalf("expected state ERROR, got %s", got.State)
		}
		if got.ParsedType != nil {
			t.Error("expected no parsed type on unparseable message")
		}
		if got.ErrorText == nil || !strings.Contains(*got.ErrorText, "El formato del mensaje no es válido") {
			t.Errorf("unexpected error text: %v", got.ErrorText)
		}
		if countTransactions(t, db, user.ID) != 0 {
			t.Error("expected no transactions persisted")
		}
	})

	t.Run("movement_date_is_message_receipt", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestAccount(t, db, user.ID)

		// Backdate the receipt so it is distinguishable from processing time.
		msg := testutil.CreateTestMessage(t, db, user.ID, "gasto 10 Cafe")
		receivedAt := msg.ReceivedAt.Add(-48 * time.Hour)
		msg.ReceivedAt = receivedAt
		if err := db.Model(msg).Update("received_at", receivedAt).Error; err != nil {
			t.Fatalf("failed to backdate message: %v", err)
		}

		svc.ProcessSingleMessage(msg)

		got := reloadMessage(t, db, msg.ID)
		if got.State != models.MessageStateCompleted {
			t.Fatalf("expected state COMPLETED, got %s", got.State)
		}

		var tx models.Transaction
		if err := db.First(&tx, "id = ?", *got.TransactionID).Error; err != nil {
			t.Fatalf("failed to load transaction: %v", err)
		}
		if diff := tx.Date.Sub(receivedAt); diff < -time.Second || diff > time.Second {
			t.Errorf("expected movement date %v, got %v", receivedAt, tx.Date)
		}
	})

	t.Run("panic_still_ends_in_persisted_error", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		accounts := NewAccountService(db)
		categories := NewCategoryService(db)
		svc := NewMessageService(db, categories, accounts, panickingTransactions{})
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestAccount(t, db, user.ID)

		msg := testutil.CreateTestMessage(t, db, user.ID, "gasto 10 Cafe")
		svc.ProcessSingleMessage(msg)

		got := reloadMessage(t, db, msg.ID)
		if got.State != models.MessageStateError {
			t.Fatalf("expected state ERROR after panic, got %s", got.State)
		}
		if got.BotReply == nil || !strings.HasPrefix(*got.BotReply, "Hubo un error: ") {
			t.Errorf("expected error reply, got %v", got.BotReply)
		}
		if got.ErrorText == nil || !strings.Contains(*got.ErrorText, "panic") {
			t.Errorf("expected panic error text, got %v", got.ErrorText)
		}
		if got.TransactionID != nil {
			t.Error("expected no transaction on panicked message")
		}
	})

	t.Run("terminal_message_not_reprocessed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestAccount(t, db, user.ID)

		msg := testutil.CreateTestMessage(t, db, user.ID, "gasto 10 Cafe")
		if err := db.Model(msg).Update("state", models.MessageStateError).Error; err != nil {
			t.Fatalf("failed to set state: %v", err)
		}

		stale := *msg
		stale.State = models.MessageStateReceived
		svc.ProcessSingleMessage(&stale)

		got := reloadMessage(t, db, msg.ID)
		if got.State != models.MessageStateError {
			t.Errorf("expected state to remain ERROR, got %s", got.State)
		}
		if countTransactions(t, db, user.ID) != 0 {
			t.Error("expected no transactions from skipped message")
		}
	})

	t.Run("second_claim_loses", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestAccount(t, db, user.ID)

		msg := testutil.CreateTestMessage(t, db, user.ID, "gasto 10 Cafe")

		// First caller wins and completes; a second caller holding a stale
		// RECEIVED copy must lose the claim and create nothing.
		svc.ProcessSingleMessage(msg)
		stale := reloadMessage(t, db, msg.ID)
		stale.State = models.MessageStateReceived
		svc.ProcessSingleMessage(stale)

		if n := countTransactions(t, db, user.ID); n != 1 {
			t.Errorf("expected exactly 1 transaction, got %d", n)
		}
	})
}

// panickingTransactions stubs TransactionServicer to simulate an unexpected
// failure inside materialization.
type panickingTransactions struct{}

func (panickingTransactions) CreateTransaction(string, string, *string, models.TransactionType, int64, string, time.Time) (*models.Transaction, error) {
	panic("materializer blew up")
}
func (panickingTransactions) GetUserTransactions(string, pagination.PageRequest, TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	return nil, nil
}
func (panickingTransactions) GetTransactionByID(string, string) (*models.Transaction, error) {
	return nil, nil
}

type textError string

func (e textError) Error() string { return string(e) }

func TestErrorText(t *testing.T) {
	t.Run("short_message_passes_through", func(t *testing.T) {
		if got := errorText(textError("boom")); got != "boom" {
			t.Errorf("expected 'boom', got %q", got)
		}
	})

	t.Run("overlong_message_replaced", func(t *testing.T) {
		long := textError(strings.Repeat("x", 300))
		if got := errorText(long); got != internalErrorText {
			t.Errorf("expected generic internal text, got %q", got)
		}
	})

	t.Run("boundary_255_kept", func(t *testing.T) {
		exact := strings.Repeat("y", 255)
		if got := errorText(textError(exact)); got != exact {
			t.Errorf("expected 255-char message to be kept, got %d chars", len(got))
		}
	})
}

func TestDrainPending(t *testing.T) {
	t.Run("processes_all_received_oldest_first", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestAccount(t, db, user.ID)

		ok1 := testutil.CreateTestMessage(t, db, user.ID, "gasto 10 Cafe")
		bad := testutil.CreateTestMessage(t, db, user.ID, "mensaje sin sentido alguno")
		ok2 := testutil.CreateTestMessage(t, db, user.ID, "ingreso 20 Ventas")

		svc.DrainPending()

		if got := reloadMessage(t, db, ok1.ID); got.State != models.MessageStateCompleted {
			t.Errorf("expected first message COMPLETED, got %s", got.State)
		}
		if got := reloadMessage(t, db, bad.ID); got.State != models.MessageStateError {
			t.Errorf("expected bad message ERROR, got %s", got.State)
		}
		if got := reloadMessage(t, db, ok2.ID); got.State != models.MessageStateCompleted {
			t.Errorf("expected last message COMPLETED, got %s", got.State)
		}

		var remaining int64
		db.Model(&models.IncomingMessage{}).Where("state = ?", models.MessageStateReceived).Count(&remaining)
		if remaining != 0 {
			t.Errorf("expected no RECEIVED messages after drain, got %d", remaining)
		}
		if n := countTransactions(t, db, user.ID); n != 2 {
			t.Errorf("expected 2 transactions, got %d", n)
		}
	})

	t.Run("empty_backlog_is_noop", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)

		svc.DrainPending()
	})
}

func TestGetUserMessages(t *testing.T) {
	t.Run("newest_first_and_scoped_to_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newMessagePipeline(db)
		user1 := testutil.CreateTestUser(t, db)
		user2 := testutil.CreateTestUser(t, db)

		old := testutil.CreateTestMessage(t, db, user1.ID, "gasto 10 Cafe")
		recent := testutil.CreateTestMessage(t, db, user1.ID, "gasto 20 Cafe")
		testutil.CreateTestMessage(t, db, user2.ID, "gasto 30 Cafe")

		// Force a clear ordering gap.
		db.Model(old).Update("received_at", old.ReceivedAt.Add(-time.Hour))

		result, err := svc.GetUserMessages(user1.ID, pagination.PageRequest{Page: 1, PageSize: 20})
		testutil.AssertNoError(t, err)

		if result.TotalItems != 2 {
			t.Fatalf("expected 2 messages, got %d", result.TotalItems)
		}
		if result.Data[0].ID != recent.ID {
			t.Errorf("expected newest message first")
		}
	})
}

func TestToSummary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newMessagePipeline(db)
	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestAccountWithName(t, db, user.ID, "Cuenta Principal")

	msg := testutil.CreateTestMessage(t, db, user.ID, "gasto 12.50 Cafe en Cuenta Principal")
	svc.ProcessSingleMessage(msg)

	summary := svc.ToSummary(msg)
	if summary.Amount == nil || *summary.Amount != "12.50" {
		t.Errorf("expected amount 12.50, got %v", summary.Amount)
	}
	if summary.Category == nil || *summary.Category != "Cafe" {
		t.Errorf("expected category Cafe, got %v", summary.Category)
	}
	if summary.Account == nil || *summary.Account != "Cuenta Principal" {
		t.Errorf("expected account 'Cuenta Principal', got %v", summary.Account)
	}
	if summary.State != models.MessageStateCompleted {
		t.Errorf("expected state COMPLETED, got %s", summary.State)
	}
}
