package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"finanzas/internal/models"
	"finanzas/internal/services"
	"finanzas/internal/testutil"
	"finanzas/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func setupWebhookRouter(db *gorm.DB) *gin.Engine {
	userService := services.NewUserService(db)
	accountService := services.NewAccountService(db)
	categoryService := services.NewCategoryService(db)
	transactionService := services.NewTransactionService(db, accountService)
	messageService := services.NewMessageService(db, categoryService, accountService, transactionService)

	handler := NewWebhookHandler(userService, messageService)

	r := gin.New()
	r.GET("/api/webhook/whatsapp", handler.Verify)
	r.POST("/api/webhook/whatsapp", handler.Receive)
	return r
}

func TestWebhookVerify(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	router := setupWebhookRouter(db)

	t.Run("valid_token_echoes_challenge", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet,
			"/api/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=finanzas_webhook_token&hub.challenge=12345", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if w.Body.String() != "12345" {
			t.Errorf("expected challenge echo, got %q", w.Body.String())
		}
	})

	t.Run("wrong_token_rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet,
			"/api/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", w.Code)
		}
	})

	t.Run("wrong_mode_rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet,
			"/api/webhook/whatsapp?hub.mode=unsubscribe&hub.verify_token=finanzas_webhook_token&hub.challenge=12345", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", w.Code)
		}
	})
}

func TestWebhookReceive(t *testing.T) {
	t.Run("known_sender_processed_with_reply", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		router := setupWebhookRouter(db)

		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestAccountWithName(t, db, user.ID, "Cuenta Principal")

		body := `{"from": "whatsapp:+` + user.PhoneNumber + `", "text": "gasto 12.50 Cafe en Cuenta Principal"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/whatsapp", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Status string `json:"status"`
			Reply  string `json:"reply"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Status != "processed" {
			t.Errorf("expected status processed, got %q", resp.Status)
		}
		if resp.Reply != "Movimiento de 12.50 en categoría Cafe registrado exitosamente." {
			t.Errorf("unexpected reply: %q", resp.Reply)
		}

		var msg models.IncomingMessage
		if err := db.First(&msg, "user_id = ?", user.ID).Error; err != nil {
			t.Fatalf("failed to load message: %v", err)
		}
		if msg.State != models.MessageStateCompleted {
			t.Errorf("expected state COMPLETED, got %s", msg.State)
		}
	})

	t.Run("pipeline_error_still_returns_200", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		router := setupWebhookRouter(db)

		user := testutil.CreateTestUser(t, db)

		body := `{"from": "` + user.PhoneNumber + `", "text": "gasto 10 Cafe"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/whatsapp", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}

		var resp struct {
			Reply string `json:"reply"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !strings.HasPrefix(resp.Reply, "Hubo un error: ") {
			t.Errorf("expected error reply prefix, got %q", resp.Reply)
		}
	})

	t.Run("unknown_sender_ignored", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		router := setupWebhookRouter(db)

		body := `{"from": "whatsapp:+19990000000", "text": "gasto 10 Cafe"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/whatsapp", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for unknown sender, got %d", w.Code)
		}

		var resp struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Status != "ignored" {
			t.Errorf("expected status ignored, got %q", resp.Status)
		}

		var count int64
		db.Model(&models.IncomingMessage{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no messages persisted, got %d", count)
		}
	})

	t.Run("missing_text_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		router := setupWebhookRouter(db)

		body := `{"from": "whatsapp:+19990000000"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/whatsapp", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})
}
