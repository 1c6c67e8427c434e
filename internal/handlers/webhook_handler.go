package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finanzas/internal/config"
	apperrors "finanzas/internal/errors"
	"finanzas/internal/logger"
	"finanzas/internal/services"
)

// WebhookHandler receives inbound WhatsApp traffic. This is the entry point
// of the message pipeline: the webhook resolves the sender, persists the
// message and processes it synchronously so the reply can ride back on the
// HTTP response.
type WebhookHandler struct {
	userService    services.UserServicer
	messageService services.MessageServicer
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(userService services.UserServicer, messageService services.MessageServicer) *WebhookHandler {
	return &WebhookHandler{
		userService:    userService,
		messageService: messageService,
	}
}

// InboundMessageRequest represents one inbound message from the WhatsApp
// provider. The sender comes in provider format ("whatsapp:+14155238886" or
// similar) and is normalized before lookup.
type InboundMessageRequest struct {
	From      string `json:"from" binding:"required"`
	Text      string `json:"text" binding:"required,max=500"`
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
}

// Verify answers the provider's webhook verification handshake. The provider
// sends hub.mode, hub.verify_token and hub.challenge; a matching token is
// answered with the raw challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == config.Get().WhatsappVerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}

	logger.Get().Warnw("webhook verification rejected", "mode", mode)
	c.JSON(http.StatusForbidden, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrForbidden.Code,
			"message": "Verification token mismatch",
		},
	})
}

// Receive ingests one inbound message and runs it through the pipeline.
// Unknown senders get 200 with no reply so the provider does not retry;
// everything the provider redelivers for a known sender becomes a new message
// row and a new movement, so the provider must deduplicate on its side.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var req InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.GetUserByPhone(req.From)
	if err != nil {
		if apperrors.Code(err) == apperrors.ErrUserNotFound.Code {
			logger.Get().Infow("message from unknown sender ignored", "from", services.CleanPhoneNumber(req.From))
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		respondWithError(c, err)
		return
	}

	msg, err := h.messageService.IngestMessage(user.ID, services.CleanPhoneNumber(req.From), req.Text)
	if err != nil {
		respondWithError(c, err)
		return
	}

	// Synchronous processing; the drainer only covers messages this call
	// never got to.
	h.messageService.ProcessSingleMessage(msg)

	response := gin.H{
		"status":  "processed",
		"message": h.messageService.ToSummary(msg),
	}
	if msg.BotReply != nil {
		response["reply"] = *msg.BotReply
	}
	c.JSON(http.StatusOK, response)
}
