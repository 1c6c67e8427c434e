package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finanzas/internal/errors"
	"finanzas/internal/models"
	"finanzas/internal/pagination"
	"finanzas/internal/services"
)

// MessageHandler serves message history to users and the WhatsApp admin
// surface to operators.
type MessageHandler struct {
	messageService services.MessageServicer
	userService    services.UserServicer
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(messageService services.MessageServicer, userService services.UserServicer) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		userService:    userService,
	}
}

// TestMessageRequest represents an admin-injected message. It enters the
// pipeline exactly as if the webhook had delivered it for the given user.
type TestMessageRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Text   string `json:"text" binding:"required,max=500"`
}

func (h *MessageHandler) summaries(messages []models.IncomingMessage) []services.MessageSummary {
	result := make([]services.MessageSummary, 0, len(messages))
	for i := range messages {
		result = append(result, h.messageService.ToSummary(&messages[i]))
	}
	return result
}

// GetMyMessages returns the authenticated user's message history, newest
// first.
func (h *MessageHandler) GetMyMessages(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.messageService.GetUserMessages(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        h.summaries(result.Data),
		"page":        result.Page,
		"page_size":   result.PageSize,
		"total_items": result.TotalItems,
		"total_pages": result.TotalPages,
	})
}

// GetAllMessages returns all messages across users for operators.
func (h *MessageHandler) GetAllMessages(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.messageService.GetAllMessages(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetUserMessages returns one user's message history for operators.
func (h *MessageHandler) GetUserMessages(c *gin.Context) {
	userID, err := parsePathID(c, "user_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.messageService.GetUserMessages(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// InjectTestMessage runs an operator-supplied message through the full
// pipeline for a chosen user and returns the outcome.
func (h *MessageHandler) InjectTestMessage(c *gin.Context) {
	var req TestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.GetUserByID(req.UserID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	msg, err := h.messageService.IngestMessage(user.ID, user.PhoneNumber, req.Text)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.messageService.ProcessSingleMessage(msg)

	response := gin.H{"message": h.messageService.ToSummary(msg)}
	if msg.BotReply != nil {
		response["reply"] = *msg.BotReply
	}
	c.JSON(http.StatusOK, response)
}

// DrainPending triggers an immediate sweep of messages stuck in RECEIVED,
// without waiting for the next scheduled tick.
func (h *MessageHandler) DrainPending(c *gin.Context) {
	h.messageService.DrainPending()
	c.JSON(http.StatusOK, gin.H{"status": "drained"})
}
