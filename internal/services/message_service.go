package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "finanzas/internal/errors"
	"finanzas/internal/logger"
	"finanzas/internal/models"
	"finanzas/internal/pagination"
	"finanzas/internal/parser"
)

// errorTextLimit caps the persisted error text. Failures whose message does
// not fit are replaced by a generic text rather than truncated mid-sentence.
const errorTextLimit = 255

const internalErrorText = "Error interno al procesar el mensaje."

// messageService runs the message-to-movement pipeline: parse, resolve,
// materialize, finalize. Each stage's result is accumulated in an outcome
// value; the message row is written exactly twice per attempt: once to claim
// it (RECEIVED -> PROCESSING) and once to record the terminal outcome.
type messageService struct {
	db           *gorm.DB
	categories   CategoryServicer
	accounts     AccountServicer
	transactions TransactionServicer
}

// NewMessageService creates a new MessageServicer.
func NewMessageService(db *gorm.DB, categories CategoryServicer, accounts AccountServicer, transactions TransactionServicer) MessageServicer {
	return &messageService{
		db:           db,
		categories:   categories,
		accounts:     accounts,
		transactions: transactions,
	}
}

// IngestMessage persists a new message in state RECEIVED. The caller has
// already resolved the sender's phone number to a user.
func (s *messageService) IngestMessage(userID, senderPhone, rawText string) (*models.IncomingMessage, error) {
	if rawText == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "message text is required")
	}
	if len(rawText) > 500 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "message text exceeds 500 characters")
	}

	msg := &models.IncomingMessage{
		UserID:      userID,
		RawText:     rawText,
		SenderPhone: senderPhone,
		ReceivedAt:  time.Now(),
		State:       models.MessageStateReceived,
	}

	if err := s.db.Create(msg).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return msg, nil
}

// pipelineOutcome carries the results of the pipeline stages to finalize.
// Exactly one of transaction/err is set.
type pipelineOutcome struct {
	intent      *parser.Intent
	category    *models.Category
	transaction *models.Transaction
	err         error
}

// ProcessSingleMessage runs the full pipeline on one message. It is safe to
// call concurrently with the drainer and safe to call on messages in any
// state: the RECEIVED -> PROCESSING transition is a single conditional update
// and whoever wins it owns the message; everyone else returns without side
// effects. The message always ends in a persisted terminal state; no parse,
// resolution, persistence failure or panic escapes this method.
func (s *messageService) ProcessSingleMessage(msg *models.IncomingMessage) {
	log := logger.Get()

	claim := s.db.Model(&models.IncomingMessage{}).
		Where("id = ? AND state = ?", msg.ID, models.MessageStateReceived).
		Update("state", models.MessageStateProcessing)
	if claim.Error != nil {
		log.Errorw("failed to claim message", "message_id", msg.ID, "error", claim.Error)
		return
	}
	if claim.RowsAffected == 0 {
		// Another caller owns it, or it is already terminal.
		log.Debugw("message not in RECEIVED state, skipping", "message_id", msg.ID, "state", msg.State)
		return
	}
	msg.State = models.MessageStateProcessing

	log.Infow("processing message", "message_id", msg.ID, "user_id", msg.UserID)
	s.finalize(msg, s.runPipeline(msg))
}

// runPipeline executes parse -> resolve -> materialize and never lets a
// failure escape: errors and panics both come back inside the outcome.
func (s *messageService) runPipeline(msg *models.IncomingMessage) (out pipelineOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get().Errorw("panic while processing message", "message_id", msg.ID, "panic", r)
			out.err = fmt.Errorf("panic: %v", r)
		}
	}()

	intent, err := parser.Parse(msg.RawText)
	if err != nil {
		out.err = err
		return out
	}
	out.intent = intent

	category, err := s.categories.CreateCategoryIfAbsent(msg.UserID, intent.Category, models.CategoryTypeFor(intent.Type))
	if err != nil {
		out.err = err
		return out
	}
	out.category = category

	account, err := s.resolveAccount(msg.UserID, intent)
	if err != nil {
		out.err = err
		return out
	}

	// Movement date is when the message arrived, not when it was processed:
	// that is the financial event's time from the user's perspective.
	transaction, err := s.transactions.CreateTransaction(
		msg.UserID, account.ID, &category.ID,
		intent.Type, intent.AmountCents, intent.Description, msg.ReceivedAt)
	if err != nil {
		out.err = err
		return out
	}
	out.transaction = transaction
	return out
}

// resolveAccount maps the intent's account clause to one of the user's
// accounts. Accounts are never auto-created; a miss is terminal for the
// message and answered with the missing name.
func (s *messageService) resolveAccount(userID string, intent *parser.Intent) (*models.Account, error) {
	if intent.Account == "" {
		return s.accounts.GetDefaultAccount(userID)
	}

	account, err := s.accounts.FindAccountByName(userID, intent.Account)
	if err != nil {
		if apperrors.Code(err) == apperrors.ErrAccountNotFound.Code {
			return nil, apperrors.WithMessage(apperrors.ErrAccountNotFound,
				fmt.Sprintf("La cuenta '%s' no fue encontrada.", intent.Account))
		}
		return nil, err
	}
	return account, nil
}

// finalize applies the outcome to the message and persists it once. This is
// the only write after the claim, so a crash anywhere in the pipeline leaves
// the message visibly in PROCESSING instead of half-updated.
func (s *messageService) finalize(msg *models.IncomingMessage, out pipelineOutcome) {
	now := time.Now()
	msg.ProcessedAt = &now

	if out.intent != nil {
		msg.ParsedType = &out.intent.Type
		msg.AmountCents = &out.intent.AmountCents
		msg.CategoryName = &out.intent.Category
		if out.intent.Account != "" {
			msg.AccountName = &out.intent.Account
		}
		msg.Description = &out.intent.Description
	}

	if out.err == nil {
		msg.State = models.MessageStateCompleted
		msg.TransactionID = &out.transaction.ID
		reply := fmt.Sprintf("Movimiento de %s en categoría %s registrado exitosamente.",
			models.FormatAmount(out.intent.AmountCents), out.category.Name)
		msg.BotReply = &reply
		logger.Get().Infow("message processed", "message_id", msg.ID, "transaction_id", out.transaction.ID)
	} else {
		msg.State = models.MessageStateError
		msg.TransactionID = nil
		errText := errorText(out.err)
		msg.ErrorText = &errText
		reply := "Hubo un error: " + errText
		msg.BotReply = &reply
		logger.Get().Warnw("message failed", "message_id", msg.ID, "error", out.err)
	}

	if err := s.db.Save(msg).Error; err != nil {
		logger.Get().Errorw("failed to persist message outcome",
			"message_id", msg.ID, "state", msg.State, "error", err)
	}
}

// errorText renders a pipeline failure for the error column and the bot
// reply. Messages that do not fit the column are replaced by a generic text.
func errorText(err error) string {
	text := err.Error()
	if text == "" || len(text) > errorTextLimit {
		return internalErrorText
	}
	return text
}

// DrainPending fetches every message still in RECEIVED, oldest first, and
// runs each one through the pipeline sequentially. One message's failure
// never aborts the batch: ProcessSingleMessage converts all failures into
// the message's own ERROR state.
func (s *messageService) DrainPending() {
	var pending []models.IncomingMessage
	if err := s.db.Where("state = ?", models.MessageStateReceived).
		Order("received_at ASC").
		Find(&pending).Error; err != nil {
		logger.Get().Errorw("failed to fetch pending messages", "error", err)
		return
	}

	if len(pending) == 0 {
		return
	}

	logger.Get().Infow("draining pending messages", "count", len(pending))
	for i := range pending {
		s.ProcessSingleMessage(&pending[i])
	}
}

// GetUserMessages retrieves a user's message history, newest first.
func (s *messageService) GetUserMessages(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.IncomingMessage], error) {
	page.Defaults()

	base := s.db.Model(&models.IncomingMessage{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var messages []models.IncomingMessage
	if err := base.Scopes(pagination.Paginate(page)).
		Order("received_at DESC").
		Find(&messages).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(messages, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetAllMessages retrieves all messages across users, newest first.
func (s *messageService) GetAllMessages(page pagination.PageRequest) (*pagination.PageResponse[models.IncomingMessage], error) {
	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.IncomingMessage{}).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var messages []models.IncomingMessage
	if err := s.db.Model(&models.IncomingMessage{}).
		Scopes(pagination.Paginate(page)).
		Order("received_at DESC").
		Find(&messages).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(messages, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ToSummary converts a message into its read-only listing projection.
func (s *messageService) ToSummary(msg *models.IncomingMessage) MessageSummary {
	summary := MessageSummary{
		ID:         msg.ID,
		RawText:    msg.RawText,
		ParsedType: msg.ParsedType,
		Category:   msg.CategoryName,
		Account:    msg.AccountName,
		State:      msg.State,
		BotReply:   msg.BotReply,
		ReceivedAt: msg.ReceivedAt,
	}
	if msg.AmountCents != nil {
		amount := models.FormatAmount(*msg.AmountCents)
		summary.Amount = &amount
	}
	return summary
}
