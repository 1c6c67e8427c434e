package models

import "time"

// MessageState is the processing state of an incoming message. The state only
// moves forward: RECEIVED -> PROCESSING -> {COMPLETED | ERROR}.
// NEEDS_INTERVENTION is a reserved terminal state for manual resolution; the
// pipeline never produces it but the schema accommodates it.
type MessageState string

const (
	MessageStateReceived          MessageState = "RECEIVED"
	MessageStateProcessing        MessageState = "PROCESSING"
	MessageStateCompleted         MessageState = "COMPLETED"
	MessageStateError             MessageState = "ERROR"
	MessageStateNeedsIntervention MessageState = "NEEDS_INTERVENTION"
)

// Terminal reports whether the pipeline does not automatically continue from
// this state.
func (s MessageState) Terminal() bool {
	switch s {
	case MessageStateCompleted, MessageStateError, MessageStateNeedsIntervention:
		return true
	}
	return false
}

// IncomingMessage is one inbound WhatsApp text. RawText, SenderPhone, UserID
// and ReceivedAt are immutable after creation; everything else is written by
// the processing pipeline. TransactionID is set if and only if the message
// reached COMPLETED.
type IncomingMessage struct {
	Base
	UserID      string       `gorm:"type:uuid;not null;index" json:"user_id"`
	RawText     string       `gorm:"size:500;not null" json:"raw_text"`
	SenderPhone string       `gorm:"size:32;not null" json:"sender_phone"`
	ReceivedAt  time.Time    `gorm:"not null" json:"received_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
	State       MessageState `gorm:"size:32;not null;default:'RECEIVED';index" json:"state"`

	// Parsed fields, nil until the message has been parsed.
	ParsedType   *TransactionType `json:"parsed_type,omitempty"`
	AmountCents  *int64           `gorm:"type:bigint" json:"amount_cents,omitempty"`
	CategoryName *string          `gorm:"size:100" json:"category_name,omitempty"`
	AccountName  *string          `gorm:"size:100" json:"account_name,omitempty"`
	Description  *string          `gorm:"size:500" json:"description,omitempty"`

	BotReply      *string `gorm:"size:1000" json:"bot_reply,omitempty"`
	ErrorText     *string `gorm:"size:255" json:"error_text,omitempty"`
	TransactionID *string `gorm:"type:uuid" json:"transaction_id,omitempty"`

	User        User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Transaction *Transaction `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
}
