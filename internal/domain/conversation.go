package domain

import (
	"fmt"
	"strings"
	"time"
)

// MessageDirection distinguishes panel-sent from customer-sent messages.
type MessageDirection string

const (
	DirectionIncoming MessageDirection = "INCOMING"
	DirectionOutgoing MessageDirection = "OUTGOING"
)

func (d MessageDirection) String() string { return string(d) }

func (d MessageDirection) IsValid() bool {
	switch d {
	case DirectionIncoming, DirectionOutgoing:
		return true
	}
	return false
}

// MessageStatus tracks the delivery state of a chat message.
type MessageStatus string

const (
	MessageStatusSent     MessageStatus = "SENT"
	MessageStatusReceived MessageStatus = "RECEIVED"
	MessageStatusRead     MessageStatus = "READ"
	MessageStatusFailed   MessageStatus = "FAILED"
)

func (s MessageStatus) String() string { return string(s) }

// Conversation groups all messages exchanged with one WhatsApp account.
type Conversation struct {
	ID              string
	WaID            string
	Name            string
	LastMessageText *string
	LastMessageAt   *time.Time
	UnreadCount     int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (c *Conversation) Validate() error {
	if strings.TrimSpace(c.WaID) == "" {
		return fmt.Errorf("%w: wa id is required", ErrValidation)
	}
	return nil
}

// Message is a single text message inside a conversation. Only text is
// supported for now.
type Message struct {
	ID                string
	ConversationID    string
	Direction         MessageDirection
	Type              string
	Text              string
	WaID              *string
	Status            MessageStatus
	ProviderMessageID *string
	Timestamp         time.Time
	CreatedAt         time.Time
}
