package domain

import (
	"fmt"
	"time"
)

// EventKind realtime event type
type EventKind string

const (
	// EventMessageCreated a message was persisted into a conversation
	EventMessageCreated EventKind = "message_created"
	// EventMessageRead a set of messages was stamped read
	EventMessageRead EventKind = "message_read"
	// EventTypingChanged transient typing signal, never persisted
	EventTypingChanged EventKind = "typing_changed"
	// EventConversationTouched last_message_at moved, sent to personal
	// channels so open conversation lists can re-sort
	EventConversationTouched EventKind = "conversation_touched"
)

// Event envelope fanned out on conversation and personal channels
type Event struct {
	Kind           EventKind `json:"kind"`
	ConversationID int64     `json:"conversation_id,omitempty"`

	// OriginConn connection that caused the event, used for echo
	// suppression only and never serialized
	OriginConn string `json:"-"`

	// message_created
	Message *Message `json:"message,omitempty"`

	// message_read
	MessageIDs []int64    `json:"message_ids,omitempty"`
	ReaderID   UserID     `json:"reader_id,omitempty"`
	ReadAt     *time.Time `json:"read_at,omitempty"`

	// typing_changed
	UserID   UserID `json:"user_id,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`

	// conversation_touched
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// SuppressesEcho message and typing events skip their originator, read
// receipts reach every subscriber including the marker's own sessions
func (e Event) SuppressesEcho() bool {
	return e.Kind == EventMessageCreated || e.Kind == EventTypingChanged
}

// ConversationChannel topic name for a conversation, {prefix}.{id}
func ConversationChannel(prefix string, conversationID int64) string {
	return fmt.Sprintf("%s.%d", prefix, conversationID)
}

// UserChannel personal topic name for a user, {prefix}.user.{id}
func UserChannel(prefix string, u UserID) string {
	return fmt.Sprintf("%s.user.%d", prefix, u)
}
