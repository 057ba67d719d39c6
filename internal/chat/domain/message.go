package domain

import (
	"strings"
	"time"

	errprocess "live_chat_service/pkg/err"
)

// Message 表示一則聊天訊息, read_at null = unread
type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       UserID     `json:"sender_id"`
	Content        string     `json:"content"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewMessage validate and build an unsent message for conv. The sender
// must be a participant and the content must be non-empty and within
// maxLength runes.
func NewMessage(conv *Conversation, sender UserID, content string, maxLength int) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errprocess.Validation("message content is required")
	}
	if maxLength > 0 && len([]rune(content)) > maxLength {
		return nil, errprocess.Validation("message content exceeds max length")
	}
	if !conv.IncludesUser(sender) {
		return nil, errprocess.Forbidden("sender is not part of this conversation")
	}

	return &Message{
		ConversationID: conv.ID,
		SenderID:       sender,
		Content:        content,
	}, nil
}

// IsRead check if the message has been read
func (m *Message) IsRead() bool { return m.ReadAt != nil }

// IsReadBy check if the message counts as read for a specific user.
// The sender always reads their own messages.
func (m *Message) IsReadBy(u UserID) bool {
	if m.SenderID == u {
		return true
	}
	return m.IsRead()
}
