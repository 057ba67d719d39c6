package domain

import (
	"strings"
	"testing"
	"time"

	errprocess "live_chat_service/pkg/err"

	"github.com/stretchr/testify/assert"
)

func TestNewMessage(t *testing.T) {
	conv := &Conversation{ID: 1, UserAID: 3, UserBID: 7}

	msg, err := NewMessage(conv, 3, "hello", 5000)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), msg.ConversationID)
	assert.Equal(t, UserID(3), msg.SenderID)
	assert.Equal(t, "hello", msg.Content)
}

func TestNewMessage_EmptyContent(t *testing.T) {
	conv := &Conversation{ID: 1, UserAID: 3, UserBID: 7}

	_, err := NewMessage(conv, 3, "", 5000)
	assert.Equal(t, errprocess.CodeValidation, errprocess.CodeOf(err))

	// 全空白也視為空
	_, err = NewMessage(conv, 3, "   \n\t", 5000)
	assert.Equal(t, errprocess.CodeValidation, errprocess.CodeOf(err))
}

func TestNewMessage_TooLong(t *testing.T) {
	conv := &Conversation{ID: 1, UserAID: 3, UserBID: 7}

	_, err := NewMessage(conv, 3, strings.Repeat("a", 5001), 5000)
	assert.Equal(t, errprocess.CodeValidation, errprocess.CodeOf(err))

	// 長度以 rune 計,多位元組字元不會提早超限
	_, err = NewMessage(conv, 3, strings.Repeat("嗨", 5000), 5000)
	assert.NoError(t, err)
}

func TestNewMessage_NotParticipant(t *testing.T) {
	conv := &Conversation{ID: 1, UserAID: 3, UserBID: 7}

	_, err := NewMessage(conv, 9, "hello", 5000)
	assert.Equal(t, errprocess.CodeForbidden, errprocess.CodeOf(err))
}

func TestMessage_IsReadBy(t *testing.T) {
	now := time.Now()
	unread := &Message{ID: 1, ConversationID: 1, SenderID: 3}
	read := &Message{ID: 2, ConversationID: 1, SenderID: 3, ReadAt: &now}

	// 發送者永遠視為已讀自己的訊息
	assert.True(t, unread.IsReadBy(3))
	assert.False(t, unread.IsReadBy(7))

	assert.True(t, read.IsReadBy(3))
	assert.True(t, read.IsReadBy(7))

	assert.False(t, unread.IsRead())
	assert.True(t, read.IsRead())
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "chat.42", ConversationChannel("chat", 42))
	assert.Equal(t, "chat.user.7", UserChannel("chat", 7))
}

func TestEvent_SuppressesEcho(t *testing.T) {
	assert.True(t, Event{Kind: EventMessageCreated}.SuppressesEcho())
	assert.True(t, Event{Kind: EventTypingChanged}.SuppressesEcho())
	// 已讀回條連發送者的其他裝置都要看到
	assert.False(t, Event{Kind: EventMessageRead}.SuppressesEcho())
	assert.False(t, Event{Kind: EventConversationTouched}.SuppressesEcho())
}
