package app

import (
	"context"
	"time"

	"live_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockConversationRepository Mock ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

// GetOrCreate moke get or create conversation
func (m *MockConversationRepository) GetOrCreate(ctx context.Context, x, y domain.UserID) (*domain.Conversation, error) {
	args := m.Called(ctx, x, y)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// Find moke find conversation by pair
func (m *MockConversationRepository) Find(ctx context.Context, x, y domain.UserID) (*domain.Conversation, error) {
	args := m.Called(ctx, x, y)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByID moke find conversation by id
func (m *MockConversationRepository) FindByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListForUser moke list conversations for user
func (m *MockConversationRepository) ListForUser(ctx context.Context, u domain.UserID, page, perPage int) ([]domain.Conversation, int64, error) {
	args := m.Called(ctx, u, page, perPage)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

// TouchLastMessage moke touch last message time
func (m *MockConversationRepository) TouchLastMessage(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// Delete moke delete conversation
func (m *MockConversationRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Create moke insert message
func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// List moke list messages
func (m *MockMessageRepository) List(ctx context.Context, conversationID int64, page, perPage int) ([]domain.Message, int64, error) {
	args := m.Called(ctx, conversationID, page, perPage)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

// ListLatest moke list latest messages
func (m *MockMessageRepository) ListLatest(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkRead moke mark messages read
func (m *MockMessageRepository) MarkRead(ctx context.Context, conversationID int64, ids []int64, reader domain.UserID) ([]int64, time.Time, error) {
	args := m.Called(ctx, conversationID, ids, reader)
	if args.Get(0) != nil {
		return args.Get(0).([]int64), args.Get(1).(time.Time), args.Error(2)
	}
	return nil, args.Get(1).(time.Time), args.Error(2)
}

// MarkConversationRead moke mark whole conversation read
func (m *MockMessageRepository) MarkConversationRead(ctx context.Context, conversationID int64, reader domain.UserID) ([]int64, time.Time, error) {
	args := m.Called(ctx, conversationID, reader)
	if args.Get(0) != nil {
		return args.Get(0).([]int64), args.Get(1).(time.Time), args.Error(2)
	}
	return nil, args.Get(1).(time.Time), args.Error(2)
}

// UnreadCount moke unread count in conversation
func (m *MockMessageRepository) UnreadCount(ctx context.Context, conversationID int64, u domain.UserID) (int64, error) {
	args := m.Called(ctx, conversationID, u)
	return args.Get(0).(int64), args.Error(1)
}

// TotalUnreadCount moke unread count across conversations
func (m *MockMessageRepository) TotalUnreadCount(ctx context.Context, u domain.UserID) (int64, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(int64), args.Error(1)
}

// DeleteOlderThan moke retention delete
func (m *MockMessageRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserRepository Mock UserRepository
type MockUserRepository struct {
	mock.Mock
}

// Find moke find user by id
func (m *MockUserRepository) Find(ctx context.Context, id domain.UserID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockEventTransport Mock EventTransport
type MockEventTransport struct {
	mock.Mock
}

// Publish moke publish event to transport
func (m *MockEventTransport) Publish(ctx context.Context, channel string, ev domain.Event) error {
	args := m.Called(ctx, channel, ev)
	return args.Error(0)
}
