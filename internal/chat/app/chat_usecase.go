package app

import (
	"context"
	"time"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/internal/chat/repository"
	errprocess "live_chat_service/pkg/err"
	"live_chat_service/pkg/logger"

	"go.uber.org/zap"
)

const (
	readRetryCount    = 3
	readRetryInterval = 200 * time.Millisecond
)

// ChatUseCase definition chat business operations: conversations,
// messages, read receipts, typing, unread totals. Every operation is
// authorized against the acting user, writes publish their events only
// after the store confirms them.
type ChatUseCase interface {
	GetOrCreateConversation(ctx context.Context, actor, other domain.UserID) (*domain.Conversation, error)
	FindConversation(ctx context.Context, actor, other domain.UserID) (*domain.Conversation, error)
	GetConversation(ctx context.Context, actor domain.UserID, conversationID int64) (*domain.Conversation, error)
	ListConversations(ctx context.Context, actor domain.UserID, page int) ([]domain.Conversation, int64, error)
	DeleteConversation(ctx context.Context, actor domain.UserID, conversationID int64) error

	SendMessage(ctx context.Context, actor domain.UserID, conversationID int64, content, originConn string) (*domain.Message, error)
	ListMessages(ctx context.Context, actor domain.UserID, conversationID int64, page int) ([]domain.Message, int64, error)
	ListLatestMessages(ctx context.Context, actor domain.UserID, conversationID int64, limit int) ([]domain.Message, error)

	MarkAsRead(ctx context.Context, actor domain.UserID, conversationID int64, messageIDs []int64) ([]int64, error)
	MarkConversationAsRead(ctx context.Context, actor domain.UserID, conversationID int64) ([]int64, error)
	BroadcastTyping(ctx context.Context, actor domain.UserID, conversationID int64, isTyping bool, originConn string) error

	UnreadCount(ctx context.Context, actor domain.UserID, conversationID int64) (int64, error)
	TotalUnreadCount(ctx context.Context, actor domain.UserID) (int64, error)

	FindUser(ctx context.Context, id domain.UserID) (*domain.User, error)
}

type chatUseCase struct {
	convRepo   repository.ConversationRepository
	msgRepo    repository.MessageRepository
	userRepo   repository.UserRepository
	engine     *DeliveryEngine
	authorizer *ChannelAuthorizer

	maxContentLength     int
	messagesPerPage      int
	conversationsPerPage int
}

// ChatUseCaseConfig tunables for the chat use case
type ChatUseCaseConfig struct {
	MaxContentLength     int
	MessagesPerPage      int
	ConversationsPerPage int
}

// NewChatUseCase create a ChatUseCase
func NewChatUseCase(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	engine *DeliveryEngine,
	authorizer *ChannelAuthorizer,
	cfg ChatUseCaseConfig,
) ChatUseCase {
	return &chatUseCase{
		convRepo:             convRepo,
		msgRepo:              msgRepo,
		userRepo:             userRepo,
		engine:               engine,
		authorizer:           authorizer,
		maxContentLength:     cfg.MaxContentLength,
		messagesPerPage:      cfg.MessagesPerPage,
		conversationsPerPage: cfg.ConversationsPerPage,
	}
}

// retryRead rerun transient-failure reads a few times before giving
// up. Only unavailability retries; domain errors surface immediately.
func retryRead[T any](ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	var out T
	var err error
	for i := 0; i < readRetryCount; i++ {
		out, err = op(ctx)
		if err == nil || errprocess.CodeOf(err) != errprocess.CodeUnavailable {
			return out, err
		}
		logger.Log.Warn("read failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return out, errprocess.Unavailable("read canceled", ctx.Err())
		case <-time.After(readRetryInterval):
		}
	}
	return out, err
}

// authorizedConversation load the conversation and check the actor is
// one of its two participants
func (uc *chatUseCase) authorizedConversation(ctx context.Context, actor domain.UserID, conversationID int64) (*domain.Conversation, error) {
	conv, err := uc.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !uc.authorizer.CanAccess(conv, actor) {
		return nil, errprocess.Forbidden("user is not a participant of this conversation")
	}
	return conv, nil
}

func (uc *chatUseCase) GetOrCreateConversation(ctx context.Context, actor, other domain.UserID) (*domain.Conversation, error) {
	if !actor.Valid() {
		return nil, errprocess.Validation("invalid acting user id")
	}
	return uc.convRepo.GetOrCreate(ctx, actor, other)
}

func (uc *chatUseCase) FindConversation(ctx context.Context, actor, other domain.UserID) (*domain.Conversation, error) {
	return retryRead(ctx, func(ctx context.Context) (*domain.Conversation, error) {
		return uc.convRepo.Find(ctx, actor, other)
	})
}

func (uc *chatUseCase) GetConversation(ctx context.Context, actor domain.UserID, conversationID int64) (*domain.Conversation, error) {
	return retryRead(ctx, func(ctx context.Context) (*domain.Conversation, error) {
		return uc.authorizedConversation(ctx, actor, conversationID)
	})
}

// page one page of repository results, lets retryRead carry the total
// row count alongside the items
type page[T any] struct {
	items []T
	total int64
}

func (uc *chatUseCase) ListConversations(ctx context.Context, actor domain.UserID, pageNum int) ([]domain.Conversation, int64, error) {
	if !actor.Valid() {
		return nil, 0, errprocess.Validation("invalid acting user id")
	}
	out, err := retryRead(ctx, func(ctx context.Context) (page[domain.Conversation], error) {
		items, total, err := uc.convRepo.ListForUser(ctx, actor, pageNum, uc.conversationsPerPage)
		return page[domain.Conversation]{items: items, total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return out.items, out.total, nil
}

func (uc *chatUseCase) DeleteConversation(ctx context.Context, actor domain.UserID, conversationID int64) error {
	if _, err := uc.authorizedConversation(ctx, actor, conversationID); err != nil {
		return err
	}
	return uc.convRepo.Delete(ctx, conversationID)
}

// SendMessage validate, persist, then publish. Publication happens
// strictly after the durable write; a storage failure leaves no
// partial state and nothing on the wire.
func (uc *chatUseCase) SendMessage(ctx context.Context, actor domain.UserID, conversationID int64, content, originConn string) (*domain.Message, error) {
	conv, err := uc.authorizedConversation(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}

	msg, err := domain.NewMessage(conv, actor, content, uc.maxContentLength)
	if err != nil {
		return nil, err
	}

	stored, err := uc.msgRepo.Create(ctx, msg)
	if err != nil {
		return nil, err
	}

	uc.engine.PublishMessageCreated(ctx, conv, stored, originConn)
	return stored, nil
}

func (uc *chatUseCase) ListMessages(ctx context.Context, actor domain.UserID, conversationID int64, pageNum int) ([]domain.Message, int64, error) {
	if _, err := uc.authorizedConversation(ctx, actor, conversationID); err != nil {
		return nil, 0, err
	}
	out, err := retryRead(ctx, func(ctx context.Context) (page[domain.Message], error) {
		items, total, err := uc.msgRepo.List(ctx, conversationID, pageNum, uc.messagesPerPage)
		return page[domain.Message]{items: items, total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return out.items, out.total, nil
}

func (uc *chatUseCase) ListLatestMessages(ctx context.Context, actor domain.UserID, conversationID int64, limit int) ([]domain.Message, error) {
	if _, err := uc.authorizedConversation(ctx, actor, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > uc.messagesPerPage {
		limit = uc.messagesPerPage
	}
	return retryRead(ctx, func(ctx context.Context) ([]domain.Message, error) {
		return uc.msgRepo.ListLatest(ctx, conversationID, limit)
	})
}

// MarkAsRead stamp the given messages read for the actor and publish a
// receipt for the ones that actually transitioned. An empty transition
// set publishes nothing.
func (uc *chatUseCase) MarkAsRead(ctx context.Context, actor domain.UserID, conversationID int64, messageIDs []int64) ([]int64, error) {
	if _, err := uc.authorizedConversation(ctx, actor, conversationID); err != nil {
		return nil, err
	}
	if len(messageIDs) == 0 {
		return nil, nil
	}

	marked, readAt, err := uc.msgRepo.MarkRead(ctx, conversationID, messageIDs, actor)
	if err != nil {
		return nil, err
	}
	if len(marked) > 0 {
		uc.engine.PublishMessageRead(ctx, conversationID, marked, actor, readAt)
	}
	return marked, nil
}

func (uc *chatUseCase) MarkConversationAsRead(ctx context.Context, actor domain.UserID, conversationID int64) ([]int64, error) {
	if _, err := uc.authorizedConversation(ctx, actor, conversationID); err != nil {
		return nil, err
	}

	marked, readAt, err := uc.msgRepo.MarkConversationRead(ctx, conversationID, actor)
	if err != nil {
		return nil, err
	}
	if len(marked) > 0 {
		uc.engine.PublishMessageRead(ctx, conversationID, marked, actor, readAt)
	}
	return marked, nil
}

// BroadcastTyping fire-and-forget typing signal, never persisted
func (uc *chatUseCase) BroadcastTyping(ctx context.Context, actor domain.UserID, conversationID int64, isTyping bool, originConn string) error {
	if _, err := uc.authorizedConversation(ctx, actor, conversationID); err != nil {
		return err
	}
	uc.engine.PublishTyping(ctx, conversationID, actor, isTyping, originConn)
	return nil
}

func (uc *chatUseCase) UnreadCount(ctx context.Context, actor domain.UserID, conversationID int64) (int64, error) {
	if _, err := uc.authorizedConversation(ctx, actor, conversationID); err != nil {
		return 0, err
	}
	return retryRead(ctx, func(ctx context.Context) (int64, error) {
		return uc.msgRepo.UnreadCount(ctx, conversationID, actor)
	})
}

func (uc *chatUseCase) TotalUnreadCount(ctx context.Context, actor domain.UserID) (int64, error) {
	if !actor.Valid() {
		return 0, errprocess.Validation("invalid acting user id")
	}
	return retryRead(ctx, func(ctx context.Context) (int64, error) {
		return uc.msgRepo.TotalUnreadCount(ctx, actor)
	})
}

func (uc *chatUseCase) FindUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return retryRead(ctx, func(ctx context.Context) (*domain.User, error) {
		return uc.userRepo.Find(ctx, id)
	})
}
