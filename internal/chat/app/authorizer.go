package app

import (
	"context"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/internal/chat/repository"
	errprocess "live_chat_service/pkg/err"
)

// ChannelAuthorizer decides whether a user may access a conversation
// channel. It answers the access question only; callers turn a false
// into forbidden or not-found as they see fit.
type ChannelAuthorizer struct {
	convRepo repository.ConversationRepository
}

// NewChannelAuthorizer create ChannelAuthorizer
func NewChannelAuthorizer(convRepo repository.ConversationRepository) *ChannelAuthorizer {
	return &ChannelAuthorizer{convRepo: convRepo}
}

// CanAccessConversationChannel true iff the conversation exists and u
// is one of its two participants. A nonexistent conversation is false,
// not an error; only store failures surface as error.
func (a *ChannelAuthorizer) CanAccessConversationChannel(ctx context.Context, u domain.UserID, conversationID int64) (bool, error) {
	conv, err := a.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		if errprocess.Is(err, errprocess.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return a.CanAccess(conv, u), nil
}

// CanAccess pure predicate over an already loaded conversation
func (a *ChannelAuthorizer) CanAccess(conv *domain.Conversation, u domain.UserID) bool {
	return conv != nil && conv.IncludesUser(u)
}
