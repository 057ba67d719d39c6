package domain

import (
	"time"

	errprocess "live_chat_service/pkg/err"
)

// UserID identifies a user of the external identity system. The chat
// core never loads the full user model, it only carries the id.
type UserID int64

// Valid report whether the id can belong to a real user
func (u UserID) Valid() bool { return u > 0 }

// User read-only projection supplied by the identity provider
type User struct {
	ID    UserID `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Conversation 1:1 channel between exactly two users, canonically keyed
// by the ordered pair UserAID < UserBID
type Conversation struct {
	ID            int64      `json:"id"`
	UserAID       UserID     `json:"user_a_id"`
	UserBID       UserID     `json:"user_b_id"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NormalizePair order two user ids so the smaller one comes first.
// The same unordered pair always maps onto the same ordered pair, which
// is what keeps the conversation unique per pair of users.
func NormalizePair(x, y UserID) (UserID, UserID, error) {
	if !x.Valid() || !y.Valid() {
		return 0, 0, errprocess.Validation("user id must be positive")
	}
	if x == y {
		return 0, 0, errprocess.Conflict("cannot create a conversation with the same user")
	}
	if x < y {
		return x, y, nil
	}
	return y, x, nil
}

// IncludesUser check if the conversation includes a specific user
func (c *Conversation) IncludesUser(u UserID) bool {
	return c.UserAID == u || c.UserBID == u
}

// OtherUser the participant that is not u, false when u is no participant
func (c *Conversation) OtherUser(u UserID) (UserID, bool) {
	switch u {
	case c.UserAID:
		return c.UserBID, true
	case c.UserBID:
		return c.UserAID, true
	}
	return 0, false
}

// Participants both participants, UserAID first
func (c *Conversation) Participants() [2]UserID {
	return [2]UserID{c.UserAID, c.UserBID}
}
