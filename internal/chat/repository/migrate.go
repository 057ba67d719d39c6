package repository

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

// schema for the two chat tables. The ordered-pair unique index is what
// enforces one conversation per pair of users, and user_a_id < user_b_id
// keeps the pair canonical regardless of who initiates.
const schema = `
CREATE TABLE IF NOT EXISTS live_chat_conversations (
	id              BIGSERIAL PRIMARY KEY,
	user_a_id       BIGINT NOT NULL,
	user_b_id       BIGINT NOT NULL,
	last_message_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT live_chat_conversations_pair_unique UNIQUE (user_a_id, user_b_id),
	CONSTRAINT live_chat_conversations_pair_ordered CHECK (user_a_id < user_b_id)
);

CREATE INDEX IF NOT EXISTS idx_conversations_user_a
	ON live_chat_conversations (user_a_id, last_message_at DESC);
CREATE INDEX IF NOT EXISTS idx_conversations_user_b
	ON live_chat_conversations (user_b_id, last_message_at DESC);

CREATE TABLE IF NOT EXISTS live_chat_messages (
	id              BIGSERIAL PRIMARY KEY,
	conversation_id BIGINT NOT NULL REFERENCES live_chat_conversations (id) ON DELETE CASCADE,
	sender_id       BIGINT NOT NULL,
	content         TEXT NOT NULL,
	read_at         TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
	ON live_chat_messages (conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_unread
	ON live_chat_messages (conversation_id, sender_id, read_at);
`

// Migrate create the chat tables when they do not exist yet
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}
