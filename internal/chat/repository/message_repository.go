package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live_chat_service/internal/chat/domain"
	errprocess "live_chat_service/pkg/err"
)

// MessageRepository definition message storage, ordering and read state
type MessageRepository interface {
	// Create persist a validated message, fills id and timestamps
	Create(ctx context.Context, m *domain.Message) (*domain.Message, error)
	// List page is 1-based, oldest first
	List(ctx context.Context, conversationID int64, page, perPage int) ([]domain.Message, int64, error)
	// ListLatest the most recent limit messages, still oldest first
	ListLatest(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error)
	// MarkRead stamp the given messages read for reader, skipping the
	// reader's own messages and anything already read. Returns the ids
	// actually stamped and the timestamp used.
	MarkRead(ctx context.Context, conversationID int64, ids []int64, reader domain.UserID) ([]int64, time.Time, error)
	// MarkConversationRead same semantics over the whole conversation
	MarkConversationRead(ctx context.Context, conversationID int64, reader domain.UserID) ([]int64, time.Time, error)
	UnreadCount(ctx context.Context, conversationID int64, u domain.UserID) (int64, error)
	TotalUnreadCount(ctx context.Context, u domain.UserID) (int64, error)
	// DeleteOlderThan retention path, removes messages created before
	// cutoff and reports how many went
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type messageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository create a MessageRepository
func NewMessageRepository(db *pgxpool.Pool) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = "id, conversation_id, sender_id, content, read_at, created_at, updated_at"

// Create inserts the message and advances the conversation's
// last_message_at in the same transaction, so a stored message always
// has its conversation ordering bumped with it.
func (r *messageRepository) Create(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, errprocess.Unavailable("begin insert message tx", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO live_chat_messages (conversation_id, sender_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING `+messageColumns,
		m.ConversationID, m.SenderID, m.Content)

	var out domain.Message
	err = row.Scan(&out.ID, &out.ConversationID, &out.SenderID, &out.Content, &out.ReadAt, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, errprocess.Unavailable("insert message", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE live_chat_conversations SET last_message_at = $1, updated_at = NOW() WHERE id = $2`,
		out.CreatedAt, out.ConversationID)
	if err != nil {
		return nil, errprocess.Unavailable("touch conversation on insert", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errprocess.Unavailable("commit insert message tx", err)
	}
	return &out, nil
}

func (r *messageRepository) List(ctx context.Context, conversationID int64, page, perPage int) ([]domain.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage

	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM live_chat_messages WHERE conversation_id = $1`,
		conversationID).Scan(&total)
	if err != nil {
		return nil, 0, errprocess.Unavailable("count messages", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM live_chat_messages
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC, id ASC
		 LIMIT $2 OFFSET $3`,
		conversationID, perPage, offset)
	if err != nil {
		return nil, 0, errprocess.Unavailable("list messages", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func (r *messageRepository) ListLatest(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM live_chat_messages
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		conversationID, limit)
	if err != nil {
		return nil, errprocess.Unavailable("list latest messages", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// fetched newest first, the caller wants chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, conversationID int64, ids []int64, reader domain.UserID) ([]int64, time.Time, error) {
	now := time.Now().UTC()
	if len(ids) == 0 {
		return nil, now, nil
	}

	// single statement keeps the bulk stamp all-or-nothing; already
	// read rows keep their original read_at
	rows, err := r.db.Query(ctx,
		`UPDATE live_chat_messages
		 SET read_at = $1, updated_at = $1
		 WHERE conversation_id = $2
		   AND id = ANY($3)
		   AND sender_id <> $4
		   AND read_at IS NULL
		 RETURNING id`,
		now, conversationID, ids, reader)
	if err != nil {
		return nil, now, errprocess.Unavailable("mark messages read", err)
	}
	defer rows.Close()

	marked, err := scanIDs(rows)
	return marked, now, err
}

func (r *messageRepository) MarkConversationRead(ctx context.Context, conversationID int64, reader domain.UserID) ([]int64, time.Time, error) {
	now := time.Now().UTC()

	rows, err := r.db.Query(ctx,
		`UPDATE live_chat_messages
		 SET read_at = $1, updated_at = $1
		 WHERE conversation_id = $2
		   AND sender_id <> $3
		   AND read_at IS NULL
		 RETURNING id`,
		now, conversationID, reader)
	if err != nil {
		return nil, now, errprocess.Unavailable("mark conversation read", err)
	}
	defer rows.Close()

	marked, err := scanIDs(rows)
	return marked, now, err
}

func (r *messageRepository) UnreadCount(ctx context.Context, conversationID int64, u domain.UserID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM live_chat_messages
		 WHERE conversation_id = $1
		   AND sender_id <> $2
		   AND read_at IS NULL`,
		conversationID, u).Scan(&count)
	if err != nil {
		return 0, errprocess.Unavailable("count unread messages", err)
	}
	return count, nil
}

func (r *messageRepository) TotalUnreadCount(ctx context.Context, u domain.UserID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM live_chat_messages m
		 JOIN live_chat_conversations c ON c.id = m.conversation_id
		 WHERE (c.user_a_id = $1 OR c.user_b_id = $1)
		   AND m.sender_id <> $1
		   AND m.read_at IS NULL`,
		u).Scan(&count)
	if err != nil {
		return 0, errprocess.Unavailable("count total unread messages", err)
	}
	return count, nil
}

func (r *messageRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM live_chat_messages WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, errprocess.Unavailable("delete old messages", err)
	}
	return tag.RowsAffected(), nil
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.ReadAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, errprocess.Unavailable("scan message", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errprocess.Unavailable("read messages", err)
	}
	return out, nil
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errprocess.Unavailable("scan message id", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errprocess.Unavailable("read message ids", err)
	}
	return out, nil
}
