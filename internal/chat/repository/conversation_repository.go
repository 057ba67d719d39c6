package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live_chat_service/internal/chat/domain"
	errprocess "live_chat_service/pkg/err"
)

// ConversationRepository definition canonical conversation storage
type ConversationRepository interface {
	// GetOrCreate normalize the pair and return the existing
	// conversation or atomically create one. Safe under concurrent
	// calls with the same pair.
	GetOrCreate(ctx context.Context, x, y domain.UserID) (*domain.Conversation, error)
	Find(ctx context.Context, x, y domain.UserID) (*domain.Conversation, error)
	FindByID(ctx context.Context, id int64) (*domain.Conversation, error)
	// ListForUser page is 1-based, ordered by last_message_at DESC
	// (nulls last) then created_at DESC. Returns the total row count
	// alongside the page.
	ListForUser(ctx context.Context, u domain.UserID, page, perPage int) ([]domain.Conversation, int64, error)
	TouchLastMessage(ctx context.Context, id int64, at time.Time) error
	// Delete remove the conversation and all its messages in one
	// transaction.
	Delete(ctx context.Context, id int64) error
}

type conversationRepository struct {
	db *pgxpool.Pool
}

// NewConversationRepository create a ConversationRepository
func NewConversationRepository(db *pgxpool.Pool) ConversationRepository {
	return &conversationRepository{db: db}
}

const conversationColumns = "id, user_a_id, user_b_id, last_message_at, created_at, updated_at"

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.UserAID, &c.UserBID, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conversationRepository) GetOrCreate(ctx context.Context, x, y domain.UserID) (*domain.Conversation, error) {
	a, b, err := domain.NormalizePair(x, y)
	if err != nil {
		return nil, err
	}

	// insert-or-fetch: ON CONFLICT DO NOTHING returns no row when the
	// pair already exists, in that case fall back to the select. One
	// retry covers the window where a concurrent delete removes the row
	// between the two statements.
	for attempt := 0; attempt < 2; attempt++ {
		row := r.db.QueryRow(ctx,
			`INSERT INTO live_chat_conversations (user_a_id, user_b_id)
			 VALUES ($1, $2)
			 ON CONFLICT (user_a_id, user_b_id) DO NOTHING
			 RETURNING `+conversationColumns,
			a, b)
		conv, err := scanConversation(row)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, errprocess.Unavailable("insert conversation", err)
		}

		conv, err = r.Find(ctx, a, b)
		if err == nil {
			return conv, nil
		}
		if !errprocess.Is(err, errprocess.CodeNotFound) {
			return nil, err
		}
	}

	return nil, errprocess.Conflict("conversation get-or-create race could not be resolved")
}

func (r *conversationRepository) Find(ctx context.Context, x, y domain.UserID) (*domain.Conversation, error) {
	a, b, err := domain.NormalizePair(x, y)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx,
		`SELECT `+conversationColumns+`
		 FROM live_chat_conversations
		 WHERE user_a_id = $1 AND user_b_id = $2`,
		a, b)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errprocess.NotFound("conversation not found")
		}
		return nil, errprocess.Unavailable("find conversation", err)
	}
	return conv, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+conversationColumns+`
		 FROM live_chat_conversations
		 WHERE id = $1`,
		id)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errprocess.NotFound("conversation not found")
		}
		return nil, errprocess.Unavailable("find conversation", err)
	}
	return conv, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, u domain.UserID, page, perPage int) ([]domain.Conversation, int64, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage

	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM live_chat_conversations
		 WHERE user_a_id = $1 OR user_b_id = $1`,
		u).Scan(&total)
	if err != nil {
		return nil, 0, errprocess.Unavailable("count conversations", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+conversationColumns+`
		 FROM live_chat_conversations
		 WHERE user_a_id = $1 OR user_b_id = $1
		 ORDER BY last_message_at DESC NULLS LAST, created_at DESC
		 LIMIT $2 OFFSET $3`,
		u, perPage, offset)
	if err != nil {
		return nil, 0, errprocess.Unavailable("list conversations", err)
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.UserAID, &c.UserBID, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, errprocess.Unavailable("scan conversation", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errprocess.Unavailable("list conversations", err)
	}
	return out, total, nil
}

func (r *conversationRepository) TouchLastMessage(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE live_chat_conversations
		 SET last_message_at = $1, updated_at = now()
		 WHERE id = $2`,
		at, id)
	if err != nil {
		return errprocess.Unavailable("touch conversation", err)
	}
	if tag.RowsAffected() == 0 {
		return errprocess.NotFound("conversation not found")
	}
	return nil
}

func (r *conversationRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errprocess.Unavailable("begin delete conversation", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM live_chat_messages WHERE conversation_id = $1`, id); err != nil {
		return errprocess.Unavailable("delete conversation messages", err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM live_chat_conversations WHERE id = $1`, id)
	if err != nil {
		return errprocess.Unavailable("delete conversation", err)
	}
	if tag.RowsAffected() == 0 {
		return errprocess.NotFound("conversation not found")
	}

	if err := tx.Commit(ctx); err != nil {
		return errprocess.Unavailable("commit delete conversation", err)
	}
	return nil
}
