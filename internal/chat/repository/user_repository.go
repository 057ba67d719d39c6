package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live_chat_service/internal/chat/domain"
	errprocess "live_chat_service/pkg/err"
)

// UserRepository read-only projection of the external identity system.
// The chat core never writes users, it only resolves id -> name/email
// for display.
type UserRepository interface {
	Find(ctx context.Context, id domain.UserID) (*domain.User, error)
}

type userRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository create a UserRepository
func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Find(ctx context.Context, id domain.UserID) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, name, email FROM users WHERE id = $1`, id)

	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errprocess.NotFound("user not found")
		}
		return nil, errprocess.Unavailable("find user", err)
	}
	return &u, nil
}
