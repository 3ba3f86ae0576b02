package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository answers identity lookups. The session core itself never
// consults it; the handler layer validates user existence before starting an
// attempt.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Exists reports whether a user with the given ID exists.
func (r *UserRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
	).Scan(&exists)
	return exists, err
}
