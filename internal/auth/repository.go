package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manarah-platform/manarah/internal/shared"
)

// Repository provides PostgreSQL backed token storage.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a token row and returns its id.
func (r *Repository) Create(ctx context.Context, t Token) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO api_tokens (actor_id, role, secret_hash, active, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id`,
		t.ActorID, t.Role, t.SecretHash, t.Active, t.ExpiresAt).Scan(&id)
	return id, err
}

// Get returns one token row by id.
func (r *Repository) Get(ctx context.Context, id int64) (Token, error) {
	var t Token
	var expiresAt pgtype.Timestamptz
	err := r.pool.QueryRow(ctx, `SELECT id, actor_id, role, secret_hash, active, expires_at, created_at FROM api_tokens WHERE id=$1`, id).
		Scan(&t.ID, &t.ActorID, &t.Role, &t.SecretHash, &t.Active, &expiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, shared.Failf(shared.ErrNotFound, "token %d not found", id)
		}
		return Token{}, err
	}
	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	return t, nil
}

// Revoke deactivates a token.
func (r *Repository) Revoke(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE api_tokens SET active=false WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.Failf(shared.ErrNotFound, "token %d not found", id)
	}
	return nil
}
