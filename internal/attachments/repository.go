package attachments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manarah-platform/manarah/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an attachment reference and returns its id.
func (r *Repository) Create(ctx context.Context, a Attachment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO attachments (entity, entity_id, file_name, ref, uploaded_by, created_at)
VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id`,
		a.Entity, a.EntityID, a.FileName, a.Ref, a.UploadedBy).Scan(&id)
	return id, err
}

// Get returns one attachment by id.
func (r *Repository) Get(ctx context.Context, id int64) (Attachment, error) {
	var a Attachment
	err := r.pool.QueryRow(ctx, `SELECT id, entity, entity_id, file_name, ref, uploaded_by, created_at FROM attachments WHERE id=$1`, id).
		Scan(&a.ID, &a.Entity, &a.EntityID, &a.FileName, &a.Ref, &a.UploadedBy, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attachment{}, shared.Failf(shared.ErrNotFound, "attachment %d not found", id)
		}
		return Attachment{}, err
	}
	return a, nil
}

// ListForEntity returns the entity's attachments in upload order.
func (r *Repository) ListForEntity(ctx context.Context, entity string, entityID int64) ([]Attachment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, entity, entity_id, file_name, ref, uploaded_by, created_at FROM attachments WHERE entity=$1 AND entity_id=$2 ORDER BY id ASC`, entity, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.Entity, &a.EntityID, &a.FileName, &a.Ref, &a.UploadedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
