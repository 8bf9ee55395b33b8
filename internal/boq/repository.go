package boq

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

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertItem(ctx context.Context, item Item) (int64, error)
	UpdateItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const itemColumns = `id, request_id, category, item_name, description, unit, quantity, unit_price, total_price, created_at, updated_at`

// Get returns one item by id.
func (r *Repository) Get(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM boq_items WHERE id=$1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.Failf(shared.ErrNotFound, "boq item %d not found", id)
		}
		return Item{}, err
	}
	return item, nil
}

// ListForRequest returns every item owned by the request in insertion order.
func (r *Repository) ListForRequest(ctx context.Context, requestID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM boq_items WHERE request_id=$1 ORDER BY id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// TotalForRequest sums the derived line totals.
func (r *Repository) TotalForRequest(ctx context.Context, requestID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_price), 0) FROM boq_items WHERE request_id=$1`, requestID).Scan(&total)
	return total, err
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO boq_items (request_id, category, item_name, description, unit, quantity, unit_price, total_price, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING id`,
		item.RequestID, string(item.Category), item.ItemName, item.Description, string(item.Unit), item.Quantity, item.UnitPrice, item.TotalPrice).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateItem(ctx context.Context, item Item) error {
	tag, err := t.tx.Exec(ctx, `UPDATE boq_items SET category=$2, item_name=$3, description=$4, unit=$5, quantity=$6, unit_price=$7, total_price=$8, updated_at=NOW() WHERE id=$1`,
		item.ID, string(item.Category), item.ItemName, item.Description, string(item.Unit), item.Quantity, item.UnitPrice, item.TotalPrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.Failf(shared.ErrNotFound, "boq item %d not found", item.ID)
	}
	return nil
}

func (t *txRepo) DeleteItem(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM boq_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.Failf(shared.ErrNotFound, "boq item %d not found", id)
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	var category, unit string
	if err := row.Scan(&item.ID, &item.RequestID, &category, &item.ItemName, &item.Description, &unit, &item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Item{}, err
	}
	item.Category = Category(category)
	item.Unit = Unit(unit)
	return item, nil
}
