package quotations

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
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
	CreateQuotation(ctx context.Context, q Quotation) (int64, error)
	InsertItem(ctx context.Context, item Item) error
	UpdateStatus(ctx context.Context, id int64, from, to Status, approvedAmount *float64) (bool, error)
	SaveNegotiation(ctx context.Context, id int64, amount float64, notes string) (bool, error)
	CountAccepted(ctx context.Context, requestID int64, excludeID int64) (int, error)
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

const quotationColumns = `id, request_id, supplier_id, total_amount, discount_type, discount_value, includes_tax, tax_rate, discount_amount, tax_amount, final_amount, negotiated_amount, negotiation_notes, approved_amount, status, valid_until, version, created_at, updated_at`

// Get returns one quotation with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Quotation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id=$1`, id)
	q, err := scanQuotation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, shared.Failf(shared.ErrNotFound, "quotation %d not found", id)
		}
		return Quotation{}, err
	}
	items, err := r.itemsFor(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	q.Items = items
	return q, nil
}

// ListForRequest returns every quotation for a request, newest first.
func (r *Repository) ListForRequest(ctx context.Context, requestID int64) ([]Quotation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE request_id=$1 ORDER BY created_at DESC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := r.itemsFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// CountAccepted counts accepted quotations for a request, optionally
// excluding one id.
func (r *Repository) CountAccepted(ctx context.Context, requestID int64, excludeID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotations WHERE request_id=$1 AND status=$2 AND id<>$3`,
		requestID, string(StatusAccepted), excludeID).Scan(&count)
	return count, err
}

func (r *Repository) itemsFor(ctx context.Context, quotationID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, quotation_id, boq_item_id, quantity, unit_price, total_price FROM quotation_items WHERE quotation_id=$1 ORDER BY id ASC`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.QuotationID, &item.BOQItemID, &item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (t *txRepo) CreateQuotation(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO quotations (request_id, supplier_id, total_amount, discount_type, discount_value, includes_tax, tax_rate, discount_amount, tax_amount, final_amount, status, valid_until, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, NOW(), NOW()) RETURNING id`,
		q.RequestID, q.SupplierID, q.TotalAmount, string(q.Discount.Type), q.Discount.Value, q.IncludesTax, q.TaxRate, q.DiscountAmount, q.TaxAmount, q.FinalAmount, string(q.Status), q.ValidUntil).Scan(&id)
	return id, err
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO quotation_items (quotation_id, boq_item_id, quantity, unit_price, total_price)
VALUES ($1, $2, $3, $4, $5)`, item.QuotationID, item.BOQItemID, item.Quantity, item.UnitPrice, item.TotalPrice)
	return err
}

// UpdateStatus applies a compare-and-set on the status column so that
// two concurrent decisions produce exactly one winner.
func (t *txRepo) UpdateStatus(ctx context.Context, id int64, from, to Status, approvedAmount *float64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE quotations SET status=$3, approved_amount=COALESCE($4, approved_amount), version=version+1, updated_at=NOW() WHERE id=$1 AND status=$2`,
		id, string(from), string(to), approvedAmount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountAccepted counts accepted sibling quotations under a lock on the
// owning request row, so concurrent accepts for one request serialize.
func (t *txRepo) CountAccepted(ctx context.Context, requestID int64, excludeID int64) (int, error) {
	var locked int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM requests WHERE id=$1 FOR UPDATE`, requestID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.Failf(shared.ErrNotFound, "request %d not found", requestID)
		}
		return 0, err
	}
	var count int
	err = t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM quotations WHERE request_id=$1 AND status=$2 AND id<>$3`,
		requestID, string(StatusAccepted), excludeID).Scan(&count)
	return count, err
}

func (t *txRepo) SaveNegotiation(ctx context.Context, id int64, amount float64, notes string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE quotations SET negotiated_amount=$2, negotiation_notes=$3, version=version+1, updated_at=NOW() WHERE id=$1 AND status=$4`,
		id, amount, notes, string(StatusNegotiating))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanQuotation(row pgx.Row) (Quotation, error) {
	var q Quotation
	var discountType, status string
	var negotiated, approved pgtype.Float8
	var notes pgtype.Text
	var validUntil pgtype.Timestamptz
	if err := row.Scan(&q.ID, &q.RequestID, &q.SupplierID, &q.TotalAmount, &discountType, &q.Discount.Value, &q.IncludesTax, &q.TaxRate, &q.DiscountAmount, &q.TaxAmount, &q.FinalAmount, &negotiated, &notes, &approved, &status, &validUntil, &q.Version, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return Quotation{}, err
	}
	q.Discount.Type = DiscountType(discountType)
	q.Status = Status(status)
	if negotiated.Valid {
		v := negotiated.Float64
		q.NegotiatedAmount = &v
	}
	if approved.Valid {
		v := approved.Float64
		q.ApprovedAmount = &v
	}
	if notes.Valid {
		q.NegotiationNotes = notes.String
	}
	if validUntil.Valid {
		t := validUntil.Time
		q.ValidUntil = &t
	}
	return q, nil
}
