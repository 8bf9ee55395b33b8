package contracts

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

const contractColumns = `id, number, project_id, request_id, supplier_id, quotation_id, contract_amount, signed_at, created_at, updated_at`

// Create inserts a contract and returns its id.
func (r *Repository) Create(ctx context.Context, c Contract) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO contracts (number, project_id, request_id, supplier_id, quotation_id, contract_amount, signed_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id`,
		c.Number, c.ProjectID, c.RequestID, c.SupplierID, c.QuotationID, c.ContractAmount, c.SignedAt).Scan(&id)
	return id, err
}

// Get returns one contract by id.
func (r *Repository) Get(ctx context.Context, id int64) (Contract, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id=$1`, id)
	c, err := scanContract(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, shared.Failf(shared.ErrNotFound, "contract %d not found", id)
		}
		return Contract{}, err
	}
	return c, nil
}

// ListForProject returns every contract raised under a project.
func (r *Repository) ListForProject(ctx context.Context, projectID int64) ([]Contract, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+contractColumns+` FROM contracts WHERE project_id=$1 ORDER BY id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ExecutedTotal sums executed and paid order amounts for a contract. The
// ledger is derived from this on every read, never cached.
func (r *Repository) ExecutedTotal(ctx context.Context, contractID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM disbursement_orders WHERE contract_id=$1 AND status IN ('executed', 'paid')`,
		contractID).Scan(&total)
	return total, err
}

func scanContract(row pgx.Row) (Contract, error) {
	var c Contract
	var quotationID pgtype.Int8
	var signedAt pgtype.Timestamptz
	if err := row.Scan(&c.ID, &c.Number, &c.ProjectID, &c.RequestID, &c.SupplierID, &quotationID, &c.ContractAmount, &signedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Contract{}, err
	}
	if quotationID.Valid {
		c.QuotationID = &quotationID.Int64
	}
	if signedAt.Valid {
		c.SignedAt = &signedAt.Time
	}
	return c, nil
}
