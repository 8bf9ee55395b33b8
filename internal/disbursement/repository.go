package disbursement

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
	CreateRequest(ctx context.Context, req Request) (int64, error)
	CreateOrder(ctx context.Context, order Order) (int64, error)
	UpdateRequestStatus(ctx context.Context, id int64, from, to RequestStatus, reason string) (bool, error)
	UpdateOrderStatus(ctx context.Context, id int64, from, to OrderStatus, reason, txRef string) (bool, error)
	ExecuteOrder(ctx context.Context, id int64, txRef string) (bool, error)
	ContractRemaining(ctx context.Context, contractID int64) (float64, error)
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

const requestColumns = `id, project_id, contract_id, title, amount, payment_type, completion_percentage, status, reject_reason, created_by, created_at, updated_at`

const orderColumns = `id, disbursement_request_id, project_id, contract_id, beneficiary_name, beneficiary_bank, beneficiary_iban, beneficiary_account, payment_method, amount, status, transaction_reference, reject_reason, created_by, executed_at, created_at, updated_at`

// GetRequest returns one disbursement request by id.
func (r *Repository) GetRequest(ctx context.Context, id int64) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM disbursement_requests WHERE id=$1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, shared.Failf(shared.ErrNotFound, "disbursement request %d not found", id)
		}
		return Request{}, err
	}
	return req, nil
}

// GetOrder returns one disbursement order by id.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM disbursement_orders WHERE id=$1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, shared.Failf(shared.ErrNotFound, "disbursement order %d not found", id)
		}
		return Order{}, err
	}
	return order, nil
}

// ListRequestsForProject returns the project's requests in insertion order.
func (r *Repository) ListRequestsForProject(ctx context.Context, projectID int64) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM disbursement_requests WHERE project_id=$1 ORDER BY id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// ListOrdersForProject returns the project's orders in insertion order.
func (r *Repository) ListOrdersForProject(ctx context.Context, projectID int64) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM disbursement_orders WHERE project_id=$1 ORDER BY id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func (t *txRepo) CreateRequest(ctx context.Context, req Request) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO disbursement_requests (project_id, contract_id, title, amount, payment_type, completion_percentage, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING id`,
		req.ProjectID, req.ContractID, req.Title, req.Amount, string(req.PaymentType), req.CompletionPercentage, string(req.Status), req.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) CreateOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO disbursement_orders (disbursement_request_id, project_id, contract_id, beneficiary_name, beneficiary_bank, beneficiary_iban, beneficiary_account, payment_method, amount, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()) RETURNING id`,
		order.RequestID, order.ProjectID, order.ContractID, order.BeneficiaryName, order.BeneficiaryBank, order.BeneficiaryIBAN, order.BeneficiaryAccount, string(order.PaymentMethod), order.Amount, string(order.Status), order.CreatedBy).Scan(&id)
	return id, err
}

// UpdateRequestStatus applies a compare-and-set status change. It returns
// false without error when the request no longer holds the expected status.
func (t *txRepo) UpdateRequestStatus(ctx context.Context, id int64, from, to RequestStatus, reason string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE disbursement_requests SET status=$3, reject_reason=CASE WHEN $4 <> '' THEN $4 ELSE reject_reason END, updated_at=NOW()
WHERE id=$1 AND status=$2`,
		id, string(from), string(to), reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateOrderStatus applies a compare-and-set status change.
func (t *txRepo) UpdateOrderStatus(ctx context.Context, id int64, from, to OrderStatus, reason, txRef string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE disbursement_orders SET status=$3,
reject_reason=CASE WHEN $4 <> '' THEN $4 ELSE reject_reason END,
transaction_reference=CASE WHEN $5 <> '' THEN $5 ELSE transaction_reference END,
updated_at=NOW()
WHERE id=$1 AND status=$2`,
		id, string(from), string(to), reason, txRef)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExecuteOrder moves an approved order to executed, recording the
// transaction reference and execution time.
func (t *txRepo) ExecuteOrder(ctx context.Context, id int64, txRef string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE disbursement_orders SET status=$2, transaction_reference=$3, executed_at=NOW(), updated_at=NOW()
WHERE id=$1 AND status=$4`,
		id, string(OrderExecuted), txRef, string(OrderApproved))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ContractRemaining computes the contract balance inside the transaction.
// The contract row is locked so two concurrent executions against the
// same contract serialize on the check.
func (t *txRepo) ContractRemaining(ctx context.Context, contractID int64) (float64, error) {
	var amount float64
	if err := t.tx.QueryRow(ctx, `SELECT contract_amount FROM contracts WHERE id=$1 FOR UPDATE`, contractID).Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.Failf(shared.ErrNotFound, "contract %d not found", contractID)
		}
		return 0, err
	}
	var paid float64
	if err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM disbursement_orders WHERE contract_id=$1 AND status IN ('executed','paid')`, contractID).Scan(&paid); err != nil {
		return 0, err
	}
	return amount - paid, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var contractID pgtype.Int8
	var paymentType, status string
	var rejectReason pgtype.Text
	if err := row.Scan(&req.ID, &req.ProjectID, &contractID, &req.Title, &req.Amount, &paymentType, &req.CompletionPercentage, &status, &rejectReason, &req.CreatedBy, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return Request{}, err
	}
	if contractID.Valid {
		req.ContractID = &contractID.Int64
	}
	req.PaymentType = PaymentType(paymentType)
	req.Status = RequestStatus(status)
	req.RejectReason = rejectReason.String
	return req, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var order Order
	var requestID, contractID pgtype.Int8
	var method, status string
	var txRef, rejectReason pgtype.Text
	var executedAt pgtype.Timestamptz
	if err := row.Scan(&order.ID, &requestID, &order.ProjectID, &contractID, &order.BeneficiaryName, &order.BeneficiaryBank, &order.BeneficiaryIBAN, &order.BeneficiaryAccount, &method, &order.Amount, &status, &txRef, &rejectReason, &order.CreatedBy, &executedAt, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return Order{}, err
	}
	if requestID.Valid {
		order.RequestID = &requestID.Int64
	}
	if contractID.Valid {
		order.ContractID = &contractID.Int64
	}
	order.PaymentMethod = PaymentMethod(method)
	order.Status = OrderStatus(status)
	order.TransactionReference = txRef.String
	order.RejectReason = rejectReason.String
	if executedAt.Valid {
		order.ExecutedAt = &executedAt.Time
	}
	return order, nil
}
