package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"

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
	CreateRequest(ctx context.Context, req Request) (int64, error)
	UpdateStageStatus(ctx context.Context, id int64, stage Stage, status Status, expectedVersion int64) (bool, error)
	AppendHistory(ctx context.Context, entry HistoryEntry) error
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

const requestColumns = `id, number, program_type, current_stage, status, priority, mosque_id, requester_id, estimated_cost, description, version, created_at, updated_at`

// Get returns one request by id.
func (r *Repository) Get(ctx context.Context, id int64) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id=$1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, shared.Failf(shared.ErrNotFound, "request %d not found", id)
		}
		return Request{}, err
	}
	return req, nil
}

// List returns filtered requests plus a total count.
func (r *Repository) List(ctx context.Context, filters ListFilters, limit, offset int) ([]Request, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filters.Stage != "" {
		add("current_stage=$%d", string(filters.Stage))
	}
	if filters.Status != "" {
		add("status=$%d", string(filters.Status))
	}
	if filters.ProgramType != "" {
		add("program_type=$%d", string(filters.ProgramType))
	}
	if filters.MosqueID != 0 {
		add("mosque_id=$%d", filters.MosqueID)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_requests`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT `+requestColumns+` FROM service_requests%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

// History returns the append-only trail ordered oldest first.
func (r *Repository) History(ctx context.Context, requestID int64) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, request_id, actor_id, action, from_stage, to_stage, from_status, to_status, reason, at
FROM request_history WHERE request_id=$1 ORDER BY at ASC, id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var fromStage, toStage, fromStatus, toStatus string
		if err := rows.Scan(&e.ID, &e.RequestID, &e.ActorID, &e.Action, &fromStage, &toStage, &fromStatus, &toStatus, &e.Reason, &e.At); err != nil {
			return nil, err
		}
		e.FromStage, e.ToStage = Stage(fromStage), Stage(toStage)
		e.FromStatus, e.ToStatus = Status(fromStatus), Status(toStatus)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (t *txRepo) CreateRequest(ctx context.Context, req Request) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO service_requests (number, program_type, current_stage, status, priority, mosque_id, requester_id, estimated_cost, description, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, NOW(), NOW()) RETURNING id`,
		req.Number, string(req.ProgramType), string(req.CurrentStage), string(req.Status), string(req.Priority), req.MosqueID, req.RequesterID, req.EstimatedCost, req.Description).Scan(&id)
	return id, err
}

// UpdateStageStatus applies a compare-and-set on the version column. It
// reports false when the expected version no longer matches, which means
// a concurrent writer won.
func (t *txRepo) UpdateStageStatus(ctx context.Context, id int64, stage Stage, status Status, expectedVersion int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE service_requests SET current_stage=$2, status=$3, version=version+1, updated_at=NOW() WHERE id=$1 AND version=$4`,
		id, string(stage), string(status), expectedVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepo) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO request_history (request_id, actor_id, action, from_stage, to_stage, from_status, to_status, reason, at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		entry.RequestID, entry.ActorID, entry.Action, string(entry.FromStage), string(entry.ToStage), string(entry.FromStatus), string(entry.ToStatus), entry.Reason)
	return err
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var program, stage, status, priority string
	if err := row.Scan(&req.ID, &req.Number, &program, &stage, &status, &priority, &req.MosqueID, &req.RequesterID, &req.EstimatedCost, &req.Description, &req.Version, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return Request{}, err
	}
	req.ProgramType = ProgramType(program)
	req.CurrentStage = Stage(stage)
	req.Status = Status(status)
	req.Priority = Priority(priority)
	return req, nil
}
