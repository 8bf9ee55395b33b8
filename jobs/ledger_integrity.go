package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/manarah-platform/manarah/internal/jobs"
)

// LedgerIntegrityJob recomputes the derived contract ledger and reports
// contracts whose executed disbursements exceed the contract amount.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the integrity handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Pool: pool, Logger: logger, Metrics: metrics}
}

type ledgerRow struct {
	ContractID     int64
	Number         string
	ContractAmount float64
	TotalPaid      float64
}

// Handle executes the integrity scan.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if payload.ContractID > 0 {
		logger = logger.With(slog.Int64("contract_id", payload.ContractID))
	}
	logger.Info("starting ledger integrity scan")

	rows, overdrawn, err := j.scan(ctx, payload.ContractID)
	if err != nil {
		resultErr = err
		logger.Error("ledger integrity scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, c := range overdrawn {
		logger.Warn("contract overdrawn",
			slog.Int64("contract_id", c.ContractID),
			slog.String("number", c.Number),
			slog.Float64("contract_amount", c.ContractAmount),
			slog.Float64("total_paid", c.TotalPaid),
		)
		j.Metrics.AddOverdrawn(c.ContractID)
	}

	logger.Info("completed ledger integrity scan",
		slog.Int("contracts", rows),
		slog.Int("overdrawn", len(overdrawn)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *LedgerIntegrityJob) scan(ctx context.Context, contractID int64) (int, []ledgerRow, error) {
	if j.Pool == nil {
		return 0, nil, errors.New("ledger integrity: pool not configured")
	}
	const query = `
SELECT c.id, c.number, c.contract_amount,
       COALESCE(SUM(o.amount) FILTER (WHERE o.status IN ('executed','paid')), 0) AS total_paid
FROM contracts c
LEFT JOIN disbursement_orders o ON o.contract_id = c.id
WHERE ($1 = 0 OR c.id = $1)
GROUP BY c.id, c.number, c.contract_amount
ORDER BY c.id`
	rows, err := j.Pool.Query(ctx, query, contractID)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	total := 0
	overdrawn := make([]ledgerRow, 0)
	for rows.Next() {
		var r ledgerRow
		if err := rows.Scan(&r.ContractID, &r.Number, &r.ContractAmount, &r.TotalPaid); err != nil {
			return 0, nil, err
		}
		total++
		if r.TotalPaid > r.ContractAmount {
			overdrawn = append(overdrawn, r)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return total, overdrawn, nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
