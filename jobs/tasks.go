package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueNotify carries notification dispatch tasks.
	QueueNotify = "notify"

	// TaskLedgerIntegrity recomputes contract ledgers and flags overdrawn
	// contracts.
	TaskLedgerIntegrity = "ledger:integrity"
)

// LedgerIntegrityPayload narrows an integrity run to a single contract when
// ContractID is set; zero means scan everything.
type LedgerIntegrityPayload struct {
	ContractID int64 `json:"contract_id"`
}

// NewLedgerIntegrityTask constructs an Asynq task for a ledger scan.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}
