package contracts

import "time"

// Contract binds an accepted supplier quotation to a funded commitment.
// Disbursements are raised against it until it is fully paid.
type Contract struct {
	ID             int64      `json:"id"`
	Number         string     `json:"number"`
	ProjectID      int64      `json:"project_id"`
	RequestID      int64      `json:"request_id"`
	SupplierID     int64      `json:"supplier_id"`
	QuotationID    *int64     `json:"quotation_id,omitempty"`
	ContractAmount float64    `json:"contract_amount"`
	SignedAt       *time.Time `json:"signed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Ledger is the contract's payment position. It is derived from the
// executed order set on every read and never stored.
type Ledger struct {
	ContractAmount  float64 `json:"contract_amount"`
	TotalPaid       float64 `json:"total_paid"`
	RemainingAmount float64 `json:"remaining_amount"`
}

// WithLedger pairs a contract with its current payment position.
type WithLedger struct {
	Contract
	Ledger Ledger `json:"ledger"`
}

// DeriveLedger computes the payment position from the contract amount and
// the executed/paid order total.
func DeriveLedger(contractAmount, executedTotal float64) Ledger {
	return Ledger{
		ContractAmount:  contractAmount,
		TotalPaid:       executedTotal,
		RemainingAmount: contractAmount - executedTotal,
	}
}
