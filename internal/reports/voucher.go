package reports

import (
	"time"

	"github.com/manarah-platform/manarah/internal/disbursement"
	"github.com/manarah-platform/manarah/internal/tafqit"
)

// DisbursementVoucher is the printable payload for an executed order.
// The presentation layer renders it to PDF; this side owns the wording.
type DisbursementVoucher struct {
	OrderID              int64      `json:"order_id"`
	ProjectID            int64      `json:"project_id"`
	BeneficiaryName      string     `json:"beneficiary_name"`
	BeneficiaryBank      string     `json:"beneficiary_bank,omitempty"`
	BeneficiaryIBAN      string     `json:"beneficiary_iban,omitempty"`
	PaymentMethod        string     `json:"payment_method"`
	Amount               float64    `json:"amount"`
	AmountInWords        string     `json:"amount_in_words"`
	TransactionReference string     `json:"transaction_reference,omitempty"`
	ExecutedAt           *time.Time `json:"executed_at,omitempty"`
	IssuedAt             time.Time  `json:"issued_at"`
}

// BuildVoucher assembles the printable voucher for an order, spelling
// the amount out in Arabic per the printed-document convention.
func BuildVoucher(order disbursement.Order, now time.Time) DisbursementVoucher {
	return DisbursementVoucher{
		OrderID:              order.ID,
		ProjectID:            order.ProjectID,
		BeneficiaryName:      order.BeneficiaryName,
		BeneficiaryBank:      order.BeneficiaryBank,
		BeneficiaryIBAN:      order.BeneficiaryIBAN,
		PaymentMethod:        string(order.PaymentMethod),
		Amount:               order.Amount,
		AmountInWords:        tafqit.AmountInWords(order.Amount),
		TransactionReference: order.TransactionReference,
		ExecutedAt:           order.ExecutedAt,
		IssuedAt:             now,
	}
}
