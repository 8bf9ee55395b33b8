package disbursement

import "time"

// PaymentType classifies what a disbursement request pays for.
type PaymentType string

const (
	PaymentAdvance   PaymentType = "advance"
	PaymentProgress  PaymentType = "progress"
	PaymentFinal     PaymentType = "final"
	PaymentRetention PaymentType = "retention"
)

// ValidPaymentType reports whether t is a known payment type.
func ValidPaymentType(t PaymentType) bool {
	switch t {
	case PaymentAdvance, PaymentProgress, PaymentFinal, PaymentRetention:
		return true
	}
	return false
}

// PaymentMethod is how an order moves the money.
type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheck        PaymentMethod = "check"
	MethodCustody      PaymentMethod = "custody"
	MethodSadad        PaymentMethod = "sadad"
)

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case MethodBankTransfer, MethodCheck, MethodCustody, MethodSadad:
		return true
	}
	return false
}

// RequestStatus is the disbursement request state machine position.
type RequestStatus string

const (
	RequestDraft    RequestStatus = "draft"
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
	RequestPaid     RequestStatus = "paid"
)

// requestTransitions lists the legal request status edges. Rejection is
// terminal; paid is reached only by executing a derived order.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestDraft:    {RequestPending},
	RequestPending:  {RequestApproved, RequestRejected},
	RequestApproved: {RequestPaid},
}

// CanTransitionRequest reports whether from → to is a legal edge.
func CanTransitionRequest(from, to RequestStatus) bool {
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderStatus is the disbursement order state machine position.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"
	OrderPending   OrderStatus = "pending"
	OrderApproved  OrderStatus = "approved"
	OrderRejected  OrderStatus = "rejected"
	OrderExecuted  OrderStatus = "executed"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
)

// orderTransitions lists the legal order status edges. Approval is
// reachable from both draft and pending; rejecting or cancelling an
// approved order is not a supported transition.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:    {OrderPending, OrderApproved, OrderCancelled},
	OrderPending:  {OrderApproved, OrderRejected, OrderCancelled},
	OrderApproved: {OrderExecuted},
	OrderExecuted: {OrderPaid},
}

// CanTransitionOrder reports whether from → to is a legal edge.
func CanTransitionOrder(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Request is an internal ask to release funds against a project/contract.
type Request struct {
	ID                   int64         `json:"id"`
	ProjectID            int64         `json:"project_id"`
	ContractID           *int64        `json:"contract_id,omitempty"`
	Title                string        `json:"title"`
	Amount               float64       `json:"amount"`
	PaymentType          PaymentType   `json:"payment_type"`
	CompletionPercentage float64       `json:"completion_percentage"`
	Status               RequestStatus `json:"status"`
	RejectReason         string        `json:"reject_reason,omitempty"`
	CreatedBy            int64         `json:"created_by"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// Order is the executable payment instruction. It usually derives from an
// approved Request; standalone orders carry no request reference.
type Order struct {
	ID                   int64         `json:"id"`
	RequestID            *int64        `json:"disbursement_request_id,omitempty"`
	ProjectID            int64         `json:"project_id"`
	ContractID           *int64        `json:"contract_id,omitempty"`
	BeneficiaryName      string        `json:"beneficiary_name"`
	BeneficiaryBank      string        `json:"beneficiary_bank,omitempty"`
	BeneficiaryIBAN      string        `json:"beneficiary_iban,omitempty"`
	BeneficiaryAccount   string        `json:"beneficiary_account,omitempty"`
	PaymentMethod        PaymentMethod `json:"payment_method"`
	Amount               float64       `json:"amount"`
	Status               OrderStatus   `json:"status"`
	TransactionReference string        `json:"transaction_reference,omitempty"`
	RejectReason         string        `json:"reject_reason,omitempty"`
	CreatedBy            int64         `json:"created_by"`
	ExecutedAt           *time.Time    `json:"executed_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// CreateRequestResult carries the created request plus the advisory
// balance warning, which never blocks creation.
type CreateRequestResult struct {
	Request Request `json:"request"`
	Warning string  `json:"warning,omitempty"`
}
