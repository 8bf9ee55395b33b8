package quotations

import (
	"math"
	"time"
)

// Status is the quotation negotiation state machine position.
type Status string

const (
	StatusPending     Status = "pending"
	StatusNegotiating Status = "negotiating"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
)

// allowedTransitions lists every legal status edge. Self-edges (saving a
// negotiation result) do not go through this table.
var allowedTransitions = map[Status][]Status{
	StatusPending:     {StatusNegotiating, StatusAccepted, StatusRejected},
	StatusNegotiating: {StatusAccepted, StatusRejected},
	StatusAccepted:    {StatusPending},
	StatusRejected:    {StatusPending},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DiscountType tags the discount variant.
type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount is a tagged variant: the value is meaningful only for the
// percentage and fixed types. This replaces the nullable type/value pair
// and removes the "value set but type not set" class of bugs.
type Discount struct {
	Type  DiscountType `json:"type"`
	Value float64      `json:"value,omitempty"`
}

// NoDiscount returns the none variant.
func NoDiscount() Discount { return Discount{Type: DiscountNone} }

// Percentage returns a percentage discount.
func Percentage(value float64) Discount {
	return Discount{Type: DiscountPercentage, Value: value}
}

// Fixed returns a fixed-amount discount.
func Fixed(value float64) Discount {
	return Discount{Type: DiscountFixed, Value: value}
}

// Amount computes the discount against a pre-tax total.
func (d Discount) Amount(total float64) float64 {
	switch d.Type {
	case DiscountPercentage:
		return round2(total * d.Value / 100)
	case DiscountFixed:
		return d.Value
	default:
		return 0
	}
}

// Item is one priced line referencing a BOQ item of the owning request.
type Item struct {
	ID          int64   `json:"id"`
	QuotationID int64   `json:"quotation_id"`
	BOQItemID   int64   `json:"boq_item_id"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

// Quotation is a supplier's priced response against a request's BOQ.
// TotalAmount is always the pre-discount, pre-tax sum of item totals.
type Quotation struct {
	ID               int64      `json:"id"`
	RequestID        int64      `json:"request_id"`
	SupplierID       int64      `json:"supplier_id"`
	Items            []Item     `json:"items,omitempty"`
	TotalAmount      float64    `json:"total_amount"`
	Discount         Discount   `json:"discount"`
	IncludesTax      bool       `json:"includes_tax"`
	TaxRate          float64    `json:"tax_rate"`
	DiscountAmount   float64    `json:"discount_amount"`
	TaxAmount        float64    `json:"tax_amount"`
	FinalAmount      float64    `json:"final_amount"`
	NegotiatedAmount *float64   `json:"negotiated_amount,omitempty"`
	NegotiationNotes string     `json:"negotiation_notes,omitempty"`
	ApprovedAmount   *float64   `json:"approved_amount,omitempty"`
	Status           Status     `json:"status"`
	ValidUntil       *time.Time `json:"valid_until,omitempty"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Totals holds the derived arithmetic of a quotation.
type Totals struct {
	TotalAmount    float64
	DiscountAmount float64
	TaxAmount      float64
	FinalAmount    float64
}

// Compute applies the quotation arithmetic:
//
//	totalAmount    = Σ(quantity * unitPrice)
//	discountAmount = by discount variant
//	afterDiscount  = totalAmount - discountAmount
//	taxAmount      = includesTax ? afterDiscount * taxRate/100 : 0
//	finalAmount    = afterDiscount + taxAmount
func Compute(items []Item, discount Discount, includesTax bool, taxRate float64) Totals {
	var total float64
	for _, item := range items {
		total += round2(item.Quantity * item.UnitPrice)
	}
	total = round2(total)
	discountAmount := discount.Amount(total)
	afterDiscount := round2(total - discountAmount)
	var taxAmount float64
	if includesTax {
		taxAmount = round2(afterDiscount * taxRate / 100)
	}
	return Totals{
		TotalAmount:    total,
		DiscountAmount: discountAmount,
		TaxAmount:      taxAmount,
		FinalAmount:    round2(afterDiscount + taxAmount),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
