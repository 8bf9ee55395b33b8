// Package notify carries domain events to the notification collaborator.
// Delivery is fire-and-forget: a failed publish is logged by the caller
// and never rolls back the core transition that produced it.
package notify

import (
	"context"

	"github.com/google/uuid"
)

// Kind enumerates notification event kinds.
type Kind string

const (
	KindRequestClosed     Kind = "request.closed"
	KindRequestStatus     Kind = "request.status"
	KindQuotationAccepted Kind = "quotation.accepted"
	KindQuotationRejected Kind = "quotation.rejected"
	KindDisbApproved      Kind = "disbursement.approved"
	KindDisbRejected      Kind = "disbursement.rejected"
	KindDisbExecuted      Kind = "disbursement.executed"
)

// Event is the payload handed to the notification collaborator.
type Event struct {
	ID       uuid.UUID `json:"id"`
	Kind     Kind      `json:"kind"`
	Entity   string    `json:"entity"`
	EntityID int64     `json:"entity_id"`
	ActorID  int64     `json:"actor_id"`
	Message  string    `json:"message"`
}

// Notifier publishes events toward the delivery worker.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}
