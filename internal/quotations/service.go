package quotations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/boq"
	"github.com/manarah-platform/manarah/internal/notify"
	"github.com/manarah-platform/manarah/internal/requests"
	"github.com/manarah-platform/manarah/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Quotation, error)
	ListForRequest(ctx context.Context, requestID int64) ([]Quotation, error)
	CountAccepted(ctx context.Context, requestID int64, excludeID int64) (int, error)
}

// RequestPort exposes the owning request's pipeline position.
type RequestPort interface {
	Get(ctx context.Context, id int64) (requests.Request, error)
}

// BOQPort exposes the request's bill of quantities.
type BOQPort interface {
	ListForRequest(ctx context.Context, requestID int64) ([]boq.Item, error)
}

// NotifierPort is invoked fire-and-forget after terminal decisions.
type NotifierPort interface {
	Publish(ctx context.Context, event notify.Event) error
}

// ApprovalsPort records approval history.
type ApprovalsPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// MetricsPort counts domain transitions.
type MetricsPort interface {
	ObserveTransition(entity, action, outcome string)
}

// Config carries the tunable invariants.
type Config struct {
	// EnforceSingleAccepted rejects approving a quotation when another
	// quotation of the same request is already accepted.
	EnforceSingleAccepted bool
}

// Service owns supplier quotations and their negotiation sub-state-machine.
type Service struct {
	repo      RepositoryPort
	gate      *authz.Gate
	requests  RequestPort
	boq       BOQPort
	notifier  NotifierPort
	approvals ApprovalsPort
	metrics   MetricsPort
	config    Config
	logger    *slog.Logger
}

// NewService constructs the quotation service.
func NewService(repo RepositoryPort, gate *authz.Gate, reqs RequestPort, boqPort BOQPort, notifier NotifierPort, approvals ApprovalsPort, metrics MetricsPort, config Config, logger *slog.Logger) *Service {
	return &Service{repo: repo, gate: gate, requests: reqs, boq: boqPort, notifier: notifier, approvals: approvals, metrics: metrics, config: config, logger: logger}
}

// ItemInput prices one BOQ item.
type ItemInput struct {
	BOQItemID int64
	Quantity  float64
	UnitPrice float64
}

// CreateInput describes a supplier submission.
type CreateInput struct {
	RequestID   int64
	SupplierID  int64
	Items       []ItemInput
	Discount    Discount
	IncludesTax bool
	TaxRate     float64
	ValidUntil  *time.Time
}

// Create validates the submission against the request's BOQ and persists
// the quotation with its derived amounts.
func (s *Service) Create(ctx context.Context, input CreateInput, actor shared.Actor) (Quotation, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionQuotationCreate); err != nil {
		return Quotation{}, err
	}
	req, err := s.requests.Get(ctx, input.RequestID)
	if err != nil {
		return Quotation{}, err
	}
	if req.CurrentStage != requests.StageFinancialEval {
		return Quotation{}, shared.Failf(shared.ErrInvalidState, "request %s is in %s, quotations accepted only during financial evaluation", req.Number, req.CurrentStage)
	}
	if input.SupplierID == 0 {
		return Quotation{}, shared.FieldFailf("supplier_id", "supplier is required")
	}
	if len(input.Items) == 0 {
		return Quotation{}, shared.FieldFailf("items", "at least one item is required")
	}
	switch input.Discount.Type {
	case DiscountNone, DiscountPercentage, DiscountFixed:
	case "":
		input.Discount = NoDiscount()
	default:
		return Quotation{}, shared.FieldFailf("discount.type", "unknown discount type %q", input.Discount.Type)
	}
	if input.Discount.Value < 0 {
		return Quotation{}, shared.FieldFailf("discount.value", "must not be negative")
	}
	if input.TaxRate < 0 {
		return Quotation{}, shared.FieldFailf("tax_rate", "must not be negative")
	}

	boqItems, err := s.boq.ListForRequest(ctx, input.RequestID)
	if err != nil {
		return Quotation{}, err
	}
	unpriced := 0
	known := make(map[int64]struct{}, len(boqItems))
	for _, item := range boqItems {
		known[item.ID] = struct{}{}
		if item.UnitPrice <= 0 {
			unpriced++
		}
	}
	if unpriced > 0 {
		return Quotation{}, shared.CountFailf(shared.ErrValidation, unpriced, "%d BOQ items have no unit price; price them before submitting quotations", unpriced)
	}

	items := make([]Item, 0, len(input.Items))
	for _, in := range input.Items {
		if _, ok := known[in.BOQItemID]; !ok {
			return Quotation{}, shared.FieldFailf("items", "BOQ item %d does not belong to request %d", in.BOQItemID, input.RequestID)
		}
		if in.Quantity < 0 || in.UnitPrice < 0 {
			return Quotation{}, shared.FieldFailf("items", "quantity and unit price must not be negative")
		}
		items = append(items, Item{
			BOQItemID:  in.BOQItemID,
			Quantity:   in.Quantity,
			UnitPrice:  in.UnitPrice,
			TotalPrice: round2(in.Quantity * in.UnitPrice),
		})
	}

	totals := Compute(items, input.Discount, input.IncludesTax, input.TaxRate)
	if totals.TotalAmount <= 0 {
		return Quotation{}, shared.FieldFailf("items", "quotation total must be greater than zero")
	}

	q := Quotation{
		RequestID:      input.RequestID,
		SupplierID:     input.SupplierID,
		Items:          items,
		TotalAmount:    totals.TotalAmount,
		Discount:       input.Discount,
		IncludesTax:    input.IncludesTax,
		TaxRate:        input.TaxRate,
		DiscountAmount: totals.DiscountAmount,
		TaxAmount:      totals.TaxAmount,
		FinalAmount:    totals.FinalAmount,
		Status:         StatusPending,
		ValidUntil:     input.ValidUntil,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateQuotation(ctx, q)
		if err != nil {
			return err
		}
		q.ID = id
		for i := range items {
			items[i].QuotationID = id
			if err := tx.InsertItem(ctx, items[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Quotation{}, err
	}
	s.observe("quotation", "create", "ok")
	return s.repo.Get(ctx, q.ID)
}

// StartNegotiation moves a pending quotation into negotiation. Amounts
// are untouched.
func (s *Service) StartNegotiation(ctx context.Context, id int64, actor shared.Actor) (Quotation, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionQuotationNegotiate); err != nil {
		return Quotation{}, err
	}
	return s.transition(ctx, id, StatusPending, StatusNegotiating, actor, "", nil)
}

// SaveNegotiationResult records the counter-offer amount without leaving
// the negotiating state.
func (s *Service) SaveNegotiationResult(ctx context.Context, id int64, negotiatedAmount float64, notes string, actor shared.Actor) (Quotation, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionQuotationNegotiate); err != nil {
		return Quotation{}, err
	}
	if negotiatedAmount <= 0 {
		return Quotation{}, shared.FieldFailf("negotiated_amount", "must be greater than zero")
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if q.Status != StatusNegotiating {
		return Quotation{}, shared.Failf(shared.ErrInvalidState, "quotation %d is %s, negotiation result requires negotiating", id, q.Status)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		applied, err := tx.SaveNegotiation(ctx, id, negotiatedAmount, notes)
		if err != nil {
			return err
		}
		if !applied {
			return shared.Failf(shared.ErrConflict, "quotation %d changed concurrently", id)
		}
		return nil
	})
	if err != nil {
		return Quotation{}, err
	}
	s.observe("quotation", "save_negotiation", "ok")
	return s.repo.Get(ctx, id)
}

// ApproveAfterNegotiation accepts a quotation out of negotiation. The
// approved amount is the negotiated amount when requested and present,
// otherwise the computed final amount.
func (s *Service) ApproveAfterNegotiation(ctx context.Context, id int64, useNegotiatedAmount bool, actor shared.Actor) (Quotation, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionQuotationApprove); err != nil {
		return Quotation{}, err
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	approved := q.FinalAmount
	if useNegotiatedAmount && q.NegotiatedAmount != nil {
		approved = *q.NegotiatedAmount
	}
	return s.transition(ctx, id, StatusNegotiating, StatusAccepted, actor, "", &approved)
}

// Approve accepts a pending quotation directly, without negotiation.
func (s *Service) Approve(ctx context.Context, id int64, actor shared.Actor) (Quotation, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionQuotationApprove); err != nil {
		return Quotation{}, err
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	approved := q.FinalAmount
	return s.transition(ctx, id, StatusPending, StatusAccepted, actor, "", &approved)
}

// Reject declines a quotation from pending or negotiating.
func (s *Service) Reject(ctx context.Context, id int64, reason string, actor shared.Actor) (Quotation, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionQuotationReject); err != nil {
		return Quotation{}, err
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if q.Status != StatusPending && q.Status != StatusNegotiating {
		return Quotation{}, shared.Failf(shared.ErrInvalidState, "quotation %d is %s, cannot reject", id, q.Status)
	}
	return s.transition(ctx, id, q.Status, StatusRejected, actor, reason, nil)
}

// CancelApproval reverses a mistaken acceptance back to pending.
func (s *Service) CancelApproval(ctx context.Context, id int64, actor shared.Actor) (Quotation, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionQuotationCancelApproval); err != nil {
		return Quotation{}, err
	}
	return s.transition(ctx, id, StatusAccepted, StatusPending, actor, "", nil)
}

// Reactivate returns a rejected quotation to pending so the offer can be
// reconsidered.
func (s *Service) Reactivate(ctx context.Context, id int64, actor shared.Actor) (Quotation, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionQuotationReactivate); err != nil {
		return Quotation{}, err
	}
	return s.transition(ctx, id, StatusRejected, StatusPending, actor, "", nil)
}

// transition applies one CAS status edge. approvedAmount is stored only
// when moving into accepted; reason only when moving into rejected.
func (s *Service) transition(ctx context.Context, id int64, from, to Status, actor shared.Actor, reason string, approvedAmount *float64) (Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if q.Status != from {
		s.observe("quotation", string(to), "invalid")
		return Quotation{}, shared.Failf(shared.ErrInvalidState, "quotation %d is %s, expected %s", id, q.Status, from)
	}
	if !CanTransition(from, to) {
		s.observe("quotation", string(to), "invalid")
		return Quotation{}, shared.Failf(shared.ErrInvalidState, "quotation %d cannot move %s → %s", id, from, to)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if to == StatusAccepted && s.config.EnforceSingleAccepted {
			// Counted under the request row lock so two quotations of
			// the same request approved concurrently cannot both win.
			count, err := tx.CountAccepted(ctx, q.RequestID, id)
			if err != nil {
				return err
			}
			if count > 0 {
				return shared.Failf(shared.ErrInvalidState, "request %d already has an accepted quotation", q.RequestID)
			}
		}
		applied, err := tx.UpdateStatus(ctx, id, from, to, approvedAmount)
		if err != nil {
			return err
		}
		if !applied {
			return shared.Failf(shared.ErrConflict, "quotation %d changed concurrently", id)
		}
		return nil
	})
	if err != nil {
		outcome := "conflict"
		if errors.Is(err, shared.ErrInvalidState) {
			outcome = "invalid"
		}
		s.observe("quotation", string(to), outcome)
		return Quotation{}, err
	}
	s.observe("quotation", string(to), "ok")
	s.recordApproval(ctx, id, to, actor, reason)
	s.notifyDecision(ctx, q, to, actor)
	return s.repo.Get(ctx, id)
}

func (s *Service) recordApproval(ctx context.Context, id int64, to Status, actor shared.Actor, reason string) {
	if s.approvals == nil {
		return
	}
	var action shared.ApprovalAction
	switch to {
	case StatusAccepted:
		action = shared.ApprovalApprove
	case StatusRejected:
		action = shared.ApprovalReject
	default:
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  "QUOTATION",
		RefID:   shared.RefFor("QUOTATION", id),
		ActorID: actor.ID,
		Action:  action,
		Note:    reason,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("record quotation approval", slog.Any("error", err))
	}
}

func (s *Service) notifyDecision(ctx context.Context, q Quotation, to Status, actor shared.Actor) {
	if s.notifier == nil {
		return
	}
	var kind notify.Kind
	switch to {
	case StatusAccepted:
		kind = notify.KindQuotationAccepted
	case StatusRejected:
		kind = notify.KindQuotationRejected
	default:
		return
	}
	event := notify.Event{
		Kind:     kind,
		Entity:   "quotation",
		EntityID: q.ID,
		ActorID:  actor.ID,
		Message:  fmt.Sprintf("quotation %d for request %d %s", q.ID, q.RequestID, to),
	}
	if err := s.notifier.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.Warn("notify publish failed", slog.Any("error", err), slog.String("kind", string(kind)))
	}
}

// Get returns one quotation with its items.
func (s *Service) Get(ctx context.Context, id int64) (Quotation, error) {
	return s.repo.Get(ctx, id)
}

// ListForRequest returns every quotation submitted against a request.
func (s *Service) ListForRequest(ctx context.Context, requestID int64) ([]Quotation, error) {
	if _, err := s.requests.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return s.repo.ListForRequest(ctx, requestID)
}

// HasAccepted reports whether the request already holds an accepted
// quotation; the request pipeline gates entry into execution on it.
func (s *Service) HasAccepted(ctx context.Context, requestID int64) (bool, error) {
	count, err := s.repo.CountAccepted(ctx, requestID, 0)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) observe(entity, action, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(entity, action, outcome)
	}
}
