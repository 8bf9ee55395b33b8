package disbursement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/notify"
	"github.com/manarah-platform/manarah/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRequest(ctx context.Context, id int64) (Request, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListRequestsForProject(ctx context.Context, projectID int64) ([]Request, error)
	ListOrdersForProject(ctx context.Context, projectID int64) ([]Order, error)
}

// ContractPort exposes the derived contract balance.
type ContractPort interface {
	Remaining(ctx context.Context, contractID int64) (float64, error)
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
	// EnforceContractBalance blocks executing an order that would push
	// the contract's paid total above its amount.
	EnforceContractBalance bool
}

// Service owns the two-tier request → order disbursement workflow.
type Service struct {
	repo      RepositoryPort
	gate      *authz.Gate
	contracts ContractPort
	notifier  NotifierPort
	approvals ApprovalsPort
	metrics   MetricsPort
	config    Config
	logger    *slog.Logger
}

// NewService constructs the disbursement service.
func NewService(repo RepositoryPort, gate *authz.Gate, contracts ContractPort, notifier NotifierPort, approvals ApprovalsPort, metrics MetricsPort, config Config, logger *slog.Logger) *Service {
	return &Service{repo: repo, gate: gate, contracts: contracts, notifier: notifier, approvals: approvals, metrics: metrics, config: config, logger: logger}
}

// CreateRequestInput describes a new disbursement request.
type CreateRequestInput struct {
	ProjectID            int64
	ContractID           *int64
	Title                string
	Amount               float64
	PaymentType          PaymentType
	CompletionPercentage float64
}

// CreateRequest records a draft disbursement request. When the request
// targets a contract, its amount is compared against the contract's
// remaining balance; exceeding it yields a warning, not a failure.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput, actor shared.Actor) (CreateRequestResult, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionDisbRequestCreate); err != nil {
		return CreateRequestResult{}, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return CreateRequestResult{}, shared.FieldFailf("title", "title is required")
	}
	if input.Amount <= 0 {
		return CreateRequestResult{}, shared.FieldFailf("amount", "must be greater than zero")
	}
	if !ValidPaymentType(input.PaymentType) {
		return CreateRequestResult{}, shared.FieldFailf("payment_type", "unknown payment type %q", input.PaymentType)
	}
	if input.CompletionPercentage < 0 || input.CompletionPercentage > 100 {
		return CreateRequestResult{}, shared.FieldFailf("completion_percentage", "must be between 0 and 100")
	}

	var warning string
	if input.ContractID != nil {
		remaining, err := s.contracts.Remaining(ctx, *input.ContractID)
		if err != nil {
			return CreateRequestResult{}, err
		}
		if input.Amount > remaining {
			warning = fmt.Sprintf("amount %.2f exceeds contract remaining balance %.2f", input.Amount, remaining)
		}
	}

	req := Request{
		ProjectID:            input.ProjectID,
		ContractID:           input.ContractID,
		Title:                strings.TrimSpace(input.Title),
		Amount:               input.Amount,
		PaymentType:          input.PaymentType,
		CompletionPercentage: input.CompletionPercentage,
		Status:               RequestDraft,
		CreatedBy:            actor.ID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateRequest(ctx, req)
		if err != nil {
			return err
		}
		req.ID = id
		return nil
	})
	if err != nil {
		return CreateRequestResult{}, err
	}
	s.observe("disbursement_request", "create", "ok")
	created, err := s.repo.GetRequest(ctx, req.ID)
	if err != nil {
		return CreateRequestResult{}, err
	}
	return CreateRequestResult{Request: created, Warning: warning}, nil
}

// SubmitRequest moves a draft request into the approval queue.
func (s *Service) SubmitRequest(ctx context.Context, id int64, actor shared.Actor) (Request, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionDisbRequestSubmit); err != nil {
		return Request{}, err
	}
	return s.transitionRequest(ctx, id, RequestDraft, RequestPending, actor, "", shared.ApprovalSubmit)
}

// ApproveRequest accepts a pending request; orders may then be raised
// from it.
func (s *Service) ApproveRequest(ctx context.Context, id int64, actor shared.Actor) (Request, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionDisbRequestApprove); err != nil {
		return Request{}, err
	}
	return s.transitionRequest(ctx, id, RequestPending, RequestApproved, actor, "", shared.ApprovalApprove)
}

// RejectRequest declines a pending request. Rejection is terminal and
// requires a reason.
func (s *Service) RejectRequest(ctx context.Context, id int64, reason string, actor shared.Actor) (Request, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionDisbRequestReject); err != nil {
		return Request{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return Request{}, shared.FieldFailf("reason", "rejection requires a reason")
	}
	return s.transitionRequest(ctx, id, RequestPending, RequestRejected, actor, reason, shared.ApprovalReject)
}

func (s *Service) transitionRequest(ctx context.Context, id int64, from, to RequestStatus, actor shared.Actor, reason string, action shared.ApprovalAction) (Request, error) {
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != from {
		s.observe("disbursement_request", string(to), "invalid")
		return Request{}, shared.Failf(shared.ErrInvalidState, "disbursement request %d is %s, expected %s", id, req.Status, from)
	}
	if !CanTransitionRequest(from, to) {
		s.observe("disbursement_request", string(to), "invalid")
		return Request{}, shared.Failf(shared.ErrInvalidState, "disbursement request %d cannot move %s → %s", id, from, to)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		applied, err := tx.UpdateRequestStatus(ctx, id, from, to, reason)
		if err != nil {
			return err
		}
		if !applied {
			return shared.Failf(shared.ErrConflict, "disbursement request %d changed concurrently", id)
		}
		return nil
	})
	if err != nil {
		s.observe("disbursement_request", string(to), "conflict")
		return Request{}, err
	}
	s.observe("disbursement_request", string(to), "ok")
	s.recordApproval(ctx, "DISB_REQUEST", id, action, actor, reason)
	switch to {
	case RequestApproved:
		s.publish(ctx, notify.KindDisbApproved, "disbursement_request", id, actor, fmt.Sprintf("disbursement request %d approved", id))
	case RequestRejected:
		s.publish(ctx, notify.KindDisbRejected, "disbursement_request", id, actor, fmt.Sprintf("disbursement request %d rejected: %s", id, reason))
	}
	return s.repo.GetRequest(ctx, id)
}

// CreateOrderInput describes a new payment order.
type CreateOrderInput struct {
	RequestID          *int64
	ProjectID          int64
	ContractID         *int64
	BeneficiaryName    string
	BeneficiaryBank    string
	BeneficiaryIBAN    string
	BeneficiaryAccount string
	PaymentMethod      PaymentMethod
	Amount             float64
}

// CreateOrder records a draft order. An order derived from a request is
// valid only while that request is approved; standalone orders are raised
// directly against a project.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput, actor shared.Actor) (Order, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionDisbOrderCreate); err != nil {
		return Order{}, err
	}
	if strings.TrimSpace(input.BeneficiaryName) == "" {
		return Order{}, shared.FieldFailf("beneficiary_name", "beneficiary name is required")
	}
	if !ValidPaymentMethod(input.PaymentMethod) {
		return Order{}, shared.FieldFailf("payment_method", "unknown payment method %q", input.PaymentMethod)
	}
	if input.Amount <= 0 {
		return Order{}, shared.FieldFailf("amount", "must be greater than zero")
	}

	order := Order{
		RequestID:          input.RequestID,
		ProjectID:          input.ProjectID,
		ContractID:         input.ContractID,
		BeneficiaryName:    strings.TrimSpace(input.BeneficiaryName),
		BeneficiaryBank:    input.BeneficiaryBank,
		BeneficiaryIBAN:    input.BeneficiaryIBAN,
		BeneficiaryAccount: input.BeneficiaryAccount,
		PaymentMethod:      input.PaymentMethod,
		Amount:             input.Amount,
		Status:             OrderDraft,
		CreatedBy:          actor.ID,
	}
	if input.RequestID != nil {
		req, err := s.repo.GetRequest(ctx, *input.RequestID)
		if err != nil {
			return Order{}, err
		}
		if req.Status != RequestApproved {
			return Order{}, shared.Failf(shared.ErrInvalidState, "disbursement request %d is %s, orders require an approved request", req.ID, req.Status)
		}
		// The order settles against the source request's contract.
		order.ProjectID = req.ProjectID
		order.ContractID = req.ContractID
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.observe("disbursement_order", "create", "ok")
	return s.repo.GetOrder(ctx, order.ID)
}

// SubmitOrder moves a draft order into the approval queue.
func (s *Service) SubmitOrder(ctx context.Context, id int64, actor shared.Actor) (Order, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionDisbOrderCreate); err != nil {
		return Order{}, err
	}
	return s.transitionOrder(ctx, id, []OrderStatus{OrderDraft}, OrderPending, actor, "", "", shared.ApprovalSubmit)
}

// ApproveOrder clears an order for execution. Draft orders may be
// approved directly.
func (s *Service) ApproveOrder(ctx context.Context, id int64, actor shared.Actor) (Order, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionDisbOrderApprove); err != nil {
		return Order{}, err
	}
	order, err := s.transitionOrder(ctx, id, []OrderStatus{OrderDraft, OrderPending}, OrderApproved, actor, "", "", shared.ApprovalApprove)
	if err != nil {
		return Order{}, err
	}
	s.publish(ctx, notify.KindDisbApproved, "disbursement_order", id, actor, fmt.Sprintf("disbursement order %d approved", id))
	return order, nil
}

// RejectOrder declines a pending order. Rejecting an approved order is
// not supported.
func (s *Service) RejectOrder(ctx context.Context, id int64, reason string, actor shared.Actor) (Order, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionDisbOrderReject); err != nil {
		return Order{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return Order{}, shared.FieldFailf("reason", "rejection requires a reason")
	}
	order, err := s.transitionOrder(ctx, id, []OrderStatus{OrderPending}, OrderRejected, actor, reason, "", shared.ApprovalReject)
	if err != nil {
		return Order{}, err
	}
	s.publish(ctx, notify.KindDisbRejected, "disbursement_order", id, actor, fmt.Sprintf("disbursement order %d rejected: %s", id, reason))
	return order, nil
}

// CancelOrder withdraws an order that has not been cleared yet. Valid
// from draft and pending; terminal. Approved orders cannot be cancelled,
// only executed.
func (s *Service) CancelOrder(ctx context.Context, id int64, reason string, actor shared.Actor) (Order, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionDisbOrderCreate); err != nil {
		return Order{}, err
	}
	return s.transitionOrder(ctx, id, []OrderStatus{OrderDraft, OrderPending}, OrderCancelled, actor, reason, "", shared.ApprovalCancel)
}

// ExecuteOrder releases the payment. Valid only from approved; terminal.
// When the order settles against a contract and balance enforcement is
// on, an execution that would overdraw the contract fails.
func (s *Service) ExecuteOrder(ctx context.Context, id int64, transactionReference string, actor shared.Actor) (Order, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionDisbOrderExecute); err != nil {
		return Order{}, err
	}
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if order.Status != OrderApproved {
		s.observe("disbursement_order", "execute", "invalid")
		return Order{}, shared.Failf(shared.ErrInvalidState, "disbursement order %d is %s, execution requires approved", id, order.Status)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Balance is checked under the contract row lock so two orders
		// against the same contract cannot both pass and overdraw it.
		if s.config.EnforceContractBalance && order.ContractID != nil {
			remaining, err := tx.ContractRemaining(ctx, *order.ContractID)
			if err != nil {
				return err
			}
			if order.Amount > remaining {
				return shared.Failf(shared.ErrValidation, "executing %.2f would overdraw contract %d, remaining %.2f", order.Amount, *order.ContractID, remaining)
			}
		}
		applied, err := tx.ExecuteOrder(ctx, id, transactionReference)
		if err != nil {
			return err
		}
		if !applied {
			return shared.Failf(shared.ErrConflict, "disbursement order %d changed concurrently", id)
		}
		// Execution settles the source request.
		if order.RequestID != nil {
			if _, err := tx.UpdateRequestStatus(ctx, *order.RequestID, RequestApproved, RequestPaid, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		outcome := "conflict"
		if errors.Is(err, shared.ErrValidation) {
			outcome = "invalid"
		}
		s.observe("disbursement_order", "execute", outcome)
		return Order{}, err
	}
	s.observe("disbursement_order", "execute", "ok")
	s.recordApproval(ctx, "DISB_ORDER", id, shared.ApprovalExecute, actor, transactionReference)
	s.publish(ctx, notify.KindDisbExecuted, "disbursement_order", id, actor, fmt.Sprintf("disbursement order %d executed", id))
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) transitionOrder(ctx context.Context, id int64, allowedFrom []OrderStatus, to OrderStatus, actor shared.Actor, reason, txRef string, action shared.ApprovalAction) (Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	from := order.Status
	ok := false
	for _, status := range allowedFrom {
		if from == status {
			ok = true
			break
		}
	}
	if !ok || !CanTransitionOrder(from, to) {
		s.observe("disbursement_order", string(to), "invalid")
		return Order{}, shared.Failf(shared.ErrInvalidState, "disbursement order %d is %s, cannot move to %s", id, from, to)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		applied, err := tx.UpdateOrderStatus(ctx, id, from, to, reason, txRef)
		if err != nil {
			return err
		}
		if !applied {
			return shared.Failf(shared.ErrConflict, "disbursement order %d changed concurrently", id)
		}
		return nil
	})
	if err != nil {
		s.observe("disbursement_order", string(to), "conflict")
		return Order{}, err
	}
	s.observe("disbursement_order", string(to), "ok")
	s.recordApproval(ctx, "DISB_ORDER", id, action, actor, reason)
	return s.repo.GetOrder(ctx, id)
}

// GetRequest returns one disbursement request.
func (s *Service) GetRequest(ctx context.Context, id int64) (Request, error) {
	return s.repo.GetRequest(ctx, id)
}

// GetOrder returns one disbursement order.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListRequestsForProject returns the project's disbursement requests.
func (s *Service) ListRequestsForProject(ctx context.Context, projectID int64) ([]Request, error) {
	return s.repo.ListRequestsForProject(ctx, projectID)
}

// ListOrdersForProject returns the project's disbursement orders.
func (s *Service) ListOrdersForProject(ctx context.Context, projectID int64) ([]Order, error) {
	return s.repo.ListOrdersForProject(ctx, projectID)
}

func (s *Service) recordApproval(ctx context.Context, module string, id int64, action shared.ApprovalAction, actor shared.Actor, note string) {
	if s.approvals == nil {
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  module,
		RefID:   shared.RefFor(module, id),
		ActorID: actor.ID,
		Action:  action,
		Note:    note,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("record disbursement approval", slog.Any("error", err))
	}
}

func (s *Service) publish(ctx context.Context, kind notify.Kind, entity string, id int64, actor shared.Actor, message string) {
	if s.notifier == nil {
		return
	}
	event := notify.Event{
		Kind:     kind,
		Entity:   entity,
		EntityID: id,
		ActorID:  actor.ID,
		Message:  message,
	}
	if err := s.notifier.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.Warn("notify publish failed", slog.Any("error", err), slog.String("kind", string(kind)))
	}
}

func (s *Service) observe(entity, action, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(entity, action, outcome)
	}
}
