package contracts

import (
	"context"
	"fmt"
	"time"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, c Contract) (int64, error)
	Get(ctx context.Context, id int64) (Contract, error)
	ListForProject(ctx context.Context, projectID int64) ([]Contract, error)
	ExecutedTotal(ctx context.Context, contractID int64) (float64, error)
}

// QuotationPort checks that the contracted request carries an accepted
// quotation.
type QuotationPort interface {
	HasAccepted(ctx context.Context, requestID int64) (bool, error)
}

// Service owns contract records and ledger queries.
type Service struct {
	repo       RepositoryPort
	gate       *authz.Gate
	quotations QuotationPort
}

// NewService constructs the contract service.
func NewService(repo RepositoryPort, gate *authz.Gate, quotations QuotationPort) *Service {
	return &Service{repo: repo, gate: gate, quotations: quotations}
}

// CreateInput describes a new contract.
type CreateInput struct {
	ProjectID      int64
	RequestID      int64
	SupplierID     int64
	QuotationID    *int64
	ContractAmount float64
	SignedAt       *time.Time
}

// Create records a contract against a request whose quotation round has
// concluded with an acceptance.
func (s *Service) Create(ctx context.Context, input CreateInput, actor shared.Actor) (Contract, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionContractManage); err != nil {
		return Contract{}, err
	}
	if input.RequestID <= 0 {
		return Contract{}, shared.FieldFailf("request_id", "request is required")
	}
	if input.SupplierID <= 0 {
		return Contract{}, shared.FieldFailf("supplier_id", "supplier is required")
	}
	if input.ContractAmount <= 0 {
		return Contract{}, shared.FieldFailf("contract_amount", "must be greater than zero")
	}
	accepted, err := s.quotations.HasAccepted(ctx, input.RequestID)
	if err != nil {
		return Contract{}, err
	}
	if !accepted {
		return Contract{}, shared.Failf(shared.ErrInvalidState, "request %d has no accepted quotation", input.RequestID)
	}

	c := Contract{
		Number:         fmt.Sprintf("CTR-%d", time.Now().UnixNano()),
		ProjectID:      input.ProjectID,
		RequestID:      input.RequestID,
		SupplierID:     input.SupplierID,
		QuotationID:    input.QuotationID,
		ContractAmount: input.ContractAmount,
		SignedAt:       input.SignedAt,
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return Contract{}, err
	}
	return s.repo.Get(ctx, id)
}

// Get returns the contract with its derived payment position.
func (s *Service) Get(ctx context.Context, id int64, actor shared.Actor) (WithLedger, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionContractView); err != nil {
		return WithLedger{}, err
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return WithLedger{}, err
	}
	ledger, err := s.ledger(ctx, c)
	if err != nil {
		return WithLedger{}, err
	}
	return WithLedger{Contract: c, Ledger: ledger}, nil
}

// Ledger recomputes the payment position for one contract.
func (s *Service) Ledger(ctx context.Context, id int64, actor shared.Actor) (Ledger, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionContractView); err != nil {
		return Ledger{}, err
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Ledger{}, err
	}
	return s.ledger(ctx, c)
}

// ListForProject returns the project's contracts with ledgers attached.
func (s *Service) ListForProject(ctx context.Context, projectID int64, actor shared.Actor) ([]WithLedger, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionContractView); err != nil {
		return nil, err
	}
	items, err := s.repo.ListForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]WithLedger, 0, len(items))
	for _, c := range items {
		ledger, err := s.ledger(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, WithLedger{Contract: c, Ledger: ledger})
	}
	return out, nil
}

// Remaining returns the contract's unconsumed balance. The disbursement
// engine consults it before executing an order.
func (s *Service) Remaining(ctx context.Context, id int64) (float64, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	ledger, err := s.ledger(ctx, c)
	if err != nil {
		return 0, err
	}
	return ledger.RemainingAmount, nil
}

func (s *Service) ledger(ctx context.Context, c Contract) (Ledger, error) {
	total, err := s.repo.ExecutedTotal(ctx, c.ID)
	if err != nil {
		return Ledger{}, err
	}
	return DeriveLedger(c.ContractAmount, total), nil
}
