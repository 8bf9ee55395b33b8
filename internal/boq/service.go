package boq

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/requests"
	"github.com/manarah-platform/manarah/internal/shared"
	"github.com/manarah-platform/manarah/internal/tabular"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Item, error)
	ListForRequest(ctx context.Context, requestID int64) ([]Item, error)
	TotalForRequest(ctx context.Context, requestID int64) (float64, error)
}

// RequestPort exposes the owning request's pipeline position.
type RequestPort interface {
	Get(ctx context.Context, id int64) (requests.Request, error)
}

// Service owns BOQ line items and their monetary total.
type Service struct {
	repo     RepositoryPort
	gate     *authz.Gate
	requests RequestPort
}

// NewService constructs the BOQ service.
func NewService(repo RepositoryPort, gate *authz.Gate, reqs RequestPort) *Service {
	return &Service{repo: repo, gate: gate, requests: reqs}
}

// ItemInput describes one line item payload.
type ItemInput struct {
	Category    Category
	ItemName    string
	Description string
	Unit        Unit
	Quantity    float64
	UnitPrice   float64
}

func (s *Service) guardEditable(ctx context.Context, requestID int64, actor shared.Actor) error {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionBOQEdit); err != nil {
		return err
	}
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.CurrentStage != requests.StageFinancialEval {
		return shared.Failf(shared.ErrInvalidState, "request %s is in %s, BOQ editable only during financial evaluation", req.Number, req.CurrentStage)
	}
	if req.Status.Terminal() {
		return shared.Failf(shared.ErrInvalidState, "request %s is %s", req.Number, req.Status)
	}
	return nil
}

func validateItem(input ItemInput) error {
	if input.ItemName == "" {
		return shared.FieldFailf("item_name", "item name is required")
	}
	if input.Quantity <= 0 {
		return shared.FieldFailf("quantity", "must be greater than zero")
	}
	if input.UnitPrice < 0 {
		return shared.FieldFailf("unit_price", "must not be negative")
	}
	return nil
}

// AddItem appends one line to the request's bill of quantities.
func (s *Service) AddItem(ctx context.Context, requestID int64, input ItemInput, actor shared.Actor) (Item, error) {
	if err := s.guardEditable(ctx, requestID, actor); err != nil {
		return Item{}, err
	}
	if err := validateItem(input); err != nil {
		return Item{}, err
	}
	item := Item{
		RequestID:   requestID,
		Category:    input.Category,
		ItemName:    input.ItemName,
		Description: input.Description,
		Unit:        input.Unit,
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
		TotalPrice:  LineTotal(input.Quantity, input.UnitPrice),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return s.repo.Get(ctx, item.ID)
}

// UpdateItem replaces the mutable fields of one line.
func (s *Service) UpdateItem(ctx context.Context, itemID int64, input ItemInput, actor shared.Actor) (Item, error) {
	existing, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return Item{}, err
	}
	if err := s.guardEditable(ctx, existing.RequestID, actor); err != nil {
		return Item{}, err
	}
	if err := validateItem(input); err != nil {
		return Item{}, err
	}
	existing.Category = input.Category
	existing.ItemName = input.ItemName
	existing.Description = input.Description
	existing.Unit = input.Unit
	existing.Quantity = input.Quantity
	existing.UnitPrice = input.UnitPrice
	existing.TotalPrice = LineTotal(input.Quantity, input.UnitPrice)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateItem(ctx, existing)
	})
	if err != nil {
		return Item{}, err
	}
	return s.repo.Get(ctx, itemID)
}

// DeleteItem removes one line. The owning request is never touched.
func (s *Service) DeleteItem(ctx context.Context, itemID int64, actor shared.Actor) error {
	existing, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if err := s.guardEditable(ctx, existing.RequestID, actor); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteItem(ctx, itemID)
	})
}

// ListForRequest returns all lines owned by the request.
func (s *Service) ListForRequest(ctx context.Context, requestID int64) ([]Item, error) {
	if _, err := s.requests.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return s.repo.ListForRequest(ctx, requestID)
}

// Total returns the monetary total of the request's bill of quantities.
func (s *Service) Total(ctx context.Context, requestID int64) (float64, error) {
	if _, err := s.requests.Get(ctx, requestID); err != nil {
		return 0, err
	}
	return s.repo.TotalForRequest(ctx, requestID)
}

// Import parses a spreadsheet export and adds its rows as line items.
// Rows are validated individually; the batch is not atomic and partial
// success is reported through the result counts.
func (s *Service) Import(ctx context.Context, requestID int64, src io.Reader, actor shared.Actor) (ImportResult, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionBOQImport); err != nil {
		return ImportResult{}, err
	}
	if err := s.guardEditable(ctx, requestID, actor); err != nil {
		return ImportResult{}, err
	}
	rows, err := tabular.Rows(src)
	if err != nil {
		return ImportResult{}, shared.Failf(shared.ErrValidation, "unreadable import file: %v", err)
	}
	var result ImportResult
	for i, row := range rows {
		input := ItemInput{
			Category:    Category(tabular.Cell(row, 0)),
			ItemName:    tabular.Cell(row, 1),
			Description: tabular.Cell(row, 2),
			Unit:        Unit(tabular.Cell(row, 3)),
		}
		input.Quantity, _ = strconv.ParseFloat(tabular.SanitizeNumber(tabular.Cell(row, 4)), 64)
		input.UnitPrice, _ = strconv.ParseFloat(tabular.SanitizeNumber(tabular.Cell(row, 5)), 64)
		if err := validateItem(input); err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}
		item := Item{
			RequestID:   requestID,
			Category:    input.Category,
			ItemName:    input.ItemName,
			Description: input.Description,
			Unit:        input.Unit,
			Quantity:    input.Quantity,
			UnitPrice:   input.UnitPrice,
			TotalPrice:  LineTotal(input.Quantity, input.UnitPrice),
		}
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			_, err := tx.InsertItem(ctx, item)
			return err
		})
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}
		result.AddedCount++
	}
	return result, nil
}
