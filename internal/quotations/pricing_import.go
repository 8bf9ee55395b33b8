package quotations

import (
	"context"
	"io"
	"strconv"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/shared"
	"github.com/manarah-platform/manarah/internal/tabular"
)

// PricingImport is the outcome of a bulk supplier price sheet import.
type PricingImport struct {
	Items        []ItemInput `json:"items"`
	SkippedCount int         `json:"skipped_count"`
}

// ImportPricing parses a supplier price sheet and maps its rows to the
// request's BOQ items positionally: the header row is discarded and data
// row N prices BOQ item N. The last cell of each row carries the unit
// price; cells are sanitized before parsing and rows whose parsed price
// is not positive are silently skipped and counted.
func (s *Service) ImportPricing(ctx context.Context, requestID int64, src io.Reader, actor shared.Actor) (PricingImport, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionQuotationImportPricing); err != nil {
		return PricingImport{}, err
	}
	boqItems, err := s.boq.ListForRequest(ctx, requestID)
	if err != nil {
		return PricingImport{}, err
	}
	if len(boqItems) == 0 {
		return PricingImport{}, shared.Failf(shared.ErrValidation, "request %d has no BOQ items to price", requestID)
	}
	rows, err := tabular.Rows(src)
	if err != nil {
		return PricingImport{}, shared.Failf(shared.ErrValidation, "unreadable price sheet: %v", err)
	}

	var result PricingImport
	for i, row := range rows {
		if i >= len(boqItems) {
			result.SkippedCount += len(rows) - i
			break
		}
		price := parsePrice(row)
		if price <= 0 {
			result.SkippedCount++
			continue
		}
		item := boqItems[i]
		result.Items = append(result.Items, ItemInput{
			BOQItemID: item.ID,
			Quantity:  item.Quantity,
			UnitPrice: price,
		})
	}
	return result, nil
}

func parsePrice(row []string) float64 {
	for i := len(row) - 1; i >= 0; i-- {
		cell := tabular.SanitizeNumber(row[i])
		if cell == "" {
			continue
		}
		price, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			continue
		}
		return price
	}
	return 0
}
