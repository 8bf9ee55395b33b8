package reports

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/manarah-platform/manarah/internal/boq"
	"github.com/manarah-platform/manarah/internal/quotations"
	"github.com/manarah-platform/manarah/internal/requests"
)

// utf8BOM prefixes every export so spreadsheet tools detect the
// encoding; the Arabic item names are unreadable without it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func newWriter(w io.Writer) (*bufio.Writer, *csv.Writer, error) {
	buf := bufio.NewWriter(w)
	if _, err := buf.Write(utf8BOM); err != nil {
		return nil, nil, err
	}
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return buf, writer, nil
}

func formatDecimal(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// WriteBOQSheet exports a request's bill of quantities.
func WriteBOQSheet(w io.Writer, req requests.Request, items []boq.Item) error {
	buf, writer, err := newWriter(w)
	if err != nil {
		return err
	}
	header := []string{"Request", "Category", "Item", "Description", "Unit", "Quantity", "Unit Price", "Total"}
	if err := writer.Write(header); err != nil {
		return err
	}
	var total float64
	for _, item := range items {
		total += item.TotalPrice
		row := []string{
			req.Number,
			string(item.Category),
			item.ItemName,
			item.Description,
			string(item.Unit),
			formatDecimal(item.Quantity),
			formatDecimal(item.UnitPrice),
			formatDecimal(item.TotalPrice),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"", "", "", "", "", "", "Total", formatDecimal(boq.Round2(total))}); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buf.Flush()
}

// WriteQuotationComparison exports the request's quotations side by side
// for the selection committee.
func WriteQuotationComparison(w io.Writer, req requests.Request, items []quotations.Quotation) error {
	buf, writer, err := newWriter(w)
	if err != nil {
		return err
	}
	header := []string{"Request", "Quotation", "Supplier", "Status", "Total", "Discount", "Tax", "Final", "Negotiated", "Approved"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, q := range items {
		negotiated := ""
		if q.NegotiatedAmount != nil {
			negotiated = formatDecimal(*q.NegotiatedAmount)
		}
		approved := ""
		if q.ApprovedAmount != nil {
			approved = formatDecimal(*q.ApprovedAmount)
		}
		row := []string{
			req.Number,
			fmt.Sprintf("%d", q.ID),
			fmt.Sprintf("%d", q.SupplierID),
			string(q.Status),
			formatDecimal(q.TotalAmount),
			formatDecimal(q.DiscountAmount),
			formatDecimal(q.TaxAmount),
			formatDecimal(q.FinalAmount),
			negotiated,
			approved,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buf.Flush()
}
