package reports

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/manarah-platform/manarah/internal/boq"
	"github.com/manarah-platform/manarah/internal/disbursement"
	"github.com/manarah-platform/manarah/internal/quotations"
	"github.com/manarah-platform/manarah/internal/requests"
)

func TestWriteBOQSheet(t *testing.T) {
	var buf bytes.Buffer
	req := requests.Request{ID: 42, Number: "REQ-42"}
	items := []boq.Item{
		{RequestID: 42, Category: boq.CategoryCivil, ItemName: "أعمال الخرسانة", Unit: boq.UnitCubicMeter, Quantity: 100, UnitPrice: 50, TotalPrice: 5000},
		{RequestID: 42, Category: boq.CategoryElectrical, ItemName: "تمديدات كهربائية", Unit: boq.UnitLumpSum, Quantity: 1, UnitPrice: 1250.5, TotalPrice: 1250.5},
	}
	require.NoError(t, WriteBOQSheet(&buf, req, items))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}), "export must start with a UTF-8 BOM")

	text := string(out)
	require.Contains(t, text, "أعمال الخرسانة")
	require.Contains(t, text, "5000.00")
	require.Contains(t, text, "6250.50") // grand total row
	lines := strings.Split(strings.TrimSpace(text), "\r\n")
	require.Len(t, lines, 4) // header + 2 items + total
}

func TestWriteQuotationComparison(t *testing.T) {
	var buf bytes.Buffer
	req := requests.Request{ID: 42, Number: "REQ-42"}
	negotiated := 4800.0
	approved := 4800.0
	items := []quotations.Quotation{
		{ID: 1, SupplierID: 3, Status: quotations.StatusAccepted, TotalAmount: 5000, DiscountAmount: 500, TaxAmount: 675, FinalAmount: 5175, NegotiatedAmount: &negotiated, ApprovedAmount: &approved},
		{ID: 2, SupplierID: 4, Status: quotations.StatusRejected, TotalAmount: 6000, FinalAmount: 6000},
	}
	require.NoError(t, WriteQuotationComparison(&buf, req, items))

	text := buf.String()
	require.Contains(t, text, "accepted")
	require.Contains(t, text, "4800.00")
	require.Contains(t, text, "5175.00")
	// The rejected quotation has no negotiated or approved amount.
	lines := strings.Split(strings.TrimSpace(text), "\r\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasSuffix(lines[2], ",,"))
}

func TestBuildVoucherSpellsAmount(t *testing.T) {
	executed := time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)
	order := disbursement.Order{
		ID:                   9,
		ProjectID:            1,
		BeneficiaryName:      "acme contracting",
		PaymentMethod:        disbursement.MethodBankTransfer,
		Amount:               5175,
		Status:               disbursement.OrderExecuted,
		TransactionReference: "TRX-2024-0091",
		ExecutedAt:           &executed,
	}
	voucher := BuildVoucher(order, time.Now())
	require.Equal(t, 5175.0, voucher.Amount)
	require.Contains(t, voucher.AmountInWords, "فقط")
	require.Contains(t, voucher.AmountInWords, "خمسة آلاف")
	require.Contains(t, voucher.AmountInWords, "لا غير")
}
