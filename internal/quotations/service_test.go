package quotations

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/boq"
	"github.com/manarah-platform/manarah/internal/requests"
	"github.com/manarah-platform/manarah/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	txMu       sync.Mutex
	nextID     int64
	quotations map[int64]*Quotation
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, quotations: map[int64]*Quotation{}}
}

// WithTx serializes closures the way the request row lock does in SQL.
func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, m)
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return Quotation{}, shared.Failf(shared.ErrNotFound, "quotation %d not found", id)
	}
	return *q, nil
}

func (m *memoryRepo) ListForRequest(_ context.Context, requestID int64) ([]Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Quotation
	for _, q := range m.quotations {
		if q.RequestID == requestID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (m *memoryRepo) CountAccepted(_ context.Context, requestID int64, excludeID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, q := range m.quotations {
		if q.RequestID == requestID && q.Status == StatusAccepted && q.ID != excludeID {
			count++
		}
	}
	return count, nil
}

func (m *memoryRepo) CreateQuotation(_ context.Context, q Quotation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = m.nextID
	m.nextID++
	q.Items = nil
	m.quotations[q.ID] = &q
	return q.ID, nil
}

func (m *memoryRepo) InsertItem(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[item.QuotationID]
	if !ok {
		return shared.Failf(shared.ErrNotFound, "quotation %d not found", item.QuotationID)
	}
	q.Items = append(q.Items, item)
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id int64, from, to Status, approvedAmount *float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return false, shared.Failf(shared.ErrNotFound, "quotation %d not found", id)
	}
	if q.Status != from {
		return false, nil
	}
	q.Status = to
	if approvedAmount != nil {
		amount := *approvedAmount
		q.ApprovedAmount = &amount
	}
	q.Version++
	return true, nil
}

func (m *memoryRepo) SaveNegotiation(_ context.Context, id int64, amount float64, notes string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return false, shared.Failf(shared.ErrNotFound, "quotation %d not found", id)
	}
	if q.Status != StatusNegotiating {
		return false, nil
	}
	q.NegotiatedAmount = &amount
	q.NegotiationNotes = notes
	q.Version++
	return true, nil
}

type stubRequests struct {
	request requests.Request
}

func (s *stubRequests) Get(_ context.Context, id int64) (requests.Request, error) {
	if id != s.request.ID {
		return requests.Request{}, shared.Failf(shared.ErrNotFound, "request %d not found", id)
	}
	return s.request, nil
}

type stubBOQ struct {
	items []boq.Item
}

func (s *stubBOQ) ListForRequest(context.Context, int64) ([]boq.Item, error) {
	return s.items, nil
}

var (
	officer = shared.Actor{ID: 7, Role: string(authz.RoleFinancialOfficer)}
	engineer = shared.Actor{ID: 8, Role: string(authz.RoleFieldEngineer)}
)

func newTestService(t *testing.T, config Config) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	reqPort := &stubRequests{request: requests.Request{
		ID:           42,
		Number:       "REQ-42",
		CurrentStage: requests.StageFinancialEval,
		Status:       requests.StatusInProgress,
	}}
	boqPort := &stubBOQ{items: []boq.Item{
		{ID: 1, RequestID: 42, ItemName: "concrete works", Quantity: 100, UnitPrice: 50, TotalPrice: 5000},
	}}
	return NewService(repo, authz.NewGate(), reqPort, boqPort, nil, nil, nil, config, nil), repo
}

func createPending(t *testing.T, svc *Service, discount Discount, includesTax bool, taxRate float64) Quotation {
	t.Helper()
	q, err := svc.Create(context.Background(), CreateInput{
		RequestID:   42,
		SupplierID:  3,
		Items:       []ItemInput{{BOQItemID: 1, Quantity: 100, UnitPrice: 50}},
		Discount:    discount,
		IncludesTax: includesTax,
		TaxRate:     taxRate,
	}, officer)
	require.NoError(t, err)
	return q
}

func TestComputeArithmetic(t *testing.T) {
	items := []Item{{Quantity: 100, UnitPrice: 50}}
	cases := []struct {
		name        string
		discount    Discount
		includesTax bool
		taxRate     float64
		want        Totals
	}{
		{
			name:     "no discount no tax",
			discount: NoDiscount(),
			want:     Totals{TotalAmount: 5000, FinalAmount: 5000},
		},
		{
			name:        "percentage discount with tax",
			discount:    Percentage(10),
			includesTax: true,
			taxRate:     15,
			want:        Totals{TotalAmount: 5000, DiscountAmount: 500, TaxAmount: 675, FinalAmount: 5175},
		},
		{
			name:     "fixed discount no tax",
			discount: Fixed(750),
			want:     Totals{TotalAmount: 5000, DiscountAmount: 750, FinalAmount: 4250},
		},
		{
			name:        "fixed discount with tax",
			discount:    Fixed(1000),
			includesTax: true,
			taxRate:     15,
			want:        Totals{TotalAmount: 5000, DiscountAmount: 1000, TaxAmount: 600, FinalAmount: 4600},
		},
		{
			name:        "tax rate ignored when tax excluded",
			discount:    Percentage(10),
			includesTax: false,
			taxRate:     15,
			want:        Totals{TotalAmount: 5000, DiscountAmount: 500, FinalAmount: 4500},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Compute(items, tc.discount, tc.includesTax, tc.taxRate))
		})
	}
}

func TestComputeRoundsPerLine(t *testing.T) {
	// Each line total is rounded before summing: 3 × 33.335 rounds to
	// 100.01 per line, not 100.005 summed then rounded.
	items := []Item{
		{Quantity: 3, UnitPrice: 33.335},
		{Quantity: 3, UnitPrice: 33.335},
	}
	totals := Compute(items, NoDiscount(), false, 0)
	require.Equal(t, 200.02, totals.TotalAmount)
}

func TestCreateDerivesAmounts(t *testing.T) {
	svc, _ := newTestService(t, Config{EnforceSingleAccepted: true})
	q := createPending(t, svc, Percentage(10), true, 15)

	require.Equal(t, StatusPending, q.Status)
	require.Equal(t, 5000.0, q.TotalAmount)
	require.Equal(t, 500.0, q.DiscountAmount)
	require.Equal(t, 675.0, q.TaxAmount)
	require.Equal(t, 5175.0, q.FinalAmount)
	require.Len(t, q.Items, 1)
	require.Equal(t, 5000.0, q.Items[0].TotalPrice)
}

func TestCreateRejectsUnpricedBOQ(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	boqPort := svc.boq.(*stubBOQ)
	boqPort.items = append(boqPort.items,
		boq.Item{ID: 2, RequestID: 42, ItemName: "tiling", Quantity: 10},
		boq.Item{ID: 3, RequestID: 42, ItemName: "paint", Quantity: 5},
	)

	_, err := svc.Create(context.Background(), CreateInput{
		RequestID:  42,
		SupplierID: 3,
		Items:      []ItemInput{{BOQItemID: 1, Quantity: 100, UnitPrice: 50}},
	}, officer)
	require.ErrorIs(t, err, shared.ErrValidation)
	fail, ok := shared.AsFail(err)
	require.True(t, ok)
	require.Equal(t, 2, fail.Count)
}

func TestCreateRejectsForeignBOQItem(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	_, err := svc.Create(context.Background(), CreateInput{
		RequestID:  42,
		SupplierID: 3,
		Items:      []ItemInput{{BOQItemID: 99, Quantity: 1, UnitPrice: 10}},
	}, officer)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRequiresFinancialEvalStage(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	svc.requests.(*stubRequests).request.CurrentStage = requests.StageFieldVisit

	_, err := svc.Create(context.Background(), CreateInput{
		RequestID:  42,
		SupplierID: 3,
		Items:      []ItemInput{{BOQItemID: 1, Quantity: 1, UnitPrice: 10}},
	}, officer)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCreateForbiddenRole(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	_, err := svc.Create(context.Background(), CreateInput{
		RequestID:  42,
		SupplierID: 3,
		Items:      []ItemInput{{BOQItemID: 1, Quantity: 1, UnitPrice: 10}},
	}, engineer)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestNegotiationLifecycle(t *testing.T) {
	svc, _ := newTestService(t, Config{EnforceSingleAccepted: true})
	ctx := context.Background()
	q := createPending(t, svc, Percentage(10), true, 15)

	q, err := svc.StartNegotiation(ctx, q.ID, officer)
	require.NoError(t, err)
	require.Equal(t, StatusNegotiating, q.Status)

	q, err = svc.SaveNegotiationResult(ctx, q.ID, 4900, "supplier agreed to drop delivery fee", officer)
	require.NoError(t, err)
	require.Equal(t, StatusNegotiating, q.Status)
	require.NotNil(t, q.NegotiatedAmount)
	require.Equal(t, 4900.0, *q.NegotiatedAmount)

	// A second counter-offer overwrites the first.
	q, err = svc.SaveNegotiationResult(ctx, q.ID, 4800, "final round", officer)
	require.NoError(t, err)
	require.Equal(t, 4800.0, *q.NegotiatedAmount)

	q, err = svc.ApproveAfterNegotiation(ctx, q.ID, true, officer)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, q.Status)
	require.NotNil(t, q.ApprovedAmount)
	require.Equal(t, 4800.0, *q.ApprovedAmount)
}

func TestApproveAfterNegotiationKeepsFinalAmount(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	q := createPending(t, svc, NoDiscount(), false, 0)

	_, err := svc.StartNegotiation(ctx, q.ID, officer)
	require.NoError(t, err)
	_, err = svc.SaveNegotiationResult(ctx, q.ID, 4500, "", officer)
	require.NoError(t, err)

	q, err = svc.ApproveAfterNegotiation(ctx, q.ID, false, officer)
	require.NoError(t, err)
	require.Equal(t, 5000.0, *q.ApprovedAmount)
}

func TestDirectApproveUsesFinalAmount(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	q := createPending(t, svc, Percentage(10), true, 15)

	q, err := svc.Approve(context.Background(), q.ID, officer)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, q.Status)
	require.Equal(t, 5175.0, *q.ApprovedAmount)
}

func TestNegotiationResultRequiresNegotiating(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	q := createPending(t, svc, NoDiscount(), false, 0)

	_, err := svc.SaveNegotiationResult(context.Background(), q.ID, 4500, "", officer)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestIllegalTransitions(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	accepted := createPending(t, svc, NoDiscount(), false, 0)
	_, err := svc.Approve(ctx, accepted.ID, officer)
	require.NoError(t, err)

	rejected := createPending(t, svc, NoDiscount(), false, 0)
	_, err = svc.Reject(ctx, rejected.ID, "too expensive", officer)
	require.NoError(t, err)

	cases := []struct {
		name string
		call func() error
	}{
		{"negotiate accepted", func() error {
			_, err := svc.StartNegotiation(ctx, accepted.ID, officer)
			return err
		}},
		{"reject accepted", func() error {
			_, err := svc.Reject(ctx, accepted.ID, "late", officer)
			return err
		}},
		{"approve rejected", func() error {
			_, err := svc.Approve(ctx, rejected.ID, officer)
			return err
		}},
		{"negotiate rejected", func() error {
			_, err := svc.StartNegotiation(ctx, rejected.ID, officer)
			return err
		}},
		{"cancel approval of rejected", func() error {
			_, err := svc.CancelApproval(ctx, rejected.ID, officer)
			return err
		}},
		{"reactivate accepted", func() error {
			_, err := svc.Reactivate(ctx, accepted.ID, officer)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.call(), shared.ErrInvalidState)
		})
	}
}

func TestRejectReactivateCycle(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	q := createPending(t, svc, NoDiscount(), false, 0)

	for i := 0; i < 3; i++ {
		var err error
		q, err = svc.Reject(ctx, q.ID, "revise pricing", officer)
		require.NoError(t, err)
		require.Equal(t, StatusRejected, q.Status)

		q, err = svc.Reactivate(ctx, q.ID, officer)
		require.NoError(t, err)
		require.Equal(t, StatusPending, q.Status)
	}
}

func TestCancelApprovalReturnsToPending(t *testing.T) {
	svc, _ := newTestService(t, Config{EnforceSingleAccepted: true})
	ctx := context.Background()
	first := createPending(t, svc, NoDiscount(), false, 0)
	second := createPending(t, svc, NoDiscount(), false, 0)

	_, err := svc.Approve(ctx, first.ID, officer)
	require.NoError(t, err)

	// The second quotation cannot be accepted while the first holds the slot.
	_, err = svc.Approve(ctx, second.ID, officer)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	q, err := svc.CancelApproval(ctx, first.ID, officer)
	require.NoError(t, err)
	require.Equal(t, StatusPending, q.Status)

	_, err = svc.Approve(ctx, second.ID, officer)
	require.NoError(t, err)
}

func TestSingleAcceptedDisabled(t *testing.T) {
	svc, _ := newTestService(t, Config{EnforceSingleAccepted: false})
	ctx := context.Background()
	first := createPending(t, svc, NoDiscount(), false, 0)
	second := createPending(t, svc, NoDiscount(), false, 0)

	_, err := svc.Approve(ctx, first.ID, officer)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, second.ID, officer)
	require.NoError(t, err)

	has, err := svc.HasAccepted(ctx, 42)
	require.NoError(t, err)
	require.True(t, has)
}

func TestConcurrentApproveSingleWinner(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	q := createPending(t, svc, NoDiscount(), false, 0)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Approve(context.Background(), q.ID, officer)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		losses++
		require.True(t,
			errors.Is(err, shared.ErrConflict) || errors.Is(err, shared.ErrInvalidState),
			"loser must fail with conflict or invalid state, got %v", err)
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, losses)

	final, err := svc.Get(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, final.Status)
}

func TestConcurrentApproveSiblingsSingleWinner(t *testing.T) {
	svc, _ := newTestService(t, Config{EnforceSingleAccepted: true})
	first := createPending(t, svc, NoDiscount(), false, 0)
	second := createPending(t, svc, NoDiscount(), false, 0)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []int64{first.ID, second.ID} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.Approve(context.Background(), id, officer)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		losses++
		require.ErrorIs(t, err, shared.ErrInvalidState)
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, losses)

	accepted := 0
	for _, q := range []Quotation{first, second} {
		got, err := svc.Get(context.Background(), q.ID)
		require.NoError(t, err)
		if got.Status == StatusAccepted {
			accepted++
		}
	}
	require.Equal(t, 1, accepted)
}

func TestImportPricingPositionalMapping(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	svc.boq.(*stubBOQ).items = []boq.Item{
		{ID: 1, RequestID: 42, ItemName: "concrete", Quantity: 100, UnitPrice: 50},
		{ID: 2, RequestID: 42, ItemName: "rebar", Quantity: 40, UnitPrice: 80},
		{ID: 3, RequestID: 42, ItemName: "formwork", Quantity: 25, UnitPrice: 30},
	}
	sheet := strings.Join([]string{
		"Item\tDescription\tUnit Price",
		"concrete\tC30 ready mix\t1,250.50 SAR",
		"rebar\t16mm deformed\t0",
		"formwork\tplywood\t95.75",
	}, "\n")

	result, err := svc.ImportPricing(context.Background(), 42, strings.NewReader(sheet), officer)
	require.NoError(t, err)
	require.Equal(t, 1, result.SkippedCount)
	require.Len(t, result.Items, 2)

	require.Equal(t, int64(1), result.Items[0].BOQItemID)
	require.Equal(t, 100.0, result.Items[0].Quantity)
	require.Equal(t, 1250.50, result.Items[0].UnitPrice)

	require.Equal(t, int64(3), result.Items[1].BOQItemID)
	require.Equal(t, 95.75, result.Items[1].UnitPrice)
}

func TestImportPricingIgnoresSurplusRows(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	sheet := "Item\tPrice\nconcrete\t50\nextra\t10\nextra2\t20\n"

	result, err := svc.ImportPricing(context.Background(), 42, strings.NewReader(sheet), officer)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, 2, result.SkippedCount)
}
