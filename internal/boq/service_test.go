package boq

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/requests"
	"github.com/manarah-platform/manarah/internal/shared"
)

type memoryBOQRepo struct {
	items  map[int64]Item
	nextID int64
}

type memoryBOQTx struct {
	repo *memoryBOQRepo
}

func newMemoryBOQRepo() *memoryBOQRepo {
	return &memoryBOQRepo{items: make(map[int64]Item)}
}

func (r *memoryBOQRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryBOQTx{repo: r})
}

func (r *memoryBOQRepo) Get(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, shared.Failf(shared.ErrNotFound, "boq item %d not found", id)
	}
	return item, nil
}

func (r *memoryBOQRepo) ListForRequest(ctx context.Context, requestID int64) ([]Item, error) {
	var out []Item
	for id := int64(1); id <= r.nextID; id++ {
		if item, ok := r.items[id]; ok && item.RequestID == requestID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memoryBOQRepo) TotalForRequest(ctx context.Context, requestID int64) (float64, error) {
	var total float64
	for _, item := range r.items {
		if item.RequestID == requestID {
			total += item.TotalPrice
		}
	}
	return Round2(total), nil
}

func (tx *memoryBOQTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.items[item.ID] = item
	return item.ID, nil
}

func (tx *memoryBOQTx) UpdateItem(ctx context.Context, item Item) error {
	if _, ok := tx.repo.items[item.ID]; !ok {
		return shared.Failf(shared.ErrNotFound, "boq item %d not found", item.ID)
	}
	tx.repo.items[item.ID] = item
	return nil
}

func (tx *memoryBOQTx) DeleteItem(ctx context.Context, id int64) error {
	if _, ok := tx.repo.items[id]; !ok {
		return shared.Failf(shared.ErrNotFound, "boq item %d not found", id)
	}
	delete(tx.repo.items, id)
	return nil
}

type stubRequests struct {
	stage  requests.Stage
	status requests.Status
}

func (s stubRequests) Get(ctx context.Context, id int64) (requests.Request, error) {
	return requests.Request{ID: id, Number: "REQ-1", CurrentStage: s.stage, Status: s.status}, nil
}

var financeActor = shared.Actor{ID: 6, Role: string(authz.RoleFinancialOfficer)}

func newTestService(repo *memoryBOQRepo, stage requests.Stage) *Service {
	return NewService(repo, authz.NewGate(), stubRequests{stage: stage, status: requests.StatusInProgress})
}

func TestAddItemDerivesTotal(t *testing.T) {
	repo := newMemoryBOQRepo()
	svc := newTestService(repo, requests.StageFinancialEval)

	item, err := svc.AddItem(context.Background(), 10, ItemInput{
		Category:  CategoryCivil,
		ItemName:  "Cement",
		Unit:      UnitTon,
		Quantity:  100,
		UnitPrice: 50,
	}, financeActor)
	require.NoError(t, err)
	require.Equal(t, float64(5000), item.TotalPrice)
	require.Equal(t, int64(10), item.RequestID)
}

func TestAddItemValidation(t *testing.T) {
	svc := newTestService(newMemoryBOQRepo(), requests.StageFinancialEval)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, 10, ItemInput{ItemName: "", Quantity: 1}, financeActor)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.AddItem(ctx, 10, ItemInput{ItemName: "Sand", Quantity: 0}, financeActor)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.AddItem(ctx, 10, ItemInput{ItemName: "Sand", Quantity: 1, UnitPrice: -2}, financeActor)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestEditGatedOnFinancialStage(t *testing.T) {
	svc := newTestService(newMemoryBOQRepo(), requests.StageTechnicalEval)

	_, err := svc.AddItem(context.Background(), 10, ItemInput{ItemName: "Sand", Quantity: 1}, financeActor)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestEditForbiddenRole(t *testing.T) {
	svc := newTestService(newMemoryBOQRepo(), requests.StageFinancialEval)
	requester := shared.Actor{ID: 1, Role: string(authz.RoleRequester)}

	_, err := svc.AddItem(context.Background(), 10, ItemInput{ItemName: "Sand", Quantity: 1}, requester)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDeleteItemKeepsRequestItems(t *testing.T) {
	repo := newMemoryBOQRepo()
	svc := newTestService(repo, requests.StageFinancialEval)
	ctx := context.Background()

	first, err := svc.AddItem(ctx, 10, ItemInput{ItemName: "Cement", Quantity: 2, UnitPrice: 100}, financeActor)
	require.NoError(t, err)
	second, err := svc.AddItem(ctx, 10, ItemInput{ItemName: "Sand", Quantity: 4, UnitPrice: 25}, financeActor)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(ctx, first.ID, financeActor))

	items, err := svc.ListForRequest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, second.ID, items[0].ID)
}

func TestImportPartialSuccess(t *testing.T) {
	repo := newMemoryBOQRepo()
	svc := newTestService(repo, requests.StageFinancialEval)

	input := "\uFEFFCategory\tItem\tDescription\tUnit\tQty\tPrice\n" +
		"civil\tCement\tOPC 42.5\tton\t100\t250.00\n" +
		"civil\t\tmissing name\tton\t5\t10\n" +
		"civil\tSand\twashed\tm3\t0\t30\n" +
		"electrical\tCable\tXLPE\tm\t40\t12.5\n"
	result, err := svc.Import(context.Background(), 10, strings.NewReader(input), financeActor)
	require.NoError(t, err)
	require.Equal(t, 2, result.AddedCount)
	require.Equal(t, 2, result.ErrorCount)
	require.Len(t, result.Errors, 2)

	total, err := svc.Total(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 100*250.0+40*12.5, total)
}

func TestImportSanitizesNumbers(t *testing.T) {
	repo := newMemoryBOQRepo()
	svc := newTestService(repo, requests.StageFinancialEval)

	input := "h\nfinishing\tPaint\t\tpiece\t10\t1,250.50 SAR\n"
	result, err := svc.Import(context.Background(), 10, strings.NewReader(input), financeActor)
	require.NoError(t, err)
	require.Equal(t, 1, result.AddedCount)

	items, err := svc.ListForRequest(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1250.50, items[0].UnitPrice)
	require.Equal(t, 12505.0, items[0].TotalPrice)
}
