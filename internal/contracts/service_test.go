package contracts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/shared"
)

type memoryRepo struct {
	nextID    int64
	contracts map[int64]Contract
	executed  map[int64]float64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, contracts: map[int64]Contract{}, executed: map[int64]float64{}}
}

func (m *memoryRepo) Create(_ context.Context, c Contract) (int64, error) {
	c.ID = m.nextID
	m.nextID++
	m.contracts[c.ID] = c
	return c.ID, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Contract, error) {
	c, ok := m.contracts[id]
	if !ok {
		return Contract{}, shared.Failf(shared.ErrNotFound, "contract %d not found", id)
	}
	return c, nil
}

func (m *memoryRepo) ListForProject(_ context.Context, projectID int64) ([]Contract, error) {
	var out []Contract
	for _, c := range m.contracts {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryRepo) ExecutedTotal(_ context.Context, contractID int64) (float64, error) {
	return m.executed[contractID], nil
}

type stubQuotations struct {
	accepted map[int64]bool
}

func (s *stubQuotations) HasAccepted(_ context.Context, requestID int64) (bool, error) {
	return s.accepted[requestID], nil
}

var (
	supervisor = shared.Actor{ID: 2, Role: string(authz.RoleSupervisor)}
	accountant = shared.Actor{ID: 5, Role: string(authz.RoleAccountant)}
	requester  = shared.Actor{ID: 9, Role: string(authz.RoleRequester)}
)

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	quotations := &stubQuotations{accepted: map[int64]bool{42: true}}
	return NewService(repo, authz.NewGate(), quotations), repo
}

func TestCreateContract(t *testing.T) {
	svc, _ := newTestService()
	c, err := svc.Create(context.Background(), CreateInput{
		ProjectID:      1,
		RequestID:      42,
		SupplierID:     3,
		ContractAmount: 100000,
	}, supervisor)
	require.NoError(t, err)
	require.NotZero(t, c.ID)
	require.NotEmpty(t, c.Number)
	require.Equal(t, 100000.0, c.ContractAmount)
}

func TestCreateRequiresAcceptedQuotation(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), CreateInput{
		ProjectID:      1,
		RequestID:      7, // no accepted quotation
		SupplierID:     3,
		ContractAmount: 100000,
	}, supervisor)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), CreateInput{
		ProjectID:  1,
		RequestID:  42,
		SupplierID: 3,
	}, supervisor)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateForbiddenRole(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), CreateInput{
		ProjectID:      1,
		RequestID:      42,
		SupplierID:     3,
		ContractAmount: 100000,
	}, requester)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestLedgerDerivedFromExecutedOrders(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	c, err := svc.Create(ctx, CreateInput{
		ProjectID:      1,
		RequestID:      42,
		SupplierID:     3,
		ContractAmount: 100000,
	}, supervisor)
	require.NoError(t, err)

	ledger, err := svc.Ledger(ctx, c.ID, accountant)
	require.NoError(t, err)
	require.Equal(t, Ledger{ContractAmount: 100000, TotalPaid: 0, RemainingAmount: 100000}, ledger)

	// The ledger follows the executed order set with no stored total.
	repo.executed[c.ID] = 35000
	ledger, err = svc.Ledger(ctx, c.ID, accountant)
	require.NoError(t, err)
	require.Equal(t, 35000.0, ledger.TotalPaid)
	require.Equal(t, 65000.0, ledger.RemainingAmount)

	repo.executed[c.ID] = 100000
	remaining, err := svc.Remaining(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, remaining)
}

func TestGetAttachesLedger(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	c, err := svc.Create(ctx, CreateInput{
		ProjectID:      1,
		RequestID:      42,
		SupplierID:     3,
		ContractAmount: 50000,
	}, supervisor)
	require.NoError(t, err)
	repo.executed[c.ID] = 20000

	got, err := svc.Get(ctx, c.ID, supervisor)
	require.NoError(t, err)
	require.Equal(t, 30000.0, got.Ledger.RemainingAmount)

	list, err := svc.ListForProject(ctx, 1, supervisor)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 20000.0, list[0].Ledger.TotalPaid)
}

func TestLedgerViewForbidden(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	c, err := svc.Create(ctx, CreateInput{
		ProjectID:      1,
		RequestID:      42,
		SupplierID:     3,
		ContractAmount: 50000,
	}, supervisor)
	require.NoError(t, err)

	_, err = svc.Ledger(ctx, c.ID, requester)
	require.ErrorIs(t, err, shared.ErrForbidden)
}
