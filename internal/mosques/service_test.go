package mosques

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/shared"
)

type memoryRepo struct {
	nextID  int64
	mosques map[int64]Mosque
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, mosques: map[int64]Mosque{}}
}

func (m *memoryRepo) Create(_ context.Context, mosque Mosque) (int64, error) {
	mosque.ID = m.nextID
	m.nextID++
	m.mosques[mosque.ID] = mosque
	return mosque.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, mosque Mosque) error {
	if _, ok := m.mosques[mosque.ID]; !ok {
		return shared.Failf(shared.ErrNotFound, "mosque %d not found", mosque.ID)
	}
	m.mosques[mosque.ID] = mosque
	return nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Mosque, error) {
	mosque, ok := m.mosques[id]
	if !ok {
		return Mosque{}, shared.Failf(shared.ErrNotFound, "mosque %d not found", id)
	}
	return mosque, nil
}

func (m *memoryRepo) List(_ context.Context, city string) ([]Mosque, error) {
	var out []Mosque
	for _, mosque := range m.mosques {
		if city == "" || mosque.City == city {
			out = append(out, mosque)
		}
	}
	return out, nil
}

func (m *memoryRepo) Exists(_ context.Context, id int64) (bool, error) {
	mosque, ok := m.mosques[id]
	return ok && mosque.Status == StatusActive, nil
}

var (
	supervisor = shared.Actor{ID: 2, Role: string(authz.RoleSupervisor)}
	requester  = shared.Actor{ID: 9, Role: string(authz.RoleRequester)}
)

func TestCreateMosque(t *testing.T) {
	svc := NewService(newMemoryRepo(), authz.NewGate(), nil)
	m, err := svc.Create(context.Background(), Input{
		Name:     "مسجد النور",
		City:     "Riyadh",
		District: "Al Olaya",
		Capacity: 500,
	}, supervisor)
	require.NoError(t, err)
	require.Equal(t, StatusActive, m.Status)
	require.Equal(t, "مسجد النور", m.Name)
}

func TestCreateMosqueValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), authz.NewGate(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{Name: " ", City: "Riyadh"}, supervisor)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Input{Name: "x", City: ""}, supervisor)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Input{Name: "x", City: "Riyadh", Capacity: -1}, supervisor)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Input{Name: "x", City: "Riyadh"}, requester)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDeactivationHidesFromExists(t *testing.T) {
	svc := NewService(newMemoryRepo(), authz.NewGate(), nil)
	ctx := context.Background()
	m, err := svc.Create(ctx, Input{Name: "x", City: "Jeddah"}, supervisor)
	require.NoError(t, err)

	ok, err := svc.Exists(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Update(ctx, m.ID, Input{Name: "x", City: "Jeddah", Status: StatusInactive}, supervisor)
	require.NoError(t, err)

	ok, err = svc.Exists(ctx, m.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListFiltersByCity(t *testing.T) {
	svc := NewService(newMemoryRepo(), authz.NewGate(), nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, Input{Name: "a", City: "Riyadh"}, supervisor)
	require.NoError(t, err)
	_, err = svc.Create(ctx, Input{Name: "b", City: "Jeddah"}, supervisor)
	require.NoError(t, err)

	items, err := svc.List(ctx, "Jeddah")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "b", items[0].Name)
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestMutationsAreAudited(t *testing.T) {
	audit := &recordingAudit{}
	svc := NewService(newMemoryRepo(), authz.NewGate(), audit)

	m, err := svc.Create(context.Background(), Input{Name: "مسجد السلام", City: "Jeddah"}, supervisor)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), m.ID, Input{
		Name:   "مسجد السلام",
		City:   "Jeddah",
		Status: StatusInactive,
	}, supervisor)
	require.NoError(t, err)

	require.Len(t, audit.logs, 2)
	require.Equal(t, "mosque.create", audit.logs[0].Action)
	require.Equal(t, "mosque.update", audit.logs[1].Action)
	require.Equal(t, supervisor.ID, audit.logs[1].ActorID)
	require.Equal(t, "inactive", audit.logs[1].Meta["status"])
}
