package requests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/notify"
	"github.com/manarah-platform/manarah/internal/shared"
)

type memoryRepo struct {
	requests map[int64]Request
	history  map[int64][]HistoryEntry
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{requests: make(map[int64]Request), history: make(map[int64][]HistoryEntry)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return Request{}, shared.Failf(shared.ErrNotFound, "request %d not found", id)
	}
	return req, nil
}

func (r *memoryRepo) List(ctx context.Context, filters ListFilters, limit, offset int) ([]Request, int, error) {
	var out []Request
	for _, req := range r.requests {
		if filters.Status != "" && req.Status != filters.Status {
			continue
		}
		if filters.Stage != "" && req.CurrentStage != filters.Stage {
			continue
		}
		out = append(out, req)
	}
	return out, len(out), nil
}

func (r *memoryRepo) History(ctx context.Context, requestID int64) ([]HistoryEntry, error) {
	return append([]HistoryEntry(nil), r.history[requestID]...), nil
}

func (tx *memoryTx) CreateRequest(ctx context.Context, req Request) (int64, error) {
	tx.repo.nextID++
	req.ID = tx.repo.nextID
	req.Version = 1
	tx.repo.requests[req.ID] = req
	return req.ID, nil
}

func (tx *memoryTx) UpdateStageStatus(ctx context.Context, id int64, stage Stage, status Status, expectedVersion int64) (bool, error) {
	req, ok := tx.repo.requests[id]
	if !ok || req.Version != expectedVersion {
		return false, nil
	}
	req.CurrentStage = stage
	req.Status = status
	req.Version++
	tx.repo.requests[id] = req
	return true, nil
}

func (tx *memoryTx) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	entry.ID = int64(len(tx.repo.history[entry.RequestID]) + 1)
	tx.repo.history[entry.RequestID] = append(tx.repo.history[entry.RequestID], entry)
	return nil
}

type stubMosques struct{ exists bool }

func (s stubMosques) Exists(ctx context.Context, id int64) (bool, error) { return s.exists, nil }

type stubQuotations struct{ accepted bool }

func (s stubQuotations) HasAccepted(ctx context.Context, requestID int64) (bool, error) {
	return s.accepted, nil
}

type recordingNotifier struct{ events []notify.Event }

func (n *recordingNotifier) Publish(ctx context.Context, event notify.Event) error {
	n.events = append(n.events, event)
	return nil
}

func newTestService(repo *memoryRepo, accepted bool) (*Service, *recordingNotifier) {
	notifier := &recordingNotifier{}
	svc := NewService(repo, authz.NewGate(), stubMosques{exists: true}, stubQuotations{accepted: accepted}, notifier, nil, nil)
	return svc, notifier
}

var (
	requester  = shared.Actor{ID: 1, Role: string(authz.RoleRequester)}
	reviewer   = shared.Actor{ID: 2, Role: string(authz.RoleReviewer)}
	supervisor = shared.Actor{ID: 3, Role: string(authz.RoleSupervisor)}
	engineer   = shared.Actor{ID: 4, Role: string(authz.RoleFieldEngineer)}
	committee  = shared.Actor{ID: 5, Role: string(authz.RoleTechnicalCommittee)}
	finance    = shared.Actor{ID: 6, Role: string(authz.RoleFinancialOfficer)}
	admin      = shared.Actor{ID: 9, Role: string(authz.RoleAdmin)}
)

func createRequest(t *testing.T, svc *Service) Request {
	t.Helper()
	req, err := svc.Create(context.Background(), CreateInput{
		ProgramType:   ProgramConstruction,
		MosqueID:      7,
		EstimatedCost: 150000,
	}, requester)
	require.NoError(t, err)
	require.Equal(t, StageSubmitted, req.CurrentStage)
	require.Equal(t, StatusPending, req.Status)
	return req
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(newMemoryRepo(), false)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{ProgramType: "unknown", MosqueID: 1}, requester)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{ProgramType: ProgramRenovation, MosqueID: 1, EstimatedCost: -5}, requester)
	require.ErrorIs(t, err, shared.ErrValidation)

	// field engineers cannot create requests
	_, err = svc.Create(ctx, CreateInput{ProgramType: ProgramRenovation, MosqueID: 1}, engineer)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestAdvanceFullPipeline(t *testing.T) {
	repo := newMemoryRepo()
	svc, notifier := newTestService(repo, true)
	ctx := context.Background()
	req := createRequest(t, svc)

	steps := []struct {
		actor shared.Actor
		want  Stage
	}{
		{reviewer, StageInitialReview},
		{supervisor, StageFieldVisit},
		{engineer, StageTechnicalEval},
		{committee, StageFinancialEval},
		{finance, StageExecution},
		{supervisor, StageClosed},
	}
	for _, step := range steps {
		got, err := svc.AdvanceStage(ctx, req.ID, step.actor)
		require.NoError(t, err)
		require.Equal(t, step.want, got.CurrentStage)
	}

	final, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, final.Status)

	// closed is terminal for stage advancement
	_, err = svc.AdvanceStage(ctx, req.ID, supervisor)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	history, err := svc.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 7) // created + 6 advances

	require.NotEmpty(t, notifier.events)
	require.Equal(t, notify.KindRequestClosed, notifier.events[len(notifier.events)-1].Kind)
}

func TestAdvanceForbiddenRole(t *testing.T) {
	svc, _ := newTestService(newMemoryRepo(), false)
	req := createRequest(t, svc)

	// field engineer cannot exit the submitted stage
	_, err := svc.AdvanceStage(context.Background(), req.ID, engineer)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestAdvanceIntoExecutionRequiresAcceptedQuotation(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, false)
	ctx := context.Background()
	req := createRequest(t, svc)

	for _, actor := range []shared.Actor{reviewer, supervisor, engineer, committee} {
		_, err := svc.AdvanceStage(ctx, req.ID, actor)
		require.NoError(t, err)
	}
	_, err := svc.AdvanceStage(ctx, req.ID, finance)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestSetStatusRejectionRequiresReason(t *testing.T) {
	svc, notifier := newTestService(newMemoryRepo(), false)
	ctx := context.Background()
	req := createRequest(t, svc)

	_, err := svc.SetStatus(ctx, req.ID, StatusRejected, reviewer, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	got, err := svc.SetStatus(ctx, req.ID, StatusRejected, reviewer, "incomplete documents")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, got.Status)
	require.Equal(t, StageSubmitted, got.CurrentStage)

	// terminal status blocks both further status changes and advancement
	_, err = svc.SetStatus(ctx, req.ID, StatusPending, reviewer, "")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	_, err = svc.AdvanceStage(ctx, req.ID, reviewer)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	history, err := svc.History(ctx, req.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	require.Equal(t, "status_changed", last.Action)
	require.Equal(t, "incomplete documents", last.Reason)

	require.NotEmpty(t, notifier.events)
	require.Equal(t, notify.KindRequestStatus, notifier.events[len(notifier.events)-1].Kind)
}

func TestConcurrentAdvanceOneWinner(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, false)
	ctx := context.Background()
	req := createRequest(t, svc)

	// Both actors observe version 1; the second CAS must lose.
	first, err := svc.AdvanceStage(ctx, req.ID, reviewer)
	require.NoError(t, err)
	require.Equal(t, StageInitialReview, first.CurrentStage)

	// Simulate the loser by replaying the stale version.
	applied, err := (&memoryTx{repo: repo}).UpdateStageStatus(ctx, req.ID, StageInitialReview, StatusInProgress, 1)
	require.NoError(t, err)
	require.False(t, applied)
}

func TestReopenMovesBackwardOnly(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, false)
	ctx := context.Background()
	req := createRequest(t, svc)

	_, err := svc.AdvanceStage(ctx, req.ID, reviewer)
	require.NoError(t, err)
	_, err = svc.AdvanceStage(ctx, req.ID, supervisor)
	require.NoError(t, err)

	_, err = svc.Reopen(ctx, req.ID, StageFieldVisit, admin, "missed documents")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	got, err := svc.Reopen(ctx, req.ID, StageSubmitted, admin, "missed documents")
	require.NoError(t, err)
	require.Equal(t, StageSubmitted, got.CurrentStage)

	// non-admin roles may not reopen
	_, err = svc.Reopen(ctx, req.ID, StageSubmitted, reviewer, "x")
	require.ErrorIs(t, err, shared.ErrForbidden)
}
