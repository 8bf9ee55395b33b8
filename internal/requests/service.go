package requests

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/notify"
	"github.com/manarah-platform/manarah/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Request, error)
	List(ctx context.Context, filters ListFilters, limit, offset int) ([]Request, int, error)
	History(ctx context.Context, requestID int64) ([]HistoryEntry, error)
}

// MosquePort verifies that a referenced mosque exists.
type MosquePort interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// QuotationPort reports whether a request already has an accepted
// supplier quotation; entry into execution is gated on it.
type QuotationPort interface {
	HasAccepted(ctx context.Context, requestID int64) (bool, error)
}

// NotifierPort is invoked fire-and-forget after terminal transitions.
type NotifierPort interface {
	Publish(ctx context.Context, event notify.Event) error
}

// MetricsPort counts domain transitions.
type MetricsPort interface {
	ObserveTransition(entity, action, outcome string)
}

// Service owns the request pipeline state machine.
type Service struct {
	repo       RepositoryPort
	gate       *authz.Gate
	mosques    MosquePort
	quotations QuotationPort
	notifier   NotifierPort
	metrics    MetricsPort
	logger     *slog.Logger
}

// NewService constructs the request service.
func NewService(repo RepositoryPort, gate *authz.Gate, mosques MosquePort, quotations QuotationPort, notifier NotifierPort, metrics MetricsPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, gate: gate, mosques: mosques, quotations: quotations, notifier: notifier, metrics: metrics, logger: logger}
}

// CreateInput describes a submission payload.
type CreateInput struct {
	ProgramType   ProgramType
	Priority      Priority
	MosqueID      int64
	EstimatedCost float64
	Description   string
}

// ListFilters narrows request listings.
type ListFilters struct {
	Stage       Stage
	Status      Status
	ProgramType ProgramType
	MosqueID    int64
}

// Create validates and persists a new request at the head of the pipeline.
func (s *Service) Create(ctx context.Context, input CreateInput, actor shared.Actor) (Request, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionRequestCreate); err != nil {
		return Request{}, err
	}
	if !validProgramType(input.ProgramType) {
		return Request{}, shared.FieldFailf("program_type", "unknown program type %q", input.ProgramType)
	}
	if input.MosqueID == 0 {
		return Request{}, shared.FieldFailf("mosque_id", "mosque is required")
	}
	if input.EstimatedCost < 0 {
		return Request{}, shared.FieldFailf("estimated_cost", "must not be negative")
	}
	if input.Priority == "" {
		input.Priority = PriorityNormal
	}
	if s.mosques != nil {
		ok, err := s.mosques.Exists(ctx, input.MosqueID)
		if err != nil {
			return Request{}, err
		}
		if !ok {
			return Request{}, shared.Failf(shared.ErrNotFound, "mosque %d not found", input.MosqueID)
		}
	}
	req := Request{
		Number:        generateNumber(),
		ProgramType:   input.ProgramType,
		CurrentStage:  StageSubmitted,
		Status:        StatusPending,
		Priority:      input.Priority,
		MosqueID:      input.MosqueID,
		RequesterID:   actor.ID,
		EstimatedCost: input.EstimatedCost,
		Description:   input.Description,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateRequest(ctx, req)
		if err != nil {
			return err
		}
		req.ID = id
		return tx.AppendHistory(ctx, HistoryEntry{
			RequestID: id,
			ActorID:   actor.ID,
			Action:    "created",
			ToStage:   StageSubmitted,
			ToStatus:  StatusPending,
		})
	})
	if err != nil {
		return Request{}, err
	}
	s.observe("request", "create", "ok")
	return s.repo.Get(ctx, req.ID)
}

// AdvanceStage moves the request to the next pipeline stage. The actor's
// role must hold the current stage's exit transition, the request must not
// be terminal, and entry into execution requires an accepted quotation.
func (s *Service) AdvanceStage(ctx context.Context, id int64, actor shared.Actor) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status.Terminal() {
		s.observe("request", "advance", "invalid")
		return Request{}, shared.Failf(shared.ErrInvalidTransition, "request %s is %s", req.Number, req.Status)
	}
	next, ok := req.CurrentStage.Next()
	if !ok {
		s.observe("request", "advance", "invalid")
		return Request{}, shared.Failf(shared.ErrInvalidTransition, "request %s is already closed", req.Number)
	}
	if err := s.gate.Allow(authz.Role(actor.Role), req.CurrentStage.ExitAction()); err != nil {
		s.observe("request", "advance", "forbidden")
		return Request{}, err
	}
	if next == StageExecution && s.quotations != nil {
		accepted, err := s.quotations.HasAccepted(ctx, id)
		if err != nil {
			return Request{}, err
		}
		if !accepted {
			s.observe("request", "advance", "invalid")
			return Request{}, shared.Failf(shared.ErrInvalidTransition, "request %s has no accepted quotation", req.Number)
		}
	}
	status := req.Status
	if status == StatusPending {
		status = StatusInProgress
	}
	if next == StageClosed {
		status = StatusCompleted
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		applied, err := tx.UpdateStageStatus(ctx, id, next, status, req.Version)
		if err != nil {
			return err
		}
		if !applied {
			return shared.Failf(shared.ErrConflict, "request %s changed concurrently", req.Number)
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			RequestID:  id,
			ActorID:    actor.ID,
			Action:     "stage_advanced",
			FromStage:  req.CurrentStage,
			ToStage:    next,
			FromStatus: req.Status,
			ToStatus:   status,
		})
	})
	if err != nil {
		s.observe("request", "advance", "conflict")
		return Request{}, err
	}
	s.observe("request", "advance", "ok")
	if next == StageClosed {
		s.publish(ctx, notify.Event{
			Kind:     notify.KindRequestClosed,
			Entity:   "request",
			EntityID: id,
			ActorID:  actor.ID,
			Message:  fmt.Sprintf("request %s closed", req.Number),
		})
	}
	return s.repo.Get(ctx, id)
}

// SetStatus applies a pure status change plus an audit entry. Rejection
// requires a reason.
func (s *Service) SetStatus(ctx context.Context, id int64, status Status, actor shared.Actor, reason string) (Request, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionRequestSetStatus); err != nil {
		return Request{}, err
	}
	if !validStatus(status) {
		return Request{}, shared.FieldFailf("status", "unknown status %q", status)
	}
	if status == StatusRejected && reason == "" {
		return Request{}, shared.FieldFailf("reason", "rejection requires a reason")
	}
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status.Terminal() {
		s.observe("request", "set_status", "invalid")
		return Request{}, shared.Failf(shared.ErrInvalidTransition, "request %s is %s", req.Number, req.Status)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		applied, err := tx.UpdateStageStatus(ctx, id, req.CurrentStage, status, req.Version)
		if err != nil {
			return err
		}
		if !applied {
			return shared.Failf(shared.ErrConflict, "request %s changed concurrently", req.Number)
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			RequestID:  id,
			ActorID:    actor.ID,
			Action:     "status_changed",
			FromStage:  req.CurrentStage,
			ToStage:    req.CurrentStage,
			FromStatus: req.Status,
			ToStatus:   status,
			Reason:     reason,
		})
	})
	if err != nil {
		s.observe("request", "set_status", "conflict")
		return Request{}, err
	}
	s.observe("request", "set_status", "ok")
	if status.Terminal() {
		s.publish(ctx, notify.Event{
			Kind:     notify.KindRequestStatus,
			Entity:   "request",
			EntityID: id,
			ActorID:  actor.ID,
			Message:  fmt.Sprintf("request %s marked %s", req.Number, status),
		})
	}
	return s.repo.Get(ctx, id)
}

// Reopen moves a request backward to an earlier stage. Admin action for
// correcting pipeline mistakes; the request must not be terminal.
func (s *Service) Reopen(ctx context.Context, id int64, toStage Stage, actor shared.Actor, reason string) (Request, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionRequestReopen); err != nil {
		return Request{}, err
	}
	if toStage.Index() < 0 {
		return Request{}, shared.FieldFailf("stage", "unknown stage %q", toStage)
	}
	if reason == "" {
		return Request{}, shared.FieldFailf("reason", "reopen requires a reason")
	}
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status.Terminal() {
		return Request{}, shared.Failf(shared.ErrInvalidTransition, "request %s is %s", req.Number, req.Status)
	}
	if toStage.Index() >= req.CurrentStage.Index() {
		return Request{}, shared.Failf(shared.ErrInvalidTransition, "reopen must move backward from %s", req.CurrentStage)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		applied, err := tx.UpdateStageStatus(ctx, id, toStage, StatusInProgress, req.Version)
		if err != nil {
			return err
		}
		if !applied {
			return shared.Failf(shared.ErrConflict, "request %s changed concurrently", req.Number)
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			RequestID:  id,
			ActorID:    actor.ID,
			Action:     "reopened",
			FromStage:  req.CurrentStage,
			ToStage:    toStage,
			FromStatus: req.Status,
			ToStatus:   StatusInProgress,
			Reason:     reason,
		})
	})
	if err != nil {
		return Request{}, err
	}
	s.observe("request", "reopen", "ok")
	return s.repo.Get(ctx, id)
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id int64) (Request, error) {
	return s.repo.Get(ctx, id)
}

// List returns filtered requests with the total count.
func (s *Service) List(ctx context.Context, filters ListFilters, limit, offset int) ([]Request, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, filters, limit, offset)
}

// History returns the append-only audit trail for a request.
func (s *Service) History(ctx context.Context, requestID int64) ([]HistoryEntry, error) {
	if _, err := s.repo.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, requestID)
}

func (s *Service) publish(ctx context.Context, event notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.Warn("notify publish failed", slog.Any("error", err), slog.String("kind", string(event.Kind)))
	}
}

func (s *Service) observe(entity, action, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(entity, action, outcome)
	}
}

func generateNumber() string {
	return fmt.Sprintf("REQ-%d", time.Now().UnixNano())
}
