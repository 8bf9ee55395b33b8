package mosques

import (
	"context"
	"strconv"
	"strings"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, m Mosque) (int64, error)
	Update(ctx context.Context, m Mosque) error
	Get(ctx context.Context, id int64) (Mosque, error)
	List(ctx context.Context, city string) ([]Mosque, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

// AuditPort records registry mutations. Failures never block the
// mutation itself.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the mosque registry.
type Service struct {
	repo  RepositoryPort
	gate  *authz.Gate
	audit AuditPort
}

// NewService constructs the mosque service.
func NewService(repo RepositoryPort, gate *authz.Gate, audit AuditPort) *Service {
	return &Service{repo: repo, gate: gate, audit: audit}
}

func (s *Service) recordAudit(ctx context.Context, action string, m Mosque, actor shared.Actor) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "mosque",
		EntityID: strconv.FormatInt(m.ID, 10),
		Meta:     map[string]any{"name": m.Name, "city": m.City, "status": string(m.Status)},
	})
}

// Input describes a registry entry payload.
type Input struct {
	Name     string
	City     string
	District string
	Capacity int
	Status   Status
}

func validate(input Input) error {
	if strings.TrimSpace(input.Name) == "" {
		return shared.FieldFailf("name", "name is required")
	}
	if strings.TrimSpace(input.City) == "" {
		return shared.FieldFailf("city", "city is required")
	}
	if input.Capacity < 0 {
		return shared.FieldFailf("capacity", "must not be negative")
	}
	switch input.Status {
	case StatusActive, StatusInactive, "":
	default:
		return shared.FieldFailf("status", "unknown status %q", input.Status)
	}
	return nil
}

// Create registers a mosque.
func (s *Service) Create(ctx context.Context, input Input, actor shared.Actor) (Mosque, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionMosqueManage); err != nil {
		return Mosque{}, err
	}
	if err := validate(input); err != nil {
		return Mosque{}, err
	}
	if input.Status == "" {
		input.Status = StatusActive
	}
	m := Mosque{
		Name:     strings.TrimSpace(input.Name),
		City:     strings.TrimSpace(input.City),
		District: strings.TrimSpace(input.District),
		Capacity: input.Capacity,
		Status:   input.Status,
	}
	id, err := s.repo.Create(ctx, m)
	if err != nil {
		return Mosque{}, err
	}
	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return Mosque{}, err
	}
	s.recordAudit(ctx, "mosque.create", created, actor)
	return created, nil
}

// Update rewrites a registry entry. Deactivation, not deletion, removes a
// mosque from service.
func (s *Service) Update(ctx context.Context, id int64, input Input, actor shared.Actor) (Mosque, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionMosqueManage); err != nil {
		return Mosque{}, err
	}
	if err := validate(input); err != nil {
		return Mosque{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Mosque{}, err
	}
	current.Name = strings.TrimSpace(input.Name)
	current.City = strings.TrimSpace(input.City)
	current.District = strings.TrimSpace(input.District)
	current.Capacity = input.Capacity
	if input.Status != "" {
		current.Status = input.Status
	}
	if err := s.repo.Update(ctx, current); err != nil {
		return Mosque{}, err
	}
	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return Mosque{}, err
	}
	s.recordAudit(ctx, "mosque.update", updated, actor)
	return updated, nil
}

// Get returns one mosque.
func (s *Service) Get(ctx context.Context, id int64) (Mosque, error) {
	return s.repo.Get(ctx, id)
}

// List returns the registry, optionally filtered by city.
func (s *Service) List(ctx context.Context, city string) ([]Mosque, error) {
	return s.repo.List(ctx, city)
}

// Exists reports whether an active mosque is registered under the id.
// The request pipeline validates submissions against it.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, id)
}
