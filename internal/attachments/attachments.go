package attachments

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/shared"
)

// Attachment is a reference to a document held by the external storage
// collaborator. File bytes never pass through or rest in this system.
type Attachment struct {
	ID         int64     `json:"id"`
	Entity     string    `json:"entity"`
	EntityID   int64     `json:"entity_id"`
	FileName   string    `json:"file_name"`
	Ref        string    `json:"ref"`
	UploadedBy int64     `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// RepositoryPort describes attachment persistence.
type RepositoryPort interface {
	Create(ctx context.Context, a Attachment) (int64, error)
	Get(ctx context.Context, id int64) (Attachment, error)
	ListForEntity(ctx context.Context, entity string, entityID int64) ([]Attachment, error)
}

// StoragePort resolves a stored reference to a presentable URL. It is
// optional; failures are logged and the raw reference is served instead.
type StoragePort interface {
	ResolveURL(ctx context.Context, ref string) (string, error)
}

// Service owns attachment references.
type Service struct {
	repo    RepositoryPort
	gate    *authz.Gate
	storage StoragePort
	logger  *slog.Logger
}

// NewService constructs the attachment service.
func NewService(repo RepositoryPort, gate *authz.Gate, storage StoragePort, logger *slog.Logger) *Service {
	return &Service{repo: repo, gate: gate, storage: storage, logger: logger}
}

// AddInput describes a new attachment reference.
type AddInput struct {
	Entity   string
	EntityID int64
	FileName string
	Ref      string
}

// Add records an attachment reference against an entity.
func (s *Service) Add(ctx context.Context, input AddInput, actor shared.Actor) (Attachment, error) {
	if err := s.gate.Allow(authz.Role(actor.Role), authz.ActionAttachmentAdd); err != nil {
		return Attachment{}, err
	}
	if strings.TrimSpace(input.Entity) == "" {
		return Attachment{}, shared.FieldFailf("entity", "entity is required")
	}
	if input.EntityID <= 0 {
		return Attachment{}, shared.FieldFailf("entity_id", "entity id is required")
	}
	if strings.TrimSpace(input.FileName) == "" {
		return Attachment{}, shared.FieldFailf("file_name", "file name is required")
	}
	if strings.TrimSpace(input.Ref) == "" {
		return Attachment{}, shared.FieldFailf("ref", "storage reference is required")
	}
	a := Attachment{
		Entity:     strings.TrimSpace(input.Entity),
		EntityID:   input.EntityID,
		FileName:   strings.TrimSpace(input.FileName),
		Ref:        strings.TrimSpace(input.Ref),
		UploadedBy: actor.ID,
	}
	id, err := s.repo.Create(ctx, a)
	if err != nil {
		return Attachment{}, err
	}
	return s.repo.Get(ctx, id)
}

// ListForEntity returns the entity's attachments with refs resolved to
// URLs where the storage collaborator can. A resolution failure keeps
// the raw reference and never fails the listing.
func (s *Service) ListForEntity(ctx context.Context, entity string, entityID int64) ([]Attachment, error) {
	items, err := s.repo.ListForEntity(ctx, entity, entityID)
	if err != nil {
		return nil, err
	}
	if s.storage == nil {
		return items, nil
	}
	for i := range items {
		url, err := s.storage.ResolveURL(ctx, items[i].Ref)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("resolve attachment url", slog.Any("error", err), slog.String("ref", items[i].Ref))
			}
			continue
		}
		items[i].Ref = url
	}
	return items, nil
}
