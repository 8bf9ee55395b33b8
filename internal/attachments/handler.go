package attachments

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/platform/httpx"
	"github.com/manarah-platform/manarah/internal/shared"
)

// Handler manages attachment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	authz    authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authzMW authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), authz: authzMW}
}

// MountRoutes registers attachment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/attachments/{entity}/{id}", h.list)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionAttachmentAdd))
		r.Post("/attachments", h.add)
	})
}

type addDTO struct {
	Entity   string `json:"entity" validate:"required"`
	EntityID int64  `json:"entity_id" validate:"required,gt=0"`
	FileName string `json:"file_name" validate:"required"`
	Ref      string `json:"ref" validate:"required"`
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var dto addDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	a, err := h.service.Add(r.Context(), AddInput{
		Entity:   dto.Entity,
		EntityID: dto.EntityID,
		FileName: dto.FileName,
		Ref:      dto.Ref,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.FieldFailf("id", "invalid id"))
		return
	}
	items, err := h.service.ListForEntity(r.Context(), entity, id)
	if err != nil {
		h.logger.Error("list attachments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}
