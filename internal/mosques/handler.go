package mosques

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

// Handler manages mosque registry endpoints.
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

// MountRoutes registers mosque routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/mosques", h.list)
	r.Get("/mosques/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionMosqueManage))
		r.Post("/mosques", h.create)
		r.Put("/mosques/{id}", h.update)
	})
}

type mosqueDTO struct {
	Name     string `json:"name" validate:"required"`
	City     string `json:"city" validate:"required"`
	District string `json:"district"`
	Capacity int    `json:"capacity" validate:"gte=0"`
	Status   string `json:"status"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var dto mosqueDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.Create(r.Context(), Input{
		Name:     dto.Name,
		City:     dto.City,
		District: dto.District,
		Capacity: dto.Capacity,
		Status:   Status(dto.Status),
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var dto mosqueDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.Update(r.Context(), id, Input{
		Name:     dto.Name,
		City:     dto.City,
		District: dto.District,
		Capacity: dto.Capacity,
		Status:   Status(dto.Status),
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		h.logger.Error("list mosques", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func pathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.FieldFailf(param, "invalid id")
	}
	return id, nil
}
