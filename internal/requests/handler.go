package requests

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

// Handler manages request endpoints.
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

// MountRoutes registers request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/requests", h.list)
	r.Get("/requests/{id}", h.get)
	r.Get("/requests/{id}/history", h.history)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionRequestCreate))
		r.Post("/requests", h.create)
	})
	// Advance performs its own per-stage permission check in the service;
	// the route only requires an authenticated actor.
	r.Post("/requests/{id}/advance", h.advance)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionRequestSetStatus))
		r.Post("/requests/{id}/status", h.setStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionRequestReopen))
		r.Post("/requests/{id}/reopen", h.reopen)
	})
}

type createRequestDTO struct {
	ProgramType   string  `json:"program_type" validate:"required"`
	Priority      string  `json:"priority"`
	MosqueID      int64   `json:"mosque_id" validate:"required,gt=0"`
	EstimatedCost float64 `json:"estimated_cost" validate:"gte=0"`
	Description   string  `json:"description"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var dto createRequestDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	req, err := h.service.Create(r.Context(), CreateInput{
		ProgramType:   ProgramType(dto.ProgramType),
		Priority:      Priority(dto.Priority),
		MosqueID:      dto.MosqueID,
		EstimatedCost: dto.EstimatedCost,
		Description:   dto.Description,
	}, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := shared.ActorFromContext(r.Context())
	req, err := h.service.AdvanceStage(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

type setStatusDTO struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var dto setStatusDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	req, err := h.service.SetStatus(r.Context(), id, Status(dto.Status), actor, dto.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

type reopenDTO struct {
	Stage  string `json:"stage" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var dto reopenDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	req, err := h.service.Reopen(r.Context(), id, Stage(dto.Stage), actor, dto.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	mosqueID, _ := strconv.ParseInt(r.URL.Query().Get("mosque_id"), 10, 64)
	filters := ListFilters{
		Stage:       Stage(r.URL.Query().Get("stage")),
		Status:      Status(r.URL.Query().Get("status")),
		ProgramType: ProgramType(r.URL.Query().Get("program_type")),
		MosqueID:    mosqueID,
	}
	items, total, err := h.service.List(r.Context(), filters, perPage, (page-1)*perPage)
	if err != nil {
		h.logger.Error("list requests", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": entries})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.FieldFailf("id", "invalid id")
	}
	return id, nil
}
