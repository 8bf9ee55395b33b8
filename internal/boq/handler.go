package boq

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

// Handler manages BOQ endpoints.
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

// MountRoutes registers BOQ routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/requests/{id}/boq", h.list)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionBOQEdit))
		r.Post("/requests/{id}/boq", h.add)
		r.Put("/boq/{itemID}", h.update)
		r.Delete("/boq/{itemID}", h.delete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionBOQImport))
		r.Post("/requests/{id}/boq/import", h.importRows)
	})
}

type itemDTO struct {
	Category    string  `json:"category" validate:"required"`
	ItemName    string  `json:"item_name" validate:"required"`
	Description string  `json:"description"`
	Unit        string  `json:"unit" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

func (dto itemDTO) toInput() ItemInput {
	return ItemInput{
		Category:    Category(dto.Category),
		ItemName:    dto.ItemName,
		Description: dto.Description,
		Unit:        Unit(dto.Unit),
		Quantity:    dto.Quantity,
		UnitPrice:   dto.UnitPrice,
	}
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var dto itemDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.AddItem(r.Context(), requestID, dto.toInput(), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var dto itemDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.UpdateItem(r.Context(), itemID, dto.toInput(), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), itemID, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListForRequest(r.Context(), requestID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	total, err := h.service.Total(r.Context(), requestID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) importRows(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Import(r.Context(), requestID, r.Body, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func pathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.FieldFailf(param, "invalid id")
	}
	return id, nil
}
