package contracts

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/platform/httpx"
	"github.com/manarah-platform/manarah/internal/shared"
)

// Handler manages contract endpoints.
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

// MountRoutes registers contract routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/contracts/{id}", h.get)
	r.Get("/contracts/{id}/ledger", h.ledger)
	r.Get("/projects/{id}/contracts", h.listForProject)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionContractManage))
		r.Post("/contracts", h.create)
	})
}

type createContractDTO struct {
	ProjectID      int64      `json:"project_id" validate:"required,gt=0"`
	RequestID      int64      `json:"request_id" validate:"required,gt=0"`
	SupplierID     int64      `json:"supplier_id" validate:"required,gt=0"`
	QuotationID    *int64     `json:"quotation_id"`
	ContractAmount float64    `json:"contract_amount" validate:"required,gt=0"`
	SignedAt       *time.Time `json:"signed_at"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var dto createContractDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.Create(r.Context(), CreateInput{
		ProjectID:      dto.ProjectID,
		RequestID:      dto.RequestID,
		SupplierID:     dto.SupplierID,
		QuotationID:    dto.QuotationID,
		ContractAmount: dto.ContractAmount,
		SignedAt:       dto.SignedAt,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Get(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ledger, err := h.service.Ledger(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) listForProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListForProject(r.Context(), projectID, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list contracts", slog.Any("error", err))
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
