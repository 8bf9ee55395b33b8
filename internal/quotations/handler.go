package quotations

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

// Handler manages quotation endpoints.
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

// MountRoutes registers quotation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/requests/{id}/quotations", h.list)
	r.Get("/quotations/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionQuotationCreate))
		r.Post("/requests/{id}/quotations", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionQuotationImportPricing))
		r.Post("/requests/{id}/quotations/pricing-import", h.importPricing)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionQuotationNegotiate))
		r.Post("/quotations/{id}/negotiate", h.startNegotiation)
		r.Post("/quotations/{id}/negotiation-result", h.saveNegotiation)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionQuotationApprove))
		r.Post("/quotations/{id}/approve", h.approve)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionQuotationReject))
		r.Post("/quotations/{id}/reject", h.reject)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionQuotationCancelApproval))
		r.Post("/quotations/{id}/cancel-approval", h.cancelApproval)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionQuotationReactivate))
		r.Post("/quotations/{id}/reactivate", h.reactivate)
	})
}

type quotationItemDTO struct {
	BOQItemID int64   `json:"boq_item_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"gte=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

type createQuotationDTO struct {
	SupplierID    int64              `json:"supplier_id" validate:"required,gt=0"`
	Items         []quotationItemDTO `json:"items" validate:"required,min=1,dive"`
	DiscountType  string             `json:"discount_type"`
	DiscountValue float64            `json:"discount_value" validate:"gte=0"`
	IncludesTax   bool               `json:"includes_tax"`
	TaxRate       float64            `json:"tax_rate" validate:"gte=0"`
	ValidUntil    *time.Time         `json:"valid_until"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var dto createQuotationDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		RequestID:   requestID,
		SupplierID:  dto.SupplierID,
		Discount:    Discount{Type: DiscountType(dto.DiscountType), Value: dto.DiscountValue},
		IncludesTax: dto.IncludesTax,
		TaxRate:     dto.TaxRate,
		ValidUntil:  dto.ValidUntil,
	}
	for _, item := range dto.Items {
		input.Items = append(input.Items, ItemInput{BOQItemID: item.BOQItemID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	q, err := h.service.Create(r.Context(), input, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) importPricing(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.ImportPricing(r.Context(), requestID, r.Body, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) startNegotiation(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(id int64, actor shared.Actor) (Quotation, error) {
		return h.service.StartNegotiation(r.Context(), id, actor)
	})
}

type negotiationResultDTO struct {
	NegotiatedAmount float64 `json:"negotiated_amount" validate:"required,gt=0"`
	Notes            string  `json:"notes"`
}

func (h *Handler) saveNegotiation(w http.ResponseWriter, r *http.Request) {
	var dto negotiationResultDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	h.mutate(w, r, func(id int64, actor shared.Actor) (Quotation, error) {
		return h.service.SaveNegotiationResult(r.Context(), id, dto.NegotiatedAmount, dto.Notes, actor)
	})
}

type approveDTO struct {
	AfterNegotiation    bool `json:"after_negotiation"`
	UseNegotiatedAmount bool `json:"use_negotiated_amount"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	var dto approveDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	h.mutate(w, r, func(id int64, actor shared.Actor) (Quotation, error) {
		if dto.AfterNegotiation {
			return h.service.ApproveAfterNegotiation(r.Context(), id, dto.UseNegotiatedAmount, actor)
		}
		return h.service.Approve(r.Context(), id, actor)
	})
}

type rejectDTO struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var dto rejectDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	h.mutate(w, r, func(id int64, actor shared.Actor) (Quotation, error) {
		return h.service.Reject(r.Context(), id, dto.Reason, actor)
	})
}

func (h *Handler) cancelApproval(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(id int64, actor shared.Actor) (Quotation, error) {
		return h.service.CancelApproval(r.Context(), id, actor)
	})
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(id int64, actor shared.Actor) (Quotation, error) {
		return h.service.Reactivate(r.Context(), id, actor)
	})
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(int64, shared.Actor) (Quotation, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := fn(id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListForRequest(r.Context(), requestID)
	if err != nil {
		h.logger.Error("list quotations", slog.Any("error", err))
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
