package disbursement

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

// Handler manages disbursement endpoints.
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

// MountRoutes registers disbursement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/disbursement-requests/{id}", h.getRequest)
	r.Get("/disbursement-orders/{id}", h.getOrder)
	r.Get("/projects/{id}/disbursement-requests", h.listRequests)
	r.Get("/projects/{id}/disbursement-orders", h.listOrders)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionDisbRequestCreate))
		r.Post("/disbursement-requests", h.createRequest)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionDisbRequestSubmit))
		r.Post("/disbursement-requests/{id}/submit", h.submitRequest)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionDisbRequestApprove))
		r.Post("/disbursement-requests/{id}/approve", h.approveRequest)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionDisbRequestReject))
		r.Post("/disbursement-requests/{id}/reject", h.rejectRequest)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionDisbOrderCreate))
		r.Post("/disbursement-orders", h.createOrder)
		r.Post("/disbursement-orders/{id}/submit", h.submitOrder)
		r.Post("/disbursement-orders/{id}/cancel", h.cancelOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionDisbOrderApprove))
		r.Post("/disbursement-orders/{id}/approve", h.approveOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionDisbOrderReject))
		r.Post("/disbursement-orders/{id}/reject", h.rejectOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ActionDisbOrderExecute))
		r.Post("/disbursement-orders/{id}/execute", h.executeOrder)
	})
}

type createRequestDTO struct {
	ProjectID            int64   `json:"project_id" validate:"required,gt=0"`
	ContractID           *int64  `json:"contract_id"`
	Title                string  `json:"title" validate:"required"`
	Amount               float64 `json:"amount" validate:"required,gt=0"`
	PaymentType          string  `json:"payment_type" validate:"required"`
	CompletionPercentage float64 `json:"completion_percentage" validate:"gte=0,lte=100"`
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var dto createRequestDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.CreateRequest(r.Context(), CreateRequestInput{
		ProjectID:            dto.ProjectID,
		ContractID:           dto.ContractID,
		Title:                dto.Title,
		Amount:               dto.Amount,
		PaymentType:          PaymentType(dto.PaymentType),
		CompletionPercentage: dto.CompletionPercentage,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) submitRequest(w http.ResponseWriter, r *http.Request) {
	h.mutateRequest(w, r, func(id int64, actor shared.Actor) (Request, error) {
		return h.service.SubmitRequest(r.Context(), id, actor)
	})
}

func (h *Handler) approveRequest(w http.ResponseWriter, r *http.Request) {
	h.mutateRequest(w, r, func(id int64, actor shared.Actor) (Request, error) {
		return h.service.ApproveRequest(r.Context(), id, actor)
	})
}

type rejectDTO struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) rejectRequest(w http.ResponseWriter, r *http.Request) {
	var dto rejectDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	h.mutateRequest(w, r, func(id int64, actor shared.Actor) (Request, error) {
		return h.service.RejectRequest(r.Context(), id, dto.Reason, actor)
	})
}

type createOrderDTO struct {
	RequestID          *int64  `json:"disbursement_request_id"`
	ProjectID          int64   `json:"project_id"`
	ContractID         *int64  `json:"contract_id"`
	BeneficiaryName    string  `json:"beneficiary_name" validate:"required"`
	BeneficiaryBank    string  `json:"beneficiary_bank"`
	BeneficiaryIBAN    string  `json:"beneficiary_iban"`
	BeneficiaryAccount string  `json:"beneficiary_account"`
	PaymentMethod      string  `json:"payment_method" validate:"required"`
	Amount             float64 `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var dto createOrderDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.CreateOrder(r.Context(), CreateOrderInput{
		RequestID:          dto.RequestID,
		ProjectID:          dto.ProjectID,
		ContractID:         dto.ContractID,
		BeneficiaryName:    dto.BeneficiaryName,
		BeneficiaryBank:    dto.BeneficiaryBank,
		BeneficiaryIBAN:    dto.BeneficiaryIBAN,
		BeneficiaryAccount: dto.BeneficiaryAccount,
		PaymentMethod:      PaymentMethod(dto.PaymentMethod),
		Amount:             dto.Amount,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	h.mutateOrder(w, r, func(id int64, actor shared.Actor) (Order, error) {
		return h.service.SubmitOrder(r.Context(), id, actor)
	})
}

func (h *Handler) approveOrder(w http.ResponseWriter, r *http.Request) {
	h.mutateOrder(w, r, func(id int64, actor shared.Actor) (Order, error) {
		return h.service.ApproveOrder(r.Context(), id, actor)
	})
}

func (h *Handler) rejectOrder(w http.ResponseWriter, r *http.Request) {
	var dto rejectDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	h.mutateOrder(w, r, func(id int64, actor shared.Actor) (Order, error) {
		return h.service.RejectOrder(r.Context(), id, dto.Reason, actor)
	})
}

type cancelOrderDTO struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	// The reason is optional; an empty body cancels without one.
	var dto cancelOrderDTO
	_ = httpx.DecodeJSON(r, &dto)
	h.mutateOrder(w, r, func(id int64, actor shared.Actor) (Order, error) {
		return h.service.CancelOrder(r.Context(), id, dto.Reason, actor)
	})
}

type executeOrderDTO struct {
	TransactionReference string `json:"transaction_reference"`
}

func (h *Handler) executeOrder(w http.ResponseWriter, r *http.Request) {
	var dto executeOrderDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	h.mutateOrder(w, r, func(id int64, actor shared.Actor) (Order, error) {
		return h.service.ExecuteOrder(r.Context(), id, dto.TransactionReference, actor)
	})
}

func (h *Handler) mutateRequest(w http.ResponseWriter, r *http.Request, fn func(int64, shared.Actor) (Request, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := fn(id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) mutateOrder(w http.ResponseWriter, r *http.Request, fn func(int64, shared.Actor) (Order, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := fn(id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.GetRequest(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListRequestsForProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error("list disbursement requests", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListOrdersForProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error("list disbursement orders", slog.Any("error", err))
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
