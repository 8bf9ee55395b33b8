package reports

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/manarah-platform/manarah/internal/boq"
	"github.com/manarah-platform/manarah/internal/disbursement"
	"github.com/manarah-platform/manarah/internal/platform/httpx"
	"github.com/manarah-platform/manarah/internal/quotations"
	"github.com/manarah-platform/manarah/internal/requests"
	"github.com/manarah-platform/manarah/internal/shared"
)

// RequestPort loads the request an export is scoped to.
type RequestPort interface {
	Get(ctx context.Context, id int64) (requests.Request, error)
}

// BOQPort loads the request's bill of quantities.
type BOQPort interface {
	ListForRequest(ctx context.Context, requestID int64) ([]boq.Item, error)
}

// QuotationPort loads the request's quotations.
type QuotationPort interface {
	ListForRequest(ctx context.Context, requestID int64) ([]quotations.Quotation, error)
}

// OrderPort loads the order a voucher is printed for.
type OrderPort interface {
	GetOrder(ctx context.Context, id int64) (disbursement.Order, error)
}

// Handler serves CSV exports and printable payloads.
type Handler struct {
	logger     *slog.Logger
	requests   RequestPort
	boq        BOQPort
	quotations QuotationPort
	orders     OrderPort
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, reqs RequestPort, boqPort BOQPort, quots QuotationPort, orders OrderPort) *Handler {
	return &Handler{logger: logger, requests: reqs, boq: boqPort, quotations: quots, orders: orders}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/requests/{id}/boq/export", h.boqSheet)
	r.Get("/requests/{id}/quotations/export", h.quotationComparison)
	r.Get("/disbursement-orders/{id}/voucher", h.voucher)
}

func (h *Handler) boqSheet(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	items, err := h.boq.ListForRequest(r.Context(), req.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="boq-`+req.Number+`.csv"`)
	if err := WriteBOQSheet(w, req, items); err != nil {
		h.logger.Error("write boq sheet", slog.Any("error", err))
	}
}

func (h *Handler) quotationComparison(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	items, err := h.quotations.ListForRequest(r.Context(), req.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="quotations-`+req.Number+`.csv"`)
	if err := WriteQuotationComparison(w, req, items); err != nil {
		h.logger.Error("write quotation comparison", slog.Any("error", err))
	}
}

func (h *Handler) voucher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if order.Status != disbursement.OrderExecuted && order.Status != disbursement.OrderPaid {
		httpx.RespondError(w, shared.Failf(shared.ErrInvalidState, "disbursement order %d is %s, vouchers print for executed orders", id, order.Status))
		return
	}
	httpx.JSON(w, http.StatusOK, BuildVoucher(order, time.Now()))
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) (requests.Request, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return requests.Request{}, false
	}
	req, err := h.requests.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return requests.Request{}, false
	}
	return req, true
}

func pathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.FieldFailf(param, "invalid id")
	}
	return id, nil
}
