package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/manarah-platform/manarah/internal/attachments"
	"github.com/manarah-platform/manarah/internal/auth"
	"github.com/manarah-platform/manarah/internal/boq"
	"github.com/manarah-platform/manarah/internal/contracts"
	"github.com/manarah-platform/manarah/internal/disbursement"
	"github.com/manarah-platform/manarah/internal/mosques"
	"github.com/manarah-platform/manarah/internal/observability"
	"github.com/manarah-platform/manarah/internal/quotations"
	"github.com/manarah-platform/manarah/internal/reports"
	"github.com/manarah-platform/manarah/internal/requests"
	"github.com/manarah-platform/manarah/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthMiddleware auth.Middleware

	RequestsHandler     *requests.Handler
	BOQHandler          *boq.Handler
	QuotationsHandler   *quotations.Handler
	ContractsHandler    *contracts.Handler
	DisbursementHandler *disbursement.Handler
	MosquesHandler      *mosques.Handler
	AttachmentsHandler  *attachments.Handler
	ReportsHandler      *reports.Handler
	JobsHandler         *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Manarah defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(params.AuthMiddleware.Authenticate)

		if params.RequestsHandler != nil {
			params.RequestsHandler.MountRoutes(r)
		}
		if params.BOQHandler != nil {
			params.BOQHandler.MountRoutes(r)
		}
		if params.QuotationsHandler != nil {
			params.QuotationsHandler.MountRoutes(r)
		}
		if params.ContractsHandler != nil {
			params.ContractsHandler.MountRoutes(r)
		}
		if params.DisbursementHandler != nil {
			params.DisbursementHandler.MountRoutes(r)
		}
		if params.MosquesHandler != nil {
			params.MosquesHandler.MountRoutes(r)
		}
		if params.AttachmentsHandler != nil {
			params.AttachmentsHandler.MountRoutes(r)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(r)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
