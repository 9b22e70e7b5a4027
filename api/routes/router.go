package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/orderrecon/api/controllers"
	"github.com/angelmondragon/orderrecon/api/middleware"
	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/config"
	"github.com/angelmondragon/orderrecon/pkg/logger"
)

type runTrigger interface {
	Run(ctx context.Context, window time.Duration, opts ...reconcile.RunOption) (reconcile.RunSummary, error)
}

type invoiceReconciler interface {
	ReconcileInvoice(ctx context.Context, orderID uuid.UUID, incrementID, token string) reconcile.Result
}

type lastRunReader interface {
	LastRun(ctx context.Context, label string) (*reconcile.LastRun, error)
}

// RouterParams wires the admin HTTP surface.
type RouterParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	Gatherer  prometheus.Gatherer
	Runner    runTrigger
	Invoices  invoiceReconciler
	RunStore  lastRunReader
	Readiness []controllers.ReadinessCheck
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.Readiness...))
	})

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1/admin/reconcile", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.AdminAuth, logg))

		r.Post("/runs", controllers.AdminReconcileRun(params.Runner, logg))
		r.Get("/runs/{label}/last", controllers.AdminLastRun(params.RunStore, logg))
		r.Post("/invoices", controllers.AdminReconcileInvoice(params.Invoices, logg))
	})

	return r
}
