package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian-retail/internal/audit"
	"github.com/meridian-retail/meridian-retail/internal/kits"
	"github.com/meridian-retail/meridian-retail/internal/observability"
	"github.com/meridian-retail/meridian-retail/internal/sales"
	"github.com/meridian-retail/meridian-retail/internal/stock"
	"github.com/meridian-retail/meridian-retail/internal/stocktake"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Pool             *pgxpool.Pool
	SalesService     *sales.Service
	StockHandler     *stock.Handler
	KitsHandler      *kits.Handler
	StocktakeHandler *stocktake.Handler
	AuditHandler     *audit.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
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

	sales.MountRoutes(r, params.Pool, params.Logger, params.SalesService)
	r.Route("/products", params.StockHandler.MountRoutes)
	r.Route("/kits", params.KitsHandler.MountRoutes)
	r.Route("/stocktakes", params.StocktakeHandler.MountRoutes)
	r.Route("/audit", params.AuditHandler.MountRoutes)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
