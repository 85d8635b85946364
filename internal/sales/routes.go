package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian-retail/internal/platform/httpx"
	"github.com/meridian-retail/meridian-retail/internal/sales/customers"
)

// MountRoutes wires the sales domain routes: checkout and payments under
// /sales, reversal entry points for laybys and customers under their own
// prefixes.
func MountRoutes(
	r chi.Router,
	pool *pgxpool.Pool,
	logger *slog.Logger,
	service *Service,
) {
	handler := NewHandler(logger, service)
	r.Route("/sales", func(r chi.Router) {
		handler.MountRoutes(r)
	})

	customersRepo := customers.NewRepository(pool)
	customersSvc := customers.NewService(customersRepo)
	customersHandler := customers.NewHandler(logger, customersSvc)
	r.Route("/customers", func(r chi.Router) {
		customersHandler.MountRoutes(r)
		r.Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id, ok := handler.pathID(w, req)
			if !ok {
				return
			}
			if err := service.DeleteCustomer(req.Context(), id, actorID(req)); err != nil {
				handler.respondError(w, req, "delete customer", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Route("/laybys", func(r chi.Router) {
		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id, ok := handler.pathID(w, req)
			if !ok {
				return
			}
			layby, err := service.GetLayby(req.Context(), id)
			if err != nil {
				handler.respondError(w, req, "get layby", err)
				return
			}
			httpx.JSON(w, http.StatusOK, layby)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id, ok := handler.pathID(w, req)
			if !ok {
				return
			}
			if err := service.DeleteLayby(req.Context(), id, actorID(req)); err != nil {
				handler.respondError(w, req, "delete layby", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
}
