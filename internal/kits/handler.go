package kits

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-retail/meridian-retail/internal/catalog"
	"github.com/meridian-retail/meridian-retail/internal/platform/httpx"
)

// Handler serves kit availability reads.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers kit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/availability", h.availability)
	r.Post("/refresh", h.refresh)
}

// availability serves the cached buildable quantity; pass live=1 to force a
// recomputation from current stock.
func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	kitID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || kitID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "numeric kit id required")
		return
	}
	locationID, err := strconv.ParseInt(r.URL.Query().Get("location"), 10, 64)
	if err != nil || locationID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Location", "location query parameter required")
		return
	}
	var qty int
	if r.URL.Query().Get("live") == "1" {
		qty, err = h.service.Buildable(r.Context(), kitID, locationID)
	} else {
		qty, err = h.service.CachedBuildable(r.Context(), kitID, locationID)
	}
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("kit availability", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"kit_id":      kitID,
		"location_id": locationID,
		"buildable":   qty,
	})
}

// refresh recomputes the cached availability for one location on demand.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	locationID, err := strconv.ParseInt(r.URL.Query().Get("location"), 10, 64)
	if err != nil || locationID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Location", "location query parameter required")
		return
	}
	if err := h.service.RefreshLocation(r.Context(), locationID); err != nil {
		h.logger.Error("kit availability refresh", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
