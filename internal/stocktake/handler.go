package stocktake

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-retail/internal/platform/httpx"
	"github.com/meridian-retail/meridian-retail/internal/shared"
)

// Handler exposes count sessions over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stocktake routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.startSession)
	r.Get("/{id}", h.getSession)
	r.Post("/{id}/entries", h.recordEntry)
	r.Post("/{id}/pause", h.lifecycle(h.service.Pause))
	r.Post("/{id}/resume", h.lifecycle(h.service.Resume))
	r.Post("/{id}/close", h.lifecycle(h.service.Close))
	r.Post("/{id}/submit", h.lifecycle(h.service.Submit))
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var input struct {
		LocationID int64 `json:"location_id"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	session, err := h.service.StartSession(r.Context(), input.LocationID)
	if err != nil {
		h.respondError(w, "start session", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, session)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	session, entries, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		h.respondError(w, "get session", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"session": session, "entries": entries})
}

func (h *Handler) recordEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var input struct {
		ProductID int64 `json:"product_id"`
		Qty       int   `json:"qty"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.service.RecordEntry(r.Context(), id, input.ProductID, input.Qty); err != nil {
		h.respondError(w, "record entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lifecycle(op func(ctx context.Context, id uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.sessionID(w, r)
		if !ok {
			return
		}
		if err := op(r.Context(), id); err != nil {
			h.respondError(w, "session transition", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "session id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrSessionState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, shared.ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "concurrent update, retry the request")
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
