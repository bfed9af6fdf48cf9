package delivery

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/velocity-dms/velocity-dms/internal/platform/httpx"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// Handler exposes read access to deliveries. Mutations go through the
// workflow gateway only.
type Handler struct {
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewHandler constructs the delivery HTTP handler.
func NewHandler(logger *slog.Logger, scheduler *Scheduler) *Handler {
	return &Handler{logger: logger, scheduler: scheduler}
}

// MountRoutes registers delivery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/deliveries", h.List)
	r.Get("/deliveries/{id}", h.Get)
	r.Get("/orders/{track}/{orderID}/deliveries", h.ListForOrder)
}

// List returns deliveries matching the query filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Limit: 50}
	q := r.URL.Query()
	if v := q.Get("track"); v != "" {
		track, err := shared.ParseTrack(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		filter.Track = &track
	}
	if v := q.Get("status"); v != "" {
		status, err := ParseStatus(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		filter.Status = &status
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	deliveries, total, err := h.scheduler.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list deliveries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"deliveries": deliveries,
		"pagination": shared.PageFromOffset(filter.Limit, filter.Offset, total),
	})
}

// Get returns a single delivery.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	d, err := h.scheduler.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get delivery", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

// ListForOrder returns an order's deliveries.
func (h *Handler) ListForOrder(w http.ResponseWriter, r *http.Request) {
	track, err := shared.ParseTrack(chi.URLParam(r, "track"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	deliveries, err := h.scheduler.ForOrder(r.Context(), track, orderID)
	if err != nil {
		h.logger.Error("list order deliveries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deliveries": deliveries})
}
