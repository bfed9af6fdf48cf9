package quotation

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/velocity-dms/velocity-dms/internal/platform/httpx"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// Handler exposes read access to quotations. Mutations go through the
// workflow gateway only.
type Handler struct {
	logger *slog.Logger
	engine *Engine
}

// NewHandler constructs the quotation HTTP handler.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine}
}

// MountRoutes registers quotation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/quotations/{id}", h.Get)
	r.Get("/orders/{track}/{orderID}/quotations", h.ListForOrder)
	r.Get("/orders/{track}/{orderID}/quotations/active", h.ActiveForOrder)
}

// Get returns a single quotation with its lines.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	q, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get quotation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// ListForOrder returns an order's quotation history, newest first.
func (h *Handler) ListForOrder(w http.ResponseWriter, r *http.Request) {
	track, orderID, ok := h.orderRef(w, r)
	if !ok {
		return
	}
	quotes, err := h.engine.ListForOrder(r.Context(), track, orderID)
	if err != nil {
		h.logger.Error("list order quotations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"quotations": quotes})
}

// ActiveForOrder returns the order's pending or sent quotation.
func (h *Handler) ActiveForOrder(w http.ResponseWriter, r *http.Request) {
	track, orderID, ok := h.orderRef(w, r)
	if !ok {
		return
	}
	q, err := h.engine.ActiveForOrder(r.Context(), track, orderID)
	if err != nil {
		h.respondError(w, "get active quotation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) orderRef(w http.ResponseWriter, r *http.Request) (shared.Track, int64, bool) {
	track, err := shared.ParseTrack(chi.URLParam(r, "track"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return "", 0, false
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return "", 0, false
	}
	return track, orderID, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
