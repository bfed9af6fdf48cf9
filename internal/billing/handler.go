package billing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/velocity-dms/velocity-dms/internal/platform/httpx"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// Handler exposes read access to invoices and payments. Mutations go
// through the workflow gateway only.
type Handler struct {
	logger *slog.Logger
	ledger *Ledger
}

// NewHandler constructs the billing HTTP handler.
func NewHandler(logger *slog.Logger, ledger *Ledger) *Handler {
	return &Handler{logger: logger, ledger: ledger}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices", h.ListInvoices)
	r.Get("/invoices/{id}", h.GetInvoice)
	r.Get("/orders/{track}/{orderID}/invoice", h.GetOrderInvoice)
	r.Get("/orders/{track}/{orderID}/payments", h.ListOrderPayments)
	r.Get("/payments/{id}", h.GetPayment)
}

// ListInvoices returns invoices matching the query filters.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	filter := InvoiceFilter{Limit: 50}
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
		status, err := ParseInvoiceStatus(v)
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

	invoices, total, err := h.ledger.ListInvoices(r.Context(), filter)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices":   invoices,
		"pagination": shared.PageFromOffset(filter.Limit, filter.Offset, total),
	})
}

// GetInvoice returns a single invoice.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	inv, err := h.ledger.Invoice(r.Context(), id)
	if err != nil {
		h.respondLedgerError(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// GetOrderInvoice returns the invoice issued for an order, if any.
func (h *Handler) GetOrderInvoice(w http.ResponseWriter, r *http.Request) {
	track, orderID, ok := h.orderRef(w, r)
	if !ok {
		return
	}
	inv, err := h.ledger.InvoiceForOrder(r.Context(), track, orderID)
	if err != nil {
		h.respondLedgerError(w, "get order invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// ListOrderPayments returns an order's payments, oldest first.
func (h *Handler) ListOrderPayments(w http.ResponseWriter, r *http.Request) {
	track, orderID, ok := h.orderRef(w, r)
	if !ok {
		return
	}
	payments, err := h.ledger.PaymentsForOrder(r.Context(), track, orderID)
	if err != nil {
		h.logger.Error("list order payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

// GetPayment returns a single payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	p, err := h.ledger.Payment(r.Context(), id)
	if err != nil {
		h.respondLedgerError(w, "get payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
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

func (h *Handler) respondLedgerError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrPaymentNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
