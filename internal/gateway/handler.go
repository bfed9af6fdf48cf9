package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/velocity-dms/velocity-dms/internal/billing"
	"github.com/velocity-dms/velocity-dms/internal/customerorder"
	"github.com/velocity-dms/velocity-dms/internal/dealerorder"
	"github.com/velocity-dms/velocity-dms/internal/delivery"
	"github.com/velocity-dms/velocity-dms/internal/inventory"
	"github.com/velocity-dms/velocity-dms/internal/platform/httpx"
	"github.com/velocity-dms/velocity-dms/internal/quotation"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// Handler exposes every workflow command over HTTP. Mutations accept
// an optional Idempotency-Key header; a replayed key returns a
// conflict instead of silently re-running the command.
type Handler struct {
	logger   *slog.Logger
	workflow *Workflow
	idem     *shared.IdempotencyStore
	validate *validator.Validate
}

// NewHandler constructs the gateway HTTP handler.
func NewHandler(logger *slog.Logger, workflow *Workflow, idem *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, workflow: workflow, idem: idem, validate: validator.New()}
}

// MountRoutes registers all workflow command routes.
func (h *Handler) MountRoutes(r chi.Router) {
	w := h.workflow

	r.Post("/dealer-orders", h.createDealerOrder)
	r.Post("/dealer-orders/{id}/approve", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.ApproveDealerOrder(r.Context(), id)
	}))
	r.Post("/dealer-orders/{id}/reject-approval", h.reasonCommand(func(r *http.Request, id int64, reason string) (any, error) {
		return w.RejectDealerOrderApproval(r.Context(), id, reason)
	}))
	r.Post("/dealer-orders/{id}/process", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.MarkDealerOrderProcessing(r.Context(), id)
	}))
	r.Post("/dealer-orders/{id}/complete", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.CompleteDealerOrder(r.Context(), id)
	}))
	r.Post("/dealer-orders/{id}/cancel", h.reasonCommand(func(r *http.Request, id int64, reason string) (any, error) {
		return w.CancelDealerOrder(r.Context(), id, reason)
	}))
	r.Delete("/dealer-orders/{id}", h.deleteCommand(func(r *http.Request, id int64) error {
		return w.DeleteDealerOrder(r.Context(), id)
	}))
	r.Post("/dealer-orders/{id}/quotations", h.quoteCommand(func(r *http.Request, input QuoteInput) (any, error) {
		return w.CreateDealerQuotation(r.Context(), input)
	}))

	r.Post("/customer-orders", h.createCustomerOrder)
	r.Post("/customer-orders/{id}/reject", h.reasonCommand(func(r *http.Request, id int64, reason string) (any, error) {
		return w.RejectCustomerOrder(r.Context(), id, reason)
	}))
	r.Post("/customer-orders/{id}/cancel", h.reasonCommand(func(r *http.Request, id int64, reason string) (any, error) {
		return w.CancelCustomerOrder(r.Context(), id, reason)
	}))
	r.Post("/customer-orders/{id}/complete", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.CompleteCustomerOrder(r.Context(), id)
	}))
	r.Delete("/customer-orders/{id}", h.deleteCommand(func(r *http.Request, id int64) error {
		return w.DeleteCustomerOrder(r.Context(), id)
	}))
	r.Post("/customer-orders/{id}/quotations", h.quoteCommand(func(r *http.Request, input QuoteInput) (any, error) {
		return w.CreateCustomerQuotation(r.Context(), input)
	}))

	r.Post("/quotations/{id}/send", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.SendQuotation(r.Context(), id)
	}))
	r.Post("/quotations/{id}/accept", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.AcceptQuotation(r.Context(), id)
	}))
	r.Post("/quotations/{id}/reject", h.reasonCommand(func(r *http.Request, id int64, reason string) (any, error) {
		return w.RejectQuotation(r.Context(), id, reason)
	}))

	r.Post("/vehicle-units", h.registerUnit)
	r.Post("/vehicle-units/{id}/reserve", h.reserveUnit)
	r.Post("/vehicle-units/{id}/release", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.ReleaseUnit(r.Context(), id)
	}))

	r.Post("/payments", h.recordPayment)
	r.Post("/payments/{id}/confirm", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.ConfirmPayment(r.Context(), id)
	}))
	r.Post("/payments/{id}/fail", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.FailPayment(r.Context(), id)
	}))
	r.Delete("/payments/{id}", h.deleteCommand(func(r *http.Request, id int64) error {
		return w.DeletePayment(r.Context(), id)
	}))

	r.Post("/deliveries", h.scheduleDelivery)
	r.Post("/deliveries/{id}/dispatch", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.DispatchDelivery(r.Context(), id)
	}))
	r.Post("/deliveries/{id}/confirm-shipper", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.ConfirmShipperDelivery(r.Context(), id)
	}))
	r.Post("/deliveries/{id}/confirm-dealer", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.ConfirmDealerDelivery(r.Context(), id)
	}))
	r.Post("/deliveries/{id}/confirm-appointment", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.ConfirmAppointment(r.Context(), id)
	}))
	r.Post("/deliveries/{id}/complete-appointment", h.idCommand(func(r *http.Request, id int64) (any, error) {
		return w.CompleteAppointment(r.Context(), id)
	}))
	r.Post("/deliveries/{id}/cancel", h.reasonCommand(func(r *http.Request, id int64, reason string) (any, error) {
		return w.CancelDelivery(r.Context(), id, reason)
	}))
	r.Delete("/deliveries/{id}", h.deleteCommand(func(r *http.Request, id int64) error {
		return w.DeleteDelivery(r.Context(), id)
	}))
}

func (h *Handler) createDealerOrder(w http.ResponseWriter, r *http.Request) {
	var req createDealerOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	lines := make([]dealerorder.LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, dealerorder.LineInput{
			VariantID:   l.VariantID,
			ColorID:     l.ColorID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			DiscountPct: l.DiscountPct,
		})
	}
	order, err := h.workflow.CreateDealerOrder(r.Context(), dealerorder.CreateOrderInput{
		DealerID: req.DealerID,
		Notes:    req.Notes,
		Lines:    lines,
	})
	if err != nil {
		h.respondError(w, "create dealer order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) createCustomerOrder(w http.ResponseWriter, r *http.Request) {
	var req createCustomerOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.workflow.CreateCustomerOrder(r.Context(), customerorder.CreateOrderInput{
		CustomerID:  req.CustomerID,
		VariantID:   req.VariantID,
		ColorID:     req.ColorID,
		UnitID:      req.UnitID,
		TotalAmount: req.TotalAmount,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondError(w, "create customer order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) registerUnit(w http.ResponseWriter, r *http.Request) {
	var req registerUnitRequest
	if !h.decode(w, r, &req) {
		return
	}
	unit, err := h.workflow.RegisterUnit(r.Context(), inventory.CreateUnitInput{
		VIN:           req.VIN,
		ChassisNumber: req.ChassisNumber,
		VariantID:     req.VariantID,
		ColorID:       req.ColorID,
		WarehouseID:   req.WarehouseID,
		Price:         req.Price,
	})
	if err != nil {
		h.respondError(w, "register unit", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, unit)
}

func (h *Handler) reserveUnit(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reserveUnitRequest
	if !h.decode(w, r, &req) {
		return
	}
	track, _ := shared.ParseTrack(req.Track)
	unit, err := h.workflow.ReserveUnit(r.Context(), track, req.OrderID, unitID)
	if err != nil {
		h.respondError(w, "reserve unit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	if !h.idempotent(w, r, "billing") {
		return
	}
	var req recordPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	track, _ := shared.ParseTrack(req.Track)
	payment, err := h.workflow.RecordPayment(r.Context(), track, req.OrderID, req.Amount, req.Method, req.Reference)
	if err != nil {
		h.respondError(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) scheduleDelivery(w http.ResponseWriter, r *http.Request) {
	var req scheduleDeliveryRequest
	if !h.decode(w, r, &req) {
		return
	}
	track, _ := shared.ParseTrack(req.Track)
	d, err := h.workflow.ScheduleDelivery(r.Context(), delivery.ScheduleInput{
		Track:         track,
		OrderID:       req.OrderID,
		ScheduledDate: req.ScheduledDate,
		Address:       req.Address,
		Carrier:       req.Carrier,
		Notes:         req.Notes,
	})
	if err != nil {
		h.respondError(w, "schedule delivery", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

// idCommand adapts a workflow call keyed by the path id.
func (h *Handler) idCommand(run func(r *http.Request, id int64) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		if !h.idempotent(w, r, "workflow") {
			return
		}
		result, err := run(r, id)
		if err != nil {
			h.respondError(w, r.URL.Path, err)
			return
		}
		httpx.JSON(w, http.StatusOK, result)
	}
}

// reasonCommand adapts a workflow call that takes a mandatory reason.
func (h *Handler) reasonCommand(run func(r *http.Request, id int64, reason string) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		if !h.idempotent(w, r, "workflow") {
			return
		}
		var req reasonRequest
		if !h.decode(w, r, &req) {
			return
		}
		result, err := run(r, id, req.Reason)
		if err != nil {
			h.respondError(w, r.URL.Path, err)
			return
		}
		httpx.JSON(w, http.StatusOK, result)
	}
}

// deleteCommand adapts a hard delete keyed by the path id.
func (h *Handler) deleteCommand(run func(r *http.Request, id int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		if err := run(r, id); err != nil {
			h.respondError(w, r.URL.Path, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// quoteCommand adapts quotation creation for either track.
func (h *Handler) quoteCommand(run func(r *http.Request, input QuoteInput) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		if !h.idempotent(w, r, "quotation") {
			return
		}
		var req quoteRequest
		if !h.decode(w, r, &req) {
			return
		}
		result, err := run(r, QuoteInput{
			OrderID:        id,
			DiscountPct:    req.DiscountPct,
			DiscountAmount: req.DiscountAmount,
			ValidityDays:   req.ValidityDays,
			Notes:          req.Notes,
		})
		if err != nil {
			h.respondError(w, r.URL.Path, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, result)
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

// idempotent enforces the Idempotency-Key header when present.
func (h *Handler) idempotent(w http.ResponseWriter, r *http.Request, module string) bool {
	key := r.Header.Get("Idempotency-Key")
	if key == "" || h.idem == nil {
		return true
	}
	if err := h.idem.CheckAndInsert(r.Context(), key, module); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

// respondError maps domain errors onto the shared problem taxonomy.
func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case isNotFound(err):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, quotation.ErrExpired):
		httpx.Problem(w, http.StatusGone, "Expired", err.Error())
	case isConflict(err):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, dealerorder.ErrNotFound) ||
		errors.Is(err, customerorder.ErrNotFound) ||
		errors.Is(err, quotation.ErrNotFound) ||
		errors.Is(err, billing.ErrInvoiceNotFound) ||
		errors.Is(err, billing.ErrPaymentNotFound) ||
		errors.Is(err, inventory.ErrNotFound) ||
		errors.Is(err, delivery.ErrNotFound)
}

func isConflict(err error) bool {
	return errors.Is(err, dealerorder.ErrInvalidTransition) ||
		errors.Is(err, customerorder.ErrInvalidTransition) ||
		errors.Is(err, quotation.ErrInvalidTransition) ||
		errors.Is(err, quotation.ErrInvalidOrder) ||
		errors.Is(err, billing.ErrInvoiceExists) ||
		errors.Is(err, billing.ErrInvalidState) ||
		errors.Is(err, billing.ErrOverpayment) ||
		errors.Is(err, inventory.ErrNotAvailable) ||
		errors.Is(err, inventory.ErrNotReserved) ||
		errors.Is(err, inventory.ErrDuplicateVIN) ||
		errors.Is(err, delivery.ErrInvalidTransition) ||
		errors.Is(err, delivery.ErrWrongTrack) ||
		errors.Is(err, shared.ErrLockHeld)
}
