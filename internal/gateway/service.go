// Package gateway is the workflow façade. Every mutating command in
// the fulfillment lifecycle enters here: the gateway checks the
// actor's role, serializes the command per entity id, and runs
// cross-entity cascades as compensated sagas so callers never observe
// a half-applied transition.
package gateway

import (
	"context"
	"log/slog"

	"github.com/velocity-dms/velocity-dms/internal/billing"
	"github.com/velocity-dms/velocity-dms/internal/customerorder"
	"github.com/velocity-dms/velocity-dms/internal/dealerorder"
	"github.com/velocity-dms/velocity-dms/internal/delivery"
	"github.com/velocity-dms/velocity-dms/internal/inventory"
	"github.com/velocity-dms/velocity-dms/internal/quotation"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// Lock entity names. Cascading commands acquire locks in the fixed
// global order: order, quotation, invoice, vehicle unit, delivery.
const (
	entityDealerOrder   = "dealer_order"
	entityCustomerOrder = "customer_order"
	entityQuotation     = "quotation"
	entityInvoice       = "invoice"
	entityVehicleUnit   = "vehicle_unit"
	entityDelivery      = "delivery"
)

// Workflow coordinates the six lifecycle components behind one façade.
type Workflow struct {
	logger         *slog.Logger
	dealerOrders   *dealerorder.Service
	customerOrders *customerorder.Service
	quotes         *quotation.Engine
	billing        *billing.Ledger
	inventory      *inventory.Ledger
	deliveries     *delivery.Scheduler
	locker         *shared.EntityLocker
	approvals      *shared.ApprovalRecorder
}

// WithApprovalLog attaches the approval history recorder. Dealer order
// approve and reject decisions are journalled best-effort.
func (w *Workflow) WithApprovalLog(rec *shared.ApprovalRecorder) *Workflow {
	w.approvals = rec
	return w
}

// NewWorkflow wires the gateway.
func NewWorkflow(
	logger *slog.Logger,
	dealerOrders *dealerorder.Service,
	customerOrders *customerorder.Service,
	quotes *quotation.Engine,
	ledger *billing.Ledger,
	inv *inventory.Ledger,
	deliveries *delivery.Scheduler,
	locker *shared.EntityLocker,
) *Workflow {
	return &Workflow{
		logger:         logger,
		dealerOrders:   dealerOrders,
		customerOrders: customerOrders,
		quotes:         quotes,
		billing:        ledger,
		inventory:      inv,
		deliveries:     deliveries,
		locker:         locker,
	}
}

func orderEntity(track shared.Track) string {
	if track == shared.TrackDealer {
		return entityDealerOrder
	}
	return entityCustomerOrder
}

// lockOrder serializes commands touching one order.
func (w *Workflow) lockOrder(ctx context.Context, track shared.Track, orderID int64) (func(), error) {
	return w.locker.Acquire(ctx, orderEntity(track), orderID)
}

// OrderPaidAdapter lets the billing ledger advance a fully paid order
// without a dependency cycle. Dealer orders track fulfillment, not
// payment, so only the customer track moves.
type OrderPaidAdapter struct {
	Customers *customerorder.Service
}

// OrderFullyPaid implements billing.OrderPort.
func (a *OrderPaidAdapter) OrderFullyPaid(ctx context.Context, track shared.Track, orderID int64) error {
	if track != shared.TrackCustomer || a.Customers == nil {
		return nil
	}
	_, err := a.Customers.MarkPaid(ctx, orderID)
	return err
}

// QuoteDetachAdapter clears an order's quotation reference when its
// quotation expires, the same release the rejection path performs, so
// the order stays quotable instead of dead-ending on a stale quote.
type QuoteDetachAdapter struct {
	Dealers   *dealerorder.Service
	Customers *customerorder.Service
}

// DetachQuotation implements quotation.OrderDetacher.
func (a *QuoteDetachAdapter) DetachQuotation(ctx context.Context, track shared.Track, orderID int64) error {
	if track == shared.TrackDealer {
		if a.Dealers == nil {
			return nil
		}
		_, err := a.Dealers.DetachQuotation(ctx, orderID)
		return err
	}
	if a.Customers == nil {
		return nil
	}
	_, err := a.Customers.ClearQuotation(ctx, orderID)
	return err
}
