package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/velocity-dms/velocity-dms/internal/billing"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// RecordPayment registers a pending payment against an order's
// invoice.
func (w *Workflow) RecordPayment(ctx context.Context, track shared.Track, orderID int64, amount decimal.Decimal, method, reference string) (*billing.Payment, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdRecordPayment); err != nil {
		return nil, err
	}
	inv, err := w.billing.InvoiceForOrder(ctx, track, orderID)
	if err != nil {
		return nil, err
	}
	release, err := w.locker.Acquire(ctx, entityInvoice, inv.ID)
	if err != nil {
		return nil, err
	}
	defer release()
	return w.billing.RecordPayment(ctx, track, orderID, amount, method, reference)
}

// ConfirmPayment settles a pending payment. The order lock comes
// before the invoice lock so a full settlement can advance the order
// without deadlocking against a racing order command.
func (w *Workflow) ConfirmPayment(ctx context.Context, paymentID int64) (*billing.Payment, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdConfirmPayment); err != nil {
		return nil, err
	}
	p, err := w.billing.Payment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	releaseOrder, err := w.lockOrder(ctx, p.Track, p.OrderID)
	if err != nil {
		return nil, err
	}
	defer releaseOrder()
	releaseInvoice, err := w.locker.Acquire(ctx, entityInvoice, p.InvoiceID)
	if err != nil {
		return nil, err
	}
	defer releaseInvoice()
	return w.billing.ConfirmPayment(ctx, paymentID)
}

// FailPayment marks a pending payment as failed.
func (w *Workflow) FailPayment(ctx context.Context, paymentID int64) (*billing.Payment, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdFailPayment); err != nil {
		return nil, err
	}
	p, err := w.billing.Payment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	release, err := w.locker.Acquire(ctx, entityInvoice, p.InvoiceID)
	if err != nil {
		return nil, err
	}
	defer release()
	return w.billing.FailPayment(ctx, paymentID)
}

// DeletePayment removes a payment that never completed. Completed
// payments only disappear through the order deletion cascade.
func (w *Workflow) DeletePayment(ctx context.Context, paymentID int64) error {
	if err := authorize(shared.ActorFromContext(ctx), CmdDeletePayment); err != nil {
		return err
	}
	p, err := w.billing.Payment(ctx, paymentID)
	if err != nil {
		return err
	}
	release, err := w.locker.Acquire(ctx, entityInvoice, p.InvoiceID)
	if err != nil {
		return err
	}
	defer release()
	return w.billing.DeletePayment(ctx, paymentID)
}
