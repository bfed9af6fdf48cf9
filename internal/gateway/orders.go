package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/velocity-dms/velocity-dms/internal/customerorder"
	"github.com/velocity-dms/velocity-dms/internal/dealerorder"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// CreateDealerOrder places a new bulk order in waiting_for_quotation
// with a pending approval.
func (w *Workflow) CreateDealerOrder(ctx context.Context, input dealerorder.CreateOrderInput) (*dealerorder.DealerOrder, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdCreateDealerOrder); err != nil {
		return nil, err
	}
	return w.dealerOrders.Create(ctx, input)
}

// ApproveDealerOrder records the manufacturer's approval decision.
// Racing approvals serialize on the order lock; the loser observes the
// already-approved order and gets a conflict from the state machine.
func (w *Workflow) ApproveDealerOrder(ctx context.Context, orderID int64) (*dealerorder.DealerOrder, error) {
	actor := shared.ActorFromContext(ctx)
	if err := authorize(actor, CmdApproveDealerOrder); err != nil {
		return nil, err
	}
	release, err := w.lockOrder(ctx, shared.TrackDealer, orderID)
	if err != nil {
		return nil, err
	}
	defer release()
	order, err := w.dealerOrders.Approve(ctx, orderID, actor.ID)
	if err != nil {
		return nil, err
	}
	w.recordApproval(ctx, orderID, actor.ID, shared.ApprovalApprove, "")
	return order, nil
}

// RejectDealerOrderApproval declines a pending dealer order.
func (w *Workflow) RejectDealerOrderApproval(ctx context.Context, orderID int64, reason string) (*dealerorder.DealerOrder, error) {
	actor := shared.ActorFromContext(ctx)
	if err := authorize(actor, CmdRejectDealerOrder); err != nil {
		return nil, err
	}
	release, err := w.lockOrder(ctx, shared.TrackDealer, orderID)
	if err != nil {
		return nil, err
	}
	defer release()
	order, err := w.dealerOrders.RejectApproval(ctx, orderID, actor.ID, reason)
	if err != nil {
		return nil, err
	}
	w.recordApproval(ctx, orderID, actor.ID, shared.ApprovalReject, reason)
	return order, nil
}

// recordApproval journals the decision. A write failure is logged,
// not surfaced; the decision itself already took effect.
func (w *Workflow) recordApproval(ctx context.Context, orderID, actorID int64, action shared.ApprovalAction, note string) {
	if w.approvals == nil {
		return
	}
	err := w.approvals.Record(ctx, shared.ApprovalLog{
		Module:  "dealer_order",
		RefID:   orderID,
		ActorID: actorID,
		Action:  action,
		Note:    note,
	})
	if err != nil {
		w.logger.Error("record approval", slog.Int64("order_id", orderID), slog.Any("error", err))
	}
}

// MarkDealerOrderProcessing moves a confirmed order into production.
func (w *Workflow) MarkDealerOrderProcessing(ctx context.Context, orderID int64) (*dealerorder.DealerOrder, error) {
	return w.progressDealerOrder(ctx, orderID, w.dealerOrders.MarkProcessing)
}

// CompleteDealerOrder closes out a delivered order.
func (w *Workflow) CompleteDealerOrder(ctx context.Context, orderID int64) (*dealerorder.DealerOrder, error) {
	return w.progressDealerOrder(ctx, orderID, w.dealerOrders.Complete)
}

func (w *Workflow) progressDealerOrder(ctx context.Context, orderID int64, move func(context.Context, int64) (*dealerorder.DealerOrder, error)) (*dealerorder.DealerOrder, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdProgressDealerOrder); err != nil {
		return nil, err
	}
	release, err := w.lockOrder(ctx, shared.TrackDealer, orderID)
	if err != nil {
		return nil, err
	}
	defer release()
	return move(ctx, orderID)
}

// CancelDealerOrder aborts a non-terminal order. Reserved units return
// to the available pool and any open delivery is called off; an
// already issued invoice stays on record.
func (w *Workflow) CancelDealerOrder(ctx context.Context, orderID int64, reason string) (*dealerorder.DealerOrder, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdCancelDealerOrder); err != nil {
		return nil, err
	}
	release, err := w.lockOrder(ctx, shared.TrackDealer, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := w.dealerOrders.Cancel(ctx, orderID, reason)
	if err != nil {
		return nil, err
	}
	if err := w.releaseOrderUnits(ctx, shared.TrackDealer, orderID); err != nil {
		return nil, err
	}
	if err := w.cancelOpenDeliveries(ctx, shared.TrackDealer, orderID, reason); err != nil {
		return nil, err
	}
	return order, nil
}

// DeleteDealerOrder hard-deletes a terminal order with the full
// cascade: payments and invoice first, then reserved units, then
// quotations and deliveries, then the order itself.
func (w *Workflow) DeleteDealerOrder(ctx context.Context, orderID int64) error {
	if err := authorize(shared.ActorFromContext(ctx), CmdDeleteDealerOrder); err != nil {
		return err
	}
	return w.deleteOrder(ctx, shared.TrackDealer, orderID)
}

// CreateCustomerOrder registers a customer's purchase request. The
// public flow needs no credential.
func (w *Workflow) CreateCustomerOrder(ctx context.Context, input customerorder.CreateOrderInput) (*customerorder.CustomerOrder, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdCreateCustomerOrder); err != nil {
		return nil, err
	}
	return w.customerOrders.Create(ctx, input)
}

// RejectCustomerOrder declines a purchase request. The reserved unit,
// if any, stays reserved for user follow-up.
func (w *Workflow) RejectCustomerOrder(ctx context.Context, orderID int64, reason string) (*customerorder.CustomerOrder, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdRejectCustomerOrder); err != nil {
		return nil, err
	}
	release, err := w.lockOrder(ctx, shared.TrackCustomer, orderID)
	if err != nil {
		return nil, err
	}
	defer release()
	return w.customerOrders.Reject(ctx, orderID, reason)
}

// CancelCustomerOrder aborts a non-terminal order and frees its unit.
func (w *Workflow) CancelCustomerOrder(ctx context.Context, orderID int64, reason string) (*customerorder.CustomerOrder, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdCancelCustomerOrder); err != nil {
		return nil, err
	}
	release, err := w.lockOrder(ctx, shared.TrackCustomer, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := w.customerOrders.Cancel(ctx, orderID, reason)
	if err != nil {
		return nil, err
	}
	if err := w.releaseOrderUnits(ctx, shared.TrackCustomer, orderID); err != nil {
		return nil, err
	}
	if err := w.cancelOpenDeliveries(ctx, shared.TrackCustomer, orderID, reason); err != nil {
		return nil, err
	}
	return order, nil
}

// CompleteCustomerOrder closes out a delivered purchase.
func (w *Workflow) CompleteCustomerOrder(ctx context.Context, orderID int64) (*customerorder.CustomerOrder, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdCompleteCustomer); err != nil {
		return nil, err
	}
	release, err := w.lockOrder(ctx, shared.TrackCustomer, orderID)
	if err != nil {
		return nil, err
	}
	defer release()
	return w.customerOrders.Complete(ctx, orderID)
}

// DeleteCustomerOrder hard-deletes a terminal order with the full
// cascade.
func (w *Workflow) DeleteCustomerOrder(ctx context.Context, orderID int64) error {
	if err := authorize(shared.ActorFromContext(ctx), CmdDeleteCustomerOrder); err != nil {
		return err
	}
	return w.deleteOrder(ctx, shared.TrackCustomer, orderID)
}

// deleteOrder runs the deletion cascade. The order must already be
// terminal; the cascade either completes fully or compensates back so
// no payment dangles and no unit stays reserved for a ghost order.
func (w *Workflow) deleteOrder(ctx context.Context, track shared.Track, orderID int64) error {
	release, err := w.lockOrder(ctx, track, orderID)
	if err != nil {
		return err
	}
	defer release()

	if err := w.ensureOrderTerminal(ctx, track, orderID); err != nil {
		return err
	}

	units, err := w.inventory.UnitsForOrder(ctx, track, orderID)
	if err != nil {
		return err
	}

	sg := newSaga("delete_order", w.logger)
	sg.add("purge billing", func(ctx context.Context) error {
		return w.billing.PurgeOrder(ctx, track, orderID)
	}, nil)
	for _, unit := range units {
		unitID := unit.ID
		sg.add(fmt.Sprintf("release unit %d", unitID), func(ctx context.Context) error {
			_, err := w.inventory.Release(ctx, unitID)
			return err
		}, func(ctx context.Context) error {
			_, err := w.inventory.Reserve(ctx, unitID, track, orderID)
			return err
		})
	}
	sg.add("delete quotations", func(ctx context.Context) error {
		return w.quotes.DeleteForOrder(ctx, track, orderID)
	}, nil)
	sg.add("purge deliveries", func(ctx context.Context) error {
		return w.deliveries.PurgeOrder(ctx, track, orderID)
	}, nil)
	sg.add("delete order", func(ctx context.Context) error {
		if track == shared.TrackDealer {
			return w.dealerOrders.Delete(ctx, orderID)
		}
		return w.customerOrders.Delete(ctx, orderID)
	}, nil)
	return sg.run(ctx)
}

func (w *Workflow) ensureOrderTerminal(ctx context.Context, track shared.Track, orderID int64) error {
	if track == shared.TrackDealer {
		order, err := w.dealerOrders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.Terminal() {
			return fmt.Errorf("%w: dealer order %d is %s, cannot delete",
				dealerorder.ErrInvalidTransition, orderID, order.Status)
		}
		return nil
	}
	order, err := w.customerOrders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Status.Terminal() {
		return fmt.Errorf("%w: customer order %d is %s, cannot delete",
			customerorder.ErrInvalidTransition, orderID, order.Status)
	}
	return nil
}

// releaseOrderUnits frees every unit still reserved for the order.
func (w *Workflow) releaseOrderUnits(ctx context.Context, track shared.Track, orderID int64) error {
	units, err := w.inventory.UnitsForOrder(ctx, track, orderID)
	if err != nil {
		return err
	}
	for _, unit := range units {
		if _, err := w.inventory.Release(ctx, unit.ID); err != nil {
			return fmt.Errorf("release unit %d: %w", unit.ID, err)
		}
	}
	return nil
}

// cancelOpenDeliveries calls off any delivery still pending for the
// order.
func (w *Workflow) cancelOpenDeliveries(ctx context.Context, track shared.Track, orderID int64, reason string) error {
	deliveries, err := w.deliveries.ForOrder(ctx, track, orderID)
	if err != nil {
		return err
	}
	for _, d := range deliveries {
		if d.Status.Terminal() {
			continue
		}
		if _, err := w.deliveries.Cancel(ctx, d.ID, reason); err != nil {
			return fmt.Errorf("cancel delivery %d: %w", d.ID, err)
		}
	}
	return nil
}
