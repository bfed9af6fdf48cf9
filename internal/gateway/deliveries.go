package gateway

import (
	"context"
	"fmt"

	"github.com/velocity-dms/velocity-dms/internal/customerorder"
	"github.com/velocity-dms/velocity-dms/internal/dealerorder"
	"github.com/velocity-dms/velocity-dms/internal/delivery"
	"github.com/velocity-dms/velocity-dms/internal/inventory"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// RegisterUnit adds a vehicle to the available pool.
func (w *Workflow) RegisterUnit(ctx context.Context, input inventory.CreateUnitInput) (*inventory.VehicleUnit, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdRegisterUnit); err != nil {
		return nil, err
	}
	return w.inventory.Register(ctx, input)
}

// ReserveUnit claims an available unit for an order. The reserve is
// compare-and-swap on the unit row, so two orders racing for the same
// vehicle produce exactly one winner. On the customer track the unit
// is also pinned to the order record; a failed pin releases the claim.
func (w *Workflow) ReserveUnit(ctx context.Context, track shared.Track, orderID, unitID int64) (*inventory.VehicleUnit, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdReserveUnit); err != nil {
		return nil, err
	}
	releaseOrder, err := w.lockOrder(ctx, track, orderID)
	if err != nil {
		return nil, err
	}
	defer releaseOrder()
	releaseUnit, err := w.locker.Acquire(ctx, entityVehicleUnit, unitID)
	if err != nil {
		return nil, err
	}
	defer releaseUnit()

	var unit *inventory.VehicleUnit
	sg := newSaga("reserve_unit", w.logger)
	sg.add("reserve", func(ctx context.Context) error {
		var err error
		unit, err = w.inventory.Reserve(ctx, unitID, track, orderID)
		return err
	}, func(ctx context.Context) error {
		_, err := w.inventory.Release(ctx, unitID)
		return err
	})
	if track == shared.TrackCustomer {
		sg.add("pin to order", func(ctx context.Context) error {
			_, err := w.customerOrders.AssignUnit(ctx, orderID, unitID)
			return err
		}, nil)
	}
	if err := sg.run(ctx); err != nil {
		return nil, err
	}
	return unit, nil
}

// ReleaseUnit returns a unit to the available pool.
func (w *Workflow) ReleaseUnit(ctx context.Context, unitID int64) (*inventory.VehicleUnit, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdReleaseUnit); err != nil {
		return nil, err
	}
	release, err := w.locker.Acquire(ctx, entityVehicleUnit, unitID)
	if err != nil {
		return nil, err
	}
	defer release()
	return w.inventory.Release(ctx, unitID)
}

// ScheduleDelivery books a handover. A dealer shipment requires a
// confirmed or processing order; a customer appointment requires the
// order to be fully paid.
func (w *Workflow) ScheduleDelivery(ctx context.Context, input delivery.ScheduleInput) (*delivery.Delivery, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdScheduleDelivery); err != nil {
		return nil, err
	}
	release, err := w.lockOrder(ctx, input.Track, input.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	if input.Track == shared.TrackDealer {
		order, err := w.dealerOrders.Get(ctx, input.OrderID)
		if err != nil {
			return nil, err
		}
		switch order.Status {
		case dealerorder.StatusConfirmed, dealerorder.StatusProcessing:
		default:
			return nil, fmt.Errorf("%w: dealer order %d is %s, cannot schedule shipment",
				delivery.ErrInvalidTransition, order.ID, order.Status)
		}
	} else {
		order, err := w.customerOrders.Get(ctx, input.OrderID)
		if err != nil {
			return nil, err
		}
		if order.Status != customerorder.StatusPaid {
			return nil, fmt.Errorf("%w: customer order %d is %s, appointment requires full payment",
				delivery.ErrInvalidTransition, order.ID, order.Status)
		}
	}
	return w.deliveries.Schedule(ctx, input)
}

// DispatchDelivery puts a dealer shipment on the road: the order moves
// to shipped and its reserved units to in_transit.
func (w *Workflow) DispatchDelivery(ctx context.Context, deliveryID int64) (*delivery.Delivery, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdDispatchDelivery); err != nil {
		return nil, err
	}
	d, err := w.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	releaseOrder, err := w.lockOrder(ctx, d.Track, d.OrderID)
	if err != nil {
		return nil, err
	}
	defer releaseOrder()
	releaseDelivery, err := w.locker.Acquire(ctx, entityDelivery, deliveryID)
	if err != nil {
		return nil, err
	}
	defer releaseDelivery()

	order, err := w.dealerOrders.Get(ctx, d.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != dealerorder.StatusProcessing {
		return nil, fmt.Errorf("%w: dealer order %d is %s, cannot dispatch",
			delivery.ErrInvalidTransition, order.ID, order.Status)
	}
	units, err := w.inventory.UnitsForOrder(ctx, d.Track, d.OrderID)
	if err != nil {
		return nil, err
	}

	var dispatched *delivery.Delivery
	sg := newSaga("dispatch_delivery", w.logger)
	sg.add("dispatch", func(ctx context.Context) error {
		var err error
		dispatched, err = w.deliveries.Dispatch(ctx, deliveryID)
		return err
	}, nil)
	sg.add("mark order shipped", func(ctx context.Context) error {
		_, err := w.dealerOrders.MarkShipped(ctx, d.OrderID)
		return err
	}, nil)
	for _, unit := range units {
		unitID := unit.ID
		sg.add(fmt.Sprintf("unit %d in transit", unitID), func(ctx context.Context) error {
			_, err := w.inventory.MarkInTransit(ctx, unitID)
			return err
		}, nil)
	}
	if err := sg.run(ctx); err != nil {
		return nil, err
	}
	return dispatched, nil
}

// ConfirmShipperDelivery records the shipper's handover confirmation.
func (w *Workflow) ConfirmShipperDelivery(ctx context.Context, deliveryID int64) (*delivery.Delivery, error) {
	return w.confirmDealerDelivery(ctx, deliveryID, CmdConfirmShipper, w.deliveries.ConfirmShipper)
}

// ConfirmDealerDelivery records the receiving dealer's confirmation.
// Once both sides have confirmed, the order is delivered and its units
// transfer to the dealer as sold.
func (w *Workflow) ConfirmDealerDelivery(ctx context.Context, deliveryID int64) (*delivery.Delivery, error) {
	return w.confirmDealerDelivery(ctx, deliveryID, CmdConfirmDealer, w.deliveries.ConfirmDealer)
}

func (w *Workflow) confirmDealerDelivery(ctx context.Context, deliveryID int64, cmd Command, confirm func(context.Context, int64) (*delivery.Delivery, error)) (*delivery.Delivery, error) {
	if err := authorize(shared.ActorFromContext(ctx), cmd); err != nil {
		return nil, err
	}
	d, err := w.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	releaseOrder, err := w.lockOrder(ctx, d.Track, d.OrderID)
	if err != nil {
		return nil, err
	}
	defer releaseOrder()
	releaseDelivery, err := w.locker.Acquire(ctx, entityDelivery, deliveryID)
	if err != nil {
		return nil, err
	}
	defer releaseDelivery()

	confirmed, err := confirm(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if confirmed.Status == delivery.StatusDelivered {
		if err := w.finishDealerHandover(ctx, d.OrderID); err != nil {
			return nil, err
		}
	}
	return confirmed, nil
}

func (w *Workflow) finishDealerHandover(ctx context.Context, orderID int64) error {
	if _, err := w.dealerOrders.MarkDelivered(ctx, orderID); err != nil {
		return err
	}
	units, err := w.inventory.UnitsForOrder(ctx, shared.TrackDealer, orderID)
	if err != nil {
		return err
	}
	for _, unit := range units {
		if unit.Status != inventory.UnitStatusInTransit && unit.Status != inventory.UnitStatusReserved {
			continue
		}
		if _, err := w.inventory.MarkSold(ctx, unit.ID); err != nil {
			return fmt.Errorf("mark unit %d sold: %w", unit.ID, err)
		}
	}
	return nil
}

// ConfirmAppointment confirms a customer handover appointment.
func (w *Workflow) ConfirmAppointment(ctx context.Context, deliveryID int64) (*delivery.Delivery, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdConfirmAppt); err != nil {
		return nil, err
	}
	release, err := w.locker.Acquire(ctx, entityDelivery, deliveryID)
	if err != nil {
		return nil, err
	}
	defer release()
	return w.deliveries.ConfirmAppointment(ctx, deliveryID)
}

// CompleteAppointment hands the vehicle over: the appointment
// completes, the order moves to delivered, and the unit is sold.
func (w *Workflow) CompleteAppointment(ctx context.Context, deliveryID int64) (*delivery.Delivery, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdCompleteAppt); err != nil {
		return nil, err
	}
	d, err := w.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	releaseOrder, err := w.lockOrder(ctx, d.Track, d.OrderID)
	if err != nil {
		return nil, err
	}
	defer releaseOrder()
	releaseDelivery, err := w.locker.Acquire(ctx, entityDelivery, deliveryID)
	if err != nil {
		return nil, err
	}
	defer releaseDelivery()

	completed, err := w.deliveries.CompleteAppointment(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	order, err := w.customerOrders.MarkDelivered(ctx, d.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UnitID != nil {
		if _, err := w.inventory.MarkSold(ctx, *order.UnitID); err != nil {
			return nil, fmt.Errorf("mark unit %d sold: %w", *order.UnitID, err)
		}
	}
	return completed, nil
}

// CancelDelivery calls off a pending handover.
func (w *Workflow) CancelDelivery(ctx context.Context, deliveryID int64, reason string) (*delivery.Delivery, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdCancelDelivery); err != nil {
		return nil, err
	}
	release, err := w.locker.Acquire(ctx, entityDelivery, deliveryID)
	if err != nil {
		return nil, err
	}
	defer release()
	return w.deliveries.Cancel(ctx, deliveryID, reason)
}

// DeleteDelivery removes a cancelled delivery record.
func (w *Workflow) DeleteDelivery(ctx context.Context, deliveryID int64) error {
	if err := authorize(shared.ActorFromContext(ctx), CmdDeleteDelivery); err != nil {
		return err
	}
	release, err := w.locker.Acquire(ctx, entityDelivery, deliveryID)
	if err != nil {
		return err
	}
	defer release()
	return w.deliveries.Delete(ctx, deliveryID)
}
