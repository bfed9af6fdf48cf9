package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Scheduler drives deliveries and appointments through their
// lifecycle. Order-side effects of a completed handover belong to the
// gateway.
type Scheduler struct {
	repo  Repository
	audit AuditPort
}

// NewScheduler builds the delivery scheduler.
func NewScheduler(repo Repository, audit AuditPort) *Scheduler {
	return &Scheduler{repo: repo, audit: audit}
}

// ScheduleInput describes a new delivery or appointment.
type ScheduleInput struct {
	Track         shared.Track
	OrderID       int64
	ScheduledDate time.Time
	Address       string
	Carrier       string
	Notes         string
}

// Schedule books a handover for an order. An order may only carry one
// open delivery at a time.
func (s *Scheduler) Schedule(ctx context.Context, input ScheduleInput) (*Delivery, error) {
	if input.OrderID == 0 {
		return nil, errors.New("delivery: order id required")
	}
	if input.ScheduledDate.IsZero() {
		return nil, errors.New("delivery: scheduled date required")
	}
	if strings.TrimSpace(input.Address) == "" {
		return nil, errors.New("delivery: address required")
	}
	existing, err := s.repo.ListByOrder(ctx, input.Track, input.OrderID)
	if err != nil {
		return nil, err
	}
	for _, d := range existing {
		if !d.Status.Terminal() {
			return nil, fmt.Errorf("%w: %s order %d already has open delivery %d",
				ErrInvalidTransition, input.Track, input.OrderID, d.ID)
		}
	}

	id, err := s.repo.Create(ctx, Delivery{
		Track:         input.Track,
		OrderID:       input.OrderID,
		Status:        StatusScheduled,
		ScheduledDate: input.ScheduledDate,
		Address:       strings.TrimSpace(input.Address),
		Carrier:       strings.TrimSpace(input.Carrier),
		Notes:         input.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("schedule delivery: %w", err)
	}
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "delivery_scheduled", d)
	return d, nil
}

// Dispatch puts a dealer-track shipment on the road,
// scheduled → in_transit.
func (s *Scheduler) Dispatch(ctx context.Context, id int64) (*Delivery, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Track != shared.TrackDealer {
		return nil, fmt.Errorf("%w: dispatch applies to dealer shipments", ErrWrongTrack)
	}
	if d.Status != StatusScheduled {
		return nil, s.transitionErr(d, "dispatch")
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusInTransit, ""); err != nil {
		return nil, err
	}
	d, err = s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "delivery_dispatched", d)
	return d, nil
}

// ConfirmShipper records the shipper's side of a dealer handover.
func (s *Scheduler) ConfirmShipper(ctx context.Context, id int64) (*Delivery, error) {
	return s.confirmDealerTrack(ctx, id, "confirm_shipper", func(d *Delivery) bool {
		if d.ShipperConfirmed {
			return false
		}
		d.ShipperConfirmed = true
		return true
	})
}

// ConfirmDealer records the receiving dealer's side of a handover.
func (s *Scheduler) ConfirmDealer(ctx context.Context, id int64) (*Delivery, error) {
	return s.confirmDealerTrack(ctx, id, "confirm_dealer", func(d *Delivery) bool {
		if d.DealerConfirmed {
			return false
		}
		d.DealerConfirmed = true
		return true
	})
}

// confirmDealerTrack applies one side's confirmation. The shipment
// becomes delivered only once both sides have confirmed, in either
// order.
func (s *Scheduler) confirmDealerTrack(ctx context.Context, id int64, action string, apply func(*Delivery) bool) (*Delivery, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Track != shared.TrackDealer {
		return nil, fmt.Errorf("%w: %s applies to dealer shipments", ErrWrongTrack, action)
	}
	if d.Status != StatusInTransit {
		return nil, s.transitionErr(d, action)
	}
	if !apply(d) {
		return nil, fmt.Errorf("%w: delivery %d already confirmed by this side", ErrInvalidTransition, d.ID)
	}
	status := StatusInTransit
	if d.ShipperConfirmed && d.DealerConfirmed {
		status = StatusDelivered
	}
	if err := s.repo.SetConfirmations(ctx, id, d.ShipperConfirmed, d.DealerConfirmed, status); err != nil {
		return nil, err
	}
	d, err = s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, action, d)
	return d, nil
}

// ConfirmAppointment confirms a customer appointment,
// scheduled → confirmed.
func (s *Scheduler) ConfirmAppointment(ctx context.Context, id int64) (*Delivery, error) {
	return s.advanceCustomer(ctx, id, "confirm_appointment", StatusScheduled, StatusConfirmed)
}

// CompleteAppointment completes a customer handover,
// confirmed → completed.
func (s *Scheduler) CompleteAppointment(ctx context.Context, id int64) (*Delivery, error) {
	return s.advanceCustomer(ctx, id, "complete_appointment", StatusConfirmed, StatusCompleted)
}

func (s *Scheduler) advanceCustomer(ctx context.Context, id int64, action string, from, to Status) (*Delivery, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Track != shared.TrackCustomer {
		return nil, fmt.Errorf("%w: %s applies to customer appointments", ErrWrongTrack, action)
	}
	if d.Status != from {
		return nil, s.transitionErr(d, action)
	}
	if err := s.repo.UpdateStatus(ctx, id, to, ""); err != nil {
		return nil, err
	}
	d, err = s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, action, d)
	return d, nil
}

// Cancel aborts any non-terminal delivery and records the reason.
func (s *Scheduler) Cancel(ctx context.Context, id int64, reason string) (*Delivery, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, s.transitionErr(d, "cancel")
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled, reason); err != nil {
		return nil, err
	}
	d, err = s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "delivery_cancelled", d)
	return d, nil
}

// Delete removes a delivery record. Only cancelled records may be hard
// deleted.
func (s *Scheduler) Delete(ctx context.Context, id int64) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Status != StatusCancelled {
		return fmt.Errorf("%w: delivery %d is %s, only cancelled deliveries may be deleted",
			ErrInvalidTransition, d.ID, d.Status)
	}
	return s.repo.Delete(ctx, id)
}

// PurgeOrder removes all of an order's delivery records as one step of
// the order deletion cascade.
func (s *Scheduler) PurgeOrder(ctx context.Context, track shared.Track, orderID int64) error {
	return s.repo.DeleteByOrder(ctx, track, orderID)
}

// Get loads one delivery.
func (s *Scheduler) Get(ctx context.Context, id int64) (*Delivery, error) {
	return s.repo.Get(ctx, id)
}

// ForOrder lists an order's deliveries, oldest first.
func (s *Scheduler) ForOrder(ctx context.Context, track shared.Track, orderID int64) ([]Delivery, error) {
	return s.repo.ListByOrder(ctx, track, orderID)
}

// List pages through deliveries.
func (s *Scheduler) List(ctx context.Context, filter ListFilter) ([]Delivery, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *Scheduler) transitionErr(d *Delivery, action string) error {
	return fmt.Errorf("%w: delivery %d is %s, cannot %s", ErrInvalidTransition, d.ID, d.Status, action)
}

func (s *Scheduler) recordAudit(ctx context.Context, action string, d *Delivery) {
	if s.audit == nil {
		return
	}
	actor := shared.ActorFromContext(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Role:     actor.Role,
		Action:   action,
		Entity:   "delivery",
		EntityID: fmt.Sprintf("%d", d.ID),
		Meta:     map[string]any{"status": string(d.Status), "order_id": d.OrderID},
	})
}
