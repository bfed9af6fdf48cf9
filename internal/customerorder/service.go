package customerorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Service implements the customer order state machine.
type Service struct {
	repo Repository
}

// NewService builds the customer order service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create opens a new purchase request in pending.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (*CustomerOrder, error) {
	if input.CustomerID == 0 {
		return nil, errors.New("customer order: customer is required")
	}
	if input.VariantID == 0 || input.ColorID == 0 {
		return nil, errors.New("customer order: variant and color are required")
	}
	if input.TotalAmount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("customer order: total amount must be positive")
	}
	id, err := s.repo.Create(ctx, CustomerOrder{
		CustomerID:  input.CustomerID,
		UnitID:      input.UnitID,
		VariantID:   input.VariantID,
		ColorID:     input.ColorID,
		TotalAmount: input.TotalAmount,
		Status:      StatusPending,
		Notes:       input.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create customer order: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// AttachQuotation links the active quotation and moves pending → quoted.
func (s *Service) AttachQuotation(ctx context.Context, id, quotationID int64) (*CustomerOrder, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.EligibleForQuotation() {
		return nil, fmt.Errorf("%w: customer order %d (status %s) is not eligible for a quotation",
			ErrInvalidTransition, id, order.Status)
	}
	if err := s.repo.SetQuotation(ctx, id, &quotationID); err != nil {
		return nil, fmt.Errorf("attach quotation: %w", err)
	}
	if order.Status == StatusPending {
		if err := s.repo.UpdateStatus(ctx, id, StatusQuoted, ""); err != nil {
			return nil, fmt.Errorf("mark quoted: %w", err)
		}
	}
	return s.repo.Get(ctx, id)
}

// ClearQuotation drops the active quotation link after a rejection,
// leaving the order status untouched so the customer can re-quote.
func (s *Service) ClearQuotation(ctx context.Context, id int64) (*CustomerOrder, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.QuotationID == nil {
		return order, nil
	}
	if order.Status != StatusQuoted {
		return nil, s.transitionErr(order, "clear quotation")
	}
	if err := s.repo.SetQuotation(ctx, id, nil); err != nil {
		return nil, fmt.Errorf("clear quotation: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// AssignUnit links the reserved vehicle unit.
func (s *Service) AssignUnit(ctx context.Context, id, unitID int64) (*CustomerOrder, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, s.transitionErr(order, "assign unit")
	}
	if order.UnitID != nil {
		return nil, fmt.Errorf("%w: customer order %d already holds unit %d", ErrInvalidTransition, id, *order.UnitID)
	}
	if err := s.repo.SetUnit(ctx, id, &unitID); err != nil {
		return nil, fmt.Errorf("assign unit: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Confirm moves quoted → confirmed upon quotation acceptance.
func (s *Service) Confirm(ctx context.Context, id int64) (*CustomerOrder, error) {
	return s.advance(ctx, id, StatusQuoted, StatusConfirmed, "confirm", func(o *CustomerOrder) error {
		if o.QuotationID == nil {
			return fmt.Errorf("%w: customer order %d has no quotation, cannot confirm", ErrInvalidTransition, id)
		}
		return nil
	})
}

// MarkPaid moves confirmed → paid. Only the billing ledger may trigger
// this transition.
func (s *Service) MarkPaid(ctx context.Context, id int64) (*CustomerOrder, error) {
	return s.advance(ctx, id, StatusConfirmed, StatusPaid, "mark paid", nil)
}

// MarkDelivered moves paid → delivered after the handover appointment.
func (s *Service) MarkDelivered(ctx context.Context, id int64) (*CustomerOrder, error) {
	return s.advance(ctx, id, StatusPaid, StatusDelivered, "deliver", nil)
}

// Complete moves delivered → completed.
func (s *Service) Complete(ctx context.Context, id int64) (*CustomerOrder, error) {
	return s.advance(ctx, id, StatusDelivered, StatusCompleted, "complete", nil)
}

// Reject declines an open purchase request.
func (s *Service) Reject(ctx context.Context, id int64, reason string) (*CustomerOrder, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != StatusPending && order.Status != StatusQuoted {
		return nil, s.transitionErr(order, "reject")
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusRejected, reason); err != nil {
		return nil, fmt.Errorf("reject customer order: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Cancel is reachable from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (*CustomerOrder, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, s.transitionErr(order, "cancel")
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled, reason); err != nil {
		return nil, fmt.Errorf("cancel customer order: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, id int64) (*CustomerOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders with total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]CustomerOrder, int, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes a terminated order row; the gateway runs the payment
// and inventory cascade first.
func (s *Service) Delete(ctx context.Context, id int64) error {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !order.Status.Terminal() {
		return s.transitionErr(order, "delete")
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) advance(ctx context.Context, id int64, from, to Status, action string, extra func(*CustomerOrder) error) (*CustomerOrder, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != from {
		return nil, s.transitionErr(order, action)
	}
	if extra != nil {
		if err := extra(order); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateStatus(ctx, id, to, ""); err != nil {
		return nil, fmt.Errorf("%s customer order: %w", action, err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) transitionErr(order *CustomerOrder, action string) error {
	return fmt.Errorf("%w: customer order %d is %s, cannot %s", ErrInvalidTransition, order.ID, order.Status, action)
}
