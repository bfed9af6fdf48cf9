package dealerorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Service implements the dealer order state machine. Role guards live
// in the workflow gateway; this layer owns state legality only.
type Service struct {
	repo Repository
}

// NewService builds the dealer order service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create opens a new order in waiting_for_quotation with a pending
// approval decision.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (*DealerOrder, error) {
	if input.DealerID == 0 {
		return nil, errors.New("dealer order: dealer is required")
	}
	if len(input.Lines) == 0 {
		return nil, errors.New("dealer order: at least one line is required")
	}

	total := decimal.Zero
	lines := make([]Line, 0, len(input.Lines))
	for _, in := range input.Lines {
		if in.VariantID == 0 || in.ColorID == 0 {
			return nil, errors.New("dealer order: line variant and color are required")
		}
		if in.Quantity <= 0 {
			return nil, errors.New("dealer order: line quantity must be positive")
		}
		if in.UnitPrice.LessThanOrEqual(decimal.Zero) {
			return nil, errors.New("dealer order: line unit price must be positive")
		}
		if in.DiscountPct.IsNegative() || in.DiscountPct.GreaterThan(hundred) {
			return nil, errors.New("dealer order: line discount must be between 0 and 100")
		}
		lineTotal := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
		lineTotal = lineTotal.Sub(lineTotal.Mul(in.DiscountPct).Div(hundred))
		total = total.Add(lineTotal)
		lines = append(lines, Line{
			VariantID:   in.VariantID,
			ColorID:     in.ColorID,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			DiscountPct: in.DiscountPct,
		})
	}

	id, err := s.repo.Create(ctx, DealerOrder{
		DealerID:       input.DealerID,
		ApprovalStatus: ApprovalPending,
		Status:         StatusWaitingForQuotation,
		TotalAmount:    total,
		Notes:          input.Notes,
		Lines:          lines,
	})
	if err != nil {
		return nil, fmt.Errorf("create dealer order: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Approve records the manufacturer approval decision. The fulfillment
// status is untouched: an approved order stays waiting_for_quotation
// until a quotation is created and accepted.
func (s *Service) Approve(ctx context.Context, id, actorID int64) (*DealerOrder, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == StatusCancelled {
		return nil, s.transitionErr(order, "approve")
	}
	if order.ApprovalStatus != ApprovalPending {
		return nil, fmt.Errorf("%w: dealer order %d approval is already %s", ErrInvalidTransition, id, order.ApprovalStatus)
	}
	if err := s.repo.UpdateApproval(ctx, id, ApprovalApproved, actorID, ""); err != nil {
		return nil, fmt.Errorf("approve dealer order: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// RejectApproval records a rejection with its reason.
func (s *Service) RejectApproval(ctx context.Context, id, actorID int64, reason string) (*DealerOrder, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == StatusCancelled {
		return nil, s.transitionErr(order, "reject")
	}
	if order.ApprovalStatus != ApprovalPending {
		return nil, fmt.Errorf("%w: dealer order %d approval is already %s", ErrInvalidTransition, id, order.ApprovalStatus)
	}
	if err := s.repo.UpdateApproval(ctx, id, ApprovalRejected, actorID, reason); err != nil {
		return nil, fmt.Errorf("reject dealer order: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// AttachQuotation links the order's single active quotation.
func (s *Service) AttachQuotation(ctx context.Context, id, quotationID int64) (*DealerOrder, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.EligibleForQuotation() {
		return nil, fmt.Errorf("%w: dealer order %d (approval %s, status %s) is not eligible for a quotation",
			ErrInvalidTransition, id, order.ApprovalStatus, order.Status)
	}
	if err := s.repo.SetQuotation(ctx, id, &quotationID); err != nil {
		return nil, fmt.Errorf("attach quotation: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// DetachQuotation clears the active quotation link, returning the order
// to a state from which a corrected quotation can be issued.
func (s *Service) DetachQuotation(ctx context.Context, id int64) (*DealerOrder, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.QuotationID == nil {
		return order, nil
	}
	if order.Status != StatusWaitingForQuotation {
		return nil, s.transitionErr(order, "detach quotation")
	}
	if err := s.repo.SetQuotation(ctx, id, nil); err != nil {
		return nil, fmt.Errorf("detach quotation: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Confirm moves the order to confirmed upon quotation acceptance.
func (s *Service) Confirm(ctx context.Context, id int64) (*DealerOrder, error) {
	return s.advance(ctx, id, StatusWaitingForQuotation, StatusConfirmed, "confirm", func(o *DealerOrder) error {
		if o.ApprovalStatus != ApprovalApproved {
			return fmt.Errorf("%w: dealer order %d approval is %s, cannot confirm", ErrInvalidTransition, id, o.ApprovalStatus)
		}
		if o.QuotationID == nil {
			return fmt.Errorf("%w: dealer order %d has no quotation, cannot confirm", ErrInvalidTransition, id)
		}
		return nil
	})
}

// MarkProcessing moves confirmed → processing.
func (s *Service) MarkProcessing(ctx context.Context, id int64) (*DealerOrder, error) {
	return s.advance(ctx, id, StatusConfirmed, StatusProcessing, "process", nil)
}

// MarkShipped moves processing → shipped.
func (s *Service) MarkShipped(ctx context.Context, id int64) (*DealerOrder, error) {
	return s.advance(ctx, id, StatusProcessing, StatusShipped, "ship", nil)
}

// MarkDelivered moves shipped → delivered.
func (s *Service) MarkDelivered(ctx context.Context, id int64) (*DealerOrder, error) {
	return s.advance(ctx, id, StatusShipped, StatusDelivered, "deliver", nil)
}

// Complete moves delivered → completed once payment is settled.
func (s *Service) Complete(ctx context.Context, id int64) (*DealerOrder, error) {
	return s.advance(ctx, id, StatusDelivered, StatusCompleted, "complete", nil)
}

// Cancel is reachable from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (*DealerOrder, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, s.transitionErr(order, "cancel")
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled, reason); err != nil {
		return nil, fmt.Errorf("cancel dealer order: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Get loads one order with lines.
func (s *Service) Get(ctx context.Context, id int64) (*DealerOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders with total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]DealerOrder, int, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes an order row. Cascade ordering (payments first, then
// inventory release) is the gateway's responsibility.
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

func (s *Service) advance(ctx context.Context, id int64, from, to Status, action string, extra func(*DealerOrder) error) (*DealerOrder, error) {
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
		return nil, fmt.Errorf("%s dealer order: %w", action, err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) transitionErr(order *DealerOrder, action string) error {
	return fmt.Errorf("%w: dealer order %d is %s, cannot %s", ErrInvalidTransition, order.ID, order.Status, action)
}
