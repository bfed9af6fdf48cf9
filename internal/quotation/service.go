package quotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// DefaultValidityDays bounds quotations that specify no window.
const DefaultValidityDays = 14

// OrderDetacher clears an order's quotation reference when the
// quotation leaves the active set without being accepted, so the
// order becomes quotable again.
type OrderDetacher interface {
	DetachQuotation(ctx context.Context, track shared.Track, orderID int64) error
}

// Engine builds quotes and drives their lifecycle. The origin order's
// eligibility and the acceptance cascade belong to the gateway.
type Engine struct {
	repo   Repository
	detach OrderDetacher
	now    func() time.Time
}

// NewEngine builds the quotation engine.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// WithDetacher attaches the order callback invoked on expiry.
func (e *Engine) WithDetacher(d OrderDetacher) *Engine {
	e.detach = d
	return e
}

// WithNow overrides the clock for deterministic tests.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// CreateFromOrder prices the order's line items and stores a pending
// quotation. At most one active quotation may exist per order.
func (e *Engine) CreateFromOrder(ctx context.Context, input CreateInput) (*Quotation, error) {
	if input.OrderID == 0 {
		return nil, fmt.Errorf("%w: order id required", ErrInvalidOrder)
	}
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("%w: order has no line items", ErrInvalidOrder)
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line quantity must be positive", ErrInvalidOrder)
		}
	}
	if existing, err := e.repo.GetActiveByOrder(ctx, input.Track, input.OrderID); err == nil {
		return nil, fmt.Errorf("%w: %s order %d already has active quotation %d",
			ErrInvalidOrder, input.Track, input.OrderID, existing.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	validity := input.ValidityDays
	if validity <= 0 {
		validity = DefaultValidityDays
	}
	totals := ComputeTotals(input.Lines, input.DiscountPct, input.DiscountAmount)

	lines := make([]Line, 0, len(input.Lines))
	for _, in := range input.Lines {
		lines = append(lines, Line{
			VariantID:   in.VariantID,
			ColorID:     in.ColorID,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			DiscountPct: in.DiscountPct,
		})
	}

	id, err := e.repo.Create(ctx, Quotation{
		Track:          input.Track,
		OrderID:        input.OrderID,
		TotalPrice:     totals.TotalPrice,
		DiscountPct:    totals.DiscountPct,
		DiscountAmount: totals.DiscountAmount,
		FinalPrice:     totals.FinalPrice,
		Status:         StatusPending,
		ExpiryDate:     e.now().AddDate(0, 0, validity),
		Notes:          input.Notes,
		Lines:          lines,
	})
	if err != nil {
		return nil, fmt.Errorf("create quotation: %w", err)
	}
	return e.repo.Get(ctx, id)
}

// Send transitions pending → sent.
func (e *Engine) Send(ctx context.Context, id int64) (*Quotation, error) {
	q, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != StatusPending {
		return nil, e.transitionErr(q, "send")
	}
	if err := e.repo.UpdateStatus(ctx, id, StatusSent, ""); err != nil {
		return nil, fmt.Errorf("send quotation: %w", err)
	}
	return e.repo.Get(ctx, id)
}

// Accept transitions sent → accepted. The caller owns the invoice and
// order-status cascade; on cascade failure it must call RevertAccept.
func (e *Engine) Accept(ctx context.Context, id int64) (*Quotation, error) {
	q, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != StatusSent {
		return nil, e.transitionErr(q, "accept")
	}
	if q.Expired(e.now()) {
		if err := e.repo.UpdateStatus(ctx, id, StatusExpired, ""); err != nil {
			return nil, fmt.Errorf("expire quotation: %w", err)
		}
		if err := e.detachOrder(ctx, q); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: quotation %d expired %s", ErrExpired, id, q.ExpiryDate.Format(time.DateOnly))
	}
	if err := e.repo.UpdateStatus(ctx, id, StatusAccepted, ""); err != nil {
		return nil, fmt.Errorf("accept quotation: %w", err)
	}
	return e.repo.Get(ctx, id)
}

// RevertAccept is the compensating action for a failed acceptance
// cascade: the quotation returns to sent, never half-accepted.
func (e *Engine) RevertAccept(ctx context.Context, id int64) error {
	q, err := e.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if q.Status != StatusAccepted {
		return nil
	}
	return e.repo.UpdateStatus(ctx, id, StatusSent, "")
}

// Reject transitions sent → rejected and records the reason.
func (e *Engine) Reject(ctx context.Context, id int64, reason string) (*Quotation, error) {
	q, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != StatusSent {
		return nil, e.transitionErr(q, "reject")
	}
	if err := e.repo.UpdateStatus(ctx, id, StatusRejected, reason); err != nil {
		return nil, fmt.Errorf("reject quotation: %w", err)
	}
	return e.repo.Get(ctx, id)
}

// ExpireDue sweeps pending/sent quotations past their validity window.
// Returns the ids that were expired.
func (e *Engine) ExpireDue(ctx context.Context) ([]int64, error) {
	due, err := e.repo.FindDue(ctx, e.now())
	if err != nil {
		return nil, err
	}
	var expired []int64
	for _, q := range due {
		if err := e.repo.UpdateStatus(ctx, q.ID, StatusExpired, ""); err != nil {
			return expired, fmt.Errorf("expire quotation %d: %w", q.ID, err)
		}
		if err := e.detachOrder(ctx, &q); err != nil {
			return expired, err
		}
		expired = append(expired, q.ID)
	}
	return expired, nil
}

// detachOrder frees the origin order for re-quoting after expiry,
// mirroring what rejection does through the gateway.
func (e *Engine) detachOrder(ctx context.Context, q *Quotation) error {
	if e.detach == nil {
		return nil
	}
	if err := e.detach.DetachQuotation(ctx, q.Track, q.OrderID); err != nil {
		return fmt.Errorf("detach expired quotation %d from %s order %d: %w", q.ID, q.Track, q.OrderID, err)
	}
	return nil
}

// Get loads one quotation with lines.
func (e *Engine) Get(ctx context.Context, id int64) (*Quotation, error) {
	return e.repo.Get(ctx, id)
}

// ActiveForOrder returns the order's single active quotation, if any.
func (e *Engine) ActiveForOrder(ctx context.Context, track shared.Track, orderID int64) (*Quotation, error) {
	return e.repo.GetActiveByOrder(ctx, track, orderID)
}

// ListForOrder returns the order's quotation history.
func (e *Engine) ListForOrder(ctx context.Context, track shared.Track, orderID int64) ([]Quotation, error) {
	return e.repo.ListByOrder(ctx, track, orderID)
}

// DeleteForOrder removes quotations as part of an order delete cascade.
func (e *Engine) DeleteForOrder(ctx context.Context, track shared.Track, orderID int64) error {
	return e.repo.DeleteByOrder(ctx, track, orderID)
}

func (e *Engine) transitionErr(q *Quotation, action string) error {
	return fmt.Errorf("%w: quotation %d is %s, cannot %s", ErrInvalidTransition, q.ID, q.Status, action)
}
