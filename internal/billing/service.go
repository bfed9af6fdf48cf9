package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// OrderPort advances the origin order once its invoice is fully paid.
// The gateway supplies the implementation; the ledger never reaches
// into order state directly.
type OrderPort interface {
	OrderFullyPaid(ctx context.Context, track shared.Track, orderID int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// DefaultDueDays bounds invoices that specify no payment term.
const DefaultDueDays = 30

// Ledger owns invoices and payments. It is the only component allowed
// to declare an order paid.
type Ledger struct {
	repo   Repository
	orders OrderPort
	audit  AuditPort
	now    func() time.Time
}

// NewLedger builds the billing ledger.
func NewLedger(repo Repository, orders OrderPort, audit AuditPort) *Ledger {
	return &Ledger{repo: repo, orders: orders, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (l *Ledger) WithNow(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// GenerateInvoiceInput carries the accepted quotation's pricing.
type GenerateInvoiceInput struct {
	Track       shared.Track
	OrderID     int64
	QuotationID int64
	Amount      decimal.Decimal
	DueDays     int
}

// GenerateInvoice creates the order's single invoice. Called only from
// the quotation acceptance cascade; a second call for the same order
// fails with ErrInvoiceExists and is never papered over.
func (l *Ledger) GenerateInvoice(ctx context.Context, input GenerateInvoiceInput) (*Invoice, error) {
	if input.OrderID == 0 || input.QuotationID == 0 {
		return nil, errors.New("billing: order and quotation ids required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("billing: invoice amount must be positive")
	}
	if _, err := l.repo.GetInvoiceByOrder(ctx, input.Track, input.OrderID); err == nil {
		return nil, fmt.Errorf("%w: %s order %d", ErrInvoiceExists, input.Track, input.OrderID)
	} else if !errors.Is(err, ErrInvoiceNotFound) {
		return nil, err
	}

	dueDays := input.DueDays
	if dueDays <= 0 {
		dueDays = DefaultDueDays
	}
	now := l.now()
	id, err := l.repo.CreateInvoice(ctx, Invoice{
		InvoiceNumber: invoiceNumber(input.Track, input.OrderID, now),
		Track:         input.Track,
		OrderID:       input.OrderID,
		QuotationID:   input.QuotationID,
		TotalAmount:   input.Amount,
		PaidAmount:    decimal.Zero,
		Status:        InvoiceIssued,
		DueDate:       now.AddDate(0, 0, dueDays),
	})
	if err != nil {
		return nil, err
	}
	inv, err := l.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	l.recordAudit(ctx, "invoice_issued", "invoice", inv.ID, map[string]any{
		"order_id": inv.OrderID, "total": inv.TotalAmount.String(),
	})
	return inv, nil
}

func invoiceNumber(track shared.Track, orderID int64, at time.Time) string {
	prefix := "INV-D"
	if track == shared.TrackCustomer {
		prefix = "INV-C"
	}
	return fmt.Sprintf("%s-%s-%d", prefix, at.Format("20060102"), orderID)
}

// RecordPayment registers a pending payment against the order's
// invoice. Nothing is settled until ConfirmPayment.
func (l *Ledger) RecordPayment(ctx context.Context, track shared.Track, orderID int64, amount decimal.Decimal, method, reference string) (*Payment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("billing: payment amount must be positive")
	}
	if strings.TrimSpace(method) == "" {
		return nil, errors.New("billing: payment method is required")
	}
	inv, err := l.repo.GetInvoiceByOrder(ctx, track, orderID)
	if err != nil {
		return nil, err
	}
	if inv.Status.Terminal() {
		return nil, fmt.Errorf("%w: invoice %d is %s, cannot take payments", ErrInvalidState, inv.ID, inv.Status)
	}

	id, err := l.repo.CreatePayment(ctx, Payment{
		InvoiceID: inv.ID,
		Track:     track,
		OrderID:   orderID,
		Amount:    amount,
		Method:    strings.TrimSpace(method),
		Reference: strings.TrimSpace(reference),
		Status:    PaymentPending,
	})
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	return l.repo.GetPayment(ctx, id)
}

// ConfirmPayment settles a pending payment: the payment completes, the
// invoice absorbs the amount, and a fully settled invoice advances the
// origin order to paid.
func (l *Ledger) ConfirmPayment(ctx context.Context, paymentID int64) (*Payment, error) {
	p, err := l.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != PaymentPending {
		return nil, fmt.Errorf("%w: payment %d is %s, cannot confirm", ErrInvalidState, p.ID, p.Status)
	}
	inv, err := l.repo.GetInvoice(ctx, p.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == InvoiceCancelled {
		return nil, fmt.Errorf("%w: invoice %d is cancelled", ErrInvalidState, inv.ID)
	}
	if p.Amount.GreaterThan(inv.RemainingAmount()) {
		return nil, fmt.Errorf("%w: payment %d of %s against remaining %s",
			ErrOverpayment, p.ID, p.Amount, inv.RemainingAmount())
	}

	newPaid := inv.PaidAmount.Add(p.Amount)
	newStatus := InvoicePartiallyPaid
	fullyPaid := newPaid.Equal(inv.TotalAmount)
	if fullyPaid {
		newStatus = InvoicePaid
	}
	if err := l.repo.ApplyPayment(ctx, p.ID, inv.ID, newPaid, newStatus); err != nil {
		return nil, fmt.Errorf("confirm payment %d: %w", p.ID, err)
	}
	l.recordAudit(ctx, "payment_confirmed", "payment", p.ID, map[string]any{
		"invoice_id": inv.ID, "amount": p.Amount.String(), "invoice_status": string(newStatus),
	})

	if fullyPaid && l.orders != nil {
		if err := l.orders.OrderFullyPaid(ctx, inv.Track, inv.OrderID); err != nil {
			return nil, fmt.Errorf("advance order %d after full payment: %w", inv.OrderID, err)
		}
	}
	return l.repo.GetPayment(ctx, paymentID)
}

// FailPayment marks a pending payment as failed.
func (l *Ledger) FailPayment(ctx context.Context, paymentID int64) (*Payment, error) {
	p, err := l.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != PaymentPending {
		return nil, fmt.Errorf("%w: payment %d is %s, cannot fail", ErrInvalidState, p.ID, p.Status)
	}
	if err := l.repo.UpdatePaymentStatus(ctx, paymentID, PaymentFailed); err != nil {
		return nil, err
	}
	return l.repo.GetPayment(ctx, paymentID)
}

// DeletePayment removes a payment that never completed. Completed
// payments are only removed by the order deletion cascade, which goes
// through PurgeOrder instead.
func (l *Ledger) DeletePayment(ctx context.Context, paymentID int64) error {
	p, err := l.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Status == PaymentCompleted {
		return fmt.Errorf("%w: payment %d is completed, delete the order instead", ErrInvalidState, p.ID)
	}
	return l.repo.DeletePayment(ctx, paymentID)
}

// CancelInvoice voids an unsettled invoice.
func (l *Ledger) CancelInvoice(ctx context.Context, invoiceID int64) (*Invoice, error) {
	inv, err := l.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status.Terminal() {
		return nil, fmt.Errorf("%w: invoice %d is %s", ErrInvalidState, inv.ID, inv.Status)
	}
	if inv.PaidAmount.IsPositive() {
		return nil, fmt.Errorf("%w: invoice %d has received %s, cannot cancel", ErrInvalidState, inv.ID, inv.PaidAmount)
	}
	if err := l.repo.UpdateInvoiceStatus(ctx, invoiceID, InvoiceCancelled); err != nil {
		return nil, err
	}
	return l.repo.GetInvoice(ctx, invoiceID)
}

// PurgeOrder removes the order's payments and invoice as one step of
// the order deletion cascade.
func (l *Ledger) PurgeOrder(ctx context.Context, track shared.Track, orderID int64) error {
	if err := l.repo.DeleteByOrder(ctx, track, orderID); err != nil {
		return fmt.Errorf("purge billing for %s order %d: %w", track, orderID, err)
	}
	l.recordAudit(ctx, "billing_purged", "order", orderID, map[string]any{"track": string(track)})
	return nil
}

// MarkOverdueDue sweeps open invoices past their due date. Returns the
// ids that were flagged.
func (l *Ledger) MarkOverdueDue(ctx context.Context) ([]int64, error) {
	due, err := l.repo.FindOverdue(ctx, l.now())
	if err != nil {
		return nil, err
	}
	var flagged []int64
	for _, inv := range due {
		if err := l.repo.UpdateInvoiceStatus(ctx, inv.ID, InvoiceOverdue); err != nil {
			return flagged, fmt.Errorf("mark invoice %d overdue: %w", inv.ID, err)
		}
		flagged = append(flagged, inv.ID)
	}
	return flagged, nil
}

// Invoice loads one invoice.
func (l *Ledger) Invoice(ctx context.Context, id int64) (*Invoice, error) {
	return l.repo.GetInvoice(ctx, id)
}

// InvoiceForOrder loads the order's invoice, if one was issued.
func (l *Ledger) InvoiceForOrder(ctx context.Context, track shared.Track, orderID int64) (*Invoice, error) {
	return l.repo.GetInvoiceByOrder(ctx, track, orderID)
}

// ListInvoices pages through invoices.
func (l *Ledger) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, int, error) {
	return l.repo.ListInvoices(ctx, filter)
}

// Payment loads one payment.
func (l *Ledger) Payment(ctx context.Context, id int64) (*Payment, error) {
	return l.repo.GetPayment(ctx, id)
}

// PaymentsForOrder lists the order's payments, oldest first.
func (l *Ledger) PaymentsForOrder(ctx context.Context, track shared.Track, orderID int64) ([]Payment, error) {
	return l.repo.ListPaymentsByOrder(ctx, track, orderID)
}

func (l *Ledger) recordAudit(ctx context.Context, action, entity string, entityID int64, meta map[string]any) {
	if l.audit == nil {
		return
	}
	actor := shared.ActorFromContext(ctx)
	_ = l.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Role:     actor.Role,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
