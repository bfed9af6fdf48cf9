package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/velocity-dms/velocity-dms/internal/billing"
	"github.com/velocity-dms/velocity-dms/internal/quotation"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// QuoteInput carries the pricing knobs for a new quotation.
type QuoteInput struct {
	OrderID        int64
	DiscountPct    *decimal.Decimal
	DiscountAmount *decimal.Decimal
	ValidityDays   int
	Notes          string
}

// CreateDealerQuotation prices an approved dealer order. The order
// must be approved, still waiting, and carry no active quotation.
func (w *Workflow) CreateDealerQuotation(ctx context.Context, input QuoteInput) (*quotation.Quotation, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdCreateDealerQuote); err != nil {
		return nil, err
	}
	release, err := w.lockOrder(ctx, shared.TrackDealer, input.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := w.dealerOrders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.EligibleForQuotation() {
		return nil, fmt.Errorf("%w: dealer order %d is %s/%s with quotation attached: %t",
			quotation.ErrInvalidOrder, order.ID, order.ApprovalStatus, order.Status, order.QuotationID != nil)
	}
	lines := make([]quotation.LineInput, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, quotation.LineInput{
			VariantID:   l.VariantID,
			ColorID:     l.ColorID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			DiscountPct: l.DiscountPct,
		})
	}
	return w.createAndAttach(ctx, shared.TrackDealer, input, lines)
}

// CreateCustomerQuotation prices a customer purchase request. The
// single implicit line is the requested variant at the order's amount.
func (w *Workflow) CreateCustomerQuotation(ctx context.Context, input QuoteInput) (*quotation.Quotation, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdCreateCustomerQuote); err != nil {
		return nil, err
	}
	release, err := w.lockOrder(ctx, shared.TrackCustomer, input.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := w.customerOrders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.EligibleForQuotation() {
		return nil, fmt.Errorf("%w: customer order %d is %s with quotation attached: %t",
			quotation.ErrInvalidOrder, order.ID, order.Status, order.QuotationID != nil)
	}
	lines := []quotation.LineInput{{
		VariantID: order.VariantID,
		ColorID:   order.ColorID,
		Quantity:  1,
		UnitPrice: order.TotalAmount,
	}}
	return w.createAndAttach(ctx, shared.TrackCustomer, input, lines)
}

// createAndAttach creates the quotation and links it to the order. A
// failed link deletes the fresh quotation so the order does not end up
// blocked by an orphaned active quote.
func (w *Workflow) createAndAttach(ctx context.Context, track shared.Track, input QuoteInput, lines []quotation.LineInput) (*quotation.Quotation, error) {
	var q *quotation.Quotation
	sg := newSaga("create_quotation", w.logger)
	sg.add("create quotation", func(ctx context.Context) error {
		var err error
		q, err = w.quotes.CreateFromOrder(ctx, quotation.CreateInput{
			Track:          track,
			OrderID:        input.OrderID,
			Lines:          lines,
			DiscountPct:    input.DiscountPct,
			DiscountAmount: input.DiscountAmount,
			ValidityDays:   input.ValidityDays,
			Notes:          input.Notes,
		})
		return err
	}, func(ctx context.Context) error {
		return w.quotes.DeleteForOrder(ctx, track, input.OrderID)
	})
	sg.add("attach to order", func(ctx context.Context) error {
		if track == shared.TrackDealer {
			_, err := w.dealerOrders.AttachQuotation(ctx, input.OrderID, q.ID)
			return err
		}
		_, err := w.customerOrders.AttachQuotation(ctx, input.OrderID, q.ID)
		return err
	}, nil)
	if err := sg.run(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// SendQuotation transitions a quotation from pending to sent.
func (w *Workflow) SendQuotation(ctx context.Context, quotationID int64) (*quotation.Quotation, error) {
	if err := authorize(shared.ActorFromContext(ctx), CmdSendQuote); err != nil {
		return nil, err
	}
	release, err := w.locker.Acquire(ctx, entityQuotation, quotationID)
	if err != nil {
		return nil, err
	}
	defer release()
	return w.quotes.Send(ctx, quotationID)
}

// AcceptResult is the outcome of a successful acceptance cascade.
type AcceptResult struct {
	Quotation *quotation.Quotation `json:"quotation"`
	Invoice   *billing.Invoice     `json:"invoice"`
}

// AcceptQuotation runs the acceptance cascade: the quotation flips to
// accepted, exactly one invoice is generated for the order, and the
// order confirms. If any later stage fails the quotation reverts to
// sent and no invoice survives.
func (w *Workflow) AcceptQuotation(ctx context.Context, quotationID int64) (*AcceptResult, error) {
	q, err := w.quotes.Get(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	cmd := CmdAcceptDealerQuote
	if q.Track == shared.TrackCustomer {
		cmd = CmdAcceptCustomerQuote
	}
	if err := authorize(shared.ActorFromContext(ctx), cmd); err != nil {
		return nil, err
	}

	releaseOrder, err := w.lockOrder(ctx, q.Track, q.OrderID)
	if err != nil {
		return nil, err
	}
	defer releaseOrder()
	releaseQuote, err := w.locker.Acquire(ctx, entityQuotation, quotationID)
	if err != nil {
		return nil, err
	}
	defer releaseQuote()

	result := &AcceptResult{}
	sg := newSaga("accept_quotation", w.logger)
	sg.add("accept quotation", func(ctx context.Context) error {
		var err error
		result.Quotation, err = w.quotes.Accept(ctx, quotationID)
		return err
	}, func(ctx context.Context) error {
		return w.quotes.RevertAccept(ctx, quotationID)
	})
	sg.add("generate invoice", func(ctx context.Context) error {
		var err error
		result.Invoice, err = w.billing.GenerateInvoice(ctx, billing.GenerateInvoiceInput{
			Track:       q.Track,
			OrderID:     q.OrderID,
			QuotationID: q.ID,
			Amount:      q.FinalPrice,
		})
		return err
	}, func(ctx context.Context) error {
		return w.billing.PurgeOrder(ctx, q.Track, q.OrderID)
	})
	sg.add("confirm order", func(ctx context.Context) error {
		if q.Track == shared.TrackDealer {
			_, err := w.dealerOrders.Confirm(ctx, q.OrderID)
			return err
		}
		_, err := w.customerOrders.Confirm(ctx, q.OrderID)
		return err
	}, nil)
	if err := sg.run(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// RejectQuotation turns a sent quotation down and detaches it from the
// order. The order's status and any reserved unit stay as they are so
// the caller can correct course and re-quote.
func (w *Workflow) RejectQuotation(ctx context.Context, quotationID int64, reason string) (*quotation.Quotation, error) {
	q, err := w.quotes.Get(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	cmd := CmdRejectDealerQuote
	if q.Track == shared.TrackCustomer {
		cmd = CmdRejectCustomerQuote
	}
	if err := authorize(shared.ActorFromContext(ctx), cmd); err != nil {
		return nil, err
	}

	releaseOrder, err := w.lockOrder(ctx, q.Track, q.OrderID)
	if err != nil {
		return nil, err
	}
	defer releaseOrder()
	releaseQuote, err := w.locker.Acquire(ctx, entityQuotation, quotationID)
	if err != nil {
		return nil, err
	}
	defer releaseQuote()

	rejected, err := w.quotes.Reject(ctx, quotationID, reason)
	if err != nil {
		return nil, err
	}
	if q.Track == shared.TrackDealer {
		_, err = w.dealerOrders.DetachQuotation(ctx, q.OrderID)
	} else {
		_, err = w.customerOrders.ClearQuotation(ctx, q.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("detach rejected quotation %d: %w", quotationID, err)
	}
	return rejected, nil
}
