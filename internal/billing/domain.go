package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// InvoiceStatus tracks how much of an invoice has been settled.
type InvoiceStatus string

const (
	InvoiceIssued        InvoiceStatus = "issued"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceOverdue       InvoiceStatus = "overdue"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

// ParseInvoiceStatus validates a raw invoice status string.
func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	switch s := InvoiceStatus(raw); s {
	case InvoiceIssued, InvoicePartiallyPaid, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("invalid invoice status %q", raw)
	}
}

// Terminal reports whether the invoice can no longer accept payments.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoicePaid || s == InvoiceCancelled
}

// PaymentStatus is the confirmation state of a single payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// ParsePaymentStatus validates a raw payment status string.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch s := PaymentStatus(raw); s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return s, nil
	default:
		return "", fmt.Errorf("invalid payment status %q", raw)
	}
}

// Invoice is the billing record spawned by a quotation acceptance. At
// most one invoice exists per order; it is the sole authority on how
// much the order owes and how much has been received.
type Invoice struct {
	ID            int64           `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	Track         shared.Track    `json:"order_track"`
	OrderID       int64           `json:"order_id"`
	QuotationID   int64           `json:"quotation_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Status        InvoiceStatus   `json:"status"`
	DueDate       time.Time       `json:"due_date"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RemainingAmount is the outstanding balance.
func (i Invoice) RemainingAmount() decimal.Decimal {
	return i.TotalAmount.Sub(i.PaidAmount)
}

// Payment is one transfer applied toward an order's invoice. Several
// payments may settle one invoice; only completed payments count
// toward its paid amount.
type Payment struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoice_id"`
	Track     shared.Track    `json:"order_track"`
	OrderID   int64           `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference,omitempty"`
	Status    PaymentStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

var (
	// ErrInvoiceNotFound indicates the invoice does not exist.
	ErrInvoiceNotFound = errors.New("billing: invoice not found")
	// ErrPaymentNotFound indicates the payment does not exist.
	ErrPaymentNotFound = errors.New("billing: payment not found")
	// ErrInvoiceExists guards the at-most-one-invoice-per-order rule.
	ErrInvoiceExists = errors.New("billing: invoice already exists for order")
	// ErrInvalidState rejects a transition the record's status forbids.
	ErrInvalidState = errors.New("billing: invalid state for operation")
	// ErrOverpayment rejects a confirmation that would push the paid
	// amount past the invoice total.
	ErrOverpayment = errors.New("billing: payment exceeds remaining amount")
)
