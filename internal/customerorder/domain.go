// Package customerorder implements the customer-to-dealer purchase
// lifecycle for a single vehicle.
package customerorder

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the customer order lifecycle state.
type Status string

const (
	// StatusPending is the initial state.
	StatusPending Status = "pending"
	// StatusQuoted means an active quotation references the order.
	StatusQuoted Status = "quoted"
	// StatusConfirmed means the quotation was accepted.
	StatusConfirmed Status = "confirmed"
	// StatusPaid means the invoice is fully paid.
	StatusPaid Status = "paid"
	// StatusDelivered means the vehicle was handed over.
	StatusDelivered Status = "delivered"
	// StatusCompleted is the terminal success state.
	StatusCompleted Status = "completed"
	// StatusRejected means the dealer declined the request.
	StatusRejected Status = "rejected"
	// StatusCancelled is the terminal cancellation state.
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a status string against the canonical set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusQuoted, StatusConfirmed, StatusPaid,
		StatusDelivered, StatusCompleted, StatusRejected, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown customer order status %q", s)
}

// Terminal reports whether no further transitions are legal.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// CustomerOrder is one end customer's purchase request.
type CustomerOrder struct {
	ID                 int64           `json:"id"`
	CustomerID         int64           `json:"customer_id"`
	UnitID             *int64          `json:"unit_id,omitempty"`
	QuotationID        *int64          `json:"quotation_id,omitempty"`
	VariantID          int64           `json:"variant_id"`
	ColorID            int64           `json:"color_id"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	Status             Status          `json:"status"`
	Notes              string          `json:"notes,omitempty"`
	RejectionReason    string          `json:"rejection_reason,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// EligibleForQuotation reports whether a new quotation may be created:
// the order is still open for pricing and carries no active quotation.
func (o *CustomerOrder) EligibleForQuotation() bool {
	return (o.Status == StatusPending || o.Status == StatusQuoted) && o.QuotationID == nil
}

// CreateOrderInput carries a new purchase request.
type CreateOrderInput struct {
	CustomerID  int64
	VariantID   int64
	ColorID     int64
	UnitID      *int64
	TotalAmount decimal.Decimal
	Notes       string
}

// ListFilter filters order listings.
type ListFilter struct {
	CustomerID *int64
	Status     *Status
	Limit      int
	Offset     int
}

// ErrNotFound indicates the order does not exist.
var ErrNotFound = errors.New("customer order not found")

// ErrInvalidTransition indicates the requested transition is not legal
// from the order's current state.
var ErrInvalidTransition = errors.New("invalid customer order transition")
