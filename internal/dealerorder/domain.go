// Package dealerorder implements the dealer-to-manufacturer bulk order
// lifecycle. Approval and fulfillment progress are two independent
// state dimensions; both must be consulted to compute legal actions.
package dealerorder

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalStatus is the manufacturer-side approval decision.
type ApprovalStatus string

const (
	// ApprovalPending means no decision has been taken.
	ApprovalPending ApprovalStatus = "pending"
	// ApprovalApproved means manufacturer staff approved the order.
	ApprovalApproved ApprovalStatus = "approved"
	// ApprovalRejected means manufacturer staff rejected the order.
	ApprovalRejected ApprovalStatus = "rejected"
)

// ParseApprovalStatus validates an approval status string.
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	switch ApprovalStatus(s) {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return ApprovalStatus(s), nil
	}
	return "", fmt.Errorf("unknown approval status %q", s)
}

// Status is the fulfillment progress of the order.
type Status string

const (
	// StatusWaitingForQuotation is the initial state.
	StatusWaitingForQuotation Status = "waiting_for_quotation"
	// StatusConfirmed means the quotation was accepted.
	StatusConfirmed Status = "confirmed"
	// StatusProcessing means the manufacturer is preparing units.
	StatusProcessing Status = "processing"
	// StatusShipped means units are in transit to the dealer.
	StatusShipped Status = "shipped"
	// StatusDelivered means units arrived at the dealer.
	StatusDelivered Status = "delivered"
	// StatusCompleted is the terminal success state.
	StatusCompleted Status = "completed"
	// StatusCancelled is the terminal failure state.
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a status string against the canonical set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusWaitingForQuotation, StatusConfirmed, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown dealer order status %q", s)
}

// Terminal reports whether no further transitions are legal.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Line is one ordered variant/color position.
type Line struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	VariantID   int64           `json:"variant_id"`
	ColorID     int64           `json:"color_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
}

// DealerOrder is a bulk purchase order placed by a dealer.
type DealerOrder struct {
	ID                 int64           `json:"id"`
	DealerID           int64           `json:"dealer_id"`
	ApprovalStatus     ApprovalStatus  `json:"approval_status"`
	Status             Status          `json:"status"`
	QuotationID        *int64          `json:"quotation_id,omitempty"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	Notes              string          `json:"notes,omitempty"`
	RejectionReason    string          `json:"rejection_reason,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	ApprovedBy         *int64          `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Lines              []Line          `json:"lines,omitempty"`
}

// EligibleForQuotation reports whether a new quotation may be created
// for this order: approved, still waiting, and no active quotation.
func (o *DealerOrder) EligibleForQuotation() bool {
	return o.ApprovalStatus == ApprovalApproved &&
		o.Status == StatusWaitingForQuotation &&
		o.QuotationID == nil
}

// CreateOrderInput carries a new dealer order.
type CreateOrderInput struct {
	DealerID int64
	Notes    string
	Lines    []LineInput
}

// LineInput carries one requested position.
type LineInput struct {
	VariantID   int64
	ColorID     int64
	Quantity    int
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
}

// ListFilter filters order listings.
type ListFilter struct {
	DealerID       *int64
	Status         *Status
	ApprovalStatus *ApprovalStatus
	Limit          int
	Offset         int
}

// ErrNotFound indicates the order does not exist.
var ErrNotFound = errors.New("dealer order not found")

// ErrInvalidTransition indicates the requested transition is not legal
// from the order's current state.
var ErrInvalidTransition = errors.New("invalid dealer order transition")
