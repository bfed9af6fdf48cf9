// Package quotation builds and tracks price quotes for both order
// tracks. A quotation is immutable once accepted or rejected.
package quotation

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// Status enumerates quotation lifecycle states.
type Status string

const (
	// StatusPending means the quotation was created but not sent.
	StatusPending Status = "pending"
	// StatusSent means the quotation awaits a decision.
	StatusSent Status = "sent"
	// StatusAccepted means the quotation is binding.
	StatusAccepted Status = "accepted"
	// StatusRejected means the recipient declined.
	StatusRejected Status = "rejected"
	// StatusExpired means the validity window lapsed.
	StatusExpired Status = "expired"
)

// ParseStatus validates a status string against the canonical set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusSent, StatusAccepted, StatusRejected, StatusExpired:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown quotation status %q", s)
}

// Active reports whether the quotation still blocks a new one for the
// same order.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusSent || s == StatusAccepted
}

// Line is one priced position.
type Line struct {
	ID          int64           `json:"id"`
	QuotationID int64           `json:"quotation_id"`
	VariantID   int64           `json:"variant_id"`
	ColorID     int64           `json:"color_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
}

// Quotation is a priced offer derived from exactly one order.
type Quotation struct {
	ID              int64           `json:"id"`
	Track           shared.Track    `json:"track"`
	OrderID         int64           `json:"order_id"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	DiscountPct     decimal.Decimal `json:"discount_pct"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	FinalPrice      decimal.Decimal `json:"final_price"`
	Status          Status          `json:"status"`
	ExpiryDate      time.Time       `json:"expiry_date"`
	Notes           string          `json:"notes,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Lines           []Line          `json:"lines,omitempty"`
}

// Expired reports whether the validity window has lapsed at t.
func (q *Quotation) Expired(t time.Time) bool {
	return t.After(q.ExpiryDate)
}

// CreateInput carries the pricing request for an order.
type CreateInput struct {
	Track          shared.Track
	OrderID        int64
	Lines          []LineInput
	DiscountPct    *decimal.Decimal
	DiscountAmount *decimal.Decimal
	ValidityDays   int
	Notes          string
}

// LineInput mirrors the origin order's line items.
type LineInput struct {
	VariantID   int64
	ColorID     int64
	Quantity    int
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
}

// ErrNotFound indicates the quotation does not exist.
var ErrNotFound = errors.New("quotation not found")

// ErrInvalidTransition indicates the transition is not legal from the
// quotation's current state.
var ErrInvalidTransition = errors.New("invalid quotation transition")

// ErrExpired indicates acceptance was attempted past the validity window.
var ErrExpired = errors.New("quotation expired")

// ErrInvalidOrder indicates the origin order is not eligible for a
// quotation.
var ErrInvalidOrder = errors.New("order not eligible for quotation")
