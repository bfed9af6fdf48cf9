package delivery

import (
	"errors"
	"fmt"
	"time"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// Status is the delivery state. Dealer-track shipments run
// scheduled → in_transit → delivered; customer-track appointments run
// scheduled → confirmed → completed. Both tracks allow cancellation
// from any non-terminal state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusScheduled, StatusInTransit, StatusDelivered, StatusConfirmed, StatusCompleted, StatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("invalid delivery status %q", raw)
	}
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCompleted || s == StatusCancelled
}

// Delivery is one scheduled handover for an order: a bulk shipment on
// the dealer track, an appointment on the customer track. A dealer
// shipment counts as delivered only after both the shipper and the
// receiving dealer have confirmed.
type Delivery struct {
	ID                 int64        `json:"id"`
	Track              shared.Track `json:"order_track"`
	OrderID            int64        `json:"order_id"`
	Status             Status       `json:"status"`
	ScheduledDate      time.Time    `json:"scheduled_date"`
	Address            string       `json:"address"`
	Carrier            string       `json:"carrier,omitempty"`
	ShipperConfirmed   bool         `json:"shipper_confirmed"`
	DealerConfirmed    bool         `json:"dealer_confirmed"`
	Notes              string       `json:"notes,omitempty"`
	CancellationReason string       `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

var (
	// ErrNotFound indicates the delivery does not exist.
	ErrNotFound = errors.New("delivery: not found")
	// ErrInvalidTransition rejects a move the current status forbids.
	ErrInvalidTransition = errors.New("delivery: invalid transition")
	// ErrWrongTrack rejects an operation that belongs to the other track.
	ErrWrongTrack = errors.New("delivery: operation not valid for this track")
)
