package shared

import "fmt"

// Track identifies which order lifecycle an entity belongs to. A
// quotation, invoice or delivery references a dealer order XOR a
// customer order, never both.
type Track string

const (
	// TrackDealer is the dealer-to-manufacturer bulk order track.
	TrackDealer Track = "dealer"
	// TrackCustomer is the customer-to-dealer retail track.
	TrackCustomer Track = "customer"
)

// ParseTrack validates a track string against the canonical set.
func ParseTrack(s string) (Track, error) {
	switch Track(s) {
	case TrackDealer, TrackCustomer:
		return Track(s), nil
	}
	return "", fmt.Errorf("unknown order track %q", s)
}
