package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// UnitStatus enumerates vehicle unit availability states.
type UnitStatus string

const (
	// UnitStatusAvailable means the unit can be reserved.
	UnitStatusAvailable UnitStatus = "available"
	// UnitStatusReserved means exactly one active order claims the unit.
	UnitStatusReserved UnitStatus = "reserved"
	// UnitStatusSold means the unit has been sold.
	UnitStatusSold UnitStatus = "sold"
	// UnitStatusInTransit means the unit is being shipped.
	UnitStatusInTransit UnitStatus = "in_transit"
	// UnitStatusMaintenance means the unit is temporarily unsellable.
	UnitStatusMaintenance UnitStatus = "maintenance"
	// UnitStatusDamaged means the unit is damaged.
	UnitStatusDamaged UnitStatus = "damaged"
)

// ParseUnitStatus validates a status string against the canonical set.
func ParseUnitStatus(s string) (UnitStatus, error) {
	switch UnitStatus(s) {
	case UnitStatusAvailable, UnitStatusReserved, UnitStatusSold,
		UnitStatusInTransit, UnitStatusMaintenance, UnitStatusDamaged:
		return UnitStatus(s), nil
	}
	return "", fmt.Errorf("unknown vehicle unit status %q", s)
}

// VehicleUnit is one physical, VIN-identified vehicle.
type VehicleUnit struct {
	ID            int64           `json:"id"`
	VIN           string          `json:"vin"`
	ChassisNumber string          `json:"chassis_number"`
	VariantID     int64           `json:"variant_id"`
	ColorID       int64           `json:"color_id"`
	WarehouseID   int64           `json:"warehouse_id"`
	Status        UnitStatus      `json:"status"`
	Price         decimal.Decimal `json:"price"`
	OrderTrack    *shared.Track   `json:"order_track,omitempty"`
	OrderID       *int64          `json:"order_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CreateUnitInput describes a unit being registered in a warehouse.
type CreateUnitInput struct {
	VIN           string
	ChassisNumber string
	VariantID     int64
	ColorID       int64
	WarehouseID   int64
	Price         decimal.Decimal
}

// ListFilter filters unit listings.
type ListFilter struct {
	WarehouseID *int64
	VariantID   *int64
	Status      *UnitStatus
	Limit       int
	Offset      int
}

// ErrNotFound indicates the unit does not exist.
var ErrNotFound = errors.New("inventory: vehicle unit not found")

// ErrNotAvailable is the reserve admission-control failure: the unit is
// already claimed or otherwise unsellable.
var ErrNotAvailable = errors.New("inventory: vehicle unit not available")

// ErrNotReserved indicates a sale was attempted on an unreserved unit.
var ErrNotReserved = errors.New("inventory: vehicle unit not reserved")

// ErrDuplicateVIN indicates the VIN is already registered.
var ErrDuplicateVIN = errors.New("inventory: vin already registered")
