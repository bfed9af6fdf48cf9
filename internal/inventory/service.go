package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Ledger owns vehicle unit records and their reservation state. Every
// successful state change returns the unit with its new status so
// callers can refresh without re-fetching.
type Ledger struct {
	repo  Repository
	audit AuditPort
}

// NewLedger builds the inventory ledger.
func NewLedger(repo Repository, audit AuditPort) *Ledger {
	return &Ledger{repo: repo, audit: audit}
}

// Register records a new unit in a warehouse as available.
func (l *Ledger) Register(ctx context.Context, input CreateUnitInput) (*VehicleUnit, error) {
	if strings.TrimSpace(input.VIN) == "" {
		return nil, errors.New("inventory: vin is required")
	}
	if strings.TrimSpace(input.ChassisNumber) == "" {
		return nil, errors.New("inventory: chassis number is required")
	}
	if input.VariantID == 0 || input.ColorID == 0 || input.WarehouseID == 0 {
		return nil, errors.New("inventory: variant, color and warehouse are required")
	}
	if input.Price.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("inventory: price must be positive")
	}

	unit := VehicleUnit{
		VIN:           strings.TrimSpace(input.VIN),
		ChassisNumber: strings.TrimSpace(input.ChassisNumber),
		VariantID:     input.VariantID,
		ColorID:       input.ColorID,
		WarehouseID:   input.WarehouseID,
		Status:        UnitStatusAvailable,
		Price:         input.Price,
	}
	id, err := l.repo.Create(ctx, unit)
	if err != nil {
		return nil, fmt.Errorf("register unit: %w", err)
	}
	return l.repo.Get(ctx, id)
}

// Reserve claims the unit for an order. Fails with ErrNotAvailable when
// the unit is not available; this is the sole admission-control point
// preventing two orders from claiming the same physical vehicle.
func (l *Ledger) Reserve(ctx context.Context, unitID int64, track shared.Track, orderID int64) (*VehicleUnit, error) {
	unit, err := l.repo.Reserve(ctx, unitID, track, orderID)
	if err != nil {
		return nil, err
	}
	l.recordAudit(ctx, "reserve", unit)
	return unit, nil
}

// Release returns a reserved unit to the available pool. Idempotent.
func (l *Ledger) Release(ctx context.Context, unitID int64) (*VehicleUnit, error) {
	unit, err := l.repo.Release(ctx, unitID)
	if err != nil {
		return nil, err
	}
	l.recordAudit(ctx, "release", unit)
	return unit, nil
}

// MarkSold finalizes the sale of a reserved unit.
func (l *Ledger) MarkSold(ctx context.Context, unitID int64) (*VehicleUnit, error) {
	unit, err := l.repo.MarkSold(ctx, unitID)
	if err != nil {
		return nil, err
	}
	l.recordAudit(ctx, "mark_sold", unit)
	return unit, nil
}

// MarkInTransit flags a reserved unit as being shipped.
func (l *Ledger) MarkInTransit(ctx context.Context, unitID int64) (*VehicleUnit, error) {
	unit, err := l.repo.MarkInTransit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	l.recordAudit(ctx, "mark_in_transit", unit)
	return unit, nil
}

// Get loads one unit.
func (l *Ledger) Get(ctx context.Context, unitID int64) (*VehicleUnit, error) {
	return l.repo.Get(ctx, unitID)
}

// List returns units matching the filter plus total count.
func (l *Ledger) List(ctx context.Context, filter ListFilter) ([]VehicleUnit, int, error) {
	return l.repo.List(ctx, filter)
}

// UnitsForOrder returns the units currently claimed by an order.
func (l *Ledger) UnitsForOrder(ctx context.Context, track shared.Track, orderID int64) ([]VehicleUnit, error) {
	return l.repo.FindByOrder(ctx, track, orderID)
}

func (l *Ledger) recordAudit(ctx context.Context, action string, unit *VehicleUnit) {
	if l.audit == nil {
		return
	}
	actor := shared.ActorFromContext(ctx)
	_ = l.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Role:     actor.Role,
		Action:   action,
		Entity:   "vehicle_unit",
		EntityID: fmt.Sprintf("%d", unit.ID),
		Meta:     map[string]any{"status": string(unit.Status), "vin": unit.VIN},
	})
}
