package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// Repository persists vehicle units. Reserve/Release/MarkSold are the
// only mutations for the reservation state; order code never writes
// unit rows directly.
type Repository interface {
	Get(ctx context.Context, id int64) (*VehicleUnit, error)
	GetByVIN(ctx context.Context, vin string) (*VehicleUnit, error)
	List(ctx context.Context, filter ListFilter) ([]VehicleUnit, int, error)
	Create(ctx context.Context, unit VehicleUnit) (int64, error)
	Reserve(ctx context.Context, id int64, track shared.Track, orderID int64) (*VehicleUnit, error)
	Release(ctx context.Context, id int64) (*VehicleUnit, error)
	MarkSold(ctx context.Context, id int64) (*VehicleUnit, error)
	MarkInTransit(ctx context.Context, id int64) (*VehicleUnit, error)
	FindByOrder(ctx context.Context, track shared.Track, orderID int64) ([]VehicleUnit, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const unitColumns = `id, vin, chassis_number, variant_id, color_id, warehouse_id, status, price, order_track, order_id, created_at, updated_at`

func scanUnit(row pgx.Row) (*VehicleUnit, error) {
	var u VehicleUnit
	var status string
	var track *string
	if err := row.Scan(&u.ID, &u.VIN, &u.ChassisNumber, &u.VariantID, &u.ColorID, &u.WarehouseID,
		&status, &u.Price, &track, &u.OrderID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Status = UnitStatus(status)
	if track != nil {
		tr := shared.Track(*track)
		u.OrderTrack = &tr
	}
	return &u, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*VehicleUnit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM vehicle_units WHERE id=$1`, id)
	return scanUnit(row)
}

func (r *repository) GetByVIN(ctx context.Context, vin string) (*VehicleUnit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM vehicle_units WHERE vin=$1`, vin)
	return scanUnit(row)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]VehicleUnit, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argPos := 1

	if filter.WarehouseID != nil {
		conditions = append(conditions, fmt.Sprintf("warehouse_id = $%d", argPos))
		args = append(args, *filter.WarehouseID)
		argPos++
	}
	if filter.VariantID != nil {
		conditions = append(conditions, fmt.Sprintf("variant_id = $%d", argPos))
		args = append(args, *filter.VariantID)
		argPos++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*filter.Status))
		argPos++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vehicle_units WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM vehicle_units WHERE %s ORDER BY id LIMIT $%d OFFSET $%d`, unitColumns, where, argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var units []VehicleUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, 0, err
		}
		units = append(units, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return units, total, nil
}

func (r *repository) Create(ctx context.Context, unit VehicleUnit) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO vehicle_units (vin, chassis_number, variant_id, color_id, warehouse_id, status, price, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id`,
		unit.VIN, unit.ChassisNumber, unit.VariantID, unit.ColorID, unit.WarehouseID, string(unit.Status), unit.Price).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateVIN
		}
		return 0, err
	}
	return id, nil
}

// Reserve claims the unit for an order with a compare-and-swap on the
// availability status, so two racing orders cannot both win.
func (r *repository) Reserve(ctx context.Context, id int64, track shared.Track, orderID int64) (*VehicleUnit, error) {
	row := r.pool.QueryRow(ctx, `UPDATE vehicle_units
SET status='reserved', order_track=$2, order_id=$3, updated_at=NOW()
WHERE id=$1 AND status='available'
RETURNING `+unitColumns, id, string(track), orderID)
	unit, err := scanUnit(row)
	if err == nil {
		return unit, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	// Distinguish a missing unit from one that lost the race.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrNotAvailable
}

// Release is idempotent: releasing an already-available unit is a no-op
// so cancellation and deletion cascades never fail on double-release.
func (r *repository) Release(ctx context.Context, id int64) (*VehicleUnit, error) {
	row := r.pool.QueryRow(ctx, `UPDATE vehicle_units
SET status='available', order_track=NULL, order_id=NULL, updated_at=NOW()
WHERE id=$1 AND status IN ('reserved', 'in_transit')
RETURNING `+unitColumns, id)
	unit, err := scanUnit(row)
	if err == nil {
		return unit, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *repository) MarkSold(ctx context.Context, id int64) (*VehicleUnit, error) {
	return r.transition(ctx, id, []string{"reserved", "in_transit"}, "sold", ErrNotReserved)
}

func (r *repository) MarkInTransit(ctx context.Context, id int64) (*VehicleUnit, error) {
	return r.transition(ctx, id, []string{"reserved"}, "in_transit", ErrNotReserved)
}

func (r *repository) transition(ctx context.Context, id int64, from []string, to string, conflict error) (*VehicleUnit, error) {
	row := r.pool.QueryRow(ctx, `UPDATE vehicle_units
SET status=$3, updated_at=NOW()
WHERE id=$1 AND status = ANY($2)
RETURNING `+unitColumns, id, from, to)
	unit, err := scanUnit(row)
	if err == nil {
		return unit, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, conflict
}

func (r *repository) FindByOrder(ctx context.Context, track shared.Track, orderID int64) ([]VehicleUnit, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+unitColumns+` FROM vehicle_units WHERE order_track=$1 AND order_id=$2 ORDER BY id`, string(track), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []VehicleUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, *u)
	}
	return units, rows.Err()
}
