package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// Repository persists deliveries and appointments.
type Repository interface {
	Get(ctx context.Context, id int64) (*Delivery, error)
	ListByOrder(ctx context.Context, track shared.Track, orderID int64) ([]Delivery, error)
	List(ctx context.Context, filter ListFilter) ([]Delivery, int, error)
	Create(ctx context.Context, d Delivery) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status, reason string) error
	SetConfirmations(ctx context.Context, id int64, shipper, dealer bool, status Status) error
	Delete(ctx context.Context, id int64) error
	DeleteByOrder(ctx context.Context, track shared.Track, orderID int64) error
}

// ListFilter narrows delivery listings.
type ListFilter struct {
	Track  *shared.Track
	Status *Status
	Limit  int
	Offset int
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const deliveryColumns = `id, order_track, order_id, status, scheduled_date, address, carrier, shipper_confirmed, dealer_confirmed, notes, cancellation_reason, created_at, updated_at`

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	var track, status string
	if err := row.Scan(&d.ID, &track, &d.OrderID, &status, &d.ScheduledDate, &d.Address, &d.Carrier,
		&d.ShipperConfirmed, &d.DealerConfirmed, &d.Notes, &d.CancellationReason,
		&d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	d.Track = shared.Track(track)
	d.Status = Status(status)
	return &d, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Delivery, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id=$1`, id)
	return scanDelivery(row)
}

func (r *repository) ListByOrder(ctx context.Context, track shared.Track, orderID int64) ([]Delivery, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+deliveryColumns+` FROM deliveries
WHERE order_track=$1 AND order_id=$2 ORDER BY id`, string(track), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Delivery, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argPos := 1
	if filter.Track != nil {
		conditions = append(conditions, fmt.Sprintf("order_track = $%d", argPos))
		args = append(args, string(*filter.Track))
		argPos++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*filter.Status))
		argPos++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deliveries WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM deliveries WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		deliveryColumns, where, argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, d Delivery) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO deliveries
(order_track, order_id, status, scheduled_date, address, carrier, shipper_confirmed, dealer_confirmed, notes, cancellation_reason, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'',now(),now()) RETURNING id`,
		string(d.Track), d.OrderID, string(d.Status), d.ScheduledDate, d.Address, d.Carrier,
		d.ShipperConfirmed, d.DealerConfirmed, d.Notes).Scan(&id)
	return id, err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE deliveries SET status=$2, cancellation_reason=$3, updated_at=now() WHERE id=$1`,
		id, string(status), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetConfirmations(ctx context.Context, id int64, shipper, dealer bool, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE deliveries SET shipper_confirmed=$2, dealer_confirmed=$3, status=$4, updated_at=now() WHERE id=$1`,
		id, shipper, dealer, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM deliveries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) DeleteByOrder(ctx context.Context, track shared.Track, orderID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM deliveries WHERE order_track=$1 AND order_id=$2`, string(track), orderID)
	return err
}
