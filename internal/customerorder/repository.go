package customerorder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists customer orders.
type Repository interface {
	Get(ctx context.Context, id int64) (*CustomerOrder, error)
	List(ctx context.Context, filter ListFilter) ([]CustomerOrder, int, error)
	Create(ctx context.Context, order CustomerOrder) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status, reason string) error
	SetQuotation(ctx context.Context, id int64, quotationID *int64) error
	SetUnit(ctx context.Context, id int64, unitID *int64) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const orderColumns = `id, customer_id, unit_id, quotation_id, variant_id, color_id, total_amount, status, notes, rejection_reason, cancellation_reason, created_at, updated_at`

func scanOrder(row pgx.Row) (*CustomerOrder, error) {
	var o CustomerOrder
	var status string
	if err := row.Scan(&o.ID, &o.CustomerID, &o.UnitID, &o.QuotationID, &o.VariantID, &o.ColorID,
		&o.TotalAmount, &status, &o.Notes, &o.RejectionReason, &o.CancellationReason,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*CustomerOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM customer_orders WHERE id=$1`, id)
	return scanOrder(row)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]CustomerOrder, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argPos := 1

	if filter.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *filter.CustomerID)
		argPos++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*filter.Status))
		argPos++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customer_orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM customer_orders WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`, orderColumns, where, argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var orders []CustomerOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, order CustomerOrder) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO customer_orders (customer_id, unit_id, variant_id, color_id, total_amount, status, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id`,
		order.CustomerID, order.UnitID, order.VariantID, order.ColorID, order.TotalAmount, string(order.Status), order.Notes).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	switch status {
	case StatusCancelled:
		_, err := r.pool.Exec(ctx, `UPDATE customer_orders SET status=$2, cancellation_reason=$3, updated_at=NOW() WHERE id=$1`, id, string(status), reason)
		return err
	case StatusRejected:
		_, err := r.pool.Exec(ctx, `UPDATE customer_orders SET status=$2, rejection_reason=$3, updated_at=NOW() WHERE id=$1`, id, string(status), reason)
		return err
	}
	_, err := r.pool.Exec(ctx, `UPDATE customer_orders SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	return err
}

func (r *repository) SetQuotation(ctx context.Context, id int64, quotationID *int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE customer_orders SET quotation_id=$2, updated_at=NOW() WHERE id=$1`, id, quotationID)
	return err
}

func (r *repository) SetUnit(ctx context.Context, id int64, unitID *int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE customer_orders SET unit_id=$2, updated_at=NOW() WHERE id=$1`, id, unitID)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customer_orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
