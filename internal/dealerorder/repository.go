package dealerorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velocity-dms/velocity-dms/internal/platform/db"
)

// Repository persists dealer orders.
type Repository interface {
	Get(ctx context.Context, id int64) (*DealerOrder, error)
	List(ctx context.Context, filter ListFilter) ([]DealerOrder, int, error)
	Create(ctx context.Context, order DealerOrder) (int64, error)
	UpdateApproval(ctx context.Context, id int64, approval ApprovalStatus, actorID int64, reason string) error
	UpdateStatus(ctx context.Context, id int64, status Status, reason string) error
	SetQuotation(ctx context.Context, id int64, quotationID *int64) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const orderColumns = `id, dealer_id, approval_status, status, quotation_id, total_amount, notes, rejection_reason, cancellation_reason, approved_by, approved_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*DealerOrder, error) {
	var o DealerOrder
	var approval, status string
	if err := row.Scan(&o.ID, &o.DealerID, &approval, &status, &o.QuotationID, &o.TotalAmount,
		&o.Notes, &o.RejectionReason, &o.CancellationReason, &o.ApprovedBy, &o.ApprovedAt,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.ApprovalStatus = ApprovalStatus(approval)
	o.Status = Status(status)
	return &o, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*DealerOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM dealer_orders WHERE id=$1`, id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	lines, err := r.lines(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return order, nil
}

func (r *repository) lines(ctx context.Context, orderID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, variant_id, color_id, quantity, unit_price, discount_pct
FROM dealer_order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.VariantID, &l.ColorID, &l.Quantity, &l.UnitPrice, &l.DiscountPct); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]DealerOrder, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argPos := 1

	if filter.DealerID != nil {
		conditions = append(conditions, fmt.Sprintf("dealer_id = $%d", argPos))
		args = append(args, *filter.DealerID)
		argPos++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*filter.Status))
		argPos++
	}
	if filter.ApprovalStatus != nil {
		conditions = append(conditions, fmt.Sprintf("approval_status = $%d", argPos))
		args = append(args, string(*filter.ApprovalStatus))
		argPos++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dealer_orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM dealer_orders WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`, orderColumns, where, argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var orders []DealerOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, order DealerOrder) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO dealer_orders (dealer_id, approval_status, status, total_amount, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
			order.DealerID, string(order.ApprovalStatus), string(order.Status), order.TotalAmount, order.Notes).Scan(&id); err != nil {
			return fmt.Errorf("insert dealer order: %w", err)
		}
		for _, line := range order.Lines {
			if _, err := tx.Exec(ctx, `INSERT INTO dealer_order_lines (order_id, variant_id, color_id, quantity, unit_price, discount_pct)
VALUES ($1, $2, $3, $4, $5, $6)`,
				id, line.VariantID, line.ColorID, line.Quantity, line.UnitPrice, line.DiscountPct); err != nil {
				return fmt.Errorf("insert dealer order line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) UpdateApproval(ctx context.Context, id int64, approval ApprovalStatus, actorID int64, reason string) error {
	var tag string
	switch approval {
	case ApprovalApproved:
		tag = `UPDATE dealer_orders SET approval_status=$2, approved_by=$3, approved_at=$4, updated_at=NOW() WHERE id=$1`
		_, err := r.pool.Exec(ctx, tag, id, string(approval), actorID, time.Now())
		return err
	case ApprovalRejected:
		tag = `UPDATE dealer_orders SET approval_status=$2, approved_by=$3, approved_at=$4, rejection_reason=$5, updated_at=NOW() WHERE id=$1`
		_, err := r.pool.Exec(ctx, tag, id, string(approval), actorID, time.Now(), reason)
		return err
	}
	return fmt.Errorf("unsupported approval update %q", approval)
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	if status == StatusCancelled {
		_, err := r.pool.Exec(ctx, `UPDATE dealer_orders SET status=$2, cancellation_reason=$3, updated_at=NOW() WHERE id=$1`,
			id, string(status), reason)
		return err
	}
	_, err := r.pool.Exec(ctx, `UPDATE dealer_orders SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	return err
}

func (r *repository) SetQuotation(ctx context.Context, id int64, quotationID *int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE dealer_orders SET quotation_id=$2, updated_at=NOW() WHERE id=$1`, id, quotationID)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM dealer_order_lines WHERE order_id=$1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM dealer_orders WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
