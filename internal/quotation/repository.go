package quotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velocity-dms/velocity-dms/internal/platform/db"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// Repository persists quotations.
type Repository interface {
	Get(ctx context.Context, id int64) (*Quotation, error)
	GetActiveByOrder(ctx context.Context, track shared.Track, orderID int64) (*Quotation, error)
	ListByOrder(ctx context.Context, track shared.Track, orderID int64) ([]Quotation, error)
	Create(ctx context.Context, q Quotation) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status, reason string) error
	FindDue(ctx context.Context, now time.Time) ([]Quotation, error)
	DeleteByOrder(ctx context.Context, track shared.Track, orderID int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const quotationColumns = `id, track, order_id, total_price, discount_pct, discount_amount, final_price, status, expiry_date, notes, rejection_reason, created_at, updated_at`

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	var track, status string
	if err := row.Scan(&q.ID, &track, &q.OrderID, &q.TotalPrice, &q.DiscountPct, &q.DiscountAmount,
		&q.FinalPrice, &status, &q.ExpiryDate, &q.Notes, &q.RejectionReason, &q.CreatedAt, &q.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	q.Track = shared.Track(track)
	q.Status = Status(status)
	return &q, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id=$1`, id)
	q, err := scanQuotation(row)
	if err != nil {
		return nil, err
	}
	lines, err := r.lines(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Lines = lines
	return q, nil
}

func (r *repository) lines(ctx context.Context, quotationID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, quotation_id, variant_id, color_id, quantity, unit_price, discount_pct
FROM quotation_lines WHERE quotation_id=$1 ORDER BY id`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.QuotationID, &l.VariantID, &l.ColorID, &l.Quantity, &l.UnitPrice, &l.DiscountPct); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) GetActiveByOrder(ctx context.Context, track shared.Track, orderID int64) (*Quotation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations
WHERE track=$1 AND order_id=$2 AND status IN ('pending','sent','accepted')
ORDER BY id DESC LIMIT 1`, string(track), orderID)
	return scanQuotation(row)
}

func (r *repository) ListByOrder(ctx context.Context, track shared.Track, orderID int64) ([]Quotation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE track=$1 AND order_id=$2 ORDER BY id`, string(track), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO quotations (track, order_id, total_price, discount_pct, discount_amount, final_price, status, expiry_date, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()) RETURNING id`,
			string(q.Track), q.OrderID, q.TotalPrice, q.DiscountPct, q.DiscountAmount, q.FinalPrice,
			string(q.Status), q.ExpiryDate, q.Notes).Scan(&id); err != nil {
			return fmt.Errorf("insert quotation: %w", err)
		}
		for _, line := range q.Lines {
			if _, err := tx.Exec(ctx, `INSERT INTO quotation_lines (quotation_id, variant_id, color_id, quantity, unit_price, discount_pct)
VALUES ($1, $2, $3, $4, $5, $6)`, id, line.VariantID, line.ColorID, line.Quantity, line.UnitPrice, line.DiscountPct); err != nil {
				return fmt.Errorf("insert quotation line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	if status == StatusRejected {
		_, err := r.pool.Exec(ctx, `UPDATE quotations SET status=$2, rejection_reason=$3, updated_at=NOW() WHERE id=$1`, id, string(status), reason)
		return err
	}
	_, err := r.pool.Exec(ctx, `UPDATE quotations SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	return err
}

func (r *repository) FindDue(ctx context.Context, now time.Time) ([]Quotation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quotationColumns+` FROM quotations
WHERE status IN ('pending','sent') AND expiry_date < $1 ORDER BY id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *repository) DeleteByOrder(ctx context.Context, track shared.Track, orderID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id IN (SELECT id FROM quotations WHERE track=$1 AND order_id=$2)`, string(track), orderID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM quotations WHERE track=$1 AND order_id=$2`, string(track), orderID)
		return err
	})
}
