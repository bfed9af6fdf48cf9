package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/velocity-dms/velocity-dms/internal/platform/db"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// Repository persists invoices and payments.
type Repository interface {
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	GetInvoiceByOrder(ctx context.Context, track shared.Track, orderID int64) (*Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, int, error)
	CreateInvoice(ctx context.Context, inv Invoice) (int64, error)
	ApplyPayment(ctx context.Context, paymentID, invoiceID int64, paid decimal.Decimal, status InvoiceStatus) error
	UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error
	FindOverdue(ctx context.Context, asOf time.Time) ([]Invoice, error)

	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListPaymentsByOrder(ctx context.Context, track shared.Track, orderID int64) ([]Payment, error)
	CreatePayment(ctx context.Context, p Payment) (int64, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error
	DeletePayment(ctx context.Context, id int64) error
	DeleteByOrder(ctx context.Context, track shared.Track, orderID int64) error
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Track  *shared.Track
	Status *InvoiceStatus
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

const invoiceColumns = `id, invoice_number, order_track, order_id, quotation_id, total_amount, paid_amount, status, due_date, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var track, status string
	if err := row.Scan(&inv.ID, &inv.InvoiceNumber, &track, &inv.OrderID, &inv.QuotationID,
		&inv.TotalAmount, &inv.PaidAmount, &status, &inv.DueDate, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	inv.Track = shared.Track(track)
	inv.Status = InvoiceStatus(status)
	return &inv, nil
}

func (r *repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id)
	return scanInvoice(row)
}

func (r *repository) GetInvoiceByOrder(ctx context.Context, track shared.Track, orderID int64) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE order_track=$1 AND order_id=$2`,
		string(track), orderID)
	return scanInvoice(row)
}

func (r *repository) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, int, error) {
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
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	return out, total, rows.Err()
}

func (r *repository) CreateInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO invoices
(invoice_number, order_track, order_id, quotation_id, total_amount, paid_amount, status, due_date, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now()) RETURNING id`,
		inv.InvoiceNumber, string(inv.Track), inv.OrderID, inv.QuotationID,
		inv.TotalAmount, inv.PaidAmount, string(inv.Status), inv.DueDate).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrInvoiceExists
		}
		return 0, err
	}
	return id, nil
}

// ApplyPayment flips the payment to completed and moves the invoice's
// paid amount forward in one transaction so the ledger never shows a
// completed payment the invoice has not absorbed.
func (r *repository) ApplyPayment(ctx context.Context, paymentID, invoiceID int64, paid decimal.Decimal, status InvoiceStatus) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE payments SET status=$2, updated_at=now() WHERE id=$1 AND status=$3`,
			paymentID, string(PaymentCompleted), string(PaymentPending))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrInvalidState
		}
		_, err = tx.Exec(ctx, `UPDATE invoices SET paid_amount=$2, status=$3, updated_at=now() WHERE id=$1`,
			invoiceID, paid, string(status))
		return err
	})
}

func (r *repository) UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET status=$2, updated_at=now() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *repository) FindOverdue(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE status IN ('issued','partially_paid') AND due_date < $1 ORDER BY id`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

const paymentColumns = `id, invoice_id, order_track, order_id, amount, method, reference, status, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var track, status string
	if err := row.Scan(&p.ID, &p.InvoiceID, &track, &p.OrderID, &p.Amount, &p.Method,
		&p.Reference, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	p.Track = shared.Track(track)
	p.Status = PaymentStatus(status)
	return &p, nil
}

func (r *repository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)
	return scanPayment(row)
}

func (r *repository) ListPaymentsByOrder(ctx context.Context, track shared.Track, orderID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_track=$1 AND order_id=$2 ORDER BY id`,
		string(track), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *repository) CreatePayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO payments
(invoice_id, order_track, order_id, amount, method, reference, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now()) RETURNING id`,
		p.InvoiceID, string(p.Track), p.OrderID, p.Amount, p.Method, p.Reference, string(p.Status)).Scan(&id)
	return id, err
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payments SET status=$2, updated_at=now() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *repository) DeletePayment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// DeleteByOrder removes the order's payments and invoice together, for
// the order deletion cascade.
func (r *repository) DeleteByOrder(ctx context.Context, track shared.Track, orderID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE order_track=$1 AND order_id=$2`, string(track), orderID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM invoices WHERE order_track=$1 AND order_id=$2`, string(track), orderID)
		return err
	})
}
