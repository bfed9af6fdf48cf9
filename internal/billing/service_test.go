package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

type mockRepository struct {
	mu            sync.Mutex
	invoices      map[int64]*Invoice
	payments      map[int64]*Payment
	nextInvoiceID int64
	nextPaymentID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		invoices:      make(map[int64]*Invoice),
		payments:      make(map[int64]*Payment),
		nextInvoiceID: 1,
		nextPaymentID: 1,
	}
}

func (m *mockRepository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockRepository) GetInvoiceByOrder(ctx context.Context, track shared.Track, orderID int64) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.Track == track && inv.OrderID == orderID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrInvoiceNotFound
}

func (m *mockRepository) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.invoices {
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (m *mockRepository) CreateInvoice(ctx context.Context, inv Invoice) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.invoices {
		if existing.Track == inv.Track && existing.OrderID == inv.OrderID {
			return 0, ErrInvoiceExists
		}
	}
	id := m.nextInvoiceID
	m.nextInvoiceID++
	inv.ID = id
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	m.invoices[id] = &inv
	return id, nil
}

func (m *mockRepository) ApplyPayment(ctx context.Context, paymentID, invoiceID int64, paid decimal.Decimal, status InvoiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return ErrPaymentNotFound
	}
	if p.Status != PaymentPending {
		return ErrInvalidState
	}
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	p.Status = PaymentCompleted
	inv.PaidAmount = paid
	inv.Status = status
	return nil
}

func (m *mockRepository) UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = status
	return nil
}

func (m *mockRepository) FindOverdue(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.invoices {
		if (inv.Status == InvoiceIssued || inv.Status == InvoicePartiallyPaid) && inv.DueDate.Before(asOf) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *mockRepository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepository) ListPaymentsByOrder(ctx context.Context, track shared.Track, orderID int64) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payment
	for _, p := range m.payments {
		if p.Track == track && p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepository) CreatePayment(ctx context.Context, p Payment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextPaymentID
	m.nextPaymentID++
	p.ID = id
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.payments[id] = &p
	return id, nil
}

func (m *mockRepository) UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return ErrPaymentNotFound
	}
	p.Status = status
	return nil
}

func (m *mockRepository) DeletePayment(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[id]; !ok {
		return ErrPaymentNotFound
	}
	delete(m.payments, id)
	return nil
}

func (m *mockRepository) DeleteByOrder(ctx context.Context, track shared.Track, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.payments {
		if p.Track == track && p.OrderID == orderID {
			delete(m.payments, id)
		}
	}
	for id, inv := range m.invoices {
		if inv.Track == track && inv.OrderID == orderID {
			delete(m.invoices, id)
		}
	}
	return nil
}

type mockOrderPort struct {
	mu    sync.Mutex
	calls []int64
}

func (m *mockOrderPort) OrderFullyPaid(ctx context.Context, track shared.Track, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, orderID)
	return nil
}

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func issueInvoice(t *testing.T, ledger *Ledger, track shared.Track, orderID int64, amount int64) *Invoice {
	t.Helper()
	inv, err := ledger.GenerateInvoice(context.Background(), GenerateInvoiceInput{
		Track:       track,
		OrderID:     orderID,
		QuotationID: 7,
		Amount:      dec(amount),
	})
	require.NoError(t, err)
	return inv
}

func TestGenerateInvoiceExactlyOncePerOrder(t *testing.T) {
	ledger := NewLedger(newMockRepository(), nil, nil)
	ctx := context.Background()

	inv := issueInvoice(t, ledger, shared.TrackDealer, 1, 900_000_000)
	assert.Equal(t, InvoiceIssued, inv.Status)
	assert.True(t, inv.PaidAmount.IsZero())
	assert.True(t, inv.RemainingAmount().Equal(dec(900_000_000)))
	assert.NotEmpty(t, inv.InvoiceNumber)

	_, err := ledger.GenerateInvoice(ctx, GenerateInvoiceInput{
		Track: shared.TrackDealer, OrderID: 1, QuotationID: 8, Amount: dec(900_000_000),
	})
	assert.ErrorIs(t, err, ErrInvoiceExists)

	// Same order id on the other track is a different order.
	_, err = ledger.GenerateInvoice(ctx, GenerateInvoiceInput{
		Track: shared.TrackCustomer, OrderID: 1, QuotationID: 9, Amount: dec(800_000_000),
	})
	require.NoError(t, err)
}

func TestConfirmPaymentPartialThenFull(t *testing.T) {
	orders := &mockOrderPort{}
	ledger := NewLedger(newMockRepository(), orders, nil)
	ctx := context.Background()

	inv := issueInvoice(t, ledger, shared.TrackCustomer, 42, 800_000_000)

	p1, err := ledger.RecordPayment(ctx, shared.TrackCustomer, 42, dec(300_000_000), "bank_transfer", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, PaymentPending, p1.Status)

	p1, err = ledger.ConfirmPayment(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentCompleted, p1.Status)

	got, err := ledger.Invoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoicePartiallyPaid, got.Status)
	assert.True(t, got.PaidAmount.Equal(dec(300_000_000)))
	assert.Empty(t, orders.calls, "partial payment must not advance the order")

	p2, err := ledger.RecordPayment(ctx, shared.TrackCustomer, 42, dec(500_000_000), "cash", "")
	require.NoError(t, err)
	_, err = ledger.ConfirmPayment(ctx, p2.ID)
	require.NoError(t, err)

	got, err = ledger.Invoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoicePaid, got.Status)
	assert.True(t, got.PaidAmount.Equal(got.TotalAmount))
	assert.Equal(t, []int64{42}, orders.calls)

	// A settled invoice takes no more payments.
	_, err = ledger.RecordPayment(ctx, shared.TrackCustomer, 42, dec(1), "cash", "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestConfirmPaymentGuards(t *testing.T) {
	ledger := NewLedger(newMockRepository(), nil, nil)
	ctx := context.Background()

	issueInvoice(t, ledger, shared.TrackDealer, 5, 100)

	over, err := ledger.RecordPayment(ctx, shared.TrackDealer, 5, dec(150), "cash", "")
	require.NoError(t, err)
	_, err = ledger.ConfirmPayment(ctx, over.ID)
	assert.ErrorIs(t, err, ErrOverpayment)

	p, err := ledger.RecordPayment(ctx, shared.TrackDealer, 5, dec(100), "cash", "")
	require.NoError(t, err)
	_, err = ledger.ConfirmPayment(ctx, p.ID)
	require.NoError(t, err)

	// Confirming twice is a conflict, not a double increment.
	_, err = ledger.ConfirmPayment(ctx, p.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	got, err := ledger.InvoiceForOrder(ctx, shared.TrackDealer, 5)
	require.NoError(t, err)
	assert.True(t, got.PaidAmount.Equal(dec(100)))
}

func TestFailAndDeletePayment(t *testing.T) {
	ledger := NewLedger(newMockRepository(), nil, nil)
	ctx := context.Background()

	issueInvoice(t, ledger, shared.TrackCustomer, 9, 1_000)

	p, err := ledger.RecordPayment(ctx, shared.TrackCustomer, 9, dec(400), "card", "")
	require.NoError(t, err)
	p, err = ledger.FailPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentFailed, p.Status)

	// Failed payments can be deleted, completed ones cannot.
	require.NoError(t, ledger.DeletePayment(ctx, p.ID))

	p2, err := ledger.RecordPayment(ctx, shared.TrackCustomer, 9, dec(1_000), "card", "")
	require.NoError(t, err)
	_, err = ledger.ConfirmPayment(ctx, p2.ID)
	require.NoError(t, err)
	err = ledger.DeletePayment(ctx, p2.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelInvoice(t *testing.T) {
	ledger := NewLedger(newMockRepository(), nil, nil)
	ctx := context.Background()

	inv := issueInvoice(t, ledger, shared.TrackDealer, 11, 500)
	cancelled, err := ledger.CancelInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoiceCancelled, cancelled.Status)

	// Money already received blocks cancellation.
	inv2 := issueInvoice(t, ledger, shared.TrackDealer, 12, 500)
	p, err := ledger.RecordPayment(ctx, shared.TrackDealer, 12, dec(200), "cash", "")
	require.NoError(t, err)
	_, err = ledger.ConfirmPayment(ctx, p.ID)
	require.NoError(t, err)
	_, err = ledger.CancelInvoice(ctx, inv2.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPurgeOrderRemovesEverything(t *testing.T) {
	repo := newMockRepository()
	ledger := NewLedger(repo, nil, nil)
	ctx := context.Background()

	issueInvoice(t, ledger, shared.TrackCustomer, 21, 700)
	p, err := ledger.RecordPayment(ctx, shared.TrackCustomer, 21, dec(700), "cash", "")
	require.NoError(t, err)
	_, err = ledger.ConfirmPayment(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, ledger.PurgeOrder(ctx, shared.TrackCustomer, 21))

	_, err = ledger.InvoiceForOrder(ctx, shared.TrackCustomer, 21)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
	payments, err := ledger.PaymentsForOrder(ctx, shared.TrackCustomer, 21)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestMarkOverdueDue(t *testing.T) {
	ledger := NewLedger(newMockRepository(), nil, nil)
	ctx := context.Background()

	current := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	ledger.WithNow(func() time.Time { return current })

	inv := issueInvoice(t, ledger, shared.TrackDealer, 31, 900)
	paid := issueInvoice(t, ledger, shared.TrackDealer, 32, 100)
	p, err := ledger.RecordPayment(ctx, shared.TrackDealer, 32, dec(100), "cash", "")
	require.NoError(t, err)
	_, err = ledger.ConfirmPayment(ctx, p.ID)
	require.NoError(t, err)

	current = current.AddDate(0, 0, DefaultDueDays+1)
	flagged, err := ledger.MarkOverdueDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{inv.ID}, flagged)

	got, err := ledger.Invoice(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoicePaid, got.Status, "settled invoices never go overdue")

	// An overdue invoice still accepts the late payment.
	late, err := ledger.RecordPayment(ctx, shared.TrackDealer, 31, dec(900), "bank_transfer", "")
	require.NoError(t, err)
	_, err = ledger.ConfirmPayment(ctx, late.ID)
	require.NoError(t, err)
	got, err = ledger.Invoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoicePaid, got.Status)
}
