package customerorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mu     sync.Mutex
	orders map[int64]*CustomerOrder
	nextID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{orders: make(map[int64]*CustomerOrder), nextID: 1}
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*CustomerOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]CustomerOrder, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CustomerOrder
	for _, o := range m.orders {
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(ctx context.Context, order CustomerOrder) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	order.ID = id
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	m.orders[id] = &order
	return id, nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	switch status {
	case StatusCancelled:
		o.CancellationReason = reason
	case StatusRejected:
		o.RejectionReason = reason
	}
	return nil
}

func (m *mockRepository) SetQuotation(ctx context.Context, id int64, quotationID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.QuotationID = quotationID
	return nil
}

func (m *mockRepository) SetUnit(ctx context.Context, id int64, unitID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.UnitID = unitID
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func newTestService() *Service {
	return NewService(newMockRepository())
}

func createOrder(t *testing.T, svc *Service) *CustomerOrder {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID:  3,
		VariantID:   1,
		ColorID:     2,
		TotalAmount: decimal.NewFromInt(800_000_000),
	})
	require.NoError(t, err)
	return order
}

func TestCreateStartsPending(t *testing.T) {
	svc := newTestService()
	order := createOrder(t, svc)
	assert.Equal(t, StatusPending, order.Status)
	assert.True(t, order.EligibleForQuotation())
}

func TestQuotedOnlyAfterQuotationExists(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	// Confirm requires a quotation first.
	_, err := svc.Confirm(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	quoted, err := svc.AttachQuotation(ctx, order.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, StatusQuoted, quoted.Status)
	require.NotNil(t, quoted.QuotationID)

	// One active quotation at a time.
	_, err = svc.AttachQuotation(ctx, order.ID, 13)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	confirmed, err := svc.Confirm(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
}

func TestClearQuotationKeepsStatus(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	_, err := svc.AttachQuotation(ctx, order.ID, 12)
	require.NoError(t, err)

	cleared, err := svc.ClearQuotation(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.QuotationID)
	assert.Equal(t, StatusQuoted, cleared.Status, "rejection leaves the order user-correctable")
	assert.True(t, cleared.EligibleForQuotation())

	// Re-quoting after a rejection is allowed.
	requoted, err := svc.AttachQuotation(ctx, order.ID, 14)
	require.NoError(t, err)
	assert.Equal(t, int64(14), *requoted.QuotationID)
}

func TestPaymentAndDeliveryChain(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	_, err := svc.AttachQuotation(ctx, order.ID, 1)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, order.ID)
	require.NoError(t, err)

	// Delivery before payment is illegal.
	_, err = svc.MarkDelivered(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	paid, err := svc.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)

	_, err = svc.MarkDelivered(ctx, order.ID)
	require.NoError(t, err)
	completed, err := svc.Complete(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
}

func TestAssignUnitOnce(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	assigned, err := svc.AssignUnit(ctx, order.ID, 77)
	require.NoError(t, err)
	require.NotNil(t, assigned.UnitID)
	assert.Equal(t, int64(77), *assigned.UnitID)

	_, err = svc.AssignUnit(ctx, order.ID, 78)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectOnlyOpenOrders(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	_, err := svc.AttachQuotation(ctx, order.ID, 1)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, order.ID)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, order.ID, "no stock")
	assert.ErrorIs(t, err, ErrInvalidTransition, "confirmed orders cancel, not reject")

	other := createOrder(t, svc)
	rejected, err := svc.Reject(ctx, other.ID, "no stock")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "no stock", rejected.RejectionReason)
}

func TestCancelAndDelete(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	err := svc.Delete(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	cancelled, err := svc.Cancel(ctx, order.ID, "changed mind")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, order.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, svc.Delete(ctx, order.ID))
	_, err = svc.Get(ctx, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
