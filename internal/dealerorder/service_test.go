package dealerorder

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
	orders map[int64]*DealerOrder
	nextID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{orders: make(map[int64]*DealerOrder), nextID: 1}
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*DealerOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	return &cp, nil
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]DealerOrder, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DealerOrder
	for _, o := range m.orders {
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(ctx context.Context, order DealerOrder) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	order.ID = id
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Lines {
		order.Lines[i].ID = int64(i + 1)
		order.Lines[i].OrderID = id
	}
	m.orders[id] = &order
	return id, nil
}

func (m *mockRepository) UpdateApproval(ctx context.Context, id int64, approval ApprovalStatus, actorID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.ApprovalStatus = approval
	o.ApprovedBy = &actorID
	now := time.Now()
	o.ApprovedAt = &now
	o.RejectionReason = reason
	return nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	if status == StatusCancelled {
		o.CancellationReason = reason
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

func createOrder(t *testing.T, svc *Service) *DealerOrder {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateOrderInput{
		DealerID: 7,
		Lines: []LineInput{
			{VariantID: 1, ColorID: 2, Quantity: 2, UnitPrice: decimal.NewFromInt(500_000_000)},
		},
	})
	require.NoError(t, err)
	return order
}

func TestCreateComputesTotalAndInitialStates(t *testing.T) {
	svc := newTestService()
	order := createOrder(t, svc)

	assert.Equal(t, ApprovalPending, order.ApprovalStatus)
	assert.Equal(t, StatusWaitingForQuotation, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(1_000_000_000)))
	assert.False(t, order.EligibleForQuotation(), "pending approval blocks quotation")
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateOrderInput{DealerID: 1})
	assert.Error(t, err)

	_, err = svc.Create(ctx, CreateOrderInput{DealerID: 1, Lines: []LineInput{
		{VariantID: 1, ColorID: 1, Quantity: 0, UnitPrice: decimal.NewFromInt(1)},
	}})
	assert.Error(t, err)

	_, err = svc.Create(ctx, CreateOrderInput{DealerID: 1, Lines: []LineInput{
		{VariantID: 1, ColorID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(1), DiscountPct: decimal.NewFromInt(101)},
	}})
	assert.Error(t, err)
}

func TestApprovalIsIndependentOfStatus(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	approved, err := svc.Approve(ctx, order.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, approved.ApprovalStatus)
	assert.Equal(t, StatusWaitingForQuotation, approved.Status, "approval does not advance fulfillment")
	assert.True(t, approved.EligibleForQuotation())

	// Second decision attempt observes the already-updated state.
	_, err = svc.Approve(ctx, order.ID, 100)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.RejectApproval(ctx, order.ID, 100, "late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectApprovalRecordsReason(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	rejected, err := svc.RejectApproval(ctx, order.ID, 99, "quota exceeded")
	require.NoError(t, err)
	assert.Equal(t, ApprovalRejected, rejected.ApprovalStatus)
	assert.Equal(t, "quota exceeded", rejected.RejectionReason)
	assert.False(t, rejected.EligibleForQuotation())
}

func TestConfirmRequiresApprovalAndQuotation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	_, err := svc.Confirm(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "neither approved nor quoted")

	_, err = svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "approved but no quotation")

	_, err = svc.AttachQuotation(ctx, order.ID, 55)
	require.NoError(t, err)
	confirmed, err := svc.Confirm(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
}

func TestAttachQuotationGuards(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	// Pending approval blocks quotation creation.
	_, err := svc.AttachQuotation(ctx, order.ID, 10)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)
	_, err = svc.AttachQuotation(ctx, order.ID, 10)
	require.NoError(t, err)

	// One active quotation at a time.
	_, err = svc.AttachQuotation(ctx, order.ID, 11)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Detach makes the order quotable again.
	detached, err := svc.DetachQuotation(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, detached.QuotationID)
	_, err = svc.AttachQuotation(ctx, order.ID, 11)
	require.NoError(t, err)
}

func TestFulfillmentChain(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	_, err := svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)
	_, err = svc.AttachQuotation(ctx, order.ID, 10)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, order.ID)
	require.NoError(t, err)

	// Out-of-order transitions fail.
	_, err = svc.MarkShipped(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.MarkProcessing(ctx, order.ID)
	require.NoError(t, err)
	_, err = svc.MarkShipped(ctx, order.ID)
	require.NoError(t, err)
	_, err = svc.MarkDelivered(ctx, order.ID)
	require.NoError(t, err)
	completed, err := svc.Complete(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)

	_, err = svc.Cancel(ctx, order.ID, "too late")
	assert.ErrorIs(t, err, ErrInvalidTransition, "terminal state")
}

func TestCancelFromAnyNonTerminalState(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	cancelled, err := svc.Cancel(ctx, order.ID, "dealer withdrew")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "dealer withdrew", cancelled.CancellationReason)

	// Cancelled orders cannot be approved.
	_, err = svc.Approve(ctx, order.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeleteOnlyTerminatedOrders(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	order := createOrder(t, svc)

	err := svc.Delete(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Cancel(ctx, order.ID, "typo order")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, order.ID))

	_, err = svc.Get(ctx, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
