package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

type mockRepository struct {
	mu     sync.Mutex
	units  map[int64]*VehicleUnit
	byVIN  map[string]int64
	nextID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		units:  make(map[int64]*VehicleUnit),
		byVIN:  make(map[string]int64),
		nextID: 1,
	}
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*VehicleUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepository) GetByVIN(ctx context.Context, vin string) (*VehicleUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byVIN[vin]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.units[id]
	return &cp, nil
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]VehicleUnit, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []VehicleUnit
	for _, u := range m.units {
		if filter.Status != nil && u.Status != *filter.Status {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(ctx context.Context, unit VehicleUnit) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byVIN[unit.VIN]; exists {
		return 0, ErrDuplicateVIN
	}
	id := m.nextID
	m.nextID++
	unit.ID = id
	m.units[id] = &unit
	m.byVIN[unit.VIN] = id
	return id, nil
}

func (m *mockRepository) Reserve(ctx context.Context, id int64, track shared.Track, orderID int64) (*VehicleUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Status != UnitStatusAvailable {
		return nil, ErrNotAvailable
	}
	u.Status = UnitStatusReserved
	u.OrderTrack = &track
	u.OrderID = &orderID
	cp := *u
	return &cp, nil
}

func (m *mockRepository) Release(ctx context.Context, id int64) (*VehicleUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Status == UnitStatusReserved || u.Status == UnitStatusInTransit {
		u.Status = UnitStatusAvailable
		u.OrderTrack = nil
		u.OrderID = nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepository) MarkSold(ctx context.Context, id int64) (*VehicleUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Status != UnitStatusReserved && u.Status != UnitStatusInTransit {
		return nil, ErrNotReserved
	}
	u.Status = UnitStatusSold
	cp := *u
	return &cp, nil
}

func (m *mockRepository) MarkInTransit(ctx context.Context, id int64) (*VehicleUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Status != UnitStatusReserved {
		return nil, ErrNotReserved
	}
	u.Status = UnitStatusInTransit
	cp := *u
	return &cp, nil
}

func (m *mockRepository) FindByOrder(ctx context.Context, track shared.Track, orderID int64) ([]VehicleUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []VehicleUnit
	for _, u := range m.units {
		if u.OrderTrack != nil && *u.OrderTrack == track && u.OrderID != nil && *u.OrderID == orderID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func newTestLedger() (*Ledger, *mockRepository) {
	repo := newMockRepository()
	return NewLedger(repo, nil), repo
}

func registerUnit(t *testing.T, ledger *Ledger) *VehicleUnit {
	t.Helper()
	unit, err := ledger.Register(context.Background(), CreateUnitInput{
		VIN:           "VF8A1B2C3D4E5F678",
		ChassisNumber: "CH-0001",
		VariantID:     1,
		ColorID:       2,
		WarehouseID:   3,
		Price:         decimal.NewFromInt(500_000_000),
	})
	require.NoError(t, err)
	return unit
}

func TestRegisterValidation(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	_, err := ledger.Register(ctx, CreateUnitInput{ChassisNumber: "CH", VariantID: 1, ColorID: 1, WarehouseID: 1, Price: decimal.NewFromInt(1)})
	assert.Error(t, err)

	_, err = ledger.Register(ctx, CreateUnitInput{VIN: "VIN1", ChassisNumber: "CH", VariantID: 1, ColorID: 1, WarehouseID: 1, Price: decimal.Zero})
	assert.Error(t, err)

	unit := registerUnit(t, ledger)
	assert.Equal(t, UnitStatusAvailable, unit.Status)

	_, err = ledger.Register(ctx, CreateUnitInput{
		VIN: unit.VIN, ChassisNumber: "CH-0002", VariantID: 1, ColorID: 1, WarehouseID: 1,
		Price: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, ErrDuplicateVIN)
}

func TestReserveThenRelease(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	unit := registerUnit(t, ledger)

	reserved, err := ledger.Reserve(ctx, unit.ID, shared.TrackCustomer, 10)
	require.NoError(t, err)
	assert.Equal(t, UnitStatusReserved, reserved.Status)
	require.NotNil(t, reserved.OrderID)
	assert.Equal(t, int64(10), *reserved.OrderID)

	// Second order cannot claim the same unit.
	_, err = ledger.Reserve(ctx, unit.ID, shared.TrackCustomer, 11)
	assert.ErrorIs(t, err, ErrNotAvailable)

	released, err := ledger.Release(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, UnitStatusAvailable, released.Status)
	assert.Nil(t, released.OrderID)

	// Release is idempotent.
	released, err = ledger.Release(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, UnitStatusAvailable, released.Status)
}

func TestReserveRaceExactlyOneWinner(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	unit := registerUnit(t, ledger)

	var mu sync.Mutex
	winners := map[int64]bool{}
	var conflicts int

	var g errgroup.Group
	for orderID := int64(100); orderID < 110; orderID++ {
		g.Go(func() error {
			_, err := ledger.Reserve(ctx, unit.ID, shared.TrackDealer, orderID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners[orderID] = true
				return nil
			}
			if errors.Is(err, ErrNotAvailable) {
				conflicts++
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, winners, 1, "exactly one reserve call wins")
	assert.Equal(t, 9, conflicts)

	final, err := ledger.Get(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, UnitStatusReserved, final.Status)
	require.NotNil(t, final.OrderID)
	assert.True(t, winners[*final.OrderID], "unit references the winning order only")
}

func TestMarkSoldRequiresReservation(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	unit := registerUnit(t, ledger)

	_, err := ledger.MarkSold(ctx, unit.ID)
	assert.ErrorIs(t, err, ErrNotReserved)

	_, err = ledger.Reserve(ctx, unit.ID, shared.TrackCustomer, 5)
	require.NoError(t, err)

	sold, err := ledger.MarkSold(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, UnitStatusSold, sold.Status)

	// A sold unit stays claimed by its order.
	units, err := ledger.UnitsForOrder(ctx, shared.TrackCustomer, 5)
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func TestParseUnitStatusRejectsUnknown(t *testing.T) {
	_, err := ParseUnitStatus("AVAILABLE")
	assert.Error(t, err)
	status, err := ParseUnitStatus("in_transit")
	require.NoError(t, err)
	assert.Equal(t, UnitStatusInTransit, status)
}
