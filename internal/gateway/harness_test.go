package gateway

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/velocity-dms/velocity-dms/internal/billing"
	"github.com/velocity-dms/velocity-dms/internal/customerorder"
	"github.com/velocity-dms/velocity-dms/internal/dealerorder"
	"github.com/velocity-dms/velocity-dms/internal/delivery"
	"github.com/velocity-dms/velocity-dms/internal/inventory"
	"github.com/velocity-dms/velocity-dms/internal/quotation"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// fixture wires a full workflow over in-memory repositories so the
// cascade tests exercise the real services end to end.
type fixture struct {
	workflow  *Workflow
	dealers   *dealerorder.Service
	customers *customerorder.Service
	quotes    *quotation.Engine
	billing   *billing.Ledger
	inventory *inventory.Ledger
	scheduler *delivery.Scheduler

	dealerRepo    *fakeDealerRepo
	customerRepo  *fakeCustomerRepo
	quoteRepo     *fakeQuoteRepo
	billingRepo   *fakeBillingRepo
	inventoryRepo *fakeInventoryRepo
	deliveryRepo  *fakeDeliveryRepo
}

func newFixture() *fixture {
	f := &fixture{
		dealerRepo:    newFakeDealerRepo(),
		customerRepo:  newFakeCustomerRepo(),
		quoteRepo:     newFakeQuoteRepo(),
		billingRepo:   newFakeBillingRepo(),
		inventoryRepo: newFakeInventoryRepo(),
		deliveryRepo:  newFakeDeliveryRepo(),
	}
	f.dealers = dealerorder.NewService(f.dealerRepo)
	f.customers = customerorder.NewService(f.customerRepo)
	f.quotes = quotation.NewEngine(f.quoteRepo).
		WithDetacher(&QuoteDetachAdapter{Dealers: f.dealers, Customers: f.customers})
	f.billing = billing.NewLedger(f.billingRepo, &OrderPaidAdapter{Customers: f.customers}, nil)
	f.inventory = inventory.NewLedger(f.inventoryRepo, nil)
	f.scheduler = delivery.NewScheduler(f.deliveryRepo, nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.workflow = NewWorkflow(logger, f.dealers, f.customers, f.quotes, f.billing, f.inventory, f.scheduler, nil)
	return f
}

func asRole(role shared.Role) context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{ID: 99, Role: role})
}

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func decPtr(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}

// --- dealer order repo ---

type fakeDealerRepo struct {
	mu     sync.Mutex
	orders map[int64]*dealerorder.DealerOrder
	nextID int64
}

func newFakeDealerRepo() *fakeDealerRepo {
	return &fakeDealerRepo{orders: make(map[int64]*dealerorder.DealerOrder), nextID: 1}
}

func (f *fakeDealerRepo) Get(ctx context.Context, id int64) (*dealerorder.DealerOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, dealerorder.ErrNotFound
	}
	cp := *o
	cp.Lines = append([]dealerorder.Line(nil), o.Lines...)
	return &cp, nil
}

func (f *fakeDealerRepo) List(ctx context.Context, filter dealerorder.ListFilter) ([]dealerorder.DealerOrder, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []dealerorder.DealerOrder
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (f *fakeDealerRepo) Create(ctx context.Context, order dealerorder.DealerOrder) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	order.ID = id
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Lines {
		order.Lines[i].ID = int64(i + 1)
		order.Lines[i].OrderID = id
	}
	f.orders[id] = &order
	return id, nil
}

func (f *fakeDealerRepo) UpdateApproval(ctx context.Context, id int64, approval dealerorder.ApprovalStatus, actorID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return dealerorder.ErrNotFound
	}
	o.ApprovalStatus = approval
	o.RejectionReason = reason
	if approval == dealerorder.ApprovalApproved {
		now := time.Now()
		o.ApprovedBy = &actorID
		o.ApprovedAt = &now
	}
	return nil
}

func (f *fakeDealerRepo) UpdateStatus(ctx context.Context, id int64, status dealerorder.Status, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return dealerorder.ErrNotFound
	}
	o.Status = status
	if status == dealerorder.StatusCancelled {
		o.CancellationReason = reason
	}
	return nil
}

func (f *fakeDealerRepo) SetQuotation(ctx context.Context, id int64, quotationID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return dealerorder.ErrNotFound
	}
	o.QuotationID = quotationID
	return nil
}

func (f *fakeDealerRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return dealerorder.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

// --- customer order repo ---

type fakeCustomerRepo struct {
	mu     sync.Mutex
	orders map[int64]*customerorder.CustomerOrder
	nextID int64
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{orders: make(map[int64]*customerorder.CustomerOrder), nextID: 1}
}

func (f *fakeCustomerRepo) Get(ctx context.Context, id int64) (*customerorder.CustomerOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, customerorder.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeCustomerRepo) List(ctx context.Context, filter customerorder.ListFilter) ([]customerorder.CustomerOrder, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []customerorder.CustomerOrder
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (f *fakeCustomerRepo) Create(ctx context.Context, order customerorder.CustomerOrder) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	order.ID = id
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	f.orders[id] = &order
	return id, nil
}

func (f *fakeCustomerRepo) UpdateStatus(ctx context.Context, id int64, status customerorder.Status, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return customerorder.ErrNotFound
	}
	o.Status = status
	switch status {
	case customerorder.StatusRejected:
		o.RejectionReason = reason
	case customerorder.StatusCancelled:
		o.CancellationReason = reason
	}
	return nil
}

func (f *fakeCustomerRepo) SetQuotation(ctx context.Context, id int64, quotationID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return customerorder.ErrNotFound
	}
	o.QuotationID = quotationID
	return nil
}

func (f *fakeCustomerRepo) SetUnit(ctx context.Context, id int64, unitID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return customerorder.ErrNotFound
	}
	o.UnitID = unitID
	return nil
}

func (f *fakeCustomerRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return customerorder.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

// --- quotation repo ---

type fakeQuoteRepo struct {
	mu     sync.Mutex
	quotes map[int64]*quotation.Quotation
	nextID int64
}

func newFakeQuoteRepo() *fakeQuoteRepo {
	return &fakeQuoteRepo{quotes: make(map[int64]*quotation.Quotation), nextID: 1}
}

func (f *fakeQuoteRepo) Get(ctx context.Context, id int64) (*quotation.Quotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[id]
	if !ok {
		return nil, quotation.ErrNotFound
	}
	cp := *q
	cp.Lines = append([]quotation.Line(nil), q.Lines...)
	return &cp, nil
}

func (f *fakeQuoteRepo) GetActiveByOrder(ctx context.Context, track shared.Track, orderID int64) (*quotation.Quotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.quotes {
		if q.Track == track && q.OrderID == orderID && q.Status.Active() {
			cp := *q
			return &cp, nil
		}
	}
	return nil, quotation.ErrNotFound
}

func (f *fakeQuoteRepo) ListByOrder(ctx context.Context, track shared.Track, orderID int64) ([]quotation.Quotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []quotation.Quotation
	for _, q := range f.quotes {
		if q.Track == track && q.OrderID == orderID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeQuoteRepo) Create(ctx context.Context, q quotation.Quotation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	q.ID = id
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	f.quotes[id] = &q
	return id, nil
}

func (f *fakeQuoteRepo) UpdateStatus(ctx context.Context, id int64, status quotation.Status, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[id]
	if !ok {
		return quotation.ErrNotFound
	}
	q.Status = status
	if status == quotation.StatusRejected {
		q.RejectionReason = reason
	}
	return nil
}

func (f *fakeQuoteRepo) FindDue(ctx context.Context, now time.Time) ([]quotation.Quotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []quotation.Quotation
	for _, q := range f.quotes {
		if (q.Status == quotation.StatusPending || q.Status == quotation.StatusSent) && now.After(q.ExpiryDate) {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeQuoteRepo) DeleteByOrder(ctx context.Context, track shared.Track, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, q := range f.quotes {
		if q.Track == track && q.OrderID == orderID {
			delete(f.quotes, id)
		}
	}
	return nil
}

// --- billing repo ---

type fakeBillingRepo struct {
	mu            sync.Mutex
	invoices      map[int64]*billing.Invoice
	payments      map[int64]*billing.Payment
	nextInvoiceID int64
	nextPaymentID int64
}

func newFakeBillingRepo() *fakeBillingRepo {
	return &fakeBillingRepo{
		invoices:      make(map[int64]*billing.Invoice),
		payments:      make(map[int64]*billing.Payment),
		nextInvoiceID: 1,
		nextPaymentID: 1,
	}
}

func (f *fakeBillingRepo) GetInvoice(ctx context.Context, id int64) (*billing.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[id]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeBillingRepo) GetInvoiceByOrder(ctx context.Context, track shared.Track, orderID int64) (*billing.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invoices {
		if inv.Track == track && inv.OrderID == orderID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, billing.ErrInvoiceNotFound
}

func (f *fakeBillingRepo) ListInvoices(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range f.invoices {
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (f *fakeBillingRepo) CreateInvoice(ctx context.Context, inv billing.Invoice) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.invoices {
		if existing.Track == inv.Track && existing.OrderID == inv.OrderID {
			return 0, billing.ErrInvoiceExists
		}
	}
	id := f.nextInvoiceID
	f.nextInvoiceID++
	inv.ID = id
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	f.invoices[id] = &inv
	return id, nil
}

func (f *fakeBillingRepo) ApplyPayment(ctx context.Context, paymentID, invoiceID int64, paid decimal.Decimal, status billing.InvoiceStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok {
		return billing.ErrPaymentNotFound
	}
	if p.Status != billing.PaymentPending {
		return billing.ErrInvalidState
	}
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return billing.ErrInvoiceNotFound
	}
	p.Status = billing.PaymentCompleted
	inv.PaidAmount = paid
	inv.Status = status
	return nil
}

func (f *fakeBillingRepo) UpdateInvoiceStatus(ctx context.Context, id int64, status billing.InvoiceStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[id]
	if !ok {
		return billing.ErrInvoiceNotFound
	}
	inv.Status = status
	return nil
}

func (f *fakeBillingRepo) FindOverdue(ctx context.Context, asOf time.Time) ([]billing.Invoice, error) {
	return nil, nil
}

func (f *fakeBillingRepo) GetPayment(ctx context.Context, id int64) (*billing.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, billing.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeBillingRepo) ListPaymentsByOrder(ctx context.Context, track shared.Track, orderID int64) ([]billing.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []billing.Payment
	for _, p := range f.payments {
		if p.Track == track && p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeBillingRepo) CreatePayment(ctx context.Context, p billing.Payment) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextPaymentID
	f.nextPaymentID++
	p.ID = id
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.payments[id] = &p
	return id, nil
}

func (f *fakeBillingRepo) UpdatePaymentStatus(ctx context.Context, id int64, status billing.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return billing.ErrPaymentNotFound
	}
	p.Status = status
	return nil
}

func (f *fakeBillingRepo) DeletePayment(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.payments[id]; !ok {
		return billing.ErrPaymentNotFound
	}
	delete(f.payments, id)
	return nil
}

func (f *fakeBillingRepo) DeleteByOrder(ctx context.Context, track shared.Track, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.payments {
		if p.Track == track && p.OrderID == orderID {
			delete(f.payments, id)
		}
	}
	for id, inv := range f.invoices {
		if inv.Track == track && inv.OrderID == orderID {
			delete(f.invoices, id)
		}
	}
	return nil
}

// --- inventory repo ---

type fakeInventoryRepo struct {
	mu     sync.Mutex
	units  map[int64]*inventory.VehicleUnit
	nextID int64
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{units: make(map[int64]*inventory.VehicleUnit), nextID: 1}
}

func (f *fakeInventoryRepo) Get(ctx context.Context, id int64) (*inventory.VehicleUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeInventoryRepo) GetByVIN(ctx context.Context, vin string) (*inventory.VehicleUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.units {
		if u.VIN == vin {
			cp := *u
			return &cp, nil
		}
	}
	return nil, inventory.ErrNotFound
}

func (f *fakeInventoryRepo) List(ctx context.Context, filter inventory.ListFilter) ([]inventory.VehicleUnit, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []inventory.VehicleUnit
	for _, u := range f.units {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (f *fakeInventoryRepo) Create(ctx context.Context, unit inventory.VehicleUnit) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.units {
		if u.VIN == unit.VIN {
			return 0, inventory.ErrDuplicateVIN
		}
	}
	id := f.nextID
	f.nextID++
	unit.ID = id
	f.units[id] = &unit
	return id, nil
}

func (f *fakeInventoryRepo) Reserve(ctx context.Context, id int64, track shared.Track, orderID int64) (*inventory.VehicleUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	if u.Status != inventory.UnitStatusAvailable {
		return nil, inventory.ErrNotAvailable
	}
	u.Status = inventory.UnitStatusReserved
	u.OrderTrack = &track
	u.OrderID = &orderID
	cp := *u
	return &cp, nil
}

func (f *fakeInventoryRepo) Release(ctx context.Context, id int64) (*inventory.VehicleUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	if u.Status == inventory.UnitStatusReserved || u.Status == inventory.UnitStatusInTransit {
		u.Status = inventory.UnitStatusAvailable
		u.OrderTrack = nil
		u.OrderID = nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeInventoryRepo) MarkSold(ctx context.Context, id int64) (*inventory.VehicleUnit, error) {
	return f.transition(id, inventory.UnitStatusSold, inventory.UnitStatusReserved, inventory.UnitStatusInTransit)
}

func (f *fakeInventoryRepo) MarkInTransit(ctx context.Context, id int64) (*inventory.VehicleUnit, error) {
	return f.transition(id, inventory.UnitStatusInTransit, inventory.UnitStatusReserved)
}

func (f *fakeInventoryRepo) transition(id int64, to inventory.UnitStatus, from ...inventory.UnitStatus) (*inventory.VehicleUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	for _, s := range from {
		if u.Status == s {
			u.Status = to
			cp := *u
			return &cp, nil
		}
	}
	return nil, inventory.ErrNotReserved
}

func (f *fakeInventoryRepo) FindByOrder(ctx context.Context, track shared.Track, orderID int64) ([]inventory.VehicleUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []inventory.VehicleUnit
	for _, u := range f.units {
		if u.OrderTrack != nil && *u.OrderTrack == track && u.OrderID != nil && *u.OrderID == orderID {
			out = append(out, *u)
		}
	}
	return out, nil
}

// --- delivery repo ---

type fakeDeliveryRepo struct {
	mu         sync.Mutex
	deliveries map[int64]*delivery.Delivery
	nextID     int64
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{deliveries: make(map[int64]*delivery.Delivery), nextID: 1}
}

func (f *fakeDeliveryRepo) Get(ctx context.Context, id int64) (*delivery.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[id]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDeliveryRepo) ListByOrder(ctx context.Context, track shared.Track, orderID int64) ([]delivery.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []delivery.Delivery
	for _, d := range f.deliveries {
		if d.Track == track && d.OrderID == orderID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDeliveryRepo) List(ctx context.Context, filter delivery.ListFilter) ([]delivery.Delivery, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []delivery.Delivery
	for _, d := range f.deliveries {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (f *fakeDeliveryRepo) Create(ctx context.Context, d delivery.Delivery) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	d.ID = id
	f.deliveries[id] = &d
	return id, nil
}

func (f *fakeDeliveryRepo) UpdateStatus(ctx context.Context, id int64, status delivery.Status, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[id]
	if !ok {
		return delivery.ErrNotFound
	}
	d.Status = status
	d.CancellationReason = reason
	return nil
}

func (f *fakeDeliveryRepo) SetConfirmations(ctx context.Context, id int64, shipper, dealer bool, status delivery.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[id]
	if !ok {
		return delivery.ErrNotFound
	}
	d.ShipperConfirmed = shipper
	d.DealerConfirmed = dealer
	d.Status = status
	return nil
}

func (f *fakeDeliveryRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.deliveries[id]; !ok {
		return delivery.ErrNotFound
	}
	delete(f.deliveries, id)
	return nil
}

func (f *fakeDeliveryRepo) DeleteByOrder(ctx context.Context, track shared.Track, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, d := range f.deliveries {
		if d.Track == track && d.OrderID == orderID {
			delete(f.deliveries, id)
		}
	}
	return nil
}
