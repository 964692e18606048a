package records

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacart-backend/internal/lifecycle"
	"pharmacart-backend/internal/models"
	"pharmacart-backend/internal/money"
	"pharmacart-backend/internal/store"
)

// fakeStore is an in-memory Store with the same conditional-update
// semantics as the gorm implementation. Setting down makes every call
// fail with ErrStoreUnavailable to exercise the mirror fallback.
type fakeStore struct {
	mu     sync.Mutex
	down   bool
	nextID uint64
	orders map[uint64]*models.Order
	appts  map[uint64]*models.Appointment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders: make(map[uint64]*models.Order),
		appts:  make(map[uint64]*models.Appointment),
	}
}

func (f *fakeStore) fail() error {
	if f.down {
		return store.ErrStoreUnavailable
	}
	return nil
}

func (f *fakeStore) CreateOrder(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.nextID++
	o.ID = f.nextID
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeStore) GetOrder(_ context.Context, ownerID, id uint64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	o, ok := f.orders[id]
	if !ok || (ownerID != 0 && o.CustomerID != ownerID) {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) ListOrders(_ context.Context, ownerID uint64, q store.ListQuery) ([]models.Order, store.Pagination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, store.Pagination{}, err
	}
	var out []models.Order
	for _, o := range f.orders {
		if ownerID != 0 && o.CustomerID != ownerID {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, store.Pagination{CurrentPage: 1, TotalPages: 1, TotalCount: int64(len(out))}, nil
}

func (f *fakeStore) CreateAppointment(_ context.Context, a *models.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.nextID++
	a.ID = f.nextID
	cp := *a
	f.appts[a.ID] = &cp
	return nil
}

func (f *fakeStore) GetAppointment(_ context.Context, ownerID, id uint64) (*models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	a, ok := f.appts[id]
	if !ok || (ownerID != 0 && a.CustomerID != ownerID) {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ListAppointments(_ context.Context, ownerID uint64, q store.ListQuery) ([]models.Appointment, store.Pagination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, store.Pagination{}, err
	}
	var out []models.Appointment
	for _, a := range f.appts {
		if ownerID != 0 && a.CustomerID != ownerID {
			continue
		}
		if q.Status != "" && a.Status != q.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, store.Pagination{CurrentPage: 1, TotalPages: 1, TotalCount: int64(len(out))}, nil
}

func (f *fakeStore) GetRecord(_ context.Context, kind models.RecordKind, id uint64) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.recordLocked(kind, id)
}

func (f *fakeStore) recordLocked(kind models.RecordKind, id uint64) (*models.Record, error) {
	if kind == models.KindOrder {
		if o, ok := f.orders[id]; ok {
			return o.Record(), nil
		}
	} else {
		if a, ok := f.appts[id]; ok {
			return a.Record(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) FindBySessionRef(_ context.Context, ref string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	for _, o := range f.orders {
		if o.GatewaySessionRef == ref {
			return o.Record(), nil
		}
	}
	for _, a := range f.appts {
		if a.GatewaySessionRef == ref {
			return a.Record(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) UpdateStatus(_ context.Context, kind models.RecordKind, id uint64, expect store.Expect, mut store.Mutation) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return false, err
	}
	if kind == models.KindOrder {
		o, ok := f.orders[id]
		if !ok || o.Status != expect.Status {
			return false, nil
		}
		if mut.Status != "" {
			o.Status = mut.Status
		}
		if mut.PaymentStatus != "" {
			o.PaymentStatus = mut.PaymentStatus
		}
		if mut.TrackingInfo != "" {
			o.TrackingInfo = mut.TrackingInfo
		}
		return true, nil
	}
	a, ok := f.appts[id]
	if !ok || a.Status != expect.Status {
		return false, nil
	}
	if mut.Status != "" {
		a.Status = mut.Status
	}
	if mut.PaymentStatus != "" {
		a.PaymentStatus = mut.PaymentStatus
	}
	if mut.ScheduledAt != nil {
		a.ScheduledAt = *mut.ScheduledAt
	}
	return true, nil
}

type fakeMirror struct {
	records map[uint64][]models.Record
	err     error
}

func (m *fakeMirror) ReadOwner(ownerID uint64, kind models.RecordKind) ([]models.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Record
	for _, rec := range m.records[ownerID] {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out, nil
}

func orderInput() CreateOrderInput {
	return CreateOrderInput{
		Items: []money.RawItem{
			{Name: "Paracetamol 500mg", Price: "MRP ₹30.00", Quantity: 2},
			{Name: "Vitamin D3 60k", Price: 45.0, Quantity: 1},
		},
		PaymentMethod:   models.PaymentCOD,
		ShippingFee:     0,
		ShippingName:    "Asha Rao",
		ShippingPhone:   "+919800000001",
		ShippingAddress: "14 MG Road, Bengaluru",
	}
}

func TestCreateOrderNormalizesAmounts(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)

	o, err := svc.CreateOrder(context.Background(), 7, orderInput())
	require.NoError(t, err)

	assert.Equal(t, int64(10500), o.AmountDue) // 2*3000 + 4500
	assert.Equal(t, models.StatusPlaced, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.Len(t, o.Items, 2)
	assert.Equal(t, int64(3000), o.Items[0].UnitPrice)
	assert.NotEmpty(t, o.RecordNo)
}

func TestCreateOrderRejectsBadPrice(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)

	in := orderInput()
	in.Items[0].Price = "call for price"
	_, err := svc.CreateOrder(context.Background(), 7, in)
	assert.ErrorIs(t, err, money.ErrInvalidLineItem)
	assert.Empty(t, st.orders)
}

func TestCreateOrderRejectsNegativeShippingFee(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)

	in := orderInput()
	in.ShippingFee = -10
	_, err := svc.CreateOrder(context.Background(), 7, in)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, st.orders)
}

func TestCreateOrderRejectsUnknownPaymentMethod(t *testing.T) {
	svc := NewService(newFakeStore(), nil)

	in := orderInput()
	in.PaymentMethod = "CHEQUE"
	_, err := svc.CreateOrder(context.Background(), 7, in)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// A cash-on-delivery order walked to DELIVERED by the back office ends
// up paid without the gateway ever being involved.
func TestCODOrderDeliveredSettlesPayment(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, orderInput())
	require.NoError(t, err)

	for _, step := range []models.Status{models.StatusConfirmed, models.StatusProcessing, models.StatusShipped} {
		_, err = svc.AdminUpdateStatus(ctx, models.KindOrder, o.ID, step, "")
		require.NoError(t, err)
	}

	rec, err := svc.AdminUpdateStatus(ctx, models.KindOrder, o.ID, models.StatusDelivered, "BLUEDART AWB 1234")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, rec.Status)
	assert.Equal(t, models.PaymentPaid, rec.PaymentStatus)
	assert.Equal(t, "BLUEDART AWB 1234", st.orders[o.ID].TrackingInfo)
}

func TestAdminCannotSkipToDeliveredFromPlaced(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, orderInput())
	require.NoError(t, err)

	_, err = svc.AdminUpdateStatus(ctx, models.KindOrder, o.ID, models.StatusDelivered, "")
	assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)
	assert.Equal(t, models.PaymentPending, st.orders[o.ID].PaymentStatus)
}

func TestAdminUpdateRejectsStatusFromOtherKind(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, orderInput())
	require.NoError(t, err)

	_, err = svc.AdminUpdateStatus(ctx, models.KindOrder, o.ID, models.StatusCompleted, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOwnerCancelBeforeShipping(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, orderInput())
	require.NoError(t, err)

	got, err := svc.CancelOrder(ctx, 7, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
}

func TestOwnerCannotCancelShippedOrder(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, orderInput())
	require.NoError(t, err)
	st.orders[o.ID].Status = models.StatusShipped

	_, err = svc.CancelOrder(ctx, 7, o.ID)
	require.ErrorIs(t, err, lifecycle.ErrIllegalTransition)
	assert.Contains(t, err.Error(), string(models.StatusShipped))
}

func TestCancelSomeoneElsesOrder(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, orderInput())
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx, 8, o.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, models.StatusPlaced, st.orders[o.ID].Status)
}

func apptInput() CreateAppointmentInput {
	return CreateAppointmentInput{
		DoctorName:    "Dr. Meera Nair",
		Specialty:     "Dermatology",
		PatientName:   "Asha Rao",
		ScheduledAt:   time.Now().Add(48 * time.Hour),
		Fee:           "₹500",
		PaymentMethod: models.PaymentOnline,
	}
}

func TestCreateAppointment(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)

	a, err := svc.CreateAppointment(context.Background(), 7, apptInput())
	require.NoError(t, err)
	assert.Equal(t, int64(50000), a.AmountDue)
	assert.Equal(t, models.StatusScheduled, a.Status)
}

func TestCreateAppointmentRejectsPastDate(t *testing.T) {
	svc := NewService(newFakeStore(), nil)

	in := apptInput()
	in.ScheduledAt = time.Now().Add(-time.Hour)
	_, err := svc.CreateAppointment(context.Background(), 7, in)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRescheduleAppointment(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)
	ctx := context.Background()

	a, err := svc.CreateAppointment(ctx, 7, apptInput())
	require.NoError(t, err)

	newDate := time.Now().Add(96 * time.Hour).Truncate(time.Second)
	got, err := svc.RescheduleAppointment(ctx, 7, a.ID, newDate)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRescheduled, got.Status)
	assert.WithinDuration(t, newDate, got.ScheduledAt, time.Second)

	// A rescheduled visit can still be moved again or cancelled.
	_, err = svc.CancelAppointment(ctx, 7, a.ID)
	assert.NoError(t, err)
}

func TestRescheduleRejectsPastDate(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)
	ctx := context.Background()

	a, err := svc.CreateAppointment(ctx, 7, apptInput())
	require.NoError(t, err)

	_, err = svc.RescheduleAppointment(ctx, 7, a.ID, time.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, models.StatusScheduled, st.appts[a.ID].Status)
}

func TestListOrdersFallsBackToMirrorWhenStoreDown(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, orderInput())
	require.NoError(t, err)

	mirror := &fakeMirror{records: map[uint64][]models.Record{7: {*st.orders[o.ID].Record()}}}
	svc = NewService(st, mirror)
	st.down = true

	res, err := svc.ListOrders(ctx, 7, store.ListQuery{})
	require.NoError(t, err)
	assert.True(t, res.Stale)
	require.Len(t, res.Records, 1)
	assert.Equal(t, o.RecordNo, res.Records[0].RecordNo)
}

func TestWritesDoNotFallBack(t *testing.T) {
	st := newFakeStore()
	mirror := &fakeMirror{records: map[uint64][]models.Record{}}
	svc := NewService(st, mirror)
	st.down = true

	_, err := svc.CreateOrder(context.Background(), 7, orderInput())
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}

func TestBothStoresDownSurfacesPrimaryError(t *testing.T) {
	st := newFakeStore()
	mirror := &fakeMirror{err: store.ErrStoreUnavailable}
	svc := NewService(st, mirror)
	st.down = true

	_, err := svc.ListOrders(context.Background(), 7, store.ListQuery{})
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}

func TestListOrdersNormalPath(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, 7, orderInput())
	require.NoError(t, err)
	_, err = svc.CreateOrder(ctx, 9, orderInput())
	require.NoError(t, err)

	res, err := svc.ListOrders(ctx, 7, store.ListQuery{})
	require.NoError(t, err)
	assert.False(t, res.Stale)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, uint64(7), res.Records[0].CustomerID)
}
