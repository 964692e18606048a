package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"pharmacart-backend/internal/models"
)

type gormStore struct {
	db     *gorm.DB
	mirror *Mirror // nil disables mirroring
}

// New wraps a gorm DB (and an optional mirror) into the Store interface.
// Every successful write is mirrored write-through; mirror failures are
// logged and never surfaced.
func New(db *gorm.DB, mirror *Mirror) Store {
	return &gormStore{db: db, mirror: mirror}
}

// AutoMigrate creates/updates the schema for all record tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.OrderItem{},
		&models.Appointment{},
	)
}

func (s *gormStore) mirrorRecord(rec *models.Record) {
	if s.mirror == nil || rec == nil {
		return
	}
	if err := s.mirror.Write(rec); err != nil {
		log.Warn().Err(err).Str("record_no", rec.RecordNo).Msg("store: mirror write failed")
	}
}

// classify maps gorm errors to the store taxonomy: a missing row is
// ErrNotFound, a unique-index violation is ErrDuplicate, anything else
// is infrastructure trouble. Duplicate detection relies on gorm's
// TranslateError being enabled on the connection.
func classify(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (s *gormStore) CreateOrder(ctx context.Context, o *models.Order) error {
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return classify(err)
	}
	s.mirrorRecord(o.Record())
	return nil
}

func (s *gormStore) GetOrder(ctx context.Context, ownerID, id uint64) (*models.Order, error) {
	var o models.Order
	q := s.db.WithContext(ctx).Preload("Items")
	if ownerID != 0 {
		q = q.Where("customer_id = ?", ownerID)
	}
	if err := q.First(&o, id).Error; err != nil {
		return nil, classify(err)
	}
	return &o, nil
}

func (s *gormStore) ListOrders(ctx context.Context, ownerID uint64, q ListQuery) ([]models.Order, Pagination, error) {
	q = q.normalize()

	base := s.db.WithContext(ctx).Model(&models.Order{})
	if ownerID != 0 {
		base = base.Where("customer_id = ?", ownerID)
	}
	if q.Status != "" {
		base = base.Where("status = ?", q.Status)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var orders []models.Order
	err := base.Preload("Items").
		Order("created_at desc").
		Limit(q.PageSize).
		Offset((q.Page - 1) * q.PageSize).
		Find(&orders).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return orders, paginate(q, total), nil
}

func (s *gormStore) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return classify(err)
	}
	s.mirrorRecord(a.Record())
	return nil
}

func (s *gormStore) GetAppointment(ctx context.Context, ownerID, id uint64) (*models.Appointment, error) {
	var a models.Appointment
	q := s.db.WithContext(ctx)
	if ownerID != 0 {
		q = q.Where("customer_id = ?", ownerID)
	}
	if err := q.First(&a, id).Error; err != nil {
		return nil, classify(err)
	}
	return &a, nil
}

func (s *gormStore) ListAppointments(ctx context.Context, ownerID uint64, q ListQuery) ([]models.Appointment, Pagination, error) {
	q = q.normalize()

	base := s.db.WithContext(ctx).Model(&models.Appointment{})
	if ownerID != 0 {
		base = base.Where("customer_id = ?", ownerID)
	}
	if q.Status != "" {
		base = base.Where("status = ?", q.Status)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var appts []models.Appointment
	err := base.Order("created_at desc").
		Limit(q.PageSize).
		Offset((q.Page - 1) * q.PageSize).
		Find(&appts).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return appts, paginate(q, total), nil
}

func (s *gormStore) GetRecord(ctx context.Context, kind models.RecordKind, id uint64) (*models.Record, error) {
	if kind == models.KindOrder {
		o, err := s.GetOrder(ctx, 0, id)
		if err != nil {
			return nil, err
		}
		return o.Record(), nil
	}
	a, err := s.GetAppointment(ctx, 0, id)
	if err != nil {
		return nil, err
	}
	return a.Record(), nil
}

func (s *gormStore) FindByPendingRef(ctx context.Context, ref string) (*models.Record, error) {
	return s.findByRef(ctx, "pending_gateway_ref = ?", ref)
}

func (s *gormStore) FindBySessionRef(ctx context.Context, ref string) (*models.Record, error) {
	return s.findByRef(ctx, "gateway_session_ref = ?", ref)
}

func (s *gormStore) findByRef(ctx context.Context, cond, ref string) (*models.Record, error) {
	if ref == "" {
		return nil, ErrNotFound
	}

	var o models.Order
	err := s.db.WithContext(ctx).Preload("Items").Where(cond, ref).First(&o).Error
	if err == nil {
		return o.Record(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, classify(err)
	}

	var a models.Appointment
	err = s.db.WithContext(ctx).Where(cond, ref).First(&a).Error
	if err != nil {
		return nil, classify(err)
	}
	return a.Record(), nil
}

func (s *gormStore) SavePendingRef(ctx context.Context, kind models.RecordKind, id uint64, ref string) (bool, error) {
	// FAILED is retryable: installing a fresh session re-arms the
	// payment as PENDING. The ref only lands while no other session is
	// in flight.
	res := s.tableFor(ctx, kind).
		Where("id = ? AND payment_status IN ? AND payment_method = ? AND pending_gateway_ref IS NULL",
			id, []models.PaymentStatus{models.PaymentPending, models.PaymentFailed}, models.PaymentOnline).
		Updates(map[string]interface{}{
			"pending_gateway_ref": ref,
			"gateway_session_ref": ref,
			"payment_status":      models.PaymentPending,
		})
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	s.refreshMirror(ctx, kind, id)
	return true, nil
}

func (s *gormStore) SetSessionDetails(ctx context.Context, kind models.RecordKind, id uint64, ref, token, payURL string) error {
	res := s.tableFor(ctx, kind).
		Where("id = ? AND pending_gateway_ref = ?", id, ref).
		Updates(map[string]interface{}{
			"snap_token":  token,
			"payment_url": payURL,
		})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}
	return nil
}

func (s *gormStore) ClearPendingRef(ctx context.Context, kind models.RecordKind, id uint64, ref string) error {
	res := s.tableFor(ctx, kind).
		Where("id = ? AND pending_gateway_ref = ?", id, ref).
		Updates(map[string]interface{}{
			"pending_gateway_ref": nil,
			"snap_token":          "",
			"payment_url":         "",
		})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}
	return nil
}

func (s *gormStore) UpdateStatus(ctx context.Context, kind models.RecordKind, id uint64, expect Expect, mut Mutation) (bool, error) {
	q := s.tableFor(ctx, kind).Where("id = ? AND status = ?", id, expect.Status)
	if expect.PaymentStatus != "" {
		q = q.Where("payment_status = ?", expect.PaymentStatus)
	}
	if expect.PendingRef != "" {
		q = q.Where("pending_gateway_ref = ?", expect.PendingRef)
	}

	updates := map[string]interface{}{}
	if mut.Status != "" {
		updates["status"] = mut.Status
	}
	if mut.PaymentStatus != "" {
		updates["payment_status"] = mut.PaymentStatus
	}
	if mut.ClearPendingRef {
		updates["pending_gateway_ref"] = nil
	}
	if mut.GatewayTxnID != "" {
		updates["gateway_txn_id"] = mut.GatewayTxnID
	}
	if mut.TrackingInfo != "" && kind == models.KindOrder {
		updates["tracking_info"] = mut.TrackingInfo
	}
	if mut.ScheduledAt != nil && kind == models.KindAppointment {
		updates["scheduled_at"] = *mut.ScheduledAt
	}
	if len(updates) == 0 {
		return false, nil
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the record is gone or a concurrent writer changed the
		// expected status first. The caller decides which it is.
		return false, nil
	}
	s.refreshMirror(ctx, kind, id)
	return true, nil
}

func (s *gormStore) tableFor(ctx context.Context, kind models.RecordKind) *gorm.DB {
	if kind == models.KindOrder {
		return s.db.WithContext(ctx).Model(&models.Order{})
	}
	return s.db.WithContext(ctx).Model(&models.Appointment{})
}

func (s *gormStore) refreshMirror(ctx context.Context, kind models.RecordKind, id uint64) {
	if s.mirror == nil {
		return
	}
	rec, err := s.GetRecord(ctx, kind, id)
	if err != nil {
		log.Warn().Err(err).Uint64("id", id).Str("kind", string(kind)).Msg("store: mirror refresh read failed")
		return
	}
	s.mirrorRecord(rec)
}
