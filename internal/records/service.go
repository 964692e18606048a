// Package records implements the customer- and admin-facing operations
// on orders and appointments: creation, listing with pagination,
// cancel/reschedule, and admin fulfillment updates. All status changes
// go through the lifecycle table and the store's conditional update.
package records

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"pharmacart-backend/internal/lifecycle"
	"pharmacart-backend/internal/models"
	"pharmacart-backend/internal/money"
	"pharmacart-backend/internal/store"
)

var ErrInvalidInput = errors.New("invalid input")

// Store is the slice of the persistence layer this service uses.
// ownerID 0 means "any owner" and is reserved for admin listings.
type Store interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, ownerID, id uint64) (*models.Order, error)
	ListOrders(ctx context.Context, ownerID uint64, q store.ListQuery) ([]models.Order, store.Pagination, error)

	CreateAppointment(ctx context.Context, a *models.Appointment) error
	GetAppointment(ctx context.Context, ownerID, id uint64) (*models.Appointment, error)
	ListAppointments(ctx context.Context, ownerID uint64, q store.ListQuery) ([]models.Appointment, store.Pagination, error)

	GetRecord(ctx context.Context, kind models.RecordKind, id uint64) (*models.Record, error)
	FindBySessionRef(ctx context.Context, ref string) (*models.Record, error)
	UpdateStatus(ctx context.Context, kind models.RecordKind, id uint64, expect store.Expect, mut store.Mutation) (bool, error)
}

// MirrorReader is the read side of the fallback cache.
type MirrorReader interface {
	ReadOwner(ownerID uint64, kind models.RecordKind) ([]models.Record, error)
}

type Service struct {
	store  Store
	mirror MirrorReader // nil disables the fallback path
}

func NewService(st Store, mirror MirrorReader) *Service {
	return &Service{store: st, mirror: mirror}
}

// recordSeq feeds the display numbers; combined with the timestamp it
// keeps them unique without a round-trip.
var recordSeq uint64

func nextRecordNo(prefix string) string {
	n := atomic.AddUint64(&recordSeq, 1)
	return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().Unix(), n%10000)
}

type CreateOrderInput struct {
	Items           []money.RawItem      `json:"items" binding:"required"`
	PaymentMethod   models.PaymentMethod `json:"payment_method" binding:"required"`
	ShippingFee     float64              `json:"shipping_fee"`
	ShippingName    string               `json:"shipping_name" binding:"required"`
	ShippingPhone   string               `json:"shipping_phone" binding:"required"`
	ShippingAddress string               `json:"shipping_address" binding:"required"`
}

func (s *Service) CreateOrder(ctx context.Context, ownerID uint64, in CreateOrderInput) (*models.Order, error) {
	if err := validMethod(in.PaymentMethod); err != nil {
		return nil, err
	}
	if in.ShippingFee < 0 {
		return nil, fmt.Errorf("%w: shipping fee cannot be negative", ErrInvalidInput)
	}
	cart, err := money.Normalize(in.Items, in.ShippingFee)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		RecordNo:        nextRecordNo("ORD"),
		CustomerID:      ownerID,
		AmountDue:       cart.Total,
		ShippingFee:     int64(math.Round(in.ShippingFee * 100)),
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		Status:          lifecycle.InitialStatus(models.KindOrder),
		ShippingName:    in.ShippingName,
		ShippingPhone:   in.ShippingPhone,
		ShippingAddress: in.ShippingAddress,
	}
	for _, it := range cart.Items {
		order.Items = append(order.Items, models.OrderItem{
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	log.Info().Str("record_no", order.RecordNo).Uint64("customer_id", ownerID).
		Int64("amount_due", order.AmountDue).Msg("records: order created")
	return order, nil
}

type CreateAppointmentInput struct {
	DoctorName  string    `json:"doctor_name" binding:"required"`
	Specialty   string    `json:"specialty"`
	PatientName string    `json:"patient_name" binding:"required"`
	Notes       string    `json:"notes"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	// Fee accepts the same loose price shapes as order items.
	Fee           interface{}          `json:"consultation_fee" binding:"required"`
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
}

func (s *Service) CreateAppointment(ctx context.Context, ownerID uint64, in CreateAppointmentInput) (*models.Appointment, error) {
	if err := validMethod(in.PaymentMethod); err != nil {
		return nil, err
	}
	if !in.ScheduledAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: scheduled date must be in the future", ErrInvalidInput)
	}
	cart, err := money.Normalize([]money.RawItem{
		{Name: "Consultation with " + in.DoctorName, Price: in.Fee, Quantity: 1},
	}, 0)
	if err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		RecordNo:      nextRecordNo("APT"),
		CustomerID:    ownerID,
		DoctorName:    in.DoctorName,
		Specialty:     in.Specialty,
		PatientName:   in.PatientName,
		Notes:         in.Notes,
		ScheduledAt:   in.ScheduledAt,
		AmountDue:     cart.Total,
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: models.PaymentPending,
		Status:        lifecycle.InitialStatus(models.KindAppointment),
	}
	if err := s.store.CreateAppointment(ctx, appt); err != nil {
		return nil, err
	}
	log.Info().Str("record_no", appt.RecordNo).Uint64("customer_id", ownerID).
		Time("scheduled_at", appt.ScheduledAt).Msg("records: appointment booked")
	return appt, nil
}

// ListResult is a kind-neutral page of records. Stale is set when the
// primary store was unreachable and the page came from the cache
// mirror; such data is display-only and possibly out of date.
type ListResult struct {
	Records    []models.Record  `json:"records"`
	Pagination store.Pagination `json:"pagination"`
	Stale      bool             `json:"stale,omitempty"`
}

func (s *Service) ListOrders(ctx context.Context, ownerID uint64, q store.ListQuery) (*ListResult, error) {
	orders, page, err := s.store.ListOrders(ctx, ownerID, q)
	if err != nil {
		return s.listFallback(ownerID, models.KindOrder, q, err)
	}
	res := &ListResult{Records: make([]models.Record, 0, len(orders)), Pagination: page}
	for i := range orders {
		res.Records = append(res.Records, *orders[i].Record())
	}
	return res, nil
}

func (s *Service) ListAppointments(ctx context.Context, ownerID uint64, q store.ListQuery) (*ListResult, error) {
	appts, page, err := s.store.ListAppointments(ctx, ownerID, q)
	if err != nil {
		return s.listFallback(ownerID, models.KindAppointment, q, err)
	}
	res := &ListResult{Records: make([]models.Record, 0, len(appts)), Pagination: page}
	for i := range appts {
		res.Records = append(res.Records, *appts[i].Record())
	}
	return res, nil
}

// listFallback serves a listing from the mirror when the primary store
// is down. Writes never take this path; only reads degrade.
func (s *Service) listFallback(ownerID uint64, kind models.RecordKind, q store.ListQuery, cause error) (*ListResult, error) {
	if s.mirror == nil || ownerID == 0 || !errors.Is(cause, store.ErrStoreUnavailable) {
		return nil, cause
	}
	log.Warn().Err(cause).Uint64("customer_id", ownerID).Str("kind", string(kind)).
		Msg("records: primary store down, serving cached listing")

	cached, err := s.mirror.ReadOwner(ownerID, kind)
	if err != nil {
		// Both stores down; surface the primary failure.
		return nil, cause
	}
	if q.Status != "" {
		filtered := cached[:0]
		for _, rec := range cached {
			if rec.Status == q.Status {
				filtered = append(filtered, rec)
			}
		}
		cached = filtered
	}
	return &ListResult{
		Records: cached,
		Pagination: store.Pagination{
			CurrentPage: 1,
			TotalPages:  1,
			TotalCount:  int64(len(cached)),
		},
		Stale: true,
	}, nil
}

func (s *Service) GetOrder(ctx context.Context, ownerID, id uint64) (*models.Order, error) {
	return s.store.GetOrder(ctx, ownerID, id)
}

func (s *Service) GetAppointment(ctx context.Context, ownerID, id uint64) (*models.Appointment, error) {
	return s.store.GetAppointment(ctx, ownerID, id)
}

func (s *Service) FindBySessionRef(ctx context.Context, ref string) (*models.Record, error) {
	return s.store.FindBySessionRef(ctx, ref)
}

// CancelOrder is the owner-initiated cancel. Once the order has shipped
// (or finished) the transition table rejects it with a message naming
// the blocking status.
func (s *Service) CancelOrder(ctx context.Context, ownerID, id uint64) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyTransition(ctx, models.KindOrder, lifecycle.ActorOwner, o.ID, o.Status,
		store.Mutation{Status: models.StatusCancelled}, models.StatusCancelled); err != nil {
		return nil, err
	}
	return s.store.GetOrder(ctx, ownerID, id)
}

func (s *Service) CancelAppointment(ctx context.Context, ownerID, id uint64) (*models.Appointment, error) {
	a, err := s.store.GetAppointment(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyTransition(ctx, models.KindAppointment, lifecycle.ActorOwner, a.ID, a.Status,
		store.Mutation{Status: models.StatusCancelled}, models.StatusCancelled); err != nil {
		return nil, err
	}
	return s.store.GetAppointment(ctx, ownerID, id)
}

// RescheduleAppointment moves the consultation date. It is the one
// transition that changes more than the status column.
func (s *Service) RescheduleAppointment(ctx context.Context, ownerID, id uint64, newDate time.Time) (*models.Appointment, error) {
	if !newDate.After(time.Now()) {
		return nil, fmt.Errorf("%w: new date must be in the future", ErrInvalidInput)
	}
	a, err := s.store.GetAppointment(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyTransition(ctx, models.KindAppointment, lifecycle.ActorOwner, a.ID, a.Status,
		store.Mutation{Status: models.StatusRescheduled, ScheduledAt: &newDate}, models.StatusRescheduled); err != nil {
		return nil, err
	}
	return s.store.GetAppointment(ctx, ownerID, id)
}

// AdminUpdateStatus moves a record forward through fulfillment. When
// the move lands on DELIVERED/COMPLETED the payment settles too (cash
// on delivery collected at the door).
func (s *Service) AdminUpdateStatus(ctx context.Context, kind models.RecordKind, id uint64, newStatus models.Status, trackingInfo string) (*models.Record, error) {
	if !knownStatus(kind, newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q for %s", ErrInvalidInput, newStatus, kind)
	}
	rec, err := s.store.GetRecord(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	mut := store.Mutation{Status: newStatus, TrackingInfo: trackingInfo}
	if lifecycle.ForcesPaid(kind, newStatus) {
		mut.PaymentStatus = models.PaymentPaid
	}
	if err := s.applyTransition(ctx, kind, lifecycle.ActorAdmin, id, rec.Status, mut, newStatus); err != nil {
		return nil, err
	}
	return s.store.GetRecord(ctx, kind, id)
}

// applyTransition validates a move against the lifecycle table and
// commits it with a conditional update pinned to the status we read.
// Losing the CAS means someone else moved the record first; that is an
// illegal transition for us, not a silent retry.
func (s *Service) applyTransition(ctx context.Context, kind models.RecordKind, actor lifecycle.Actor, id uint64, from models.Status, mut store.Mutation, to models.Status) error {
	if err := lifecycle.Transition(kind, actor, from, to); err != nil {
		return err
	}
	applied, err := s.store.UpdateStatus(ctx, kind, id, store.Expect{Status: from}, mut)
	if err != nil {
		return err
	}
	if !applied {
		log.Warn().Str("kind", string(kind)).Uint64("id", id).
			Str("from", string(from)).Str("to", string(to)).
			Msg("records: conditional update lost, record changed concurrently")
		return fmt.Errorf("%w: record changed concurrently", lifecycle.ErrIllegalTransition)
	}
	return nil
}

func validMethod(m models.PaymentMethod) error {
	if m != models.PaymentCOD && m != models.PaymentOnline {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, m)
	}
	return nil
}

func knownStatus(kind models.RecordKind, s models.Status) bool {
	for _, known := range lifecycle.AllStatuses(kind) {
		if known == s {
			return true
		}
	}
	return false
}
