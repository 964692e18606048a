// Package store is the persistence layer for purchasable records. The
// primary store is MySQL via gorm; a Redis mirror keeps a best-effort
// copy per owner for read fallback when MySQL is unreachable.
package store

import (
	"context"
	"errors"
	"time"

	"pharmacart-backend/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate marks a unique-constraint violation (email, phone,
	// record number). It is a data conflict, not an outage.
	ErrDuplicate = errors.New("duplicate value for unique field")
	// ErrStoreUnavailable marks infrastructure-level failures (as opposed
	// to a row simply being absent). Query paths fall back to the mirror
	// on it; write paths surface it.
	ErrStoreUnavailable = errors.New("primary store unavailable")
)

// ListQuery is the pagination input for owner-scoped listings.
type ListQuery struct {
	Page     int
	PageSize int
	Status   models.Status // optional filter
}

func (q ListQuery) normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}
	return q
}

type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalCount  int64 `json:"total_count"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

func paginate(q ListQuery, total int64) Pagination {
	pages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	return Pagination{
		CurrentPage: q.Page,
		TotalPages:  pages,
		TotalCount:  total,
		HasNext:     q.Page < pages,
		HasPrev:     q.Page > 1 && total > 0,
	}
}

// Expect pins the statuses a conditional update requires. A mutation
// only commits if the row still matches; a concurrent writer that got
// there first leaves the late one with zero affected rows.
type Expect struct {
	Status        models.Status
	PaymentStatus models.PaymentStatus // empty = don't care
	PendingRef    string               // empty = don't care
}

// Mutation describes the changes one conditional update applies.
type Mutation struct {
	Status          models.Status        // empty = unchanged
	PaymentStatus   models.PaymentStatus // empty = unchanged
	ClearPendingRef bool
	GatewayTxnID    string
	TrackingInfo    string     // orders only
	ScheduledAt     *time.Time // appointments only (reschedule)
}

// Store is what the services and the payment subsystem program against.
// Listing with ownerID 0 returns records across all owners; that path
// is reserved for admin endpoints.
type Store interface {
	// Orders
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, ownerID, id uint64) (*models.Order, error)
	ListOrders(ctx context.Context, ownerID uint64, q ListQuery) ([]models.Order, Pagination, error)

	// Appointments
	CreateAppointment(ctx context.Context, a *models.Appointment) error
	GetAppointment(ctx context.Context, ownerID, id uint64) (*models.Appointment, error)
	ListAppointments(ctx context.Context, ownerID uint64, q ListQuery) ([]models.Appointment, Pagination, error)

	// Payment-neutral view
	GetRecord(ctx context.Context, kind models.RecordKind, id uint64) (*models.Record, error)
	FindByPendingRef(ctx context.Context, ref string) (*models.Record, error)
	FindBySessionRef(ctx context.Context, ref string) (*models.Record, error)

	// SavePendingRef installs a new checkout correlation id and re-arms
	// the payment as PENDING. It only succeeds when the method is
	// ONLINE, payment is PENDING or FAILED, and no other session is in
	// flight.
	SavePendingRef(ctx context.Context, kind models.RecordKind, id uint64, ref string) (bool, error)
	// SetSessionDetails stores the gateway token/url for the session
	// identified by ref.
	SetSessionDetails(ctx context.Context, kind models.RecordKind, id uint64, ref, token, payURL string) error
	// ClearPendingRef abandons an in-flight session (e.g. the gateway
	// call never went through).
	ClearPendingRef(ctx context.Context, kind models.RecordKind, id uint64, ref string) error

	// UpdateStatus is the compare-and-swap every lifecycle mutation goes
	// through. It reports whether the row matched and was updated.
	UpdateStatus(ctx context.Context, kind models.RecordKind, id uint64, expect Expect, mut Mutation) (bool, error)
}
