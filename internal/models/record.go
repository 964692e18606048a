package models

import "time"

type RecordKind string

const (
	KindOrder       RecordKind = "ORDER"
	KindAppointment RecordKind = "APPOINTMENT"
)

type PaymentMethod string

const (
	// PaymentCOD is settled in cash when the courier hands over the
	// order (or at the clinic counter for appointments).
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "ONLINE"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Status is the fulfillment-side state of an order or appointment,
// separate from PaymentStatus. Both kinds share the type; the lifecycle
// package knows which values belong to which kind.
type Status string

const (
	// Orders
	StatusPlaced     Status = "PLACED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusReturned   Status = "RETURNED"

	// Appointments
	StatusScheduled   Status = "SCHEDULED"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusCompleted   Status = "COMPLETED"
	StatusRescheduled Status = "RESCHEDULED"

	// Shared
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

type Order struct {
	ID         uint64 `gorm:"primaryKey" json:"id"`
	RecordNo   string `gorm:"uniqueIndex;size:50" json:"record_no"`
	CustomerID uint64 `gorm:"index;not null" json:"customer_id"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`

	// AmountDue and ShippingFee are integral minor units (paise).
	AmountDue   int64 `json:"amount_due"`
	ShippingFee int64 `json:"shipping_fee"`

	PaymentMethod PaymentMethod `gorm:"size:20" json:"payment_method"`
	PaymentStatus PaymentStatus `gorm:"size:20;index" json:"payment_status"`
	Status        Status        `gorm:"size:20;index" json:"status"`

	// PendingGatewayRef is set while a checkout session is in flight and
	// cleared on reconciliation; GatewaySessionRef keeps the last session
	// id around for redirect-return lookups after the pending ref is gone.
	PendingGatewayRef *string `gorm:"uniqueIndex;size:64" json:"pending_gateway_ref,omitempty"`
	GatewaySessionRef string  `gorm:"index;size:64" json:"-"`
	GatewayTxnID      string  `gorm:"size:100" json:"gateway_txn_id,omitempty"`
	SnapToken         string  `gorm:"size:100" json:"-"`
	PaymentURL        string  `gorm:"size:255" json:"-"`

	ShippingName    string `gorm:"size:100" json:"shipping_name"`
	ShippingPhone   string `gorm:"size:20" json:"shipping_phone"`
	ShippingAddress string `gorm:"size:255" json:"shipping_address"`
	TrackingInfo    string `gorm:"size:255" json:"tracking_info,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderItem struct {
	ID      uint64 `gorm:"primaryKey" json:"id"`
	OrderID uint64 `gorm:"index" json:"order_id"`
	Name    string `gorm:"size:150" json:"name"`
	// UnitPrice in minor units, snapshotted at purchase time.
	UnitPrice int64     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type Appointment struct {
	ID         uint64 `gorm:"primaryKey" json:"id"`
	RecordNo   string `gorm:"uniqueIndex;size:50" json:"record_no"`
	CustomerID uint64 `gorm:"index;not null" json:"customer_id"`

	DoctorName  string    `gorm:"size:100" json:"doctor_name"`
	Specialty   string    `gorm:"size:100" json:"specialty"`
	PatientName string    `gorm:"size:100" json:"patient_name"`
	Notes       string    `gorm:"size:500" json:"notes,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`

	// AmountDue is the consultation fee in minor units.
	AmountDue int64 `json:"amount_due"`

	PaymentMethod PaymentMethod `gorm:"size:20" json:"payment_method"`
	PaymentStatus PaymentStatus `gorm:"size:20;index" json:"payment_status"`
	Status        Status        `gorm:"size:20;index" json:"status"`

	PendingGatewayRef *string `gorm:"uniqueIndex;size:64" json:"pending_gateway_ref,omitempty"`
	GatewaySessionRef string  `gorm:"index;size:64" json:"-"`
	GatewayTxnID      string  `gorm:"size:100" json:"gateway_txn_id,omitempty"`
	SnapToken         string  `gorm:"size:100" json:"-"`
	PaymentURL        string  `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordItem is one purchasable line inside a Record view, independent of
// which table it came from.
type RecordItem struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// Record is a payment-neutral view over Order and Appointment rows. The
// checkout and reconciliation paths work purely on this view so they do
// not care which kind of record the money is for. It is also what the
// fallback cache mirrors.
type Record struct {
	Kind       RecordKind `json:"kind"`
	ID         uint64     `json:"id"`
	RecordNo   string     `json:"record_no"`
	CustomerID uint64     `json:"customer_id"`

	Items     []RecordItem `json:"items"`
	AmountDue int64        `json:"amount_due"`
	// ShippingFee is zero for appointments.
	ShippingFee int64 `json:"shipping_fee"`

	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Status        Status        `json:"status"`

	PendingGatewayRef string `json:"pending_gateway_ref,omitempty"`
	GatewayTxnID      string `json:"gateway_txn_id,omitempty"`
	SnapToken         string `json:"-"`
	PaymentURL        string `json:"-"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (o *Order) Record() *Record {
	items := make([]RecordItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, RecordItem{Name: it.Name, UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	rec := &Record{
		Kind:          KindOrder,
		ID:            o.ID,
		RecordNo:      o.RecordNo,
		CustomerID:    o.CustomerID,
		Items:         items,
		AmountDue:     o.AmountDue,
		ShippingFee:   o.ShippingFee,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Status:        o.Status,
		GatewayTxnID:  o.GatewayTxnID,
		SnapToken:     o.SnapToken,
		PaymentURL:    o.PaymentURL,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.PendingGatewayRef != nil {
		rec.PendingGatewayRef = *o.PendingGatewayRef
	}
	return rec
}

func (a *Appointment) Record() *Record {
	scheduled := a.ScheduledAt
	rec := &Record{
		Kind:          KindAppointment,
		ID:            a.ID,
		RecordNo:      a.RecordNo,
		CustomerID:    a.CustomerID,
		Items:         []RecordItem{{Name: "Consultation with " + a.DoctorName, UnitPrice: a.AmountDue, Quantity: 1}},
		AmountDue:     a.AmountDue,
		PaymentMethod: a.PaymentMethod,
		PaymentStatus: a.PaymentStatus,
		Status:        a.Status,
		GatewayTxnID:  a.GatewayTxnID,
		SnapToken:     a.SnapToken,
		PaymentURL:    a.PaymentURL,
		ScheduledAt:   &scheduled,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	if a.PendingGatewayRef != nil {
		rec.PendingGatewayRef = *a.PendingGatewayRef
	}
	return rec
}
