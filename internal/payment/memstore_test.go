package payment_test

import (
	"context"
	"fmt"
	"sync"

	"pharmacart-backend/internal/models"
	"pharmacart-backend/internal/store"
)

// memStore is an in-memory RecordStore with the same compare-and-swap
// semantics as the gorm implementation, so races behave the same way.
type memStore struct {
	mu   sync.Mutex
	recs map[string]*models.Record

	// optional failure injection
	findErr error
}

func newMemStore(recs ...*models.Record) *memStore {
	m := &memStore{recs: map[string]*models.Record{}}
	for _, r := range recs {
		cp := *r
		m.recs[memKey(r.Kind, r.ID)] = &cp
	}
	return m
}

func memKey(kind models.RecordKind, id uint64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

func (m *memStore) get(kind models.RecordKind, id uint64) *models.Record {
	return m.recs[memKey(kind, id)]
}

func (m *memStore) GetRecord(_ context.Context, kind models.RecordKind, id uint64) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.get(kind, id)
	if rec == nil {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) FindByPendingRef(_ context.Context, ref string) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, rec := range m.recs {
		if rec.PendingGatewayRef == ref && ref != "" {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) SavePendingRef(_ context.Context, kind models.RecordKind, id uint64, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.get(kind, id)
	if rec == nil {
		return false, store.ErrNotFound
	}
	payable := rec.PaymentStatus == models.PaymentPending || rec.PaymentStatus == models.PaymentFailed
	if rec.PaymentMethod != models.PaymentOnline || !payable || rec.PendingGatewayRef != "" {
		return false, nil
	}
	rec.PendingGatewayRef = ref
	rec.PaymentStatus = models.PaymentPending
	return true, nil
}

func (m *memStore) SetSessionDetails(_ context.Context, kind models.RecordKind, id uint64, ref, token, payURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec := m.get(kind, id); rec != nil && rec.PendingGatewayRef == ref {
		rec.SnapToken = token
		rec.PaymentURL = payURL
	}
	return nil
}

func (m *memStore) ClearPendingRef(_ context.Context, kind models.RecordKind, id uint64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec := m.get(kind, id); rec != nil && rec.PendingGatewayRef == ref {
		rec.PendingGatewayRef = ""
		rec.SnapToken = ""
		rec.PaymentURL = ""
	}
	return nil
}

func (m *memStore) UpdateStatus(_ context.Context, kind models.RecordKind, id uint64, expect store.Expect, mut store.Mutation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.get(kind, id)
	if rec == nil {
		return false, nil
	}
	if rec.Status != expect.Status {
		return false, nil
	}
	if expect.PaymentStatus != "" && rec.PaymentStatus != expect.PaymentStatus {
		return false, nil
	}
	if expect.PendingRef != "" && rec.PendingGatewayRef != expect.PendingRef {
		return false, nil
	}

	if mut.Status != "" {
		rec.Status = mut.Status
	}
	if mut.PaymentStatus != "" {
		rec.PaymentStatus = mut.PaymentStatus
	}
	if mut.ClearPendingRef {
		rec.PendingGatewayRef = ""
	}
	if mut.GatewayTxnID != "" {
		rec.GatewayTxnID = mut.GatewayTxnID
	}
	if mut.ScheduledAt != nil {
		rec.ScheduledAt = mut.ScheduledAt
	}
	return true, nil
}
