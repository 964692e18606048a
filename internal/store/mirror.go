package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mediocregopher/radix/v3"

	"pharmacart-backend/internal/models"
)

const mirrorKeyPrefix = "pharmacart:records:"

// Mirror is a best-effort write-through copy of purchasable records in
// Redis, keyed per owner. It exists only so listings keep working when
// MySQL is down; it is never the source of truth and is never consulted
// for a payment decision.
type Mirror struct {
	client radix.Client
}

func NewMirror(client radix.Client) *Mirror {
	return &Mirror{client: client}
}

func ownerKey(ownerID uint64) string {
	return fmt.Sprintf("%s%d", mirrorKeyPrefix, ownerID)
}

func recordField(kind models.RecordKind, id uint64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

// Write stores one record snapshot under its owner's hash.
func (m *Mirror) Write(rec *models.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("mirror: marshal record %s: %w", rec.RecordNo, err)
	}
	err = m.client.Do(radix.Cmd(nil, "HSET",
		ownerKey(rec.CustomerID), recordField(rec.Kind, rec.ID), string(payload)))
	if err != nil {
		return fmt.Errorf("mirror: hset %s: %w", rec.RecordNo, err)
	}
	return nil
}

// ReadOwner returns the mirrored records of one kind for an owner,
// newest first. Entries that fail to decode are skipped: stale or
// partial data is acceptable here, failing the whole read is not.
func (m *Mirror) ReadOwner(ownerID uint64, kind models.RecordKind) ([]models.Record, error) {
	var raw map[string]string
	if err := m.client.Do(radix.Cmd(&raw, "HGETALL", ownerKey(ownerID))); err != nil {
		return nil, fmt.Errorf("mirror: hgetall owner %d: %w", ownerID, err)
	}

	records := make([]models.Record, 0, len(raw))
	for _, payload := range raw {
		var rec models.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			continue
		}
		if rec.Kind != kind {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
