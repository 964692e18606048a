package payment

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"pharmacart-backend/internal/gateway"
	"pharmacart-backend/internal/lifecycle"
	"pharmacart-backend/internal/models"
	"pharmacart-backend/internal/store"
)

// Notifier pushes a best-effort message to the record's owner after a
// payment settles or fails. Implementations must not block reconciling.
type Notifier interface {
	PaymentSettled(rec *models.Record)
	PaymentFailed(rec *models.Record, reason string)
}

// Reconciler applies verified gateway outcomes to records. It is the
// only component allowed to flip PaymentStatus from a gateway result,
// and it is safe to call any number of times with the same outcome: the
// first application wins, the rest are no-ops.
type Reconciler struct {
	store    RecordStore
	notifier Notifier // optional
}

func NewReconciler(st RecordStore, notifier Notifier) *Reconciler {
	return &Reconciler{store: st, notifier: notifier}
}

// Reconcile maps one gateway outcome onto the record holding ref as its
// pending session. An unknown ref is a successful no-op (the event was
// already applied, or belongs to nothing) and returns a nil record —
// webhook senders retry until acknowledged, so duplicates are routine.
func (r *Reconciler) Reconcile(ctx context.Context, ref string, outcome *gateway.Outcome) (*models.Record, error) {
	rec, err := r.store.FindByPendingRef(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info().Str("ref", ref).Msg("reconcile: no pending record for ref, treating as already applied")
			return nil, nil
		}
		return nil, err
	}

	switch outcome.Kind {
	case gateway.OutcomeSucceeded:
		return r.applySuccess(ctx, rec, ref, outcome)
	case gateway.OutcomeFailed:
		return r.applyFailure(ctx, rec, ref, outcome)
	default:
		// Still pending at the gateway: nothing to apply yet.
		return rec, nil
	}
}

func (r *Reconciler) applySuccess(ctx context.Context, rec *models.Record, ref string, outcome *gateway.Outcome) (*models.Record, error) {
	if lifecycle.IsTerminal(rec.Kind, rec.Status) {
		// The record was cancelled (or otherwise finished) before the
		// outcome arrived. The charge went through at the gateway, so
		// this needs a human: flag it, mutate nothing.
		log.Error().Str("ref", ref).Str("record_no", rec.RecordNo).Str("status", string(rec.Status)).
			Msg("reconcile: payment settled for a finished record, manual review required")
		return nil, nil
	}
	if outcome.AmountPaid != rec.AmountDue {
		// Tampered or stale callback. Refuse loudly and change nothing.
		log.Error().Str("ref", ref).Str("record_no", rec.RecordNo).
			Int64("amount_paid", outcome.AmountPaid).Int64("amount_due", rec.AmountDue).
			Msg("reconcile: amount mismatch, refusing to mark paid")
		return nil, ErrAmountMismatch
	}

	mut := store.Mutation{
		PaymentStatus:   models.PaymentPaid,
		ClearPendingRef: true,
		GatewayTxnID:    outcome.TransactionID,
	}
	// The one lifecycle move the system actor may make: confirm a
	// freshly placed/scheduled record. A record an admin already moved
	// on keeps its status; only the payment side changes then.
	bumpFrom, bumpTo := lifecycle.PaymentBump(rec.Kind)
	if rec.Status == bumpFrom && lifecycle.CanTransition(rec.Kind, lifecycle.ActorSystem, bumpFrom, bumpTo) {
		mut.Status = bumpTo
	}

	applied, err := r.store.UpdateStatus(ctx, rec.Kind, rec.ID, store.Expect{
		Status:        rec.Status,
		PaymentStatus: models.PaymentPending,
		PendingRef:    ref,
	}, mut)
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent delivery (or a racing cancel) got there first.
		// The conditional update losing is exactly the idempotency we
		// want: no double side effects.
		log.Info().Str("ref", ref).Str("record_no", rec.RecordNo).Msg("reconcile: update lost the race, no-op")
		return nil, nil
	}

	updated, err := r.store.GetRecord(ctx, rec.Kind, rec.ID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("record_no", updated.RecordNo).Str("txn_id", outcome.TransactionID).
		Msg("reconcile: payment settled")
	if r.notifier != nil {
		go r.notifier.PaymentSettled(updated)
	}
	return updated, nil
}

func (r *Reconciler) applyFailure(ctx context.Context, rec *models.Record, ref string, outcome *gateway.Outcome) (*models.Record, error) {
	if lifecycle.IsTerminal(rec.Kind, rec.Status) {
		log.Info().Str("ref", ref).Str("record_no", rec.RecordNo).Msg("reconcile: failure for a finished record, no-op")
		return nil, nil
	}
	// Payment failed: the lifecycle status stays where it is, and the
	// pending ref is cleared so the customer can open a fresh session.
	applied, err := r.store.UpdateStatus(ctx, rec.Kind, rec.ID, store.Expect{
		Status:        rec.Status,
		PaymentStatus: models.PaymentPending,
		PendingRef:    ref,
	}, store.Mutation{
		PaymentStatus:   models.PaymentFailed,
		ClearPendingRef: true,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		log.Info().Str("ref", ref).Str("record_no", rec.RecordNo).Msg("reconcile: failure already applied, no-op")
		return nil, nil
	}

	updated, err := r.store.GetRecord(ctx, rec.Kind, rec.ID)
	if err != nil {
		return nil, err
	}
	log.Warn().Str("record_no", updated.RecordNo).Str("reason", outcome.Reason).
		Msg("reconcile: payment failed")
	if r.notifier != nil {
		go r.notifier.PaymentFailed(updated, outcome.Reason)
	}
	return updated, nil
}
