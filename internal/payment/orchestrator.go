// Package payment orchestrates checkout sessions against the gateway
// and reconciles their outcomes back onto the stored records.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pharmacart-backend/internal/gateway"
	"pharmacart-backend/internal/lifecycle"
	"pharmacart-backend/internal/models"
	"pharmacart-backend/internal/money"
	"pharmacart-backend/internal/store"
)

var (
	// ErrNotPayable: the record is not awaiting an online payment
	// (wrong method, already paid/failed-and-not-reopened, cancelled).
	ErrNotPayable = errors.New("record is not awaiting online payment")
	// ErrAmountMismatch: the gateway reported a paid amount different
	// from what the record says is due. The record is never marked paid.
	ErrAmountMismatch = errors.New("paid amount does not match amount due")
)

// RecordStore is the slice of the persistence layer the payment
// subsystem needs.
type RecordStore interface {
	GetRecord(ctx context.Context, kind models.RecordKind, id uint64) (*models.Record, error)
	FindByPendingRef(ctx context.Context, ref string) (*models.Record, error)
	SavePendingRef(ctx context.Context, kind models.RecordKind, id uint64, ref string) (bool, error)
	SetSessionDetails(ctx context.Context, kind models.RecordKind, id uint64, ref, token, payURL string) error
	ClearPendingRef(ctx context.Context, kind models.RecordKind, id uint64, ref string) error
	UpdateStatus(ctx context.Context, kind models.RecordKind, id uint64, expect store.Expect, mut store.Mutation) (bool, error)
}

// CheckoutSession is what the customer needs to pay: our correlation
// ref plus the gateway's token and redirect URL.
type CheckoutSession struct {
	Ref         string `json:"session_ref"`
	Token       string `json:"snap_token"`
	RedirectURL string `json:"redirect_url"`
}

type Orchestrator struct {
	store   RecordStore
	gw      gateway.Gateway
	baseURL string

	// retry policy for network-class gateway failures only
	attempts int
	backoff  time.Duration
}

func NewOrchestrator(st RecordStore, gw gateway.Gateway, baseURL string) *Orchestrator {
	return &Orchestrator{
		store:    st,
		gw:       gw,
		baseURL:  baseURL,
		attempts: 3,
		backoff:  500 * time.Millisecond,
	}
}

// SetRetryPolicy overrides the bounded-retry defaults for gateway
// calls. Only network-class failures are ever retried.
func (o *Orchestrator) SetRetryPolicy(attempts int, backoff time.Duration) {
	if attempts > 0 {
		o.attempts = attempts
	}
	o.backoff = backoff
}

// BeginPayment opens (or re-serves) a checkout session for a record.
// If a session is already in flight the stored one is returned, so a
// double-click or a retried request never opens a second gateway
// session for the same pending record.
func (o *Orchestrator) BeginPayment(ctx context.Context, ownerID uint64, kind models.RecordKind, id uint64, customer gateway.Customer) (*CheckoutSession, error) {
	rec, err := o.store.GetRecord(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if rec.CustomerID != ownerID {
		return nil, store.ErrNotFound
	}
	// A FAILED payment may be retried with a fresh session; anything
	// else (paid, refunded, COD) is not payable online.
	payable := rec.PaymentStatus == models.PaymentPending || rec.PaymentStatus == models.PaymentFailed
	if rec.PaymentMethod != models.PaymentOnline || !payable {
		return nil, fmt.Errorf("%w: %s is %s/%s", ErrNotPayable, rec.RecordNo, rec.PaymentMethod, rec.PaymentStatus)
	}
	if lifecycle.IsTerminal(rec.Kind, rec.Status) {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPayable, rec.RecordNo, rec.Status)
	}
	if rec.PendingGatewayRef != "" {
		return &CheckoutSession{Ref: rec.PendingGatewayRef, Token: rec.SnapToken, RedirectURL: rec.PaymentURL}, nil
	}

	// The ref goes into the store before the gateway sees it, so a
	// callback that races the response below still finds its record.
	ref := uuid.NewString()
	installed, err := o.store.SavePendingRef(ctx, kind, id, ref)
	if err != nil {
		return nil, err
	}
	if !installed {
		// A concurrent BeginPayment won; serve its session instead.
		rec, err = o.store.GetRecord(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if rec.PendingGatewayRef == "" {
			return nil, ErrNotPayable
		}
		return &CheckoutSession{Ref: rec.PendingGatewayRef, Token: rec.SnapToken, RedirectURL: rec.PaymentURL}, nil
	}

	sess, err := o.createSessionWithRetry(ctx, gateway.SessionRequest{
		Ref:       ref,
		Amount:    rec.AmountDue,
		Items:     gatewayItems(rec),
		Customer:  customer,
		FinishURL: o.baseURL + "/api/v1/payments/return",
	})
	if err != nil {
		// Abandon the ref so a later attempt can mint a fresh session;
		// a cleared ref is never reused.
		if clearErr := o.store.ClearPendingRef(ctx, kind, id, ref); clearErr != nil {
			log.Error().Err(clearErr).Str("ref", ref).Msg("payment: failed to clear abandoned session ref")
		}
		return nil, err
	}

	if err := o.store.SetSessionDetails(ctx, kind, id, ref, sess.Token, sess.RedirectURL); err != nil {
		// The session exists and the ref is installed; losing the token
		// only costs a re-open on the next BeginPayment after the
		// gateway session expires. Log and serve what we have.
		log.Error().Err(err).Str("ref", ref).Msg("payment: failed to persist session details")
	}

	log.Info().Str("ref", ref).Str("record_no", rec.RecordNo).Int64("amount", rec.AmountDue).
		Msg("payment: checkout session opened")
	return &CheckoutSession{Ref: ref, Token: sess.Token, RedirectURL: sess.RedirectURL}, nil
}

// RetrieveOutcome queries the gateway for a session's verdict, with the
// same bounded retry as session creation. Read-only.
func (o *Orchestrator) RetrieveOutcome(ctx context.Context, ref string) (*gateway.Outcome, error) {
	var lastErr error
	for attempt := 0; attempt < o.attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, o.backoff<<(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
			}
		}
		out, err := o.gw.CheckSession(ctx, ref)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !errors.Is(err, gateway.ErrUnavailable) {
			break
		}
		log.Warn().Err(err).Str("ref", ref).Int("attempt", attempt+1).Msg("payment: status check failed, retrying")
	}
	return nil, lastErr
}

func (o *Orchestrator) createSessionWithRetry(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	var lastErr error
	for attempt := 0; attempt < o.attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, o.backoff<<(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
			}
		}
		sess, err := o.gw.CreateSession(ctx, req)
		if err == nil {
			return sess, nil
		}
		lastErr = err
		if !errors.Is(err, gateway.ErrUnavailable) {
			// Declined / rejected: retrying would not change the answer.
			break
		}
		log.Warn().Err(err).Str("ref", req.Ref).Int("attempt", attempt+1).Msg("payment: session open failed, retrying")
	}
	return nil, lastErr
}

// gatewayItems rebuilds the gateway line list from the persisted record:
// the purchasable lines plus a shipping row when a fee applies.
func gatewayItems(rec *models.Record) []money.GatewayItem {
	items := make([]money.GatewayItem, 0, len(rec.Items)+1)
	for i, it := range rec.Items {
		items = append(items, money.GatewayItem{
			ID:       fmt.Sprintf("ITEM-%d", i+1),
			Name:     it.Name,
			Price:    it.UnitPrice,
			Quantity: it.Quantity,
		})
	}
	if rec.ShippingFee > 0 {
		items = append(items, money.GatewayItem{ID: "SHIPPING", Name: "Shipping Fee", Price: rec.ShippingFee, Quantity: 1})
	}
	return items
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
