// Package gateway wraps the external payment provider. The rest of the
// system only sees sessions and outcomes; everything midtrans-specific
// stays in here.
package gateway

import (
	"context"
	"errors"

	"pharmacart-backend/internal/money"
)

var (
	// ErrUnavailable marks network-class failures talking to the
	// provider. Callers retry these with backoff; nothing else is
	// retried.
	ErrUnavailable = errors.New("payment gateway unreachable")
	// ErrUntrustedEvent marks a webhook whose signature did not verify.
	ErrUntrustedEvent = errors.New("untrusted gateway event")
	// ErrRejected marks a request the provider refused outright
	// (malformed, duplicate order id, etc). Never retried.
	ErrRejected = errors.New("payment gateway rejected request")
)

type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "SUCCEEDED"
	OutcomeFailed    OutcomeKind = "FAILED"
	OutcomePending   OutcomeKind = "PENDING"
)

// Outcome is the provider's verdict on one checkout session.
type Outcome struct {
	Kind OutcomeKind
	// AmountPaid in minor units; only meaningful for OutcomeSucceeded.
	AmountPaid int64
	// TransactionID is the provider's own id for the settled payment.
	TransactionID string
	// Reason carries the provider's failure code for OutcomeFailed.
	Reason string
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

// SessionRequest describes one checkout session to open. Ref is our
// correlation id and doubles as the provider-side order id, so a later
// callback carrying only that id can be matched back to the record.
type SessionRequest struct {
	Ref      string
	Amount   int64 // minor units, must equal the sum of item lines
	Items    []money.GatewayItem
	Customer Customer
	// FinishURL is where the provider redirects the browser afterwards.
	FinishURL string
}

type Session struct {
	Token       string
	RedirectURL string
}

type Gateway interface {
	// CreateSession opens a checkout session. Not idempotent on the
	// provider side; the orchestrator guards against duplicates.
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	// CheckSession is a read-only status query by session ref. It never
	// mutates provider state.
	CheckSession(ctx context.Context, ref string) (*Outcome, error)
}
