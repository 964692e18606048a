// Package lifecycle is the single place that knows which status moves
// are legal for orders and appointments. Every mutation in the system
// goes through this table; no handler writes a status directly.
package lifecycle

import (
	"errors"
	"fmt"

	"pharmacart-backend/internal/models"
)

var ErrIllegalTransition = errors.New("illegal status transition")

// Actor identifies who is requesting a transition. The same edge can be
// legal for one actor and illegal for another.
type Actor string

const (
	ActorOwner  Actor = "OWNER"
	ActorAdmin  Actor = "ADMIN"
	ActorSystem Actor = "SYSTEM" // payment reconciliation
)

type edgeKey struct {
	kind  models.RecordKind
	actor Actor
	from  models.Status
}

// transitions is the full adjacency table. Terminal statuses have no
// outgoing edges for any actor, which makes them absorbing.
var transitions = map[edgeKey][]models.Status{
	// Owner: cancel while the order has not shipped.
	{models.KindOrder, ActorOwner, models.StatusPlaced}:     {models.StatusCancelled},
	{models.KindOrder, ActorOwner, models.StatusConfirmed}:  {models.StatusCancelled},
	{models.KindOrder, ActorOwner, models.StatusProcessing}: {models.StatusCancelled},

	// Admin: forward through the fulfillment sequence, never backward.
	// RETURNED covers a shipment refused or lost in transit; a delivered
	// order is settled and stays delivered.
	{models.KindOrder, ActorAdmin, models.StatusPlaced}:     {models.StatusConfirmed, models.StatusProcessing},
	{models.KindOrder, ActorAdmin, models.StatusConfirmed}:  {models.StatusProcessing, models.StatusShipped},
	{models.KindOrder, ActorAdmin, models.StatusProcessing}: {models.StatusShipped, models.StatusDelivered},
	{models.KindOrder, ActorAdmin, models.StatusShipped}:    {models.StatusDelivered, models.StatusReturned},

	// System: the one bump applied when an online payment settles.
	{models.KindOrder, ActorSystem, models.StatusPlaced}: {models.StatusConfirmed},

	// Owner: cancel or reschedule before the consultation is over.
	{models.KindAppointment, ActorOwner, models.StatusScheduled}:   {models.StatusCancelled, models.StatusRescheduled},
	{models.KindAppointment, ActorOwner, models.StatusConfirmed}:   {models.StatusCancelled, models.StatusRescheduled},
	{models.KindAppointment, ActorOwner, models.StatusInProgress}:  {models.StatusCancelled, models.StatusRescheduled},
	{models.KindAppointment, ActorOwner, models.StatusRescheduled}: {models.StatusCancelled, models.StatusRescheduled},

	{models.KindAppointment, ActorAdmin, models.StatusScheduled}:   {models.StatusConfirmed, models.StatusInProgress},
	{models.KindAppointment, ActorAdmin, models.StatusConfirmed}:   {models.StatusInProgress, models.StatusCompleted},
	{models.KindAppointment, ActorAdmin, models.StatusInProgress}:  {models.StatusCompleted},
	{models.KindAppointment, ActorAdmin, models.StatusRescheduled}: {models.StatusConfirmed},

	{models.KindAppointment, ActorSystem, models.StatusScheduled}: {models.StatusConfirmed},
}

var terminal = map[models.RecordKind]map[models.Status]bool{
	models.KindOrder: {
		models.StatusDelivered: true,
		models.StatusCancelled: true,
		models.StatusReturned:  true,
	},
	models.KindAppointment: {
		models.StatusCompleted: true,
		models.StatusCancelled: true,
	},
}

// AllStatuses enumerates the valid statuses per kind, mostly for tests
// and request validation.
func AllStatuses(kind models.RecordKind) []models.Status {
	if kind == models.KindOrder {
		return []models.Status{
			models.StatusPlaced, models.StatusConfirmed, models.StatusProcessing,
			models.StatusShipped, models.StatusDelivered, models.StatusCancelled,
			models.StatusReturned,
		}
	}
	return []models.Status{
		models.StatusScheduled, models.StatusConfirmed, models.StatusInProgress,
		models.StatusCompleted, models.StatusCancelled, models.StatusRescheduled,
	}
}

func IsTerminal(kind models.RecordKind, s models.Status) bool {
	return terminal[kind][s]
}

func CanTransition(kind models.RecordKind, actor Actor, from, to models.Status) bool {
	for _, next := range transitions[edgeKey{kind, actor, from}] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates one move. The error message names the blocking
// status so handlers can explain "cannot cancel at this stage" without
// re-deriving it.
func Transition(kind models.RecordKind, actor Actor, from, to models.Status) error {
	if IsTerminal(kind, from) {
		return fmt.Errorf("%w: %s is final", ErrIllegalTransition, from)
	}
	if !CanTransition(kind, actor, from, to) {
		return fmt.Errorf("%w: %s -> %s not allowed for %s at this stage", ErrIllegalTransition, from, to, actor)
	}
	return nil
}

// ForcesPaid reports whether reaching a status settles the payment. An
// admin marking an order delivered (or an appointment completed) is the
// cash-on-delivery settlement moment, so payment flips to PAID as part
// of the same update.
func ForcesPaid(kind models.RecordKind, to models.Status) bool {
	return (kind == models.KindOrder && to == models.StatusDelivered) ||
		(kind == models.KindAppointment && to == models.StatusCompleted)
}

// PaymentBump returns the single forward move the reconciler may apply
// when an online payment settles.
func PaymentBump(kind models.RecordKind) (from, to models.Status) {
	if kind == models.KindOrder {
		return models.StatusPlaced, models.StatusConfirmed
	}
	return models.StatusScheduled, models.StatusConfirmed
}

// InitialStatus is what a freshly created record starts in.
func InitialStatus(kind models.RecordKind) models.Status {
	if kind == models.KindOrder {
		return models.StatusPlaced
	}
	return models.StatusScheduled
}
