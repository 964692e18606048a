// Package notify pushes payment outcomes to the customer's device.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pharmacart-backend/internal/models"
	"pharmacart-backend/pkg/utils"
)

// TokenSource resolves a user's current device token.
type TokenSource interface {
	GetByID(ctx context.Context, id uint64) (*models.User, error)
}

// Push satisfies the reconciler's Notifier. Delivery is best effort;
// failures are logged and never retried.
type Push struct {
	users  TokenSource
	sender func(token, title, body string, data map[string]string) error
}

func NewPush(users TokenSource) *Push {
	return &Push{users: users, sender: utils.SendNotification}
}

func (p *Push) PaymentSettled(rec *models.Record) {
	body := fmt.Sprintf("Payment received for %s. We are preparing your order.", rec.RecordNo)
	if rec.Kind == models.KindAppointment {
		body = fmt.Sprintf("Payment received for %s. Your consultation is confirmed.", rec.RecordNo)
	}
	p.send(rec, "Payment successful", body, "payment_settled")
}

func (p *Push) PaymentFailed(rec *models.Record, reason string) {
	body := fmt.Sprintf("Payment for %s did not go through. You can retry from your orders page.", rec.RecordNo)
	if reason != "" {
		body = fmt.Sprintf("Payment for %s did not go through (%s). You can retry from your orders page.", rec.RecordNo, reason)
	}
	p.send(rec, "Payment failed", body, "payment_failed")
}

func (p *Push) send(rec *models.Record, title, body, kind string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := p.users.GetByID(ctx, rec.CustomerID)
	if err != nil {
		log.Warn().Err(err).Uint64("customer_id", rec.CustomerID).Msg("notify: looking up device token")
		return
	}
	if user.FCMToken == "" {
		return
	}
	_ = p.sender(user.FCMToken, title, body, map[string]string{
		"record_no": rec.RecordNo,
		"kind":      string(rec.Kind),
		"type":      kind,
	})
}
