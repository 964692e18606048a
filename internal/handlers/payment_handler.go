package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pharmacart-backend/internal/gateway"
	"pharmacart-backend/internal/middleware"
	"pharmacart-backend/internal/models"
	"pharmacart-backend/internal/payment"
	"pharmacart-backend/internal/store"
	"pharmacart-backend/pkg/utils"
)

// Reconciler applies one verified gateway outcome to the matching
// record.
type Reconciler interface {
	Reconcile(ctx context.Context, ref string, outcome *gateway.Outcome) (*models.Record, error)
}

// CheckoutStarter opens (or re-serves) a checkout session for a record.
type CheckoutStarter interface {
	BeginPayment(ctx context.Context, ownerID uint64, kind models.RecordKind, id uint64, customer gateway.Customer) (*payment.CheckoutSession, error)
}

// OutcomeChecker queries the gateway for a session's current outcome.
type OutcomeChecker interface {
	RetrieveOutcome(ctx context.Context, ref string) (*gateway.Outcome, error)
}

// SessionFinder resolves a session ref back to its record.
type SessionFinder interface {
	FindBySessionRef(ctx context.Context, ref string) (*models.Record, error)
}

// CheckoutFlow bundles what opening a checkout session needs: the
// orchestrator plus the user lookup that fills in customer details.
// It is shared by the payment handler and the create endpoints that
// open a session inline for ONLINE records.
type CheckoutFlow struct {
	orch  CheckoutStarter
	users *store.UserStore
}

func NewCheckoutFlow(orch CheckoutStarter, users *store.UserStore) *CheckoutFlow {
	return &CheckoutFlow{orch: orch, users: users}
}

func (f *CheckoutFlow) begin(c *gin.Context, kind models.RecordKind, id uint64) (*payment.CheckoutSession, error) {
	ownerID := middleware.UserID(c)

	customer := gateway.Customer{}
	if user, err := f.users.GetByID(c.Request.Context(), ownerID); err == nil {
		customer = gateway.Customer{Name: user.FullName, Email: user.Email, Phone: user.Phone}
	}

	return f.orch.BeginPayment(c.Request.Context(), ownerID, kind, id, customer)
}

type PaymentHandler struct {
	checkout   *CheckoutFlow
	reconciler Reconciler
	outcomes   OutcomeChecker
	finder     SessionFinder
	serverKey  string
}

func NewPaymentHandler(checkout *CheckoutFlow, reconciler Reconciler, outcomes OutcomeChecker, finder SessionFinder, serverKey string) *PaymentHandler {
	return &PaymentHandler{checkout: checkout, reconciler: reconciler, outcomes: outcomes, finder: finder, serverKey: serverKey}
}

func (h *PaymentHandler) PayOrder(c *gin.Context) {
	h.pay(c, models.KindOrder)
}

func (h *PaymentHandler) PayAppointment(c *gin.Context) {
	h.pay(c, models.KindAppointment)
}

func (h *PaymentHandler) pay(c *gin.Context, kind models.RecordKind) {
	session, err := h.checkout.begin(c, kind, utils.StringToUint64(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Checkout session ready", session)
}

// Webhook handles the provider's server-to-server notification. An
// unknown ref is acknowledged with 200 so the provider stops retrying;
// a bad signature is rejected and nothing is touched.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var n gateway.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		bindError(c, err)
		return
	}

	if err := gateway.VerifySignature(n, h.serverKey); err != nil {
		log.Warn().Str("order_id", n.OrderID).Msg("payments: rejected unsigned notification")
		respondError(c, err)
		return
	}

	rec, err := h.reconciler.Reconcile(c.Request.Context(), n.OrderID, n.Outcome())
	if err != nil {
		respondError(c, err)
		return
	}
	if rec == nil {
		// No-op: unknown ref, duplicate delivery, or still pending.
		utils.APIResponse(c, http.StatusOK, true, "Notification acknowledged", nil)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Notification processed", gin.H{
		"record_no":      rec.RecordNo,
		"payment_status": rec.PaymentStatus,
		"status":         rec.Status,
	})
}

// Return lands the customer's browser after checkout. The session ref
// arrives as order_id on the query string, which is never trusted on
// its own: while the payment is still pending with a session in
// flight, the gateway is asked for the authoritative outcome and the
// result is reconciled right here. The webhook applies the same
// conditional update, so whichever trigger arrives first wins and the
// other is a no-op.
func (h *PaymentHandler) Return(c *gin.Context) {
	ref := c.Query("order_id")
	if ref == "" {
		utils.APIResponse(c, http.StatusBadRequest, false, "Missing order_id", nil)
		return
	}

	rec, err := h.finder.FindBySessionRef(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}

	if rec.PaymentStatus == models.PaymentPending && rec.PendingGatewayRef != "" {
		outcome, err := h.outcomes.RetrieveOutcome(c.Request.Context(), rec.PendingGatewayRef)
		if err != nil {
			// Gateway unreachable: show the stored state, the webhook
			// will settle it.
			log.Warn().Err(err).Str("ref", rec.PendingGatewayRef).
				Msg("payments: outcome check on return failed")
		} else {
			updated, err := h.reconciler.Reconcile(c.Request.Context(), rec.PendingGatewayRef, outcome)
			if err != nil {
				respondError(c, err)
				return
			}
			if updated != nil {
				rec = updated
			} else if refreshed, err := h.finder.FindBySessionRef(c.Request.Context(), ref); err == nil {
				// No-op reconcile: the webhook got there first, show
				// whatever it committed.
				rec = refreshed
			}
		}
	}

	utils.APIResponse(c, http.StatusOK, true, "Payment status fetched", gin.H{
		"record_no":      rec.RecordNo,
		"kind":           rec.Kind,
		"payment_status": rec.PaymentStatus,
		"status":         rec.Status,
	})
}
