package gateway

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/rs/zerolog/log"
)

// MidtransGateway implements Gateway on top of the midtrans Snap and
// Core APIs. Amounts are carried in minor units end to end: GrossAmt and
// the item prices hold the minor-unit integers, so the amount the
// provider echoes back compares directly against AmountDue.
type MidtransGateway struct {
	snap      snap.Client
	core      coreapi.Client
	serverKey string
}

func NewMidtrans(serverKey string, production bool) *MidtransGateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	g := &MidtransGateway{serverKey: serverKey}
	g.snap.New(serverKey, env)
	g.core.New(serverKey, env)
	return g
}

func (g *MidtransGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	items := make([]midtrans.ItemDetails, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, midtrans.ItemDetails{
			ID:    it.ID,
			Name:  it.Name,
			Price: it.Price,
			Qty:   int32(it.Quantity),
		})
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.Ref,
			GrossAmt: req.Amount,
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Items: &items,
	}
	if req.FinishURL != "" {
		snapReq.Callbacks = &snap.Callbacks{Finish: req.FinishURL}
	}

	resp, snapErr := g.snap.CreateTransaction(snapReq)
	if snapErr != nil {
		return nil, wrapMidtransError(snapErr)
	}
	return &Session{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (g *MidtransGateway) CheckSession(ctx context.Context, ref string) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, coreErr := g.core.CheckTransaction(ref)
	if coreErr != nil {
		return nil, wrapMidtransError(coreErr)
	}
	return MapOutcome(resp.TransactionStatus, resp.FraudStatus, resp.GrossAmount, resp.TransactionID), nil
}

// wrapMidtransError sorts provider errors into retryable (unreachable /
// 5xx) and terminal (4xx) classes.
func wrapMidtransError(e *midtrans.Error) error {
	if e.StatusCode == 0 || e.StatusCode >= 500 {
		return fmt.Errorf("%w: %s", ErrUnavailable, e.GetMessage())
	}
	return fmt.Errorf("%w: %s", ErrRejected, e.GetMessage())
}

// MapOutcome translates a midtrans transaction status pair into the
// neutral Outcome. "capture" is only a success once fraud screening
// accepts it; "settlement" is the bank-transfer/e-wallet success.
func MapOutcome(transactionStatus, fraudStatus, grossAmount, transactionID string) *Outcome {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "accept" {
			return &Outcome{
				Kind:          OutcomeSucceeded,
				AmountPaid:    parseGrossAmount(grossAmount),
				TransactionID: transactionID,
			}
		}
		// fraud challenge: still under review
		return &Outcome{Kind: OutcomePending}
	case "settlement":
		return &Outcome{
			Kind:          OutcomeSucceeded,
			AmountPaid:    parseGrossAmount(grossAmount),
			TransactionID: transactionID,
		}
	case "deny", "cancel", "expire", "failure":
		return &Outcome{Kind: OutcomeFailed, Reason: transactionStatus}
	default: // "pending", "authorize", anything new
		return &Outcome{Kind: OutcomePending}
	}
}

// parseGrossAmount reads the provider's decimal string ("10500.00").
// Since sessions are opened with minor units in GrossAmt, the parsed
// value already is the minor-unit amount.
func parseGrossAmount(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Warn().Str("gross_amount", s).Msg("gateway: unparseable gross amount")
		return 0
	}
	return int64(math.Round(f))
}

// Notification is the payload midtrans POSTs to the webhook endpoint.
type Notification struct {
	TransactionStatus string `json:"transaction_status"`
	OrderID           string `json:"order_id"`
	FraudStatus       string `json:"fraud_status"`
	GrossAmount       string `json:"gross_amount"`
	StatusCode        string `json:"status_code"`
	TransactionID     string `json:"transaction_id"`
	SignatureKey      string `json:"signature_key"`
}

// VerifySignature checks the notification's signature_key, which is
// sha512(order_id + status_code + gross_amount + server key). An
// unsigned or mis-signed event must never mutate anything.
func VerifySignature(n Notification, serverKey string) error {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + serverKey))
	if hex.EncodeToString(sum[:]) != n.SignatureKey {
		return fmt.Errorf("%w: signature mismatch for order %s", ErrUntrustedEvent, n.OrderID)
	}
	return nil
}

// Outcome converts a verified notification into the neutral Outcome.
func (n Notification) Outcome() *Outcome {
	return MapOutcome(n.TransactionStatus, n.FraudStatus, n.GrossAmount, n.TransactionID)
}
