package gateway

import (
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapOutcome(t *testing.T) {
	tests := []struct {
		name        string
		status      string
		fraud       string
		gross       string
		txnID       string
		wantKind    OutcomeKind
		wantAmount  int64
		wantReason  string
	}{
		{"settlement", "settlement", "", "10500.00", "txn-1", OutcomeSucceeded, 10500, ""},
		{"capture_accepted", "capture", "accept", "6000.00", "txn-2", OutcomeSucceeded, 6000, ""},
		{"capture_challenged", "capture", "challenge", "6000.00", "txn-2", OutcomePending, 0, ""},
		{"deny", "deny", "", "", "", OutcomeFailed, 0, "deny"},
		{"expire", "expire", "", "", "", OutcomeFailed, 0, "expire"},
		{"cancel", "cancel", "", "", "", OutcomeFailed, 0, "cancel"},
		{"pending", "pending", "", "", "", OutcomePending, 0, ""},
		{"unknown_status", "refund_window", "", "", "", OutcomePending, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := MapOutcome(tt.status, tt.fraud, tt.gross, tt.txnID)
			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantAmount, out.AmountPaid)
			assert.Equal(t, tt.wantReason, out.Reason)
		})
	}
}

func TestVerifySignature(t *testing.T) {
	const serverKey = "SB-Mid-server-test"

	n := Notification{
		OrderID:     "ref-123",
		StatusCode:  "200",
		GrossAmount: "10500.00",
	}
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + serverKey))
	n.SignatureKey = hex.EncodeToString(sum[:])

	assert.NoError(t, VerifySignature(n, serverKey))

	tampered := n
	tampered.GrossAmount = "1.00"
	assert.ErrorIs(t, VerifySignature(tampered, serverKey), ErrUntrustedEvent)

	unsigned := n
	unsigned.SignatureKey = ""
	assert.ErrorIs(t, VerifySignature(unsigned, serverKey), ErrUntrustedEvent)
}
