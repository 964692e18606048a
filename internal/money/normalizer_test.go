package money_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacart-backend/internal/money"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		items       []money.RawItem
		shippingFee float64
		wantTotal   int64
		wantItems   int
		wantGateway int
		wantErr     error
	}{
		{
			name: "decorated_string_and_number",
			items: []money.RawItem{
				{Name: "Paracetamol 500mg", Price: "MRP ₹30", Quantity: float64(2)},
				{Name: "Vitamin C", Price: float64(45), Quantity: float64(1)},
			},
			wantTotal:   10500,
			wantItems:   2,
			wantGateway: 2,
		},
		{
			name: "shipping_fee_appended_to_gateway_only",
			items: []money.RawItem{
				{Name: "Cough Syrup", Price: "Rs. 120.50", Quantity: float64(1)},
			},
			shippingFee: 40,
			wantTotal:   12050 + 4000,
			wantItems:   1,
			wantGateway: 2,
		},
		{
			name: "numeric_string_quantity",
			items: []money.RawItem{
				{Name: "Bandage", Price: float64(15), Quantity: "3"},
			},
			wantTotal:   4500,
			wantItems:   1,
			wantGateway: 1,
		},
		{
			name:    "empty_cart",
			items:   nil,
			wantErr: money.ErrInvalidLineItem,
		},
		{
			name: "price_without_digits",
			items: []money.RawItem{
				{Name: "Mystery", Price: "call for price", Quantity: float64(1)},
			},
			wantErr: money.ErrInvalidLineItem,
		},
		{
			name: "zero_price",
			items: []money.RawItem{
				{Name: "Freebie", Price: float64(0), Quantity: float64(1)},
			},
			wantErr: money.ErrZeroOrNegativeAmount,
		},
		{
			name: "zero_quantity",
			items: []money.RawItem{
				{Name: "Paracetamol", Price: float64(30), Quantity: float64(0)},
			},
			wantErr: money.ErrInvalidLineItem,
		},
		{
			name: "fractional_quantity",
			items: []money.RawItem{
				{Name: "Paracetamol", Price: float64(30), Quantity: 1.5},
			},
			wantErr: money.ErrInvalidLineItem,
		},
		{
			name: "non_numeric_quantity",
			items: []money.RawItem{
				{Name: "Paracetamol", Price: float64(30), Quantity: "two"},
			},
			wantErr: money.ErrInvalidLineItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart, err := money.Normalize(tt.items, tt.shippingFee)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, cart.Total)
			assert.Len(t, cart.Items, tt.wantItems)
			assert.Len(t, cart.GatewayItems, tt.wantGateway)
		})
	}
}

func TestNormalizeShippingStaysOutOfStoredItems(t *testing.T) {
	cart, err := money.Normalize([]money.RawItem{
		{Name: "Paracetamol 500mg", Price: "MRP ₹30", Quantity: float64(2)},
	}, 25)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	require.Len(t, cart.GatewayItems, 2)
	assert.Equal(t, "SHIPPING", cart.GatewayItems[1].ID)
	assert.Equal(t, int64(2500), cart.GatewayItems[1].Price)
	assert.Equal(t, int64(6000+2500), cart.Total)
}

func TestNormalizeNoRoundingDrift(t *testing.T) {
	// 3 × 33.33 must come out as exactly 9999 minor units.
	cart, err := money.Normalize([]money.RawItem{
		{Name: "Syrup", Price: 33.33, Quantity: float64(3)},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(9999), cart.Total)
}
