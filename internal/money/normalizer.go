// Package money converts the loosely typed prices the storefront sends
// (decorated strings like "MRP ₹30", plain numbers, numeric strings) into
// integral minor-unit amounts and the line-item list the payment gateway
// expects.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

var (
	ErrInvalidLineItem       = errors.New("invalid line item")
	ErrZeroOrNegativeAmount  = errors.New("line amount must be positive")
	errUnparseablePrice      = errors.New("price has no numeric value")
	errNonPositiveQuantity   = errors.New("quantity must be a positive integer")
	errUnsupportedValueShape = errors.New("unsupported value type")
)

// priceRun matches the first contiguous run of digits, with an optional
// decimal tail, inside a decorated price string.
var priceRun = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// RawItem is one cart line as received from the client. Price and
// Quantity are deliberately untyped: historical clients send either
// strings or numbers for both.
type RawItem struct {
	Name     string      `json:"name" binding:"required"`
	Price    interface{} `json:"price" binding:"required"`
	Quantity interface{} `json:"quantity" binding:"required"`
}

// LineItem is a normalized purchasable line. UnitPrice is in minor units.
type LineItem struct {
	Name      string
	UnitPrice int64
	Quantity  int
}

// GatewayItem mirrors what the checkout session is built from. The
// shipping fee appears here as an extra row but is never part of the
// stored line items.
type GatewayItem struct {
	ID       string
	Name     string
	Price    int64
	Quantity int
}

type Cart struct {
	Items        []LineItem
	GatewayItems []GatewayItem
	// Total in minor units, including the shipping fee when present.
	Total int64
}

// Normalize validates raw cart lines and computes the minor-unit total.
// An unparseable price is rejected outright: defaulting it to zero would
// let a buggy or malicious client check out for free.
func Normalize(items []RawItem, shippingFee float64) (*Cart, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidLineItem)
	}

	cart := &Cart{
		Items:        make([]LineItem, 0, len(items)),
		GatewayItems: make([]GatewayItem, 0, len(items)+1),
	}

	for i, raw := range items {
		unit, err := priceMinorUnits(raw.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d (%s): %v", ErrInvalidLineItem, i, raw.Name, err)
		}
		qty, err := parseQuantity(raw.Quantity)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d (%s): %v", ErrInvalidLineItem, i, raw.Name, err)
		}
		if unit <= 0 {
			// The gateway rejects zero-value lines; catch it here, before
			// any session is opened.
			return nil, fmt.Errorf("%w: item %d (%s)", ErrZeroOrNegativeAmount, i, raw.Name)
		}

		cart.Items = append(cart.Items, LineItem{Name: raw.Name, UnitPrice: unit, Quantity: qty})
		cart.GatewayItems = append(cart.GatewayItems, GatewayItem{
			ID:       fmt.Sprintf("ITEM-%d", i+1),
			Name:     raw.Name,
			Price:    unit,
			Quantity: qty,
		})
		cart.Total += unit * int64(qty)
	}

	if shippingFee > 0 {
		feeMinor := int64(math.Round(shippingFee * 100))
		if feeMinor <= 0 {
			return nil, fmt.Errorf("%w: shipping fee", ErrZeroOrNegativeAmount)
		}
		cart.GatewayItems = append(cart.GatewayItems, GatewayItem{
			ID:       "SHIPPING",
			Name:     "Shipping Fee",
			Price:    feeMinor,
			Quantity: 1,
		})
		cart.Total += feeMinor
	}

	return cart, nil
}

// priceMinorUnits extracts a minor-unit price from whatever the client
// sent. Strings are scanned for the first numeric run ("MRP ₹30" → 30).
func priceMinorUnits(v interface{}) (int64, error) {
	switch p := v.(type) {
	case float64:
		return int64(math.Round(p * 100)), nil
	case int:
		return int64(p) * 100, nil
	case int64:
		return p * 100, nil
	case json.Number:
		f, err := p.Float64()
		if err != nil {
			return 0, errUnparseablePrice
		}
		return int64(math.Round(f * 100)), nil
	case string:
		run := priceRun.FindString(p)
		if run == "" {
			return 0, errUnparseablePrice
		}
		f, err := strconv.ParseFloat(run, 64)
		if err != nil {
			return 0, errUnparseablePrice
		}
		return int64(math.Round(f * 100)), nil
	default:
		return 0, errUnsupportedValueShape
	}
}

func parseQuantity(v interface{}) (int, error) {
	switch q := v.(type) {
	case float64:
		if q != math.Trunc(q) || q <= 0 {
			return 0, errNonPositiveQuantity
		}
		return int(q), nil
	case int:
		if q <= 0 {
			return 0, errNonPositiveQuantity
		}
		return q, nil
	case json.Number:
		n, err := q.Int64()
		if err != nil || n <= 0 {
			return 0, errNonPositiveQuantity
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			return 0, errNonPositiveQuantity
		}
		return n, nil
	default:
		return 0, errUnsupportedValueShape
	}
}
