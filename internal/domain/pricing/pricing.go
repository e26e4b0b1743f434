// Package pricing computes order price breakdowns.
package pricing

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/luxe-store/internal/domain/apperr"
)

// ShippingMethod is a delivery tier.
type ShippingMethod string

const (
	Standard  ShippingMethod = "standard"
	Express   ShippingMethod = "express"
	Overnight ShippingMethod = "overnight"
)

// ErrInvalidMethod is returned for an unknown shipping method.
var ErrInvalidMethod = apperr.Validation("invalid shipping method", map[string]string{
	"shippingMethod": "Shipping method must be standard, express or overnight",
})

// ParseMethod parses a shipping method name. Empty means Standard.
func ParseMethod(s string) (ShippingMethod, error) {
	switch m := ShippingMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Standard, nil
	case Standard, Express, Overnight:
		return m, nil
	default:
		return "", ErrInvalidMethod
	}
}

// Line is the priced part of a cart line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Breakdown is the full price of a basket.
type Breakdown struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Verify checks that Total equals Subtotal - Discount + Shipping + Tax.
func (b Breakdown) Verify() error {
	want := b.Subtotal.Sub(b.Discount).Add(b.Shipping).Add(b.Tax)
	if !want.Equal(b.Total) {
		return errors.Errorf("total %s does not match components %s", b.Total, want)
	}
	return nil
}

// Rates holds the flat shipping amount per method.
type Rates struct {
	Standard  decimal.Decimal
	Express   decimal.Decimal
	Overnight decimal.Decimal
}

// Calculator prices baskets. It is a pure value; nothing is cached between
// calls.
type Calculator struct {
	// FreeShippingThreshold is the subtotal that must be exceeded for free
	// shipping.
	FreeShippingThreshold decimal.Decimal
	Rates                 Rates
	TaxRate               decimal.Decimal
}

// DefaultCalculator returns the storefront's pricing constants.
func DefaultCalculator() Calculator {
	return Calculator{
		FreeShippingThreshold: decimal.NewFromInt(200),
		Rates: Rates{
			Standard:  decimal.NewFromInt(15),
			Express:   decimal.NewFromInt(25),
			Overnight: decimal.NewFromInt(45),
		},
		TaxRate: decimal.RequireFromString("0.08"),
	}
}

// Subtotal returns the sum of unit price times quantity.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Compute prices lines with discount fraction applied to the subtotal.
// Discount and tax are rounded to cents and the total is derived from the
// rounded components.
func (c Calculator) Compute(lines []Line, fraction decimal.Decimal, method ShippingMethod) Breakdown {
	subtotal := Subtotal(lines)
	discount := subtotal.Mul(fraction).Round(2)
	shipping := c.Shipping(subtotal, method)
	tax := subtotal.Sub(discount).Mul(c.TaxRate).Round(2)

	return Breakdown{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Sub(discount).Add(shipping).Add(tax),
	}
}

// Shipping returns the shipping amount for subtotal and method. Shipping is
// free for every method when subtotal exceeds the threshold.
func (c Calculator) Shipping(subtotal decimal.Decimal, method ShippingMethod) decimal.Decimal {
	if subtotal.GreaterThan(c.FreeShippingThreshold) {
		return decimal.Zero
	}
	switch method {
	case Express:
		return c.Rates.Express
	case Overnight:
		return c.Rates.Overnight
	default:
		return c.Rates.Standard
	}
}
