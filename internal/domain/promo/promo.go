// Package promo resolves promotion codes to discount fractions.
package promo

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/luxe-store/internal/domain/apperr"
)

var (
	// ErrInvalidCode is returned for codes that do not resolve to a promotion.
	ErrInvalidCode = apperr.Validation("invalid promo code", map[string]string{
		"promoCode": "Invalid promo code",
	})
	// ErrMalformedCode is returned for codes that cannot be a promotion code.
	ErrMalformedCode = apperr.Validation("malformed promo code", map[string]string{
		"promoCode": "Promo code must be 3 to 32 letters or digits",
	})
	// ErrNotEligible is returned when a code exists but its condition rejects the basket.
	ErrNotEligible = apperr.Validation("promo code not applicable", map[string]string{
		"promoCode": "Promo code does not apply to this cart",
	})
)

var codeFormat = regexp.MustCompile(`^[A-Z0-9]{3,32}$`)

// Rule is one entry of the promotion table.
type Rule struct {
	Code        string
	Fraction    decimal.Decimal
	Description string
	// Condition is an optional CEL expression over subtotal (double) and
	// items (int) that must evaluate to true for the code to apply.
	Condition  string
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// DefaultRules returns the storefront's built-in promotion table.
func DefaultRules() []Rule {
	return []Rule{
		{Code: "LUXE10", Fraction: decimal.RequireFromString("0.10"), Description: "10% off your order"},
		{Code: "WELCOME20", Fraction: decimal.RequireFromString("0.20"), Description: "20% off for new customers"},
		{Code: "SAVE15", Fraction: decimal.RequireFromString("0.15"), Description: "15% off your order"},
	}
}

// Basket is the cart summary a rule's condition is evaluated against.
type Basket struct {
	Subtotal decimal.Decimal
	Items    int
}

// Discount is a resolved promotion. The zero value applies no discount.
type Discount struct {
	Code        string
	Fraction    decimal.Decimal
	Description string
}

type entry struct {
	rule Rule
	cond *condition
}

// Engine is an immutable promotion table. It holds no state between calls
// and is safe for concurrent use.
type Engine struct {
	rules map[string]entry
	now   func() time.Time
}

// NewEngine validates rules and compiles their conditions.
func NewEngine(rules []Rule) (*Engine, error) {
	e := &Engine{rules: make(map[string]entry, len(rules)), now: time.Now}
	for _, r := range rules {
		code := Normalize(r.Code)
		if !codeFormat.MatchString(code) {
			return nil, errors.Errorf("promo %q: bad code format", r.Code)
		}
		if !r.Fraction.IsPositive() || r.Fraction.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, errors.Errorf("promo %q: fraction %s outside (0,1)", code, r.Fraction)
		}
		if _, dup := e.rules[code]; dup {
			return nil, errors.Errorf("promo %q: duplicate code", code)
		}

		var cond *condition
		if strings.TrimSpace(r.Condition) != "" {
			c, err := compileCondition(r.Condition)
			if err != nil {
				return nil, errors.Wrapf(err, "promo %q", code)
			}
			cond = c
		}
		r.Code = code
		e.rules[code] = entry{rule: r, cond: cond}
	}
	return e, nil
}

// Normalize canonicalizes a user-supplied code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve looks code up case-insensitively, ignoring conditions.
func (e *Engine) Resolve(code string) (Discount, error) {
	en, err := e.lookup(code)
	if err != nil {
		return Discount{}, err
	}
	return en.discount(), nil
}

// Evaluate resolves code for b. An empty code yields the zero Discount.
// Only one code applies at a time; callers replace rather than stack.
func (e *Engine) Evaluate(code string, b Basket) (Discount, error) {
	if strings.TrimSpace(code) == "" {
		return Discount{}, nil
	}
	en, err := e.lookup(code)
	if err != nil {
		return Discount{}, err
	}

	now := e.now()
	if en.rule.ValidFrom != nil && now.Before(*en.rule.ValidFrom) {
		return Discount{}, ErrNotEligible
	}
	if en.rule.ValidUntil != nil && now.After(*en.rule.ValidUntil) {
		return Discount{}, ErrNotEligible
	}
	if en.cond != nil {
		ok, err := en.cond.eval(b)
		if err != nil {
			return Discount{}, errors.Wrapf(err, "evaluate promo %q", en.rule.Code)
		}
		if !ok {
			return Discount{}, ErrNotEligible
		}
	}
	return en.discount(), nil
}

// Rules returns the table sorted by code.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, 0, len(e.rules))
	for _, en := range e.rules {
		out = append(out, en.rule)
	}
	slices.SortFunc(out, func(a, b Rule) int { return strings.Compare(a.Code, b.Code) })
	return out
}

func (e *Engine) lookup(code string) (entry, error) {
	code = Normalize(code)
	if !codeFormat.MatchString(code) {
		return entry{}, ErrMalformedCode
	}
	en, ok := e.rules[code]
	if !ok {
		return entry{}, ErrInvalidCode
	}
	return en, nil
}

func (en entry) discount() Discount {
	return Discount{
		Code:        en.rule.Code,
		Fraction:    en.rule.Fraction,
		Description: en.rule.Description,
	}
}
