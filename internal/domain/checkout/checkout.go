// Package checkout implements the multi-step checkout state machine.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/luxe-store/internal/domain/apperr"
	"github.com/xenking/luxe-store/internal/domain/cart"
	"github.com/xenking/luxe-store/internal/domain/order"
	"github.com/xenking/luxe-store/internal/domain/pricing"
	"github.com/xenking/luxe-store/internal/domain/promo"
)

// Step is a checkout stage.
type Step int

const (
	StepShipping Step = iota + 1
	StepPayment
	StepReview
	StepCompleted
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	case StepCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

var (
	// ErrWrongStep is returned when an operation is not allowed at the current step.
	ErrWrongStep = apperr.Conflict("operation not allowed at this checkout step")
	// ErrCompleted is returned for any transition out of the completed step.
	ErrCompleted = apperr.Conflict("checkout already completed")
)

// PaymentInput is the raw payment step form.
type PaymentInput struct {
	CardNumber     string
	ExpiryDate     string
	CVV            string
	CardName       string
	SameAsShipping bool
	Billing        order.Address
}

// Payment is the validated and normalized payment step.
type Payment struct {
	CardNumber string
	ExpiryDate string
	CardName   string
	Billing    order.Address
}

// Last4 returns the last four card digits.
func (p Payment) Last4() string {
	d := digits(p.CardNumber)
	if len(d) < 4 {
		return d
	}
	return d[len(d)-4:]
}

// Masked returns the card number with all but the last four digits hidden.
func (p Payment) Masked() string {
	return "•••• " + p.Last4()
}

// Review is the read-only projection shown before completion.
type Review struct {
	Shipping  order.Address
	Billing   order.Address
	Card      string
	CardName  string
	Method    pricing.ShippingMethod
	PromoCode string
	Items     []cart.Item
	Price     pricing.Breakdown
}

// CartReader loads the owner's current cart.
type CartReader interface {
	Get(ctx context.Context, ownerID string) (*cart.Cart, error)
}

// OrderCreator commits a cart snapshot as an order.
type OrderCreator interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
}

// Service holds the collaborators shared by checkout sessions.
type Service struct {
	carts  CartReader
	promos *promo.Engine
	calc   pricing.Calculator
	ledger OrderCreator
	now    func() time.Time
}

// NewService creates a checkout Service.
func NewService(carts CartReader, promos *promo.Engine, calc pricing.Calculator, ledger OrderCreator) *Service {
	return &Service{
		carts:  carts,
		promos: promos,
		calc:   calc,
		ledger: ledger,
		now:    time.Now,
	}
}

// Start begins a checkout session for ownerID at the shipping step.
func (s *Service) Start(ownerID string) *Machine {
	return &Machine{
		svc:    s,
		owner:  ownerID,
		step:   StepShipping,
		method: pricing.Standard,
	}
}

// Quote prices the owner's current cart without running the state machine.
func (s *Service) Quote(ctx context.Context, ownerID, promoCode string, method pricing.ShippingMethod) (*cart.Cart, pricing.Breakdown, error) {
	c, err := s.carts.Get(ctx, ownerID)
	if err != nil {
		return nil, pricing.Breakdown{}, errors.Wrap(err, "load cart")
	}
	b, _, err := s.price(c, promoCode, method)
	if err != nil {
		return nil, pricing.Breakdown{}, err
	}
	return c, b, nil
}

func (s *Service) price(c *cart.Cart, code string, method pricing.ShippingMethod) (pricing.Breakdown, promo.Discount, error) {
	lines := make([]pricing.Line, len(c.Items))
	for i, it := range c.Items {
		lines[i] = pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity}
	}
	d, err := s.promos.Evaluate(code, promo.Basket{
		Subtotal: pricing.Subtotal(lines),
		Items:    c.Count(),
	})
	if err != nil {
		return pricing.Breakdown{}, promo.Discount{}, err
	}
	return s.calc.Compute(lines, d.Fraction, method), d, nil
}

// Machine is one checkout session. It is not safe for concurrent use.
type Machine struct {
	svc      *Service
	owner    string
	step     Step
	shipping order.Address
	payment  Payment
	method   pricing.ShippingMethod
	promo    string
	order    *order.Order
}

// Step returns the current step.
func (m *Machine) Step() Step { return m.step }

// Shipping returns the last submitted shipping address.
func (m *Machine) Shipping() order.Address { return m.shipping }

// Payment returns the last submitted payment details.
func (m *Machine) Payment() Payment { return m.payment }

// Order returns the committed order once the session is completed.
func (m *Machine) Order() *order.Order { return m.order }

// SetShippingMethod selects the delivery tier. Allowed until completion.
func (m *Machine) SetShippingMethod(method pricing.ShippingMethod) error {
	if m.step == StepCompleted {
		return ErrCompleted
	}
	m.method = method
	return nil
}

// ApplyPromo replaces any previously applied code. An empty code clears it.
func (m *Machine) ApplyPromo(code string) error {
	if m.step == StepCompleted {
		return ErrCompleted
	}
	if strings.TrimSpace(code) == "" {
		m.promo = ""
		return nil
	}
	d, err := m.svc.promos.Resolve(code)
	if err != nil {
		return err
	}
	m.promo = d.Code
	return nil
}

// SubmitShipping validates the shipping step and advances to payment.
func (m *Machine) SubmitShipping(a order.Address) error {
	if err := m.expect(StepShipping); err != nil {
		return err
	}
	a = trimAddress(a)
	if err := validateAddress(a, ""); err != nil {
		return err
	}
	m.shipping = a
	m.step = StepPayment
	return nil
}

// SubmitPayment validates and normalizes the payment step and advances to
// review.
func (m *Machine) SubmitPayment(in PaymentInput) error {
	if err := m.expect(StepPayment); err != nil {
		return err
	}

	p := Payment{
		CardNumber: NormalizeCardNumber(in.CardNumber),
		ExpiryDate: NormalizeExpiry(in.ExpiryDate),
		CardName:   strings.TrimSpace(in.CardName),
	}
	cvv := strings.TrimSpace(in.CVV)

	f := apperr.FieldErrors{}
	f.Require("cardNumber", p.CardNumber, "Card number is required")
	f.Require("expiryDate", p.ExpiryDate, "Expiry date is required")
	f.Require("cvv", cvv, "CVV is required")
	f.Require("cardName", p.CardName, "Cardholder name is required")

	if _, bad := f["cardNumber"]; !bad && !luhnValid(digits(p.CardNumber)) {
		f["cardNumber"] = "Card number is invalid"
	}
	if _, bad := f["expiryDate"]; !bad {
		valid, expired := expiryValid(p.ExpiryDate, m.svc.now().UTC())
		switch {
		case !valid:
			f["expiryDate"] = "Expiry date must be MM/YY"
		case expired:
			f["expiryDate"] = "Card has expired"
		}
	}
	if _, bad := f["cvv"]; !bad && (len(cvv) < 3 || len(cvv) > 4 || digits(cvv) != cvv) {
		f["cvv"] = "CVV must be 3 or 4 digits"
	}

	if in.SameAsShipping {
		p.Billing = m.shipping
	} else {
		p.Billing = trimAddress(in.Billing)
		if err := validateAddress(p.Billing, "billing."); err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				for k, v := range ae.Fields {
					f[k] = v
				}
			}
		}
	}

	if err := f.Err("invalid payment info"); err != nil {
		return err
	}
	m.payment = p
	m.step = StepReview
	return nil
}

// Back returns to an earlier step. Entered data is kept.
func (m *Machine) Back(to Step) error {
	if m.step == StepCompleted {
		return ErrCompleted
	}
	if to < StepShipping || to >= m.step {
		return ErrWrongStep
	}
	m.step = to
	return nil
}

// Review returns the projection of the entered data priced against the
// current cart.
func (m *Machine) Review(ctx context.Context) (*Review, error) {
	if err := m.expect(StepReview); err != nil {
		return nil, err
	}
	c, err := m.svc.carts.Get(ctx, m.owner)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	b, _, err := m.svc.price(c, m.promo, m.method)
	if err != nil {
		return nil, err
	}
	return &Review{
		Shipping:  m.shipping,
		Billing:   m.payment.Billing,
		Card:      m.payment.Masked(),
		CardName:  m.payment.CardName,
		Method:    m.method,
		PromoCode: m.promo,
		Items:     c.Snapshot(),
		Price:     b,
	}, nil
}

// Complete commits the current cart as an order. On failure the session stays
// at review with all data intact.
func (m *Machine) Complete(ctx context.Context) (*order.Order, error) {
	if err := m.expect(StepReview); err != nil {
		return nil, err
	}
	c, err := m.svc.carts.Get(ctx, m.owner)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	_, d, err := m.svc.price(c, m.promo, m.method)
	if err != nil {
		return nil, err
	}

	o, err := m.svc.ledger.Create(ctx, order.CreateRequest{
		OwnerID:  m.owner,
		Cart:     c,
		Shipping: m.shipping,
		Billing:  m.payment.Billing,
		Payment: order.PaymentRef{
			Token: "tok_" + uuid.NewString(),
			Last4: m.payment.Last4(),
		},
		Method:           m.method,
		PromoCode:        d.Code,
		DiscountFraction: d.Fraction,
	})
	if err != nil {
		return nil, err
	}
	m.order = o
	m.step = StepCompleted
	return o, nil
}

func (m *Machine) expect(s Step) error {
	if m.step == StepCompleted {
		return ErrCompleted
	}
	if m.step != s {
		return errors.Wrapf(ErrWrongStep, "at %s, want %s", m.step, s)
	}
	return nil
}

func trimAddress(a order.Address) order.Address {
	for _, f := range []*string{
		&a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.Address,
		&a.Apartment, &a.City, &a.State, &a.ZipCode, &a.Country,
	} {
		*f = strings.TrimSpace(*f)
	}
	return a
}

func validateAddress(a order.Address, prefix string) error {
	f := apperr.FieldErrors{}
	f.Require(prefix+"firstName", a.FirstName, "First name is required")
	f.Require(prefix+"lastName", a.LastName, "Last name is required")
	f.Require(prefix+"email", a.Email, "Email is required")
	f.Require(prefix+"address", a.Address, "Address is required")
	f.Require(prefix+"city", a.City, "City is required")
	f.Require(prefix+"state", a.State, "State is required")
	f.Require(prefix+"zipCode", a.ZipCode, "ZIP code is required")
	if _, bad := f[prefix+"email"]; !bad && !strings.Contains(a.Email, "@") {
		f[prefix+"email"] = "Email is invalid"
	}
	if prefix == "" {
		return f.Err("invalid shipping info")
	}
	return f.Err("invalid billing info")
}
