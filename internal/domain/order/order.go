// Package order implements the order ledger: atomic cart-to-order commit and
// the order status lifecycle.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/luxe-store/internal/domain/apperr"
	"github.com/xenking/luxe-store/internal/domain/cart"
	"github.com/xenking/luxe-store/internal/domain/pricing"
)

var (
	// ErrNotFound is returned for unknown orders and for orders owned by
	// someone else.
	ErrNotFound = apperr.NotFound("order not found")
	// ErrEmptyCart is returned when checking out a cart with no items.
	ErrEmptyCart = apperr.Conflict("cart is empty")
	// ErrCartChanged is returned when the cart was modified after the
	// checkout snapshot was taken.
	ErrCartChanged = apperr.Conflict("cart changed during checkout")
	// ErrInvalidTransition is returned for a status change the lifecycle forbids.
	ErrInvalidTransition = apperr.Conflict("invalid status transition")
	// ErrInvalidStatus is returned for an unknown status name.
	ErrInvalidStatus = apperr.Validation("invalid status", map[string]string{
		"status": "Status must be processing, shipped, delivered or cancelled",
	})
)

// Status is an order lifecycle state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// ParseStatus parses a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Address is a postal address with contact details.
type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address"`
	Apartment string `json:"apartment,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country,omitempty"`
}

// Item is an immutable order line copied from the cart.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Color     string          `json:"color,omitempty"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// ItemsFromCart copies cart lines into order lines.
func ItemsFromCart(lines []cart.Item) []Item {
	out := make([]Item, len(lines))
	for i, l := range lines {
		out[i] = Item{
			ProductID: l.Key.ProductID,
			Name:      l.Name,
			Image:     l.Image,
			Color:     l.Key.Color,
			Size:      l.Key.Size,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	return out
}

// PricingLines returns the priced view of items.
func PricingLines(items []Item) []pricing.Line {
	out := make([]pricing.Line, len(items))
	for i, it := range items {
		out[i] = pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity}
	}
	return out
}

// PaymentRef is an opaque reference to the tokenized payment method. Raw card
// data is never stored.
type PaymentRef struct {
	Token string `json:"token"`
	Last4 string `json:"last4"`
}

// Order is a committed purchase.
type Order struct {
	ID                string
	Number            string
	OwnerID           string
	Items             []Item
	Shipping          Address
	Billing           Address
	Method            pricing.ShippingMethod
	Payment           PaymentRef
	PromoCode         string
	Price             pricing.Breakdown
	Status            Status
	CreatedAt         time.Time
	EstimatedDelivery time.Time
	UpdatedAt         time.Time
}

// Filter narrows the admin order listing. Zero Limit means no limit.
type Filter struct {
	Status Status
	Limit  int
	Offset int
}

// Repository persists orders.
type Repository interface {
	// Commit stores o and clears the owner's cart in one atomic step. It
	// fails with ErrCartChanged when the cart version differs from
	// cartVersion, in which case nothing is written.
	Commit(ctx context.Context, o *Order, cartVersion int64) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Order, error)
	List(ctx context.Context, f Filter) ([]Order, int, error)
	// SetStatus moves the order from status from to to. It fails with
	// ErrInvalidTransition when the stored status is no longer from.
	SetStatus(ctx context.Context, id string, from, to Status, at time.Time) (*Order, error)
}
