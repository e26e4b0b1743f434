// Package cart implements the per-owner shopping cart keyed by product variant.
package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/luxe-store/internal/domain/apperr"
)

// ErrItemNotFound is returned when a cart line does not exist.
var ErrItemNotFound = apperr.NotFound("cart item not found")

// itemNamespace scopes the UUIDv5 item identifiers derived from variant keys.
var itemNamespace = uuid.MustParse("5f0c8a8e-7b0e-4c43-9a55-1c6d3f2b8e10")

// VariantKey identifies a distinct purchasable cart line.
type VariantKey struct {
	ProductID string
	Color     string
	Size      string
}

// ID returns the stable item identifier for k. The same key always yields the
// same id, so clients can address lines without knowing the tuple.
func (k VariantKey) ID() string {
	return uuid.NewSHA1(itemNamespace, []byte(k.ProductID+"\x00"+k.Color+"\x00"+k.Size)).String()
}

// Item is a single cart line. UnitPrice, Name and Image are captured when the
// variant is first added.
type Item struct {
	Key       VariantKey
	Name      string
	Image     string
	Quantity  int
	UnitPrice decimal.Decimal
}

// ID returns the item identifier derived from its variant key.
func (i Item) ID() string { return i.Key.ID() }

// LineTotal returns UnitPrice × Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the owner-scoped set of items. Version increases by one on every
// committed mutation.
type Cart struct {
	OwnerID   string
	Items     []Item
	Version   int64
	UpdatedAt time.Time
}

func (c *Cart) index(key VariantKey) int {
	for i := range c.Items {
		if c.Items[i].Key == key {
			return i
		}
	}
	return -1
}

// Add merges item into the cart: an existing line with the same key gets its
// quantity increased, otherwise the item is appended.
func (c *Cart) Add(item Item) {
	if i := c.index(item.Key); i >= 0 {
		c.Items[i].Quantity += item.Quantity
		return
	}
	c.Items = append(c.Items, item)
}

// SetQuantity replaces the quantity of the line with key. Zero removes the
// line; any other value is floored at one.
func (c *Cart) SetQuantity(key VariantKey, qty int) error {
	i := c.index(key)
	if i < 0 {
		return ErrItemNotFound
	}
	if qty == 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	}
	c.Items[i].Quantity = max(1, qty)
	return nil
}

// Remove deletes the line with key and reports whether it existed.
func (c *Cart) Remove(key VariantKey) bool {
	i := c.index(key)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = nil
}

// KeyByID resolves an item identifier to its variant key.
func (c *Cart) KeyByID(itemID string) (VariantKey, bool) {
	for _, it := range c.Items {
		if it.ID() == itemID {
			return it.Key, true
		}
	}
	return VariantKey{}, false
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Count returns the sum of all line quantities.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Snapshot returns a copy of the items detached from the cart.
func (c *Cart) Snapshot() []Item {
	out := make([]Item, len(c.Items))
	copy(out, c.Items)
	return out
}

// Clone returns a deep copy of c.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = c.Snapshot()
	return &cp
}

// Repository persists carts. Mutate must serialize calls for the same owner,
// run fn against the current cart and, when fn returns nil, store the result
// with Version incremented. Calls for different owners must not block each
// other.
type Repository interface {
	Get(ctx context.Context, ownerID string) (*Cart, error)
	Mutate(ctx context.Context, ownerID string, fn func(*Cart) error) (*Cart, error)
}
