package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/luxe-store/internal/domain/apperr"
	"github.com/xenking/luxe-store/internal/domain/product"
)

// ProductReader is the catalog lookup the store needs to validate variants.
type ProductReader interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// AddRequest describes a variant to add. Zero Quantity means one.
type AddRequest struct {
	ProductID string
	Color     string
	Size      string
	Quantity  int
}

// Store is the cart service. It validates requests against the catalog and
// delegates serialized mutation to the Repository.
type Store struct {
	repo     Repository
	products ProductReader
	mutated  metric.Int64Counter
}

// Option configures a Store.
type Option func(*Store)

// WithMeter records cart mutations on a counter created from m.
func WithMeter(m metric.Meter) Option {
	return func(s *Store) {
		c, err := m.Int64Counter("luxe.cart.mutations",
			metric.WithDescription("Committed cart mutations"),
		)
		if err == nil {
			s.mutated = c
		}
	}
}

// NewStore creates a cart Store.
func NewStore(repo Repository, products ProductReader, opts ...Option) *Store {
	s := &Store{repo: repo, products: products}
	s.mutated, _ = noop.NewMeterProvider().Meter("").Int64Counter("noop")
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the owner's cart. An owner without a stored cart gets an empty one.
func (s *Store) Get(ctx context.Context, ownerID string) (*Cart, error) {
	c, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem merges the requested variant into the owner's cart and returns the
// updated cart.
func (s *Store) AddItem(ctx context.Context, ownerID string, req AddRequest) (*Cart, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return nil, apperr.Validation("invalid cart item", map[string]string{
			"quantity": "Quantity must be at least 1",
		})
	}
	if req.ProductID == "" {
		return nil, apperr.Validation("invalid cart item", map[string]string{
			"productId": "Product is required",
		})
	}

	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	color, size, err := p.ResolveVariant(req.Color, req.Size)
	if err != nil {
		return nil, err
	}

	item := Item{
		Key:       VariantKey{ProductID: p.ID, Color: color, Size: size},
		Name:      p.Name,
		Quantity:  req.Quantity,
		UnitPrice: p.Price,
	}
	if len(p.Images) > 0 {
		item.Image = p.Images[0]
	}

	c, err := s.repo.Mutate(ctx, ownerID, func(c *Cart) error {
		c.Add(item)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "add item")
	}
	s.record(ctx, "add")

	zctx.From(ctx).Debug("Cart item added",
		zap.String("owner_id", ownerID),
		zap.String("product_id", p.ID),
		zap.Int("quantity", req.Quantity),
	)
	return c, nil
}

// UpdateItem replaces the quantity of an existing line. Zero removes it.
func (s *Store) UpdateItem(ctx context.Context, ownerID string, key VariantKey, qty int) (*Cart, error) {
	c, err := s.repo.Mutate(ctx, ownerID, func(c *Cart) error {
		return c.SetQuantity(key, qty)
	})
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "update item")
	}
	s.record(ctx, "update")
	return c, nil
}

// RemoveItem deletes a line. Removing an absent line is not an error.
func (s *Store) RemoveItem(ctx context.Context, ownerID string, key VariantKey) (*Cart, error) {
	c, err := s.repo.Mutate(ctx, ownerID, func(c *Cart) error {
		c.Remove(key)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "remove item")
	}
	s.record(ctx, "remove")
	return c, nil
}

// ResolveItem maps a client item id to its variant key in the owner's cart.
func (s *Store) ResolveItem(ctx context.Context, ownerID, itemID string) (VariantKey, error) {
	c, err := s.Get(ctx, ownerID)
	if err != nil {
		return VariantKey{}, err
	}
	key, ok := c.KeyByID(itemID)
	if !ok {
		return VariantKey{}, ErrItemNotFound
	}
	return key, nil
}

func (s *Store) record(ctx context.Context, op string) {
	s.mutated.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
