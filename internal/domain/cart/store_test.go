package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/luxe-store/internal/domain/apperr"
	"github.com/xenking/luxe-store/internal/domain/product"
)

// --- Mock implementations ---

type mockProducts map[string]*product.Product

func (m mockProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

type mockRepo struct {
	mu    sync.Mutex
	carts map[string]*Cart
	err   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{carts: make(map[string]*Cart)}
}

func (m *mockRepo) Get(_ context.Context, owner string) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[owner]; ok {
		return c.Clone(), nil
	}
	return &Cart{OwnerID: owner}, nil
}

func (m *mockRepo) Mutate(_ context.Context, owner string, fn func(*Cart) error) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[owner]
	if !ok {
		c = &Cart{OwnerID: owner}
	}
	next := c.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version++
	m.carts[owner] = next
	return next.Clone(), nil
}

// --- Helpers ---

func catalog() mockProducts {
	return mockProducts{
		"dress": {
			ID:     "dress",
			Name:   "Silk Dress",
			Price:  decimal.RequireFromString("450.00"),
			Images: []string{"dress.jpg"},
			Colors: []product.Color{{Name: "Black"}, {Name: "Ivory"}},
			Sizes:  []product.Size{{Name: "S", InStock: true}, {Name: "M", InStock: false}},
			Flags:  product.Flags{InStock: true},
		},
		"ring": {
			ID:    "ring",
			Name:  "Gold Ring",
			Price: decimal.RequireFromString("120.00"),
			Flags: product.Flags{InStock: true},
		},
		"gone": {
			ID:    "gone",
			Name:  "Sold Out Bag",
			Price: decimal.RequireFromString("900.00"),
		},
	}
}

// --- Tests ---

func TestStore_AddItem(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMockRepo(), catalog())

	c, err := s.AddItem(ctx, "u1", AddRequest{ProductID: "dress", Color: "black", Size: "s"})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	it := c.Items[0]
	assert.Equal(t, VariantKey{ProductID: "dress", Color: "Black", Size: "S"}, it.Key)
	assert.Equal(t, 1, it.Quantity, "quantity defaults to one")
	assert.Equal(t, "Silk Dress", it.Name)
	assert.Equal(t, "dress.jpg", it.Image)
	assert.True(t, decimal.RequireFromString("450").Equal(it.UnitPrice))
	assert.EqualValues(t, 1, c.Version)

	c, err = s.AddItem(ctx, "u1", AddRequest{ProductID: "dress", Color: "Black", Size: "S", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.EqualValues(t, 2, c.Version)
}

func TestStore_AddItem_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  AddRequest
		kind apperr.Kind
	}{
		{name: "unknown product", req: AddRequest{ProductID: "nope"}, kind: apperr.KindNotFound},
		{name: "missing product", req: AddRequest{}, kind: apperr.KindValidation},
		{name: "negative quantity", req: AddRequest{ProductID: "ring", Quantity: -1}, kind: apperr.KindValidation},
		{name: "unknown color", req: AddRequest{ProductID: "dress", Color: "Red", Size: "S"}, kind: apperr.KindValidation},
		{name: "size out of stock", req: AddRequest{ProductID: "dress", Color: "Black", Size: "M"}, kind: apperr.KindConflict},
		{name: "product out of stock", req: AddRequest{ProductID: "gone"}, kind: apperr.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			s := NewStore(repo, catalog())

			_, err := s.AddItem(context.Background(), "u1", tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Empty(t, repo.carts, "no mutation on rejected add")
		})
	}
}

func TestStore_UpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMockRepo(), catalog())
	ring := VariantKey{ProductID: "ring"}

	_, err := s.AddItem(ctx, "u1", AddRequest{ProductID: "ring"})
	require.NoError(t, err)

	c, err := s.UpdateItem(ctx, "u1", ring, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Items[0].Quantity)

	_, err = s.UpdateItem(ctx, "u1", VariantKey{ProductID: "dress"}, 1)
	require.ErrorIs(t, err, ErrItemNotFound)

	c, err = s.RemoveItem(ctx, "u1", ring)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	_, err = s.RemoveItem(ctx, "u1", ring)
	require.NoError(t, err, "removing an absent line is a no-op")
}

func TestStore_ResolveItem(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMockRepo(), catalog())

	c, err := s.AddItem(ctx, "u1", AddRequest{ProductID: "ring"})
	require.NoError(t, err)

	key, err := s.ResolveItem(ctx, "u1", c.Items[0].ID())
	require.NoError(t, err)
	assert.Equal(t, VariantKey{ProductID: "ring"}, key)

	_, err = s.ResolveItem(ctx, "u2", c.Items[0].ID())
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestStore_RepositoryError(t *testing.T) {
	repo := newMockRepo()
	repo.err = errors.New("connection reset")
	s := NewStore(repo, catalog())

	_, err := s.AddItem(context.Background(), "u1", AddRequest{ProductID: "ring"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "add item")
}

func TestStore_ConcurrentAddsSameOwner(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMockRepo(), catalog())

	const workers = 32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddItem(ctx, "u1", AddRequest{ProductID: "ring", Quantity: 2})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2*workers, c.Items[0].Quantity)
	assert.EqualValues(t, workers, c.Version)
}
