// Package memory implements the storage repositories in process memory. It
// backs tests and single-instance deployments without PostgreSQL.
package memory

import (
	"sync"

	"github.com/xenking/luxe-store/internal/domain/cart"
	"github.com/xenking/luxe-store/internal/domain/order"
	"github.com/xenking/luxe-store/internal/domain/product"
	"github.com/xenking/luxe-store/internal/domain/review"
	"github.com/xenking/luxe-store/internal/domain/wishlist"
)

// DB holds all collections under one lock so that an order commit and the
// matching cart clear are observed together.
type DB struct {
	mu        sync.RWMutex
	products  map[string]product.Product
	carts     map[string]*cart.Cart
	orders    map[string]*order.Order
	wishlists map[string][]wishlist.Entry
	reviews   map[string][]review.Review

	owners ownerLocks
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		products:  make(map[string]product.Product),
		carts:     make(map[string]*cart.Cart),
		orders:    make(map[string]*order.Order),
		wishlists: make(map[string][]wishlist.Entry),
		reviews:   make(map[string][]review.Review),
	}
}

// Products returns the product repository.
func (db *DB) Products() *ProductRepository { return &ProductRepository{db: db} }

// Carts returns the cart repository.
func (db *DB) Carts() *CartRepository { return &CartRepository{db: db} }

// Orders returns the order repository.
func (db *DB) Orders() *OrderRepository { return &OrderRepository{db: db} }

// Wishlists returns the wishlist repository.
func (db *DB) Wishlists() *WishlistRepository { return &WishlistRepository{db: db} }

// Reviews returns the review repository.
func (db *DB) Reviews() *ReviewRepository { return &ReviewRepository{db: db} }

// ownerLocks hands out one mutex per owner and drops it when unused.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	sync.Mutex
	refs int
}

func (l *ownerLocks) lock(owner string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*ownerLock)
	}
	ol, ok := l.locks[owner]
	if !ok {
		ol = &ownerLock{}
		l.locks[owner] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.Lock()
	return func() {
		ol.Unlock()
		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.locks, owner)
		}
		l.mu.Unlock()
	}
}
