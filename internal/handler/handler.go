// Package handler exposes the storefront domain over HTTP.
package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/xenking/luxe-store/internal/domain/cart"
	"github.com/xenking/luxe-store/internal/domain/checkout"
	"github.com/xenking/luxe-store/internal/domain/order"
	"github.com/xenking/luxe-store/internal/domain/product"
	"github.com/xenking/luxe-store/internal/domain/review"
	"github.com/xenking/luxe-store/internal/domain/wishlist"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Services bundles the domain services the handler delegates to.
type Services struct {
	Products  *product.Service
	Carts     *cart.Store
	Wishlists *wishlist.Service
	Reviews   *review.Service
	Checkout  *checkout.Service
	Orders    *order.Ledger
}

// Handler serves the storefront API.
type Handler struct {
	products     *product.Service
	carts        *cart.Store
	wishlists    *wishlist.Service
	reviews      *review.Service
	checkout     *checkout.Service
	orders       *order.Ledger
	imageBaseURL string
}

// New constructs a Handler.
func New(cfg Config, s Services) *Handler {
	return &Handler{
		products:     s.Products,
		carts:        s.Carts,
		wishlists:    s.Wishlists,
		reviews:      s.Reviews,
		checkout:     s.Checkout,
		orders:       s.Orders,
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
	}
}

// Register mounts every API route under /api on root.
func (h *Handler) Register(root *mux.Router) {
	r := root.PathPrefix("/api").Subrouter()
	r.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	r.HandleFunc("/products", h.createProduct).Methods(http.MethodPost)
	r.HandleFunc("/products/{id}", h.getProduct).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}", h.updateProduct).Methods(http.MethodPut)
	r.HandleFunc("/products/{id}", h.deleteProduct).Methods(http.MethodDelete)
	r.HandleFunc("/products/{id}/reviews", h.listReviews).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}/reviews", h.addReview).Methods(http.MethodPost)
	r.HandleFunc("/categories", h.listCategories).Methods(http.MethodGet)

	r.HandleFunc("/cart", h.getCart).Methods(http.MethodGet)
	r.HandleFunc("/cart", h.addCartItem).Methods(http.MethodPost)
	r.HandleFunc("/cart/{itemId}", h.updateCartItem).Methods(http.MethodPut)
	r.HandleFunc("/cart/{itemId}", h.removeCartItem).Methods(http.MethodDelete)

	r.HandleFunc("/wishlist", h.getWishlist).Methods(http.MethodGet)
	r.HandleFunc("/wishlist", h.addWishlistItem).Methods(http.MethodPost)
	r.HandleFunc("/wishlist/{itemId}", h.removeWishlistItem).Methods(http.MethodDelete)

	r.HandleFunc("/checkout/review", h.reviewCheckout).Methods(http.MethodPost)
	r.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}", h.getOrder).Methods(http.MethodGet)

	r.HandleFunc("/admin/orders", h.listAllOrders).Methods(http.MethodGet)
	r.HandleFunc("/admin/orders/{id}/status", h.updateOrderStatus).Methods(http.MethodPut)

	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errRouteNotFound)
	})
	root.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errMethodNotAllowed)
	})
}

func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" ||
		strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return h.imageBaseURL + "/" + strings.TrimLeft(path, "/")
}
