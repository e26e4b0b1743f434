package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/gorilla/mux"

	"github.com/xenking/luxe-store/internal/domain/apperr"
	"github.com/xenking/luxe-store/internal/domain/auth"
	"github.com/xenking/luxe-store/internal/domain/product"
)

func (h *Handler) writeWishlist(w http.ResponseWriter, r *http.Request, items []product.Product, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProducts(e, items) })
}

func (h *Handler) getWishlist(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.wishlists.List(r.Context(), id.UserID)
	h.writeWishlist(w, r, items, err)
}

func (h *Handler) addWishlistItem(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var productID string
	err = decodeObject(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "productId", "id":
			var err error
			productID, err = d.Str()
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if productID == "" {
		writeError(w, r, apperr.Validation("invalid wishlist item", map[string]string{
			"productId": "Product is required",
		}))
		return
	}

	items, err := h.wishlists.Add(r.Context(), id.UserID, productID)
	h.writeWishlist(w, r, items, err)
}

func (h *Handler) removeWishlistItem(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.wishlists.Remove(r.Context(), id.UserID, mux.Vars(r)["itemId"])
	h.writeWishlist(w, r, items, err)
}
