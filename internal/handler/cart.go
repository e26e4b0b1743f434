package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/gorilla/mux"

	"github.com/xenking/luxe-store/internal/domain/apperr"
	"github.com/xenking/luxe-store/internal/domain/auth"
	"github.com/xenking/luxe-store/internal/domain/cart"
	"github.com/xenking/luxe-store/internal/domain/pricing"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	method, err := pricing.ParseMethod(q.Get("shippingMethod"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, b, err := h.checkout.Quote(r.Context(), id.UserID, q.Get("promoCode"), method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeCart(e, c, func(e *jx.Encoder) {
			strField(e, "shippingMethod", string(method))
			field(e, "summary", func(e *jx.Encoder) { encodeBreakdown(e, b) })
		})
	})
}

func (h *Handler) writeCart(w http.ResponseWriter, c *cart.Cart) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCart(e, c, nil) })
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req cart.AddRequest
	err = decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			req.ProductID, err = d.Str()
		case "color":
			req.Color, err = d.Str()
		case "size":
			req.Size, err = d.Str()
		case "quantity":
			req.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID == "" {
		writeError(w, r, apperr.Validation("invalid cart item", map[string]string{
			"productId": "Product is required",
		}))
		return
	}

	c, err := h.carts.AddItem(r.Context(), id.UserID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, c)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var (
		qty  int
		seen bool
	)
	err = decodeObject(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		qty, err = d.Int()
		seen = true
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !seen {
		writeError(w, r, apperr.Validation("invalid quantity", map[string]string{
			"quantity": "Quantity is required",
		}))
		return
	}

	key, err := h.carts.ResolveItem(r.Context(), id.UserID, mux.Vars(r)["itemId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.UpdateItem(r.Context(), id.UserID, key, qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, c)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	key, err := h.carts.ResolveItem(r.Context(), id.UserID, mux.Vars(r)["itemId"])
	switch {
	case errors.Is(err, cart.ErrItemNotFound):
		c, err := h.carts.Get(r.Context(), id.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.writeCart(w, c)
		return
	case err != nil:
		writeError(w, r, err)
		return
	}

	c, err := h.carts.RemoveItem(r.Context(), id.UserID, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, c)
}
