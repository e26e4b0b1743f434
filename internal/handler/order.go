package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/gorilla/mux"

	"github.com/xenking/luxe-store/internal/domain/apperr"
	"github.com/xenking/luxe-store/internal/domain/auth"
	"github.com/xenking/luxe-store/internal/domain/checkout"
	"github.com/xenking/luxe-store/internal/domain/order"
	"github.com/xenking/luxe-store/internal/domain/pricing"
)

// checkoutRequest is the single-shot checkout form: every step's data is
// submitted at once and replayed through the state machine.
type checkoutRequest struct {
	Shipping  order.Address
	Payment   checkout.PaymentInput
	Method    string
	PromoCode string
}

func decodePayment(d *jx.Decoder, p *checkout.PaymentInput) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "cardNumber":
			p.CardNumber, err = d.Str()
		case "expiryDate":
			p.ExpiryDate, err = d.Str()
		case "cvv":
			p.CVV, err = d.Str()
		case "cardName":
			p.CardName, err = d.Str()
		case "sameAsShipping":
			p.SameAsShipping, err = d.Bool()
		case "billingAddress":
			err = decodeAddress(d, &p.Billing)
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeCheckout(r *http.Request) (checkoutRequest, error) {
	var req checkoutRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "shippingAddress":
			err = decodeAddress(d, &req.Shipping)
		case "payment":
			err = decodePayment(d, &req.Payment)
		case "shippingMethod":
			req.Method, err = d.Str()
		case "promoCode":
			req.PromoCode, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

// runCheckout drives a fresh session up to the review step.
func (h *Handler) runCheckout(ownerID string, req checkoutRequest) (*checkout.Machine, error) {
	m := h.checkout.Start(ownerID)
	method, err := pricing.ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}
	if err := m.SetShippingMethod(method); err != nil {
		return nil, err
	}
	if err := m.ApplyPromo(req.PromoCode); err != nil {
		return nil, err
	}
	if err := m.SubmitShipping(req.Shipping); err != nil {
		return nil, err
	}
	if err := m.SubmitPayment(req.Payment); err != nil {
		return nil, err
	}
	return m, nil
}

func (h *Handler) prepareCheckout(r *http.Request) (context.Context, *checkout.Machine, error) {
	id, err := auth.RequireUser(r.Context())
	if err != nil {
		return nil, nil, err
	}
	req, err := decodeCheckout(r)
	if err != nil {
		return nil, nil, err
	}
	m, err := h.runCheckout(id.UserID, req)
	if err != nil {
		return nil, nil, err
	}
	return r.Context(), m, nil
}

func (h *Handler) reviewCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, m, err := h.prepareCheckout(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rv, err := m.Review(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "step", m.Step().String())
		field(e, "shippingAddress", func(e *jx.Encoder) { encodeAddress(e, rv.Shipping) })
		field(e, "billingAddress", func(e *jx.Encoder) { encodeAddress(e, rv.Billing) })
		field(e, "payment", func(e *jx.Encoder) {
			e.ObjStart()
			strField(e, "card", rv.Card)
			strField(e, "cardName", rv.CardName)
			e.ObjEnd()
		})
		strField(e, "shippingMethod", string(rv.Method))
		if rv.PromoCode != "" {
			strField(e, "promoCode", rv.PromoCode)
		}
		field(e, "items", func(e *jx.Encoder) { h.encodeCartItems(e, rv.Items) })
		field(e, "summary", func(e *jx.Encoder) { encodeBreakdown(e, rv.Price) })
		e.ObjEnd()
	})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, m, err := h.prepareCheckout(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := m.Complete(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOrderResult(w, http.StatusCreated, "Order created successfully", o)
}

func (h *Handler) writeOrderResult(w http.ResponseWriter, status int, msg string, o *order.Order) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "message", msg)
		field(e, "order", func(e *jx.Encoder) { h.encodeOrder(e, o) })
		e.ObjEnd()
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := h.orders.ListForOwner(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeOrders(e, orders) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.GetByID(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

func parseAdminFilter(r *http.Request) (order.Filter, error) {
	q := r.URL.Query()
	var f order.Filter
	fields := apperr.FieldErrors{}

	if s := q.Get("status"); s != "" {
		st, err := order.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields[name] = "Must be a non-negative integer"
			continue
		}
		*dst = n
	}
	return f, fields.Err("invalid order filter")
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseAdminFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, total, err := h.orders.ListAll(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "orders", func(e *jx.Encoder) { h.encodeOrders(e, orders) })
		field(e, "pagination", func(e *jx.Encoder) {
			e.ObjStart()
			field(e, "total", func(e *jx.Encoder) { e.Int(total) })
			field(e, "limit", func(e *jx.Encoder) { e.Int(f.Limit) })
			field(e, "offset", func(e *jx.Encoder) { e.Int(f.Offset) })
			e.ObjEnd()
		})
		e.ObjEnd()
	})
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var status string
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		var err error
		status, err = d.Str()
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], order.Status(status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOrderResult(w, http.StatusOK, "Order status updated", o)
}
