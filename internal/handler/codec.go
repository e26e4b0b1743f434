package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/luxe-store/internal/domain/apperr"
	"github.com/xenking/luxe-store/internal/domain/cart"
	"github.com/xenking/luxe-store/internal/domain/order"
	"github.com/xenking/luxe-store/internal/domain/pricing"
	"github.com/xenking/luxe-store/internal/domain/product"
)

const maxBodyBytes = 1 << 20

var errBadBody = apperr.Validation("malformed request body", nil)

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return data, nil
}

func wrapBadBody(err error) error {
	return errors.Wrap(errBadBody, err.Error())
}

// decodeObject reads the request body as a JSON object, calling fn per key.
func decodeObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := readBody(r)
	if err != nil {
		return err
	}
	if err := jx.DecodeBytes(data).Obj(fn); err != nil {
		return wrapBadBody(err)
	}
	return nil
}

func field(e *jx.Encoder, name string, fn func(e *jx.Encoder)) {
	e.FieldStart(name)
	fn(e)
}

func strField(e *jx.Encoder, name, v string) {
	e.FieldStart(name)
	e.Str(v)
}

func moneyField(e *jx.Encoder, name string, d decimal.Decimal) {
	e.FieldStart(name)
	product.EncodeMoney(e, d)
}

func timeField(e *jx.Encoder, name string, t time.Time) {
	e.FieldStart(name)
	e.Str(t.UTC().Format(time.RFC3339))
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	if h.imageBaseURL != "" {
		images := make([]string, len(p.Images))
		for i, img := range p.Images {
			images[i] = h.imageURL(img)
		}
		p.Images = images
		colors := make([]product.Color, len(p.Colors))
		for i, c := range p.Colors {
			c.Image = h.imageURL(c.Image)
			colors[i] = c
		}
		p.Colors = colors
	}
	p.Encode(e)
}

func (h *Handler) encodeProducts(e *jx.Encoder, items []product.Product) {
	e.ArrStart()
	for _, p := range items {
		h.encodeProduct(e, p)
	}
	e.ArrEnd()
}

func encodeBreakdown(e *jx.Encoder, b pricing.Breakdown) {
	e.ObjStart()
	moneyField(e, "subtotal", b.Subtotal)
	moneyField(e, "discount", b.Discount)
	moneyField(e, "shipping", b.Shipping)
	moneyField(e, "tax", b.Tax)
	moneyField(e, "total", b.Total)
	e.ObjEnd()
}

func (h *Handler) encodeCartItems(e *jx.Encoder, items []cart.Item) {
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		strField(e, "id", it.ID())
		strField(e, "productId", it.Key.ProductID)
		strField(e, "name", it.Name)
		strField(e, "image", h.imageURL(it.Image))
		strField(e, "color", it.Key.Color)
		strField(e, "size", it.Key.Size)
		field(e, "quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		moneyField(e, "price", it.UnitPrice)
		moneyField(e, "lineTotal", it.LineTotal())
		e.ObjEnd()
	}
	e.ArrEnd()
}

// encodeCart writes the cart view. summary is written when non-nil.
func (h *Handler) encodeCart(e *jx.Encoder, c *cart.Cart, summary func(e *jx.Encoder)) {
	e.ObjStart()
	field(e, "items", func(e *jx.Encoder) { h.encodeCartItems(e, c.Items) })
	field(e, "count", func(e *jx.Encoder) { e.Int(c.Count()) })
	field(e, "version", func(e *jx.Encoder) { e.Int64(c.Version) })
	if summary != nil {
		summary(e)
	}
	e.ObjEnd()
}

func encodeAddress(e *jx.Encoder, a order.Address) {
	e.ObjStart()
	strField(e, "firstName", a.FirstName)
	strField(e, "lastName", a.LastName)
	strField(e, "email", a.Email)
	strField(e, "phone", a.Phone)
	strField(e, "address", a.Address)
	strField(e, "apartment", a.Apartment)
	strField(e, "city", a.City)
	strField(e, "state", a.State)
	strField(e, "zipCode", a.ZipCode)
	strField(e, "country", a.Country)
	e.ObjEnd()
}

func decodeAddress(d *jx.Decoder, a *order.Address) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "firstName":
			dst = &a.FirstName
		case "lastName":
			dst = &a.LastName
		case "email":
			dst = &a.Email
		case "phone":
			dst = &a.Phone
		case "address":
			dst = &a.Address
		case "apartment":
			dst = &a.Apartment
		case "city":
			dst = &a.City
		case "state":
			dst = &a.State
		case "zipCode":
			dst = &a.ZipCode
		case "country":
			dst = &a.Country
		default:
			return d.Skip()
		}
		v, err := d.Str()
		*dst = v
		return err
	})
}

func (h *Handler) encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	strField(e, "id", o.ID)
	strField(e, "orderNumber", o.Number)
	strField(e, "userId", o.OwnerID)
	field(e, "items", func(e *jx.Encoder) {
		e.ArrStart()
		for _, it := range o.Items {
			e.ObjStart()
			strField(e, "productId", it.ProductID)
			strField(e, "name", it.Name)
			strField(e, "image", h.imageURL(it.Image))
			strField(e, "color", it.Color)
			strField(e, "size", it.Size)
			field(e, "quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
			moneyField(e, "price", it.UnitPrice)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
	field(e, "shippingAddress", func(e *jx.Encoder) { encodeAddress(e, o.Shipping) })
	field(e, "billingAddress", func(e *jx.Encoder) { encodeAddress(e, o.Billing) })
	strField(e, "shippingMethod", string(o.Method))
	field(e, "payment", func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "token", o.Payment.Token)
		strField(e, "last4", o.Payment.Last4)
		e.ObjEnd()
	})
	if o.PromoCode != "" {
		strField(e, "promoCode", o.PromoCode)
	}
	moneyField(e, "subtotal", o.Price.Subtotal)
	moneyField(e, "discount", o.Price.Discount)
	moneyField(e, "shipping", o.Price.Shipping)
	moneyField(e, "tax", o.Price.Tax)
	moneyField(e, "total", o.Price.Total)
	strField(e, "status", string(o.Status))
	timeField(e, "createdAt", o.CreatedAt)
	timeField(e, "estimatedDelivery", o.EstimatedDelivery)
	timeField(e, "updatedAt", o.UpdatedAt)
	e.ObjEnd()
}

func (h *Handler) encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for i := range orders {
		h.encodeOrder(e, &orders[i])
	}
	e.ArrEnd()
}
