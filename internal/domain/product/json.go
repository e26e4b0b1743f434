package product

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// EncodeMoney writes d as a JSON number with two decimals.
func EncodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

// DecodeMoney reads a price given either as a JSON number or a string.
func DecodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Decimal{}, errors.Errorf("unexpected %s for money value", d.Next())
	}
}

// Encode writes p in its wire form.
func (p Product) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	EncodeMoney(e, p.Price)
	if p.OriginalPrice.Valid {
		e.FieldStart("originalPrice")
		EncodeMoney(e, p.OriginalPrice.Decimal)
	}
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("subcategory")
	e.Str(p.Subcategory)

	e.FieldStart("images")
	e.ArrStart()
	for _, img := range p.Images {
		e.Str(img)
	}
	e.ArrEnd()

	e.FieldStart("colors")
	e.ArrStart()
	for _, c := range p.Colors {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(c.Name)
		e.FieldStart("value")
		e.Str(c.Value)
		if c.Image != "" {
			e.FieldStart("image")
			e.Str(c.Image)
		}
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("sizes")
	e.ArrStart()
	for _, s := range p.Sizes {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(s.Name)
		e.FieldStart("inStock")
		e.Bool(s.InStock)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("rating")
	e.Float64(p.Rating)
	e.FieldStart("reviews")
	e.Int(p.Reviews)
	e.FieldStart("isNew")
	e.Bool(p.Flags.IsNew)
	e.FieldStart("isSale")
	e.Bool(p.Flags.IsSale)
	e.FieldStart("inStock")
	e.Bool(p.Flags.InStock)
	if !p.CreatedAt.IsZero() {
		e.FieldStart("createdAt")
		e.Str(p.CreatedAt.UTC().Format(time.RFC3339))
	}
	e.ObjEnd()
}

// Decode reads p from its wire form. Unknown fields are skipped; a missing
// inStock defaults to true.
func (p *Product) Decode(d *jx.Decoder) error {
	*p = Product{Flags: Flags{InStock: true}}
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "price":
			p.Price, err = DecodeMoney(d)
		case "originalPrice":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var v decimal.Decimal
			if v, err = DecodeMoney(d); err == nil {
				p.OriginalPrice = decimal.NewNullDecimal(v)
			}
		case "category":
			p.Category, err = d.Str()
		case "subcategory":
			p.Subcategory, err = d.Str()
		case "images":
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				p.Images = append(p.Images, s)
				return err
			})
		case "colors":
			err = d.Arr(func(d *jx.Decoder) error {
				var c Color
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "name":
						c.Name, err = d.Str()
					case "value":
						c.Value, err = d.Str()
					case "image":
						c.Image, err = d.Str()
					default:
						err = d.Skip()
					}
					return err
				})
				p.Colors = append(p.Colors, c)
				return err
			})
		case "sizes":
			err = d.Arr(func(d *jx.Decoder) error {
				s := Size{InStock: true}
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "name":
						s.Name, err = d.Str()
					case "inStock":
						s.InStock, err = d.Bool()
					default:
						err = d.Skip()
					}
					return err
				})
				p.Sizes = append(p.Sizes, s)
				return err
			})
		case "rating":
			p.Rating, err = d.Float64()
		case "reviews":
			p.Reviews, err = d.Int()
		case "isNew":
			p.Flags.IsNew, err = d.Bool()
		case "isSale":
			p.Flags.IsSale, err = d.Bool()
		case "inStock":
			p.Flags.InStock, err = d.Bool()
		case "createdAt":
			var s string
			if s, err = d.Str(); err == nil {
				p.CreatedAt, err = time.Parse(time.RFC3339, s)
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode %q", key)
		}
		return nil
	})
}

// MarshalJSON implements json.Marshaler.
func (p Product) MarshalJSON() ([]byte, error) {
	e := jx.Encoder{}
	p.Encode(&e)
	return e.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Product) UnmarshalJSON(data []byte) error {
	return p.Decode(jx.DecodeBytes(data))
}

// DecodeList parses a JSON array of products.
func DecodeList(data []byte) ([]Product, error) {
	var out []Product
	d := jx.DecodeBytes(data)
	err := d.Arr(func(d *jx.Decoder) error {
		var p Product
		if err := p.Decode(d); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "decode product %d", len(out))
	}
	return out, nil
}
