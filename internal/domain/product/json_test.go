package product

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_Decode(t *testing.T) {
	const input = `{
		"id": "prod-001",
		"name": "Classic Leather Jacket",
		"price": "249.99",
		"originalPrice": 299.99,
		"category": "Men",
		"images": ["a.jpg"],
		"colors": [{"name": "Black", "value": "#000000", "extra": 1}],
		"sizes": [{"name": "S", "inStock": true}, {"name": "XL", "inStock": false}, {"name": "M"}],
		"rating": 4.8,
		"reviews": 156,
		"isNew": true,
		"createdAt": "2025-01-01T09:00:00Z",
		"unknown": {"nested": [1, 2]}
	}`

	var p Product
	require.NoError(t, p.Decode(jx.DecodeStr(input)))

	assert.Equal(t, "prod-001", p.ID)
	assert.True(t, decimal.RequireFromString("249.99").Equal(p.Price))
	require.True(t, p.OriginalPrice.Valid)
	assert.True(t, decimal.RequireFromString("299.99").Equal(p.OriginalPrice.Decimal))
	assert.Equal(t, []Color{{Name: "Black", Value: "#000000"}}, p.Colors)
	assert.Equal(t, []Size{{Name: "S", InStock: true}, {Name: "XL"}, {Name: "M", InStock: true}}, p.Sizes)
	assert.Equal(t, Flags{IsNew: true, InStock: true}, p.Flags, "inStock defaults to true")
	assert.Equal(t, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), p.CreatedAt)
}

func TestProduct_Decode_BadPrice(t *testing.T) {
	var p Product
	err := p.Decode(jx.DecodeStr(`{"price": true}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `decode "price"`)
}

func TestProduct_EncodeShape(t *testing.T) {
	p := Product{
		ID:        "p1",
		Name:      "Scarf",
		Price:     decimal.RequireFromString("129.5"),
		Category:  "Accessories",
		Images:    []string{"scarf.jpg"},
		Flags:     Flags{InStock: true},
		CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.InDelta(t, 129.5, raw["price"], 0.0001)
	assert.NotContains(t, raw, "originalPrice")
	assert.Equal(t, true, raw["inStock"])
	assert.Equal(t, "2025-02-01T00:00:00Z", raw["createdAt"])
	assert.Equal(t, []any{}, raw["colors"])

	var back Product
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p.Name, back.Name)
	assert.True(t, p.Price.Equal(back.Price))
}

func TestDecodeList(t *testing.T) {
	items, err := DecodeList([]byte(`[{"id":"a","name":"A","price":1},{"id":"b","name":"B","price":"2.50"}]`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[1].ID)
	assert.True(t, decimal.RequireFromString("2.5").Equal(items[1].Price))

	_, err = DecodeList([]byte(`[{"id":"a","price":1},{"id":"b","price":true}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode product 1")
}
