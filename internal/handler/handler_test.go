package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/luxe-store/internal/domain/auth"
	"github.com/xenking/luxe-store/internal/domain/cart"
	"github.com/xenking/luxe-store/internal/domain/checkout"
	"github.com/xenking/luxe-store/internal/domain/order"
	"github.com/xenking/luxe-store/internal/domain/pricing"
	"github.com/xenking/luxe-store/internal/domain/product"
	"github.com/xenking/luxe-store/internal/domain/promo"
	"github.com/xenking/luxe-store/internal/domain/review"
	"github.com/xenking/luxe-store/internal/domain/wishlist"
	"github.com/xenking/luxe-store/internal/storage/memory"
)

// --- Helpers ---

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	gw     *JWTGateway
	db     *memory.DB
	admin  string
	alice  string
	bob    string
	scarf  product.Product
	blazer product.Product
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := memory.New()
	ctx := context.Background()
	scarf := product.Product{
		ID:       "p-scarf",
		Name:     "Cashmere Scarf",
		Price:    decimal.RequireFromString("129.00"),
		Category: "Accessories",
		Images:   []string{"/images/scarf.jpg"},
		Colors:   []product.Color{{Name: "Camel", Value: "#c19a6b"}},
		Flags:    product.Flags{InStock: true},
	}
	blazer := product.Product{
		ID:       "p-blazer",
		Name:     "Wool Blazer",
		Price:    decimal.RequireFromString("450.00"),
		Category: "Men",
		Images:   []string{"https://cdn.example.com/blazer.jpg"},
		Sizes:    []product.Size{{Name: "M", InStock: true}, {Name: "L", InStock: false}},
		Flags:    product.Flags{InStock: true, IsNew: true},
	}
	require.NoError(t, db.Products().Create(ctx, &scarf))
	require.NoError(t, db.Products().Create(ctx, &blazer))

	engine, err := promo.NewEngine(promo.DefaultRules())
	require.NoError(t, err)
	calc := pricing.DefaultCalculator()
	products := product.NewService(db.Products())
	carts := cart.NewStore(db.Carts(), db.Products())
	ledger := order.NewLedger(db.Orders(), calc, order.DefaultConfig())

	h := New(Config{ImageBaseURL: "https://img.luxe.test/"}, Services{
		Products:  products,
		Carts:     carts,
		Wishlists: wishlist.NewService(db.Wishlists(), db.Products()),
		Reviews:   review.NewService(db.Reviews(), db.Products()),
		Checkout:  checkout.NewService(carts, engine, calc, ledger),
		Orders:    ledger,
	})

	gw := NewJWTGateway([]byte("test-secret"), "luxe-test")
	r := mux.NewRouter()
	h.Register(r)
	srv := httptest.NewServer(Authenticate(gw)(r))
	t.Cleanup(srv.Close)

	ts := &testServer{t: t, srv: srv, gw: gw, db: db, scarf: scarf, blazer: blazer}
	ts.admin = ts.token(auth.Identity{UserID: "admin-1", Email: "admin@luxe.test", IsAdmin: true})
	ts.alice = ts.token(auth.Identity{UserID: "alice", Email: "alice@luxe.test"})
	ts.bob = ts.token(auth.Identity{UserID: "bob", Email: "bob@luxe.test"})
	return ts
}

func (ts *testServer) token(id auth.Identity) string {
	ts.t.Helper()
	tok, err := ts.gw.Issue(id, time.Hour)
	require.NoError(ts.t, err)
	return tok
}

// do sends a request and decodes the JSON response into a generic map.
func (ts *testServer) do(method, path, token string, body any) (int, map[string]any) {
	ts.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(ts.t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(ts.t, err)
	defer func() { _ = resp.Body.Close() }()

	var raw any
	require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(&raw))
	out, ok := raw.(map[string]any)
	if !ok {
		out = map[string]any{"list": raw}
	}
	return resp.StatusCode, out
}

func (ts *testServer) addToCart(token string, body map[string]any) map[string]any {
	ts.t.Helper()
	status, resp := ts.do(http.MethodPost, "/api/cart", token, body)
	require.Equal(ts.t, http.StatusOK, status, resp)
	return resp
}

func checkoutBody(method, promoCode string) map[string]any {
	return map[string]any{
		"shippingAddress": map[string]any{
			"firstName": "Alice", "lastName": "Liddell", "email": "alice@luxe.test",
			"address": "1 Rabbit Hole", "city": "Oxford", "state": "OX", "zipCode": "12345",
		},
		"payment": map[string]any{
			"cardNumber":     "4242 4242 4242 4242",
			"expiryDate":     "12/99",
			"cvv":            "123",
			"cardName":       "Alice Liddell",
			"sameAsShipping": true,
		},
		"shippingMethod": method,
		"promoCode":      promoCode,
	}
}

// --- Tests ---

func TestProducts_List(t *testing.T) {
	ts := newTestServer(t)

	status, resp := ts.do(http.MethodGet, "/api/products?sortBy=price&sortOrder=desc", "", nil)
	require.Equal(t, http.StatusOK, status)

	items := resp["products"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "p-blazer", first["id"])
	assert.Equal(t, 450.0, first["price"])
	assert.Equal(t, []any{"https://cdn.example.com/blazer.jpg"}, first["images"])
	second := items[1].(map[string]any)
	assert.Equal(t, []any{"https://img.luxe.test/images/scarf.jpg"}, second["images"])

	pg := resp["pagination"].(map[string]any)
	assert.Equal(t, 1.0, pg["currentPage"])
	assert.Equal(t, 2.0, pg["totalProducts"])
	assert.Equal(t, false, pg["hasNext"])
}

func TestProducts_GetAndCategories(t *testing.T) {
	ts := newTestServer(t)

	status, resp := ts.do(http.MethodGet, "/api/products/p-scarf", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Cashmere Scarf", resp["name"])

	status, resp = ts.do(http.MethodGet, "/api/products/missing", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", resp["code"])

	status, resp = ts.do(http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, resp["list"], 6)
}

func TestProducts_AdminWrites(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]any{
		"name":     "Silk Tie",
		"price":    "89.50",
		"category": "Men",
		"images":   []string{"tie.jpg"},
	}

	t.Run("anonymous is rejected", func(t *testing.T) {
		status, _ := ts.do(http.MethodPost, "/api/products", "", body)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("customer is forbidden", func(t *testing.T) {
		status, resp := ts.do(http.MethodPost, "/api/products", ts.alice, body)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "forbidden", resp["code"])
	})

	t.Run("invalid token", func(t *testing.T) {
		status, _ := ts.do(http.MethodPost, "/api/products", "not-a-jwt", body)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("validation errors list fields", func(t *testing.T) {
		status, resp := ts.do(http.MethodPost, "/api/products", ts.admin, map[string]any{"price": -1})
		require.Equal(t, http.StatusBadRequest, status)
		fields := resp["fields"].(map[string]any)
		assert.Contains(t, fields, "name")
		assert.Contains(t, fields, "images")
	})

	t.Run("create update delete", func(t *testing.T) {
		status, resp := ts.do(http.MethodPost, "/api/products", ts.admin, body)
		require.Equal(t, http.StatusCreated, status, resp)
		assert.Equal(t, "Product created successfully", resp["message"])
		created := resp["product"].(map[string]any)
		id := created["id"].(string)
		assert.NotEmpty(t, id)
		assert.Equal(t, 89.5, created["price"])
		assert.Equal(t, true, created["inStock"])

		body["name"] = "Silk Bow Tie"
		status, resp = ts.do(http.MethodPut, "/api/products/"+id, ts.admin, body)
		require.Equal(t, http.StatusOK, status, resp)
		assert.Equal(t, "Silk Bow Tie", resp["product"].(map[string]any)["name"])

		status, resp = ts.do(http.MethodDelete, "/api/products/"+id, ts.admin, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Product deleted successfully", resp["message"])

		status, _ = ts.do(http.MethodGet, "/api/products/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestCart_Flow(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(http.MethodGet, "/api/cart", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	ts.addToCart(ts.alice, map[string]any{"productId": "p-scarf", "color": "camel", "quantity": 1})
	resp := ts.addToCart(ts.alice, map[string]any{"productId": "p-scarf", "color": "Camel", "quantity": 2})
	items := resp["items"].([]any)
	require.Len(t, items, 1, "same variant merges into one line")
	line := items[0].(map[string]any)
	assert.Equal(t, 3.0, line["quantity"])
	assert.Equal(t, "Camel", line["color"])
	assert.Equal(t, 387.0, line["lineTotal"])
	itemID := line["id"].(string)

	t.Run("out of stock size conflicts", func(t *testing.T) {
		status, resp := ts.do(http.MethodPost, "/api/cart", ts.alice, map[string]any{"productId": "p-blazer", "size": "L"})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "conflict", resp["code"])
	})

	t.Run("unknown product", func(t *testing.T) {
		status, _ := ts.do(http.MethodPost, "/api/cart", ts.alice, map[string]any{"productId": "nope"})
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("summary with promo", func(t *testing.T) {
		status, resp := ts.do(http.MethodGet, "/api/cart?promoCode=LUXE10&shippingMethod=express", ts.alice, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "express", resp["shippingMethod"])
		summary := resp["summary"].(map[string]any)
		assert.Equal(t, 387.0, summary["subtotal"])
		assert.Equal(t, 38.7, summary["discount"])
		assert.Equal(t, 0.0, summary["shipping"])
		assert.Equal(t, 27.86, summary["tax"])
		assert.Equal(t, 376.16, summary["total"])
	})

	t.Run("bad shipping method", func(t *testing.T) {
		status, _ := ts.do(http.MethodGet, "/api/cart?shippingMethod=teleport", ts.alice, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("update quantity", func(t *testing.T) {
		status, resp := ts.do(http.MethodPut, "/api/cart/"+itemID, ts.alice, map[string]any{"quantity": 1})
		require.Equal(t, http.StatusOK, status, resp)
		assert.Equal(t, 1.0, resp["count"])

		status, resp = ts.do(http.MethodPut, "/api/cart/"+itemID, ts.alice, map[string]any{"quantity": -4})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 1.0, resp["items"].([]any)[0].(map[string]any)["quantity"], "negative quantity floors at one")
	})

	t.Run("carts are isolated per user", func(t *testing.T) {
		status, resp := ts.do(http.MethodGet, "/api/cart", ts.bob, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, resp["items"])
	})

	t.Run("remove item", func(t *testing.T) {
		status, resp := ts.do(http.MethodDelete, "/api/cart/"+itemID, ts.alice, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, resp["items"])
	})
}

func TestWishlist_Flow(t *testing.T) {
	ts := newTestServer(t)

	status, resp := ts.do(http.MethodPost, "/api/wishlist", ts.alice, map[string]any{"productId": "p-blazer"})
	require.Equal(t, http.StatusOK, status, resp)
	status, resp = ts.do(http.MethodPost, "/api/wishlist", ts.alice, map[string]any{"productId": "p-blazer"})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, resp["list"], 1, "adding twice keeps one entry")

	status, _ = ts.do(http.MethodPost, "/api/wishlist", ts.alice, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = ts.do(http.MethodGet, "/api/wishlist", ts.alice, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp["list"], 1)
	assert.Equal(t, "p-blazer", resp["list"].([]any)[0].(map[string]any)["id"])

	status, resp = ts.do(http.MethodDelete, "/api/wishlist/p-blazer", ts.alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp["list"])
}

func TestReviews_Flow(t *testing.T) {
	ts := newTestServer(t)

	t.Run("empty list", func(t *testing.T) {
		status, resp := ts.do(http.MethodGet, "/api/products/p-scarf/reviews", "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, resp["list"])
	})

	t.Run("anonymous cannot review", func(t *testing.T) {
		status, _ := ts.do(http.MethodPost, "/api/products/p-scarf/reviews", "", map[string]any{"rating": 5})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("rating out of range", func(t *testing.T) {
		status, resp := ts.do(http.MethodPost, "/api/products/p-scarf/reviews", ts.alice, map[string]any{"rating": 6})
		require.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, resp["fields"], "rating")
	})

	t.Run("unknown product", func(t *testing.T) {
		status, _ := ts.do(http.MethodPost, "/api/products/nope/reviews", ts.alice, map[string]any{"rating": 4})
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = ts.do(http.MethodGet, "/api/products/nope/reviews", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("customers review and the rating follows", func(t *testing.T) {
		status, resp := ts.do(http.MethodPost, "/api/products/p-scarf/reviews", ts.alice, map[string]any{
			"rating": 4, "title": " Soft ", "comment": "Warm and light.",
		})
		require.Equal(t, http.StatusCreated, status, resp)
		assert.Equal(t, "Review added successfully", resp["message"])
		rv := resp["review"].(map[string]any)
		assert.Equal(t, "p-scarf", rv["productId"])
		assert.Equal(t, "alice", rv["userId"])
		assert.Equal(t, "Soft", rv["title"])
		assert.NotEmpty(t, rv["id"])

		status, resp = ts.do(http.MethodPost, "/api/products/p-scarf/reviews", ts.bob, map[string]any{"rating": 5})
		require.Equal(t, http.StatusCreated, status, resp)

		status, resp = ts.do(http.MethodGet, "/api/products/p-scarf/reviews", "", nil)
		require.Equal(t, http.StatusOK, status)
		list := resp["list"].([]any)
		require.Len(t, list, 2)
		assert.Equal(t, "bob", list[0].(map[string]any)["userId"], "newest first")

		status, resp = ts.do(http.MethodGet, "/api/products/p-scarf", "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 4.5, resp["rating"])
		assert.Equal(t, 2.0, resp["reviews"])
	})
}

func TestCheckout_CreateOrder(t *testing.T) {
	ts := newTestServer(t)

	t.Run("empty cart", func(t *testing.T) {
		status, _ := ts.do(http.MethodPost, "/api/orders", ts.alice, checkoutBody("standard", ""))
		assert.Equal(t, http.StatusConflict, status)
	})

	ts.addToCart(ts.alice, map[string]any{"productId": "p-blazer", "size": "M"})

	t.Run("invalid payment", func(t *testing.T) {
		body := checkoutBody("standard", "")
		body["payment"].(map[string]any)["cardNumber"] = "1234"
		status, resp := ts.do(http.MethodPost, "/api/orders", ts.alice, body)
		require.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, resp["fields"], "cardNumber")
	})

	t.Run("unknown promo code", func(t *testing.T) {
		status, _ := ts.do(http.MethodPost, "/api/checkout/review", ts.alice, checkoutBody("standard", "FREESTUFF"))
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("review", func(t *testing.T) {
		status, resp := ts.do(http.MethodPost, "/api/checkout/review", ts.alice, checkoutBody("overnight", "save15"))
		require.Equal(t, http.StatusOK, status, resp)
		assert.Equal(t, "review", resp["step"])
		assert.Equal(t, "SAVE15", resp["promoCode"])
		assert.Equal(t, "•••• 4242", resp["payment"].(map[string]any)["card"])
		summary := resp["summary"].(map[string]any)
		assert.Equal(t, 67.5, summary["discount"])
		assert.Equal(t, 0.0, summary["shipping"], "free above the threshold on every tier")
	})

	t.Run("overnight rate below the free threshold", func(t *testing.T) {
		ts.addToCart(ts.bob, map[string]any{"productId": "p-scarf", "color": "Camel"})
		status, resp := ts.do(http.MethodPost, "/api/checkout/review", ts.bob, checkoutBody("overnight", ""))
		require.Equal(t, http.StatusOK, status, resp)
		summary := resp["summary"].(map[string]any)
		assert.Equal(t, 129.0, summary["subtotal"])
		assert.Equal(t, 45.0, summary["shipping"])
	})

	var orderID string
	t.Run("complete", func(t *testing.T) {
		status, resp := ts.do(http.MethodPost, "/api/orders", ts.alice, checkoutBody("standard", ""))
		require.Equal(t, http.StatusCreated, status, resp)
		assert.Equal(t, "Order created successfully", resp["message"])
		o := resp["order"].(map[string]any)
		orderID = o["id"].(string)
		assert.Regexp(t, `^LUXE-\d+$`, o["orderNumber"])
		assert.Equal(t, "processing", o["status"])
		assert.Equal(t, 486.0, o["total"])
		assert.Equal(t, "4242", o["payment"].(map[string]any)["last4"])

		_, cartResp := ts.do(http.MethodGet, "/api/cart", ts.alice, nil)
		assert.Empty(t, cartResp["items"], "cart cleared after order")
	})

	t.Run("owner reads", func(t *testing.T) {
		status, resp := ts.do(http.MethodGet, "/api/orders", ts.alice, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, resp["list"], 1)

		status, resp = ts.do(http.MethodGet, "/api/orders/"+orderID, ts.alice, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, orderID, resp["id"])
	})

	t.Run("other users cannot see the order", func(t *testing.T) {
		status, _ := ts.do(http.MethodGet, "/api/orders/"+orderID, ts.bob, nil)
		assert.Equal(t, http.StatusNotFound, status)

		status, resp := ts.do(http.MethodGet, "/api/orders", ts.bob, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, resp["list"])
	})

	t.Run("admin lifecycle", func(t *testing.T) {
		status, _ := ts.do(http.MethodGet, "/api/admin/orders", ts.alice, nil)
		assert.Equal(t, http.StatusForbidden, status)

		status, resp := ts.do(http.MethodGet, "/api/admin/orders?status=processing&limit=10", ts.admin, nil)
		require.Equal(t, http.StatusOK, status, resp)
		assert.Len(t, resp["orders"], 1)
		assert.Equal(t, 1.0, resp["pagination"].(map[string]any)["total"])

		status, _ = ts.do(http.MethodGet, "/api/admin/orders?limit=ten", ts.admin, nil)
		assert.Equal(t, http.StatusBadRequest, status)

		path := "/api/admin/orders/" + orderID + "/status"
		status, resp = ts.do(http.MethodPut, path, ts.admin, map[string]any{"status": "shipped"})
		require.Equal(t, http.StatusOK, status, resp)
		assert.Equal(t, "Order status updated", resp["message"])
		assert.Equal(t, "shipped", resp["order"].(map[string]any)["status"])

		status, _ = ts.do(http.MethodPut, path, ts.admin, map[string]any{"status": "processing"})
		assert.Equal(t, http.StatusConflict, status)

		status, _ = ts.do(http.MethodPut, path, ts.admin, map[string]any{"status": "lost"})
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = ts.do(http.MethodPut, path, ts.alice, map[string]any{"status": "delivered"})
		assert.Equal(t, http.StatusForbidden, status)
	})
}

func TestRouting_Errors(t *testing.T) {
	ts := newTestServer(t)

	status, resp := ts.do(http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", resp["code"])

	status, _ = ts.do(http.MethodPatch, "/api/products", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/cart", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.alice)
	res, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
