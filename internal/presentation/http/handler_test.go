package httppresentation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	appShopping "github.com/Zhima-Mochi/minishop-shopping/internal/application/shopping"
	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-shopping/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-shopping/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequentialIDs struct{ n int }

func (s *sequentialIDs) NewID() string {
	s.n++
	return "cart-" + strconv.Itoa(s.n)
}

func newTestServer(t *testing.T, seed ...product.Product) (*memory.ProductDao, http.Handler) {
	t.Helper()
	dao := memory.NewProductDao(seed...)
	svc := appShopping.NewService(dao, observability.Nop())
	return dao, NewHandler(svc, &sequentialIDs{}, observability.Nop()).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestListProducts(t *testing.T) {
	_, h := newTestServer(t,
		product.Product{Name: "p2", Quantity: 1},
		product.Product{Name: "p1", Quantity: 3},
	)

	rec := do(t, h, http.MethodGet, "/products", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]productResponse](t, rec)
	assert.Equal(t, []productResponse{{Name: "p1", Quantity: 3}, {Name: "p2", Quantity: 1}}, got)
}

func TestGetProduct(t *testing.T) {
	_, h := newTestServer(t, product.Product{Name: "p1", Quantity: 3})

	rec := do(t, h, http.MethodGet, "/products/p1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, productResponse{Name: "p1", Quantity: 3}, decode[productResponse](t, rec))

	rec = do(t, h, http.MethodGet, "/products/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "product with name 'missing' not found")
}

func TestCreateCartRequiresCustomer(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/carts", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot get cart for nil customer")
}

func TestCreateCartRejectsMalformedBody(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/carts", `{"customer":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartPurchaseFlow(t *testing.T) {
	dao, h := newTestServer(t,
		product.Product{Name: "p1", Quantity: 3},
		product.Product{Name: "p2", Quantity: 5},
	)

	rec := do(t, h, http.MethodPost, "/carts", `{"customer":{"id":7,"token":"t"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[cartResponse](t, rec)
	assert.Equal(t, "cart-1", created.CartID)
	assert.Equal(t, int64(7), created.CustomerID)
	assert.Empty(t, created.Lines)

	rec = do(t, h, http.MethodPost, "/carts/cart-1/items", `{"product":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/carts/cart-1/items", `{"product":"p2","quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/carts/cart-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []cartLineResponse{{Product: "p1", Quantity: 2}, {Product: "p2", Quantity: 5}},
		decode[cartResponse](t, rec).Lines)

	rec = do(t, h, http.MethodPost, "/carts/cart-1/buy", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, buyResponse{CartID: "cart-1", Bought: true}, decode[buyResponse](t, rec))

	p1, err := dao.GetByName(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p1.Quantity)
	p2, err := dao.GetByName(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, 0, p2.Quantity)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/carts/cart-1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/carts/cart-1/buy", "").Code)
}

func TestEmptyCartBuyKeepsSession(t *testing.T) {
	_, h := newTestServer(t, product.Product{Name: "p1", Quantity: 3})
	require.Equal(t, http.StatusCreated,
		do(t, h, http.MethodPost, "/carts", `{"customer":{"id":1}}`).Code)

	rec := do(t, h, http.MethodPost, "/carts/cart-1/buy", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[buyResponse](t, rec).Bought)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/carts/cart-1", "").Code)
}

func TestAddItemErrors(t *testing.T) {
	_, h := newTestServer(t, product.Product{Name: "p1", Quantity: 3})
	require.Equal(t, http.StatusCreated,
		do(t, h, http.MethodPost, "/carts", `{"customer":{"id":1}}`).Code)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown cart", "/carts/nope/items", `{"product":"p1","quantity":1}`, http.StatusNotFound},
		{"unknown product", "/carts/cart-1/items", `{"product":"p9","quantity":1}`, http.StatusNotFound},
		{"zero quantity", "/carts/cart-1/items", `{"product":"p1","quantity":0}`, http.StatusBadRequest},
		{"over stock", "/carts/cart-1/items", `{"product":"p1","quantity":4}`, http.StatusBadRequest},
		{"unknown field", "/carts/cart-1/items", `{"product":"p1","qty":1}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestBuyConflictWhenStockDrained(t *testing.T) {
	dao, h := newTestServer(t, product.Product{Name: "p1", Quantity: 3})
	require.Equal(t, http.StatusCreated,
		do(t, h, http.MethodPost, "/carts", `{"customer":{"id":1}}`).Code)
	require.Equal(t, http.StatusOK,
		do(t, h, http.MethodPost, "/carts/cart-1/items", `{"product":"p1","quantity":3}`).Code)

	ok, err := dao.Save(context.Background(), product.Product{Name: "p1", Quantity: 1})
	require.NoError(t, err)
	require.True(t, ok)

	rec := do(t, h, http.MethodPost, "/carts/cart-1/buy", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient quantity in stock for product 'p1'")
	p1, err := dao.GetByName(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p1.Quantity)
}

func TestRequestIDIsEchoed(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))

	rec = do(t, h, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestUnknownRouteAndMethod(t *testing.T) {
	_, h := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/orders", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodDelete, "/products", "").Code)
}
