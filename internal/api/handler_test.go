package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubCart struct {
	addItem        func(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error)
	updateQuantity func(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error)
	removeItem     func(ctx context.Context, userID, itemID string) error
	listItems      func(ctx context.Context, userID string) ([]models.CartItem, error)
}

func (s *stubCart) AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	return s.addItem(ctx, userID, productID, quantity)
}

func (s *stubCart) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	return s.updateQuantity(ctx, userID, itemID, quantity)
}

func (s *stubCart) RemoveItem(ctx context.Context, userID, itemID string) error {
	return s.removeItem(ctx, userID, itemID)
}

func (s *stubCart) ListItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	return s.listItems(ctx, userID)
}

type stubOrders struct {
	checkout   func(ctx context.Context, userID string, req *service.CheckoutRequest) (*models.Order, error)
	getOrder   func(ctx context.Context, userID, orderID string) (*models.Order, []models.OrderItem, error)
	listOrders func(ctx context.Context, userID string) ([]models.Order, error)
}

func (s *stubOrders) Checkout(ctx context.Context, userID string, req *service.CheckoutRequest) (*models.Order, error) {
	return s.checkout(ctx, userID, req)
}

func (s *stubOrders) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, []models.OrderItem, error) {
	return s.getOrder(ctx, userID, orderID)
}

func (s *stubOrders) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.listOrders(ctx, userID)
}

type stubCatalog struct {
	listProducts func(ctx context.Context) ([]models.Product, error)
	getProduct   func(ctx context.Context, id string) (*models.Product, error)
}

func (s *stubCatalog) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.listProducts(ctx)
}

func (s *stubCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.getProduct(ctx, id)
}

func newTestRouter(cart CartService, orders OrderService, catalog CatalogService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(cart, orders, catalog, testSecret).SetupRoutes(router)
	return router
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPreflightAnsweredWithoutAuth(t *testing.T) {
	router := newTestRouter(&stubCart{}, &stubOrders{}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart/items", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "authorization")
}

func TestAddToCartRequiresAuth(t *testing.T) {
	router := newTestRouter(&stubCart{}, &stubOrders{}, &stubCatalog{})

	w := doRequest(router, http.MethodPost, "/api/v1/cart/items", "", `{"product_id":"p1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/cart/items", "not-a-jwt", `{"product_id":"p1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAddToCartRejectsForeignSignature(t *testing.T) {
	router := newTestRouter(&stubCart{}, &stubOrders{}, &stubCatalog{})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"})
	signed, err := token.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	w := doRequest(router, http.MethodPost, "/api/v1/cart/items", signed, `{"product_id":"p1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAddToCartDefaultsQuantityToOne(t *testing.T) {
	var gotUserID, gotProductID string
	var gotQuantity int

	cart := &stubCart{
		addItem: func(_ context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
			gotUserID, gotProductID, gotQuantity = userID, productID, quantity
			return &models.CartItem{ID: "c1", UserID: userID, ProductID: productID, Quantity: quantity}, nil
		},
	}
	router := newTestRouter(cart, &stubOrders{}, &stubCatalog{})

	w := doRequest(router, http.MethodPost, "/api/v1/cart/items", signToken(t, "u1"), `{"product_id":"p1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", gotUserID)
	assert.Equal(t, "p1", gotProductID)
	assert.Equal(t, 1, gotQuantity)

	var body struct {
		Data models.CartItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "c1", body.Data.ID)
}

func TestAddToCartValidation(t *testing.T) {
	router := newTestRouter(&stubCart{}, &stubOrders{}, &stubCatalog{})
	token := signToken(t, "u1")

	w := doRequest(router, http.MethodPost, "/api/v1/cart/items", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/cart/items", token, `{"product_id":"p1","quantity":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/cart/items", token, `{"product_id":"p1","quantity":1000}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	cart := &stubCart{
		updateQuantity: func(_ context.Context, _, itemID string, quantity int) (*models.CartItem, error) {
			if quantity == 0 {
				return nil, nil
			}
			return &models.CartItem{ID: itemID, Quantity: quantity}, nil
		},
	}
	router := newTestRouter(cart, &stubOrders{}, &stubCatalog{})
	token := signToken(t, "u1")

	w := doRequest(router, http.MethodPut, "/api/v1/cart/items/c1", token, `{"quantity":0}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodPut, "/api/v1/cart/items/c1", token, `{"quantity":3}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateQuantityNotFound(t *testing.T) {
	cart := &stubCart{
		updateQuantity: func(context.Context, string, string, int) (*models.CartItem, error) {
			return nil, store.ErrNotFound
		},
	}
	router := newTestRouter(cart, &stubOrders{}, &stubCatalog{})

	w := doRequest(router, http.MethodPut, "/api/v1/cart/items/missing", signToken(t, "u1"), `{"quantity":3}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveItemAlwaysNoContent(t *testing.T) {
	cart := &stubCart{
		removeItem: func(context.Context, string, string) error { return nil },
	}
	router := newTestRouter(cart, &stubOrders{}, &stubCatalog{})

	w := doRequest(router, http.MethodDelete, "/api/v1/cart/items/anything", signToken(t, "u1"), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	orders := &stubOrders{
		checkout: func(context.Context, string, *service.CheckoutRequest) (*models.Order, error) {
			return nil, store.ErrEmptyCart
		},
	}
	router := newTestRouter(&stubCart{}, orders, &stubCatalog{})

	body := `{"customer_name":"Ada","customer_email":"ada@example.com","delivery_address":"1 Analytical Way"}`
	w := doRequest(router, http.MethodPost, "/api/v1/orders", signToken(t, "u1"), body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Cart is empty")
}

func TestCreateOrderSuccess(t *testing.T) {
	orders := &stubOrders{
		checkout: func(_ context.Context, userID string, req *service.CheckoutRequest) (*models.Order, error) {
			return &models.Order{
				ID:              "order-1",
				UserID:          userID,
				TotalAmount:     decimal.RequireFromString("25.50"),
				Status:          models.OrderStatusPending,
				CustomerName:    req.CustomerName,
				CustomerEmail:   req.CustomerEmail,
				DeliveryAddress: req.DeliveryAddress,
			}, nil
		},
	}
	router := newTestRouter(&stubCart{}, orders, &stubCatalog{})

	body := `{"customer_name":"Ada","customer_email":"ada@example.com","delivery_address":"1 Analytical Way"}`
	w := doRequest(router, http.MethodPost, "/api/v1/orders", signToken(t, "u1"), body)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Order models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.Order.ID)
	assert.Equal(t, models.OrderStatusPending, resp.Order.Status)
}

func TestCreateOrderValidation(t *testing.T) {
	router := newTestRouter(&stubCart{}, &stubOrders{}, &stubCatalog{})

	w := doRequest(router, http.MethodPost, "/api/v1/orders", signToken(t, "u1"), `{"customer_name":"Ada"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderIdempotencyKeyHeader(t *testing.T) {
	var gotKey string
	orders := &stubOrders{
		checkout: func(_ context.Context, _ string, req *service.CheckoutRequest) (*models.Order, error) {
			gotKey = req.IdempotencyKey
			return &models.Order{ID: "order-1"}, nil
		},
	}
	router := newTestRouter(&stubCart{}, orders, &stubCatalog{})

	body := `{"customer_name":"Ada","customer_email":"ada@example.com","delivery_address":"1 Analytical Way"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u1"))
	req.Header.Set("Idempotency-Key", "key-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "key-42", gotKey)
}

func TestGetOrderNotFound(t *testing.T) {
	orders := &stubOrders{
		getOrder: func(context.Context, string, string) (*models.Order, []models.OrderItem, error) {
			return nil, nil, store.ErrNotFound
		},
	}
	router := newTestRouter(&stubCart{}, orders, &stubCatalog{})

	w := doRequest(router, http.MethodGet, "/api/v1/orders/missing", signToken(t, "u1"), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListProductsNoAuth(t *testing.T) {
	catalog := &stubCatalog{
		listProducts: func(context.Context) ([]models.Product, error) {
			return []models.Product{{ID: "p1", Name: "Widget", Price: decimal.RequireFromString("10.00")}}, nil
		},
	}
	router := newTestRouter(&stubCart{}, &stubOrders{}, catalog)

	w := doRequest(router, http.MethodGet, "/api/v1/products", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Widget")
}
