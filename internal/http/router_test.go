package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/cache"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/gateway"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/repository"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/service"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret-that-is-long-enough-for-hs256")

type testServer struct {
	t       *testing.T
	handler http.Handler
	store   *fakeStore
}

// newTestServer wires the real services over miniredis, an in-memory
// catalog and an in-memory cart. approvalRate drives the simulated gateway.
func newTestServer(t *testing.T, approvalRate float64) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	db, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, repository.MigrateCatalog(db))
	catalog := repository.NewCatalogRepository(db)
	t.Cleanup(func() { catalog.Close() })

	cartRepo := repository.NewMemoryCartRepository()
	cartCache := cache.NewRedisCache(client, time.Minute)
	sessions := cache.NewRedisSessionStore(client, time.Hour)
	store := newFakeStore()

	log := zap.NewNop()
	pipeline := service.NewOrderPipeline(store, store, gateway.NewSimulated(0, approvalRate, nil), service.PipelineConfig{
		ShippingCost:   domain.DefaultShippingCost,
		GatewayTimeout: time.Second,
	}, log)
	checkout := service.NewCheckoutService(sessions, store, pipeline, log)

	carts := service.NewCarts(cartRepo, catalog, cartCache, log)
	newCart := func(_ context.Context, id domain.Identity) *service.CartService {
		return carts.For(id)
	}

	handler := NewRouter(Handlers{
		Cart:     NewCartHandler(newCart, 5*time.Second),
		Checkout: NewCheckoutHandler(checkout, newCart, domain.DefaultShippingCost, 5*time.Second),
		Orders:   NewOrdersHandler(service.NewOrderQueryService(store), 5*time.Second),
		Products: NewProductHandler(service.NewCatalogService(catalog), 5*time.Second),
	}, RouterConfig{JWTSecret: testSecret, RequestTimeout: 10 * time.Second}, log)

	return &testServer{t: t, handler: handler, store: store}
}

func token(t *testing.T, shopperID string) string {
	t.Helper()
	tok, err := IssueToken(testSecret, shopperID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 1)
	rec := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCart_AnonymousShopper(t *testing.T) {
	s := newTestServer(t, 1)

	rec := s.do(http.MethodGet, "/api/v1/cart", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[CartResponseDTO](t, rec)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.ItemCount)

	rec = s.do(http.MethodPost, "/api/v1/cart/items", "", AddItemRequestDTO{VariantID: "v-floral-s-rosa", Quantity: 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth_required", decode[ErrorResponse](t, rec).Code)
}

func TestCart_InvalidToken(t *testing.T) {
	s := newTestServer(t, 1)

	other, err := IssueToken([]byte("some-other-secret-of-enough-length!!"), "alice", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, "alice", -time.Minute)
	require.NoError(t, err)

	for _, tok := range []string{"garbage", other, expired} {
		rec := s.do(http.MethodGet, "/api/v1/cart", tok, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_token", decode[ErrorResponse](t, rec).Code)
	}
}

func TestCart_AddUpdateRemove(t *testing.T) {
	s := newTestServer(t, 1)
	tok := token(t, "alice")

	rec := s.do(http.MethodPost, "/api/v1/cart/items", tok, AddItemRequestDTO{VariantID: "v-floral-m-celeste", Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/api/v1/cart/items", tok, AddItemRequestDTO{VariantID: "v-floral-m-celeste", Quantity: 3})
	require.Equal(t, http.StatusCreated, rec.Code)

	cart := decode[CartResponseDTO](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 5, cart.ItemCount)
	assert.True(t, decimal.NewFromInt(225000).Equal(cart.Total), cart.Total.String())
	itemID := cart.Items[0].ID

	rec = s.do(http.MethodPut, "/api/v1/cart/items/"+itemID, tok, map[string]int{"quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[CartResponseDTO](t, rec).ItemCount)

	rec = s.do(http.MethodPost, "/api/v1/cart/items/"+itemID+"/increment", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[CartResponseDTO](t, rec).ItemCount)

	rec = s.do(http.MethodPut, "/api/v1/cart/items/"+itemID, tok, map[string]int{"quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[CartResponseDTO](t, rec).Items)

	rec = s.do(http.MethodDelete, "/api/v1/cart/items/"+itemID, tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPut, "/api/v1/cart/items/"+itemID, tok, map[string]int{"quantity": 4})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCart_AddBySelection(t *testing.T) {
	s := newTestServer(t, 1)
	tok := token(t, "alice")

	rec := s.do(http.MethodPost, "/api/v1/cart/items", tok, AddItemRequestDTO{ProductID: "p-vestido-floral", Size: "M", Quantity: 1})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "validation_failed", errResp.Code)
	assert.Equal(t, "color", errResp.Details)

	rec = s.do(http.MethodPost, "/api/v1/cart/items", tok, AddItemRequestDTO{ProductID: "p-vestido-floral", Size: "L", Color: "Rosa", Quantity: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "stock_unavailable", decode[ErrorResponse](t, rec).Code)

	rec = s.do(http.MethodPost, "/api/v1/cart/items", tok, AddItemRequestDTO{ProductID: "p-blusa-saten", Size: "M", Color: "Champagne", Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	cart := decode[CartResponseDTO](t, rec)
	require.Len(t, cart.Items, 1)
	assert.True(t, decimal.NewFromInt(33500).Equal(cart.Items[0].UnitPrice))
}

func TestProducts_Selection(t *testing.T) {
	s := newTestServer(t, 1)

	rec := s.do(http.MethodGet, "/api/v1/products/p-vestido-floral/selection?size=M&color=Rosa", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[service.SelectionView](t, rec)
	require.NotNil(t, view.Selection.Variant)
	assert.Equal(t, "v-floral-m-rosa", view.Selection.Variant.ID)
	assert.Equal(t, 2, view.Selection.Stock)
	assert.True(t, view.Selection.LowStock)
	assert.Equal(t, []string{"Rosa", "Celeste"}, view.Colors)
	assert.Contains(t, view.Sizes, domain.SizeOption{Size: "L", Available: false})

	rec = s.do(http.MethodGet, "/api/v1/products/p-nope/selection", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Products []domain.Product `json:"products"`
	}](t, rec)
	assert.Len(t, list.Products, 5)
}

func TestCheckout_EmptyCartIsRefused(t *testing.T) {
	s := newTestServer(t, 1)

	rec := s.do(http.MethodPost, "/api/v1/checkout", token(t, "alice"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cart_empty", decode[ErrorResponse](t, rec).Code)

	rec = s.do(http.MethodPost, "/api/v1/checkout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckout_FullFlowBankTransfer(t *testing.T) {
	s := newTestServer(t, 1)
	tok := token(t, "alice")

	rec := s.do(http.MethodPost, "/api/v1/cart/items", tok, AddItemRequestDTO{VariantID: "v-panuelo-u-rose", Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/checkout", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	co := decode[CheckoutResponseDTO](t, rec)
	assert.Equal(t, "shipping", co.StepName)
	assert.True(t, decimal.NewFromInt(34500).Equal(co.Total), co.Total.String())

	rec = s.do(http.MethodPost, "/api/v1/checkout/place-order", tok, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPut, "/api/v1/checkout/shipping", tok, domain.ShippingDetails{FullName: "Ana", City: "Córdoba"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	partial := decode[struct {
		ErrorResponse
		Checkout CheckoutResponseDTO `json:"checkout"`
	}](t, rec)
	assert.Equal(t, "address,postal_code", partial.Details)
	assert.Equal(t, "Ana", partial.Checkout.Session.Shipping.FullName)

	rec = s.do(http.MethodPut, "/api/v1/checkout/shipping", tok, domain.ShippingDetails{
		FullName: "Ana", Address: "San Martín 120", City: "Córdoba", PostalCode: "5000",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payment", decode[CheckoutResponseDTO](t, rec).StepName)

	rec = s.do(http.MethodPut, "/api/v1/checkout/payment-method", tok, PaymentMethodRequestDTO{PaymentMethod: domain.PaymentMethodBankTransfer})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/checkout/place-order", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	placed := decode[CheckoutResponseDTO](t, rec)
	assert.Equal(t, "confirmation", placed.StepName)
	assert.Equal(t, 3, placed.StepIndex)
	assert.Equal(t, 100, placed.Progress)
	require.NotNil(t, placed.Order)
	assert.Equal(t, domain.OrderStatusAwaitingPayment, placed.Order.Order.Status)
	assert.Equal(t, domain.PaymentStatusPending, placed.Order.Payment.Status)
	assert.True(t, decimal.NewFromInt(34500).Equal(placed.Order.Order.TotalAmount))
	assert.Equal(t, []string{domain.EventOrderPlaced}, s.store.eventTypes())

	rec = s.do(http.MethodGet, "/api/v1/cart", tok, nil)
	assert.Equal(t, 0, decode[CartResponseDTO](t, rec).ItemCount)

	rec = s.do(http.MethodGet, "/api/v1/checkout", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, placed.Order.Order.OrderNumber, decode[CheckoutResponseDTO](t, rec).Session.OrderNumber)

	rec = s.do(http.MethodGet, "/api/v1/orders", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ListOrdersResponseDTO](t, rec).Orders, 1)

	rec = s.do(http.MethodGet, "/api/v1/orders/"+placed.Order.Order.ID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[domain.OrderDetails](t, rec).Items, 1)

	rec = s.do(http.MethodGet, "/api/v1/orders/"+placed.Order.Order.ID, token(t, "bob"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout_DeclinedPaymentKeepsCart(t *testing.T) {
	s := newTestServer(t, 0)
	tok := token(t, "alice")

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/cart/items", tok, AddItemRequestDTO{VariantID: "v-plisada-u-verde", Quantity: 1}).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/checkout", tok, nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/v1/checkout/shipping", tok, domain.ShippingDetails{
		FullName: "Ana", Address: "San Martín 120", City: "Córdoba", PostalCode: "5000",
	}).Code)

	rec := s.do(http.MethodPost, "/api/v1/checkout/place-order", tok, nil)
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "payment_declined", errResp.Code)
	assert.Equal(t, "step: authorize", errResp.Details)

	rec = s.do(http.MethodGet, "/api/v1/cart", tok, nil)
	assert.Equal(t, 1, decode[CartResponseDTO](t, rec).ItemCount)

	rec = s.do(http.MethodGet, "/api/v1/checkout", tok, nil)
	assert.Equal(t, "payment", decode[CheckoutResponseDTO](t, rec).StepName)
	assert.Equal(t, []string{domain.EventOrderPaymentFailed}, s.store.eventTypes())
}

func TestCheckout_ShippingPrefilledFromProfile(t *testing.T) {
	s := newTestServer(t, 1)
	tok := token(t, "alice")
	profile := domain.ShippingDetails{FullName: "Ana", Address: "San Martín 120", City: "Córdoba", PostalCode: "5000"}
	s.store.profiles["alice"] = profile

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/cart/items", tok, AddItemRequestDTO{VariantID: "v-plisada-u-verde", Quantity: 1}).Code)
	rec := s.do(http.MethodPost, "/api/v1/checkout", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, profile, decode[CheckoutResponseDTO](t, rec).Session.Shipping)
}
