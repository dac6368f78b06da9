package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/events"
	"storefront/internal/redisx"
	"storefront/internal/repository"
	"storefront/internal/repository/sqlite"
	"storefront/internal/service"
)

func init() { gin.SetMode(gin.TestMode) }

func setupServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fallback, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = fallback.Close() })
	demo, err := service.DemoAccounts()
	if err != nil {
		t.Fatal(err)
	}
	if err := fallback.Initialize(ctx, demo); err != nil {
		t.Fatal(err)
	}

	creds := service.NewCredentialStore(repository.NewFailover[repository.IdentityRepository](nil, fallback, logger))
	authSvc := service.NewAuthService(creds, auth.NewTokens("test-secret", time.Hour))
	catalog := service.NewCatalogService(repository.NewFailover[repository.ProductRepository](
		nil, repository.NewMemoryCatalog(repository.SampleProducts()...), logger))
	orders := service.NewOrderService(repository.NewMemoryOrders(), creds, events.NopPublisher{}, "storefront-test", logger)
	co := service.NewCheckoutCoordinator(catalog, orders, service.CheckoutOptions{
		Idempotency: redisx.NewMemoryIdempotency(),
		Logger:      logger,
	})
	return NewServer(Deps{
		Auth:     authSvc,
		Catalog:  catalog,
		Orders:   orders,
		Checkout: co,
		Carts:    cart.NewMemorySlots(),
		Health: map[string]HealthCheck{
			"primary":  func(context.Context) error { return errors.New("connection refused") },
			"fallback": func(context.Context) error { return nil },
		},
		Logger: logger,
	})
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func login(t *testing.T, s *Server, email, password string) string {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]any{"email": email, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: %v %s", email, w.Code, w.Body.String())
	}
	return decode(t, w)["token"].(string)
}

var shipping = map[string]any{
	"street": "1 Main St", "city": "Springfield", "state": "IL", "zipCode": "62701", "country": "US",
}

func TestAuthFlow(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Jane", "email": "jane@example.com", "password": "secret1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register code %v", w.Code)
	}
	token := decode(t, w)["token"].(string)

	// duplicate, case-insensitive
	w = doJSON(t, s, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Jane", "email": "JANE@example.com", "password": "secret1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register code %v", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "jane@example.com", "password": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login code %v", w.Code)
	}
	if msg := decode(t, w)["message"]; msg != "invalid credentials" {
		t.Fatalf("bad login message %q", msg)
	}

	w = doJSON(t, s, http.MethodGet, "/api/auth/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me code %v", w.Code)
	}
	user := decode(t, w)["user"].(map[string]any)
	if user["email"] != "jane@example.com" || user["role"] != "user" {
		t.Fatalf("me user %v", user)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Fatal("password hash in response")
	}

	w = doJSON(t, s, http.MethodPut, "/api/users/profile", token, map[string]any{"phone": "555-0100"})
	if w.Code != http.StatusOK {
		t.Fatalf("profile code %v", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/auth/me", "garbage", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token code %v", w.Code)
	}
}

func TestProductFlow(t *testing.T) {
	s := setupServer(t)
	admin := login(t, s, "admin@local.test", "admin123")
	demo := login(t, s, "demo@local.test", "demo123")

	w := doJSON(t, s, http.MethodGet, "/api/products?category=Sports&sortBy=price&order=asc", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list code %v", w.Code)
	}
	body := decode(t, w)
	if body["total"].(float64) != 3 {
		t.Fatalf("sports total %v", body["total"])
	}
	first := body["products"].([]any)[0].(map[string]any)
	if first["id"] != "p10" {
		t.Fatalf("cheapest sports product %v", first["id"])
	}

	w = doJSON(t, s, http.MethodGet, "/api/products?sortBy=color", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown sort code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/products?minPrice=abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad minPrice code %v", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/products/featured", "", nil)
	if w.Code != http.StatusOK || len(decode(t, w)["products"].([]any)) != 5 {
		t.Fatalf("featured %v %s", w.Code, w.Body.String())
	}

	newProduct := map[string]any{"name": "Desk Lamp", "price": 24.5, "category": "Home & Garden", "stock": 3}
	if w = doJSON(t, s, http.MethodPost, "/api/products", "", newProduct); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create code %v", w.Code)
	}
	if w = doJSON(t, s, http.MethodPost, "/api/products", demo, newProduct); w.Code != http.StatusForbidden {
		t.Fatalf("customer create code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/products", admin, newProduct)
	if w.Code != http.StatusCreated {
		t.Fatalf("create code %v %s", w.Code, w.Body.String())
	}
	id := decode(t, w)["product"].(map[string]any)["id"].(string)

	w = doJSON(t, s, http.MethodPut, "/api/products/"+id, admin, map[string]any{"price": 19.5})
	if w.Code != http.StatusOK {
		t.Fatalf("update code %v", w.Code)
	}
	p := decode(t, w)["product"].(map[string]any)
	if p["price"].(float64) != 19.5 || p["name"] != "Desk Lamp" {
		t.Fatalf("patched product %v", p)
	}

	if w = doJSON(t, s, http.MethodDelete, "/api/products/"+id, admin, nil); w.Code != http.StatusOK {
		t.Fatalf("delete code %v", w.Code)
	}
	if w = doJSON(t, s, http.MethodGet, "/api/products/"+id, "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get deleted code %v", w.Code)
	}
}

func TestCartCheckoutFlow(t *testing.T) {
	s := setupServer(t)
	demo := login(t, s, "demo@local.test", "demo123")

	if w := doJSON(t, s, http.MethodPost, "/api/cart/items", demo, map[string]any{"productId": "p10", "quantity": 2}); w.Code != http.StatusOK {
		t.Fatalf("add code %v", w.Code)
	}
	w := doJSON(t, s, http.MethodPost, "/api/cart/items", demo, map[string]any{"productId": "p9"})
	if w.Code != http.StatusOK {
		t.Fatalf("add code %v", w.Code)
	}
	if total := decode(t, w)["total"].(float64); total != 93.99 {
		t.Fatalf("cart total %v", total)
	}
	if w = doJSON(t, s, http.MethodPost, "/api/cart/items", demo, map[string]any{"productId": "nope"}); w.Code != http.StatusNotFound {
		t.Fatalf("add unknown code %v", w.Code)
	}

	// missing shipping rejects and keeps the cart
	w = doJSON(t, s, http.MethodPost, "/api/checkout", demo, map[string]any{"shippingAddress": map[string]any{"city": "X"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("rejected checkout code %v", w.Code)
	}
	if state := decode(t, w)["state"]; state != string(service.StateRejected) {
		t.Fatalf("rejected state %v", state)
	}
	if w = doJSON(t, s, http.MethodGet, "/api/cart", demo, nil); decode(t, w)["count"].(float64) != 2 {
		t.Fatalf("cart after rejection %s", w.Body.String())
	}

	w = doJSON(t, s, http.MethodPost, "/api/checkout", demo, map[string]any{"shippingAddress": shipping}, IdempotencyHeader, "k-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout code %v %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	order := body["order"].(map[string]any)
	if order["totalPrice"].(float64) != 93.99 || order["isPaid"] != false || order["paymentMethod"] != "stripe" {
		t.Fatalf("order %v", order)
	}
	if w = doJSON(t, s, http.MethodGet, "/api/cart", demo, nil); decode(t, w)["count"].(float64) != 0 {
		t.Fatalf("cart after checkout %s", w.Body.String())
	}

	// replay with the same key returns the first order
	w = doJSON(t, s, http.MethodPost, "/api/checkout", demo, map[string]any{"shippingAddress": shipping}, IdempotencyHeader, "k-1")
	if w.Code != http.StatusOK {
		t.Fatalf("replay code %v %s", w.Code, w.Body.String())
	}
	if again := decode(t, w)["order"].(map[string]any); again["id"] != order["id"] {
		t.Fatalf("replayed order %v, want %v", again["id"], order["id"])
	}

	// empty cart without a key is rejected
	if w = doJSON(t, s, http.MethodPost, "/api/checkout", demo, map[string]any{"shippingAddress": shipping}); w.Code != http.StatusBadRequest {
		t.Fatalf("empty cart checkout code %v", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/orders/myorders", demo, nil)
	if w.Code != http.StatusOK || len(decode(t, w)["orders"].([]any)) != 1 {
		t.Fatalf("myorders %v %s", w.Code, w.Body.String())
	}
}

func TestCartEdits(t *testing.T) {
	s := setupServer(t)
	demo := login(t, s, "demo@local.test", "demo123")

	// clamped to stock (p3 has 12)
	w := doJSON(t, s, http.MethodPost, "/api/cart/items", demo, map[string]any{"productId": "p3", "quantity": 50})
	if w.Code != http.StatusOK {
		t.Fatalf("add code %v", w.Code)
	}
	line := decode(t, w)["items"].([]any)[0].(map[string]any)
	if line["quantity"].(float64) != 12 {
		t.Fatalf("clamped quantity %v", line["quantity"])
	}

	if w = doJSON(t, s, http.MethodPut, "/api/cart/items/p3", demo, map[string]any{"quantity": 0}); w.Code != http.StatusOK {
		t.Fatalf("set code %v", w.Code)
	}
	if line = decode(t, w)["items"].([]any)[0].(map[string]any); line["quantity"].(float64) != 1 {
		t.Fatalf("quantity floor %v", line["quantity"])
	}
	if w = doJSON(t, s, http.MethodDelete, "/api/cart/items/p4", demo, nil); w.Code != http.StatusNotFound {
		t.Fatalf("remove missing code %v", w.Code)
	}
	if w = doJSON(t, s, http.MethodDelete, "/api/cart/items/p3", demo, nil); w.Code != http.StatusOK {
		t.Fatalf("remove code %v", w.Code)
	}
	if w = doJSON(t, s, http.MethodDelete, "/api/cart", demo, nil); w.Code != http.StatusOK || decode(t, w)["count"].(float64) != 0 {
		t.Fatalf("clear %v %s", w.Code, w.Body.String())
	}
}

func TestOrderAccess(t *testing.T) {
	s := setupServer(t)
	admin := login(t, s, "admin@local.test", "admin123")
	demo := login(t, s, "demo@local.test", "demo123")
	w := doJSON(t, s, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Other", "email": "other@example.com", "password": "secret1",
	})
	other := decode(t, w)["token"].(string)

	w = doJSON(t, s, http.MethodPost, "/api/orders", demo, map[string]any{"shippingAddress": shipping})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty order code %v", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/orders", demo, map[string]any{
		"orderItems":      []map[string]any{{"product": "p1", "name": "Headphones", "price": 10, "quantity": 3}},
		"shippingAddress": shipping,
		"paymentMethod":   "stripe",
		"taxPrice":        1.5,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create order code %v %s", w.Code, w.Body.String())
	}
	order := decode(t, w)["order"].(map[string]any)
	if order["itemsPrice"].(float64) != 30 || order["totalPrice"].(float64) != 31.5 {
		t.Fatalf("order prices %v", order)
	}
	id := order["id"].(string)

	if w = doJSON(t, s, http.MethodGet, "/api/orders/"+id, other, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign get code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/orders/"+id, admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin get code %v", w.Code)
	}
	if owner := decode(t, w)["order"].(map[string]any)["user"].(map[string]any); owner["email"] != "demo@local.test" {
		t.Fatalf("owner %v", owner)
	}

	if w = doJSON(t, s, http.MethodPut, "/api/orders/"+id+"/pay", other, map[string]any{"id": "pi_1", "status": "succeeded"}); w.Code != http.StatusForbidden {
		t.Fatalf("foreign pay code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPut, "/api/orders/"+id+"/pay", demo, map[string]any{"id": "pi_1", "status": "succeeded"})
	if w.Code != http.StatusOK || decode(t, w)["order"].(map[string]any)["isPaid"] != true {
		t.Fatalf("pay %v %s", w.Code, w.Body.String())
	}

	if w = doJSON(t, s, http.MethodPut, "/api/orders/"+id+"/deliver", demo, nil); w.Code != http.StatusForbidden {
		t.Fatalf("customer deliver code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPut, "/api/orders/"+id+"/deliver", admin, nil)
	if w.Code != http.StatusOK || decode(t, w)["order"].(map[string]any)["isDelivered"] != true {
		t.Fatalf("deliver %v %s", w.Code, w.Body.String())
	}

	if w = doJSON(t, s, http.MethodGet, "/api/orders", demo, nil); w.Code != http.StatusForbidden {
		t.Fatalf("customer list all code %v", w.Code)
	}
	if w = doJSON(t, s, http.MethodGet, "/api/orders", admin, nil); w.Code != http.StatusOK {
		t.Fatalf("admin list all code %v", w.Code)
	}
}

func TestPaymentIntentWithoutGateway(t *testing.T) {
	s := setupServer(t)
	demo := login(t, s, "demo@local.test", "demo123")
	w := doJSON(t, s, http.MethodPost, "/api/stripe/create-payment-intent", demo, map[string]any{"amount": 44.98})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("intent code %v", w.Code)
	}
}

func TestHealthAndCORS(t *testing.T) {
	s := setupServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health code %v", w.Code)
	}
	body := decode(t, w)
	backends := body["backends"].(map[string]any)
	if backends["primary"] != "down" || backends["fallback"] != "up" || body["payments"] != "unsecured" {
		t.Fatalf("health %v", body)
	}

	w = doJSON(t, s, http.MethodOptions, "/api/checkout", "", nil)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight %v %v", w.Code, w.Header())
	}
}

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&service.CheckoutError{State: service.StateRejected, Err: repository.ErrNotFound}, http.StatusNotFound},
		{&repository.ConnectivityError{Op: "get", Err: errors.New("refused")}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToStatus(tc.err); got != tc.want {
			t.Errorf("mapErrorToStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
