package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"storefront/internal/domain"
	identitysvc "storefront/internal/service/identity"
)

func logDiscard() *zap.Logger {
	return zap.NewNop()
}

func doRequest(env *testEnv, method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func guestCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == identitysvc.CookieName {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestBuildRouter_RequiresDependencies(t *testing.T) {
	if _, err := buildRouter(logDiscard(), nil, Deps{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz_NoDatabase(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestCart_MintsGuestCookie(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env, http.MethodGet, "/cart", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	c := guestCookie(rec)
	if c == nil || c.Value == "" {
		t.Fatal("expected guest cookie to be issued")
	}
	if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Fatalf("unexpected cookie attributes %+v", c)
	}
	if c.MaxAge != int(identitysvc.GuestTTL.Seconds()) {
		t.Fatalf("unexpected max age %d", c.MaxAge)
	}

	again := doRequest(env, http.MethodGet, "/cart", "", func(r *http.Request) { r.AddCookie(c) })
	if guestCookie(again) != nil {
		t.Fatal("existing credential should not be replaced")
	}
}

func TestCart_AddItemOverLimit(t *testing.T) {
	env := newTestEnv(t)
	first := doRequest(env, http.MethodPost, "/cart/items", `{"productId":1,"quantity":8}`, nil)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", first.Code, first.Body.String())
	}
	cookie := guestCookie(first)

	rec := doRequest(env, http.MethodPost, "/cart/items", `{"productId":1,"quantity":3}`, func(r *http.Request) { r.AddCookie(cookie) })
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["reason"] != "quantity_exceeded" || body["current"] != float64(8) || body["requested"] != float64(3) || body["max"] != float64(10) {
		t.Fatalf("unexpected body %v", body)
	}
	if body["productId"] != float64(1) {
		t.Fatalf("expected product id in body, got %v", body)
	}
}

func TestCart_UnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env, http.MethodPost, "/cart/items", `{"productId":99,"quantity":1}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if decode(t, rec)["reason"] != "not_found" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestCart_MalformedLineID(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env, http.MethodDelete, "/cart/items/abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if decode(t, rec)["reason"] != "invalid_input" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestCart_MergeRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env, http.MethodPost, "/cart/merge", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCart_InvalidTokenFallsBackToGuest(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env, http.MethodGet, "/cart", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-token")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if guestCookie(rec) == nil {
		t.Fatal("expected guest credential for invalid token")
	}
}

func TestLogin_MergesGuestCartAndClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	add := doRequest(env, http.MethodPost, "/cart/items", `{"productId":1,"quantity":7}`, nil)
	cookie := guestCookie(add)
	if cookie == nil {
		t.Fatal("expected guest cookie")
	}
	doRequest(env, http.MethodPost, "/cart/items", `{"productId":2,"quantity":3}`, func(r *http.Request) { r.AddCookie(cookie) })

	rec := doRequest(env, http.MethodPost, "/auth/login", `{"email":"user@example.com","password":"Abcdefg1"}`, func(r *http.Request) { r.AddCookie(cookie) })
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["itemsMerged"] != float64(2) || body["accessToken"] == "" {
		t.Fatalf("unexpected body %v", body)
	}
	cleared := guestCookie(rec)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected guest cookie to be cleared, got %+v", cleared)
	}

	token := "Bearer " + body["accessToken"].(string)
	cart := doRequest(env, http.MethodGet, "/cart", "", func(r *http.Request) { r.Header.Set("Authorization", token) })
	summary := decode(t, cart)
	lines := summary["lines"].([]any)
	if len(lines) != 2 {
		t.Fatalf("expected 2 merged lines, got %v", lines)
	}
	pricing := summary["pricing"].(map[string]any)
	// 7*2500 + 3*1000 = 20500 subtotal, free shipping, 1435 tax.
	if pricing["totalCents"] != float64(21935) {
		t.Fatalf("unexpected pricing %v", pricing)
	}

	// The merged credential is retired: presenting it again yields a fresh guest.
	stale := doRequest(env, http.MethodGet, "/cart", "", func(r *http.Request) { r.AddCookie(cookie) })
	fresh := guestCookie(stale)
	if fresh == nil || fresh.Value == cookie.Value {
		t.Fatalf("expected a new guest credential after merge, got %+v", fresh)
	}
}

func TestAuthEvents_MergeGuestCart(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"register", "/auth/register", `{"email":"user@example.com","password":"Abcdefg1","name":"Ada"}`, http.StatusCreated},
		{"verify email", "/auth/verify-email", `{"token":"verify-me"}`, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			add := doRequest(env, http.MethodPost, "/cart/items", `{"productId":2,"quantity":3}`, nil)
			cookie := guestCookie(add)
			if cookie == nil {
				t.Fatal("expected guest cookie")
			}

			rec := doRequest(env, http.MethodPost, tc.path, tc.body, func(r *http.Request) { r.AddCookie(cookie) })
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d body=%s", tc.status, rec.Code, rec.Body.String())
			}
			body := decode(t, rec)
			if body["itemsMerged"] != float64(1) {
				t.Fatalf("expected one merged line, got %v", body)
			}
			if cleared := guestCookie(rec); cleared == nil || cleared.MaxAge >= 0 {
				t.Fatalf("expected guest cookie to be cleared, got %+v", cleared)
			}

			token := "Bearer " + body["accessToken"].(string)
			lines := decode(t, doRequest(env, http.MethodGet, "/cart", "", func(r *http.Request) { r.Header.Set("Authorization", token) }))["lines"].([]any)
			if len(lines) != 1 {
				t.Fatalf("expected the guest line under the principal, got %v", lines)
			}
			line := lines[0].(map[string]any)
			if line["productId"] != float64(2) || line["quantity"] != float64(3) {
				t.Fatalf("unexpected merged line %v", line)
			}
		})
	}
}

func TestGuestToCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)
	add := doRequest(env, http.MethodPost, "/cart/items", `{"productId":2,"quantity":3}`, nil)
	cookie := guestCookie(add)

	reg := doRequest(env, http.MethodPost, "/auth/register", `{"email":"user@example.com","password":"Abcdefg1","name":"Ada"}`, func(r *http.Request) { r.AddCookie(cookie) })
	if reg.Code != http.StatusCreated {
		t.Fatalf("register: %d body=%s", reg.Code, reg.Body.String())
	}
	if cleared := guestCookie(reg); cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected guest cookie to be cleared, got %+v", cleared)
	}

	verify := doRequest(env, http.MethodPost, "/auth/verify-email", `{"token":"verify-me"}`, nil)
	if verify.Code != http.StatusOK {
		t.Fatalf("verify: %d body=%s", verify.Code, verify.Body.String())
	}
	body := decode(t, verify)
	if body["itemsMerged"] != float64(0) {
		t.Fatalf("nothing left to merge after register, got %v", body)
	}
	token := "Bearer " + body["accessToken"].(string)
	auth := func(r *http.Request) { r.Header.Set("Authorization", token) }

	lines := decode(t, doRequest(env, http.MethodGet, "/cart", "", auth))["lines"].([]any)
	if len(lines) != 1 || lines[0].(map[string]any)["quantity"] != float64(3) {
		t.Fatalf("expected 3 units under the principal, got %v", lines)
	}

	order := doRequest(env, http.MethodPost, "/orders", `{"customerName":"Ada Buyer","phone":"5550001111","address":"1 Main Street"}`, auth)
	if order.Code != http.StatusCreated {
		t.Fatalf("place order: %d body=%s", order.Code, order.Body.String())
	}
	placed := decode(t, order)["order"].(map[string]any)
	if placed["status"] != string(domain.StatusPending) || placed["principalId"] != "cust-1" {
		t.Fatalf("unexpected order %v", placed)
	}
}

func TestLogin_MergeFailureDoesNotFailLogin(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Merge = failingMerge{} })
	add := doRequest(env, http.MethodPost, "/cart/items", `{"productId":1,"quantity":1}`, nil)
	cookie := guestCookie(add)

	rec := doRequest(env, http.MethodPost, "/auth/login", `{"email":"user@example.com","password":"Abcdefg1"}`, func(r *http.Request) { r.AddCookie(cookie) })
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if guestCookie(rec) != nil {
		t.Fatal("guest cookie must be kept when the merge fails")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.customers.err = domain.ErrInvalidCredentials
	rec := doRequest(env, http.MethodPost, "/auth/login", `{"email":"user@example.com","password":"bad"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestEnsureUserCart_FoldsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	first := env.carts.AddCart("cust-1")
	env.carts.AddCart("cust-1")

	rec := doRequest(env, http.MethodPost, "/cart/ensure-user-cart", "", func(r *http.Request) {
		r.Header.Set("Authorization", env.bearer(t, "cust-1", domain.RoleCustomer))
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["cartId"] != float64(first) || body["cartsRemoved"] != float64(1) {
		t.Fatalf("unexpected body %v", body)
	}
	if got := len(env.carts.Carts("cust-1")); got != 1 {
		t.Fatalf("expected one cart left, got %d", got)
	}
}

func TestOrders_RequireAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env, http.MethodPost, "/orders", `{"customerName":"Al","phone":"5551234","address":"1 Main St"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestOrders_InsufficientStockBody(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.placeErr = &domain.InsufficientStockError{ProductID: 2, Title: "Beta", Requested: 5, Available: 1}
	rec := doRequest(env, http.MethodPost, "/orders", `{"customerName":"Al","phone":"5551234","address":"1 Main St"}`, func(r *http.Request) {
		r.Header.Set("Authorization", env.bearer(t, "cust-1", domain.RoleCustomer))
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["reason"] != "insufficient_stock" || body["productId"] != float64(2) || body["available"] != float64(1) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestOrders_StorageFailureIsOpaque(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.placeErr = domain.Storage("place order", errTest("connection refused"))
	rec := doRequest(env, http.MethodPost, "/orders", `{"customerName":"Al","phone":"5551234","address":"1 Main St"}`, func(r *http.Request) {
		r.Header.Set("Authorization", env.bearer(t, "cust-1", domain.RoleCustomer))
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("storage detail leaked: %s", rec.Body.String())
	}
}

func TestOrders_StatusRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env, http.MethodPut, "/orders/5/status", `{"status":"shipped"}`, func(r *http.Request) {
		r.Header.Set("Authorization", env.bearer(t, "cust-1", domain.RoleCustomer))
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	rec = doRequest(env, http.MethodPut, "/orders/5/status", `{"status":"shipped"}`, func(r *http.Request) {
		r.Header.Set("Authorization", env.bearer(t, "admin-1", domain.RoleAdmin))
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if env.checkout.lastTo != domain.StatusShipped || !env.checkout.lastActor.IsAdmin() {
		t.Fatalf("unexpected call to=%s actor=%+v", env.checkout.lastTo, env.checkout.lastActor)
	}
}

func TestOrders_UnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env, http.MethodPut, "/orders/5/status", `{"status":"lost"}`, func(r *http.Request) {
		r.Header.Set("Authorization", env.bearer(t, "admin-1", domain.RoleAdmin))
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOrders_InvalidTransitionBody(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.statusErr = &domain.InvalidTransitionError{From: domain.StatusShipped, To: domain.StatusUserCancelled}
	rec := doRequest(env, http.MethodPut, "/orders/user/5/cancel", "", func(r *http.Request) {
		r.Header.Set("Authorization", env.bearer(t, "admin-1", domain.RoleAdmin))
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["reason"] != "invalid_transition" || body["from"] != "shipped" {
		t.Fatalf("unexpected body %v", body)
	}
	if allowed, ok := body["allowed"].([]any); !ok || len(allowed) != 0 {
		t.Fatalf("expected empty allowed list, got %v", body["allowed"])
	}
	if env.checkout.lastActor.Role != domain.RoleCustomer {
		t.Fatalf("owner cancel must act as customer, got %+v", env.checkout.lastActor)
	}
}

func TestOrders_ForeignOrderIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.order = &domain.Order{ID: 9, PrincipalID: "someone-else"}
	rec := doRequest(env, http.MethodGet, "/orders/9", "", func(r *http.Request) {
		r.Header.Set("Authorization", env.bearer(t, "cust-1", domain.RoleCustomer))
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestProducts_List(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env, http.MethodGet, "/products?limit=10", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decode(t, rec)["count"] != float64(2) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
