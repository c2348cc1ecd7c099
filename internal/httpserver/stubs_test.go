package httpserver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/repository/cart/memory"
	orderrepo "storefront/internal/repository/order"
	"storefront/internal/revocation"
	cartsvc "storefront/internal/service/cart"
	customersvc "storefront/internal/service/customer"
	identitysvc "storefront/internal/service/identity"
	mergesvc "storefront/internal/service/merge"
)

const testSecret = "test-secret"

type stubCatalog struct {
	products map[int64]domain.Product
}

func (s *stubCatalog) List(_ context.Context, _, _ int) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubCatalog) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.GetByID(ctx, id)
}

func (s *stubCatalog) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

type stubCustomers struct {
	customer *domain.Customer
	issuer   *identitysvc.Service
	err      error
}

func (s *stubCustomers) session() (*customersvc.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	token, err := s.issuer.IssueAccessToken(s.customer.ID, s.customer.Role)
	if err != nil {
		return nil, err
	}
	return &customersvc.Session{Customer: s.customer, AccessToken: token}, nil
}

func (s *stubCustomers) Register(_ context.Context, _ customersvc.RegisterInput) (*customersvc.Session, error) {
	return s.session()
}

func (s *stubCustomers) Login(_ context.Context, _, _ string) (*customersvc.Session, error) {
	return s.session()
}

func (s *stubCustomers) VerifyEmail(_ context.Context, _ string) (*customersvc.Session, error) {
	return s.session()
}

type stubCheckout struct {
	mu        sync.Mutex
	placeErr  error
	statusErr error
	order     *domain.Order
	lastActor domain.Actor
	lastTo    domain.OrderStatus
}

func (s *stubCheckout) PlaceOrder(_ context.Context, principalID string, in domain.Contact) (*orderrepo.Placed, error) {
	if s.placeErr != nil {
		return nil, s.placeErr
	}
	o := &domain.Order{ID: 1, PrincipalID: principalID, Status: domain.StatusPending, Contact: in}
	return &orderrepo.Placed{Order: o}, nil
}

func (s *stubCheckout) SetStatus(_ context.Context, orderID int64, to domain.OrderStatus, actor domain.Actor) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActor = actor
	s.lastTo = to
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &domain.Order{ID: orderID, PrincipalID: actor.PrincipalID, Status: to}, nil
}

func (s *stubCheckout) GetOrder(_ context.Context, orderID int64, actor domain.Actor) (*domain.Order, error) {
	if s.order == nil || (!actor.IsAdmin() && s.order.PrincipalID != actor.PrincipalID) {
		return nil, domain.ErrNotFound
	}
	return s.order, nil
}

func (s *stubCheckout) ListOrders(_ context.Context, _ string) ([]domain.Order, error) {
	return nil, nil
}

type failingMerge struct{}

func (failingMerge) PromoteGuest(context.Context, string, string) (mergesvc.Result, error) {
	return mergesvc.Result{}, domain.Storage("merge guest cart", context.DeadlineExceeded)
}

func (failingMerge) Consolidate(context.Context, string) (cartrepo.ConsolidateResult, error) {
	return cartrepo.ConsolidateResult{}, nil
}

type testEnv struct {
	router    *gin.Engine
	identity  *identitysvc.Service
	carts     *memory.Repository
	checkout  *stubCheckout
	customers *stubCustomers
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := &stubCatalog{products: map[int64]domain.Product{
		1: {ID: 1, SKU: "A", Name: "Alpha", PriceCents: 2500, Stock: 20},
		2: {ID: 2, SKU: "B", Name: "Beta", PriceCents: 1000, Stock: 20},
	}}
	repo := memory.New(catalog.products[1], catalog.products[2])
	identity := identitysvc.New(testSecret, time.Hour, revocation.NewMemory(), nil)
	checkout := &stubCheckout{}
	customers := &stubCustomers{
		customer: &domain.Customer{ID: "cust-1", Email: "user@example.com", Role: domain.RoleCustomer},
		issuer:   identity,
	}

	deps := Deps{
		Identity:  identity,
		Products:  catalog,
		Carts:     cartsvc.New(repo, catalog, nil),
		Merge:     mergesvc.New(repo, identity, nil, nil),
		Checkout:  checkout,
		Customers: customers,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	router, err := buildRouter(logDiscard(), nil, deps)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return &testEnv{router: router, identity: identity, carts: repo, checkout: checkout, customers: customers}
}

func (e *testEnv) bearer(t *testing.T, principalID string, role domain.Role) string {
	t.Helper()
	token, err := e.identity.IssueAccessToken(principalID, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}
