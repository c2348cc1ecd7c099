package order

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/testdb"
)

var contact = domain.Contact{CustomerName: "Ada Buyer", Phone: "5550001111", Address: "1 Main Street"}

func stockOf(t *testing.T, pool *pgxpool.Pool, id int64) int {
	t.Helper()
	var stock int
	if err := pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

func TestPostgres_PlaceFromCart(t *testing.T) {
	ctx := context.Background()
	pool := testdb.Pool(t)
	a := testdb.InsertProduct(t, pool, "A", 2500, 5)
	b := testdb.InsertProduct(t, pool, "B", 1000, 5)
	carts := cartrepo.NewPostgres(pool, nil)
	cart, err := carts.Ensure(ctx, "user-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := carts.CartLines(cart.ID).Add(ctx, a, 3); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := carts.CartLines(cart.ID).Add(ctx, b, 1); err != nil {
		t.Fatalf("add b: %v", err)
	}

	repo := NewPostgres(pool, nil)
	placed, err := repo.PlaceFromCart(ctx, cart.ID, "user-1", contact)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	o := placed.Order
	if o.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", o.Status)
	}
	want := domain.ComputePricing(8500)
	if o.Pricing != want {
		t.Fatalf("expected pricing %+v, got %+v", want, o.Pricing)
	}
	if len(o.Lines) != 2 {
		t.Fatalf("expected 2 order lines, got %d", len(o.Lines))
	}
	if stockOf(t, pool, a) != 2 || stockOf(t, pool, b) != 4 {
		t.Fatalf("expected stock decremented")
	}
	lines, err := carts.CartLines(cart.ID).List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected cart cleared, got %d lines", len(lines))
	}

	got, err := repo.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalCents != want.TotalCents || got.CustomerName != contact.CustomerName || len(got.Lines) != 2 {
		t.Fatalf("unexpected stored order %+v", got)
	}
	list, err := repo.ListByPrincipal(ctx, "user-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one order in history, got %d err=%v", len(list), err)
	}
}

func TestPostgres_PlaceFromCart_InsufficientStockRollsBack(t *testing.T) {
	ctx := context.Background()
	pool := testdb.Pool(t)
	a := testdb.InsertProduct(t, pool, "A", 1000, 2)
	carts := cartrepo.NewPostgres(pool, nil)
	cart, err := carts.Ensure(ctx, "user-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := carts.CartLines(cart.ID).Add(ctx, a, 3); err != nil {
		t.Fatalf("add: %v", err)
	}

	repo := NewPostgres(pool, nil)
	_, err = repo.PlaceFromCart(ctx, cart.ID, "user-1", contact)
	var se *domain.InsufficientStockError
	if !errors.As(err, &se) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if se.ProductID != a || se.Requested != 3 || se.Available != 2 {
		t.Fatalf("unexpected detail %+v", se)
	}
	if stockOf(t, pool, a) != 2 {
		t.Fatalf("expected stock untouched")
	}
	var orders int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&orders); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 0 {
		t.Fatalf("expected no order, got %d", orders)
	}

	if _, err := pool.Exec(ctx, `UPDATE products SET stock = 3 WHERE id = $1`, a); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if _, err := repo.PlaceFromCart(ctx, cart.ID, "user-1", contact); err != nil {
		t.Fatalf("retry after restock: %v", err)
	}
	if stockOf(t, pool, a) != 0 {
		t.Fatalf("expected stock 0 after retry")
	}
}

func TestPostgres_PlaceFromCart_ReportsFirstShortLineInCartOrder(t *testing.T) {
	ctx := context.Background()
	pool := testdb.Pool(t)
	low := testdb.InsertProduct(t, pool, "LOW", 1000, 1)
	high := testdb.InsertProduct(t, pool, "HIGH", 1000, 1)
	carts := cartrepo.NewPostgres(pool, nil)
	cart, err := carts.Ensure(ctx, "user-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := carts.CartLines(cart.ID).Add(ctx, high, 2); err != nil {
		t.Fatalf("add high: %v", err)
	}
	if _, err := carts.CartLines(cart.ID).Add(ctx, low, 2); err != nil {
		t.Fatalf("add low: %v", err)
	}

	_, err = NewPostgres(pool, nil).PlaceFromCart(ctx, cart.ID, "user-1", contact)
	var se *domain.InsufficientStockError
	if !errors.As(err, &se) || se.ProductID != high {
		t.Fatalf("expected shortage on the first cart line %d, got %v", high, err)
	}
}

func TestPostgres_GuestCartMergedThenCheckedOut(t *testing.T) {
	ctx := context.Background()
	pool := testdb.Pool(t)
	p := testdb.InsertProduct(t, pool, "P42", 1999, 10)
	carts := cartrepo.NewPostgres(pool, nil)

	if _, err := carts.GuestLines("guest-1").Add(ctx, p, 3); err != nil {
		t.Fatalf("guest add: %v", err)
	}
	merged, err := carts.MergeGuest(ctx, "guest-1", "user-1")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.ItemsMerged != 1 {
		t.Fatalf("expected one merged line, got %+v", merged)
	}
	lines, err := carts.CartLines(merged.CartID).List(ctx)
	if err != nil || len(lines) != 1 || lines[0].ProductID != p || lines[0].Quantity != 3 {
		t.Fatalf("expected %dx3 under the principal, got %+v err=%v", p, lines, err)
	}
	if left, err := carts.GuestLines("guest-1").List(ctx); err != nil || len(left) != 0 {
		t.Fatalf("expected guest storage emptied, got %+v err=%v", left, err)
	}

	placed, err := NewPostgres(pool, nil).PlaceFromCart(ctx, merged.CartID, "user-1", contact)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if placed.Order.Status != domain.StatusPending || placed.Order.Pricing != domain.ComputePricing(5997) {
		t.Fatalf("unexpected order %+v", placed.Order)
	}
	if got := stockOf(t, pool, p); got != 7 {
		t.Fatalf("expected stock 7, got %d", got)
	}
	if after, err := carts.CartLines(merged.CartID).List(ctx); err != nil || len(after) != 0 {
		t.Fatalf("expected empty cart after checkout, got %+v err=%v", after, err)
	}
}

func TestPostgres_PlaceFromCart_Empty(t *testing.T) {
	ctx := context.Background()
	pool := testdb.Pool(t)
	cart, err := cartrepo.NewPostgres(pool, nil).Ensure(ctx, "user-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := NewPostgres(pool, nil).PlaceFromCart(ctx, cart.ID, "user-1", contact); !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestPostgres_UpdateStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	pool := testdb.Pool(t)
	a := testdb.InsertProduct(t, pool, "A", 1000, 5)
	carts := cartrepo.NewPostgres(pool, nil)
	cart, err := carts.Ensure(ctx, "user-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := carts.CartLines(cart.ID).Add(ctx, a, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	repo := NewPostgres(pool, nil)
	placed, err := repo.PlaceFromCart(ctx, cart.ID, "user-1", contact)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	updated, err := repo.UpdateStatus(ctx, placed.Order.ID, domain.StatusPending, domain.StatusProcessing)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}
	if _, err := repo.UpdateStatus(ctx, placed.Order.ID, domain.StatusPending, domain.StatusCancelled); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	priced, err := repo.PricedLines(ctx, placed.Order.ID)
	if err != nil {
		t.Fatalf("priced lines: %v", err)
	}
	if len(priced) != 1 || priced[0].PriceCents != 1000 || priced[0].Quantity != 1 {
		t.Fatalf("unexpected priced lines %+v", priced)
	}
}
