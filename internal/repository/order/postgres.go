package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"storefront/internal/domain"
)

const maxTxAttempts = 3

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("order_repo")}
}

type cartItem struct {
	productID int64
	quantity  int
}

func (r *postgresRepo) PlaceFromCart(ctx context.Context, cartID int64, principalID string, contact domain.Contact) (*Placed, error) {
	var placed *Placed
	err := r.withRetry(ctx, "place order", func() error {
		var err error
		placed, err = r.placeOnce(ctx, cartID, principalID, contact)
		return err
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func (r *postgresRepo) placeOnce(ctx context.Context, cartID int64, principalID string, contact domain.Contact) (*Placed, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
SELECT product_id, quantity
FROM cart_lines
WHERE cart_id = $1
ORDER BY id ASC
FOR UPDATE
`, cartID)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cartItem, error) {
		var it cartItem
		err := row.Scan(&it.productID, &it.quantity)
		return it, err
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.productID
	}
	// Products are locked in id order so concurrent checkouts cannot deadlock.
	prodRows, err := tx.Query(ctx, `
SELECT id, name, price_cents, stock
FROM products
WHERE id = ANY($1)
ORDER BY id ASC
FOR UPDATE
`, ids)
	if err != nil {
		return nil, err
	}
	type lockedProduct struct {
		name  string
		price int64
		stock int
	}
	locked := make(map[int64]lockedProduct, len(ids))
	for prodRows.Next() {
		var (
			id int64
			lp lockedProduct
		)
		if err := prodRows.Scan(&id, &lp.name, &lp.price, &lp.stock); err != nil {
			prodRows.Close()
			return nil, err
		}
		locked[id] = lp
	}
	prodRows.Close()
	if err := prodRows.Err(); err != nil {
		return nil, err
	}

	lines := make([]domain.PricedLine, 0, len(items))
	for _, it := range items {
		p, ok := locked[it.productID]
		if !ok {
			return nil, domain.ErrNotFound
		}
		if p.stock < it.quantity {
			return nil, &domain.InsufficientStockError{
				ProductID: it.productID,
				Title:     p.name,
				Requested: it.quantity,
				Available: p.stock,
			}
		}
		lines = append(lines, domain.PricedLine{
			ProductID:  it.productID,
			Title:      p.name,
			Quantity:   it.quantity,
			PriceCents: p.price,
		})
	}
	pricing := domain.PriceLines(lines)

	o := &domain.Order{
		PrincipalID: principalID,
		Status:      domain.StatusPending,
		Pricing:     pricing,
		Contact:     contact,
	}
	if err := tx.QueryRow(ctx, `
INSERT INTO orders (principal_id, status, subtotal_cents, shipping_cents, tax_cents, total_cents, customer_name, phone, address)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at, updated_at
`, principalID, o.Status, pricing.SubtotalCents, pricing.ShippingCents, pricing.TaxCents, pricing.TotalCents,
		contact.CustomerName, contact.Phone, contact.Address,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	for _, l := range lines {
		var ol domain.OrderLine
		if err := tx.QueryRow(ctx, `
INSERT INTO order_lines (order_id, product_id, quantity)
VALUES ($1, $2, $3)
RETURNING id, order_id, product_id, quantity
`, o.ID, l.ProductID, l.Quantity).Scan(&ol.ID, &ol.OrderID, &ol.ProductID, &ol.Quantity); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, ol)

		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id = $1`, l.ProductID, l.Quantity); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("order placed",
		zap.Int64("order_id", o.ID),
		zap.String("principal_id", principalID),
		zap.Int64("total_cents", pricing.TotalCents),
		zap.Int("lines", len(lines)),
	)
	return &Placed{Order: o, Lines: lines}, nil
}

// withRetry reruns fn when Postgres aborts the transaction on a serialization
// failure or deadlock. Business errors are returned unchanged.
func (r *postgresRepo) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = fn()
		if err == nil || domain.IsBusiness(err) {
			return err
		}
		if !retryable(err) {
			break
		}
		r.logger.Warn("retrying transaction", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return domain.Storage(op, ctx.Err())
		case <-time.After(time.Duration(attempt*25) * time.Millisecond):
		}
	}
	r.logger.Error("transaction failed", zap.String("op", op), zap.Error(err))
	return domain.Storage(op, err)
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

const orderColumns = `id, principal_id, status, subtotal_cents, shipping_cents, tax_cents, total_cents, customer_name, phone, address, created_at, updated_at`

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get", zap.Int64("order_id", id), zap.Error(err))
		return nil, domain.Storage("get order", err)
	}
	lines, err := r.orderLines(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return o, nil
}

func (r *postgresRepo) ListByPrincipal(ctx context.Context, principalID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE principal_id = $1
ORDER BY created_at DESC, id DESC
`, principalID)
	if err != nil {
		r.logger.Error("list", zap.String("principal_id", principalID), zap.Error(err))
		return nil, domain.Storage("list orders", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, domain.Storage("scan order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list orders", err)
	}
	return orders, nil
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `
UPDATE orders
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
RETURNING `+orderColumns, id, from, to))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		r.logger.Error("update status", zap.Int64("order_id", id), zap.Error(err))
		return nil, domain.Storage("update order status", err)
	}
	r.logger.Info("order status changed", zap.Int64("order_id", id), zap.String("from", string(from)), zap.String("to", string(to)))
	return o, nil
}

func (r *postgresRepo) PricedLines(ctx context.Context, id int64) ([]domain.PricedLine, error) {
	rows, err := r.pool.Query(ctx, `
SELECT ol.product_id, p.name, ol.quantity, p.price_cents
FROM order_lines ol
JOIN products p ON p.id = ol.product_id
WHERE ol.order_id = $1
ORDER BY ol.id ASC
`, id)
	if err != nil {
		return nil, domain.Storage("priced order lines", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PricedLine, error) {
		var l domain.PricedLine
		err := row.Scan(&l.ProductID, &l.Title, &l.Quantity, &l.PriceCents)
		return l, err
	})
	if err != nil {
		return nil, domain.Storage("priced order lines", err)
	}
	return lines, nil
}

func (r *postgresRepo) orderLines(ctx context.Context, id int64) ([]domain.OrderLine, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, order_id, product_id, quantity
FROM order_lines
WHERE order_id = $1
ORDER BY id ASC
`, id)
	if err != nil {
		return nil, domain.Storage("order lines", err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.OrderLine])
	if err != nil {
		return nil, domain.Storage("order lines", err)
	}
	return lines, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(
		&o.ID,
		&o.PrincipalID,
		&o.Status,
		&o.SubtotalCents,
		&o.ShippingCents,
		&o.TaxCents,
		&o.TotalCents,
		&o.CustomerName,
		&o.Phone,
		&o.Address,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}
