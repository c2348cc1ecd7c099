package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"storefront/internal/domain"
)

// lineTable scopes line queries to one owner. table and ownerCol are fixed
// identifiers chosen by this package, never user input.
type lineTable struct {
	pool     *pgxpool.Pool
	logger   *zap.Logger
	table    string
	ownerCol string
	owner    any
}

func (l *lineTable) List(ctx context.Context) ([]domain.CartLine, error) {
	q := fmt.Sprintf(`
SELECT l.id, l.product_id, l.quantity, p.name, p.price_cents, p.image_url, l.created_at
FROM %s l
JOIN products p ON p.id = l.product_id
WHERE l.%s = $1
ORDER BY l.id ASC
`, l.table, l.ownerCol)
	rows, err := l.pool.Query(ctx, q, l.owner)
	if err != nil {
		l.logger.Error("list lines", zap.Any("owner", l.owner), zap.Error(err))
		return nil, domain.Storage("list cart lines", err)
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ID, &line.ProductID, &line.Quantity, &line.Title, &line.PriceCents, &line.ImageURL, &line.CreatedAt); err != nil {
			return nil, domain.Storage("scan cart line", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list cart lines", err)
	}
	return lines, nil
}

// Add increments or inserts in one statement; the WHERE on the conflict
// branch keeps the sum within the cap so concurrent adds cannot overshoot it.
func (l *lineTable) Add(ctx context.Context, productID int64, quantity int) (*domain.CartLine, error) {
	if quantity > domain.MaxLineQuantity {
		return nil, l.exceeded(ctx, productID, quantity)
	}
	q := fmt.Sprintf(`
INSERT INTO %[1]s AS l (%[2]s, product_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (%[2]s, product_id) DO UPDATE
SET quantity = l.quantity + EXCLUDED.quantity
WHERE l.quantity + EXCLUDED.quantity <= $4
RETURNING l.id, l.product_id, l.quantity, l.created_at
`, l.table, l.ownerCol)
	var line domain.CartLine
	err := l.pool.QueryRow(ctx, q, l.owner, productID, quantity, domain.MaxLineQuantity).
		Scan(&line.ID, &line.ProductID, &line.Quantity, &line.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, l.exceeded(ctx, productID, quantity)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, domain.ErrNotFound
		}
		l.logger.Error("add line", zap.Any("owner", l.owner), zap.Int64("product_id", productID), zap.Error(err))
		return nil, domain.Storage("add cart line", err)
	}
	l.logger.Debug("add line", zap.Any("owner", l.owner), zap.Int64("product_id", productID), zap.Int("quantity", line.Quantity))
	return &line, nil
}

func (l *lineTable) exceeded(ctx context.Context, productID int64, requested int) error {
	q := fmt.Sprintf(`SELECT quantity FROM %s WHERE %s = $1 AND product_id = $2`, l.table, l.ownerCol)
	var current int
	if err := l.pool.QueryRow(ctx, q, l.owner, productID).Scan(&current); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.Storage("read cart line", err)
	}
	return &domain.QuantityExceededError{
		ProductID: productID,
		Current:   current,
		Requested: requested,
		Max:       domain.MaxLineQuantity,
	}
}

func (l *lineTable) Update(ctx context.Context, lineID int64, quantity int) error {
	q := fmt.Sprintf(`UPDATE %s SET quantity = $1 WHERE id = $2 AND %s = $3`, l.table, l.ownerCol)
	cmd, err := l.pool.Exec(ctx, q, quantity, lineID, l.owner)
	if err != nil {
		l.logger.Error("update line", zap.Int64("line_id", lineID), zap.Error(err))
		return domain.Storage("update cart line", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (l *lineTable) Remove(ctx context.Context, lineID int64) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND %s = $2`, l.table, l.ownerCol)
	cmd, err := l.pool.Exec(ctx, q, lineID, l.owner)
	if err != nil {
		l.logger.Error("remove line", zap.Int64("line_id", lineID), zap.Error(err))
		return domain.Storage("remove cart line", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (l *lineTable) Clear(ctx context.Context) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, l.table, l.ownerCol)
	if _, err := l.pool.Exec(ctx, q, l.owner); err != nil {
		l.logger.Error("clear lines", zap.Any("owner", l.owner), zap.Error(err))
		return domain.Storage("clear cart", err)
	}
	return nil
}
