package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"storefront/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("cart_repo")}
}

func (r *postgresRepo) CartLines(cartID int64) Lines {
	return &lineTable{pool: r.pool, logger: r.logger, table: "cart_lines", ownerCol: "cart_id", owner: cartID}
}

func (r *postgresRepo) GuestLines(guestID string) Lines {
	return &lineTable{pool: r.pool, logger: r.logger, table: "guest_cart_lines", ownerCol: "guest_id", owner: guestID}
}

func (r *postgresRepo) Ensure(ctx context.Context, principalID string) (*domain.Cart, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, domain.Storage("begin ensure cart", err)
	}
	defer tx.Rollback(ctx)

	cart, err := ensureInTx(ctx, tx, principalID)
	if err != nil {
		r.logger.Error("ensure", zap.String("principal_id", principalID), zap.Error(err))
		return nil, domain.Storage("ensure cart", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Storage("commit ensure cart", err)
	}
	return cart, nil
}

func (r *postgresRepo) Find(ctx context.Context, principalID string) (*domain.Cart, error) {
	cart, err := scanCart(r.pool.QueryRow(ctx, oldestCartQuery, principalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Storage("find cart", err)
	}
	return cart, nil
}

func (r *postgresRepo) MergeGuest(ctx context.Context, guestID, principalID string) (MergeResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return MergeResult{}, domain.Storage("begin merge", err)
	}
	defer tx.Rollback(ctx)

	var pending int
	if err := tx.QueryRow(ctx, `
SELECT count(*) FROM (
    SELECT id FROM guest_cart_lines WHERE guest_id = $1 FOR UPDATE
) locked
`, guestID).Scan(&pending); err != nil {
		return MergeResult{}, domain.Storage("lock guest lines", err)
	}
	if pending == 0 {
		return MergeResult{}, nil
	}

	cart, err := ensureInTx(ctx, tx, principalID)
	if err != nil {
		return MergeResult{}, domain.Storage("ensure cart for merge", err)
	}

	// Lines are moved by a single statement so a guest add that commits
	// mid-merge is either carried over or left in place, never dropped.
	var moved int
	if err := tx.QueryRow(ctx, `
WITH moved AS (
    DELETE FROM guest_cart_lines
    WHERE guest_id = $2
    RETURNING product_id, quantity
), merged AS (
    INSERT INTO cart_lines AS l (cart_id, product_id, quantity)
    SELECT $1, m.product_id, LEAST(m.quantity, $3)
    FROM moved m
    ON CONFLICT (cart_id, product_id) DO UPDATE
    SET quantity = LEAST(l.quantity + EXCLUDED.quantity, $3)
    RETURNING 1
)
SELECT count(*) FROM moved
`, cart.ID, guestID, domain.MaxLineQuantity).Scan(&moved); err != nil {
		return MergeResult{}, domain.Storage("merge guest lines", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return MergeResult{}, domain.Storage("commit merge", err)
	}
	res := MergeResult{CartID: cart.ID, ItemsMerged: moved}
	r.logger.Info("merged guest cart",
		zap.String("principal_id", principalID),
		zap.Int64("cart_id", cart.ID),
		zap.Int("items", res.ItemsMerged),
	)
	return res, nil
}

func (r *postgresRepo) Consolidate(ctx context.Context, principalID string) (ConsolidateResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ConsolidateResult{}, domain.Storage("begin consolidate", err)
	}
	defer tx.Rollback(ctx)

	if err := lockPrincipal(ctx, tx, principalID); err != nil {
		return ConsolidateResult{}, domain.Storage("lock principal", err)
	}

	rows, err := tx.Query(ctx, `SELECT id FROM carts WHERE principal_id = $1 ORDER BY id ASC FOR UPDATE`, principalID)
	if err != nil {
		return ConsolidateResult{}, domain.Storage("list carts", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return ConsolidateResult{}, domain.Storage("list carts", err)
	}
	if len(ids) == 0 {
		return ConsolidateResult{}, domain.ErrNotFound
	}

	canonical := ids[0]
	for _, dup := range ids[1:] {
		if _, err := tx.Exec(ctx, `
INSERT INTO cart_lines AS l (cart_id, product_id, quantity)
SELECT $1, d.product_id, d.quantity
FROM cart_lines d
WHERE d.cart_id = $2
ON CONFLICT (cart_id, product_id) DO UPDATE
SET quantity = LEAST(l.quantity + EXCLUDED.quantity, $3)
`, canonical, dup, domain.MaxLineQuantity); err != nil {
			return ConsolidateResult{}, domain.Storage("fold duplicate cart", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, dup); err != nil {
			return ConsolidateResult{}, domain.Storage("delete duplicate lines", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, dup); err != nil {
			return ConsolidateResult{}, domain.Storage("delete duplicate cart", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ConsolidateResult{}, domain.Storage("commit consolidate", err)
	}
	res := ConsolidateResult{CanonicalCartID: canonical, CartsRemoved: len(ids) - 1}
	if res.CartsRemoved > 0 {
		r.logger.Info("consolidated carts",
			zap.String("principal_id", principalID),
			zap.Int64("cart_id", canonical),
			zap.Int("removed", res.CartsRemoved),
		)
	}
	return res, nil
}

const oldestCartQuery = `
SELECT id, principal_id, created_at
FROM carts
WHERE principal_id = $1
ORDER BY id ASC
LIMIT 1
`

// ensureInTx must run inside a transaction: the advisory lock is released at commit.
func ensureInTx(ctx context.Context, tx pgx.Tx, principalID string) (*domain.Cart, error) {
	if err := lockPrincipal(ctx, tx, principalID); err != nil {
		return nil, err
	}
	cart, err := scanCart(tx.QueryRow(ctx, oldestCartQuery, principalID))
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return scanCart(tx.QueryRow(ctx, `
INSERT INTO carts (principal_id)
VALUES ($1)
RETURNING id, principal_id, created_at
`, principalID))
}

func lockPrincipal(ctx context.Context, tx pgx.Tx, principalID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('cart:' || $1, 0))`, principalID)
	return err
}

func scanCart(row pgx.Row) (*domain.Cart, error) {
	var c domain.Cart
	if err := row.Scan(&c.ID, &c.PrincipalID, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
