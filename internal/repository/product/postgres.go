package product

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
	return &postgresRepo{pool: pool, logger: logger.Named("product_repo")}
}

const productColumns = `id, sku, name, description, price_cents, stock, image_url, created_at`

func (r *postgresRepo) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	const q = `
SELECT ` + productColumns + `
FROM products
ORDER BY id ASC
LIMIT $1 OFFSET $2
`
	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		r.logger.Error("list", zap.Error(err))
		return nil, domain.Storage("list products", err)
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, domain.Storage("scan product", err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("list rows", zap.Error(err))
		return nil, domain.Storage("list products", err)
	}
	r.logger.Debug("list", zap.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	const q = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1
`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("get: not found", zap.Int64("id", id))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get", zap.Int64("id", id), zap.Error(err))
		return nil, domain.Storage("get product", err)
	}
	return p, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (sku, name, description, price_cents, stock, image_url)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (sku) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    stock = EXCLUDED.stock,
    image_url = EXCLUDED.image_url
RETURNING ` + productColumns + `
`
	res, err := scanProduct(r.pool.QueryRow(ctx, q,
		product.SKU,
		product.Name,
		product.Description,
		product.PriceCents,
		product.Stock,
		product.ImageURL,
	))
	if err != nil {
		r.logger.Error("upsert", zap.String("sku", product.SKU), zap.Error(err))
		return nil, domain.Storage("upsert product", err)
	}
	r.logger.Debug("upserted", zap.String("sku", res.SKU), zap.Int64("id", res.ID))
	return res, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.PriceCents, &p.Stock, &p.ImageURL, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
