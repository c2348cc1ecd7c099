package product

import (
	"context"

	"storefront/internal/domain"
)

// Repository is the catalog lookup collaborator plus the writes used by seed and import.
type Repository interface {
	List(ctx context.Context, limit, offset int) ([]domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}
