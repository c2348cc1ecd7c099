package product

import (
	"context"

	"storefront/internal/domain"
	productrepo "storefront/internal/repository/product"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

// List returns a page of the catalog. Out-of-range limits fall back to the default page size.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

