package customer

import (
	"context"

	"storefront/internal/domain"
)

// Repository stores storefront accounts. Emails compare case-insensitively;
// lookups that match nothing return a domain NotFound error.
type Repository interface {
	// Create fails with AlreadyExists when the email is taken.
	Create(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	MarkEmailVerified(ctx context.Context, id string) error
}
