package order

import (
	"context"
	"errors"

	"storefront/internal/domain"
)

// ErrStatusConflict is returned when the order left the expected status before the update landed.
var ErrStatusConflict = errors.New("order status changed concurrently")

// Placed is the result of a committed checkout.
type Placed struct {
	Order *domain.Order
	Lines []domain.PricedLine
}

type Repository interface {
	// PlaceFromCart converts the cart into a pending order, decrements stock and
	// clears the cart atomically. Prices come from the rows locked in the transaction.
	PlaceFromCart(ctx context.Context, cartID int64, principalID string, contact domain.Contact) (*Placed, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	ListByPrincipal(ctx context.Context, principalID string) ([]domain.Order, error)
	// UpdateStatus moves the order from one status to another, or fails with ErrStatusConflict.
	UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (*domain.Order, error)
	// PricedLines returns the order's lines at current catalog prices.
	PricedLines(ctx context.Context, id int64) ([]domain.PricedLine, error)
}
