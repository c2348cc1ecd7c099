package cart

import (
	"context"

	"storefront/internal/domain"
)

// MergeResult reports a guest promotion.
type MergeResult struct {
	CartID      int64
	ItemsMerged int
}

// ConsolidateResult reports a duplicate-cart fold.
type ConsolidateResult struct {
	CanonicalCartID int64
	CartsRemoved    int
}

// Lines is the line storage behind one cart, whichever kind of identity owns it.
type Lines interface {
	List(ctx context.Context) ([]domain.CartLine, error)
	Add(ctx context.Context, productID int64, quantity int) (*domain.CartLine, error)
	Update(ctx context.Context, lineID int64, quantity int) error
	Remove(ctx context.Context, lineID int64) error
	Clear(ctx context.Context) error
}

// Repository persists principal carts, guest lines and the transfers between them.
type Repository interface {
	// Ensure returns the principal's oldest cart, creating one if none exists.
	Ensure(ctx context.Context, principalID string) (*domain.Cart, error)
	// Find returns the principal's oldest cart without creating one.
	Find(ctx context.Context, principalID string) (*domain.Cart, error)
	CartLines(cartID int64) Lines
	GuestLines(guestID string) Lines
	// MergeGuest folds a guest's lines into the principal's cart and deletes them, in one transaction.
	MergeGuest(ctx context.Context, guestID, principalID string) (MergeResult, error)
	// Consolidate folds every duplicate cart of the principal into the oldest one.
	Consolidate(ctx context.Context, principalID string) (ConsolidateResult, error)
}
