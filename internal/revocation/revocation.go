// Package revocation records guest credentials that must no longer resolve to a cart.
package revocation

import (
	"context"
	"time"
)

// Store is shared by every API instance so a credential revoked on one node
// is rejected by all of them.
type Store interface {
	Revoke(ctx context.Context, guestID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, guestID string) (bool, error)
}
