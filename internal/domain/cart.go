package domain

import "time"

// MaxLineQuantity caps the quantity of a single product in one cart.
const MaxLineQuantity = 10

// Cart is the durable cart of an authenticated principal.
type Cart struct {
	ID          int64     `json:"id"`
	PrincipalID string    `json:"principalId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CartLine is one product entry in a cart. Title, price and image are read
// from the catalog at list time and are never stored on the line.
type CartLine struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"productId"`
	Quantity   int       `json:"quantity"`
	Title      string    `json:"title"`
	PriceCents int64     `json:"priceCents"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CartHandle identifies the storage behind an identity's cart. For a guest the
// handle is the guest id itself; for a principal it is the cart row id.
type CartHandle struct {
	Identity CartIdentity `json:"-"`
	CartID   int64        `json:"cartId,omitempty"`
	GuestID  string       `json:"-"`
}

// Subtotal sums price times quantity over the given lines.
func Subtotal(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.PriceCents * int64(l.Quantity)
	}
	return total
}

// ValidQuantity reports whether q fits a single cart line.
func ValidQuantity(q int) bool {
	return q >= 1 && q <= MaxLineQuantity
}
