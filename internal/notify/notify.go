// Package notify delivers order and account events to customers and staff.
// Delivery is best effort: a failed send is logged and never undoes the
// operation that triggered it.
package notify

import (
	"context"
	"time"

	"storefront/internal/domain"
)

const (
	EventOrderPlaced       = "order.placed"
	EventOrderStatus       = "order.status_changed"
	EventEmailVerification = "customer.email_verification"
)

// OrderPlaced describes a freshly committed order.
type OrderPlaced struct {
	Order   domain.Order        `json:"order"`
	Lines   []domain.PricedLine `json:"lines"`
	Contact domain.Contact      `json:"contact"`
}

// StatusChanged describes an admin-driven status change. Pricing is recomputed
// from Lines with domain.ComputePricing.
type StatusChanged struct {
	OrderID     int64               `json:"orderId"`
	PrincipalID string              `json:"principalId"`
	From        domain.OrderStatus  `json:"from"`
	To          domain.OrderStatus  `json:"to"`
	Lines       []domain.PricedLine `json:"lines"`
	Pricing     domain.Pricing      `json:"pricing"`
	Contact     domain.Contact      `json:"contact"`
}

// EmailVerification carries a verification link token to a new customer.
type EmailVerification struct {
	CustomerID string `json:"customerId"`
	Email      string `json:"email"`
	Token      string `json:"token"`
}

// Sender delivers notifications synchronously.
type Sender interface {
	OrderPlaced(ctx context.Context, ev OrderPlaced) error
	StatusChanged(ctx context.Context, ev StatusChanged) error
	EmailVerification(ctx context.Context, ev EmailVerification) error
}

// Envelope is the wire form of every event.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}
