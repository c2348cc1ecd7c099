package domain

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending       OrderStatus = "pending"
	StatusProcessing    OrderStatus = "processing"
	StatusShipped       OrderStatus = "shipped"
	StatusDelivered     OrderStatus = "delivered"
	StatusCancelled     OrderStatus = "cancelled"
	StatusUserCancelled OrderStatus = "user_cancelled"
)

var adminTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

var ownerTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusUserCancelled},
	StatusProcessing: {StatusUserCancelled},
}

// ParseOrderStatus returns the status named by s.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusUserCancelled:
		return st, true
	}
	return "", false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusUserCancelled
}

// AllowedTransitions lists the statuses role may move an order to from s.
func AllowedTransitions(role Role, from OrderStatus) []OrderStatus {
	table := ownerTransitions
	if role == RoleAdmin {
		table = adminTransitions
	}
	out := make([]OrderStatus, len(table[from]))
	copy(out, table[from])
	return out
}

// CanTransition reports whether role may move an order from one status to another.
func CanTransition(role Role, from, to OrderStatus) bool {
	for _, s := range AllowedTransitions(role, from) {
		if s == to {
			return true
		}
	}
	return false
}

// Contact is the delivery contact captured at checkout.
type Contact struct {
	CustomerName string `json:"customerName" validate:"required,min=2"`
	Phone        string `json:"phone" validate:"required,min=7"`
	Address      string `json:"address" validate:"required,min=5"`
}

// Order is immutable after creation apart from Status.
type Order struct {
	ID          int64       `json:"id"`
	PrincipalID string      `json:"principalId"`
	Status      OrderStatus `json:"status"`
	Pricing
	Contact
	Lines     []OrderLine `json:"lines,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// OrderLine freezes the purchased quantity only.
type OrderLine struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"orderId"`
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// PricedLine pairs a product with a quantity and the unit price used for pricing.
type PricedLine struct {
	ProductID  int64  `json:"productId"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"priceCents"`
}
