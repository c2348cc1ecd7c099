package domain

import "time"

// Role of an authenticated principal.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Customer represents a registered user.
type Customer struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Name          string    `json:"name,omitempty"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Actor is the principal performing an order mutation.
type Actor struct {
	PrincipalID string
	Role        Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
