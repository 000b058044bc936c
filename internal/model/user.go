package model

import "time"

// User roles.
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// IsValidRole checks a role value.
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleCustomer
}

// User represents an account that owns API keys and receives purchases.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
