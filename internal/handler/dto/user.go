package dto

// CreateUserRequest represents the request body for creating a user.
type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// UpdateUserRequest represents the request body for updating a user.
// Email is immutable.
type UpdateUserRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}
