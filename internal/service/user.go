package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gateflow/gateflow/internal/model"
	"github.com/gateflow/gateflow/internal/repository"
)

// User service errors.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailExists    = errors.New("email already registered")
	ErrInvalidRole    = errors.New("invalid role")
	ErrUserReferenced = errors.New("user has dependent records")
)

// UserService handles user management.
type UserService struct {
	repo *repository.Repository
}

// NewUserService creates a new UserService.
func NewUserService(repo *repository.Repository) *UserService {
	return &UserService{repo: repo}
}

// CreateUserInput defines input for creating a user.
type CreateUserInput struct {
	Email string
	Name  string
	Role  string
}

// CreateUser creates a new user account.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}

	role := input.Role
	if role == "" {
		role = model.RoleCustomer
	}
	if !model.IsValidRole(role) {
		return nil, ErrInvalidRole
	}

	user := &model.User{
		ID:        ulid.Make().String(),
		Email:     email,
		Name:      strings.TrimSpace(input.Name),
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListUsersInput defines input for listing users.
type ListUsersInput struct {
	Cursor string
	Limit  int
}

// ListUsersOutput defines output for listing users.
type ListUsersOutput struct {
	Users      []*model.User
	NextCursor string
	HasMore    bool
}

// ListUsers retrieves a paginated list of users.
func (s *UserService) ListUsers(ctx context.Context, input ListUsersInput) (*ListUsersOutput, error) {
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}

	cursor, err := decodeCursor(input.Cursor)
	if err != nil {
		return nil, err
	}

	users, hasMore, err := s.repo.ListUsers(ctx, cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	out := &ListUsersOutput{Users: users, HasMore: hasMore}
	if hasMore && len(users) > 0 {
		last := users[len(users)-1]
		out.NextCursor = repository.EncodeCursor(&repository.PaginationCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return out, nil
}

// UpdateUserInput defines input for updating a user.
type UpdateUserInput struct {
	ID   string
	Name *string
	Role *string
}

// UpdateUser updates a user's name and role. Email is immutable.
func (s *UserService) UpdateUser(ctx context.Context, input UpdateUserInput) (*model.User, error) {
	user, err := s.GetUser(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Role != nil {
		if !model.IsValidRole(*input.Role) {
			return nil, ErrInvalidRole
		}
		user.Role = *input.Role
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// DeleteUser removes a user account. A user that still owns API keys or
// webhook endpoints cannot be deleted until those are removed.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	err := s.repo.DeleteUser(ctx, id)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrUserReferenced):
		return ErrUserReferenced
	}
	return err
}
