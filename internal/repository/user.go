package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gateflow/gateflow/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailExists    = errors.New("email already registered")
	ErrUserReferenced = errors.New("user has dependent records")
)

// CreateUser inserts a new user. Emails are stored lowercased and unique.
func (r *Repository) CreateUser(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, email, name, role, created_at)
		VALUES ($1, lower($2), $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query, u.ID, u.Email, u.Name, u.Role, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, email, name, role, created_at FROM users WHERE id = $1`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, email, name, role, created_at FROM users WHERE email = lower($1)`

	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

// ListUsers returns a page of users ordered by (created_at, id) descending.
func (r *Repository) ListUsers(ctx context.Context, cursor *PaginationCursor, limit int) ([]*model.User, bool, error) {
	query := `SELECT id, email, name, role, created_at FROM users WHERE 1=1`
	args := []any{}
	argn := 1

	if cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argn, argn+1)
		args = append(args, cursor.CreatedAt, cursor.ID)
		argn += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argn)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating users: %w", err)
	}

	hasMore := len(users) > limit
	if hasMore {
		users = users[:limit]
	}

	return users, hasMore, nil
}

// UpdateUser updates a user's name and role.
func (r *Repository) UpdateUser(ctx context.Context, u *model.User) error {
	query := `UPDATE users SET name = $2, role = $3 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, u.ID, u.Name, u.Role)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// DeleteUser removes a user. Rows in api_keys or webhook_endpoints that
// still reference the user block the delete.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserReferenced
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *Repository) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User

	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return &u, nil
}
