package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/gateflow/gateflow/internal/model"
)

// Common errors for coupon repository operations.
var (
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrCodeExists      = errors.New("coupon code already exists")
	ErrCouponExhausted = errors.New("coupon redemption limit reached")
)

const couponColumns = `id, code, type, value, max_redemptions, redeemed_count,
		valid_from, valid_until, applies_to, active, deleted_at, created_at, updated_at`

// CreateCoupon inserts a new coupon.
func (r *Repository) CreateCoupon(ctx context.Context, c *model.Coupon) error {
	query := `
		INSERT INTO coupons (id, code, type, value, max_redemptions, valid_from, valid_until,
			applies_to, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Code,
		string(c.Type),
		c.Value,
		c.MaxRedemptions,
		c.ValidFrom,
		c.ValidUntil,
		pq.Array(c.AppliesTo),
		c.Active,
		c.CreatedAt,
		c.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}

	return nil
}

// GetCouponByID retrieves a coupon by ID. Soft-deleted coupons are not returned.
func (r *Repository) GetCouponByID(ctx context.Context, id string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1 AND deleted_at IS NULL`

	return r.scanCoupon(r.pool.QueryRow(ctx, query, id))
}

// GetCouponByCode retrieves a coupon by its code. Lookup is case-insensitive;
// codes are stored uppercased.
func (r *Repository) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = upper($1) AND deleted_at IS NULL`

	return r.scanCoupon(r.pool.QueryRow(ctx, query, code))
}

// ListCoupons returns a page of coupons ordered by (created_at, id) descending.
func (r *Repository) ListCoupons(ctx context.Context, cursor *PaginationCursor, limit int) ([]*model.Coupon, bool, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE deleted_at IS NULL`
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
		return nil, false, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []*model.Coupon
	for rows.Next() {
		c, err := r.scanCouponFromRows(rows)
		if err != nil {
			return nil, false, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating coupons: %w", err)
	}

	hasMore := len(coupons) > limit
	if hasMore {
		coupons = coupons[:limit]
	}

	return coupons, hasMore, nil
}

// UpdateCoupon updates the mutable fields of a coupon. The code and type
// are immutable after creation.
func (r *Repository) UpdateCoupon(ctx context.Context, c *model.Coupon) error {
	query := `
		UPDATE coupons
		SET value = $2, max_redemptions = $3, valid_from = $4, valid_until = $5,
			applies_to = $6, active = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Value,
		c.MaxRedemptions,
		c.ValidFrom,
		c.ValidUntil,
		pq.Array(c.AppliesTo),
		c.Active,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to update coupon: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrCouponNotFound
	}

	return nil
}

// SoftDeleteCoupon marks a coupon as deleted.
func (r *Repository) SoftDeleteCoupon(ctx context.Context, id string) error {
	query := `
		UPDATE coupons
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrCouponNotFound
	}

	return nil
}

// IncrementCouponRedemption atomically bumps the redeemed count, respecting
// the cap. Returns ErrCouponExhausted when the cap would be exceeded, so two
// concurrent checkouts cannot both redeem the last slot.
func (r *Repository) IncrementCouponRedemption(ctx context.Context, id string) error {
	query := `
		UPDATE coupons
		SET redeemed_count = redeemed_count + 1, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		  AND (max_redemptions = 0 OR redeemed_count < max_redemptions)
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment coupon redemption: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrCouponExhausted
	}

	return nil
}

func (r *Repository) scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var c model.Coupon
	var couponType string
	var appliesTo []string

	err := row.Scan(
		&c.ID,
		&c.Code,
		&couponType,
		&c.Value,
		&c.MaxRedemptions,
		&c.RedeemedCount,
		&c.ValidFrom,
		&c.ValidUntil,
		pq.Array(&appliesTo),
		&c.Active,
		&c.DeletedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to scan coupon: %w", err)
	}

	c.Type = model.CouponType(couponType)
	c.AppliesTo = appliesTo
	return &c, nil
}

func (r *Repository) scanCouponFromRows(rows pgx.Rows) (*model.Coupon, error) {
	var c model.Coupon
	var couponType string
	var appliesTo []string

	err := rows.Scan(
		&c.ID,
		&c.Code,
		&couponType,
		&c.Value,
		&c.MaxRedemptions,
		&c.RedeemedCount,
		&c.ValidFrom,
		&c.ValidUntil,
		pq.Array(&appliesTo),
		&c.Active,
		&c.DeletedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	c.Type = model.CouponType(couponType)
	c.AppliesTo = appliesTo
	return &c, nil
}
