package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gateflow/gateflow/internal/metrics"
	"github.com/gateflow/gateflow/internal/model"
	"github.com/gateflow/gateflow/internal/repository"
)

// Coupon service errors.
var (
	ErrCouponNotFound      = errors.New("coupon not found")
	ErrCodeExists          = errors.New("coupon code already exists")
	ErrInvalidCouponCode   = errors.New("invalid coupon code format")
	ErrInvalidCouponType   = errors.New("invalid coupon type")
	ErrInvalidCouponValue  = errors.New("invalid coupon value")
	ErrInvalidWindow       = errors.New("valid_until must be after valid_from")
	ErrCouponNotRedeemable = errors.New("coupon is not redeemable")
)

// Code validation regex: 3-40 chars, uppercase alphanumeric + hyphen.
var codeRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{1,38}[A-Z0-9]$`)

// CouponService handles coupon business logic.
type CouponService struct {
	repo    *repository.Repository
	metrics metrics.Recorder
}

// NewCouponService creates a new CouponService.
func NewCouponService(repo *repository.Repository, recorder metrics.Recorder) *CouponService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CouponService{repo: repo, metrics: recorder}
}

// CreateCouponInput defines input for creating a coupon.
type CreateCouponInput struct {
	Code           string
	Type           model.CouponType
	Value          int64
	MaxRedemptions int
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	AppliesTo      []string
	Active         *bool
}

// CreateCoupon creates a new coupon. Codes are normalized to uppercase.
func (s *CouponService) CreateCoupon(ctx context.Context, input CreateCouponInput) (*model.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if !codeRegex.MatchString(code) {
		return nil, ErrInvalidCouponCode
	}

	if !model.IsValidCouponType(input.Type) {
		return nil, ErrInvalidCouponType
	}
	if err := validateCouponValue(input.Type, input.Value); err != nil {
		return nil, err
	}
	if input.MaxRedemptions < 0 {
		return nil, fmt.Errorf("%w: max_redemptions must not be negative", ErrInvalidInput)
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && !input.ValidUntil.After(*input.ValidFrom) {
		return nil, ErrInvalidWindow
	}

	// Verify scoped products exist
	for _, productID := range input.AppliesTo {
		if _, err := s.repo.GetProductByID(ctx, productID); err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, fmt.Errorf("%w: unknown product %s", ErrInvalidInput, productID)
			}
			return nil, err
		}
	}

	coupon := &model.Coupon{
		ID:             ulid.Make().String(),
		Code:           code,
		Type:           input.Type,
		Value:          input.Value,
		MaxRedemptions: input.MaxRedemptions,
		ValidFrom:      input.ValidFrom,
		ValidUntil:     input.ValidUntil,
		AppliesTo:      input.AppliesTo,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if input.Active != nil {
		coupon.Active = *input.Active
	}

	if err := s.repo.CreateCoupon(ctx, coupon); err != nil {
		if errors.Is(err, repository.ErrCodeExists) {
			return nil, ErrCodeExists
		}
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	return coupon, nil
}

// GetCoupon retrieves a coupon by ID.
func (s *CouponService) GetCoupon(ctx context.Context, id string) (*model.Coupon, error) {
	coupon, err := s.repo.GetCouponByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	return coupon, nil
}

// ListCouponsInput defines input for listing coupons.
type ListCouponsInput struct {
	Cursor string
	Limit  int
}

// ListCouponsOutput defines output for listing coupons.
type ListCouponsOutput struct {
	Coupons    []*model.Coupon
	NextCursor string
	HasMore    bool
}

// ListCoupons retrieves a paginated list of coupons.
func (s *CouponService) ListCoupons(ctx context.Context, input ListCouponsInput) (*ListCouponsOutput, error) {
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}

	cursor, err := decodeCursor(input.Cursor)
	if err != nil {
		return nil, err
	}

	coupons, hasMore, err := s.repo.ListCoupons(ctx, cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	out := &ListCouponsOutput{Coupons: coupons, HasMore: hasMore}
	if hasMore && len(coupons) > 0 {
		last := coupons[len(coupons)-1]
		out.NextCursor = repository.EncodeCursor(&repository.PaginationCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return out, nil
}

// UpdateCouponInput defines input for updating a coupon.
// Code and type are immutable after creation.
type UpdateCouponInput struct {
	ID             string
	Value          *int64
	MaxRedemptions *int
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	AppliesTo      []string
	Active         *bool
	ClearWindow    bool
}

// UpdateCoupon updates a coupon's mutable fields.
func (s *CouponService) UpdateCoupon(ctx context.Context, input UpdateCouponInput) (*model.Coupon, error) {
	coupon, err := s.repo.GetCouponByID(ctx, input.ID)
	if err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}

	if input.Value != nil {
		if err := validateCouponValue(coupon.Type, *input.Value); err != nil {
			return nil, err
		}
		coupon.Value = *input.Value
	}
	if input.MaxRedemptions != nil {
		if *input.MaxRedemptions < 0 {
			return nil, fmt.Errorf("%w: max_redemptions must not be negative", ErrInvalidInput)
		}
		coupon.MaxRedemptions = *input.MaxRedemptions
	}
	if input.ClearWindow {
		coupon.ValidFrom = nil
		coupon.ValidUntil = nil
	} else {
		if input.ValidFrom != nil {
			coupon.ValidFrom = input.ValidFrom
		}
		if input.ValidUntil != nil {
			coupon.ValidUntil = input.ValidUntil
		}
	}
	if coupon.ValidFrom != nil && coupon.ValidUntil != nil && !coupon.ValidUntil.After(*coupon.ValidFrom) {
		return nil, ErrInvalidWindow
	}
	if input.AppliesTo != nil {
		for _, productID := range input.AppliesTo {
			if _, err := s.repo.GetProductByID(ctx, productID); err != nil {
				if errors.Is(err, repository.ErrProductNotFound) {
					return nil, fmt.Errorf("%w: unknown product %s", ErrInvalidInput, productID)
				}
				return nil, err
			}
		}
		coupon.AppliesTo = input.AppliesTo
	}
	if input.Active != nil {
		coupon.Active = *input.Active
	}

	if err := s.repo.UpdateCoupon(ctx, coupon); err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}

	return coupon, nil
}

// DeleteCoupon soft-deletes a coupon.
func (s *CouponService) DeleteCoupon(ctx context.Context, id string) error {
	if err := s.repo.SoftDeleteCoupon(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return ErrCouponNotFound
		}
		return err
	}
	return nil
}

// ValidateCouponOutput is the preview result for a checkout page.
type ValidateCouponOutput struct {
	Coupon        *model.Coupon
	DiscountCents int64
	FinalCents    int64
}

// ValidateCoupon checks a code against a product and previews the discount
// without redeeming anything.
func (s *CouponService) ValidateCoupon(ctx context.Context, code, productID string) (*ValidateCouponOutput, error) {
	coupon, err := s.repo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}

	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	if !coupon.IsRedeemable(product.ID, time.Now()) {
		return nil, ErrCouponNotRedeemable
	}

	discount := coupon.DiscountCents(product.PriceCents)
	return &ValidateCouponOutput{
		Coupon:        coupon,
		DiscountCents: discount,
		FinalCents:    product.PriceCents - discount,
	}, nil
}

func validateCouponValue(couponType model.CouponType, value int64) error {
	switch couponType {
	case model.CouponPercent:
		if value < 1 || value > 100 {
			return fmt.Errorf("%w: percent value must be 1-100", ErrInvalidCouponValue)
		}
	case model.CouponFixed:
		if value < 1 {
			return fmt.Errorf("%w: fixed value must be positive", ErrInvalidCouponValue)
		}
	default:
		return ErrInvalidCouponType
	}
	return nil
}
