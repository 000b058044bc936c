package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gateflow/gateflow/internal/model"
)

// Common errors for product repository operations.
var (
	ErrProductNotFound = errors.New("product not found")
	ErrSlugExists      = errors.New("product slug already exists")
)

const productColumns = `id, slug, name, description, price_cents, currency, active, file_url,
		oto_product_id, oto_discount_percent, bump_product_id, bump_price_cents,
		deleted_at, created_at, updated_at`

// CreateProduct inserts a new product.
func (r *Repository) CreateProduct(ctx context.Context, p *model.Product) error {
	query := `
		INSERT INTO products (id, slug, name, description, price_cents, currency, active, file_url,
			oto_product_id, oto_discount_percent, bump_product_id, bump_price_cents,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	otoProductID, otoDiscount := otoColumns(p.OTO)
	bumpProductID, bumpPrice := bumpColumns(p.Bump)

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Slug,
		p.Name,
		p.Description,
		p.PriceCents,
		p.Currency,
		p.Active,
		p.FileURL,
		otoProductID,
		otoDiscount,
		bumpProductID,
		bumpPrice,
		p.CreatedAt,
		p.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// GetProductByID retrieves a product by ID. Soft-deleted products are not returned.
func (r *Repository) GetProductByID(ctx context.Context, id string) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND deleted_at IS NULL`

	return r.scanProduct(r.pool.QueryRow(ctx, query, id))
}

// GetProductBySlug retrieves a product by its slug.
func (r *Repository) GetProductBySlug(ctx context.Context, slug string) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = $1 AND deleted_at IS NULL`

	return r.scanProduct(r.pool.QueryRow(ctx, query, slug))
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Active *bool
}

// ListProducts returns a page of products ordered by (created_at, id) descending.
// One extra row is fetched to decide has_more without a count query.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter, cursor *PaginationCursor, limit int) ([]*model.Product, bool, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE deleted_at IS NULL`
	args := []any{}
	argn := 1

	if filter.Active != nil {
		query += fmt.Sprintf(" AND active = $%d", argn)
		args = append(args, *filter.Active)
		argn++
	}

	if cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argn, argn+1)
		args = append(args, cursor.CreatedAt, cursor.ID)
		argn += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argn)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		p, err := r.scanProductFromRows(rows)
		if err != nil {
			return nil, false, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating products: %w", err)
	}

	hasMore := len(products) > limit
	if hasMore {
		products = products[:limit]
	}

	return products, hasMore, nil
}

// UpdateProduct updates all mutable fields of a product.
func (r *Repository) UpdateProduct(ctx context.Context, p *model.Product) error {
	query := `
		UPDATE products
		SET slug = $2, name = $3, description = $4, price_cents = $5, currency = $6,
			active = $7, file_url = $8, oto_product_id = $9, oto_discount_percent = $10,
			bump_product_id = $11, bump_price_cents = $12, updated_at = $13
		WHERE id = $1 AND deleted_at IS NULL
	`

	otoProductID, otoDiscount := otoColumns(p.OTO)
	bumpProductID, bumpPrice := bumpColumns(p.Bump)

	result, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Slug,
		p.Name,
		p.Description,
		p.PriceCents,
		p.Currency,
		p.Active,
		p.FileURL,
		otoProductID,
		otoDiscount,
		bumpProductID,
		bumpPrice,
		time.Now(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

// SoftDeleteProduct marks a product as deleted. Past payments keep referencing it.
func (r *Repository) SoftDeleteProduct(ctx context.Context, id string) error {
	query := `
		UPDATE products
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

func otoColumns(oto *model.OTOConfig) (*string, *int) {
	if oto == nil {
		return nil, nil
	}
	return &oto.ProductID, &oto.DiscountPercent
}

func bumpColumns(bump *model.OrderBump) (*string, *int64) {
	if bump == nil {
		return nil, nil
	}
	return &bump.ProductID, &bump.PriceCents
}

func (r *Repository) scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	var otoProductID *string
	var otoDiscount *int
	var bumpProductID *string
	var bumpPrice *int64

	err := row.Scan(
		&p.ID,
		&p.Slug,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.Currency,
		&p.Active,
		&p.FileURL,
		&otoProductID,
		&otoDiscount,
		&bumpProductID,
		&bumpPrice,
		&p.DeletedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	if otoProductID != nil && otoDiscount != nil {
		p.OTO = &model.OTOConfig{ProductID: *otoProductID, DiscountPercent: *otoDiscount}
	}
	if bumpProductID != nil && bumpPrice != nil {
		p.Bump = &model.OrderBump{ProductID: *bumpProductID, PriceCents: *bumpPrice}
	}

	return &p, nil
}

func (r *Repository) scanProductFromRows(rows pgx.Rows) (*model.Product, error) {
	var p model.Product
	var otoProductID *string
	var otoDiscount *int
	var bumpProductID *string
	var bumpPrice *int64

	err := rows.Scan(
		&p.ID,
		&p.Slug,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.Currency,
		&p.Active,
		&p.FileURL,
		&otoProductID,
		&otoDiscount,
		&bumpProductID,
		&bumpPrice,
		&p.DeletedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	if otoProductID != nil && otoDiscount != nil {
		p.OTO = &model.OTOConfig{ProductID: *otoProductID, DiscountPercent: *otoDiscount}
	}
	if bumpProductID != nil && bumpPrice != nil {
		p.Bump = &model.OrderBump{ProductID: *bumpProductID, PriceCents: *bumpPrice}
	}

	return &p, nil
}
