// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gateflow/gateflow/internal/metrics"
	"github.com/gateflow/gateflow/internal/model"
	"github.com/gateflow/gateflow/internal/repository"
	"github.com/gateflow/gateflow/internal/webhook"
)

// Product service errors.
var (
	ErrInvalidSlug         = errors.New("invalid slug format")
	ErrSlugExists          = errors.New("product slug already exists")
	ErrProductNotFound     = errors.New("product not found")
	ErrInvalidPrice        = errors.New("price_cents must not be negative")
	ErrInvalidCurrency     = errors.New("unsupported currency")
	ErrInvalidFileURL      = errors.New("invalid file URL")
	ErrInvalidOTO          = errors.New("invalid one-time offer configuration")
	ErrInvalidBump         = errors.New("invalid order bump configuration")
	ErrSelfReference       = errors.New("offer cannot reference the product itself")
	ErrOfferProductMissing = errors.New("offer references a nonexistent product")
)

// Slug validation regex: 3-80 chars, lowercase alphanumeric + hyphen,
// must start and end with an alphanumeric.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,78}[a-z0-9]$`)

const (
	maxNameLength        = 200
	maxDescriptionLength = 5000
	maxFileURLLength     = 2048
)

// ProductService handles product business logic.
type ProductService struct {
	repo    *repository.Repository
	hooks   *webhook.Publisher
	metrics metrics.Recorder
}

// NewProductService creates a new ProductService.
func NewProductService(repo *repository.Repository, hooks *webhook.Publisher, recorder metrics.Recorder) *ProductService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ProductService{
		repo:    repo,
		hooks:   hooks,
		metrics: recorder,
	}
}

// CreateProductInput defines input for creating a product.
type CreateProductInput struct {
	Slug        string
	Name        string
	Description string
	PriceCents  int64
	Currency    string
	Active      *bool
	FileURL     string
	OTO         *model.OTOConfig
	Bump        *model.OrderBump
}

// CreateProduct creates a new product and emits product.created.
func (s *ProductService) CreateProduct(ctx context.Context, input CreateProductInput) (*model.Product, error) {
	if !slugRegex.MatchString(input.Slug) {
		return nil, ErrInvalidSlug
	}
	if err := s.validateCommon(input.Name, input.Description, input.PriceCents, input.Currency, input.FileURL); err != nil {
		return nil, err
	}

	product := &model.Product{
		ID:          ulid.Make().String(),
		Slug:        input.Slug,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		PriceCents:  input.PriceCents,
		Currency:    input.Currency,
		Active:      true,
		FileURL:     input.FileURL,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if input.Active != nil {
		product.Active = *input.Active
	}

	if err := s.applyOffers(ctx, product, input.OTO, input.Bump); err != nil {
		return nil, err
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			return nil, ErrSlugExists
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.metrics.IncProductCreated()

	if s.hooks != nil {
		if err := s.hooks.Publish(ctx, model.EventTypeProductCreated, product.ID, map[string]any{
			"product_id":  product.ID,
			"slug":        product.Slug,
			"name":        product.Name,
			"price_cents": product.PriceCents,
			"currency":    product.Currency,
		}); err != nil {
			// Webhook fan-out is best effort; the product exists either way.
			_ = err
		}
	}

	return product, nil
}

// GetProduct retrieves a product by ID.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

// GetProductBySlug retrieves a product by its slug.
func (s *ProductService) GetProductBySlug(ctx context.Context, slug string) (*model.Product, error) {
	product, err := s.repo.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

// ListProductsInput defines input for listing products.
type ListProductsInput struct {
	Active *bool
	Cursor string
	Limit  int
}

// ListProductsOutput defines output for listing products.
type ListProductsOutput struct {
	Products   []*model.Product
	NextCursor string
	HasMore    bool
}

// ListProducts retrieves a paginated list of products.
func (s *ProductService) ListProducts(ctx context.Context, input ListProductsInput) (*ListProductsOutput, error) {
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}

	cursor, err := decodeCursor(input.Cursor)
	if err != nil {
		return nil, err
	}

	products, hasMore, err := s.repo.ListProducts(ctx, repository.ProductFilter{Active: input.Active}, cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	out := &ListProductsOutput{Products: products, HasMore: hasMore}
	if hasMore && len(products) > 0 {
		last := products[len(products)-1]
		out.NextCursor = repository.EncodeCursor(&repository.PaginationCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return out, nil
}

// UpdateProductInput defines input for updating a product.
type UpdateProductInput struct {
	ID          string
	Slug        *string
	Name        *string
	Description *string
	PriceCents  *int64
	Currency    *string
	Active      *bool
	FileURL     *string
	OTO         *model.OTOConfig
	Bump        *model.OrderBump
	ClearOTO    bool
	ClearBump   bool
}

// UpdateProduct updates a product's mutable fields.
func (s *ProductService) UpdateProduct(ctx context.Context, input UpdateProductInput) (*model.Product, error) {
	product, err := s.repo.GetProductByID(ctx, input.ID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	if input.Slug != nil {
		if !slugRegex.MatchString(*input.Slug) {
			return nil, ErrInvalidSlug
		}
		product.Slug = *input.Slug
	}
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.PriceCents != nil {
		product.PriceCents = *input.PriceCents
	}
	if input.Currency != nil {
		product.Currency = *input.Currency
	}
	if input.Active != nil {
		product.Active = *input.Active
	}
	if input.FileURL != nil {
		product.FileURL = *input.FileURL
	}

	if err := s.validateCommon(product.Name, product.Description, product.PriceCents, product.Currency, product.FileURL); err != nil {
		return nil, err
	}

	if input.ClearOTO {
		product.OTO = nil
	}
	if input.ClearBump {
		product.Bump = nil
	}
	if err := s.applyOffers(ctx, product, input.OTO, input.Bump); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			return nil, ErrSlugExists
		}
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	s.metrics.IncProductUpdated()

	return product, nil
}

// DeleteProduct soft-deletes a product. Past payments keep their reference.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.SoftDeleteProduct(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		return err
	}

	s.metrics.IncProductDeleted()
	return nil
}

// validateCommon checks shared product field constraints.
func (s *ProductService) validateCommon(name, description string, priceCents int64, currency, fileURL string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d chars", ErrInvalidInput, maxNameLength)
	}
	if len(description) > maxDescriptionLength {
		return fmt.Errorf("%w: description too long", ErrInvalidInput)
	}
	if priceCents < 0 {
		return ErrInvalidPrice
	}
	if !model.IsSupportedCurrency(currency) {
		return ErrInvalidCurrency
	}
	if fileURL != "" {
		if len(fileURL) > maxFileURLLength {
			return ErrInvalidFileURL
		}
		parsed, err := url.Parse(fileURL)
		if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") || parsed.Host == "" {
			return ErrInvalidFileURL
		}
	}
	return nil
}

// applyOffers validates and attaches OTO and bump configs.
// Referenced products must exist and differ from the product itself.
func (s *ProductService) applyOffers(ctx context.Context, product *model.Product, oto *model.OTOConfig, bump *model.OrderBump) error {
	if oto != nil {
		if oto.ProductID == "" || oto.DiscountPercent < 0 || oto.DiscountPercent > 100 {
			return ErrInvalidOTO
		}
		if oto.ProductID == product.ID {
			return ErrSelfReference
		}
		if _, err := s.repo.GetProductByID(ctx, oto.ProductID); err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return ErrOfferProductMissing
			}
			return err
		}
		product.OTO = oto
	}

	if bump != nil {
		if bump.ProductID == "" || bump.PriceCents < 0 {
			return ErrInvalidBump
		}
		if bump.ProductID == product.ID {
			return ErrSelfReference
		}
		if _, err := s.repo.GetProductByID(ctx, bump.ProductID); err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return ErrOfferProductMissing
			}
			return err
		}
		product.Bump = bump
	}

	return nil
}
