package service

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestValidateCommon(t *testing.T) {
	svc := &ProductService{}

	longName := strings.Repeat("a", maxNameLength+1)
	longDescription := strings.Repeat("b", maxDescriptionLength+1)
	longFileURL := "https://cdn.example.com/" + strings.Repeat("f", maxFileURLLength)

	tests := []struct {
		name     string
		prodName string
		desc     string
		price    int64
		currency string
		fileURL  string
		wantErr  error
	}{
		{"empty_name", "", "", 1000, "USD", "", ErrInvalidInput},
		{"whitespace_name", "   ", "", 1000, "USD", "", ErrInvalidInput},
		{"name_too_long", longName, "", 1000, "USD", "", ErrInvalidInput},
		{"description_too_long", "Ebook", longDescription, 1000, "USD", "", ErrInvalidInput},
		{"negative_price", "Ebook", "", -1, "USD", "", ErrInvalidPrice},
		{"unsupported_currency", "Ebook", "", 1000, "JPY", "", ErrInvalidCurrency},
		{"file_url_bad_scheme", "Ebook", "", 1000, "USD", "ftp://cdn.example.com/file.zip", ErrInvalidFileURL},
		{"file_url_missing_host", "Ebook", "", 1000, "USD", "https://", ErrInvalidFileURL},
		{"file_url_too_long", "Ebook", "", 1000, "USD", longFileURL, ErrInvalidFileURL},
		{"free_product", "Ebook", "", 0, "USD", "", nil},
		{"valid", "Ebook", "A short guide.", 1999, "EUR", "https://cdn.example.com/file.zip", nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := svc.validateCommon(test.prodName, test.desc, test.price, test.currency, test.fileURL)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
		})
	}
}

func TestCreateProductSlugValidation(t *testing.T) {
	svc := &ProductService{}

	tests := []struct {
		name string
		slug string
	}{
		{"empty", ""},
		{"too_short", "ab"},
		{"uppercase", "My-Ebook"},
		{"leading_hyphen", "-ebook"},
		{"trailing_hyphen", "ebook-"},
		{"underscore", "my_ebook"},
		{"too_long", strings.Repeat("a", 81)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := svc.CreateProduct(context.Background(), CreateProductInput{
				Slug:       test.slug,
				Name:       "Ebook",
				PriceCents: 1000,
				Currency:   "USD",
			})
			if !errors.Is(err, ErrInvalidSlug) {
				t.Fatalf("expected ErrInvalidSlug, got %v", err)
			}
		})
	}
}

func TestSlugRegexAcceptsValid(t *testing.T) {
	valid := []string{"abc", "my-ebook", "course-2024", "a1b"}
	for _, slug := range valid {
		if !slugRegex.MatchString(slug) {
			t.Errorf("expected %q to be a valid slug", slug)
		}
	}
}
