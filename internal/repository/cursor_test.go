package repository

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeDecodeCursor(t *testing.T) {
	original := &PaginationCursor{
		CreatedAt: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
		ID:        "01J8X5YTNCM62KW0QDZT1V3RRD",
	}

	encoded := EncodeCursor(original)
	if encoded == "" {
		t.Fatal("expected non-empty cursor")
	}

	decoded, err := DecodeCursor(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !decoded.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("created_at = %v, want %v", decoded.CreatedAt, original.CreatedAt)
	}
	if decoded.ID != original.ID {
		t.Errorf("id = %s, want %s", decoded.ID, original.ID)
	}
}

func TestDecodeCursorRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"not_base64", "!!!not-base64!!!"},
		{"not_json", "bm90LWpzb24"},
		{"missing_id", "eyJjcmVhdGVkX2F0IjoiMjAyNS0wNi0wMVQxMjozMDowMFoifQ=="},
		{"empty_object", "e30="},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := DecodeCursor(test.cursor)
			if !errors.Is(err, ErrInvalidCursor) {
				t.Fatalf("expected ErrInvalidCursor, got %v", err)
			}
		})
	}
}
