// Package service provides business logic for the application.
package service

import (
	"errors"

	"github.com/gateflow/gateflow/internal/repository"
)

// Shared service errors.
var (
	// ErrInvalidInput marks validation failures on request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCursor marks malformed pagination cursors.
	ErrInvalidCursor = errors.New("invalid pagination cursor")
)

// decodeCursor parses an opaque cursor string.
// An empty cursor means "first page".
func decodeCursor(raw string) (*repository.PaginationCursor, error) {
	if raw == "" {
		return nil, nil
	}
	cursor, err := repository.DecodeCursor(raw)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return cursor, nil
}
