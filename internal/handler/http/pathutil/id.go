package pathutil

import (
	"errors"
	"strings"
)

// ErrInvalidID is returned when the ID in the URL path is invalid.
var ErrInvalidID = errors.New("invalid id")

// ExtractID extracts an opaque article ID from a URL path by removing the
// given prefix. Article ids are UUIDs assigned at ingestion (see
// stage.Identity), not database-assigned integers, so this returns the raw
// string rather than parsing a number.
//
// Example:
//
//	id, err := ExtractID("/articles/550e8400-e29b-41d4-a716-446655440000", "/articles/")
//	// Returns: "550e8400-e29b-41d4-a716-446655440000", nil
func ExtractID(path, prefix string) (string, error) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return "", ErrInvalidID
	}
	return rest, nil
}
