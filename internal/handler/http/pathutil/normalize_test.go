package pathutil

import (
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "article with numeric-looking id",
			path:     "/articles/123",
			expected: "/articles/:id",
		},
		{
			name:     "article with UUID id",
			path:     "/articles/550e8400-e29b-41d4-a716-446655440000",
			expected: "/articles/:id",
		},
		{
			name:     "article with trailing slash",
			path:     "/articles/abc123/",
			expected: "/articles/:id",
		},
		{
			name:     "article with query params",
			path:     "/articles/abc123?page=1",
			expected: "/articles/:id",
		},
		{
			name:     "articles latest",
			path:     "/articles/latest",
			expected: "/articles/latest",
		},
		{
			name:     "articles latest with query params",
			path:     "/articles/latest?limit=10",
			expected: "/articles/latest",
		},
		{
			name:     "search endpoint",
			path:     "/search",
			expected: "/search",
		},
		{
			name:     "search with query params",
			path:     "/search?query=ai",
			expected: "/search",
		},
		{
			name:     "stats endpoint",
			path:     "/stats",
			expected: "/stats",
		},
		{
			name:     "healthz endpoint",
			path:     "/healthz",
			expected: "/healthz",
		},
		{
			name:     "metrics endpoint",
			path:     "/metrics",
			expected: "/metrics",
		},
		{
			name:     "unknown nested path",
			path:     "/api/v2/items/456",
			expected: "/api/v2/items/456",
		},
		{
			name:     "root path",
			path:     "/",
			expected: "/",
		},
		{
			name:     "empty path",
			path:     "",
			expected: "",
		},
		{
			name:     "path with only query params",
			path:     "/?page=1",
			expected: "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizePath(tt.path)
			if result != tt.expected {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, result, tt.expected)
			}
		})
	}
}

func TestNormalizePath_Cardinality(t *testing.T) {
	paths := []string{
		"/articles/1",
		"/articles/2",
		"/articles/abc123",
		"/articles/550e8400-e29b-41d4-a716-446655440000",
	}

	uniqueResults := make(map[string]bool)
	for _, path := range paths {
		uniqueResults[NormalizePath(path)] = true
	}

	if len(uniqueResults) != 1 {
		t.Errorf("expected cardinality of 1, got %d unique paths: %v", len(uniqueResults), uniqueResults)
	}
}

func TestNormalizePath_TrailingSlash(t *testing.T) {
	tests := []struct {
		path1    string
		path2    string
		expected string
	}{
		{"/articles/123", "/articles/123/", "/articles/:id"},
		{"/search", "/search/", "/search"},
	}

	for _, tt := range tests {
		result1 := NormalizePath(tt.path1)
		result2 := NormalizePath(tt.path2)

		if result1 != tt.expected {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.path1, result1, tt.expected)
		}
		if result1 != result2 {
			t.Errorf("trailing slash inconsistency: %q vs %q", result1, result2)
		}
	}
}

func TestGetExpectedCardinality(t *testing.T) {
	cardinality := GetExpectedCardinality()
	if cardinality < 2 || cardinality > 20 {
		t.Errorf("GetExpectedCardinality() = %d, want a small bounded value", cardinality)
	}
}
