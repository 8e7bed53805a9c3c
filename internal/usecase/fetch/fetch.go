// Package fetch defines the shared contract between feed/content fetchers
// (internal/infra/scraper, internal/infra/fetcher) and the Ingestor pipeline
// stage that drives them. It holds only types and sentinel errors; the
// scheduling and publishing logic lives in internal/pipeline/ingest.
package fetch

import (
	"context"
	"errors"
	"time"
)

// FeedItem is a single entry read from a feed or scraped listing page,
// before it is assigned a canonical identity.
type FeedItem struct {
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
}

// FeedFetcher fetches the current items of a single feed or source.
type FeedFetcher interface {
	Fetch(ctx context.Context, sourceURL string) ([]FeedItem, error)
}

var (
	// ErrInvalidURL is returned when a source URL fails validation.
	ErrInvalidURL = errors.New("fetch: invalid url")
	// ErrPrivateIP is returned when a hostname resolves to a private or loopback address.
	ErrPrivateIP = errors.New("fetch: hostname resolves to private ip")
	// ErrTimeout is returned when a fetch exceeds its deadline.
	ErrTimeout = errors.New("fetch: request timed out")
	// ErrTooManyRedirects is returned when a fetch follows more redirects than allowed.
	ErrTooManyRedirects = errors.New("fetch: too many redirects")
	// ErrBodyTooLarge is returned when a response body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("fetch: response body too large")
	// ErrReadabilityFailed is returned when content extraction finds no readable article.
	ErrReadabilityFailed = errors.New("fetch: readability extraction failed")
)
