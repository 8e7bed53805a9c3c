// Package stage defines the shared article model that flows through every
// pipeline stage: ingest produces RawArticle, parse produces CleanedArticle,
// normalize produces NormalizedArticle, enrich produces EnrichedArticle.
// Later stages embed earlier ones so downstream code can still reach fields
// set by an earlier stage without re-declaring them.
package stage

import "time"

// Sentiment is a closed set of enrichment sentiment labels. Unlike a bare
// string field, the Go type system enforces the closed set at compile time:
// there is no literal-typo slip the way there would be with a raw string.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Metadata holds stage-specific side information, keyed by the stage that
// produced it ("normalization", "enrichment", ...). Kept as a nested map
// rather than a typed struct per stage because the set of keys a given
// stage writes is open-ended and not part of the invariants any caller
// depends on.
type Metadata map[string]map[string]any

// Set records a key/value pair under the given stage, creating the stage's
// sub-map on first use.
func (m Metadata) Set(stage, key string, value any) {
	if m[stage] == nil {
		m[stage] = make(map[string]any)
	}
	m[stage][key] = value
}

// Identity is the stable identifier carried by an article from ingestion
// through to the search index.
type Identity struct {
	ID          string
	URL         string
	ContentHash string
}

// RawArticle is what the ingestor publishes: a feed item or headline-API
// result, fetched but not yet cleaned, deduplicated, or enriched.
type RawArticle struct {
	Identity
	Title       string
	Content     string
	Source      string
	PublishedAt time.Time
	ScrapedAt   time.Time
	Author      *string
	Metadata    Metadata
}

// CleanedArticle is what the parser/deduper publishes. Content is carried
// forward from RawArticle (embedded) purely as a debugging aid; every
// consumer from this stage on reads Text, never Content.
type CleanedArticle struct {
	RawArticle
	Text        string
	IsDuplicate bool
}

// NormalizedArticle is what the normalizer publishes.
type NormalizedArticle struct {
	CleanedArticle
	Language        string
	TranslatedTitle *string
	TranslatedText  *string
	WordCount       int
}

// EnrichedArticle is what the enricher publishes and the indexer consumes.
type EnrichedArticle struct {
	NormalizedArticle
	Summary        string
	Topics         []string
	Entities       []string
	Sentiment      Sentiment
	SentimentScore float64
	Embeddings     []float32
}
