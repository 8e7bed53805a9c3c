package ingest

import "golang.org/x/time/rate"

// NewFeedLimiter builds a token-bucket limiter bounding how many feeds the
// ingestor fetches per second across a single cycle's fan-out, so a long
// RSS_FEEDS list does not open dozens of outbound connections at once.
// Burst equals the rate so a fresh cycle can start immediately rather than
// waiting for the bucket to refill.
func NewFeedLimiter(feedsPerSecond float64) *rate.Limiter {
	if feedsPerSecond <= 0 {
		feedsPerSecond = 5
	}
	return rate.NewLimiter(rate.Limit(feedsPerSecond), int(feedsPerSecond))
}
