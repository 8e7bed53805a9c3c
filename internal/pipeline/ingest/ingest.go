// Package ingest implements the Ingestor pipeline stage: a fixed-interval
// crawl of configured RSS/Atom feeds (and, optionally, a headline API),
// publishing freshly identified RawArticles onto the bus. Grounded on the
// teacher's internal/usecase/fetch crawl-all-sources structure, generalized
// from a once-daily cron job to a repeating ticker per spec.
package ingest

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"newsstream/internal/bus"
	"newsstream/internal/domain/entity"
	"newsstream/internal/domain/stage"
	"newsstream/internal/usecase/fetch"

	"github.com/google/uuid"
)

// feedTimeout bounds a single feed's fetch within a cycle.
const feedTimeout = 30 * time.Second

// cycleFailureBackoff is how long a full-cycle failure waits before the
// next attempt, grounded on the teacher's waitForMigrations retry loop.
const cycleFailureBackoff = 60 * time.Second

// CycleRecorder receives per-cycle observability events. Satisfied by
// internal/infra/worker.WorkerMetrics without either package importing
// the other.
type CycleRecorder interface {
	RecordJobRun(status string)
	RecordJobDuration(seconds float64)
	RecordFeedsProcessed(count int)
	RecordLastSuccess()
}

// Service crawls configured feeds on a fixed interval and publishes
// RawArticles keyed by id.
type Service struct {
	Bus      bus.Bus
	Fetcher  fetch.FeedFetcher
	NewsAPI  *NewsAPIClient // nil disables headline-API ingestion
	Metrics  CycleRecorder  // nil disables metrics recording
	Limiter  *rate.Limiter  // nil disables feed-fetch throttling

	FeedURLs []string
	Interval time.Duration
	RawTopic string
}

// NewService constructs an ingestor. feedURLs falls back to a small
// built-in default list when empty, per spec §6.
func NewService(b bus.Bus, fetcher fetch.FeedFetcher, newsAPI *NewsAPIClient, feedURLs []string, interval time.Duration, rawTopic string) *Service {
	if len(feedURLs) == 0 {
		feedURLs = defaultFeedURLs
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if rawTopic == "" {
		rawTopic = "raw_articles"
	}
	return &Service{
		Bus: b, Fetcher: fetcher, NewsAPI: newsAPI,
		FeedURLs: feedURLs, Interval: interval, RawTopic: rawTopic,
	}
}

// defaultFeedURLs is used when RSS_FEEDS is unset.
var defaultFeedURLs = []string{
	"https://hnrss.org/frontpage",
	"https://feeds.bbci.co.uk/news/world/rss.xml",
}

// Run drives the fixed-interval crawl loop until ctx is cancelled. The
// next cycle starts Interval after the previous one started, not after it
// finished, per spec §4.2.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.runCycleWithRetry(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycleWithRetry(ctx)
		}
	}
}

// runCycleWithRetry runs one cycle; on a full-cycle failure it waits
// cycleFailureBackoff and retries from the top, per spec §4.2.
func (s *Service) runCycleWithRetry(ctx context.Context) {
	for {
		start := time.Now()
		err := s.RunCycle(ctx)
		if s.Metrics != nil {
			s.Metrics.RecordJobDuration(time.Since(start).Seconds())
		}
		if err != nil {
			if s.Metrics != nil {
				s.Metrics.RecordJobRun("failure")
			}
			slog.Error("ingest cycle failed, retrying after backoff",
				slog.Any("error", err), slog.Duration("backoff", cycleFailureBackoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(cycleFailureBackoff):
				continue
			}
		}
		if s.Metrics != nil {
			s.Metrics.RecordJobRun("success")
			s.Metrics.RecordFeedsProcessed(len(s.FeedURLs))
			s.Metrics.RecordLastSuccess()
		}
		return
	}
}

// RunCycle fetches every configured feed in parallel, plus the headline
// API when configured, and publishes every resulting RawArticle.
func (s *Service) RunCycle(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	for _, feedURL := range s.FeedURLs {
		feedURL := feedURL
		eg.Go(func() error {
			s.processFeed(egCtx, feedURL)
			return nil
		})
	}

	if s.NewsAPI != nil {
		eg.Go(func() error {
			s.processHeadlineAPI(egCtx)
			return nil
		})
	}

	return eg.Wait()
}

// processFeed fetches and publishes a single feed's items. Per-feed
// errors are isolated: they are logged and the cycle continues, per
// spec §4.2's "failures isolated" semantics.
func (s *Service) processFeed(ctx context.Context, feedURL string) {
	if err := entity.ValidateURL(feedURL); err != nil {
		slog.Warn("skipping feed with invalid url", slog.String("url", feedURL), slog.Any("error", err))
		return
	}

	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			slog.Warn("feed fetch throttled past cycle cancellation", slog.String("url", feedURL), slog.Any("error", err))
			return
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, feedTimeout)
	defer cancel()

	items, err := s.Fetcher.Fetch(fetchCtx, feedURL)
	if err != nil {
		slog.Warn("feed fetch failed, skipping this cycle", slog.String("url", feedURL), slog.Any("error", err))
		return
	}

	source := registeredHost(feedURL)
	now := time.Now().UTC()
	for _, item := range items {
		raw := stage.RawArticle{
			Identity: stage.Identity{ID: uuid.NewString(), URL: item.URL},
			Title:    item.Title,
			Content:  item.Content,
			Source:   source,
			ScrapedAt: now,
			Metadata:  stage.Metadata{},
		}
		if !item.PublishedAt.IsZero() {
			raw.PublishedAt = item.PublishedAt
		} else {
			raw.PublishedAt = now
		}

		if err := s.Bus.Publish(ctx, s.RawTopic, raw.ID, raw); err != nil {
			slog.Error("failed to publish raw article", slog.String("id", raw.ID), slog.Any("error", err))
		}
	}
}

// processHeadlineAPI fetches one page of headlines and publishes each as
// a RawArticle sourced from the provider, per spec §4.2 step 3.
func (s *Service) processHeadlineAPI(ctx context.Context) {
	headlines, err := s.NewsAPI.FetchHeadlines(ctx)
	if err != nil {
		slog.Warn("headline api fetch failed, skipping this cycle", slog.Any("error", err))
		return
	}

	now := time.Now().UTC()
	for _, h := range headlines {
		raw := stage.RawArticle{
			Identity: stage.Identity{ID: uuid.NewString(), URL: h.URL},
			Title:    h.Title,
			Content:  h.Content,
			Source:   s.NewsAPI.SourceName,
			ScrapedAt: now,
			Metadata:  stage.Metadata{},
		}
		if !h.PublishedAt.IsZero() {
			raw.PublishedAt = h.PublishedAt
		} else {
			raw.PublishedAt = now
		}

		if err := s.Bus.Publish(ctx, s.RawTopic, raw.ID, raw); err != nil {
			slog.Error("failed to publish raw article", slog.String("id", raw.ID), slog.Any("error", err))
		}
	}
}

// registeredHost returns the feed URL's hostname, used as the article's
// source per spec §4.2 step 2. Falls back to the raw URL on parse failure,
// which should not happen since the URL has already passed ValidateURL.
func registeredHost(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	return u.Hostname()
}
