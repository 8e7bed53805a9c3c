// Command ingestor runs the Ingestor pipeline stage: a fixed-interval crawl
// of configured RSS/Atom feeds (and, optionally, a headline API), publishing
// RawArticles onto the bus.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"newsstream/internal/bus"
	"newsstream/internal/infra/scraper"
	"newsstream/internal/infra/worker"
	"newsstream/internal/observability/logging"
	internalconfig "newsstream/internal/pkg/config"
	"newsstream/internal/pipeline/ingest"
	pkgconfig "newsstream/pkg/config"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	metrics := worker.NewWorkerMetrics()
	metrics.MustRegister()

	busServers := internalconfig.LoadEnvString("KAFKA_BOOTSTRAP_SERVERS", "")
	groupPrefix := internalconfig.LoadEnvString("BUS_CONSUMER_GROUP_PREFIX", "newsstream")
	b, err := bus.New(bus.Config{Servers: busServers, ConsumerGroupPrefix: groupPrefix})
	if err != nil {
		logger.Error("failed to connect to bus", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = b.Close() }()

	feedURLs := pkgconfig.GetEnvStringList("RSS_FEEDS", nil)
	intervalMinutes := internalconfig.LoadEnvInt("INGEST_INTERVAL_MINUTES", 5, nil).Value.(int)
	newsAPIKey := internalconfig.LoadEnvString("NEWSAPI_KEY", "")

	var newsAPIClient *ingest.NewsAPIClient
	if newsAPIKey != "" {
		newsAPIClient = ingest.NewNewsAPIClient(newsAPIKey)
	}

	rssFetcher := scraper.NewRSSFetcher(&http.Client{Timeout: 30 * time.Second})
	svc := ingest.NewService(b, rssFetcher, newsAPIClient, feedURLs, time.Duration(intervalMinutes)*time.Minute, "")
	svc.Metrics = metrics
	maxFeedsPerSecond := internalconfig.LoadEnvInt("INGEST_MAX_FEEDS_PER_SECOND", 5, nil).Value.(int)
	svc.Limiter = ingest.NewFeedLimiter(float64(maxFeedsPerSecond))

	healthPort := internalconfig.LoadEnvInt("HEALTH_PORT", 9091, nil).Value.(int)
	healthServer := worker.NewHealthServer(":"+strconv.Itoa(healthPort), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	healthServer.SetReady(true)

	logger.Info("ingestor starting",
		slog.Int("feed_count", len(svc.FeedURLs)),
		slog.Duration("interval", svc.Interval),
		slog.Bool("headline_api_enabled", newsAPIClient != nil))

	svc.Run(ctx)
	logger.Info("ingestor shutting down")
}
