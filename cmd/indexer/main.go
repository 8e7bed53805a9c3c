// Command indexer runs the Indexer pipeline stage: it consumes
// enriched_articles and writes each into the search store.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"newsstream/internal/bus"
	"newsstream/internal/infra/worker"
	"newsstream/internal/observability/logging"
	internalconfig "newsstream/internal/pkg/config"
	"newsstream/internal/pipeline/index"
	"newsstream/internal/search"
	pkgconfig "newsstream/pkg/config"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	busServers := internalconfig.LoadEnvString("KAFKA_BOOTSTRAP_SERVERS", "")
	groupPrefix := internalconfig.LoadEnvString("BUS_CONSUMER_GROUP_PREFIX", "newsstream")
	b, err := bus.New(bus.Config{Servers: busServers, ConsumerGroupPrefix: groupPrefix})
	if err != nil {
		logger.Error("failed to connect to bus", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = b.Close() }()

	addresses := pkgconfig.GetEnvStringList("ELASTICSEARCH_ADDRESSES", []string{"http://localhost:9200"})
	indexPattern := internalconfig.LoadEnvString("SEARCH_INDEX_PATTERN", "")
	embeddingDim := internalconfig.LoadEnvInt("EMBEDDING_DIM", 768, nil).Value.(int)
	batchSize := internalconfig.LoadEnvInt("ES_BATCH_SIZE", 100, nil).Value.(int)

	var store search.Store
	es, err := search.NewElasticsearch(search.ElasticsearchConfig{
		Addresses:    addresses,
		IndexPattern: indexPattern,
		EmbeddingDim: embeddingDim,
		BatchSize:    batchSize,
	})
	if err != nil {
		logger.Warn("elasticsearch unavailable at startup, falling back to mock store",
			slog.Any("error", err))
		store = search.NewMockStore()
	} else {
		store = es
	}
	defer func() { _ = store.Close() }()

	metrics := index.NewPrometheusMetrics()
	svc := index.NewService(b, store, "")
	svc.Metrics = metrics

	healthPort := internalconfig.LoadEnvInt("HEALTH_PORT", 9095, nil).Value.(int)
	healthServer := worker.NewHealthServer(":"+strconv.Itoa(healthPort), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	healthServer.SetReady(true)

	logger.Info("indexer starting")
	if err := svc.Run(ctx, groupPrefix+"-indexer"); err != nil {
		logger.Error("indexer run failed", slog.Any("error", err))
	}
	logger.Info("indexer shutting down")
}
