// Command parser runs the Parser/Deduper pipeline stage: it consumes
// raw_articles, cleans and dedups them, and publishes cleaned_articles.
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
	"newsstream/internal/dedup"
	"newsstream/internal/infra/worker"
	"newsstream/internal/observability/logging"
	internalconfig "newsstream/internal/pkg/config"
	"newsstream/internal/pipeline/parse"
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

	redisAddr := internalconfig.LoadEnvString("REDIS_ADDR", "localhost:6379")
	dedupWindowHours := internalconfig.LoadEnvInt("DEDUP_WINDOW_HOURS", 72, nil).Value.(int)
	dedupLocalMax := internalconfig.LoadEnvInt("DEDUP_LOCAL_CACHE_MAX_ENTRIES", 10000, nil).Value.(int)
	dedupStore := dedup.New(dedup.Config{
		RedisAddr:     redisAddr,
		Window:        time.Duration(dedupWindowHours) * time.Hour,
		LocalCacheMax: dedupLocalMax,
	})
	defer func() { _ = dedupStore.Close() }()

	svc := parse.NewService(b, dedupStore, "", "")

	healthPort := internalconfig.LoadEnvInt("HEALTH_PORT", 9092, nil).Value.(int)
	healthServer := worker.NewHealthServer(":"+strconv.Itoa(healthPort), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	healthServer.SetReady(true)

	logger.Info("parser starting")
	if err := svc.Run(ctx, groupPrefix+"-parser"); err != nil {
		logger.Error("parser run failed", slog.Any("error", err))
	}
	logger.Info("parser shutting down")
}
