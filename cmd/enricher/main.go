// Command enricher runs the Enricher pipeline stage: it consumes
// normalized_articles, calls out for summary/topics/entities/sentiment/
// embeddings, and publishes enriched_articles.
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
	"newsstream/internal/infra/llm"
	"newsstream/internal/infra/worker"
	"newsstream/internal/observability/logging"
	internalconfig "newsstream/internal/pkg/config"
	"newsstream/internal/pipeline/enrich"
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

	embeddingDim := internalconfig.LoadEnvInt("EMBEDDING_DIM", 768, nil).Value.(int)

	var client enrich.LLMClient
	if anthropicKey := internalconfig.LoadEnvString("ANTHROPIC_API_KEY", ""); anthropicKey != "" {
		anthropicClient := llm.NewAnthropic(anthropicKey, internalconfig.LoadEnvString("ANTHROPIC_MODEL", ""))
		if openAIKey := internalconfig.LoadEnvString("OPENAI_API_KEY", ""); openAIKey != "" {
			anthropicClient = anthropicClient.WithEmbedder(llm.NewOpenAIEmbedder(openAIKey))
		}
		client = anthropicClient
	} else {
		logger.Info("no ANTHROPIC_API_KEY set, enricher running in pass-through mode")
	}

	metrics := enrich.NewPrometheusMetrics()

	svc := enrich.NewService(b, client, metrics, embeddingDim, "", "")

	healthPort := internalconfig.LoadEnvInt("HEALTH_PORT", 9094, nil).Value.(int)
	healthServer := worker.NewHealthServer(":"+strconv.Itoa(healthPort), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	healthServer.SetReady(true)

	logger.Info("enricher starting", slog.Bool("pass_through", client == nil))
	if err := svc.Run(ctx, groupPrefix+"-enricher"); err != nil {
		logger.Error("enricher run failed", slog.Any("error", err))
	}
	logger.Info("enricher shutting down")
}
