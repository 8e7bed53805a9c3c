// Command normalizer runs the Normalizer pipeline stage: it consumes
// cleaned_articles, detects language, optionally translates, and
// publishes normalized_articles.
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
	"newsstream/internal/infra/langdetect"
	"newsstream/internal/infra/translator"
	"newsstream/internal/infra/worker"
	"newsstream/internal/observability/logging"
	internalconfig "newsstream/internal/pkg/config"
	"newsstream/internal/pipeline/normalize"
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

	detector := langdetect.New()

	enableTranslation := internalconfig.LoadEnvString("ENABLE_TRANSLATION", "false") == "true"
	targetLanguage := internalconfig.LoadEnvString("TARGET_LANGUAGE", "en")

	var t translator.Translator = translator.NoOp{}
	if enableTranslation {
		if endpoint := internalconfig.LoadEnvString("TRANSLATOR_ENDPOINT", ""); endpoint != "" {
			t = translator.NewHTTPClient(endpoint)
		}
	}

	svc := normalize.NewService(b, detector, t, enableTranslation, targetLanguage, "", "")

	healthPort := internalconfig.LoadEnvInt("HEALTH_PORT", 9093, nil).Value.(int)
	healthServer := worker.NewHealthServer(":"+strconv.Itoa(healthPort), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	healthServer.SetReady(true)

	logger.Info("normalizer starting",
		slog.Bool("translation_enabled", enableTranslation),
		slog.String("target_language", targetLanguage))
	if err := svc.Run(ctx, groupPrefix+"-normalizer"); err != nil {
		logger.Error("normalizer run failed", slog.Any("error", err))
	}
	logger.Info("normalizer shutting down")
}
